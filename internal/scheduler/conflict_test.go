package scheduler

import (
	"testing"
	"time"
)

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }
	candidate := Slot{ID: "new", Participants: []string{"1", "10", "11"}, Start: at(1), End: at(2)}

	tests := []struct {
		name     string
		existing []Slot
		want     []Conflict
	}{
		{
			name:     "shared participant overlap",
			existing: []Slot{{ID: "a", Participants: []string{"10", "20"}, Start: at(0), End: at(1).Add(30 * time.Minute)}},
			want:     []Conflict{{WithSlotID: "a", Participant: "10", Start: at(0), End: at(1).Add(30 * time.Minute)}},
		},
		{
			name:     "adjacent slots do not overlap",
			existing: []Slot{{ID: "a", Participants: []string{"10"}, Start: at(0), End: at(1)}, {ID: "b", Participants: []string{"11"}, Start: at(2), End: at(3)}},
		},
		{
			name:     "overlap without shared participants",
			existing: []Slot{{ID: "a", Participants: []string{"30"}, Start: at(1), End: at(2)}},
		},
		{
			name: "ordered by start then participant",
			existing: []Slot{
				{ID: "late", Participants: []string{"1"}, Start: at(1).Add(30 * time.Minute), End: at(3)},
				{ID: "early", Participants: []string{"11", "10", "10"}, Start: at(1), End: at(2)},
			},
			want: []Conflict{
				{WithSlotID: "early", Participant: "10", Start: at(1), End: at(2)},
				{WithSlotID: "early", Participant: "11", Start: at(1), End: at(2)},
				{WithSlotID: "late", Participant: "1", Start: at(1).Add(30 * time.Minute), End: at(3)},
			},
		},
		{
			name:     "same slot id is ignored",
			existing: []Slot{{ID: "new", Participants: []string{"10"}, Start: at(1), End: at(2)}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := DetectConflicts(tt.existing, candidate)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d conflicts, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i].WithSlotID != tt.want[i].WithSlotID || got[i].Participant != tt.want[i].Participant ||
					!got[i].Start.Equal(tt.want[i].Start) || !got[i].End.Equal(tt.want[i].End) {
					t.Fatalf("conflict %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestDetectConflictsInvalidCandidate(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	existing := []Slot{{ID: "a", Participants: []string{"1"}, Start: start, End: start.Add(time.Hour)}}
	if got := DetectConflicts(existing, Slot{Participants: []string{"1"}, Start: start, End: start}); got != nil {
		t.Fatalf("expected no conflicts for an empty range, got %+v", got)
	}
	if got := DetectConflicts(existing, Slot{Start: start, End: start.Add(time.Hour)}); got != nil {
		t.Fatalf("expected no conflicts without participants, got %+v", got)
	}
}
