// Package scheduler detects overlapping meeting slots.
package scheduler

import (
	"sort"
	"time"
)

// Slot is a time range booked for a set of participants.
type Slot struct {
	ID           string
	Participants []string
	Start        time.Time
	End          time.Time
}

// Conflict reports a participant booked in both the candidate and another slot.
type Conflict struct {
	WithSlotID  string
	Participant string
	Start       time.Time
	End         time.Time
}

// Overlaps reports whether two half open ranges [start, end) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// DetectConflicts returns one conflict per shared participant of every slot in
// existing that overlaps candidate. Slots with the candidate's id and empty
// ranges are ignored. Results are ordered by start time, then participant.
func DetectConflicts(existing []Slot, candidate Slot) []Conflict {
	if !candidate.Start.Before(candidate.End) {
		return nil
	}
	wanted := make(map[string]struct{}, len(candidate.Participants))
	for _, p := range candidate.Participants {
		if p != "" {
			wanted[p] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	var conflicts []Conflict
	for _, slot := range existing {
		if slot.ID != "" && slot.ID == candidate.ID {
			continue
		}
		if !slot.Start.Before(slot.End) || !Overlaps(candidate.Start, candidate.End, slot.Start, slot.End) {
			continue
		}
		seen := make(map[string]struct{}, len(slot.Participants))
		for _, p := range slot.Participants {
			if _, ok := wanted[p]; !ok {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			conflicts = append(conflicts, Conflict{WithSlotID: slot.ID, Participant: p, Start: slot.Start, End: slot.End})
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if !conflicts[i].Start.Equal(conflicts[j].Start) {
			return conflicts[i].Start.Before(conflicts[j].Start)
		}
		return conflicts[i].Participant < conflicts[j].Participant
	})
	return conflicts
}
