package testfixtures

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	t.Parallel()

	t.Run("defaults to the reference time", func(t *testing.T) {
		t.Parallel()
		if got := NewClock(time.Time{}).Now(); !got.Equal(ReferenceTime()) {
			t.Fatalf("expected ReferenceTime, got %v", got)
		}
	})

	t.Run("advance and set are seen through NowFunc", func(t *testing.T) {
		t.Parallel()
		start := time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC)
		clock := NewClock(start)
		now := clock.NowFunc()

		if got := clock.Advance(15 * time.Minute); !got.Equal(start.Add(15 * time.Minute)) {
			t.Fatalf("Advance returned %v", got)
		}
		if got := now(); !got.Equal(start.Add(15 * time.Minute)) {
			t.Fatalf("NowFunc returned %v after Advance", got)
		}
		clock.Set(start)
		if got := now(); !got.Equal(start) {
			t.Fatalf("NowFunc returned %v after Set", got)
		}
	})

	t.Run("nil clock falls back to wall time", func(t *testing.T) {
		t.Parallel()
		var clock *Clock
		if clock.NowFunc()().IsZero() {
			t.Fatalf("expected wall clock time")
		}
	})
}

func TestClockWindow(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC))
	tests := []struct {
		name          string
		offset        time.Duration
		length        time.Duration
		wantOpenAtNow bool
	}{
		{name: "already open", offset: -time.Hour, length: 2 * time.Hour, wantOpenAtNow: true},
		{name: "opens later", offset: time.Hour, length: time.Hour},
		{name: "already closed", offset: -3 * time.Hour, length: time.Hour},
	}
	for _, tt := range tests {
		start, end := clock.Window(tt.offset, tt.length)
		now := clock.Now()
		open := !now.Before(start) && now.Before(end)
		if open != tt.wantOpenAtNow {
			t.Errorf("%s: window %v-%v open=%t, want %t", tt.name, start, end, open, tt.wantOpenAtNow)
		}
		if end.Sub(start) != tt.length {
			t.Errorf("%s: unexpected length %v", tt.name, end.Sub(start))
		}
	}
}
