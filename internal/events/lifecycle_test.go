package events

import (
	"testing"
	"time"
)

func TestLifecycleStatus(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	tests := []struct {
		name  string
		now   time.Time
		start *time.Time
		end   *time.Time
		want  string
	}{
		{"no start date", start, nil, nil, LifecycleUpcoming},
		{"before start", start.Add(-time.Minute), &start, &end, LifecycleUpcoming},
		{"at start", start, &start, &end, LifecycleOngoing},
		{"between start and end", start.Add(time.Hour), &start, &end, LifecycleOngoing},
		{"at end", end, &start, &end, LifecycleCompleted},
		{"after end", end.Add(time.Minute), &start, &end, LifecycleCompleted},
		{"no end, within 24h window", start.Add(23 * time.Hour), &start, nil, LifecycleOngoing},
		{"no end, past 24h window", start.Add(25 * time.Hour), &start, nil, LifecycleCompleted},
		{"no end, exactly 24h", start.Add(24 * time.Hour), &start, nil, LifecycleCompleted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := LifecycleStatus(tc.now, tc.start, tc.end)
			if got != tc.want {
				t.Errorf("LifecycleStatus(%v, %v, %v) = %q, want %q", tc.now, tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestLifecycleStatusZeroStart(t *testing.T) {
	var zero time.Time
	if got := LifecycleStatus(time.Now(), &zero, nil); got != LifecycleUpcoming {
		t.Errorf("zero start = %q, want %q", got, LifecycleUpcoming)
	}
}
