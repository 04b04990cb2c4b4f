package events

import "time"

// Lifecycle status values, derived from event dates on every read.
const (
	LifecycleUpcoming  = "upcoming"
	LifecycleOngoing   = "ongoing"
	LifecycleCompleted = "completed"
)

// defaultEventWindow caps events with no end date so they cannot stay
// "ongoing" forever.
const defaultEventWindow = 24 * time.Hour

// LifecycleStatus classifies an event relative to now. A missing start date
// means upcoming; a missing end date falls back to start+24h. The start
// instant itself is ongoing, the end instant is completed.
func LifecycleStatus(now time.Time, start, end *time.Time) string {
	if start == nil || start.IsZero() {
		return LifecycleUpcoming
	}
	e := start.Add(defaultEventWindow)
	if end != nil && !end.IsZero() {
		e = *end
	}
	switch {
	case now.Before(*start):
		return LifecycleUpcoming
	case !now.Before(e):
		return LifecycleCompleted
	default:
		return LifecycleOngoing
	}
}
