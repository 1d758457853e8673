package reminder

import (
	"errors"
	"fmt"
	"time"
)

// Event is an input to the reminder state machine.
type Event string

const (
	EventTrigger     Event = "trigger"
	EventComplete    Event = "complete"
	EventAcknowledge Event = "acknowledge"
	EventCancel      Event = "cancel"
)

// ErrNotDue is returned when a trigger is attempted before fire time.
var ErrNotDue = errors.New("reminder is not due yet")

// Apply runs one state machine step and returns the resulting record. It
// does not authorize and does not write; r is not modified.
//
//	scheduled  --trigger(now>=fireAt)--> triggered
//	scheduled|triggered --complete-->    completed
//	scheduled|triggered --acknowledge--> (unchanged status)
//	scheduled|triggered --cancel-->      cancelled
func Apply(r Reminder, ev Event, now time.Time) (Reminder, error) {
	if r.Status.Terminal() {
		if ev == EventComplete && r.Status == StatusCompleted {
			return Reminder{}, ErrAlreadyCompleted
		}
		return Reminder{}, fmt.Errorf("%w: cannot %s a %s reminder", ErrAlreadyTerminal, ev, r.Status)
	}

	next := r.Clone()
	at := now.UTC()

	switch ev {
	case EventTrigger:
		if r.Status != StatusScheduled {
			return Reminder{}, fmt.Errorf("%w: cannot trigger a %s reminder", ErrStaleState, r.Status)
		}
		if now.Before(r.FireAt) {
			return Reminder{}, ErrNotDue
		}
		next.Status = StatusTriggered
		next.TriggeredAt = &at

	case EventComplete:
		next.Status = StatusCompleted
		next.CompletedAt = &at

	case EventAcknowledge:
		if !r.ActionRequired {
			return Reminder{}, ErrActionNotRequired
		}
		if r.AcknowledgedAt != nil {
			return Reminder{}, ErrAlreadyAcknowledged
		}
		next.AcknowledgedAt = &at

	case EventCancel:
		next.Status = StatusCancelled

	default:
		return Reminder{}, fmt.Errorf("unknown event %q", ev)
	}

	return next, nil
}
