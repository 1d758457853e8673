package reminder

import (
	"context"
	"errors"
	"log"
	"time"
)

// Transition names an observable change delivered to notification sinks.
type Transition string

const (
	TransitionCreated            Transition = "created"
	TransitionTriggered          Transition = "triggered"
	TransitionAcknowledged       Transition = "acknowledged"
	TransitionCompleted          Transition = "completed"
	TransitionCancelled          Transition = "cancelled"
	TransitionSuccessorScheduled Transition = "successor_scheduled"
)

// Notice is one delivered transition.
type Notice struct {
	Kind     Transition `json:"kind"`
	Reminder Reminder   `json:"reminder"`
	At       time.Time  `json:"at"`
}

// Notifier delivers transition notices. Delivery happens after the store
// write has committed, so a failure never undoes the transition.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Alerter is the operator channel for failures that need a human, such as
// a recurring series that could not be continued.
type Alerter interface {
	Alert(ctx context.Context, subject string, err error) error
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Discard drops notices and alerts.
type Discard struct{}

func (Discard) Notify(context.Context, Notice) error        { return nil }
func (Discard) Alert(context.Context, string, error) error { return nil }

// Publish sends n and logs delivery failures.
func Publish(ctx context.Context, notifier Notifier, n Notice) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[reminder] Warning: %s notice for %s not delivered: %v", n.Kind, n.Reminder.ID, err)
	}
}
