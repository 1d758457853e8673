// Package notify delivers reminder transitions to people and systems.
package notify

import (
	"context"
	"errors"

	"github.com/notexe/reminderd/internal/reminder"
)

// Multi fans a notice out to every sink. One failing sink does not stop
// the others.
type Multi []reminder.Notifier

func (m Multi) Notify(ctx context.Context, n reminder.Notice) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiAlerter fans an operator alert out to every channel.
type MultiAlerter []reminder.Alerter

func (m MultiAlerter) Alert(ctx context.Context, subject string, err error) error {
	var errs []error
	for _, a := range m {
		if aerr := a.Alert(ctx, subject, err); aerr != nil {
			errs = append(errs, aerr)
		}
	}
	return errors.Join(errs...)
}

// Only forwards notices of the given kinds to next.
func Only(next reminder.Notifier, kinds ...reminder.Transition) reminder.Notifier {
	if len(kinds) == 0 {
		return next
	}
	set := make(map[reminder.Transition]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return &filtered{next: next, kinds: set}
}

type filtered struct {
	next  reminder.Notifier
	kinds map[reminder.Transition]bool
}

func (f *filtered) Notify(ctx context.Context, n reminder.Notice) error {
	if !f.kinds[n.Kind] {
		return nil
	}
	return f.next.Notify(ctx, n)
}
