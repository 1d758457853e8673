package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// successorNamespace seeds the deterministic ids of synthesized successors.
var successorNamespace = uuid.MustParse("6f1c2a4e-8b7d-4c1e-9a53-2d0e5b7f3c91")

// OriginKey identifies one completed lifecycle instance of a recurring
// reminder. At most one successor exists per key.
func OriginKey(r *Reminder) string {
	if r.CompletedAt == nil {
		return r.ID
	}
	return r.ID + "@" + r.CompletedAt.UTC().Format(time.RFC3339Nano)
}

// SuccessorID is the id a successor synthesized under originKey receives.
func SuccessorID(originKey string) string {
	return uuid.NewSHA1(successorNamespace, []byte(originKey)).String()
}

// Synthesizer produces the next occurrence of a completed recurring
// reminder.
type Synthesizer struct {
	store Store
	clock Clock
}

// NewSynthesizer returns a Synthesizer writing to store.
func NewSynthesizer(store Store, clock Clock) *Synthesizer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Synthesizer{store: store, clock: clock}
}

// Successor builds, without writing, the successor of completed. The next
// fire time is computed from completed.FireAt, not from the completion time.
func (s *Synthesizer) Successor(completed *Reminder) (*Reminder, error) {
	if completed.Status != StatusCompleted || completed.CompletedAt == nil {
		return nil, fmt.Errorf("%w: reminder %s is %s", ErrStaleState, completed.ID, completed.Status)
	}
	if !completed.IsRecurring {
		return nil, invalid("is_recurring", ErrInvalidField, "reminder "+completed.ID+" does not recur")
	}

	nextFireAt, err := NextOccurrence(completed.RecurrencePattern, completed.FireAt)
	if err != nil {
		return nil, &RecurrenceComputationError{
			OriginID: completed.ID,
			Pattern:  completed.RecurrencePattern,
			FireAt:   completed.FireAt,
			Err:      err,
		}
	}

	now := s.clock.Now().UTC()
	key := OriginKey(completed)
	src := completed.Clone()

	return &Reminder{
		ID:                SuccessorID(key),
		CreatedBy:         src.CreatedBy,
		AssignedTo:        src.AssignedTo,
		Title:             src.Title,
		Message:           src.Message,
		FireAt:            nextFireAt.UTC(),
		IsRecurring:       src.IsRecurring,
		RecurrencePattern: src.RecurrencePattern,
		Priority:          src.Priority,
		ActionRequired:    src.ActionRequired,
		ActionURL:         src.ActionURL,
		Data:              src.Data,
		Status:            StatusScheduled,
		CreatedAt:         now,
		UpdatedAt:         now,
		OriginID:          src.ID,
		OriginKey:         key,
	}, nil
}

// Synthesize stores the successor of completed. Running it again for the
// same completed instance returns the existing successor with created set
// to false.
func (s *Synthesizer) Synthesize(ctx context.Context, completed *Reminder) (successor *Reminder, created bool, err error) {
	next, err := s.Successor(completed)
	if err != nil {
		return nil, false, err
	}

	err = s.store.Insert(ctx, next)
	if err == nil {
		return next, true, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return nil, false, fmt.Errorf("failed to store successor of %s: %w", completed.ID, err)
	}

	existing, err := s.store.FindByOrigin(ctx, next.OriginKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing successor of %s: %w", completed.ID, err)
	}
	return existing, false, nil
}
