package reminder

import (
	"errors"
	"fmt"
	"time"
)

// Store and lifecycle errors. Callers classify with errors.Is.
var (
	ErrNotFound           = errors.New("reminder not found")
	ErrDuplicate          = errors.New("reminder already exists")
	ErrPreconditionFailed = errors.New("reminder changed concurrently")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyTerminal    = errors.New("reminder is already completed or cancelled")
	ErrStaleState         = errors.New("reminder state is stale")

	// ErrAlreadyCompleted also matches ErrAlreadyTerminal.
	ErrAlreadyCompleted = fmt.Errorf("%w: already completed", ErrAlreadyTerminal)

	ErrAlreadyAcknowledged = errors.New("reminder already acknowledged")
	ErrActionNotRequired   = errors.New("reminder does not require action")
)

// Validation reasons. Every *ValidationError matches ErrValidation and
// exactly one of the reason sentinels.
var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidScheduleTime   = errors.New("fire time must be in the future")
	ErrMissingRecurrenceRule = errors.New("recurring reminder needs a recurrence pattern")
	ErrInvalidRecurrenceRule = errors.New("recurrence pattern is not understood")
	ErrMissingRequiredField  = errors.New("required field is missing")
	ErrInvalidField          = errors.New("field value is invalid")
	ErrImmutableField        = errors.New("field cannot be changed in the current state")
)

// ErrRecurrenceComputation is matched by every *RecurrenceComputationError.
var ErrRecurrenceComputation = errors.New("cannot compute next occurrence")

// ValidationError describes bad input. It is never retried automatically.
type ValidationError struct {
	Field  string
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %v", e.Field, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Reason}
}

func invalid(field string, reason error, detail string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Detail: detail}
}

// RecurrenceComputationError is reported when a successor cannot be
// synthesized for a completed recurring reminder.
type RecurrenceComputationError struct {
	OriginID string
	Pattern  string
	FireAt   time.Time
	Err      error
}

func (e *RecurrenceComputationError) Error() string {
	return fmt.Sprintf("recurrence for reminder %s (pattern %q, fire_at %s): %v",
		e.OriginID, e.Pattern, e.FireAt.Format(time.RFC3339), e.Err)
}

func (e *RecurrenceComputationError) Unwrap() []error {
	return []error{ErrRecurrenceComputation, e.Err}
}
