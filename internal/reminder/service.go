package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// maxTransitionAttempts bounds how often a lost compare-and-swap is
// re-evaluated against a fresh read before ErrStaleState is returned.
const maxTransitionAttempts = 3

// DefaultTimeout bounds each store round trip of a request operation.
const DefaultTimeout = 5 * time.Second

// Service is the lifecycle controller. Every operation validates, then
// authorizes, then writes through a conditional update.
type Service struct {
	store    Store
	guard    Guard
	clock    Clock
	notifier Notifier
	alerter  Alerter
	synth    *Synthesizer
	timeout  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithNotifier sets where transition notices are delivered.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAlerter sets the operator channel.
func WithAlerter(a Alerter) Option {
	return func(s *Service) { s.alerter = a }
}

// WithTimeout sets the per-operation store timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		clock:    SystemClock{},
		notifier: Discard{},
		alerter:  Discard{},
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.synth = NewSynthesizer(store, s.clock)
	return s
}

// Completion is the result of Complete. The completion stands even when
// SuccessorErr is set.
type Completion struct {
	Reminder     *Reminder `json:"reminder"`
	Successor    *Reminder `json:"successor,omitempty"`
	SuccessorErr error     `json:"-"`
}

// Create schedules a new reminder on behalf of p.
func (s *Service) Create(ctx context.Context, p Principal, d Draft) (*Reminder, error) {
	now := s.clock.Now().UTC()

	d, err := NormalizeDraft(d, now)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanCreate(p); err != nil {
		return nil, err
	}

	r := &Reminder{
		ID:                uuid.NewString(),
		CreatedBy:         p.ID,
		AssignedTo:        d.AssignedTo,
		Title:             d.Title,
		Message:           d.Message,
		FireAt:            d.FireAt.UTC(),
		IsRecurring:       d.IsRecurring,
		RecurrencePattern: d.RecurrencePattern,
		Priority:          d.Priority,
		ActionRequired:    *d.ActionRequired,
		ActionURL:         d.ActionURL,
		Data:              d.Data,
		Status:            StatusScheduled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.store.Insert(ctx, r); err != nil {
		return nil, err
	}

	Publish(ctx, s.notifier, Notice{Kind: TransitionCreated, Reminder: *r, At: now})
	return r, nil
}

// Get returns a reminder p may view. Reminders p may not view are reported
// as not found.
func (s *Service) Get(ctx context.Context, p Principal, id string) (*Reminder, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanView(p, r); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// List returns reminders matching f. Principals without the scheduler role
// only see reminders assigned to them.
func (s *Service) List(ctx context.Context, p Principal, f Filter) ([]Reminder, error) {
	if !p.Has(RoleScheduler) {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: anonymous principal", ErrUnauthorized)
		}
		f.AssignedTo = p.ID
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return s.store.Query(ctx, f)
}

// Update edits a non-terminal reminder.
func (s *Service) Update(ctx context.Context, p Principal, id string, c Changes) (*Reminder, error) {
	if err := s.guard.CanUpdateOrCancel(p); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status.Terminal() {
			return nil, fmt.Errorf("%w: cannot update a %s reminder", ErrAlreadyTerminal, cur.Status)
		}

		now := s.clock.Now().UTC()
		next, err := ApplyChanges(*cur, c, now)
		if err != nil {
			return nil, err
		}
		if c.Empty() {
			return cur, nil
		}
		next.UpdatedAt = now

		updated, err := s.store.ConditionalUpdate(ctx, id, ExpectOf(cur), &next)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrPreconditionFailed) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s changed %d times during update", ErrStaleState, id, maxTransitionAttempts)
}

// Complete marks a reminder completed. Only the assignee may complete it.
// For recurring reminders exactly one successor is synthesized; a failure
// to do so is logged and alerted but does not undo the completion.
func (s *Service) Complete(ctx context.Context, p Principal, id string) (*Completion, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	completed, err := s.transition(ctx, id, EventComplete, func(r *Reminder) error {
		return s.guard.CanComplete(p, r)
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	Publish(ctx, s.notifier, Notice{Kind: TransitionCompleted, Reminder: *completed, At: now})

	result := &Completion{Reminder: completed}
	if !completed.IsRecurring {
		return result, nil
	}

	successor, created, err := s.synth.Synthesize(ctx, completed)
	if err != nil {
		s.reportSynthesisFailure(ctx, completed, err)
		result.SuccessorErr = err
		return result, nil
	}

	result.Successor = successor
	if created {
		Publish(ctx, s.notifier, Notice{Kind: TransitionSuccessorScheduled, Reminder: *successor, At: now})
	}
	return result, nil
}

// Acknowledge records that the assignee has seen a reminder which requires
// action. The status does not change.
func (s *Service) Acknowledge(ctx context.Context, p Principal, id string) (*Reminder, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	r, err := s.transition(ctx, id, EventAcknowledge, func(r *Reminder) error {
		return s.guard.CanAcknowledge(p, r)
	})
	if err != nil {
		return nil, err
	}

	Publish(ctx, s.notifier, Notice{Kind: TransitionAcknowledged, Reminder: *r, At: s.clock.Now().UTC()})
	return r, nil
}

// Cancel moves a scheduled or triggered reminder to cancelled.
func (s *Service) Cancel(ctx context.Context, p Principal, id string) (*Reminder, error) {
	if err := s.guard.CanUpdateOrCancel(p); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	r, err := s.transition(ctx, id, EventCancel, func(*Reminder) error { return nil })
	if err != nil {
		return nil, err
	}

	Publish(ctx, s.notifier, Notice{Kind: TransitionCancelled, Reminder: *r, At: s.clock.Now().UTC()})
	return r, nil
}

// Delete soft-deletes a reminder in any state.
func (s *Service) Delete(ctx context.Context, p Principal, id string) error {
	if err := s.guard.CanDelete(p); err != nil {
		return err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return s.store.SoftDelete(ctx, id, s.clock.Now().UTC())
}

// Resynthesize retries successor synthesis for a completed recurring
// reminder. It is safe to call repeatedly.
func (s *Service) Resynthesize(ctx context.Context, p Principal, id string) (*Reminder, error) {
	if err := s.guard.CanUpdateOrCancel(p); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	successor, created, err := s.synth.Synthesize(ctx, cur)
	if err != nil {
		var rce *RecurrenceComputationError
		if errors.As(err, &rce) {
			s.reportSynthesisFailure(ctx, cur, err)
		}
		return nil, err
	}
	if created {
		Publish(ctx, s.notifier, Notice{Kind: TransitionSuccessorScheduled, Reminder: *successor, At: s.clock.Now().UTC()})
	}
	return successor, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now().UTC()
}

// Due returns up to limit scheduled reminders whose fire time is at or
// before now, oldest first. A limit of zero means no limit.
func (s *Service) Due(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return s.store.Query(ctx, Filter{Status: StatusScheduled, FireAtTo: &now, Limit: limit})
}

// Trigger promotes a due scheduled reminder to triggered. It acts for the
// system rather than a principal and is only called by the sweeper.
func (s *Service) Trigger(ctx context.Context, id string) (*Reminder, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	r, err := s.transition(ctx, id, EventTrigger, func(*Reminder) error { return nil })
	if err != nil {
		return nil, err
	}

	Publish(ctx, s.notifier, Notice{Kind: TransitionTriggered, Reminder: *r, At: s.clock.Now().UTC()})
	return r, nil
}

// transition applies ev to id under a compare-and-swap, re-reading and
// re-authorizing when a concurrent writer wins.
func (s *Service) transition(ctx context.Context, id string, ev Event, authorize func(*Reminder) error) (*Reminder, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := authorize(cur); err != nil {
			return nil, err
		}

		now := s.clock.Now().UTC()
		next, err := Apply(*cur, ev, now)
		if err != nil {
			return nil, err
		}
		next.UpdatedAt = now

		updated, err := s.store.ConditionalUpdate(ctx, id, ExpectOf(cur), &next)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrPreconditionFailed) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s changed %d times during %s", ErrStaleState, id, maxTransitionAttempts, ev)
}

func (s *Service) reportSynthesisFailure(ctx context.Context, origin *Reminder, err error) {
	log.Printf("[reminder] Error: successor of %s (pattern %q, fire_at %s, assigned_to %s) not created: %v",
		origin.ID, origin.RecurrencePattern, origin.FireAt.Format(time.RFC3339), origin.AssignedTo, err)

	subject := fmt.Sprintf("recurring reminder %s was completed but its next occurrence was not scheduled", origin.ID)
	if aerr := s.alerter.Alert(ctx, subject, err); aerr != nil {
		log.Printf("[reminder] Error: operator alert for %s failed: %v", origin.ID, aerr)
	}
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
