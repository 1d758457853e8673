package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/notexe/reminderd/internal/reminder"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

var (
	manager = reminder.Principal{ID: "manager-1", Roles: []reminder.Role{reminder.RoleScheduler}}
	alice   = reminder.Principal{ID: "alice"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []reminder.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice reminder.Notice) error {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) count(kind reminder.Transition) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, notice := range n.notices {
		if notice.Kind == kind {
			c++
		}
	}
	return c
}

// hookStore lets a test interfere between the due read and the trigger.
type hookStore struct {
	*reminder.MemoryStore
	afterQuery func()
	failID     string
}

func (s *hookStore) Query(ctx context.Context, f reminder.Filter) ([]reminder.Reminder, error) {
	rs, err := s.MemoryStore.Query(ctx, f)
	if s.afterQuery != nil {
		s.afterQuery()
	}
	return rs, err
}

func (s *hookStore) ConditionalUpdate(ctx context.Context, id string, expect reminder.Expect, next *reminder.Reminder) (*reminder.Reminder, error) {
	if id == s.failID {
		return nil, errors.New("disk on fire")
	}
	return s.MemoryStore.ConditionalUpdate(ctx, id, expect, next)
}

func newSweeper(t *testing.T, store reminder.Store, batch int) (*Sweeper, *reminder.Service, *fakeClock, *recordingNotifier) {
	t.Helper()
	clock := &fakeClock{now: t0}
	notifier := &recordingNotifier{}
	svc := reminder.NewService(store, reminder.WithClock(clock), reminder.WithNotifier(notifier))
	return New(svc, Config{Interval: time.Minute, BatchSize: batch}), svc, clock, notifier
}

func create(t *testing.T, svc *reminder.Service, fireAt time.Time) *reminder.Reminder {
	t.Helper()
	r, err := svc.Create(context.Background(), manager, reminder.Draft{
		AssignedTo: "alice",
		Title:      "Renew certificate",
		Message:    "TLS certificate expires soon",
		FireAt:     fireAt,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return r
}

func TestSweepTriggersDueReminders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sw, svc, clock, notifier := newSweeper(t, reminder.NewMemoryStore(), 0)

	due := create(t, svc, t0.Add(time.Hour))
	later := create(t, svc, t0.Add(3*time.Hour))

	res, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res.Due != 0 {
		t.Fatalf("nothing should be due yet, got %+v", res)
	}

	clock.Advance(90 * time.Minute)
	res, err = sw.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res != (SweepResult{Due: 1, Triggered: 1}) {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, _ := svc.Get(ctx, manager, due.ID)
	if got.Status != reminder.StatusTriggered || got.TriggeredAt == nil || !got.TriggeredAt.Equal(clock.Now()) {
		t.Errorf("expected triggered at %s, got %+v", clock.Now(), got)
	}
	other, _ := svc.Get(ctx, manager, later.ID)
	if other.Status != reminder.StatusScheduled {
		t.Errorf("reminder not yet due must stay scheduled, got %s", other.Status)
	}
	if n := notifier.count(reminder.TransitionTriggered); n != 1 {
		t.Errorf("expected one triggered notice, got %d", n)
	}

	// A second pass finds nothing new.
	res, _ = sw.Sweep(ctx)
	if res.Due != 0 {
		t.Errorf("expected nothing due on second pass, got %+v", res)
	}

	c, err := svc.Complete(ctx, alice, due.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if c.Reminder.Status != reminder.StatusCompleted || c.Successor != nil {
		t.Errorf("expected completed without successor, got %+v", c)
	}
}

func TestSweepSkipsLostRace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		race   func(ctx context.Context, svc *reminder.Service, id string) error
		status reminder.Status
	}{
		{
			name: "completed by assignee",
			race: func(ctx context.Context, svc *reminder.Service, id string) error {
				_, err := svc.Complete(ctx, alice, id)
				return err
			},
			status: reminder.StatusCompleted,
		},
		{
			name: "rescheduled by manager",
			race: func(ctx context.Context, svc *reminder.Service, id string) error {
				later := t0.Add(5 * time.Hour)
				_, err := svc.Update(ctx, manager, id, reminder.Changes{FireAt: &later})
				return err
			},
			status: reminder.StatusScheduled,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := &hookStore{MemoryStore: reminder.NewMemoryStore()}
			sw, svc, clock, _ := newSweeper(t, store, 0)

			r := create(t, svc, t0.Add(time.Hour))
			clock.Advance(2 * time.Hour)

			// Another actor moves the reminder between the due read and the trigger.
			store.afterQuery = func() {
				store.afterQuery = nil
				if err := tt.race(ctx, svc, r.ID); err != nil {
					t.Errorf("concurrent change failed: %v", err)
				}
			}

			res, err := sw.Sweep(ctx)
			if err != nil {
				t.Fatalf("Sweep failed: %v", err)
			}
			if res != (SweepResult{Due: 1, Skipped: 1}) {
				t.Fatalf("expected the lost race to be skipped, got %+v", res)
			}

			got, _ := svc.Get(ctx, manager, r.ID)
			if got.Status != tt.status || got.TriggeredAt != nil {
				t.Errorf("the concurrent change must win untouched, got %+v", got)
			}
		})
	}
}

func TestSweepIsolatesFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &hookStore{MemoryStore: reminder.NewMemoryStore()}
	sw, svc, clock, _ := newSweeper(t, store, 0)

	first := create(t, svc, t0.Add(time.Hour))
	second := create(t, svc, t0.Add(2*time.Hour))
	store.failID = first.ID
	clock.Advance(3 * time.Hour)

	res, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res != (SweepResult{Due: 2, Triggered: 1, Failed: 1}) {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, _ := svc.Get(ctx, manager, second.ID)
	if got.Status != reminder.StatusTriggered {
		t.Errorf("a failure on one reminder must not stop the rest, got %s", got.Status)
	}
}

func TestSweepHonoursBatchSize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sw, svc, clock, _ := newSweeper(t, reminder.NewMemoryStore(), 2)

	for i := 1; i <= 3; i++ {
		create(t, svc, t0.Add(time.Duration(i)*time.Minute))
	}
	clock.Advance(time.Hour)

	res, _ := sw.Sweep(ctx)
	if res.Triggered != 2 {
		t.Fatalf("expected the first batch of 2, got %+v", res)
	}
	res, _ = sw.Sweep(ctx)
	if res.Triggered != 1 {
		t.Fatalf("expected the remaining reminder, got %+v", res)
	}
}

func TestRunRejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()

	sw := New(reminder.NewService(reminder.NewMemoryStore()), Config{})
	if err := sw.Run(context.Background()); err == nil {
		t.Fatal("expected an error for a zero interval")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	sw, _, _, _ := newSweeper(t, reminder.NewMemoryStore(), 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
