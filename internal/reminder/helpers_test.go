package reminder

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

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
	notices []Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice Notice) error {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) kinds() []Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Transition, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, notice.Kind)
	}
	return out
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []error
}

func (a *recordingAlerter) Alert(_ context.Context, _ string, err error) error {
	a.mu.Lock()
	a.alerts = append(a.alerts, err)
	a.mu.Unlock()
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

var (
	manager = Principal{ID: "manager-1", Roles: []Role{RoleScheduler}}
	alice   = Principal{ID: "alice"}
	bob     = Principal{ID: "bob"}
)

// storeFactories runs store-dependent tests against every Store.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reminders.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore failed: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func draftFor(assignee string, fireAt time.Time) Draft {
	return Draft{
		AssignedTo: assignee,
		Title:      "Submit timesheet",
		Message:    "Weekly timesheet is due",
		FireAt:     fireAt,
	}
}
