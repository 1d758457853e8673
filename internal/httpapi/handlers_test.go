package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/notexe/reminderd/internal/reminder"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := reminder.NewService(reminder.NewMemoryStore(), reminder.WithClock(fixedClock{now}))
	return NewRouter(&App{Service: svc}, []string{"*"})
}

func do(t *testing.T, h http.Handler, method, path, principal, roles string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(HeaderPrincipalID, principal)
	}
	if roles != "" {
		req.Header.Set(HeaderPrincipalRoles, roles)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func createDaily(t *testing.T, h http.Handler) reminder.Reminder {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/reminders", "mgr", "scheduler", CreateReminderRequest{
		AssignedTo:        "alice",
		Title:             "Standup",
		Message:           "Daily standup",
		FireAt:            now.Add(time.Hour),
		IsRecurring:       true,
		RecurrencePattern: "daily",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[reminder.Reminder](t, rec)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateAndComplete(t *testing.T) {
	h := newTestRouter(t)
	created := createDaily(t, h)

	if created.Status != reminder.StatusScheduled {
		t.Errorf("expected scheduled, got %s", created.Status)
	}

	rec := do(t, h, http.MethodPost, "/reminders/"+created.ID+"/complete", "alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[CompletionResponse](t, rec)
	if resp.Reminder == nil || resp.Reminder.Status != reminder.StatusCompleted {
		t.Fatalf("expected completed reminder, got %+v", resp.Reminder)
	}
	if resp.Successor == nil {
		t.Fatal("expected a successor for a daily reminder")
	}
	if want := created.FireAt.Add(24 * time.Hour); !resp.Successor.FireAt.Equal(want) {
		t.Errorf("expected successor at %s, got %s", want, resp.Successor.FireAt)
	}

	rec = do(t, h, http.MethodPost, "/reminders/"+created.ID+"/complete", "alice", "", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second complete: expected 409, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/reminders?assigned_to=alice", "alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	list := decode[ListRemindersResponse](t, rec)
	if len(list.Items) != 2 {
		t.Errorf("expected original and successor, got %d items", len(list.Items))
	}
}

func TestCompleteHidesOtherUsersReminders(t *testing.T) {
	h := newTestRouter(t)
	created := createDaily(t, h)

	const missingID = "does-not-exist"

	for _, action := range []string{"complete", "acknowledge"} {
		foreign := do(t, h, http.MethodPost, "/reminders/"+created.ID+"/"+action, "bob", "", nil)
		if foreign.Code != http.StatusNotFound {
			t.Errorf("%s by non-assignee: expected 404, got %d", action, foreign.Code)
		}
		missing := do(t, h, http.MethodPost, "/reminders/"+missingID+"/"+action, "bob", "", nil)
		if missing.Code != http.StatusNotFound {
			t.Errorf("%s of missing id: expected 404, got %d", action, missing.Code)
		}

		// The two responses may differ only by the id the caller sent.
		want := strings.ReplaceAll(missing.Body.String(), missingID, created.ID)
		if got := foreign.Body.String(); got != want {
			t.Errorf("%s: foreign reminder body %q differs from missing reminder body %q", action, got, want)
		}
	}

	rec := do(t, h, http.MethodPost, "/reminders/"+created.ID+"/cancel", "bob", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("cancel without scheduler role: expected 403, got %d", rec.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name  string
		req   CreateReminderRequest
		field string
	}{
		{
			name:  "missing message",
			req:   CreateReminderRequest{AssignedTo: "alice", Title: "x", FireAt: now.Add(time.Hour)},
			field: "message",
		},
		{
			name:  "past fire time",
			req:   CreateReminderRequest{AssignedTo: "alice", Title: "x", Message: "y", FireAt: now.Add(-time.Minute)},
			field: "fire_at",
		},
		{
			name:  "recurring without pattern",
			req:   CreateReminderRequest{AssignedTo: "alice", Title: "x", Message: "y", FireAt: now.Add(time.Hour), IsRecurring: true},
			field: "recurrence_pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/reminders", "mgr", "scheduler", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, resp.Field)
			}
		})
	}
}

func TestCreateRequiresScheduler(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/reminders", "alice", "", CreateReminderRequest{
		AssignedTo: "alice",
		Title:      "x",
		Message:    "y",
		FireAt:     now.Add(time.Hour),
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	h := newTestRouter(t)
	created := createDaily(t, h)

	title := "Retro"
	rec := do(t, h, http.MethodPatch, "/reminders/"+created.ID, "mgr", "scheduler", UpdateReminderRequest{Title: &title})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[reminder.Reminder](t, rec); got.Title != "Retro" {
		t.Errorf("expected title Retro, got %q", got.Title)
	}

	rec = do(t, h, http.MethodDelete, "/reminders/"+created.ID, "mgr", "scheduler", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/reminders/"+created.ID, "mgr", "scheduler", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestListRejectsBadQuery(t *testing.T) {
	h := newTestRouter(t)

	for _, q := range []string{"recurring=maybe", "from=yesterday", "limit=-1"} {
		rec := do(t, h, http.MethodGet, "/reminders?"+q, "mgr", "scheduler", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestInvalidJSON(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/reminders", bytes.NewBufferString("{"))
	req.Header.Set(HeaderPrincipalID, "mgr")
	req.Header.Set(HeaderPrincipalRoles, "scheduler")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
