package reminder

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNormalizeDraftRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(d *Draft)
		want   error
	}{
		{"past fire time", func(d *Draft) { d.FireAt = t0.Add(-time.Minute) }, ErrInvalidScheduleTime},
		{"fire time equal to now", func(d *Draft) { d.FireAt = t0 }, ErrInvalidScheduleTime},
		{"recurring without pattern", func(d *Draft) { d.IsRecurring = true }, ErrMissingRecurrenceRule},
		{"recurring with blank pattern", func(d *Draft) { d.IsRecurring = true; d.RecurrencePattern = "  " }, ErrMissingRecurrenceRule},
		{"unparseable pattern", func(d *Draft) { d.IsRecurring = true; d.RecurrencePattern = "fortnightly-ish" }, ErrInvalidRecurrenceRule},
		{"empty title", func(d *Draft) { d.Title = "" }, ErrMissingRequiredField},
		{"whitespace message", func(d *Draft) { d.Message = " \t" }, ErrMissingRequiredField},
		{"missing assignee", func(d *Draft) { d.AssignedTo = "" }, ErrMissingRequiredField},
		{"unknown priority", func(d *Draft) { d.Priority = "critical" }, ErrInvalidField},
		{"invalid data", func(d *Draft) { d.Data = json.RawMessage(`{"a":`) }, ErrInvalidField},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := draftFor("alice", t0.Add(time.Hour))
			tt.mutate(&d)

			_, err := NormalizeDraft(d, t0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected error to match ErrValidation, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestNormalizeDraftNormalizes(t *testing.T) {
	t.Parallel()

	blank := "   "
	d := draftFor("alice", t0.Add(time.Hour))
	d.Title = "  Submit timesheet  "
	d.RecurrencePattern = "daily"
	d.ActionURL = &blank
	d.Data = json.RawMessage(" null ")

	got, err := NormalizeDraft(d, t0)
	if err != nil {
		t.Fatalf("NormalizeDraft failed: %v", err)
	}

	if got.Title != "Submit timesheet" {
		t.Errorf("expected trimmed title, got %q", got.Title)
	}
	if got.RecurrencePattern != "" {
		t.Errorf("expected pattern cleared for non-recurring reminder, got %q", got.RecurrencePattern)
	}
	if got.ActionURL != nil {
		t.Errorf("expected blank action URL to become absent, got %q", *got.ActionURL)
	}
	if got.Data != nil {
		t.Errorf("expected null data to become absent, got %s", got.Data)
	}
	if got.Priority != PriorityMedium {
		t.Errorf("expected default priority medium, got %s", got.Priority)
	}
	if got.ActionRequired == nil || !*got.ActionRequired {
		t.Error("expected action_required to default to true")
	}
}

func TestApplyChanges(t *testing.T) {
	t.Parallel()

	base := Reminder{
		ID:             "r1",
		AssignedTo:     "alice",
		Title:          "Title",
		Message:        "Message",
		FireAt:         t0.Add(2 * time.Hour),
		Priority:       PriorityLow,
		ActionRequired: true,
		Status:         StatusScheduled,
	}

	t.Run("reschedule into the past", func(t *testing.T) {
		past := t0.Add(-time.Hour)
		_, err := ApplyChanges(base, Changes{FireAt: &past}, t0)
		if !errors.Is(err, ErrInvalidScheduleTime) {
			t.Fatalf("expected ErrInvalidScheduleTime, got %v", err)
		}
	})

	t.Run("reschedule after trigger", func(t *testing.T) {
		triggered := base
		triggered.Status = StatusTriggered
		later := t0.Add(5 * time.Hour)
		_, err := ApplyChanges(triggered, Changes{FireAt: &later}, t0)
		if !errors.Is(err, ErrImmutableField) {
			t.Fatalf("expected ErrImmutableField, got %v", err)
		}
	})

	t.Run("turning recurrence off clears the pattern", func(t *testing.T) {
		recurring := base
		recurring.IsRecurring = true
		recurring.RecurrencePattern = "weekly"
		off := false
		got, err := ApplyChanges(recurring, Changes{IsRecurring: &off}, t0)
		if err != nil {
			t.Fatalf("ApplyChanges failed: %v", err)
		}
		if got.RecurrencePattern != "" {
			t.Errorf("expected cleared pattern, got %q", got.RecurrencePattern)
		}
	})

	t.Run("turning recurrence on requires a pattern", func(t *testing.T) {
		on := true
		_, err := ApplyChanges(base, Changes{IsRecurring: &on}, t0)
		if !errors.Is(err, ErrMissingRecurrenceRule) {
			t.Fatalf("expected ErrMissingRecurrenceRule, got %v", err)
		}
	})

	t.Run("action not required after acknowledgment", func(t *testing.T) {
		acked := base
		at := t0
		acked.AcknowledgedAt = &at
		no := false
		_, err := ApplyChanges(acked, Changes{ActionRequired: &no}, t0)
		if !errors.Is(err, ErrImmutableField) {
			t.Fatalf("expected ErrImmutableField, got %v", err)
		}
	})

	t.Run("does not modify the input", func(t *testing.T) {
		title := "New title"
		got, err := ApplyChanges(base, Changes{Title: &title}, t0)
		if err != nil {
			t.Fatalf("ApplyChanges failed: %v", err)
		}
		if got.Title != title || base.Title != "Title" {
			t.Errorf("unexpected titles: got %q, base %q", got.Title, base.Title)
		}
	})
}
