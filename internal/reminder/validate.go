package reminder

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// NormalizeDraft validates a create payload and returns its normalized form.
// It has no side effects.
func NormalizeDraft(d Draft, now time.Time) (Draft, error) {
	d.AssignedTo = strings.TrimSpace(d.AssignedTo)
	d.Title = strings.TrimSpace(d.Title)
	d.Message = strings.TrimSpace(d.Message)

	if d.AssignedTo == "" {
		return Draft{}, invalid("assigned_to", ErrMissingRequiredField, "")
	}
	if err := checkText(d.Title, d.Message); err != nil {
		return Draft{}, err
	}
	if !d.FireAt.After(now) {
		return Draft{}, invalid("fire_at", ErrInvalidScheduleTime,
			"got "+d.FireAt.UTC().Format(time.RFC3339)+", now is "+now.UTC().Format(time.RFC3339))
	}

	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if !d.Priority.Valid() {
		return Draft{}, invalid("priority", ErrInvalidField, "use low, medium, high or urgent")
	}

	pattern, err := normalizePattern(d.IsRecurring, d.RecurrencePattern)
	if err != nil {
		return Draft{}, err
	}
	d.RecurrencePattern = pattern

	if d.ActionRequired == nil {
		t := true
		d.ActionRequired = &t
	}
	d.ActionURL = normalizeURL(d.ActionURL)

	data, err := normalizeData(d.Data)
	if err != nil {
		return Draft{}, err
	}
	d.Data = data

	return d, nil
}

// ApplyChanges returns cur with c applied, validated and normalized. now is
// used to check that a rescheduled fire time lies in the future.
func ApplyChanges(cur Reminder, c Changes, now time.Time) (Reminder, error) {
	next := cur.Clone()

	if c.AssignedTo != nil {
		next.AssignedTo = strings.TrimSpace(*c.AssignedTo)
		if next.AssignedTo == "" {
			return Reminder{}, invalid("assigned_to", ErrMissingRequiredField, "")
		}
	}
	if c.Title != nil {
		next.Title = strings.TrimSpace(*c.Title)
	}
	if c.Message != nil {
		next.Message = strings.TrimSpace(*c.Message)
	}
	if err := checkText(next.Title, next.Message); err != nil {
		return Reminder{}, err
	}

	if c.FireAt != nil && !c.FireAt.Equal(cur.FireAt) {
		if cur.Status != StatusScheduled {
			return Reminder{}, invalid("fire_at", ErrImmutableField, "reminder is "+string(cur.Status))
		}
		if !c.FireAt.After(now) {
			return Reminder{}, invalid("fire_at", ErrInvalidScheduleTime,
				"got "+c.FireAt.UTC().Format(time.RFC3339))
		}
		next.FireAt = c.FireAt.UTC()
	}

	if c.Priority != nil {
		if !c.Priority.Valid() {
			return Reminder{}, invalid("priority", ErrInvalidField, "use low, medium, high or urgent")
		}
		next.Priority = *c.Priority
	}

	if c.IsRecurring != nil {
		next.IsRecurring = *c.IsRecurring
	}
	if c.RecurrencePattern != nil {
		next.RecurrencePattern = *c.RecurrencePattern
	}
	pattern, err := normalizePattern(next.IsRecurring, next.RecurrencePattern)
	if err != nil {
		return Reminder{}, err
	}
	next.RecurrencePattern = pattern

	if c.ActionRequired != nil {
		if !*c.ActionRequired && cur.AcknowledgedAt != nil {
			return Reminder{}, invalid("action_required", ErrImmutableField, "reminder was already acknowledged")
		}
		next.ActionRequired = *c.ActionRequired
	}
	if c.ActionURL != nil {
		next.ActionURL = normalizeURL(c.ActionURL)
	}
	if c.Data != nil {
		data, err := normalizeData(*c.Data)
		if err != nil {
			return Reminder{}, err
		}
		next.Data = data
	}

	return next, nil
}

func checkText(title, message string) error {
	if title == "" {
		return invalid("title", ErrMissingRequiredField, "")
	}
	if message == "" {
		return invalid("message", ErrMissingRequiredField, "")
	}
	return nil
}

func normalizePattern(recurring bool, pattern string) (string, error) {
	if !recurring {
		return "", nil
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return "", invalid("recurrence_pattern", ErrMissingRecurrenceRule, "")
	}
	if _, err := ParsePattern(pattern); err != nil {
		return "", invalid("recurrence_pattern", ErrInvalidRecurrenceRule, err.Error())
	}
	return pattern, nil
}

func normalizeURL(u *string) *string {
	if u == nil {
		return nil
	}
	v := strings.TrimSpace(*u)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeData(data json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, invalid("data", ErrInvalidField, "must be valid JSON")
	}
	return append(json.RawMessage(nil), trimmed...), nil
}
