package dynamostore

import (
	"encoding/json"
	"time"

	"github.com/notexe/reminderd/internal/reminder"
)

// Item kinds sharing the table.
const (
	kindReminder = "reminder"
	kindOrigin   = "origin"
)

// timeLayout is fixed width so that stored timestamps compare lexically in
// filter expressions.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type item struct {
	ID                string  `dynamodbav:"id"`
	Kind              string  `dynamodbav:"kind"`
	CreatedBy         string  `dynamodbav:"created_by"`
	AssignedTo        string  `dynamodbav:"assigned_to"`
	Title             string  `dynamodbav:"title"`
	Message           string  `dynamodbav:"message"`
	FireAt            string  `dynamodbav:"fire_at"`
	IsRecurring       bool    `dynamodbav:"is_recurring"`
	RecurrencePattern string  `dynamodbav:"recurrence_pattern"`
	Priority          string  `dynamodbav:"priority"`
	ActionRequired    bool    `dynamodbav:"action_required"`
	ActionURL         *string `dynamodbav:"action_url,omitempty"`
	Data              string  `dynamodbav:"data,omitempty"`
	Status            string  `dynamodbav:"status"`
	TriggeredAt       *string `dynamodbav:"triggered_at,omitempty"`
	CompletedAt       *string `dynamodbav:"completed_at,omitempty"`
	AcknowledgedAt    *string `dynamodbav:"acknowledged_at,omitempty"`
	CreatedAt         string  `dynamodbav:"created_at"`
	UpdatedAt         string  `dynamodbav:"updated_at"`
	DeletedAt         *string `dynamodbav:"deleted_at,omitempty"`
	Version           int64   `dynamodbav:"version"`
	OriginID          string  `dynamodbav:"origin_id"`
	OriginKey         string  `dynamodbav:"origin_key,omitempty"`
}

// originMarker reserves an origin key. Its id is originPrefix + key.
type originMarker struct {
	ID          string `dynamodbav:"id"`
	Kind        string `dynamodbav:"kind"`
	SuccessorID string `dynamodbav:"successor_id"`
}

const originPrefix = "origin#"

func toItem(r *reminder.Reminder) item {
	it := item{
		ID:                r.ID,
		Kind:              kindReminder,
		CreatedBy:         r.CreatedBy,
		AssignedTo:        r.AssignedTo,
		Title:             r.Title,
		Message:           r.Message,
		FireAt:            formatTime(r.FireAt),
		IsRecurring:       r.IsRecurring,
		RecurrencePattern: r.RecurrencePattern,
		Priority:          string(r.Priority),
		ActionRequired:    r.ActionRequired,
		ActionURL:         r.ActionURL,
		Data:              string(r.Data),
		Status:            string(r.Status),
		TriggeredAt:       formatNullTime(r.TriggeredAt),
		CompletedAt:       formatNullTime(r.CompletedAt),
		AcknowledgedAt:    formatNullTime(r.AcknowledgedAt),
		CreatedAt:         formatTime(r.CreatedAt),
		UpdatedAt:         formatTime(r.UpdatedAt),
		DeletedAt:         formatNullTime(r.DeletedAt),
		Version:           r.Version,
		OriginID:          r.OriginID,
		OriginKey:         r.OriginKey,
	}
	return it
}

func (it item) reminder() reminder.Reminder {
	r := reminder.Reminder{
		ID:                it.ID,
		CreatedBy:         it.CreatedBy,
		AssignedTo:        it.AssignedTo,
		Title:             it.Title,
		Message:           it.Message,
		FireAt:            parseTime(it.FireAt),
		IsRecurring:       it.IsRecurring,
		RecurrencePattern: it.RecurrencePattern,
		Priority:          reminder.Priority(it.Priority),
		ActionRequired:    it.ActionRequired,
		ActionURL:         it.ActionURL,
		Status:            reminder.Status(it.Status),
		TriggeredAt:       parseNullTime(it.TriggeredAt),
		CompletedAt:       parseNullTime(it.CompletedAt),
		AcknowledgedAt:    parseNullTime(it.AcknowledgedAt),
		CreatedAt:         parseTime(it.CreatedAt),
		UpdatedAt:         parseTime(it.UpdatedAt),
		DeletedAt:         parseNullTime(it.DeletedAt),
		Version:           it.Version,
		OriginID:          it.OriginID,
		OriginKey:         it.OriginKey,
	}
	if it.Data != "" {
		r.Data = json.RawMessage(it.Data)
	}
	return r
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func formatNullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseNullTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseTime(*s)
	return &t
}
