package reminder

import (
	"encoding/json"
	"sort"
	"time"
)

// Priority levels for reminders.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status values for reminders.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusTriggered Status = "triggered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusTriggered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Reminder represents a point-in-time notification scheduled for one user.
type Reminder struct {
	ID                string          `json:"id"`
	CreatedBy         string          `json:"created_by"`
	AssignedTo        string          `json:"assigned_to"`
	Title             string          `json:"title"`
	Message           string          `json:"message"`
	FireAt            time.Time       `json:"fire_at"`
	IsRecurring       bool            `json:"is_recurring"`
	RecurrencePattern string          `json:"recurrence_pattern,omitempty"`
	Priority          Priority        `json:"priority"`
	ActionRequired    bool            `json:"action_required"`
	ActionURL         *string         `json:"action_url,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	Status            Status          `json:"status"`
	TriggeredAt       *time.Time      `json:"triggered_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	AcknowledgedAt    *time.Time      `json:"acknowledged_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         *time.Time      `json:"deleted_at,omitempty"`

	// Version is bumped by the store on every write and guards
	// conditional updates together with Status.
	Version int64 `json:"version"`

	// OriginID and OriginKey are set only on successors produced by
	// recurrence synthesis.
	OriginID  string `json:"origin_id,omitempty"`
	OriginKey string `json:"origin_key,omitempty"`
}

// Clone returns a deep copy of r.
func (r Reminder) Clone() Reminder {
	c := r
	c.ActionURL = cloneString(r.ActionURL)
	c.TriggeredAt = cloneTime(r.TriggeredAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.AcknowledgedAt = cloneTime(r.AcknowledgedAt)
	c.DeletedAt = cloneTime(r.DeletedAt)
	if r.Data != nil {
		c.Data = append(json.RawMessage(nil), r.Data...)
	}
	return c
}

// Draft is the payload for creating a reminder.
type Draft struct {
	AssignedTo        string          `json:"assigned_to"`
	Title             string          `json:"title"`
	Message           string          `json:"message"`
	FireAt            time.Time       `json:"fire_at"`
	IsRecurring       bool            `json:"is_recurring"`
	RecurrencePattern string          `json:"recurrence_pattern,omitempty"`
	Priority          Priority        `json:"priority,omitempty"`
	ActionRequired    *bool           `json:"action_required,omitempty"` // nil means true
	ActionURL         *string         `json:"action_url,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
}

// Changes holds optional fields for a partial update. Nil fields are left
// untouched.
type Changes struct {
	AssignedTo        *string          `json:"assigned_to,omitempty"`
	Title             *string          `json:"title,omitempty"`
	Message           *string          `json:"message,omitempty"`
	FireAt            *time.Time       `json:"fire_at,omitempty"`
	IsRecurring       *bool            `json:"is_recurring,omitempty"`
	RecurrencePattern *string          `json:"recurrence_pattern,omitempty"`
	Priority          *Priority        `json:"priority,omitempty"`
	ActionRequired    *bool            `json:"action_required,omitempty"`
	ActionURL         *string          `json:"action_url,omitempty"`
	Data              *json.RawMessage `json:"data,omitempty"`
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.AssignedTo == nil && c.Title == nil && c.Message == nil &&
		c.FireAt == nil && c.IsRecurring == nil && c.RecurrencePattern == nil &&
		c.Priority == nil && c.ActionRequired == nil && c.ActionURL == nil &&
		c.Data == nil
}

// Filter selects reminders in Store.Query. Zero values mean "any".
type Filter struct {
	AssignedTo  string
	CreatedBy   string
	Status      Status
	Priority    Priority
	IsRecurring *bool
	FireAtFrom  *time.Time
	FireAtTo    *time.Time // inclusive
	Limit       int
	Offset      int
}

// Matches reports whether r satisfies f, ignoring Limit and Offset.
func (f Filter) Matches(r *Reminder) bool {
	if r.DeletedAt != nil {
		return false
	}
	if f.AssignedTo != "" && r.AssignedTo != f.AssignedTo {
		return false
	}
	if f.CreatedBy != "" && r.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.IsRecurring != nil && r.IsRecurring != *f.IsRecurring {
		return false
	}
	if f.FireAtFrom != nil && r.FireAt.Before(*f.FireAtFrom) {
		return false
	}
	if f.FireAtTo != nil && r.FireAt.After(*f.FireAtTo) {
		return false
	}
	return true
}

// Page orders rs by fire time, then id, and applies Limit and Offset. It
// sorts rs in place.
func (f Filter) Page(rs []Reminder) []Reminder {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].FireAt.Equal(rs[j].FireAt) {
			return rs[i].FireAt.Before(rs[j].FireAt)
		}
		return rs[i].ID < rs[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(rs) {
			return nil
		}
		rs = rs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(rs) {
		rs = rs[:f.Limit]
	}
	return rs
}

// Expect is the precondition of a conditional update.
type Expect struct {
	Status  Status
	Version int64
}

// ExpectOf returns the precondition matching r's current state.
func ExpectOf(r *Reminder) Expect {
	return Expect{Status: r.Status, Version: r.Version}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
