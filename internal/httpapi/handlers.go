package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/notexe/reminderd/internal/reminder"
)

type CreateReminderRequest struct {
	AssignedTo        string            `json:"assigned_to"`
	Title             string            `json:"title"`
	Message           string            `json:"message"`
	FireAt            time.Time         `json:"fire_at"`
	IsRecurring       bool              `json:"is_recurring"`
	RecurrencePattern string            `json:"recurrence_pattern"`
	Priority          reminder.Priority `json:"priority"`
	ActionRequired    *bool             `json:"action_required"`
	ActionURL         *string           `json:"action_url"`
	Data              json.RawMessage   `json:"data"`
}

type UpdateReminderRequest struct {
	AssignedTo        *string            `json:"assigned_to"`
	Title             *string            `json:"title"`
	Message           *string            `json:"message"`
	FireAt            *time.Time         `json:"fire_at"`
	IsRecurring       *bool              `json:"is_recurring"`
	RecurrencePattern *string            `json:"recurrence_pattern"`
	Priority          *reminder.Priority `json:"priority"`
	ActionRequired    *bool              `json:"action_required"`
	ActionURL         *string            `json:"action_url"`
	Data              json.RawMessage    `json:"data"`
}

type CompletionResponse struct {
	Reminder       *reminder.Reminder `json:"reminder"`
	Successor      *reminder.Reminder `json:"successor,omitempty"`
	SuccessorError string             `json:"successor_error,omitempty"`
}

type ListRemindersResponse struct {
	Items []reminder.Reminder `json:"items"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func principalFrom(r *http.Request) reminder.Principal {
	p := reminder.Principal{ID: strings.TrimSpace(r.Header.Get(HeaderPrincipalID))}
	for _, role := range strings.Split(r.Header.Get(HeaderPrincipalRoles), ",") {
		if role = strings.TrimSpace(role); role != "" {
			p.Roles = append(p.Roles, reminder.Role(role))
		}
	}
	return p
}

func (a *App) createReminder(w http.ResponseWriter, r *http.Request) {
	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}

	created, err := a.Service.Create(r.Context(), principalFrom(r), reminder.Draft{
		AssignedTo:        req.AssignedTo,
		Title:             req.Title,
		Message:           req.Message,
		FireAt:            req.FireAt,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		Priority:          req.Priority,
		ActionRequired:    req.ActionRequired,
		ActionURL:         req.ActionURL,
		Data:              req.Data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *App) listReminders(w http.ResponseWriter, r *http.Request) {
	f, err := filterFrom(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	items, err := a.Service.List(r.Context(), principalFrom(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []reminder.Reminder{}
	}
	writeJSON(w, http.StatusOK, ListRemindersResponse{Items: items})
}

func (a *App) getReminder(w http.ResponseWriter, r *http.Request) {
	got, err := a.Service.Get(r.Context(), principalFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (a *App) updateReminder(w http.ResponseWriter, r *http.Request) {
	var req UpdateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}

	changes := reminder.Changes{
		AssignedTo:        req.AssignedTo,
		Title:             req.Title,
		Message:           req.Message,
		FireAt:            req.FireAt,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		Priority:          req.Priority,
		ActionRequired:    req.ActionRequired,
		ActionURL:         req.ActionURL,
	}
	if len(req.Data) > 0 {
		changes.Data = &req.Data
	}

	updated, err := a.Service.Update(r.Context(), principalFrom(r), chi.URLParam(r, "id"), changes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *App) deleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := a.Service.Delete(r.Context(), principalFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) completeReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := a.Service.Complete(r.Context(), principalFrom(r), id)
	if err != nil {
		writeError(w, reminder.HideOwnership(err, id))
		return
	}

	resp := CompletionResponse{Reminder: c.Reminder, Successor: c.Successor}
	if c.SuccessorErr != nil {
		resp.SuccessorError = c.SuccessorErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) acknowledgeReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	acked, err := a.Service.Acknowledge(r.Context(), principalFrom(r), id)
	if err != nil {
		writeError(w, reminder.HideOwnership(err, id))
		return
	}
	writeJSON(w, http.StatusOK, acked)
}

func (a *App) cancelReminder(w http.ResponseWriter, r *http.Request) {
	cancelled, err := a.Service.Cancel(r.Context(), principalFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

func (a *App) resynthesizeReminder(w http.ResponseWriter, r *http.Request) {
	successor, err := a.Service.Resynthesize(r.Context(), principalFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successor)
}

func filterFrom(r *http.Request) (reminder.Filter, error) {
	q := r.URL.Query()
	f := reminder.Filter{
		AssignedTo: q.Get("assigned_to"),
		CreatedBy:  q.Get("created_by"),
		Status:     reminder.Status(q.Get("status")),
		Priority:   reminder.Priority(q.Get("priority")),
		Limit:      50,
	}

	if v := q.Get("recurring"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("recurring must be true or false")
		}
		f.IsRecurring = &b
	}
	for name, dst := range map[string]**time.Time{"from": &f.FireAtFrom, "to": &f.FireAtTo} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, errors.New(name + " must be an RFC3339 time")
			}
			*dst = &t
		}
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, errors.New(name + " must be a non-negative integer")
			}
			*dst = n
		}
	}
	return f, nil
}

// writeError maps the service error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var ve *reminder.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: ve.Field})
	case errors.Is(err, reminder.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, reminder.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, reminder.ErrAlreadyTerminal),
		errors.Is(err, reminder.ErrAlreadyAcknowledged),
		errors.Is(err, reminder.ErrActionNotRequired),
		errors.Is(err, reminder.ErrStaleState),
		errors.Is(err, reminder.ErrPreconditionFailed),
		errors.Is(err, reminder.ErrDuplicate):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, reminder.ErrRecurrenceComputation):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: "store did not answer in time; the change may or may not have been applied"})
	default:
		log.Printf("[httpapi] Error: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
