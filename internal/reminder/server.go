package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "reminder"
	serverVersion = "2.0.0"
)

// Server is the MCP server for reminder management. Every tool acts as the
// principal configured at construction.
type Server struct {
	mcpServer *server.MCPServer
	service   *Service
	principal Principal
}

// NewServer creates a new Reminder MCP server backed by the given service.
func NewServer(service *Service, principal Principal) *Server {
	s := &Server{
		service:   service,
		principal: principal,
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	// add_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Schedule a reminder for a user (requires the scheduler role)"),
			mcp.WithString("assigned_to", mcp.Required(), mcp.Description("User the reminder is for")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
			mcp.WithString("message", mcp.Required(), mcp.Description("Reminder message")),
			mcp.WithString("fire_at", mcp.Required(), mcp.Description("Fire time in RFC3339 format (e.g. 2025-01-15T09:00:00Z), must be in the future")),
			mcp.WithString("priority", mcp.Description("Priority: low, medium, high, urgent (default: medium)")),
			mcp.WithString("recurrence", mcp.Description("Recurrence pattern: daily, weekly, monthly, yearly, 'every N days', or 'cron:<expr>'. Empty for one-off")),
			mcp.WithBoolean("action_required", mcp.Description("Whether the user must acknowledge (default: true)")),
			mcp.WithString("action_url", mcp.Description("Optional deep link")),
		),
		s.handleAddReminder,
	)

	// list_reminders
	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List reminders ordered by fire time, optionally filtered"),
			mcp.WithString("status", mcp.Description("Filter by status: scheduled, triggered, completed, cancelled")),
			mcp.WithString("assigned_to", mcp.Description("Filter by assignee")),
			mcp.WithString("priority", mcp.Description("Filter by priority")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of reminders (default: 50)")),
			mcp.WithNumber("offset", mcp.Description("Number of reminders to skip")),
		),
		s.handleListReminders,
	)

	// get_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("get_reminder",
			mcp.WithDescription("Get a reminder by ID"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleGetReminder,
	)

	// complete_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Mark a reminder assigned to you as completed; recurring reminders schedule their next occurrence"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCompleteReminder,
	)

	// acknowledge_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("acknowledge_reminder",
			mcp.WithDescription("Acknowledge a reminder assigned to you that requires action"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleAcknowledgeReminder,
	)

	// cancel_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("cancel_reminder",
			mcp.WithDescription("Cancel a scheduled or triggered reminder (requires the scheduler role)"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCancelReminder,
	)

	// delete_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder (requires the scheduler role)"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDeleteReminder,
	)

	// update_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("update_reminder",
			mcp.WithDescription("Update a reminder's fields (requires the scheduler role)"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("message", mcp.Description("New message")),
			mcp.WithString("fire_at", mcp.Description("New fire time in RFC3339 format (only while scheduled)")),
			mcp.WithString("priority", mcp.Description("New priority: low, medium, high, urgent")),
			mcp.WithString("recurrence", mcp.Description("New recurrence pattern; 'none' stops recurring")),
			mcp.WithString("action_url", mcp.Description("New deep link")),
		),
		s.handleUpdateReminder,
	)
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fireAtStr := req.GetString("fire_at", "")
	if fireAtStr == "" {
		return mcp.NewToolResultError("fire_at is required"), nil
	}

	fireAt, err := time.Parse(time.RFC3339, fireAtStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid fire_at format: %v (use RFC3339, e.g. 2025-01-15T09:00:00Z)", err)), nil
	}

	d := Draft{
		AssignedTo: req.GetString("assigned_to", ""),
		Title:      req.GetString("title", ""),
		Message:    req.GetString("message", ""),
		FireAt:     fireAt,
		Priority:   Priority(req.GetString("priority", "")),
	}
	if pattern := req.GetString("recurrence", ""); pattern != "" {
		d.IsRecurring = true
		d.RecurrencePattern = pattern
	}
	actionRequired := req.GetBool("action_required", true)
	d.ActionRequired = &actionRequired
	if u := req.GetString("action_url", ""); u != "" {
		d.ActionURL = &u
	}

	added, err := s.service.Create(ctx, s.principal, d)
	if err != nil {
		return toolError("add reminder", err), nil
	}

	return jsonResult(added), nil
}

func (s *Server) handleListReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := Filter{
		Status:     Status(req.GetString("status", "")),
		AssignedTo: req.GetString("assigned_to", ""),
		Priority:   Priority(req.GetString("priority", "")),
		Limit:      req.GetInt("limit", 50),
		Offset:     req.GetInt("offset", 0),
	}

	reminders, err := s.service.List(ctx, s.principal, f)
	if err != nil {
		return toolError("list reminders", err), nil
	}

	if len(reminders) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}

	return jsonResult(reminders), nil
}

func (s *Server) handleGetReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	r, err := s.service.Get(ctx, s.principal, id)
	if err != nil {
		return toolError("get reminder", err), nil
	}
	return jsonResult(r), nil
}

func (s *Server) handleCompleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	c, err := s.service.Complete(ctx, s.principal, id)
	if err != nil {
		return toolError("complete reminder", HideOwnership(err, id)), nil
	}

	msg := fmt.Sprintf("Reminder %s marked as completed.", id)
	switch {
	case c.Successor != nil:
		msg += fmt.Sprintf(" Next occurrence %s scheduled for %s.", c.Successor.ID, c.Successor.FireAt.Format(time.RFC3339))
	case c.SuccessorErr != nil:
		msg += fmt.Sprintf(" Warning: next occurrence could not be scheduled: %v", c.SuccessorErr)
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleAcknowledgeReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	if _, err := s.service.Acknowledge(ctx, s.principal, id); err != nil {
		return toolError("acknowledge reminder", HideOwnership(err, id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s acknowledged.", id)), nil
}

func (s *Server) handleCancelReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	if _, err := s.service.Cancel(ctx, s.principal, id); err != nil {
		return toolError("cancel reminder", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s cancelled.", id)), nil
}

func (s *Server) handleDeleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.service.Delete(ctx, s.principal, id); err != nil {
		return toolError("delete reminder", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s deleted.", id)), nil
}

func (s *Server) handleUpdateReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	var c Changes

	if v := req.GetString("title", ""); v != "" {
		c.Title = &v
	}
	if v := req.GetString("message", ""); v != "" {
		c.Message = &v
	}
	if v := req.GetString("fire_at", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid fire_at: %v", err)), nil
		}
		c.FireAt = &t
	}
	if v := req.GetString("priority", ""); v != "" {
		p := Priority(v)
		c.Priority = &p
	}
	if v := req.GetString("recurrence", ""); v != "" {
		recurring := v != "none"
		c.IsRecurring = &recurring
		if recurring {
			c.RecurrencePattern = &v
		}
	}
	if v := req.GetString("action_url", ""); v != "" {
		c.ActionURL = &v
	}

	updated, err := s.service.Update(ctx, s.principal, id, c)
	if err != nil {
		return toolError("update reminder", err), nil
	}

	return jsonResult(updated), nil
}

func requireID(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	id := req.GetString("id", "")
	if id == "" {
		return "", mcp.NewToolResultError("id is required")
	}
	return id, nil
}

func toolError(op string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", op, err))
}

// HideOwnership makes a disposition attempt on someone else's reminder read
// exactly like a missing id, error text included.
func HideOwnership(err error, id string) error {
	if errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	output, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(output))
}
