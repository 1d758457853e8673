package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/notexe/reminderd/internal/reminder"
	"github.com/notexe/reminderd/internal/scheduler"
)

var (
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")). // Coral red
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")) // Warm yellow

	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")). // Green
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")). // Yellow
			Bold(true)

	BorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")) // Soft blue
)

var priorityStyles = map[reminder.Priority]lipgloss.Style{
	reminder.PriorityLow:    DimStyle,
	reminder.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	reminder.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("215")),
	reminder.PriorityUrgent: ErrorStyle,
}

var statusStyles = map[reminder.Status]lipgloss.Style{
	reminder.StatusScheduled: InfoStyle,
	reminder.StatusTriggered: WarningStyle,
	reminder.StatusCompleted: SuccessStyle,
	reminder.StatusCancelled: DimStyle,
}

type Formatter struct {
	colored bool
}

func NewFormatter(colored bool) *Formatter {
	return &Formatter{colored: colored}
}

func (f *Formatter) style(s lipgloss.Style, text string) string {
	if !f.colored {
		return text
	}
	return s.Render(text)
}

func (f *Formatter) FormatError(err error) string {
	return f.style(ErrorStyle, "Error: ") + err.Error()
}

func (f *Formatter) FormatInfo(info string) string {
	return f.style(InfoStyle, info)
}

// FormatReminders renders rs as a bordered table ordered as given.
func (f *Formatter) FormatReminders(rs []reminder.Reminder) string {
	if len(rs) == 0 {
		return f.style(DimStyle, "No reminders found.")
	}

	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{
			shortID(r.ID),
			r.FireAt.Format("2006-01-02 15:04"),
			string(r.Status),
			string(r.Priority),
			r.AssignedTo,
			truncate(r.Title, 40),
			recurrenceLabel(r),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "FIRES", "STATUS", "PRIORITY", "ASSIGNEE", "TITLE", "REPEATS").
		Rows(rows...)

	if f.colored {
		t = t.BorderStyle(BorderStyle).StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Inherit(HeaderStyle)
			}
			if row < 0 || row >= len(rs) {
				return base
			}
			r := rs[row]
			switch col {
			case 2:
				return base.Inherit(statusStyles[r.Status])
			case 3:
				return base.Inherit(priorityStyles[r.Priority])
			}
			return base
		})
	}

	return t.Render()
}

// FormatReminder renders every field of one reminder.
func (f *Formatter) FormatReminder(r reminder.Reminder) string {
	var sb strings.Builder

	sb.WriteString(f.style(HeaderStyle, r.Title))
	sb.WriteString("\n")
	sb.WriteString(r.Message)
	sb.WriteString("\n\n")

	field := func(label, value string) {
		fmt.Fprintf(&sb, "%s %s\n", f.style(DimStyle, fmt.Sprintf("%-14s", label+":")), value)
	}
	field("ID", r.ID)
	field("Status", f.style(statusStyles[r.Status], string(r.Status)))
	field("Priority", f.style(priorityStyles[r.Priority], string(r.Priority)))
	field("Assigned to", r.AssignedTo)
	field("Created by", r.CreatedBy)
	field("Fires", r.FireAt.Format(time.RFC3339))
	field("Repeats", recurrenceLabel(r))
	field("Action", actionLabel(r))
	if r.ActionURL != nil {
		field("Link", *r.ActionURL)
	}
	if r.TriggeredAt != nil {
		field("Triggered", r.TriggeredAt.Format(time.RFC3339))
	}
	if r.CompletedAt != nil {
		field("Completed", r.CompletedAt.Format(time.RFC3339))
	}
	if r.OriginID != "" {
		field("Follows", r.OriginID)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// FormatSweep summarizes one sweeper pass.
func (f *Formatter) FormatSweep(res scheduler.SweepResult) string {
	line := fmt.Sprintf("%d due, %d triggered, %d skipped, %d failed", res.Due, res.Triggered, res.Skipped, res.Failed)
	if res.Failed > 0 {
		return f.style(WarningStyle, line)
	}
	return f.style(SuccessStyle, line)
}

func recurrenceLabel(r reminder.Reminder) string {
	if !r.IsRecurring {
		return "-"
	}
	return r.RecurrencePattern
}

func actionLabel(r reminder.Reminder) string {
	switch {
	case !r.ActionRequired:
		return "none"
	case r.AcknowledgedAt != nil:
		return "acknowledged " + r.AcknowledgedAt.Format(time.RFC3339)
	default:
		return "awaiting acknowledgment"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
