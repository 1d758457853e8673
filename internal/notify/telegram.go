package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/notexe/reminderd/internal/reminder"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends notices and operator alerts via the Telegram Bot API.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegram creates a new Telegram sender.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type telegramSendRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Notify formats n as an HTML message.
func (t *Telegram) Notify(ctx context.Context, n reminder.Notice) error {
	return t.SendMessage(ctx, FormatNotice(n))
}

// Alert sends an operator alert to the same chat.
func (t *Telegram) Alert(ctx context.Context, subject string, err error) error {
	text := fmt.Sprintf("⚠️ <b>%s</b>\n%s", html.EscapeString(subject), html.EscapeString(err.Error()))
	return t.SendMessage(ctx, text)
}

// SendMessage sends an HTML message to the configured chat.
func (t *Telegram) SendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	payload := telegramSendRequest{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read telegram response: %w", err)
	}

	var tgResp telegramResponse
	if err := json.Unmarshal(respBody, &tgResp); err != nil {
		return fmt.Errorf("failed to parse telegram response: %w", err)
	}

	if !tgResp.OK {
		return fmt.Errorf("telegram API error: %s", tgResp.Description)
	}

	return nil
}

var priorityIcon = map[reminder.Priority]string{
	reminder.PriorityLow:    "🔵",
	reminder.PriorityMedium: "🟢",
	reminder.PriorityHigh:   "🟠",
	reminder.PriorityUrgent: "🔴",
}

// FormatNotice renders n as Telegram HTML.
func FormatNotice(n reminder.Notice) string {
	r := n.Reminder

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b> [%s]\n", priorityIcon[r.Priority], html.EscapeString(r.Title), n.Kind)
	sb.WriteString(html.EscapeString(r.Message))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "For: %s\n", html.EscapeString(r.AssignedTo))
	fmt.Fprintf(&sb, "Fires: %s\n", r.FireAt.Format("2006-01-02 15:04 MST"))
	if r.IsRecurring {
		fmt.Fprintf(&sb, "Repeats: %s\n", html.EscapeString(r.RecurrencePattern))
	}
	if r.ActionRequired && r.AcknowledgedAt == nil && n.Kind == reminder.TransitionTriggered {
		sb.WriteString("Action required\n")
	}
	if r.ActionURL != nil {
		fmt.Fprintf(&sb, "<a href=\"%s\">Open</a>\n", html.EscapeString(*r.ActionURL))
	}
	fmt.Fprintf(&sb, "ID: <code>%s</code>", r.ID)
	return sb.String()
}
