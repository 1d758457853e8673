package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/notexe/reminderd/internal/reminder"
)

// Sender delivers one plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SESSender sends email through Amazon SES v2.
type SESSender struct {
	client    *sesv2.Client
	fromEmail string
}

// NewSESSender creates a sender using cfg's credentials and region.
func NewSESSender(cfg aws.Config, from string) (*SESSender, error) {
	if from == "" {
		return nil, fmt.Errorf("email from address is required")
	}
	return &SESSender{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: from,
	}, nil
}

func (s *SESSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	return err
}

// Email mails notices to the assignee's address. Assignees without a known
// address are skipped.
type Email struct {
	sender     Sender
	recipients map[string]string
	operator   string
}

// NewEmail creates an email notifier. recipients maps principal ids to
// addresses; operator receives alerts and may be empty.
func NewEmail(sender Sender, recipients map[string]string, operator string) *Email {
	return &Email{sender: sender, recipients: recipients, operator: operator}
}

func (e *Email) Notify(ctx context.Context, n reminder.Notice) error {
	to, ok := e.recipients[n.Reminder.AssignedTo]
	if !ok || to == "" {
		return nil
	}

	r := n.Reminder
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(r.Priority)), r.Title)
	if n.Kind != reminder.TransitionTriggered {
		subject += " (" + string(n.Kind) + ")"
	}

	if err := e.sender.Send(ctx, to, subject, emailBody(n)); err != nil {
		return fmt.Errorf("failed to email %s: %w", to, err)
	}
	return nil
}

func (e *Email) Alert(ctx context.Context, subject string, err error) error {
	if e.operator == "" {
		return nil
	}
	if serr := e.sender.Send(ctx, e.operator, "[reminderd] "+subject, err.Error()); serr != nil {
		return fmt.Errorf("failed to email operator: %w", serr)
	}
	return nil
}

func emailBody(n reminder.Notice) string {
	r := n.Reminder

	var sb strings.Builder
	sb.WriteString(r.Message)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Scheduled for: %s\n", r.FireAt.Format("Mon, 02 Jan 2006 15:04 MST"))
	if r.IsRecurring {
		fmt.Fprintf(&sb, "Repeats: %s\n", r.RecurrencePattern)
	}
	if r.ActionRequired {
		sb.WriteString("This reminder requires your acknowledgment.\n")
	}
	if r.ActionURL != nil {
		fmt.Fprintf(&sb, "Open: %s\n", *r.ActionURL)
	}
	fmt.Fprintf(&sb, "Reminder ID: %s\n", r.ID)
	return sb.String()
}
