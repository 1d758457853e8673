package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/notexe/reminderd/internal/reminder"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func sampleNotice(kind reminder.Transition) reminder.Notice {
	url := "https://dash.example.com/r/1?a=1&b=2"
	return reminder.Notice{
		Kind: kind,
		At:   t0,
		Reminder: reminder.Reminder{
			ID:                "r1",
			CreatedBy:         "manager-1",
			AssignedTo:        "alice",
			Title:             "Renew <cert>",
			Message:           "Expires in 3 days",
			FireAt:            t0,
			IsRecurring:       true,
			RecurrencePattern: "monthly",
			Priority:          reminder.PriorityUrgent,
			ActionRequired:    true,
			ActionURL:         &url,
			Status:            reminder.StatusTriggered,
		},
	}
}

func TestTelegramNotify(t *testing.T) {
	t.Parallel()

	var got telegramSendRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.baseURL = srv.URL

	if err := tg.Notify(context.Background(), sampleNotice(reminder.TransitionTriggered)); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if got.ChatID != "42" || got.ParseMode != "HTML" {
		t.Errorf("unexpected request: %+v", got)
	}
	for _, want := range []string{"🔴", "Renew &lt;cert&gt;", "[triggered]", "Repeats: monthly", "Action required", "a=1&amp;b=2", "<code>r1</code>"} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("expected message to contain %q, got:\n%s", want, got.Text)
		}
	}
}

func TestTelegramAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.baseURL = srv.URL

	err := tg.Alert(context.Background(), "series stopped", errors.New("bad pattern"))
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected telegram API error, got %v", err)
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kgo.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kgo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaNotify(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	k := &Kafka{writer: w, timeout: time.Second}

	if err := k.Notify(context.Background(), sampleNotice(reminder.TransitionCompleted)); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "r1" {
		t.Errorf("expected key r1, got %s", msg.Key)
	}

	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if ev.Kind != reminder.TransitionCompleted || ev.ReminderID != "r1" || ev.AssignedTo != "alice" || !ev.At.Equal(t0) {
		t.Errorf("unexpected event: %+v", ev)
	}

	w.err = errors.New("leader not available")
	if err := k.Notify(context.Background(), sampleNotice(reminder.TransitionTriggered)); err == nil {
		t.Error("expected publish error")
	}
}

func TestNewKafkaRequiresBrokersAndTopic(t *testing.T) {
	t.Parallel()

	if _, err := NewKafka(" , ", "reminders"); err == nil {
		t.Error("expected error for empty brokers")
	}
	if _, err := NewKafka("localhost:9092", ""); err == nil {
		t.Error("expected error for empty topic")
	}
}

type sentEmail struct{ to, subject, body string }

type fakeSender struct {
	sent []sentEmail
}

func (s *fakeSender) Send(_ context.Context, to, subject, body string) error {
	s.sent = append(s.sent, sentEmail{to, subject, body})
	return nil
}

func TestEmailNotify(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	e := NewEmail(sender, map[string]string{"alice": "alice@example.com"}, "ops@example.com")

	if err := e.Notify(context.Background(), sampleNotice(reminder.TransitionTriggered)); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	unknown := sampleNotice(reminder.TransitionTriggered)
	unknown.Reminder.AssignedTo = "carol"
	if err := e.Notify(context.Background(), unknown); err != nil {
		t.Fatalf("Notify for unknown recipient failed: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	mail := sender.sent[0]
	if mail.to != "alice@example.com" || mail.subject != "[URGENT] Renew <cert>" {
		t.Errorf("unexpected email: %+v", mail)
	}
	if !strings.Contains(mail.body, "requires your acknowledgment") || !strings.Contains(mail.body, "Reminder ID: r1") {
		t.Errorf("unexpected body:\n%s", mail.body)
	}

	if err := e.Alert(context.Background(), "series stopped", errors.New("bad pattern")); err != nil {
		t.Fatalf("Alert failed: %v", err)
	}
	if last := sender.sent[len(sender.sent)-1]; last.to != "ops@example.com" || last.body != "bad pattern" {
		t.Errorf("unexpected alert email: %+v", last)
	}
}

type countingNotifier struct {
	n   int
	err error
}

func (c *countingNotifier) Notify(context.Context, reminder.Notice) error {
	c.n++
	return c.err
}

func TestMultiAndOnly(t *testing.T) {
	t.Parallel()

	broken := &countingNotifier{err: errors.New("down")}
	healthy := &countingNotifier{}
	triggeredOnly := &countingNotifier{}

	m := Multi{broken, healthy, Only(triggeredOnly, reminder.TransitionTriggered)}

	if err := m.Notify(context.Background(), sampleNotice(reminder.TransitionCreated)); err == nil {
		t.Error("expected the broken sink's error")
	}
	if err := m.Notify(context.Background(), sampleNotice(reminder.TransitionTriggered)); err == nil {
		t.Error("expected the broken sink's error")
	}

	if healthy.n != 2 {
		t.Errorf("a failing sink must not block the others, healthy got %d", healthy.n)
	}
	if triggeredOnly.n != 1 {
		t.Errorf("expected only the triggered notice, got %d", triggeredOnly.n)
	}
}
