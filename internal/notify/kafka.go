package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/notexe/reminderd/internal/reminder"
)

// Event is the Kafka message value for one transition.
type Event struct {
	Kind       reminder.Transition `json:"kind"`
	ReminderID string              `json:"reminder_id"`
	AssignedTo string              `json:"assigned_to"`
	FireAt     time.Time           `json:"fire_at"`
	At         time.Time           `json:"at"`
	Reminder   reminder.Reminder   `json:"reminder"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// Kafka publishes transition notices to a topic, keyed by reminder id so
// that one reminder's events stay ordered within a partition.
type Kafka struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafka creates a producer for topic on the comma-separated brokers.
func NewKafka(brokersCSV, topic string) (*Kafka, error) {
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	w := &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
	}

	return &Kafka{
		writer:  w,
		timeout: 3 * time.Second,
	}, nil
}

func (k *Kafka) Close() error { return k.writer.Close() }

// Notify publishes n. A broker outage fails after a short timeout rather
// than stalling the caller.
func (k *Kafka) Notify(ctx context.Context, n reminder.Notice) error {
	b, err := json.Marshal(Event{
		Kind:       n.Kind,
		ReminderID: n.Reminder.ID,
		AssignedTo: n.Reminder.AssignedTo,
		FireAt:     n.Reminder.FireAt,
		At:         n.At,
		Reminder:   n.Reminder,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err = k.writer.WriteMessages(cctx, kgo.Message{
		Key:   []byte(n.Reminder.ID),
		Value: b,
		Time:  n.At,
		Headers: []kgo.Header{
			{Key: "kind", Value: []byte(n.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", n.Kind, err)
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
