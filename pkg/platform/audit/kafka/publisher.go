// Package kafka publishes audit events to a Kafka topic. Kafka is the durable
// fan-out point for compliance and security consumers; the local store remains
// the source for same-process reads.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "pehchan/pkg/platform/audit"
)

// Publisher writes audit events to a single topic, keyed by subject so all
// events for one verification land in one partition, in order.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// payload is the wire shape. Field names are part of the consumer contract.
type payload struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	Device    string `json:"device,omitempty"`
}

// New connects to the brokers and ensures the topic exists.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 3, 1, nil, topic); err != nil {
		// Topic may already exist; anything else is reported at first produce.
		logger.Debug("create audit topic", "topic", topic, "err", err)
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Append implements audit.Store against Kafka. Produce errors are returned to
// the publisher, which logs and continues; a broker outage never blocks a
// verification transition.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	body, err := json.Marshal(payload{
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		UserID:    userIDOrEmpty(event),
		Subject:   event.Subject,
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		Device:    event.Device,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Subject),
		Value: body,
	}
	return p.client.ProduceSync(ctx, record).FirstErr()
}

// ListBySubject is unsupported on the Kafka sink; reads go through the local
// store. Implemented to satisfy audit.Store for tee configurations.
func (p *Publisher) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, fmt.Errorf("kafka audit sink is write-only")
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}

func userIDOrEmpty(event audit.Event) string {
	if event.UserID.IsNil() {
		return ""
	}
	return event.UserID.String()
}
