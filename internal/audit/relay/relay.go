// Package relay publishes outbox audit rows to Kafka. The outbox is the
// source of truth; a row is only marked published after the broker acks,
// so a relay crash re-delivers rather than loses.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"onboardingportal/internal/audit"
	"onboardingportal/internal/platform/config"
	"onboardingportal/internal/platform/metrics"
)

// OutboxStore is the slice of the audit store the relay needs.
type OutboxStore interface {
	ClaimUnpublished(ctx context.Context, limit int) ([]audit.StoredEvent, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Producer abstracts the franz-go client for tests.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Relay drains the outbox into a Kafka topic.
type Relay struct {
	store    OutboxStore
	producer Producer
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New builds a relay. interval controls how often the outbox is polled.
func New(store OutboxStore, producer Producer, topic string, logger *slog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		store:    store,
		producer: producer,
		topic:    topic,
		interval: 5 * time.Second,
		batch:    200,
		logger:   logger,
		metrics:  m,
	}
}

// Connect dials Kafka and ensures the audit topic exists. Returns the kgo
// client for use as the relay producer.
func Connect(ctx context.Context, cfg config.Kafka) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	topics, err := adm.ListTopics(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka list topics: %w", err)
	}
	if !topics.Has(cfg.AuditTopic) {
		if _, err := adm.CreateTopic(ctx, 3, 1, nil, cfg.AuditTopic); err != nil {
			client.Close()
			return nil, fmt.Errorf("kafka create topic %s: %w", cfg.AuditTopic, err)
		}
	}
	return client, nil
}

// payload is the wire format on the audit topic.
type payload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	UserID    string `json:"user_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Resource  string `json:"resource,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	IP        string `json:"ip,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "audit relay pass failed", "error", err)
			}
		}
	}
}

// drainOnce claims one batch, publishes it, and marks delivery.
func (r *Relay) drainOnce(ctx context.Context) error {
	events, err := r.store.ClaimUnpublished(ctx, r.batch)
	if err != nil {
		return fmt.Errorf("claim outbox: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(payload{
			ID:        e.ID,
			Category:  string(e.Category),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Action:    string(e.Action),
			UserID:    e.UserID,
			ActorID:   e.ActorID,
			Resource:  e.Resource,
			RequestID: e.RequestID,
			IP:        e.IP,
			Detail:    e.Detail,
		})
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: r.topic,
			// Key by user so one subject's events stay ordered per partition.
			Key:   []byte(e.UserID),
			Value: value,
		})
	}

	results := r.producer.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		// Nothing is marked published; the next pass re-claims the batch.
		return fmt.Errorf("produce audit batch: %w", err)
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := r.store.MarkPublished(ctx, ids); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	r.metrics.AuditPublished.Add(float64(len(ids)))
	return nil
}
