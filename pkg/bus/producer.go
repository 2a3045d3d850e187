package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
)

// Publisher sends envelopes to the documents topic.
type Publisher interface {
	Publish(ctx context.Context, documentID string, env Envelope) error
}

// Producer is the Kafka-backed Publisher.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a producer for the configured topic. The message key
// is the document ID so a document's events land on one partition.
func NewProducer(cfg config.BusConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish sends one envelope keyed by document ID.
func (p *Producer) Publish(ctx context.Context, documentID string, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return faults.Wrap(faults.KindInternal, "ENCODE_FAILED", "encode event envelope", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(documentID),
		Value: value,
	})
	if err != nil {
		return faults.Transientf("BUS_UNAVAILABLE", err, "publish %s", env.EventType)
	}

	slog.Debug("Published event",
		"event_type", env.EventType,
		"event_id", env.EventID,
		"document_id", documentID,
		"tenant_id", env.TenantID)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Ping dials the first configured broker to verify the cluster is reachable.
func Ping(ctx context.Context, cfg config.BusConfig) error {
	if len(cfg.Brokers) == 0 {
		return faults.New(faults.KindInternal, "BUS_MISCONFIGURED", "no brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return faults.Transientf("BUS_UNAVAILABLE", err, "dial broker %s", cfg.Brokers[0])
	}
	return conn.Close()
}
