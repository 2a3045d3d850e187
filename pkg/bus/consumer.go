package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/waqedi/platform/pkg/config"
)

// Message is one consumed envelope plus the handle needed to commit it.
type Message struct {
	Envelope Envelope
	// Key is the partition key, the document ID.
	Key string
	// Partition identifies the source partition. Work from one partition
	// must stay ordered; work across partitions may run in parallel.
	Partition int

	raw    kafka.Message
	reader *kafka.Reader
}

// Commit marks the message consumed. Under at-least-once delivery this must
// happen only after the stage reached a terminal outcome for the unit.
// Messages not backed by a reader commit as a no-op.
func (m *Message) Commit(ctx context.Context) error {
	if m.reader == nil {
		return nil
	}
	if err := m.reader.CommitMessages(ctx, m.raw); err != nil {
		return fmt.Errorf("failed to commit offset %d: %w", m.raw.Offset, err)
	}
	return nil
}

// Consumer reads envelopes for one stage's consumer group.
type Consumer struct {
	reader *kafka.Reader
	stage  string
}

// NewConsumer builds a consumer-group reader for a stage. Offsets are
// committed manually after processing; the group protocol guarantees one
// consumer per partition, which preserves per-document ordering.
func NewConsumer(cfg config.BusConfig, stage string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       cfg.Topic,
			GroupID:     cfg.GroupID(stage),
			StartOffset: kafka.FirstOffset,
		}),
		stage: stage,
	}
}

// Fetch blocks until the next message or context cancellation. Envelopes
// that fail to decode are skipped with a warning; the surrounding runner
// commits them so a poison message cannot wedge the partition.
func (c *Consumer) Fetch(ctx context.Context) (*Message, error) {
	for {
		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return nil, err
		}

		var env Envelope
		if err := json.Unmarshal(raw.Value, &env); err != nil {
			slog.Warn("Skipping undecodable event",
				"stage", c.stage,
				"partition", raw.Partition,
				"offset", raw.Offset,
				"error", err)
			if err := c.reader.CommitMessages(ctx, raw); err != nil {
				return nil, fmt.Errorf("failed to commit poison message: %w", err)
			}
			continue
		}

		return &Message{
			Envelope:  env,
			Key:       string(raw.Key),
			Partition: raw.Partition,
			raw:       raw,
			reader:    c.reader,
		}, nil
	}
}

// Close shuts the reader down and leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
