package kafka

import (
	"context"
	"errors"
	"fmt"

	"ms-darshan/internal/logger"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message. A returned error is logged and the message is
// still committed; poison messages must not block the partition.
type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader messageReader
	topic  string
	logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, topic: topic, logger: log}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	c.logger.LogKafka("CONSUME", c.topic, "consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.LogKafka("CONSUME", c.topic, "consumer stopped")
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("fetch from %s: %v", c.topic, err))
			continue
		}

		if err := handle(ctx, msg); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("message at offset %d skipped: %v", msg.Offset, err))
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("KAFKA", fmt.Sprintf("commit offset %d: %v", msg.Offset, err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
