package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-darshan/internal/config"
	"ms-darshan/internal/logger"
	"ms-darshan/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes domain events. Messages are keyed by entity id so every
// change to one ticket or alert lands on the same partition.
type Producer struct {
	writer messageWriter
	topics config.TopicConfig
	logger *logger.Logger
	now    func() time.Time
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newProducer(writer, topics, log)
}

func newProducer(w messageWriter, topics config.TopicConfig, log *logger.Logger) *Producer {
	return &Producer{writer: w, topics: topics, logger: log, now: time.Now}
}

func (p *Producer) publish(ctx context.Context, topic string, ev models.DomainEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}
	msgBytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(ev.EntityID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		p.logger.Error("KAFKA", fmt.Sprintf("publish %s to %s failed: %v", ev.Type, topic, err))
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	p.logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s %s", ev.Type, ev.EntityID))
	return nil
}

func (p *Producer) PublishTicketEvent(ctx context.Context, eventType string, t models.Ticket) error {
	return p.publish(ctx, p.topics.TicketEvents, models.DomainEvent{
		Type:     eventType,
		TempleID: t.TempleID,
		EntityID: t.TicketID,
		Payload:  t,
	})
}

func (p *Producer) PublishSlotEvent(ctx context.Context, eventType string, s models.QueueSlot) error {
	return p.publish(ctx, p.topics.SlotEvents, models.DomainEvent{
		Type:     eventType,
		TempleID: s.TempleID,
		EntityID: s.SlotID,
		Payload:  s,
	})
}

func (p *Producer) PublishSOSEvent(ctx context.Context, eventType string, s models.SOS) error {
	return p.publish(ctx, p.topics.SOSEvents, models.DomainEvent{
		Type:     eventType,
		EntityID: s.ID,
		Payload:  s,
	})
}

func (p *Producer) PublishCrowdEvent(ctx context.Context, eventType string, c models.CrowdData) error {
	return p.publish(ctx, p.topics.CrowdEvents, models.DomainEvent{
		Type:     eventType,
		TempleID: c.TempleID,
		EntityID: c.ID,
		Payload:  c,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
