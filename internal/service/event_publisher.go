package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/kafka"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/logger"
)

// EventPublisher fans reservation lifecycle events out to downstream
// consumers (notifications, analytics). Publishing is best-effort and
// happens after commit; the durable record is the reservation_events table.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.ReservationEvent)
}

// lifecycleMessage is the wire format of a published lifecycle event
type lifecycleMessage struct {
	ReservationID string         `json:"reservation_id"`
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload,omitempty"`
	Actor         string         `json:"actor"`
	Source        string         `json:"source"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// KafkaEventPublisher publishes lifecycle events to a Kafka topic, keyed by
// reservation ID so consumers see each reservation's events in order.
type KafkaEventPublisher struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a KafkaEventPublisher
func NewKafkaEventPublisher(producer *kafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// Publish sends one event. Failures are logged, never propagated: a broker
// outage must not fail a committed reservation.
func (p *KafkaEventPublisher) Publish(ctx context.Context, event *domain.ReservationEvent) {
	msg := lifecycleMessage{
		ReservationID: event.ReservationID,
		EventType:     string(event.Type),
		Payload:       event.Payload,
		Actor:         event.Actor,
		Source:        string(event.Source),
		OccurredAt:    event.CreatedAt,
	}

	value, err := json.Marshal(msg)
	if err != nil {
		logger.WithContext(ctx).Error("failed to marshal lifecycle event",
			zap.String("reservation_id", event.ReservationID),
			zap.Error(err))
		return
	}

	if err := p.producer.Publish(ctx, p.topic, []byte(event.ReservationID), value); err != nil {
		logger.WithContext(ctx).Error("failed to publish lifecycle event",
			zap.String("reservation_id", event.ReservationID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// NoOpEventPublisher discards events. Used when Kafka is disabled.
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a NoOpEventPublisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// Publish discards the event
func (p *NoOpEventPublisher) Publish(ctx context.Context, event *domain.ReservationEvent) {}
