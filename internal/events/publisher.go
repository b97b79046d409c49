// Package events delivers committed outbox events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/logger"

	redis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Publisher delivers one event. Delivery is at-least-once; consumers dedupe on the event id.
type Publisher interface {
	Publish(ctx context.Context, evt domain.OutboxEvent) error
}

// Envelope is the wire format shared by every publisher.
type Envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID int64           `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

func encode(evt domain.OutboxEvent) ([]byte, error) {
	return json.Marshal(Envelope{
		ID:          evt.ID,
		Type:        evt.EventType,
		AggregateID: evt.AggregateID,
		OccurredAt:  evt.CreatedAt.UTC(),
		Payload:     evt.Payload,
	})
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// Publish keys messages by aggregate id so events of one entity stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, evt domain.OutboxEvent) error {
	body, err := encode(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.AggregateID, 10)),
		Value: body,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// RedisPublisher fans events out over a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt domain.OutboxEvent) error {
	body, err := encode(evt)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, body).Err()
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, evt domain.OutboxEvent) error {
	logger.WithContext(ctx).Info("event", "id", evt.ID, "type", evt.EventType, "aggregate_id", evt.AggregateID)
	return nil
}

// Fanout publishes to every target and fails if any of them fails.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt domain.OutboxEvent) error {
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}
