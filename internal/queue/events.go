package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	EventSegment   EventType = "segment"
	EventTopic     EventType = "topic"
	EventSummary   EventType = "summary"
	EventRoomEnded EventType = "room_ended"
)

// EventStreamName is the per-room stream that live listeners tail.
func EventStreamName(prefix, roomID string) string {
	return fmt.Sprintf("%s:%s", prefix, roomID)
}

// EventPublisher fans room events out to listeners.
type EventPublisher interface {
	Publish(ctx context.Context, roomID string, eventType EventType, payload any) error
}

type redisEventPublisher struct {
	client *redis.Client
	prefix string
	maxLen int64
	logger *slog.Logger
	now    func() time.Time
}

func NewRedisEventPublisher(client *redis.Client, prefix string, maxLen int64, logger *slog.Logger) EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisEventPublisher{
		client: client,
		prefix: prefix,
		maxLen: maxLen,
		logger: logger,
		now:    time.Now,
	}
}

func (p *redisEventPublisher) Publish(ctx context.Context, roomID string, eventType EventType, payload any) error {
	values, err := EventValues(roomID, eventType, payload, p.now())
	if err != nil {
		return err
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: EventStreamName(p.prefix, roomID),
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published room event", "room_id", roomID, "type", eventType)
	return nil
}

// EventValues renders one room event as stream fields. payload is stored as JSON.
func EventValues(roomID string, eventType EventType, payload any, ts time.Time) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return map[string]any{
		"type":    string(eventType),
		"room_id": roomID,
		"payload": string(data),
		"ts":      ts.UTC().Format(time.RFC3339Nano),
	}, nil
}
