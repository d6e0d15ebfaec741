package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Producer enqueues utterances on the ingest stream. Speech-to-text workers
// and the replay tool use it; the server only consumes.
type Producer interface {
	Enqueue(ctx context.Context, msg Message) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg Message) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: MessageValues(msg, attempt),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue utterance: %w", err)
	}

	p.logger.DebugContext(ctx, "enqueued utterance", "room_id", msg.RoomID, "speaker", msg.Speaker, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
