package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/core/db"
	"basegraph.app/scribe/internal/model"
)

type topicStore struct {
	q db.Querier
}

func newTopicStore(q db.Querier) TopicStore {
	return &topicStore{q: q}
}

func (s *topicStore) Record(ctx context.Context, ev model.TopicEvent) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO room_topics (id, room_id, topic, committed_at)
		VALUES ($1, $2, $3, $4)`,
		id.New(), ev.RoomID, ev.Topic, ev.CommittedAt)
	return err
}

// Latest returns "" when the room never committed a topic.
func (s *topicStore) Latest(ctx context.Context, roomID string) (string, error) {
	var topic string
	err := s.q.QueryRow(ctx, `
		SELECT topic FROM room_topics
		WHERE room_id = $1
		ORDER BY committed_at DESC, id DESC
		LIMIT 1`, roomID).Scan(&topic)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return topic, err
}

type summaryStore struct {
	q db.Querier
}

func newSummaryStore(q db.Querier) SummaryStore {
	return &summaryStore{q: q}
}

func (s *summaryStore) Create(ctx context.Context, roomID string, summary model.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO room_summaries (id, room_id, payload)
		VALUES ($1, $2, $3)`,
		id.New(), roomID, payload)
	return err
}

func (s *summaryStore) Latest(ctx context.Context, roomID string) (*model.Summary, error) {
	var payload []byte
	err := s.q.QueryRow(ctx, `
		SELECT payload FROM room_summaries
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, roomID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var summary model.Summary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	return &summary, nil
}
