package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"basegraph.app/scribe/core/db"
	"basegraph.app/scribe/internal/model"
)

type roomStore struct {
	q db.Querier
}

func newRoomStore(q db.Querier) RoomStore {
	return &roomStore{q: q}
}

func (s *roomStore) Create(ctx context.Context, room model.Room) error {
	thresholds, err := json.Marshal(room.Thresholds)
	if err != nil {
		return fmt.Errorf("encoding thresholds: %w", err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO rooms (id, name, thresholds, created_at)
		VALUES ($1, $2, $3, $4)`,
		room.ID, room.Name, thresholds, room.CreatedAt)
	return err
}

func (s *roomStore) GetByID(ctx context.Context, id string) (*model.Room, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, name, thresholds, created_at, ended_at
		FROM rooms WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	room, err := pgx.CollectExactlyOneRow(rows, scanRoom)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (s *roomStore) End(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `UPDATE rooms SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *roomStore) ListActive(ctx context.Context) ([]model.Room, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, name, thresholds, created_at, ended_at
		FROM rooms WHERE ended_at IS NULL
		ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRoom)
}

func scanRoom(row pgx.CollectableRow) (model.Room, error) {
	var (
		room       model.Room
		thresholds []byte
		endedAt    *time.Time
	)
	if err := row.Scan(&room.ID, &room.Name, &thresholds, &room.CreatedAt, &endedAt); err != nil {
		return model.Room{}, err
	}

	th, err := decodeThresholds(thresholds)
	if err != nil {
		return model.Room{}, fmt.Errorf("room %s: %w", room.ID, err)
	}
	room.Thresholds = th
	room.EndedAt = endedAt
	return room, nil
}

func decodeThresholds(data []byte) (model.Thresholds, error) {
	var th model.Thresholds
	if len(data) == 0 {
		return th, nil
	}
	if err := json.Unmarshal(data, &th); err != nil {
		return model.Thresholds{}, fmt.Errorf("decoding thresholds: %w", err)
	}
	return th, nil
}
