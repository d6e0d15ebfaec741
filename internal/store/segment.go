package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"basegraph.app/scribe/core/db"
	"basegraph.app/scribe/internal/model"
)

type segmentStore struct {
	q db.Querier
}

func newSegmentStore(q db.Querier) SegmentStore {
	return &segmentStore{q: q}
}

// Upsert only moves text and t_end_ms on conflict; the other columns are
// fixed once a segment exists. A conflicting row with another id is left
// untouched and reported as ErrSeqConflict.
func (s *segmentStore) Upsert(ctx context.Context, roomID string, seq int, seg model.Segment) error {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO segments (room_id, seq, id, speaker, text, t_start_ms, t_end_ms, source_client_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id, seq) DO UPDATE
		SET text = EXCLUDED.text, t_end_ms = EXCLUDED.t_end_ms, updated_at = now()
		WHERE segments.id = EXCLUDED.id`,
		roomID, seq, seg.ID, seg.Speaker, seg.Text, seg.TStartMs, seg.TEndMs, seg.SourceClientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: room %s seq %d", ErrSeqConflict, roomID, seq)
	}
	return nil
}

func (s *segmentStore) ListByRoom(ctx context.Context, roomID string) ([]SegmentRow, error) {
	rows, err := s.q.Query(ctx, `
		SELECT seq, id, speaker, text, t_start_ms, t_end_ms, source_client_id
		FROM segments WHERE room_id = $1
		ORDER BY seq`, roomID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SegmentRow, error) {
		var r SegmentRow
		err := row.Scan(&r.Seq, &r.Segment.ID, &r.Segment.Speaker, &r.Segment.Text,
			&r.Segment.TStartMs, &r.Segment.TEndMs, &r.Segment.SourceClientID)
		return r, err
	})
}

func (s *segmentStore) Resequence(ctx context.Context, roomID string, from, to int) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE segments SET seq = $3, updated_at = now()
		WHERE room_id = $1 AND seq = $2`, roomID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
