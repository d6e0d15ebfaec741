package store

import (
	"context"
	"errors"

	"basegraph.app/scribe/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrSeqConflict is returned when a segment write targets a seq already held
// by a different segment.
var ErrSeqConflict = errors.New("segment seq held by another segment")

// RoomStore defines the contract for room metadata access
type RoomStore interface {
	Create(ctx context.Context, room model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	End(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]model.Room, error)
}

// SegmentRow is a stored segment with its position in the room's log.
type SegmentRow struct {
	Seq     int
	Segment model.Segment
}

// SegmentStore mirrors each room's segment log. seq is the segment's index
// in the log, so an update rewrites the row a create inserted. Upsert never
// overwrites a row that belongs to a different segment id.
type SegmentStore interface {
	Upsert(ctx context.Context, roomID string, seq int, seg model.Segment) error
	ListByRoom(ctx context.Context, roomID string) ([]SegmentRow, error)
	// Resequence moves the row at from to the free slot to.
	Resequence(ctx context.Context, roomID string, from, to int) error
}

// TopicStore records committed topics.
type TopicStore interface {
	Record(ctx context.Context, ev model.TopicEvent) error
	Latest(ctx context.Context, roomID string) (string, error)
}

// SummaryStore keeps every clamped summary produced for a room.
type SummaryStore interface {
	Create(ctx context.Context, roomID string, summary model.Summary) error
	Latest(ctx context.Context, roomID string) (*model.Summary, error)
}
