package worker

import (
	"context"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// UtteranceSink is the slice of RoomService the ingest worker needs.
type UtteranceSink interface {
	AddUtterance(ctx context.Context, roomID string, u model.Utterance) (*model.SegmentEvent, error)
}

// SummarySource is the slice of RoomService the summary scheduler needs.
type SummarySource interface {
	List(ctx context.Context) []model.Room
	Window(ctx context.Context, roomID string, size int) (service.Window, error)
	IngestSummary(ctx context.Context, roomID string, raw []byte) (*service.SummaryResult, error)
}
