package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service"
)

type Config struct {
	MaxAttempts int
}

// Worker drains the utterance ingest stream into rooms.
type Worker struct {
	consumer Consumer
	rooms    UtteranceSink
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, rooms UtteranceSink, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{
		consumer:  consumer,
		rooms:     rooms,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "scribe.worker.ingest",
	})
	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		_ = w.Handle(ctx, msg)
	}
	return nil
}

// Handle processes msg and routes a failure to requeue or the DLQ. The
// reclaimer uses it for stale messages so both paths share retry accounting.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	err := w.processMessageSafe(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "message processing failed",
			"error", err,
			"message_id", msg.ID,
			"room_id", msg.RoomID)
		w.handleFailedMessage(ctx, msg, err)
	}
	return err
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"room_id", msg.RoomID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage applies one utterance and acks it. Messages for rooms that no
// longer exist are acked and dropped; retrying cannot bring the room back.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	span := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.ingest_utterance",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetRoom(msg.RoomID)

	ctx = logger.WithLogFields(span.Context(), logger.LogFields{
		RoomID:         logger.Ptr(msg.RoomID),
		Speaker:        logger.Ptr(msg.Speaker),
		SourceClientID: logger.Ptr(msg.SourceClientID),
		MessageID:      logger.Ptr(msg.ID),
	})

	ev, err := w.rooms.AddUtterance(ctx, msg.RoomID, msg.Utterance())
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		slog.WarnContext(ctx, "dropping utterance for unknown room", "attempt", msg.Attempt)
	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("adding utterance: %w", err)
	case ev != nil:
		slog.DebugContext(ctx, "utterance ingested",
			"action", ev.Action,
			"segment_id", ev.Segment.ID)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Left pending; the reclaimer will redeliver it.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"room_id", msg.RoomID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"room_id", msg.RoomID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
