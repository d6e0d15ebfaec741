package worker

import (
	"context"
	"log/slog"
	"time"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/internal/brain"
)

type SummaryConfig struct {
	Interval time.Duration
	Window   int
}

// SummaryScheduler periodically summarizes rooms that changed since their
// last summary and feeds the result back as a topic vote.
type SummaryScheduler struct {
	rooms      SummarySource
	summarizer brain.Summarizer
	cfg        SummaryConfig

	// lastVersion is only touched by the Run goroutine.
	lastVersion map[string]uint64

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSummaryScheduler(rooms SummarySource, summarizer brain.Summarizer, cfg SummaryConfig) *SummaryScheduler {
	return &SummaryScheduler{
		rooms:       rooms,
		summarizer:  summarizer,
		cfg:         cfg,
		lastVersion: make(map[string]uint64),
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

func (s *SummaryScheduler) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "scribe.worker.summary",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "summary scheduler started",
		"interval", s.cfg.Interval,
		"window", s.cfg.Window)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "summary scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *SummaryScheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

// Tick runs one pass over the live rooms and returns how many were summarized.
func (s *SummaryScheduler) Tick(ctx context.Context) int {
	rooms := s.rooms.List(ctx)

	live := make(map[string]struct{}, len(rooms))
	summarized := 0
	for _, rm := range rooms {
		live[rm.ID] = struct{}{}
		if s.summarizeRoom(ctx, rm.ID) {
			summarized++
		}
	}

	for roomID := range s.lastVersion {
		if _, ok := live[roomID]; !ok {
			delete(s.lastVersion, roomID)
		}
	}
	return summarized
}

func (s *SummaryScheduler) summarizeRoom(ctx context.Context, roomID string) bool {
	ctx = logger.WithLogFields(ctx, logger.LogFields{RoomID: logger.Ptr(roomID)})

	w, err := s.rooms.Window(ctx, roomID, s.cfg.Window)
	if err != nil {
		slog.DebugContext(ctx, "room vanished before summary", "error", err)
		return false
	}
	if len(w.Segments) == 0 || w.Version == s.lastVersion[roomID] {
		return false
	}

	span := logger.StartSpan(ctx, "worker.summarize_room")
	defer span.End()
	span.SetRoom(roomID)
	ctx = span.Context()

	raw, err := s.summarizer.Summarize(ctx, brain.SummaryInput{
		RoomID:       roomID,
		CurrentTopic: w.CurrentTopic,
		Segments:     w.Segments,
	})
	if err != nil {
		span.RecordError(err)
		if !llm.IsRetryable(ctx, err) {
			// Wait for new segments before trying this window again.
			s.lastVersion[roomID] = w.Version
		}
		slog.WarnContext(ctx, "summary failed", "error", err)
		return false
	}

	res, err := s.rooms.IngestSummary(ctx, roomID, raw)
	s.lastVersion[roomID] = w.Version
	if err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "summary rejected", "error", err)
		return false
	}

	attrs := []any{"topic", res.Summary.Topic, "confidence", res.Summary.Confidence}
	if res.Topic != nil {
		attrs = append(attrs, "committed", res.Topic.Topic)
	}
	slog.InfoContext(ctx, "room summary ingested", attrs...)
	return true
}
