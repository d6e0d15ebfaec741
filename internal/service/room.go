package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/internal/clamp"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/pager"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/room"
	"basegraph.app/scribe/internal/store"
	"basegraph.app/scribe/internal/topic"
)

var (
	ErrRoomNotFound   = room.ErrRoomNotFound
	ErrRoomExists     = room.ErrRoomExists
	ErrInvalidSummary = errors.New("invalid summary")
	ErrNoSummary      = errors.New("no summary yet")
)

type CreateRoomParams struct {
	ID         string
	Name       string
	Thresholds model.Thresholds
}

// SummaryResult is the clamped summary plus the topic it committed, if any.
type SummaryResult struct {
	Summary model.Summary     `json:"summary"`
	Topic   *model.TopicEvent `json:"topic,omitempty"`
}

// Window is a consistent read of a room for summarization.
type Window struct {
	RoomID       string
	Version      uint64
	CurrentTopic string
	Segments     []model.Segment
}

type RoomService interface {
	Create(ctx context.Context, params CreateRoomParams) (*model.Room, error)
	Get(ctx context.Context, roomID string) (*model.Room, error)
	End(ctx context.Context, roomID string) error
	List(ctx context.Context) []model.Room

	// AddUtterance returns a nil event when the utterance had no text.
	AddUtterance(ctx context.Context, roomID string, u model.Utterance) (*model.SegmentEvent, error)
	// AddUtteranceWith layers per-call threshold overrides over the room's.
	AddUtteranceWith(ctx context.Context, roomID string, u model.Utterance, override model.Thresholds) (*model.SegmentEvent, error)
	Page(ctx context.Context, roomID string, cursor *int, limit int) (pager.Result, error)

	// ProposeTopic returns a nil event unless the candidate committed.
	ProposeTopic(ctx context.Context, roomID string, c model.TopicCandidate) (*model.TopicEvent, error)
	IngestSummary(ctx context.Context, roomID string, raw []byte) (*SummaryResult, error)
	// LatestSummary falls back to storage for rooms restored after a restart.
	LatestSummary(ctx context.Context, roomID string) (*model.Summary, error)
	Topic(ctx context.Context, roomID string) (topic.State, error)

	Window(ctx context.Context, roomID string, size int) (Window, error)
	// Restore reloads active rooms from storage. It is a no-op without persistence.
	Restore(ctx context.Context) (int, error)
}

type roomService struct {
	rooms       *room.Registry
	persistence Persistence
	events      queue.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

func NewRoomService(registry *room.Registry, persistence Persistence, events queue.EventPublisher, logger *slog.Logger) RoomService {
	if logger == nil {
		logger = slog.Default()
	}
	return &roomService{
		rooms:       registry,
		persistence: persistence,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *roomService) Create(ctx context.Context, params CreateRoomParams) (*model.Room, error) {
	rm, err := s.rooms.Create(room.CreateParams(params))
	if err != nil {
		return nil, err
	}
	info := rm.Info()

	if s.persistence.Enabled() {
		if err := s.persistence.Stores.Rooms().Create(ctx, info); err != nil {
			_, _ = s.rooms.End(info.ID)
			s.logger.ErrorContext(ctx, "failed to persist room", "error", err, "room_id", info.ID)
			return nil, fmt.Errorf("creating room: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "room created", "room_id", info.ID, "name", info.Name)
	return &info, nil
}

func (s *roomService) Get(_ context.Context, roomID string) (*model.Room, error) {
	rm, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	info := rm.Info()
	return &info, nil
}

func (s *roomService) End(ctx context.Context, roomID string) error {
	if _, err := s.rooms.End(roomID); err != nil {
		return err
	}

	if s.persistence.Enabled() {
		if err := s.persistence.Stores.Rooms().End(ctx, roomID); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to mark room ended", "error", err, "room_id", roomID)
		}
	}
	s.publish(ctx, roomID, queue.EventRoomEnded, map[string]string{"roomId": roomID})

	s.logger.InfoContext(ctx, "room ended", "room_id", roomID)
	return nil
}

func (s *roomService) List(_ context.Context) []model.Room {
	live := s.rooms.List()
	out := make([]model.Room, 0, len(live))
	for _, rm := range live {
		out = append(out, rm.Info())
	}
	return out
}

func (s *roomService) AddUtterance(ctx context.Context, roomID string, u model.Utterance) (*model.SegmentEvent, error) {
	return s.AddUtteranceWith(ctx, roomID, u, model.Thresholds{})
}

func (s *roomService) AddUtteranceWith(ctx context.Context, roomID string, u model.Utterance, override model.Thresholds) (*model.SegmentEvent, error) {
	rm, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RoomID:  logger.Ptr(roomID),
		Speaker: logger.Ptr(u.Speaker),
	})

	ev := rm.Append(u, override, func(ev model.SegmentEvent) {
		s.persistSegment(ctx, ev)
		s.publish(ctx, roomID, queue.EventSegment, ev)
	})
	if ev == nil {
		s.logger.DebugContext(ctx, "empty utterance ignored")
		return nil, nil
	}

	s.logger.DebugContext(ctx, "utterance applied",
		"action", ev.Action,
		"index", ev.Index,
		"segment_id", ev.Segment.ID,
		"text", logger.Truncate(ev.Segment.Text, 80))
	return ev, nil
}

func (s *roomService) Page(_ context.Context, roomID string, cursor *int, limit int) (pager.Result, error) {
	rm, err := s.rooms.Get(roomID)
	if err != nil {
		return pager.Result{}, err
	}
	return rm.Page(cursor, limit), nil
}

func (s *roomService) ProposeTopic(ctx context.Context, roomID string, c model.TopicCandidate) (*model.TopicEvent, error) {
	rm, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	return s.observeTopic(ctx, rm, c, nil), nil
}

// observeTopic feeds c to the room and, on commit, persists and publishes the
// topic. extra runs inside the same transaction as the topic record.
func (s *roomService) observeTopic(ctx context.Context, rm *room.Room, c model.TopicCandidate, extra func(StoreProvider) error) *model.TopicEvent {
	c.Topic = strings.TrimSpace(c.Topic)

	var committed *model.TopicEvent
	if c.Topic != "" {
		rm.ObserveTopicThen(c, func(t string) {
			committed = &model.TopicEvent{RoomID: rm.ID(), Topic: t, CommittedAt: s.now().UTC()}
		})
	}

	if s.persistence.Enabled() && (committed != nil || extra != nil) {
		err := s.persistence.TxRunner.WithTx(ctx, func(stores StoreProvider) error {
			if extra != nil {
				if err := extra(stores); err != nil {
					return err
				}
			}
			if committed != nil {
				return stores.Topics().Record(ctx, *committed)
			}
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to persist topic state", "error", err, "room_id", rm.ID())
		}
	}

	if committed != nil {
		s.publish(ctx, rm.ID(), queue.EventTopic, committed)
		s.logger.InfoContext(ctx, "topic committed", "room_id", rm.ID(), "topic", committed.Topic)
	}
	return committed
}

func (s *roomService) IngestSummary(ctx context.Context, roomID string, raw []byte) (*SummaryResult, error) {
	rm, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}

	summary, err := clamp.SummaryJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSummary, err)
	}

	ev := s.observeTopic(ctx, rm, model.TopicCandidate{Topic: summary.Topic, Confidence: summary.Confidence},
		func(stores StoreProvider) error {
			return stores.Summaries().Create(ctx, roomID, summary)
		})

	rm.SetSummary(summary)
	s.publish(ctx, roomID, queue.EventSummary, summary)
	return &SummaryResult{Summary: summary, Topic: ev}, nil
}

func (s *roomService) LatestSummary(ctx context.Context, roomID string) (*model.Summary, error) {
	rm, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	if summary, ok := rm.Summary(); ok {
		return &summary, nil
	}
	if !s.persistence.Enabled() {
		return nil, ErrNoSummary
	}

	summary, err := s.persistence.Stores.Summaries().Latest(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSummary
		}
		return nil, fmt.Errorf("loading summary for %s: %w", roomID, err)
	}
	rm.SetSummary(*summary)
	return summary, nil
}

func (s *roomService) Topic(_ context.Context, roomID string) (topic.State, error) {
	rm, err := s.rooms.Get(roomID)
	if err != nil {
		return topic.State{}, err
	}
	return rm.TopicState(), nil
}

func (s *roomService) Window(_ context.Context, roomID string, size int) (Window, error) {
	rm, err := s.rooms.Get(roomID)
	if err != nil {
		return Window{}, err
	}

	// Version is read first so a concurrent write shows up as a newer version
	// on the next tick rather than being skipped.
	version := rm.Version()
	return Window{
		RoomID:       roomID,
		Version:      version,
		CurrentTopic: rm.TopicState().Current,
		Segments:     rm.Recent(size),
	}, nil
}

func (s *roomService) Restore(ctx context.Context) (int, error) {
	if !s.persistence.Enabled() {
		return 0, nil
	}
	stores := s.persistence.Stores

	infos, err := stores.Rooms().ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing active rooms: %w", err)
	}

	restored := 0
	for _, info := range infos {
		rows, err := stores.Segments().ListByRoom(ctx, info.ID)
		if err != nil {
			return restored, fmt.Errorf("loading segments for %s: %w", info.ID, err)
		}
		segments, moves := compactRows(rows)
		if len(moves) > 0 {
			// A lost write left holes in seq. Close them so the next create at
			// index len(segments) cannot land on an existing row.
			s.logger.WarnContext(ctx, "closing segment seq gaps", "room_id", info.ID, "moved", len(moves))
			err := s.persistence.TxRunner.WithTx(ctx, func(stores StoreProvider) error {
				for _, m := range moves {
					if err := stores.Segments().Resequence(ctx, info.ID, m.from, m.to); err != nil {
						return fmt.Errorf("seq %d to %d: %w", m.from, m.to, err)
					}
				}
				return nil
			})
			if err != nil {
				return restored, fmt.Errorf("repairing segments for %s: %w", info.ID, err)
			}
		}
		current, err := stores.Topics().Latest(ctx, info.ID)
		if err != nil {
			return restored, fmt.Errorf("loading topic for %s: %w", info.ID, err)
		}

		rm := s.rooms.Build(info)
		rm.Restore(segments, current)
		if err := s.rooms.Add(rm); err != nil {
			s.logger.WarnContext(ctx, "skipping restored room", "room_id", info.ID, "error", err)
			continue
		}

		s.logger.InfoContext(ctx, "room restored", "room_id", info.ID, "segments", len(segments), "topic", current)
		restored++
	}
	return restored, nil
}

type seqMove struct {
	from, to int
}

// compactRows returns the stored segments in log order plus the moves that
// make their seq values dense. Rows are sorted by seq, so moving each row
// down to its index in ascending order always targets a free slot.
func compactRows(rows []store.SegmentRow) ([]model.Segment, []seqMove) {
	segments := make([]model.Segment, len(rows))
	var moves []seqMove
	for i, r := range rows {
		segments[i] = r.Segment
		if r.Seq != i {
			moves = append(moves, seqMove{from: r.Seq, to: i})
		}
	}
	return segments, moves
}

func (s *roomService) persistSegment(ctx context.Context, ev model.SegmentEvent) {
	if !s.persistence.Enabled() {
		return
	}
	if err := s.persistence.Stores.Segments().Upsert(ctx, ev.RoomID, ev.Index, ev.Segment); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist segment",
			"error", err,
			"segment_id", ev.Segment.ID,
			"index", ev.Index)
	}
}

func (s *roomService) publish(ctx context.Context, roomID string, eventType queue.EventType, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, roomID, eventType, payload); err != nil {
		s.logger.WarnContext(ctx, "failed to publish room event", "error", err, "type", eventType)
	}
}
