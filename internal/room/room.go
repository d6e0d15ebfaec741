// Package room owns the per-room mutable state: the append-only segment log
// and the topic stabilizer. Every mutation of a room happens under that room's
// lock; rooms never share a lock with each other.
package room

import (
	"sync"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/pager"
	"basegraph.app/scribe/internal/segmenter"
	"basegraph.app/scribe/internal/topic"
)

type Room struct {
	mu sync.RWMutex
	// emitMu orders side effects (persist, publish) of successive writes
	// without holding mu, so readers are never blocked on I/O.
	emitMu sync.Mutex

	info      model.Room
	segmenter *segmenter.Segmenter
	segments  []model.Segment
	speakers  segmenter.SpeakerIndex
	topics    *topic.Stabilizer
	summary   *model.Summary
	version   uint64
}

// New creates an empty room. info.Thresholds must already be the effective
// thresholds (defaults merged with the room's overrides).
func New(info model.Room, seg *segmenter.Segmenter) *Room {
	return &Room{
		info:      info,
		segmenter: seg,
		speakers:  segmenter.SpeakerIndex{},
		topics:    topic.NewStabilizer(info.Thresholds.TopicShiftConfidence),
	}
}

func (r *Room) ID() string {
	return r.info.ID
}

func (r *Room) Info() model.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

// AddUtterance folds u into the log using the room's thresholds.
// It returns nil when the utterance carried no text.
func (r *Room) AddUtterance(u model.Utterance) *model.SegmentEvent {
	return r.AddUtteranceWith(u, model.Thresholds{})
}

// AddUtteranceWith is AddUtterance with per-call threshold overrides layered
// on top of the room's own.
func (r *Room) AddUtteranceWith(u model.Utterance, override model.Thresholds) *model.SegmentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	th := r.info.Thresholds.Merge(override)
	d, ok := r.segmenter.Decide(r.segments, r.speakers.Last(u.Speaker), u, th)
	if !ok {
		return nil
	}

	r.segments = segmenter.Commit(r.segments, d)
	r.speakers.Record(d)
	r.version++

	return &model.SegmentEvent{
		Action:  d.Action,
		Segment: d.Segment,
		RoomID:  r.info.ID,
		Index:   d.Index,
	}
}

// Append is AddUtteranceWith followed by emit, with emits delivered in commit
// order. emit runs after the room lock is released and is skipped for no-op
// utterances.
func (r *Room) Append(u model.Utterance, override model.Thresholds, emit func(ev model.SegmentEvent)) *model.SegmentEvent {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	ev := r.AddUtteranceWith(u, override)
	if ev != nil && emit != nil {
		emit(*ev)
	}
	return ev
}

// ObserveTopicThen is ObserveTopic with emit called, in commit order, for
// each committed topic.
func (r *Room) ObserveTopicThen(c model.TopicCandidate, emit func(topic string)) (string, bool) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	committed, ok := r.ObserveTopic(c)
	if ok && emit != nil {
		emit(committed)
	}
	return committed, ok
}

// Page reads one page from a consistent snapshot of the log.
func (r *Room) Page(cursor *int, limit int) pager.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return pager.Page(r.segments, cursor, limit)
}

// ObserveTopic feeds a topic candidate to the room's stabilizer.
func (r *Room) ObserveTopic(c model.TopicCandidate) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topics.Observe(c)
}

func (r *Room) TopicState() topic.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topics.State()
}

// SetSummary replaces the room's latest summary.
func (r *Room) SetSummary(s model.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = &s
}

// Summary returns the latest summary ingested since the room was loaded.
func (r *Room) Summary() (model.Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.summary == nil {
		return model.Summary{}, false
	}
	return *r.summary, true
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments)
}

// Version increases on every committed segment change.
func (r *Room) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Recent returns a copy of the last n segments, oldest first.
func (r *Room) Recent(n int) []model.Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := max(0, len(r.segments)-n)
	out := make([]model.Segment, len(r.segments)-start)
	copy(out, r.segments[start:])
	return out
}

func (r *Room) Snapshot() []model.Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Segment, len(r.segments))
	copy(out, r.segments)
	return out
}

// Restore replaces the room's state with a persisted log and committed topic.
// It is meant for startup, before the room is reachable by writers.
func (r *Room) Restore(segments []model.Segment, currentTopic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.segments = append([]model.Segment(nil), segments...)
	r.speakers = segmenter.BuildIndex(r.segments)
	r.topics.Restore(currentTopic)
	r.version++
}
