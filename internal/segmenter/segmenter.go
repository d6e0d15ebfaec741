// Package segmenter folds speaker-labelled utterances into display segments.
//
// A room's segments form an append-only log. Each utterance either extends the
// most recent segment of the same speaker or opens a new segment at the tail;
// segments are never removed or reordered, which keeps pagination cursors stable.
package segmenter

import (
	"strings"
	"time"
	"unicode/utf8"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/internal/model"
)

// Segmenter decides how utterances land in a segment log.
// NewID and Now are injectable for tests.
type Segmenter struct {
	NewID func() string
	Now   func() time.Time
}

func New() *Segmenter {
	return &Segmenter{
		NewID: id.NewString,
		Now:   time.Now,
	}
}

// Decision is the outcome of folding one utterance into a log.
// Index equals len(segments) for a created segment.
type Decision struct {
	Action  model.SegmentAction
	Index   int
	Segment model.Segment
}

// Reason names the rule that forced a new segment. Useful for debug logging.
type Reason string

const (
	ReasonMerged        Reason = ""
	ReasonFirstSegment  Reason = "first_segment"
	ReasonPauseBoundary Reason = "pause_boundary"
	ReasonMergeGap      Reason = "merge_gap"
	ReasonMaxChars      Reason = "max_chars"
	ReasonMaxWords      Reason = "max_words"
	ReasonMaxDuration   Reason = "max_duration"
)

// Apply folds u into segments and returns the resulting log plus the event to
// broadcast. The input slice is never modified; callers commit the returned
// slice under the room's lock. Empty utterances return the input and a nil event.
func (s *Segmenter) Apply(segments []model.Segment, u model.Utterance, th model.Thresholds) ([]model.Segment, *model.SegmentEvent) {
	text := Normalize(u.Text)
	if text == "" {
		return segments, nil
	}

	d, _ := s.Decide(segments, LastBySpeaker(segments, u.Speaker), u, th)

	out := make([]model.Segment, len(segments), len(segments)+1)
	copy(out, segments)
	out = Commit(out, d)

	return out, &model.SegmentEvent{Action: d.Action, Segment: d.Segment, Index: d.Index}
}

// Decide computes where u goes given the index of the speaker's most recent
// segment (-1 if none). It reads segments but never writes them. The bool is
// false when the utterance text is empty after normalization.
func (s *Segmenter) Decide(segments []model.Segment, prior int, u model.Utterance, th model.Thresholds) (Decision, bool) {
	d, _, ok := s.decide(segments, prior, u, th)
	return d, ok
}

// Explain is Decide plus the rule that triggered a new segment.
func (s *Segmenter) Explain(segments []model.Segment, prior int, u model.Utterance, th model.Thresholds) (Decision, Reason, bool) {
	return s.decide(segments, prior, u, th)
}

func (s *Segmenter) decide(segments []model.Segment, prior int, u model.Utterance, th model.Thresholds) (Decision, Reason, bool) {
	text := Normalize(u.Text)
	if text == "" {
		return Decision{}, ReasonMerged, false
	}

	tEnd := s.now()
	if u.TEndMs != nil {
		tEnd = *u.TEndMs
	}

	if prior < 0 || prior >= len(segments) {
		return s.create(segments, u, text, tEnd), ReasonFirstSegment, true
	}

	prev := segments[prior]
	if reason := splitReason(prev, text, tEnd, th); reason != ReasonMerged {
		return s.create(segments, u, text, tEnd), reason, true
	}

	merged := prev
	merged.Text = JoinText(prev.Text, text)
	if tEnd > merged.TEndMs {
		merged.TEndMs = tEnd
	}

	return Decision{Action: model.SegmentActionUpdated, Index: prior, Segment: merged}, ReasonMerged, true
}

// splitReason runs the new-segment checks in order and returns the first that fires.
func splitReason(prev model.Segment, text string, tEnd int64, th model.Thresholds) Reason {
	gap := tEnd - prev.TEndMs

	// Both gap checks stay: with defaults the merge gap is smaller and fires
	// first, but either may be configured below the other.
	if gap >= th.PauseBoundaryMs {
		return ReasonPauseBoundary
	}
	if gap >= th.MergeGapMs {
		return ReasonMergeGap
	}

	combined := JoinText(prev.Text, text)
	if utf8.RuneCountInString(combined) > th.MaxChars {
		return ReasonMaxChars
	}
	if len(strings.Fields(combined)) > th.MaxWords {
		return ReasonMaxWords
	}

	// Every segment gets its start at creation, and 0 is a valid session-relative start.
	if tEnd-prev.TStartMs > th.MaxDurationMs {
		return ReasonMaxDuration
	}

	return ReasonMerged
}

func (s *Segmenter) create(segments []model.Segment, u model.Utterance, text string, tEnd int64) Decision {
	tStart := tEnd
	if u.TStartMs != nil {
		tStart = *u.TStartMs
	}

	return Decision{
		Action: model.SegmentActionCreated,
		Index:  len(segments),
		Segment: model.Segment{
			ID:             s.NewID(),
			Speaker:        u.Speaker,
			Text:           text,
			TStartMs:       tStart,
			TEndMs:         tEnd,
			SourceClientID: u.SourceClientID,
		},
	}
}

func (s *Segmenter) now() int64 {
	if s.Now == nil {
		return time.Now().UnixMilli()
	}
	return s.Now().UnixMilli()
}

// Commit writes d into segments, appending for created segments and replacing
// in place for merges. It may modify the backing array of segments.
func Commit(segments []model.Segment, d Decision) []model.Segment {
	if d.Action == model.SegmentActionCreated {
		return append(segments, d.Segment)
	}
	segments[d.Index] = d.Segment
	return segments
}

// LastBySpeaker scans backward for the speaker's most recent segment.
// Segments from other speakers in between do not block the match.
func LastBySpeaker(segments []model.Segment, speaker string) int {
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i].Speaker == speaker {
			return i
		}
	}
	return -1
}
