package model

import "time"

type Room struct {
	CreatedAt  time.Time  `json:"created_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Thresholds Thresholds `json:"thresholds"`
}

// Thresholds are the segmentation and topic tunables. A zero field means
// "use the default" when merged with Merge.
type Thresholds struct {
	PauseBoundaryMs      int64   `json:"pause_boundary_ms,omitempty"`
	MergeGapMs           int64   `json:"merge_gap_ms,omitempty"`
	MaxChars             int     `json:"max_chars,omitempty"`
	MaxWords             int     `json:"max_words,omitempty"`
	MaxDurationMs        int64   `json:"max_duration_ms,omitempty"`
	TopicShiftConfidence float64 `json:"topic_shift_confidence,omitempty"`
}

const (
	DefaultPauseBoundaryMs      int64   = 2000
	DefaultMergeGapMs           int64   = 1200
	DefaultMaxChars                     = 280
	DefaultMaxWords                     = 35
	DefaultMaxDurationMs        int64   = 12000
	DefaultTopicShiftConfidence float64 = 0.60
)

func DefaultThresholds() Thresholds {
	return Thresholds{
		PauseBoundaryMs:      DefaultPauseBoundaryMs,
		MergeGapMs:           DefaultMergeGapMs,
		MaxChars:             DefaultMaxChars,
		MaxWords:             DefaultMaxWords,
		MaxDurationMs:        DefaultMaxDurationMs,
		TopicShiftConfidence: DefaultTopicShiftConfidence,
	}
}

// Merge returns t with every positive field of override applied on top.
func (t Thresholds) Merge(override Thresholds) Thresholds {
	if override.PauseBoundaryMs > 0 {
		t.PauseBoundaryMs = override.PauseBoundaryMs
	}
	if override.MergeGapMs > 0 {
		t.MergeGapMs = override.MergeGapMs
	}
	if override.MaxChars > 0 {
		t.MaxChars = override.MaxChars
	}
	if override.MaxWords > 0 {
		t.MaxWords = override.MaxWords
	}
	if override.MaxDurationMs > 0 {
		t.MaxDurationMs = override.MaxDurationMs
	}
	if override.TopicShiftConfidence > 0 {
		t.TopicShiftConfidence = override.TopicShiftConfidence
	}
	return t
}
