package model

import "time"

// TopicCandidate is a proposed "current topic" label, usually from the summarizer.
type TopicCandidate struct {
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
}

// TopicEvent is emitted only when a candidate is committed as the room's topic.
type TopicEvent struct {
	RoomID      string    `json:"roomId"`
	Topic       string    `json:"topic"`
	CommittedAt time.Time `json:"committedAt"`
}

// Summary is the fixed-shape, size-bounded form of a model-generated room summary.
type Summary struct {
	Topic          string   `json:"topic"`
	Subtopic       string   `json:"subtopic"`
	Status         string   `json:"status"`
	RollingSummary string   `json:"rolling_summary"`
	Decisions      []string `json:"decisions"`
	NextSteps      []string `json:"next_steps"`
	Confidence     float64  `json:"confidence"`
}

const SummaryStatusDeciding = "Deciding"
