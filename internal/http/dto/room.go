package dto

import (
	"time"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/topic"
)

// Thresholds uses zero for "keep the default".
type Thresholds struct {
	PauseBoundaryMs      int64   `json:"pauseBoundaryMs,omitempty" binding:"gte=0"`
	MergeGapMs           int64   `json:"mergeGapMs,omitempty" binding:"gte=0"`
	MaxChars             int     `json:"maxChars,omitempty" binding:"gte=0"`
	MaxWords             int     `json:"maxWords,omitempty" binding:"gte=0"`
	MaxDurationMs        int64   `json:"maxDurationMs,omitempty" binding:"gte=0"`
	TopicShiftConfidence float64 `json:"topicShiftConfidence,omitempty" binding:"gte=0,lte=1"`
}

func (t *Thresholds) ToModel() model.Thresholds {
	if t == nil {
		return model.Thresholds{}
	}
	return model.Thresholds{
		PauseBoundaryMs:      t.PauseBoundaryMs,
		MergeGapMs:           t.MergeGapMs,
		MaxChars:             t.MaxChars,
		MaxWords:             t.MaxWords,
		MaxDurationMs:        t.MaxDurationMs,
		TopicShiftConfidence: t.TopicShiftConfidence,
	}
}

func ToThresholds(t model.Thresholds) Thresholds {
	return Thresholds{
		PauseBoundaryMs:      t.PauseBoundaryMs,
		MergeGapMs:           t.MergeGapMs,
		MaxChars:             t.MaxChars,
		MaxWords:             t.MaxWords,
		MaxDurationMs:        t.MaxDurationMs,
		TopicShiftConfidence: t.TopicShiftConfidence,
	}
}

type CreateRoomRequest struct {
	ID         string      `json:"id,omitempty" binding:"max=64"`
	Name       string      `json:"name" binding:"max=255"`
	Thresholds *Thresholds `json:"thresholds,omitempty"`
}

type RoomResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Thresholds Thresholds          `json:"thresholds"`
	CreatedAt  time.Time           `json:"createdAt"`
	Topic      *TopicStateResponse `json:"topic,omitempty"`
}

func ToRoomResponse(r *model.Room) *RoomResponse {
	return &RoomResponse{
		ID:         r.ID,
		Name:       r.Name,
		Thresholds: ToThresholds(r.Thresholds),
		CreatedAt:  r.CreatedAt,
	}
}

type TopicStateResponse struct {
	Current      string  `json:"current"`
	Pending      *string `json:"pending"`
	PendingCount int     `json:"pendingCount"`
}

func ToTopicStateResponse(s topic.State) *TopicStateResponse {
	resp := &TopicStateResponse{Current: s.Current}
	if s.Pending != nil {
		pending := s.Pending.Topic
		resp.Pending = &pending
		resp.PendingCount = s.Pending.Count
	}
	return resp
}
