package dto

import "basegraph.app/scribe/internal/model"

type UtteranceRequest struct {
	Speaker        string      `json:"speaker" binding:"required,max=128"`
	Text           string      `json:"text" binding:"max=10000"`
	TEndMs         *int64      `json:"tEndMs,omitempty" binding:"omitempty,gte=0"`
	TStartMs       *int64      `json:"tStartMs,omitempty" binding:"omitempty,gte=0"`
	SourceClientID string      `json:"sourceClientId,omitempty" binding:"max=128"`
	Thresholds     *Thresholds `json:"thresholds,omitempty"` // per-call overrides
}

func (r UtteranceRequest) ToModel() model.Utterance {
	return model.Utterance{
		Speaker:        r.Speaker,
		Text:           r.Text,
		TEndMs:         r.TEndMs,
		TStartMs:       r.TStartMs,
		SourceClientID: r.SourceClientID,
	}
}

type SegmentEventResponse struct {
	Event *model.SegmentEvent `json:"event"`
}
