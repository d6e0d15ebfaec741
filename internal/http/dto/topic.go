package dto

import "basegraph.app/scribe/internal/model"

type ProposeTopicRequest struct {
	Topic      string   `json:"topic" binding:"required,max=200"`
	Confidence *float64 `json:"confidence" binding:"required,gte=0,lte=1"`
}

type ProposeTopicResponse struct {
	Committed bool              `json:"committed"`
	Topic     *model.TopicEvent `json:"topic"`
}
