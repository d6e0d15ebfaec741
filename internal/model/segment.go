package model

// Segment is a contiguous run of text attributed to one speaker within a room.
// ID, Speaker, TStartMs and SourceClientID never change after creation; Text
// and TEndMs are extended in place when later utterances merge into it.
type Segment struct {
	ID             string `json:"id"`
	Speaker        string `json:"speaker"`
	Text           string `json:"text"`
	TStartMs       int64  `json:"tStartMs"`
	TEndMs         int64  `json:"tEndMs"`
	SourceClientID string `json:"sourceClientId,omitempty"`
}

// Utterance is one speaker-labelled speech-to-text fragment. It is never
// stored; its effect only survives inside a Segment.
type Utterance struct {
	Speaker        string `json:"speaker"`
	Text           string `json:"text"`
	TEndMs         *int64 `json:"tEndMs,omitempty"`
	TStartMs       *int64 `json:"tStartMs,omitempty"`
	SourceClientID string `json:"sourceClientId,omitempty"`
}

type SegmentAction string

const (
	SegmentActionCreated SegmentAction = "created"
	SegmentActionUpdated SegmentAction = "updated"
)

// SegmentEvent describes the effect of one utterance on a room's segment log.
type SegmentEvent struct {
	Action  SegmentAction `json:"action"`
	Segment Segment       `json:"segment"`
	RoomID  string        `json:"roomId,omitempty"`
	Index   int           `json:"index"` // position in the room's log
}
