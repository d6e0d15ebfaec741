package store

import (
	"basegraph.app/scribe/core/db"
)

type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Rooms() RoomStore {
	return newRoomStore(s.q)
}

func (s *Stores) Segments() SegmentStore {
	return newSegmentStore(s.q)
}

func (s *Stores) Topics() TopicStore {
	return newTopicStore(s.q)
}

func (s *Stores) Summaries() SummaryStore {
	return newSummaryStore(s.q)
}
