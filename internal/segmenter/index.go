package segmenter

import "basegraph.app/scribe/internal/model"

// SpeakerIndex maps a speaker to the index of their most recent segment.
// It replaces the backward scan for rooms with long logs; lookups give the
// same answer as LastBySpeaker as long as every committed Decision is recorded.
type SpeakerIndex map[string]int

func BuildIndex(segments []model.Segment) SpeakerIndex {
	ix := make(SpeakerIndex)
	for i, seg := range segments {
		ix[seg.Speaker] = i
	}
	return ix
}

func (ix SpeakerIndex) Last(speaker string) int {
	if i, ok := ix[speaker]; ok {
		return i
	}
	return -1
}

// Record notes a committed decision. Merges keep the speaker's index unchanged.
func (ix SpeakerIndex) Record(d Decision) {
	if d.Action == model.SegmentActionCreated {
		ix[d.Segment.Speaker] = d.Index
	}
}
