// Package topic debounces noisy topic classifications into a displayed topic.
package topic

import "basegraph.app/scribe/internal/model"

// VotesToCommit is the number of consecutive qualifying votes a new topic needs.
const VotesToCommit = 2

// Pending is a candidate waiting for confirmation. Count is always >= 1.
type Pending struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// State is either Stable (Pending == nil) or Stable-with-Pending.
// Current is the last committed topic, "" until the first commit.
type State struct {
	Current string   `json:"current"`
	Pending *Pending `json:"pending,omitempty"`
}

// Stabilizer holds one room's topic state. It is not safe for concurrent use;
// the owning room serializes access.
type Stabilizer struct {
	state           State
	shiftConfidence float64
}

func NewStabilizer(shiftConfidence float64) *Stabilizer {
	if shiftConfidence <= 0 {
		shiftConfidence = model.DefaultTopicShiftConfidence
	}
	return &Stabilizer{shiftConfidence: shiftConfidence}
}

// Restore seeds the stabilizer with a previously committed topic.
func (s *Stabilizer) Restore(current string) {
	s.state = State{Current: current}
}

// State returns a copy of the current state.
func (s *Stabilizer) State() State {
	st := State{Current: s.state.Current}
	if s.state.Pending != nil {
		p := *s.state.Pending
		st.Pending = &p
	}
	return st
}

// Observe feeds one candidate through the state machine and reports the
// committed topic when this vote switched the displayed value.
//
// Low-confidence candidates and repeats of the current topic leave the state
// untouched, including any pending candidate. A qualifying vote for a topic
// other than the pending one replaces it with a fresh count of 1.
func (s *Stabilizer) Observe(c model.TopicCandidate) (string, bool) {
	if c.Confidence < s.shiftConfidence || c.Topic == s.state.Current {
		return "", false
	}

	p := s.state.Pending
	if p == nil || p.Topic != c.Topic {
		s.state.Pending = &Pending{Topic: c.Topic, Count: 1}
		return "", false
	}

	p.Count++
	if p.Count < VotesToCommit {
		return "", false
	}

	s.state = State{Current: c.Topic}
	return c.Topic, true
}
