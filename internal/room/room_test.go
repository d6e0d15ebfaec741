package room_test

import (
	"fmt"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/room"
	"basegraph.app/scribe/internal/segmenter"
	"basegraph.app/scribe/internal/topic"
)

func ms(v int64) *int64 { return &v }

var _ = Describe("Room", func() {
	var (
		reg *room.Registry
		rm  *room.Room
	)

	BeforeEach(func() {
		reg = room.NewRegistry(model.Thresholds{}, segmenter.New())
		var err error
		rm, err = reg.Create(room.CreateParams{Name: "Design Review"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("merges and creates segments through the room lock", func() {
		ev := rm.AddUtterance(model.Utterance{Speaker: "A", Text: "Hello", TEndMs: ms(1000)})
		Expect(ev.Action).To(Equal(model.SegmentActionCreated))
		Expect(ev.RoomID).To(Equal("design-review"))
		Expect(ev.Index).To(Equal(0))

		ev = rm.AddUtterance(model.Utterance{Speaker: "A", Text: "there", TEndMs: ms(1800)})
		Expect(ev.Action).To(Equal(model.SegmentActionUpdated))
		Expect(ev.Segment.Text).To(Equal("Hello there"))
		Expect(rm.Len()).To(Equal(1))
		Expect(rm.Version()).To(Equal(uint64(2)))
	})

	It("returns nil and leaves the version alone for empty text", func() {
		Expect(rm.AddUtterance(model.Utterance{Speaker: "A", Text: "  "})).To(BeNil())
		Expect(rm.Version()).To(BeZero())
	})

	It("applies per-call threshold overrides", func() {
		rm.AddUtterance(model.Utterance{Speaker: "A", Text: "Hello", TEndMs: ms(1000)})
		ev := rm.AddUtteranceWith(model.Utterance{Speaker: "A", Text: "there", TEndMs: ms(1500)},
			model.Thresholds{MergeGapMs: 300})
		Expect(ev.Action).To(Equal(model.SegmentActionCreated))
	})

	It("pages over the live log", func() {
		for i := range 10 {
			rm.AddUtterance(model.Utterance{Speaker: fmt.Sprintf("S%d", i%2), Text: "x", TEndMs: ms(int64(i) * 5000)})
		}
		res := rm.Page(nil, 4)
		Expect(res.Segments).To(HaveLen(4))
		Expect(res.NextCursor).To(HaveValue(Equal(6)))
	})

	It("stabilizes topics with the room threshold", func() {
		strict, err := reg.Create(room.CreateParams{Name: "strict", Thresholds: model.Thresholds{TopicShiftConfidence: 0.9}})
		Expect(err).NotTo(HaveOccurred())

		strict.ObserveTopic(model.TopicCandidate{Topic: "Budget", Confidence: 0.8})
		Expect(strict.TopicState().Pending).To(BeNil())

		rm.ObserveTopic(model.TopicCandidate{Topic: "Budget", Confidence: 0.8})
		committed, ok := rm.ObserveTopic(model.TopicCandidate{Topic: "Budget", Confidence: 0.8})
		Expect(ok).To(BeTrue())
		Expect(committed).To(Equal("Budget"))
		Expect(rm.TopicState()).To(Equal(topic.State{Current: "Budget"}))
	})

	It("restores a persisted log and keeps merging into it", func() {
		rm.Restore([]model.Segment{
			{ID: "1", Speaker: "A", Text: "old", TStartMs: 1000, TEndMs: 1000},
			{ID: "2", Speaker: "B", Text: "reply", TStartMs: 1100, TEndMs: 1100},
		}, "Roadmap")

		ev := rm.AddUtterance(model.Utterance{Speaker: "A", Text: "news", TEndMs: ms(1500)})
		Expect(ev.Action).To(Equal(model.SegmentActionUpdated))
		Expect(ev.Index).To(Equal(0))
		Expect(ev.Segment.Text).To(Equal("old news"))
		Expect(rm.TopicState().Current).To(Equal("Roadmap"))
	})

	It("returns copies from Recent and Snapshot", func() {
		rm.AddUtterance(model.Utterance{Speaker: "A", Text: "one", TEndMs: ms(1000)})
		rm.AddUtterance(model.Utterance{Speaker: "B", Text: "two", TEndMs: ms(1000)})

		recent := rm.Recent(1)
		Expect(recent).To(HaveLen(1))
		Expect(recent[0].Text).To(Equal("two"))
		recent[0].Text = "changed"
		Expect(rm.Snapshot()[1].Text).To(Equal("two"))
		Expect(rm.Recent(10)).To(HaveLen(2))
	})

	It("serializes concurrent writers without tearing segments", func() {
		const speakers, perSpeaker = 8, 50

		var wg sync.WaitGroup
		for s := range speakers {
			wg.Add(1)
			go func(s int) {
				defer wg.Done()
				for i := range perSpeaker {
					rm.AddUtterance(model.Utterance{
						Speaker: fmt.Sprintf("spk-%d", s),
						Text:    "w",
						TEndMs:  ms(int64(1000 + i)),
					})
					_ = rm.Page(nil, 10)
				}
			}(s)
		}
		wg.Wait()

		words := 0
		for _, seg := range rm.Snapshot() {
			words += len(strings.Fields(seg.Text))
			Expect(seg.TEndMs).To(BeNumerically(">=", seg.TStartMs))
		}
		Expect(words).To(Equal(speakers * perSpeaker))
		Expect(rm.Version()).To(Equal(uint64(speakers * perSpeaker)))
	})
})

var _ = Describe("Registry", func() {
	var reg *room.Registry

	BeforeEach(func() {
		reg = room.NewRegistry(model.Thresholds{MergeGapMs: 900}, segmenter.New())
	})

	It("derives ids from names and disambiguates duplicates", func() {
		a, err := reg.Create(room.CreateParams{Name: "Weekly Sync"})
		Expect(err).NotTo(HaveOccurred())
		b, err := reg.Create(room.CreateParams{Name: "Weekly Sync"})
		Expect(err).NotTo(HaveOccurred())

		Expect(a.ID()).To(Equal("weekly-sync"))
		Expect(b.ID()).To(HavePrefix("weekly-sync-"))
		Expect(b.ID()).NotTo(Equal(a.ID()))
	})

	It("rejects a taken explicit id", func() {
		_, err := reg.Create(room.CreateParams{ID: "standup"})
		Expect(err).NotTo(HaveOccurred())
		_, err = reg.Create(room.CreateParams{ID: "standup"})
		Expect(err).To(MatchError(room.ErrRoomExists))
	})

	It("falls back to a generic id", func() {
		rm, err := reg.Create(room.CreateParams{Name: "!!!"})
		Expect(err).NotTo(HaveOccurred())
		Expect(rm.ID()).To(Equal("room"))
		Expect(rm.Info().Name).To(Equal("!!!"))
	})

	It("layers room overrides over service defaults", func() {
		rm, err := reg.Create(room.CreateParams{Name: "x", Thresholds: model.Thresholds{MaxWords: 10}})
		Expect(err).NotTo(HaveOccurred())

		th := rm.Info().Thresholds
		Expect(th.MergeGapMs).To(Equal(int64(900)))
		Expect(th.MaxWords).To(Equal(10))
		Expect(th.MaxChars).To(Equal(model.DefaultMaxChars))
	})

	It("gets, lists and ends rooms", func() {
		a, _ := reg.Create(room.CreateParams{Name: "a"})
		_, _ = reg.Create(room.CreateParams{Name: "b"})

		got, err := reg.Get("a")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(a))
		Expect(reg.List()).To(HaveLen(2))

		_, err = reg.End("a")
		Expect(err).NotTo(HaveOccurred())
		_, err = reg.Get("a")
		Expect(err).To(MatchError(room.ErrRoomNotFound))
		_, err = reg.End("a")
		Expect(err).To(MatchError(room.ErrRoomNotFound))
		Expect(reg.List()).To(HaveLen(1))
	})

	It("adds restored rooms once", func() {
		rm := reg.Build(model.Room{ID: "restored", Name: "Restored"})
		Expect(rm.Info().Thresholds.MergeGapMs).To(Equal(int64(900)))
		Expect(reg.Add(rm)).To(Succeed())
		Expect(reg.Add(rm)).To(MatchError(room.ErrRoomExists))
	})
})

var _ = Describe("Room emits", func() {
	It("delivers segment events in commit order", func() {
		reg := room.NewRegistry(model.Thresholds{}, segmenter.New())
		rm, err := reg.Create(room.CreateParams{Name: "ordered"})
		Expect(err).NotTo(HaveOccurred())

		var (
			mu   sync.Mutex
			seen []string
		)
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rm.Append(model.Utterance{Speaker: "A", Text: "w", TEndMs: ms(1000 + int64(i))}, model.Thresholds{},
					func(ev model.SegmentEvent) {
						mu.Lock()
						seen = append(seen, ev.Segment.Text)
						mu.Unlock()
					})
			}(i)
		}
		wg.Wait()

		Expect(seen).To(HaveLen(20))
		for i := 1; i < len(seen); i++ {
			Expect(len(seen[i])).To(BeNumerically(">", len(seen[i-1])))
		}
	})

	It("skips emit for no-op utterances and uncommitted topics", func() {
		reg := room.NewRegistry(model.Thresholds{}, segmenter.New())
		rm, _ := reg.Create(room.CreateParams{Name: "quiet"})

		called := 0
		Expect(rm.Append(model.Utterance{Speaker: "A"}, model.Thresholds{}, func(model.SegmentEvent) { called++ })).To(BeNil())
		rm.ObserveTopicThen(model.TopicCandidate{Topic: "x", Confidence: 0.9}, func(string) { called++ })
		Expect(called).To(BeZero())

		rm.ObserveTopicThen(model.TopicCandidate{Topic: "x", Confidence: 0.9}, func(string) { called++ })
		Expect(called).To(Equal(1))
	})
})
