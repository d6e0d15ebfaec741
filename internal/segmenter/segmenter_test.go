package segmenter_test

import (
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/segmenter"
)

func ms(v int64) *int64 { return &v }

func utter(speaker, text string, tEnd int64) model.Utterance {
	return model.Utterance{Speaker: speaker, Text: text, TEndMs: ms(tEnd)}
}

var _ = Describe("Segmenter", func() {
	var (
		seg     *segmenter.Segmenter
		th      model.Thresholds
		counter int
	)

	BeforeEach(func() {
		counter = 0
		seg = &segmenter.Segmenter{
			NewID: func() string {
				counter++
				return fmt.Sprintf("seg-%d", counter)
			},
			Now: func() time.Time { return time.UnixMilli(99_000) },
		}
		th = model.DefaultThresholds()
	})

	apply := func(segments []model.Segment, utterances ...model.Utterance) []model.Segment {
		for _, u := range utterances {
			segments, _ = seg.Apply(segments, u, th)
		}
		return segments
	}

	Describe("Apply", func() {
		It("merges a quick follow-up from the same speaker", func() {
			out, ev := seg.Apply(nil, utter("A", "Hello", 1000), th)
			Expect(ev.Action).To(Equal(model.SegmentActionCreated))

			out, ev = seg.Apply(out, utter("A", "there", 1800), th)
			Expect(ev.Action).To(Equal(model.SegmentActionUpdated))
			Expect(out).To(HaveLen(1))
			Expect(out[0].Text).To(Equal("Hello there"))
			Expect(out[0].TStartMs).To(Equal(int64(1000)))
			Expect(out[0].TEndMs).To(Equal(int64(1800)))
		})

		It("space-joins a run of same-speaker utterances in arrival order", func() {
			out := apply(nil,
				utter("A", "we should", 1000),
				utter("A", "ship the", 1500),
				utter("A", "beta on", 2100),
				utter("A", "Friday", 2900),
			)
			Expect(out).To(HaveLen(1))
			Expect(out[0].Text).To(Equal("we should ship the beta on Friday"))
		})

		It("ignores empty and whitespace-only text", func() {
			start := apply(nil, utter("A", "Hello", 1000))

			out, ev := seg.Apply(start, utter("A", "   \t\n ", 1100), th)
			Expect(ev).To(BeNil())
			Expect(out).To(Equal(start))

			out, ev = seg.Apply(nil, utter("B", "", 1100), th)
			Expect(ev).To(BeNil())
			Expect(out).To(BeEmpty())
		})

		It("normalizes whitespace", func() {
			out := apply(nil, utter("A", "  hello \t  world \n", 1000))
			Expect(out[0].Text).To(Equal("hello world"))
		})

		It("starts a new segment when the speaker changes", func() {
			out := apply(nil, utter("A", "Hello", 1000), utter("B", "Hi", 1000))
			Expect(out).To(HaveLen(2))
			Expect(out[1].Speaker).To(Equal("B"))
		})

		It("lets interleaved speakers keep their own last segment", func() {
			out := apply(nil,
				utter("A", "one", 1000),
				utter("B", "two", 1100),
			)
			out, ev := seg.Apply(out, utter("A", "three", 1500), th)

			Expect(out).To(HaveLen(2))
			Expect(ev.Action).To(Equal(model.SegmentActionUpdated))
			Expect(ev.Index).To(Equal(0))
			Expect(out[0].Text).To(Equal("one three"))
			Expect(out[1].Text).To(Equal("two"))
		})

		It("never modifies the input slice", func() {
			start := apply(nil, utter("A", "Hello", 1000))
			out, _ := seg.Apply(start, utter("A", "there", 1500), th)

			Expect(start[0].Text).To(Equal("Hello"))
			Expect(out[0].Text).To(Equal("Hello there"))
		})

		It("keeps id, speaker, start and source immutable on merge", func() {
			first := model.Utterance{Speaker: "A", Text: "Hello", TEndMs: ms(1000), TStartMs: ms(700), SourceClientID: "mic-1"}
			second := model.Utterance{Speaker: "A", Text: "again", TEndMs: ms(1500), TStartMs: ms(1200), SourceClientID: "mic-2"}

			out := apply(nil, first, second)
			Expect(out).To(HaveLen(1))
			Expect(out[0].ID).To(Equal("seg-1"))
			Expect(out[0].TStartMs).To(Equal(int64(700)))
			Expect(out[0].SourceClientID).To(Equal("mic-1"))
		})

		It("defaults tStartMs to tEndMs", func() {
			out := apply(nil, utter("A", "Hello", 4200))
			Expect(out[0].TStartMs).To(Equal(int64(4200)))
		})

		It("defaults tEndMs to the current time", func() {
			out := apply(nil, model.Utterance{Speaker: "A", Text: "Hello"})
			Expect(out[0].TEndMs).To(Equal(int64(99_000)))
			Expect(out[0].TStartMs).To(Equal(int64(99_000)))
		})

		It("never moves tEndMs backwards", func() {
			out := apply(nil, utter("A", "Hello", 2000), utter("A", "late", 1500))
			Expect(out).To(HaveLen(1))
			Expect(out[0].TEndMs).To(Equal(int64(2000)))
		})

		It("assigns fresh ids to new segments", func() {
			out := apply(nil, utter("A", "one", 1000), utter("B", "two", 1000), utter("A", "three", 9000))
			Expect(out).To(HaveLen(3))
			Expect([]string{out[0].ID, out[1].ID, out[2].ID}).To(Equal([]string{"seg-1", "seg-2", "seg-3"}))
		})
	})

	Describe("split rules", func() {
		DescribeTable("gap between same-speaker utterances",
			func(secondEnd int64, wantSegments int) {
				out := apply(nil, utter("A", "Hello", 1000), utter("A", "there", secondEnd))
				Expect(out).To(HaveLen(wantSegments))
			},
			Entry("well under the merge gap", int64(1500), 1),
			Entry("just under the merge gap", int64(2199), 1),
			Entry("exactly the merge gap", int64(2200), 2),
			Entry("past the pause boundary", int64(3500), 2),
		)

		It("splits when the combined text would exceed MAX_CHARS", func() {
			long := strings.Repeat("a", 270)
			out := apply(nil, utter("A", long, 1000), utter("A", strings.Repeat("b", 10), 1100))
			Expect(out).To(HaveLen(2))
		})

		It("merges when the combined text is exactly MAX_CHARS", func() {
			long := strings.Repeat("a", 270)
			out := apply(nil, utter("A", long, 1000), utter("A", strings.Repeat("b", 9), 1100))
			Expect(out).To(HaveLen(1))
			Expect(out[0].Text).To(HaveLen(280))
		})

		It("counts characters, not bytes", func() {
			th.MaxChars = 11
			out := apply(nil, utter("A", "héllo", 1000), utter("A", "wörld", 1100))
			Expect(out).To(HaveLen(1))
			Expect(out[0].Text).To(Equal("héllo wörld"))
		})

		It("splits when the combined word count would exceed MAX_WORDS", func() {
			words := strings.TrimSpace(strings.Repeat("w ", 34))
			out := apply(nil, utter("A", words, 1000), utter("A", "x y", 1100))
			Expect(out).To(HaveLen(2))
		})

		It("merges up to exactly MAX_WORDS", func() {
			words := strings.TrimSpace(strings.Repeat("w ", 34))
			out := apply(nil, utter("A", words, 1000), utter("A", "x", 1100))
			Expect(out).To(HaveLen(1))
		})

		It("splits when the segment would span more than MAX_DURATION_MS", func() {
			var out []model.Segment
			for t := int64(10_000); t <= 22_000; t += 1000 {
				out = apply(out, utter("A", "w", t))
			}
			Expect(out).To(HaveLen(1))

			out = apply(out, utter("A", "w", 23_000))
			Expect(out).To(HaveLen(2))
			Expect(out[1].TStartMs).To(Equal(int64(23_000)))
		})

		It("measures duration from a segment that starts at zero", func() {
			first := model.Utterance{Speaker: "A", Text: "hi", TStartMs: ms(0), TEndMs: ms(800)}
			out := apply(nil, first)
			for t := int64(1800); t <= 11_800; t += 1000 {
				out = apply(out, utter("A", "w", t))
			}
			Expect(out).To(HaveLen(1))
			Expect(out[0].TStartMs).To(BeZero())
			Expect(out[0].TEndMs).To(Equal(int64(11_800)))

			out = apply(out, utter("A", "w", 12_800))
			Expect(out).To(HaveLen(2))
			Expect(out[0].TEndMs).To(Equal(int64(11_800)))
			Expect(out[1].TStartMs).To(Equal(int64(12_800)))
		})

		It("merges a segment starting at zero up to exactly MAX_DURATION_MS", func() {
			prior := []model.Segment{{ID: "x", Speaker: "A", Text: "hi", TStartMs: 0, TEndMs: 11_500}}
			_, ev := seg.Apply(prior, utter("A", "there", 12_000), th)
			Expect(ev.Action).To(Equal(model.SegmentActionUpdated))

			_, reason, _ := seg.Explain(prior, 0, utter("A", "there", 12_001), th)
			Expect(reason).To(Equal(segmenter.ReasonMaxDuration))
		})

		It("checks the pause boundary even when configured below the merge gap", func() {
			th.PauseBoundaryMs = 500
			th.MergeGapMs = 1200

			prior := apply(nil, utter("A", "Hello", 1000))
			d, reason, ok := seg.Explain(prior, 0, utter("A", "there", 1600), th)
			Expect(ok).To(BeTrue())
			Expect(d.Action).To(Equal(model.SegmentActionCreated))
			Expect(reason).To(Equal(segmenter.ReasonPauseBoundary))
		})

		DescribeTable("reports which rule split the segment",
			func(u model.Utterance, want segmenter.Reason) {
				prior := []model.Segment{{ID: "p", Speaker: "A", Text: "hello there", TStartMs: 1000, TEndMs: 1000}}
				prev := segmenter.LastBySpeaker(prior, u.Speaker)
				_, reason, ok := seg.Explain(prior, prev, u, th)
				Expect(ok).To(BeTrue())
				Expect(reason).To(Equal(want))
			},
			Entry("merge", utter("A", "again", 1500), segmenter.ReasonMerged),
			Entry("unknown speaker", utter("B", "hi", 1500), segmenter.ReasonFirstSegment),
			Entry("merge gap", utter("A", "again", 2500), segmenter.ReasonMergeGap),
			Entry("pause boundary", utter("A", "again", 3000), segmenter.ReasonPauseBoundary),
			Entry("max chars", utter("A", strings.Repeat("z", 280), 1100), segmenter.ReasonMaxChars),
			Entry("max words", utter("A", strings.TrimSpace(strings.Repeat("z ", 34)), 1100), segmenter.ReasonMaxWords),
		)
	})

	Describe("SpeakerIndex", func() {
		It("agrees with the backward scan", func() {
			utterances := []model.Utterance{
				utter("A", "one", 1000),
				utter("B", "two", 1100),
				utter("C", "three", 1200),
				utter("A", "four", 1300),
				utter("B", "five", 4000),
				utter("A", "six", 4100),
				utter("C", "seven", 4200),
				utter("B", "eight", 4300),
			}

			var scanned, indexed []model.Segment
			ix := segmenter.SpeakerIndex{}
			for _, u := range utterances {
				a, okA := seg.Decide(scanned, segmenter.LastBySpeaker(scanned, u.Speaker), u, th)
				b, okB := seg.Decide(indexed, ix.Last(u.Speaker), u, th)
				Expect(okA).To(Equal(okB))
				Expect(b.Action).To(Equal(a.Action))
				Expect(b.Index).To(Equal(a.Index))

				scanned = segmenter.Commit(scanned, a)
				indexed = segmenter.Commit(indexed, b)
				ix.Record(b)
			}

			Expect(segmenter.BuildIndex(indexed)).To(Equal(ix))
			Expect(indexed).To(HaveLen(len(scanned)))
			for i := range scanned {
				Expect(indexed[i].Text).To(Equal(scanned[i].Text))
			}
		})
	})
})

var _ = Describe("JoinText", func() {
	DescribeTable("join-space rule",
		func(prev, next, want string) {
			Expect(segmenter.JoinText(prev, next)).To(Equal(want))
		},
		Entry("plain words", "Hello", "there", "Hello there"),
		Entry("hyphen", "well-", "known", "well-known"),
		Entry("em dash", "so—", "anyway", "so—anyway"),
		Entry("open paren", "He said (", "aside", "He said (aside"),
		Entry("open quote", "she said “", "no", "she said “no"),
		Entry("opening straight quote", `I said "`, "yes", `I said "yes`),
		Entry("lone straight quote", `"`, "yes", `"yes`),
		Entry("closing straight quote", `I said "yes"`, "then", `I said "yes" then`),
		Entry("possessive apostrophe", "the kids'", "toys", "the kids' toys"),
		Entry("opening single quote", "call it '", "done", "call it 'done"),
		Entry("trailing space", "Hello ", "there", "Hello there"),
		Entry("comma", "Hello", ", world", "Hello, world"),
		Entry("question mark", "Wait", "?", "Wait?"),
		Entry("closing paren", "(aside", ") anyway", "(aside) anyway"),
		Entry("empty prev", "", "start", "start"),
		Entry("empty next", "end", "", "end"),
	)
})

var _ = Describe("Normalize", func() {
	It("collapses whitespace runs", func() {
		Expect(segmenter.Normalize(" a \t b\n\nc ")).To(Equal("a b c"))
	})

	It("returns empty for blank input", func() {
		Expect(segmenter.Normalize(" \n\t ")).To(BeEmpty())
	})
})
