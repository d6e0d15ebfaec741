package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/room"
	"basegraph.app/scribe/internal/segmenter"
	"basegraph.app/scribe/internal/service"
	"basegraph.app/scribe/internal/store"
)

func ms(v int64) *int64 { return &v }

var _ = Describe("RoomService", func() {
	var (
		ctx       context.Context
		registry  *room.Registry
		stores    *mockStores
		tx        *mockTxRunner
		publisher *mockPublisher
		svc       service.RoomService
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		registry = room.NewRegistry(model.Thresholds{}, segmenter.New())
		stores = newMockStores()
		tx = &mockTxRunner{stores: stores}
		publisher = &mockPublisher{}
		svc = service.NewRoomService(registry, service.Persistence{Stores: stores, TxRunner: tx}, publisher, nil)
	})

	Describe("Create", func() {
		It("registers and persists the room with effective thresholds", func() {
			var persisted model.Room
			stores.rooms.createFn = func(_ context.Context, r model.Room) error {
				persisted = r
				return nil
			}

			rm, err := svc.Create(ctx, service.CreateRoomParams{Name: "Planning", Thresholds: model.Thresholds{MaxWords: 12}})
			Expect(err).NotTo(HaveOccurred())
			Expect(rm.ID).To(Equal("planning"))
			Expect(persisted.ID).To(Equal("planning"))
			Expect(persisted.Thresholds.MaxWords).To(Equal(12))
			Expect(persisted.Thresholds.MaxChars).To(Equal(model.DefaultMaxChars))
		})

		It("rolls back the registry when persistence fails", func() {
			stores.rooms.createFn = func(context.Context, model.Room) error {
				return errors.New("db down")
			}

			_, err := svc.Create(ctx, service.CreateRoomParams{Name: "Planning"})
			Expect(err).To(MatchError(ContainSubstring("db down")))

			_, err = svc.Get(ctx, "planning")
			Expect(err).To(MatchError(service.ErrRoomNotFound))
		})

		It("reports explicit id conflicts", func() {
			_, err := svc.Create(ctx, service.CreateRoomParams{ID: "ops"})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Create(ctx, service.CreateRoomParams{ID: "ops"})
			Expect(err).To(MatchError(service.ErrRoomExists))
		})
	})

	Describe("AddUtterance", func() {
		BeforeEach(func() {
			_, err := svc.Create(ctx, service.CreateRoomParams{ID: "r1"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("persists and publishes each segment change at its log index", func() {
			type upsert struct {
				seq  int
				text string
			}
			var upserts []upsert
			stores.segments.upsertFn = func(_ context.Context, roomID string, seq int, seg model.Segment) error {
				Expect(roomID).To(Equal("r1"))
				upserts = append(upserts, upsert{seq, seg.Text})
				return nil
			}

			_, err := svc.AddUtterance(ctx, "r1", model.Utterance{Speaker: "A", Text: "Hello", TEndMs: ms(1000)})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddUtterance(ctx, "r1", model.Utterance{Speaker: "B", Text: "Hi", TEndMs: ms(1100)})
			Expect(err).NotTo(HaveOccurred())
			ev, err := svc.AddUtterance(ctx, "r1", model.Utterance{Speaker: "A", Text: "again", TEndMs: ms(1500)})
			Expect(err).NotTo(HaveOccurred())

			Expect(ev.Action).To(Equal(model.SegmentActionUpdated))
			Expect(ev.Index).To(Equal(0))
			Expect(upserts).To(Equal([]upsert{{0, "Hello"}, {1, "Hi"}, {0, "Hello again"}}))
			Expect(publisher.ofType(queue.EventSegment)).To(HaveLen(3))
		})

		It("is a silent no-op for blank text", func() {
			ev, err := svc.AddUtterance(ctx, "r1", model.Utterance{Speaker: "A", Text: "   "})
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
			Expect(publisher.events).To(BeEmpty())
		})

		It("keeps the in-memory log when persistence and publishing fail", func() {
			stores.segments.upsertFn = func(context.Context, string, int, model.Segment) error {
				return errors.New("db down")
			}
			publisher.err = errors.New("redis down")

			ev, err := svc.AddUtterance(ctx, "r1", model.Utterance{Speaker: "A", Text: "still here"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).NotTo(BeNil())

			page, err := svc.Page(ctx, "r1", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Segments).To(HaveLen(1))
		})

		It("returns ErrRoomNotFound for unknown rooms", func() {
			_, err := svc.AddUtterance(ctx, "nope", model.Utterance{Speaker: "A", Text: "x"})
			Expect(err).To(MatchError(service.ErrRoomNotFound))
		})

		It("honours per-call overrides", func() {
			_, _ = svc.AddUtterance(ctx, "r1", model.Utterance{Speaker: "A", Text: "one", TEndMs: ms(1000)})
			ev, err := svc.AddUtteranceWith(ctx, "r1", model.Utterance{Speaker: "A", Text: "two", TEndMs: ms(1400)},
				model.Thresholds{MergeGapMs: 200})
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Action).To(Equal(model.SegmentActionCreated))
		})
	})

	Describe("ProposeTopic", func() {
		BeforeEach(func() {
			_, err := svc.Create(ctx, service.CreateRoomParams{ID: "r1"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("commits on the second qualifying vote and records it once", func() {
			var recorded []model.TopicEvent
			stores.topics.recordFn = func(_ context.Context, ev model.TopicEvent) error {
				recorded = append(recorded, ev)
				return nil
			}

			ev, err := svc.ProposeTopic(ctx, "r1", model.TopicCandidate{Topic: "Budget", Confidence: 0.7})
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())

			ev, err = svc.ProposeTopic(ctx, "r1", model.TopicCandidate{Topic: "Budget", Confidence: 0.7})
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).NotTo(BeNil())
			Expect(ev.Topic).To(Equal("Budget"))
			Expect(ev.RoomID).To(Equal("r1"))

			Expect(recorded).To(HaveLen(1))
			Expect(publisher.ofType(queue.EventTopic)).To(HaveLen(1))

			state, err := svc.Topic(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Current).To(Equal("Budget"))
			Expect(state.Pending).To(BeNil())
		})

		It("ignores blank topics", func() {
			_, _ = svc.ProposeTopic(ctx, "r1", model.TopicCandidate{Topic: " ", Confidence: 1})
			state, _ := svc.Topic(ctx, "r1")
			Expect(state.Pending).To(BeNil())
			Expect(tx.calls).To(BeZero())
		})
	})

	Describe("IngestSummary", func() {
		BeforeEach(func() {
			_, err := svc.Create(ctx, service.CreateRoomParams{ID: "r1"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("clamps, stores and votes with the summary topic", func() {
			var stored []model.Summary
			stores.summaries.createFn = func(_ context.Context, _ string, s model.Summary) error {
				stored = append(stored, s)
				return nil
			}

			raw := []byte("```json\n{\"topic\":\"Roadmap\",\"confidence\":0.9,\"decisions\":[\"a\",\"b\",\"c\",\"d\",\"e\",\"f\"]}\n```")
			res, err := svc.IngestSummary(ctx, "r1", raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Summary.Decisions).To(HaveLen(5))
			Expect(res.Summary.Status).To(Equal(model.SummaryStatusDeciding))
			Expect(res.Topic).To(BeNil())

			res, err = svc.IngestSummary(ctx, "r1", raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Topic).NotTo(BeNil())
			Expect(res.Topic.Topic).To(Equal("Roadmap"))

			Expect(stored).To(HaveLen(2))
			Expect(tx.calls).To(Equal(2))
			Expect(publisher.ofType(queue.EventSummary)).To(HaveLen(2))
		})

		It("rejects payloads that are not JSON objects", func() {
			_, err := svc.IngestSummary(ctx, "r1", []byte("nope"))
			Expect(err).To(MatchError(service.ErrInvalidSummary))
		})
	})

	Describe("LatestSummary", func() {
		BeforeEach(func() {
			_, err := svc.Create(ctx, service.CreateRoomParams{ID: "r1"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("serves the last ingested summary without touching storage", func() {
			stores.summaries.latestFn = func(context.Context, string) (*model.Summary, error) {
				Fail("storage should not be read")
				return nil, nil
			}
			_, err := svc.IngestSummary(ctx, "r1", []byte(`{"topic":"first"}`))
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.IngestSummary(ctx, "r1", []byte(`{"topic":"second","status":"Agreed"}`))
			Expect(err).NotTo(HaveOccurred())

			summary, err := svc.LatestSummary(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Topic).To(Equal("second"))
			Expect(summary.Status).To(Equal("Agreed"))
		})

		It("falls back to the stored summary after a restart", func() {
			stores.summaries.latestFn = func(_ context.Context, roomID string) (*model.Summary, error) {
				Expect(roomID).To(Equal("r1"))
				return &model.Summary{Topic: "persisted"}, nil
			}

			summary, err := svc.LatestSummary(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Topic).To(Equal("persisted"))
		})

		It("reports ErrNoSummary when nothing was ever stored", func() {
			_, err := svc.LatestSummary(ctx, "r1")
			Expect(err).To(MatchError(service.ErrNoSummary))
		})

		It("wraps storage failures", func() {
			stores.summaries.latestFn = func(context.Context, string) (*model.Summary, error) {
				return nil, errors.New("db down")
			}
			_, err := svc.LatestSummary(ctx, "r1")
			Expect(err).To(MatchError(ContainSubstring("loading summary for r1")))
			Expect(err).NotTo(MatchError(service.ErrNoSummary))
		})

		It("reports ErrNoSummary without persistence", func() {
			memSvc := service.NewRoomService(room.NewRegistry(model.Thresholds{}, segmenter.New()), service.Persistence{}, publisher, nil)
			_, err := memSvc.Create(ctx, service.CreateRoomParams{ID: "m"})
			Expect(err).NotTo(HaveOccurred())

			_, err = memSvc.LatestSummary(ctx, "m")
			Expect(err).To(MatchError(service.ErrNoSummary))
		})

		It("returns ErrRoomNotFound for unknown rooms", func() {
			_, err := svc.LatestSummary(ctx, "ghost")
			Expect(err).To(MatchError(service.ErrRoomNotFound))
		})
	})

	Describe("End", func() {
		It("removes the room and announces it", func() {
			_, _ = svc.Create(ctx, service.CreateRoomParams{ID: "r1"})
			ended := ""
			stores.rooms.endFn = func(_ context.Context, id string) error {
				ended = id
				return nil
			}

			Expect(svc.End(ctx, "r1")).To(Succeed())
			Expect(ended).To(Equal("r1"))
			Expect(publisher.ofType(queue.EventRoomEnded)).To(HaveLen(1))
			Expect(svc.End(ctx, "r1")).To(MatchError(service.ErrRoomNotFound))
			Expect(svc.List(ctx)).To(BeEmpty())
		})
	})

	Describe("Window", func() {
		It("returns the recent segments with the room version", func() {
			_, _ = svc.Create(ctx, service.CreateRoomParams{ID: "r1"})
			for i := range 5 {
				_, _ = svc.AddUtterance(ctx, "r1", model.Utterance{Speaker: "A", Text: "x", TEndMs: ms(int64(i) * 10_000)})
			}

			w, err := svc.Window(ctx, "r1", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Segments).To(HaveLen(3))
			Expect(w.Version).To(Equal(uint64(5)))
		})
	})

	Describe("Restore", func() {
		It("rebuilds active rooms from storage", func() {
			stores.rooms.listActiveFn = func(context.Context) ([]model.Room, error) {
				return []model.Room{{ID: "old", Name: "Old"}}, nil
			}
			stores.segments.listByRoomFn = func(_ context.Context, roomID string) ([]store.SegmentRow, error) {
				return []store.SegmentRow{
					{Seq: 0, Segment: model.Segment{ID: "s1", Speaker: "A", Text: "persisted", TStartMs: 1000, TEndMs: 1000}},
				}, nil
			}
			stores.topics.latestFn = func(context.Context, string) (string, error) {
				return "Hiring", nil
			}

			n, err := svc.Restore(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			page, err := svc.Page(ctx, "old", nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Segments[0].Text).To(Equal("persisted"))

			state, _ := svc.Topic(ctx, "old")
			Expect(state.Current).To(Equal("Hiring"))
		})

		It("closes seq gaps left by lost writes before serving", func() {
			stores.rooms.listActiveFn = func(context.Context) ([]model.Room, error) {
				return []model.Room{{ID: "gappy"}}, nil
			}
			stores.segments.listByRoomFn = func(context.Context, string) ([]store.SegmentRow, error) {
				return []store.SegmentRow{
					{Seq: 0, Segment: model.Segment{ID: "s0", Speaker: "A", Text: "zero", TStartMs: 0, TEndMs: 500}},
					{Seq: 1, Segment: model.Segment{ID: "s1", Speaker: "B", Text: "one", TStartMs: 600, TEndMs: 900}},
					{Seq: 3, Segment: model.Segment{ID: "s3", Speaker: "A", Text: "three", TStartMs: 5000, TEndMs: 5200}},
					{Seq: 6, Segment: model.Segment{ID: "s6", Speaker: "B", Text: "six", TStartMs: 9000, TEndMs: 9100}},
				}, nil
			}
			var moves [][2]int
			stores.segments.resequenceFn = func(_ context.Context, roomID string, from, to int) error {
				Expect(roomID).To(Equal("gappy"))
				moves = append(moves, [2]int{from, to})
				return nil
			}
			var upserts []int
			stores.segments.upsertFn = func(_ context.Context, _ string, seq int, seg model.Segment) error {
				upserts = append(upserts, seq)
				return nil
			}

			n, err := svc.Restore(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(moves).To(Equal([][2]int{{3, 2}, {6, 3}}))
			Expect(tx.calls).To(Equal(1))

			ev, err := svc.AddUtterance(ctx, "gappy", model.Utterance{Speaker: "C", Text: "new", TEndMs: ms(20000)})
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Index).To(Equal(4))
			Expect(upserts).To(Equal([]int{4}))
		})

		It("fails when a seq gap cannot be repaired", func() {
			stores.rooms.listActiveFn = func(context.Context) ([]model.Room, error) {
				return []model.Room{{ID: "gappy"}}, nil
			}
			stores.segments.listByRoomFn = func(context.Context, string) ([]store.SegmentRow, error) {
				return []store.SegmentRow{{Seq: 2, Segment: model.Segment{ID: "s2", Speaker: "A", Text: "x"}}}, nil
			}
			stores.segments.resequenceFn = func(context.Context, string, int, int) error {
				return errors.New("db down")
			}

			_, err := svc.Restore(ctx)
			Expect(err).To(MatchError(ContainSubstring("repairing segments for gappy")))
			_, err = svc.Get(ctx, "gappy")
			Expect(err).To(MatchError(service.ErrRoomNotFound))
		})

		It("is a no-op without persistence", func() {
			memOnly := service.NewRoomService(registry, service.Persistence{}, nil, nil)
			n, err := memOnly.Restore(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})
})
