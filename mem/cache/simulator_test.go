package cache

import (
	"errors"
	"io"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachesim/mem"
	"github.com/sarchlab/cachesim/sim/hooking"
)

func replay(s *Simulator, accesses ...mem.Access) []Classification {
	results := make([]Classification, 0, len(accesses))
	for _, a := range accesses {
		results = append(results, s.Access(a))
	}

	return results
}

func randomTrace(seed int64, n int, span uint32) []mem.Access {
	r := rand.New(rand.NewSource(seed))
	accesses := make([]mem.Access, n)
	for i := range accesses {
		addr := uint32(r.Int63n(int64(span)))
		if r.Intn(3) == 0 {
			accesses[i] = mem.StoreAt(addr)
		} else {
			accesses[i] = mem.LoadAt(addr)
		}
	}

	return accesses
}

var _ = Describe("Simulator", func() {
	var (
		builder Builder
	)

	BeforeEach(func() {
		builder = MakeBuilder().
			WithByteSize(8).
			WithWayAssociativity(2).
			WithLineSize(4)
	})

	It("should classify a capacity miss in a fully associative cache", func() {
		s := builder.MustBuild("Cache")

		results := replay(s,
			mem.LoadAt(0), mem.LoadAt(4), mem.LoadAt(8), mem.LoadAt(0))

		Expect(results).To(Equal([]Classification{
			CompulsoryMiss, CompulsoryMiss, CompulsoryMiss, CapacityMiss,
		}))
	})

	It("should treat addresses in the same line as the same block", func() {
		s := builder.MustBuild("Cache")

		results := replay(s, mem.LoadAt(0), mem.LoadAt(3), mem.StoreAt(1))

		Expect(results).To(Equal([]Classification{
			CompulsoryMiss, Hit, Hit,
		}))
	})

	Context("when choosing a victim", func() {
		a, b, c := uint32(0x0), uint32(0x4), uint32(0x8)

		It("should evict by insertion order with FIFO", func() {
			s := builder.WithReplacePolicy(FIFO).MustBuild("Cache")

			results := replay(s,
				mem.LoadAt(a), mem.LoadAt(b), mem.LoadAt(a), mem.LoadAt(c))

			Expect(results).To(Equal([]Classification{
				CompulsoryMiss, CompulsoryMiss, Hit, CompulsoryMiss,
			}))
			Expect(s.IsResident(a)).To(BeFalse())
			Expect(s.IsResident(b)).To(BeTrue())
			Expect(s.IsResident(c)).To(BeTrue())
		})

		It("should evict by recency with LRU", func() {
			s := builder.WithReplacePolicy(LRU).MustBuild("Cache")

			results := replay(s,
				mem.LoadAt(a), mem.LoadAt(b), mem.LoadAt(a), mem.LoadAt(c))

			Expect(results).To(Equal([]Classification{
				CompulsoryMiss, CompulsoryMiss, Hit, CompulsoryMiss,
			}))
			Expect(s.IsResident(a)).To(BeTrue())
			Expect(s.IsResident(b)).To(BeFalse())
			Expect(s.IsResident(c)).To(BeTrue())
		})
	})

	It("should classify a conflict miss", func() {
		s := MakeBuilder().
			WithByteSize(8).
			WithWayAssociativity(1).
			WithLineSize(4).
			MustBuild("Cache")

		results := replay(s, mem.LoadAt(0x0), mem.LoadAt(0x8), mem.LoadAt(0x0))

		Expect(results).To(Equal([]Classification{
			CompulsoryMiss, CompulsoryMiss, ConflictMiss,
		}))
	})

	Context("when writing back", func() {
		var s *Simulator

		BeforeEach(func() {
			s = MakeBuilder().
				WithByteSize(8).
				WithWayAssociativity(1).
				WithLineSize(4).
				MustBuild("Cache")
		})

		It("should count one write transaction per dirty eviction", func() {
			replay(s,
				mem.StoreAt(0x0), mem.StoreAt(0x0), mem.StoreAt(0x1),
				mem.LoadAt(0x8), mem.LoadAt(0x0))

			stats := s.Stats()
			Expect(stats.WriteTransactions).To(Equal(uint64(1)))
			Expect(stats.ReadTransactions).To(Equal(uint64(3)))
			Expect(stats.Stores).To(Equal(uint64(3)))
			Expect(stats.Loads).To(Equal(uint64(2)))
		})

		It("should not count stores that are never evicted", func() {
			replay(s, mem.StoreAt(0x0), mem.StoreAt(0x4), mem.StoreAt(0x0))

			Expect(s.Stats().WriteTransactions).To(BeZero())
			Expect(s.IsDirty(0x0)).To(BeTrue())
			Expect(s.IsDirty(0x4)).To(BeTrue())
		})

		It("should mark a line installed by a store dirty", func() {
			replay(s, mem.StoreAt(0x0))
			Expect(s.IsDirty(0x0)).To(BeTrue())

			replay(s, mem.LoadAt(0x8))
			Expect(s.IsDirty(0x8)).To(BeFalse())
			Expect(s.Stats().WriteTransactions).To(Equal(uint64(1)))
		})

		It("should install loaded lines clean", func() {
			replay(s, mem.LoadAt(0x0), mem.LoadAt(0x8))

			Expect(s.IsDirty(0x8)).To(BeFalse())
			Expect(s.Stats().WriteTransactions).To(BeZero())
		})
	})

	DescribeTable("should keep the counters consistent",
		func(c Config) {
			s1 := MakeBuilder().WithConfig(c).MustBuild("A")
			s2 := MakeBuilder().WithConfig(c).MustBuild("B")
			trace := randomTrace(42, 5000, 4096)

			seen := map[uint32]bool{}
			for _, a := range trace {
				block := s1.Decoder().Decode(a.Address).Block
				r1 := s1.Access(a)
				r2 := s2.Access(a)

				Expect(r1).To(Equal(r2))
				if !seen[block] {
					Expect(r1).To(Equal(CompulsoryMiss))
					seen[block] = true
				} else {
					Expect(r1).NotTo(Equal(CompulsoryMiss))
				}

				if s1.Geometry().IsFullyAssociative() {
					Expect(r1).NotTo(Equal(ConflictMiss))
				}
			}

			stats := s1.Stats()
			Expect(stats).To(Equal(s2.Stats()))
			Expect(stats.Accesses).To(Equal(uint64(len(trace))))
			Expect(stats.Hits + stats.Misses).To(Equal(stats.Accesses))
			Expect(stats.CompulsoryMisses + stats.ConflictMisses +
				stats.CapacityMisses).To(Equal(stats.Misses))
			Expect(stats.ReadTransactions).To(Equal(stats.Misses))
			Expect(stats.Loads + stats.Stores).To(Equal(stats.Accesses))
			Expect(stats.CompulsoryMisses).To(Equal(uint64(len(seen))))
		},
		Entry("direct mapped", Config{ByteSize: 256, WayAssociativity: 1, LineSize: 16}),
		Entry("4-way FIFO", Config{ByteSize: 512, WayAssociativity: 4, LineSize: 16}),
		Entry("4-way LRU", Config{ByteSize: 512, WayAssociativity: 4, LineSize: 16, Policy: LRU}),
		Entry("fully associative FIFO", Config{ByteSize: 256, WayAssociativity: 16, LineSize: 16}),
		Entry("fully associative LRU", Config{ByteSize: 256, WayAssociativity: 16, LineSize: 16, Policy: LRU}),
	)

	It("should report a zero miss rate before any access", func() {
		s := builder.MustBuild("Cache")

		Expect(s.Stats().MissRate()).To(BeZero())
	})

	It("should compute the miss rate", func() {
		s := builder.MustBuild("Cache")

		replay(s, mem.LoadAt(0), mem.LoadAt(0), mem.LoadAt(0), mem.LoadAt(4))

		Expect(s.Stats().MissRate()).To(BeNumerically("~", 50.0))
		Expect(s.Stats().Count(CompulsoryMiss)).To(Equal(uint64(2)))
		Expect(s.Stats().Count(Hit)).To(Equal(uint64(2)))
	})

	It("should forget everything on reset", func() {
		s := builder.MustBuild("Cache")
		replay(s, mem.LoadAt(0), mem.LoadAt(4))

		s.Reset()

		Expect(s.Now()).To(BeZero())
		Expect(s.Stats()).To(BeZero())
		Expect(s.Access(mem.LoadAt(0))).To(Equal(CompulsoryMiss))
	})

	Context("with hooks", func() {
		var (
			s      *Simulator
			events []AccessEvent
			ends   []Stats
		)

		BeforeEach(func() {
			events = nil
			ends = nil
			s = MakeBuilder().
				WithByteSize(8).
				WithWayAssociativity(1).
				WithLineSize(4).
				MustBuild("Cache")
			s.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				Expect(ctx.Domain).To(BeIdenticalTo(s))
				switch ctx.Pos {
				case HookPosAccess:
					events = append(events, ctx.Item.(AccessEvent))
				case HookPosRunEnd:
					ends = append(ends, ctx.Item.(Stats))
				}
			}))
		})

		It("should describe every access", func() {
			replay(s, mem.StoreAt(0x0), mem.LoadAt(0x8), mem.LoadAt(0xc))

			Expect(events).To(HaveLen(3))

			Expect(events[0].Seq).To(Equal(uint64(1)))
			Expect(events[0].Classification).To(Equal(CompulsoryMiss))
			Expect(events[0].Evicted).To(BeFalse())

			Expect(events[1].Seq).To(Equal(uint64(2)))
			Expect(events[1].Set).To(Equal(0))
			Expect(events[1].Way).To(Equal(0))
			Expect(events[1].Evicted).To(BeTrue())
			Expect(events[1].EvictedBlock).To(Equal(uint32(0)))
			Expect(events[1].Writeback).To(BeTrue())
			Expect(events[1].ShadowHit).To(BeFalse())

			Expect(events[2].Set).To(Equal(1))
			Expect(events[2].Address.Block).To(Equal(uint32(3)))
			Expect(events[2].Evicted).To(BeFalse())
		})
	})

	Context("when running a trace", func() {
		var (
			mockCtrl *gomock.Controller
			source   *MockSource
			sink     *MockSink
			s        *Simulator
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			source = NewMockSource(mockCtrl)
			sink = NewMockSink(mockCtrl)
			s = builder.MustBuild("Cache")
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should forward every classification in order", func() {
			r1 := mem.TraceRecord{LineNumber: 1, Line: "l 0x00000000", Access: mem.LoadAt(0)}
			r2 := mem.TraceRecord{LineNumber: 2, Line: "s 0x00000000", Access: mem.StoreAt(0)}

			gomock.InOrder(
				source.EXPECT().Next().Return(r1, nil),
				sink.EXPECT().Put(r1, CompulsoryMiss).Return(nil),
				source.EXPECT().Next().Return(r2, nil),
				sink.EXPECT().Put(r2, Hit).Return(nil),
				source.EXPECT().Next().Return(mem.TraceRecord{}, io.EOF),
			)

			stats, err := s.Run(source, sink)

			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Accesses).To(Equal(uint64(2)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should run without a sink", func() {
			gomock.InOrder(
				source.EXPECT().Next().Return(mem.TraceRecord{Access: mem.LoadAt(4)}, nil),
				source.EXPECT().Next().Return(mem.TraceRecord{}, io.EOF),
			)

			stats, err := s.Run(source, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(stats.CompulsoryMisses).To(Equal(uint64(1)))
		})

		It("should stop on a source error", func() {
			readErr := errors.New("bad line")
			source.EXPECT().Next().Return(mem.TraceRecord{}, readErr)

			_, err := s.Run(source, sink)

			Expect(err).To(MatchError(readErr))
		})

		It("should stop on a sink error", func() {
			writeErr := errors.New("disk full")
			r := mem.TraceRecord{LineNumber: 1, Access: mem.LoadAt(0)}
			source.EXPECT().Next().Return(r, nil)
			sink.EXPECT().Put(r, CompulsoryMiss).Return(writeErr)

			stats, err := s.Run(source, sink)

			Expect(err).To(MatchError(writeErr))
			Expect(stats.Accesses).To(Equal(uint64(1)))
		})

		It("should invoke the run end hook once", func() {
			var ends []Stats
			s.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosRunEnd {
					ends = append(ends, ctx.Item.(Stats))
				}
			}))
			source.EXPECT().Next().Return(mem.TraceRecord{}, io.EOF)

			_, err := s.Run(source, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(ends).To(HaveLen(1))
		})
	})
})
