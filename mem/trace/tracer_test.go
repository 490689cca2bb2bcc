package trace

import (
	"context"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem"
	"github.com/sarchlab/cachesim/mem/cache"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *MockDataRecorder
		tracer   *DBTracer
		sim      *cache.Simulator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockDataRecorder(mockCtrl)

		recorder.EXPECT().CreateTable(AccessTable, AccessEntry{})
		recorder.EXPECT().CreateTable(RunTable, RunEntry{})
		tracer = NewDBTracer(recorder)

		sim = cache.MakeBuilder().
			WithByteSize(8).
			WithWayAssociativity(1).
			WithLineSize(4).
			MustBuild("L1")
		sim.AcceptHook(tracer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record an access", func() {
		runID := tracer.RunID(sim)

		recorder.EXPECT().
			InsertData(AccessTable, gomock.Any()).
			Do(func(_ string, entry any) {
				e := entry.(AccessEntry)
				Expect(e.RunID).To(Equal(runID))
				Expect(e.Simulator).To(Equal("L1"))
				Expect(e.Seq).To(Equal(uint64(1)))
				Expect(e.Kind).To(Equal("store"))
				Expect(e.Address).To(Equal(uint32(4)))
				Expect(e.Block).To(Equal(uint32(1)))
				Expect(e.SetID).To(Equal(1))
				Expect(e.Classification).To(Equal("compulsory"))
				Expect(e.Evicted).To(BeFalse())
			})

		sim.Access(mem.StoreAt(4))
	})

	It("should skip accesses when disabled", func() {
		tracer.RecordAccesses(false)

		sim.Access(mem.LoadAt(0))
	})

	It("should record the run and start a new run ID", func() {
		tracer.RecordAccesses(false)
		firstID := tracer.RunID(sim)

		recorder.EXPECT().
			InsertData(RunTable, gomock.Any()).
			Do(func(_ string, entry any) {
				e := entry.(RunEntry)
				Expect(e.RunID).To(Equal(firstID))
				Expect(e.Sets).To(Equal(2))
				Expect(e.Ways).To(Equal(1))
				Expect(e.Policy).To(Equal("fifo"))
				Expect(e.Accesses).To(Equal(uint64(2)))
				Expect(e.Hits).To(Equal(uint64(1)))
				Expect(e.MissRate).To(BeNumerically("~", 50.0))
			})
		recorder.EXPECT().Flush()

		src := NewReader(strings.NewReader("l 0x00000000\ns 0x00000000\n"))
		_, err := sim.Run(src, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(tracer.RunID(sim)).NotTo(Equal(firstID))
	})
})

var _ = Describe("Recording", func() {
	It("should read back what the tracer wrote", func() {
		path := filepath.Join(GinkgoT().TempDir(), "rec")
		recorder, err := datarecording.New(path)
		Expect(err).NotTo(HaveOccurred())

		tracer := NewDBTracer(recorder)
		sim := cache.MakeBuilder().
			WithByteSize(8).
			WithWayAssociativity(1).
			WithLineSize(4).
			MustBuild("L1")
		sim.AcceptHook(tracer)
		runID := tracer.RunID(sim)

		src := NewReader(strings.NewReader(
			"l 0x00000000\nl 0x00000008\nl 0x00000000\nl 0x00000000\n"))
		_, err = sim.Run(src, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.Close()).To(Succeed())

		rec, err := OpenRecording(datarecording.FileName(path))
		Expect(err).NotTo(HaveOccurred())
		defer rec.Close()

		ctx := context.Background()

		runs, err := rec.Runs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].RunID).To(Equal(runID))
		Expect(runs[0].Accesses).To(Equal(uint64(4)))
		Expect(runs[0].ConflictMisses).To(Equal(uint64(1)))

		accesses, total, err := rec.Accesses(ctx, runID, 1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(4))
		Expect(accesses).To(HaveLen(2))
		Expect(accesses[0].Seq).To(Equal(uint64(2)))
		Expect(accesses[1].Classification).To(Equal("conflict"))

		conflicts, err := rec.CountClassification(ctx, runID, cache.ConflictMiss)
		Expect(err).NotTo(HaveOccurred())
		Expect(conflicts).To(Equal(1))
	})
})
