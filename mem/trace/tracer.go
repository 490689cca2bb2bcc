package trace

import (
	"sync"

	"github.com/rs/xid"
	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Table names used by DBTracer.
const (
	AccessTable = "accesses"
	RunTable    = "runs"
)

// AccessEntry is one row of the access table.
type AccessEntry struct {
	RunID          string
	Simulator      string
	Seq            uint64
	Kind           string
	Address        uint32
	Block          uint32
	SetID          int
	WayID          int
	Classification string
	ShadowHit      bool
	Evicted        bool
	EvictedBlock   uint32
	Writeback      bool
}

// RunEntry is one row of the run table.
type RunEntry struct {
	RunID             string
	Simulator         string
	ByteSize          uint64
	Ways              int
	Sets              int
	LineSize          uint64
	Policy            string
	Accesses          uint64
	Hits              uint64
	Misses            uint64
	CompulsoryMisses  uint64
	ConflictMisses    uint64
	CapacityMisses    uint64
	ReadTransactions  uint64
	WriteTransactions uint64
	MissRate          float64
}

// DBTracer is a hook that records accesses and run summaries of simulators
// into a DataRecorder. One tracer can be attached to several simulators.
type DBTracer struct {
	mu             sync.Mutex
	recorder       datarecording.DataRecorder
	recordAccesses bool
	runIDs         map[*cache.Simulator]string
}

// NewDBTracer creates a tracer and the tables it writes.
func NewDBTracer(recorder datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		recorder:       recorder,
		recordAccesses: true,
		runIDs:         make(map[*cache.Simulator]string),
	}

	recorder.CreateTable(AccessTable, AccessEntry{})
	recorder.CreateTable(RunTable, RunEntry{})

	return t
}

// RecordAccesses sets whether every access gets a row. Run summaries are
// always recorded.
func (t *DBTracer) RecordAccesses(enabled bool) *DBTracer {
	t.recordAccesses = enabled
	return t
}

// RunID returns the identifier of the current run of the simulator.
func (t *DBTracer) RunID(s *cache.Simulator) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.runID(s)
}

func (t *DBTracer) runID(s *cache.Simulator) string {
	id, ok := t.runIDs[s]
	if !ok {
		id = xid.New().String()
		t.runIDs[s] = id
	}

	return id
}

// Func handles the hook invocations of the simulators.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	s, ok := ctx.Domain.(*cache.Simulator)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch ctx.Pos {
	case cache.HookPosAccess:
		if t.recordAccesses {
			t.insertAccess(s, ctx.Item.(cache.AccessEvent))
		}
	case cache.HookPosRunEnd:
		t.insertRun(s, ctx.Item.(cache.Stats))
	}
}

func (t *DBTracer) insertAccess(s *cache.Simulator, e cache.AccessEvent) {
	entry := AccessEntry{
		RunID:          t.runID(s),
		Simulator:      s.Name(),
		Seq:            e.Seq,
		Kind:           e.Access.Kind.String(),
		Address:        e.Access.Address,
		Block:          e.Address.Block,
		SetID:          e.Set,
		WayID:          e.Way,
		Classification: e.Classification.String(),
		ShadowHit:      e.ShadowHit,
		Evicted:        e.Evicted,
		EvictedBlock:   e.EvictedBlock,
		Writeback:      e.Writeback,
	}

	t.recorder.InsertData(AccessTable, entry)
}

func (t *DBTracer) insertRun(s *cache.Simulator, stats cache.Stats) {
	g := s.Geometry()

	entry := RunEntry{
		RunID:             t.runID(s),
		Simulator:         s.Name(),
		ByteSize:          g.ByteSize,
		Ways:              g.NumWays,
		Sets:              g.NumSets,
		LineSize:          g.LineSize,
		Policy:            s.Policy().String(),
		Accesses:          stats.Accesses,
		Hits:              stats.Hits,
		Misses:            stats.Misses,
		CompulsoryMisses:  stats.CompulsoryMisses,
		ConflictMisses:    stats.ConflictMisses,
		CapacityMisses:    stats.CapacityMisses,
		ReadTransactions:  stats.ReadTransactions,
		WriteTransactions: stats.WriteTransactions,
		MissRate:          stats.MissRate(),
	}

	t.recorder.InsertData(RunTable, entry)
	t.recorder.Flush()

	// The next run of the same simulator gets a new ID.
	delete(t.runIDs, s)
}
