package cache

import (
	"github.com/sarchlab/cachesim/mem"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// HookPosAccess marks the point where an access has been classified. The
// hook item is an AccessEvent.
var HookPosAccess = &hooking.HookPos{Name: "Access"}

// HookPosRunEnd marks the end of a replay. The hook item is the final Stats.
var HookPosRunEnd = &hooking.HookPos{Name: "RunEnd"}

// AccessEvent describes what one access did to the cache.
type AccessEvent struct {
	Seq            uint64
	Access         mem.Access
	Address        DecodedAddress
	Classification Classification
	Set            int
	Way            int
	ShadowHit      bool

	// Evicted is set if a valid line was replaced. EvictedBlock is the block
	// number of that line.
	Evicted      bool
	EvictedBlock uint32
	Writeback    bool
}

func (s *Simulator) traceAccess(e AccessEvent) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosAccess,
		Item:   e,
	})
}

func (s *Simulator) traceRunEnd() {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosRunEnd,
		Item:   s.stats,
	})
}
