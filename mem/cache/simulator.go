package cache

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/mem"
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// A Source yields the records of a trace in order. Next returns io.EOF once
// the trace is exhausted.
type Source interface {
	Next() (mem.TraceRecord, error)
}

// A Sink receives the classification of every replayed record.
type Sink interface {
	Put(record mem.TraceRecord, c Classification) error
}

// Simulator replays accesses against a set-associative cache and classifies
// each of them. A Simulator is not safe for concurrent use.
type Simulator struct {
	hooking.HookableBase

	name       string
	geometry   Geometry
	policy     ReplacePolicy
	decoder    AddressDecoder
	tags       tagging.TagArray
	shadow     *shadowCache
	compulsory *compulsoryTracker

	now   uint64
	stats Stats
}

// Name returns the name of the simulator.
func (s *Simulator) Name() string {
	return s.name
}

// Geometry returns the shape of the simulated cache.
func (s *Simulator) Geometry() Geometry {
	return s.geometry
}

// Policy returns the replacement policy of the simulated cache.
func (s *Simulator) Policy() ReplacePolicy {
	return s.policy
}

// Decoder returns the address decoder of the simulated cache.
func (s *Simulator) Decoder() AddressDecoder {
	return s.decoder
}

// Stats returns the counters accumulated so far.
func (s *Simulator) Stats() Stats {
	return s.stats
}

// Now returns the number of accesses replayed so far.
func (s *Simulator) Now() uint64 {
	return s.now
}

// Access replays one access and returns its classification.
func (s *Simulator) Access(a mem.Access) Classification {
	s.now++
	now := s.now

	addr := s.decoder.Decode(a.Address)
	setID := int(addr.Index)

	block, hit := s.tags.Lookup(setID, addr.Tag)
	shadowHit := s.shadow.Access(addr.Block, now)

	e := AccessEvent{
		Seq:       now,
		Access:    a,
		Address:   addr,
		Set:       setID,
		ShadowHit: shadowHit,
	}

	if hit {
		e.Classification = Hit
		e.Way = block.WayID
		s.tags.Visit(setID, block.WayID, now)
	} else {
		e.Classification = s.classifyMiss(addr.Block, shadowHit)
		s.fill(&e, now)
	}

	if a.IsStore() {
		s.tags.MarkDirty(setID, e.Way)
	}

	s.stats.record(e)
	s.traceAccess(e)

	return e.Classification
}

func (s *Simulator) classifyMiss(block uint32, shadowHit bool) Classification {
	switch {
	case !s.compulsory.Contains(block):
		return CompulsoryMiss
	case shadowHit:
		return ConflictMiss
	default:
		return CapacityMiss
	}
}

func (s *Simulator) fill(e *AccessEvent, now uint64) {
	victim := s.tags.FindVictim(e.Set)
	evicted := s.tags.Install(e.Set, victim.WayID, e.Address.Tag, now)

	e.Way = victim.WayID
	if evicted.IsValid {
		e.Evicted = true
		e.EvictedBlock = s.decoder.BlockOf(evicted.Tag, uint32(e.Set))
		e.Writeback = evicted.IsDirty
	}

	s.compulsory.Mark(e.Address.Block)
}

// Run replays every record of the source, forwarding each classification to
// the sink. The sink may be nil. Reading or writing errors stop the replay.
func (s *Simulator) Run(src Source, sink Sink) (Stats, error) {
	for {
		record, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return s.stats, fmt.Errorf("reading trace: %w", err)
		}

		c := s.Access(record.Access)

		if sink == nil {
			continue
		}

		if err := sink.Put(record, c); err != nil {
			return s.stats, fmt.Errorf("writing result of line %d: %w",
				record.LineNumber, err)
		}
	}

	s.traceRunEnd()

	return s.stats, nil
}

// IsResident returns true if the block holding the address is in the cache.
func (s *Simulator) IsResident(address uint32) bool {
	addr := s.decoder.Decode(address)
	_, ok := s.tags.Lookup(int(addr.Index), addr.Tag)

	return ok
}

// IsDirty returns true if the block holding the address is resident and
// modified.
func (s *Simulator) IsDirty(address uint32) bool {
	addr := s.decoder.Decode(address)
	block, ok := s.tags.Lookup(int(addr.Index), addr.Tag)

	return ok && block.IsDirty
}

// Reset brings the simulator back to the state it was built in. Hooks stay
// registered.
func (s *Simulator) Reset() {
	s.tags.Reset()
	s.shadow.Reset()
	s.compulsory = newCompulsoryTracker()
	s.now = 0
	s.stats = Stats{}
}
