package cache

// Stats counts what happened during a replay.
type Stats struct {
	Accesses uint64 `json:"accesses"`
	Loads    uint64 `json:"loads"`
	Stores   uint64 `json:"stores"`

	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	CompulsoryMisses uint64 `json:"compulsory_misses"`
	ConflictMisses   uint64 `json:"conflict_misses"`
	CapacityMisses   uint64 `json:"capacity_misses"`

	// ReadTransactions counts the lines fetched on misses.
	ReadTransactions uint64 `json:"read_transactions"`

	// WriteTransactions counts the dirty lines written back on eviction.
	WriteTransactions uint64 `json:"write_transactions"`
}

// MissRate returns the percentage of accesses that missed. It is 0 before any
// access.
func (s Stats) MissRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Misses) / float64(total) * 100.0
}

// Count returns the number of accesses with the given classification.
func (s Stats) Count(c Classification) uint64 {
	switch c {
	case Hit:
		return s.Hits
	case CompulsoryMiss:
		return s.CompulsoryMisses
	case ConflictMiss:
		return s.ConflictMisses
	case CapacityMiss:
		return s.CapacityMisses
	default:
		return 0
	}
}

func (s *Stats) record(e AccessEvent) {
	s.Accesses++
	if e.Access.IsStore() {
		s.Stores++
	} else {
		s.Loads++
	}

	switch e.Classification {
	case Hit:
		s.Hits++
	case CompulsoryMiss:
		s.CompulsoryMisses++
	case ConflictMiss:
		s.ConflictMisses++
	case CapacityMiss:
		s.CapacityMisses++
	}

	if e.Classification.IsMiss() {
		s.Misses++
		s.ReadTransactions++
	}

	if e.Writeback {
		s.WriteTransactions++
	}
}
