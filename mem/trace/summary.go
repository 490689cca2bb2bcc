package trace

import (
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/mem/cache"
)

// WriteGeometry prints the shape of the simulated cache.
func WriteGeometry(w io.Writer, g cache.Geometry) error {
	_, err := fmt.Fprintf(w,
		"Ways: %d; Sets: %d; Line Size: %dB\n"+
			"Tag: %d bits; Index: %d bits; Offset: %d bits\n",
		g.NumWays, g.NumSets, g.LineSize,
		g.TagBits, g.IndexBits, g.OffsetBits)

	return err
}

// WriteSummary prints the counters of a replay.
func WriteSummary(w io.Writer, s cache.Stats) error {
	_, err := fmt.Fprintf(w,
		"Total Accesses: %d\n"+
			"Hits: %d\n"+
			"Misses: %d\n"+
			"  Compulsory: %d\n"+
			"  Conflict: %d\n"+
			"  Capacity: %d\n"+
			"Miss Rate: %8f%%\n"+
			"Read Transactions: %d\n"+
			"Write Transactions: %d\n",
		s.Accesses,
		s.Hits,
		s.Misses,
		s.CompulsoryMisses,
		s.ConflictMisses,
		s.CapacityMisses,
		s.MissRate(),
		s.ReadTransactions,
		s.WriteTransactions)

	return err
}
