package cache

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/sarchlab/cachesim/mem"
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

// AddressBits is the width of the addresses the cache model decodes.
const AddressBits = 32

// MaxByteSize is the largest cache that fits the address space.
const MaxByteSize uint64 = 1 << AddressBits

// ErrInvalidConfig is wrapped by every configuration validation error.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// ReplacePolicy selects how the cache picks the line to evict.
type ReplacePolicy int

const (
	FIFO ReplacePolicy = iota // FIFO = First In First Out
	LRU                       // LRU  = Least Recently Used
)

func (p ReplacePolicy) String() string {
	switch p {
	case FIFO:
		return "fifo"
	case LRU:
		return "lru"
	default:
		return fmt.Sprintf("ReplacePolicy(%d)", int(p))
	}
}

// ParseReplacePolicy converts a policy name, case insensitively, to a
// ReplacePolicy.
func ParseReplacePolicy(name string) (ReplacePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo", "":
		return FIFO, nil
	case "lru":
		return LRU, nil
	default:
		return FIFO, fmt.Errorf("%w: unknown replace policy %q",
			ErrInvalidConfig, name)
	}
}

func (p ReplacePolicy) newTaggingPolicy() tagging.Policy {
	switch p {
	case FIFO:
		return tagging.NewFIFOPolicy()
	case LRU:
		return tagging.NewLRUPolicy()
	default:
		panic("unknown replace policy: " + p.String())
	}
}

// Config describes the geometry and replacement policy of a cache.
type Config struct {
	ByteSize         uint64
	WayAssociativity uint64
	LineSize         uint64
	Policy           ReplacePolicy
}

// DefaultConfig is a 32KB direct-mapped cache with 32-byte lines and FIFO
// replacement.
func DefaultConfig() Config {
	return Config{
		ByteSize:         32 * mem.KB,
		WayAssociativity: 1,
		LineSize:         32,
		Policy:           FIFO,
	}
}

// Geometry is the validated shape of a cache and the bit fields of the
// addresses it decodes.
type Geometry struct {
	ByteSize   uint64
	NumWays    int
	NumSets    int
	LineSize   uint64
	TagBits    int
	IndexBits  int
	OffsetBits int
}

// TotalLines returns the number of lines the whole cache holds.
func (g Geometry) TotalLines() int {
	return g.NumSets * g.NumWays
}

// IsFullyAssociative returns true if all the lines live in one set.
func (g Geometry) IsFullyAssociative() bool {
	return g.NumSets == 1
}

// Validate checks the configuration and derives its geometry.
func (c Config) Validate() (Geometry, error) {
	if c.WayAssociativity == 0 {
		return Geometry{}, invalid("way associativity must be positive")
	}

	if c.LineSize == 0 {
		return Geometry{}, invalid("line size must be positive")
	}

	if !isPowerOfTwo(c.LineSize) {
		return Geometry{}, invalid("line size %d is not a power of two",
			c.LineSize)
	}

	if !isPowerOfTwo(c.WayAssociativity) {
		return Geometry{}, invalid("way associativity %d is not a power of two",
			c.WayAssociativity)
	}

	if c.ByteSize > MaxByteSize {
		return Geometry{}, invalid(
			"cache size %dB exceeds the %dB address space",
			c.ByteSize, MaxByteSize)
	}

	if c.LineSize > MaxByteSize || c.WayAssociativity > MaxByteSize/c.LineSize {
		return Geometry{}, invalid(
			"a set of %d ways of %dB exceeds the %dB address space",
			c.WayAssociativity, c.LineSize, MaxByteSize)
	}

	setSize := c.LineSize * c.WayAssociativity
	if c.ByteSize < setSize {
		return Geometry{}, invalid(
			"cache size %dB cannot hold a single set of %dB",
			c.ByteSize, setSize)
	}

	if c.ByteSize%setSize != 0 {
		return Geometry{}, invalid(
			"cache size %dB is not a multiple of the set size %dB",
			c.ByteSize, setSize)
	}

	numSets := c.ByteSize / setSize
	if !isPowerOfTwo(numSets) {
		return Geometry{}, invalid("number of sets %d is not a power of two",
			numSets)
	}

	if c.Policy != FIFO && c.Policy != LRU {
		return Geometry{}, invalid("unknown replace policy %s", c.Policy)
	}

	offsetBits := log2(c.LineSize)
	indexBits := log2(numSets)

	if offsetBits+indexBits > AddressBits {
		return Geometry{}, invalid(
			"%d index bits and %d offset bits exceed a %d-bit address",
			indexBits, offsetBits, AddressBits)
	}

	return Geometry{
		ByteSize:   c.ByteSize,
		NumWays:    int(c.WayAssociativity),
		NumSets:    int(numSets),
		LineSize:   c.LineSize,
		TagBits:    AddressBits - indexBits - offsetBits,
		IndexBits:  indexBits,
		OffsetBits: offsetBits,
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

func log2(n uint64) int {
	return bits.TrailingZeros64(n)
}
