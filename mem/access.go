// Package mem defines the memory accesses that are replayed against a cache
// model.
package mem

import "fmt"

// For capacity
const (
	_         = iota
	KB uint64 = 1 << (10 * iota)
	MB
	GB
)

// AccessKind tells whether an access reads or writes memory.
type AccessKind int

// The kinds of accesses that can appear in a trace.
const (
	Load AccessKind = iota
	Store
)

func (k AccessKind) String() string {
	switch k {
	case Load:
		return "load"
	case Store:
		return "store"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// AccessKindFromByte maps the leading character of a trace record to an access
// kind.
func AccessKindFromByte(c byte) (AccessKind, bool) {
	switch c {
	case 'l':
		return Load, true
	case 's':
		return Store, true
	default:
		return 0, false
	}
}

// An Access is a single load or store to a 32-bit address.
type Access struct {
	Kind    AccessKind
	Address uint32
}

// IsStore returns true if the access writes memory.
func (a Access) IsStore() bool {
	return a.Kind == Store
}

// LoadAt creates a load access.
func LoadAt(addr uint32) Access {
	return Access{Kind: Load, Address: addr}
}

// StoreAt creates a store access.
func StoreAt(addr uint32) Access {
	return Access{Kind: Store, Address: addr}
}

// A TraceRecord is one parsed line of a trace. Line keeps the original text
// without its line terminator.
type TraceRecord struct {
	LineNumber int
	Line       string
	Access     Access
}
