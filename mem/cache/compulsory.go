package cache

// compulsoryTracker remembers every block that has ever been brought into the
// cache. It only grows with the blocks a trace touches.
type compulsoryTracker struct {
	seen map[uint32]struct{}
}

func newCompulsoryTracker() *compulsoryTracker {
	return &compulsoryTracker{
		seen: make(map[uint32]struct{}),
	}
}

func (t *compulsoryTracker) Contains(block uint32) bool {
	_, ok := t.seen[block]
	return ok
}

func (t *compulsoryTracker) Mark(block uint32) {
	t.seen[block] = struct{}{}
}

// Len returns the number of distinct blocks observed.
func (t *compulsoryTracker) Len() int {
	return len(t.seen)
}
