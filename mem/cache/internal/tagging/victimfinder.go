package tagging

// A VictimFinder decides with block should be evicted
type VictimFinder interface {
	FindVictim(set *Set) Block
}

// OldestVictimFinder evicts the block with the smallest age. Invalid blocks
// have age 0, so they are always picked before any valid block.
type OldestVictimFinder struct {
}

// NewOldestVictimFinder returns a newly constructed victim finder.
func NewOldestVictimFinder() *OldestVictimFinder {
	e := new(OldestVictimFinder)
	return e
}

// FindVictim returns the oldest block in a set. Ties go to the lowest way.
func (e *OldestVictimFinder) FindVictim(set *Set) Block {
	victim := 0
	for i := 1; i < len(set.Blocks); i++ {
		if set.Blocks[i].Age < set.Blocks[victim].Age {
			victim = i
		}
	}

	return set.Blocks[victim]
}
