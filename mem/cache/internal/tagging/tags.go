// Package tagging keeps the tag state of a set-associative cache.
package tagging

// TagArray holds the tag, valid, dirty and age state of every line in a
// cache.
type TagArray interface {
	Lookup(setID int, tag uint32) (Block, bool)
	FindVictim(setID int) Block
	Install(setID, wayID int, tag uint32, now uint64) (evicted Block)
	Visit(setID, wayID int, now uint64)
	MarkDirty(setID, wayID int)
	GetSet(setID int) *Set
	NumSets() int
	NumWays() int
	Reset()
}

// NewTagArray creates a tag array with all the lines invalid.
func NewTagArray(
	numSets int,
	numWays int,
	policy Policy,
) TagArray {
	t := &tagArrayImpl{
		numSets:      numSets,
		numWays:      numWays,
		policy:       policy,
		victimFinder: NewOldestVictimFinder(),
	}

	t.Reset()

	return t
}

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	Tag     uint32
	SetID   int
	WayID   int
	IsValid bool
	IsDirty bool
	Age     uint64
}

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	Blocks []Block
}

type tagArrayImpl struct {
	numSets      int
	numWays      int
	sets         []Set
	policy       Policy
	victimFinder VictimFinder
}

func (t *tagArrayImpl) NumSets() int {
	return t.numSets
}

func (t *tagArrayImpl) NumWays() int {
	return t.numWays
}

// GetSet returns the set with the given ID.
func (t *tagArrayImpl) GetSet(setID int) *Set {
	return &t.sets[setID]
}

// Lookup finds the valid block that holds the tag in the set. At most one such
// block exists.
func (t *tagArrayImpl) Lookup(setID int, tag uint32) (Block, bool) {
	set := &t.sets[setID]
	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return Block{}, false
}

// FindVictim returns the block that should be replaced in the set.
func (t *tagArrayImpl) FindVictim(setID int) Block {
	return t.victimFinder.FindVictim(&t.sets[setID])
}

// Install places the tag in the given way as a clean line and returns the
// block that used to occupy the way.
func (t *tagArrayImpl) Install(
	setID, wayID int,
	tag uint32,
	now uint64,
) (evicted Block) {
	block := &t.sets[setID].Blocks[wayID]
	evicted = *block

	block.Tag = tag
	block.IsValid = true
	block.IsDirty = false
	t.policy.OnInstall(block, now)

	return evicted
}

// Visit tells the replacement policy that a resident block has been hit.
func (t *tagArrayImpl) Visit(setID, wayID int, now uint64) {
	t.policy.OnHit(&t.sets[setID].Blocks[wayID], now)
}

// MarkDirty marks a valid block as modified.
func (t *tagArrayImpl) MarkDirty(setID, wayID int) {
	block := &t.sets[setID].Blocks[wayID]
	if !block.IsValid {
		panic("marking an invalid block dirty")
	}

	block.IsDirty = true
}

// Reset will mark all the blocks in the directory invalid
func (t *tagArrayImpl) Reset() {
	t.sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		t.sets[i].Blocks = make([]Block, t.numWays)
		for j := 0; j < t.numWays; j++ {
			t.sets[i].Blocks[j] = Block{
				SetID: i,
				WayID: j,
			}
		}
	}
}
