package tagging

// A Policy decides when the age of a block is rewritten. Every policy shares
// the same victim selection; they only differ in the update rules.
type Policy interface {
	Name() string

	// OnInstall is called after a block is filled with a new line.
	OnInstall(block *Block, now uint64)

	// OnHit is called when a resident block is accessed again.
	OnHit(block *Block, now uint64)
}

// NewFIFOPolicy returns a policy that ages blocks by insertion order.
func NewFIFOPolicy() Policy {
	return fifoPolicy{}
}

// NewLRUPolicy returns a policy that ages blocks by last use.
func NewLRUPolicy() Policy {
	return lruPolicy{}
}

type fifoPolicy struct{}

func (fifoPolicy) Name() string {
	return "fifo"
}

func (fifoPolicy) OnInstall(block *Block, now uint64) {
	block.Age = now
}

func (fifoPolicy) OnHit(*Block, uint64) {
	// the insertion order does not change
}

type lruPolicy struct{}

func (lruPolicy) Name() string {
	return "lru"
}

func (lruPolicy) OnInstall(block *Block, now uint64) {
	block.Age = now
}

func (lruPolicy) OnHit(block *Block, now uint64) {
	block.Age = now
}
