package cache

import "github.com/sarchlab/cachesim/mem/cache/internal/tagging"

// shadowCache is a fully associative cache with the same capacity and policy
// as the modeled cache. It is keyed by block number and sees every access, so
// it tells what an ideal placement would have done.
type shadowCache struct {
	tags tagging.TagArray
}

func newShadowCache(g Geometry, p ReplacePolicy) *shadowCache {
	return &shadowCache{
		tags: tagging.NewTagArray(1, g.TotalLines(), p.newTaggingPolicy()),
	}
}

// Access replays one block access and reports whether it hit.
func (s *shadowCache) Access(block uint32, now uint64) (hit bool) {
	b, hit := s.tags.Lookup(0, block)
	if hit {
		s.tags.Visit(0, b.WayID, now)
		return true
	}

	victim := s.tags.FindVictim(0)
	s.tags.Install(0, victim.WayID, block, now)

	return false
}

// Contains returns true if the block is resident in the shadow cache.
func (s *shadowCache) Contains(block uint32) bool {
	_, ok := s.tags.Lookup(0, block)
	return ok
}

func (s *shadowCache) Reset() {
	s.tags.Reset()
}
