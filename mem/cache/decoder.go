package cache

// DecodedAddress is an address split into the fields the cache uses.
type DecodedAddress struct {
	Tag    uint32
	Index  uint32
	Offset uint32
	Block  uint32 // the address with the offset bits removed
}

// AddressDecoder splits addresses according to a cache geometry.
type AddressDecoder struct {
	offsetBits uint
	indexBits  uint
	offsetMask uint32
	indexMask  uint32
}

// NewAddressDecoder creates a decoder for a validated geometry.
func NewAddressDecoder(g Geometry) AddressDecoder {
	return AddressDecoder{
		offsetBits: uint(g.OffsetBits),
		indexBits:  uint(g.IndexBits),
		offsetMask: calculateMask(uint(g.OffsetBits)),
		indexMask:  calculateMask(uint(g.IndexBits)),
	}
}

// Decode splits the address into tag, index, offset and block number.
func (d AddressDecoder) Decode(address uint32) DecodedAddress {
	block := uint32(uint64(address) >> d.offsetBits)

	return DecodedAddress{
		Tag:    uint32(uint64(block) >> d.indexBits),
		Index:  block & d.indexMask,
		Offset: address & d.offsetMask,
		Block:  block,
	}
}

// calculateMask generates a mask with the lowest n bits set.
func calculateMask(n uint) uint32 {
	return uint32((uint64(1) << n) - 1)
}

// BlockOf rebuilds the block number of a line from its tag and set index.
func (d AddressDecoder) BlockOf(tag, index uint32) uint32 {
	return uint32(uint64(tag)<<d.indexBits) | index
}

// BlockAddress returns the first byte address of a block.
func (d AddressDecoder) BlockAddress(block uint32) uint32 {
	return uint32(uint64(block) << d.offsetBits)
}
