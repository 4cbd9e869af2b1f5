package memory

import (
	"sort"
)

// DefaultBlockSize is the size of the device memory blocks buffers are carved
// out of.
const DefaultBlockSize = 64 << 20

// Block tracks the free ranges of one device memory allocation. Ranges are handed
// out first-fit and merged with their neighbours when freed.
type Block struct {
	size uint64
	used uint64
	free []span
}

type span struct {
	offset uint64
	size   uint64
}

// NewBlock returns an empty block of the given size.
func NewBlock(size uint64) *Block {
	return &Block{
		size: size,
		free: []span{{offset: 0, size: size}},
	}
}

// Alloc reserves size bytes aligned to align, which has to be a power of two or
// zero. It returns false when no free range is large enough.
func (b *Block) Alloc(size, align uint64) (uint64, bool) {
	if size == 0 {
		return 0, false
	}
	if align == 0 {
		align = 1
	}

	for i, s := range b.free {
		offset := alignUp(s.offset, align)
		end := s.offset + s.size
		if offset+size > end {
			continue
		}

		var rest []span
		if offset > s.offset {
			rest = append(rest, span{offset: s.offset, size: offset - s.offset})
		}
		if offset+size < end {
			rest = append(rest, span{offset: offset + size, size: end - offset - size})
		}

		b.free = append(b.free[:i], append(rest, b.free[i+1:]...)...)
		b.used += size
		return offset, true
	}

	return 0, false
}

// Free returns a range obtained from Alloc.
func (b *Block) Free(offset, size uint64) {
	i := sort.Search(len(b.free), func(i int) bool {
		return b.free[i].offset >= offset
	})

	b.free = append(b.free, span{})
	copy(b.free[i+1:], b.free[i:])
	b.free[i] = span{offset: offset, size: size}
	b.used -= size

	if i+1 < len(b.free) && b.free[i].offset+b.free[i].size == b.free[i+1].offset {
		b.free[i].size += b.free[i+1].size
		b.free = append(b.free[:i+1], b.free[i+2:]...)
	}
	if i > 0 && b.free[i-1].offset+b.free[i-1].size == b.free[i].offset {
		b.free[i-1].size += b.free[i].size
		b.free = append(b.free[:i], b.free[i+1:]...)
	}
}

// Size returns the size of the block.
func (b *Block) Size() uint64 { return b.size }

// Used returns the number of bytes handed out.
func (b *Block) Used() uint64 { return b.used }

// Empty reports whether nothing is allocated from the block.
func (b *Block) Empty() bool { return b.used == 0 }

// FreeRanges returns the number of disjoint free ranges.
func (b *Block) FreeRanges() int { return len(b.free) }

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
