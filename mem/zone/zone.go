package zone

import (
	"fmt"
	"math"

	"github.com/joshuapare/pagezone/mem/align"
	"github.com/joshuapare/pagezone/mem/list"
	"github.com/joshuapare/pagezone/pkg/types"
)

// MinChunkSize is the smallest chunk a zone hands out.
const MinChunkSize = 16

// Zone is a span of one or more contiguous pages cut into chunks of one
// power-of-two size. Every chunk is naturally aligned to the chunk size.
//
// Free chunks are threaded through a table of list nodes indexed by chunk
// number, so the chunks themselves are never written to. Take pops the front
// of the free list and Give pushes to the front.
type Zone struct {
	base       uintptr
	pageSize   uintptr
	pageCount  int
	chunkSize  uintptr
	chunkShift uint

	chunks []list.Node
	free   list.List

	// links the zone into its allocator's class list
	node list.Node
	slot list.Index
}

// Init cuts [base, base+pageCount*pageSize) into chunks of chunkSize bytes
// and puts them all on the free list in ascending address order.
func (z *Zone) Init(base uintptr, pageCount int, pageSize, chunkSize uintptr) error {
	z.Clear()

	if pageCount < 1 || !align.IsPowerOf2(pageSize) {
		return types.Errorf(ErrInvalidSpan, "%d pages of %d bytes", pageCount, pageSize)
	}
	span := uintptr(pageCount) * pageSize
	if span/pageSize != uintptr(pageCount) || base+span < base {
		return types.Errorf(ErrInvalidSpan, "0x%x+%d pages of %d bytes", base, pageCount, pageSize)
	}
	if !align.IsPowerOf2(chunkSize) || chunkSize < MinChunkSize || chunkSize > span ||
		span%chunkSize != 0 || span/chunkSize > math.MaxInt32 {
		return types.Errorf(ErrInvalidChunkSize, "chunk size %d for a %d byte zone", chunkSize, span)
	}
	if !align.IsNaturallyAligned(base, chunkSize) {
		return types.Errorf(ErrMisalignedBase, "base 0x%x, chunk size %d", base, chunkSize)
	}

	z.base = base
	z.pageSize = pageSize
	z.pageCount = pageCount
	z.chunkSize = chunkSize
	z.chunkShift = uint(align.Log2(chunkSize))

	z.chunks = make([]list.Node, span>>z.chunkShift)
	for i := range z.chunks {
		z.chunks[i].Init(list.Index(i))
		z.free.PushBack(z.nodes, list.Index(i))
	}
	return nil
}

// Clear resets the zone to its zero state.
func (z *Zone) Clear() {
	z.base = 0
	z.pageSize = 0
	z.pageCount = 0
	z.chunkSize = 0
	z.chunkShift = 0
	z.chunks = nil
	z.free = list.List{}
}

func (z *Zone) nodes(i list.Index) *list.Node { return &z.chunks[i] }

// Base returns the address of the first chunk.
func (z *Zone) Base() uintptr { return z.base }

// End returns the first address past the zone.
func (z *Zone) End() uintptr { return z.base + uintptr(z.pageCount)*z.pageSize }

// ChunkSize returns the size of every chunk in the zone.
func (z *Zone) ChunkSize() uintptr { return z.chunkSize }

// PageCount returns the number of pages backing the zone.
func (z *Zone) PageCount() int { return z.pageCount }

// ChunkCount returns the total number of chunks.
func (z *Zone) ChunkCount() int { return len(z.chunks) }

// FreeCount returns the number of free chunks.
func (z *Zone) FreeCount() int { return z.free.Len() }

// IsEmpty reports whether no chunk of the zone is in use.
func (z *Zone) IsEmpty() bool { return z.free.Len() == len(z.chunks) }

// IsFull reports whether every chunk of the zone is in use.
func (z *Zone) IsFull() bool { return z.free.Empty() }

// IsNaturallyAligned reports whether the base is aligned to the chunk size.
func (z *Zone) IsNaturallyAligned() bool {
	return align.IsNaturallyAligned(z.base, z.chunkSize)
}

// Contains reports whether addr lies inside the zone.
func (z *Zone) Contains(addr uintptr) bool {
	return len(z.chunks) > 0 && addr >= z.base && addr < z.End()
}

// IsValidChunk reports whether addr is the start of a chunk of this zone.
func (z *Zone) IsValidChunk(addr uintptr) bool {
	return z.Contains(addr) && (addr-z.base)&(z.chunkSize-1) == 0
}

// IsAllocated reports whether addr is the start of a chunk that is in use.
func (z *Zone) IsAllocated(addr uintptr) bool {
	if !z.IsValidChunk(addr) {
		return false
	}
	return !z.free.Linked(z.nodes, z.chunkIndex(addr))
}

func (z *Zone) chunkIndex(addr uintptr) list.Index {
	return list.Index((addr - z.base) >> z.chunkShift)
}

// Take removes a free chunk from the zone and returns its address.
func (z *Zone) Take() (uintptr, error) {
	i := z.free.PopFront(z.nodes)
	if i == list.Nil {
		return 0, types.Errorf(ErrZoneFull, "zone at 0x%x, chunk size %d", z.base, z.chunkSize)
	}
	return z.base + uintptr(i)<<z.chunkShift, nil
}

// Give returns the chunk at addr to the free list. The zone is unchanged
// when an error is returned.
func (z *Zone) Give(addr uintptr) error {
	if !z.Contains(addr) {
		return types.Errorf(ErrNotOwned, "address 0x%x outside zone [0x%x, 0x%x)", addr, z.base, z.End())
	}
	if !z.IsValidChunk(addr) {
		return types.Errorf(ErrMisalignedChunk, "address 0x%x, chunk size %d", addr, z.chunkSize)
	}
	i := z.chunkIndex(addr)
	if z.free.Linked(z.nodes, i) {
		return types.Errorf(ErrDoubleFree, "chunk 0x%x", addr)
	}
	z.free.PushFront(z.nodes, i)
	return nil
}

// FreeChunks returns the addresses on the free list, front to back.
func (z *Zone) FreeChunks() []uintptr {
	out := make([]uintptr, 0, z.free.Len())
	z.free.Do(z.nodes, func(i list.Index) bool {
		out = append(out, z.base+uintptr(i)<<z.chunkShift)
		return true
	})
	return out
}

func (z *Zone) String() string {
	return fmt.Sprintf("zone{base: 0x%x, pages: %d, chunk: %d, free: %d/%d}",
		z.base, z.pageCount, z.chunkSize, z.FreeCount(), z.ChunkCount())
}
