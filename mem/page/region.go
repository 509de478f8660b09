package page

import (
	"cmp"
	"slices"

	"github.com/joshuapare/pagezone/mem/align"
	"github.com/joshuapare/pagezone/mem/list"
	"github.com/joshuapare/pagezone/pkg/types"
)

// Region describes one contiguous span of physical memory handed to the
// allocator. Regions that are not Usable are ignored.
type Region struct {
	Address uintptr
	Size    uintptr
	Usable  bool
}

// End returns the first address past the region. ok is false when the
// region wraps around the address space. A region that runs up to the top
// of the address space reports end 0.
func (r Region) End() (end uintptr, ok bool) {
	end = r.Address + r.Size
	return end, end >= r.Address || end == 0
}

// regionInfo is the allocator's view of a usable region: its raw bounds,
// its page-aligned bounds and the slice of descriptors covering it.
type regionInfo struct {
	start        uintptr // raw start
	last         uintptr // raw last byte (inclusive)
	alignedStart uintptr // start rounded up to the page size
	alignedLast  uintptr // last byte of the last whole page
	pageCount    int
	firstPage    list.Index
	lastPage     list.Index
}

func (ri *regionInfo) size() uintptr        { return ri.last - ri.start + 1 }
func (ri *regionInfo) alignedSize() uintptr { return ri.alignedLast - ri.alignedStart + 1 }

func (ri *regionInfo) contains(addr uintptr) bool {
	return addr >= ri.alignedStart && addr <= ri.alignedLast
}

// newRegionInfo rounds r inward to whole pages. ok is false when the region
// does not contain a single aligned page. r.Size must not be zero.
//
// Bounds are kept inclusive so a region may end at the top of the address
// space.
func newRegionInfo(r Region, pageSize uintptr) (ri regionInfo, ok bool, err error) {
	end, valid := r.End()
	if !valid || r.Size == 0 {
		return regionInfo{}, false, types.Errorf(ErrInvalidRange, "region 0x%x+0x%x", r.Address, r.Size)
	}

	ri = regionInfo{
		start:     r.Address,
		last:      end - 1,
		firstPage: list.Nil,
		lastPage:  list.Nil,
	}
	if r.Size < pageSize {
		return ri, false, nil
	}

	start, valid := align.AlignUp(r.Address, pageSize)
	if !valid {
		return ri, false, nil
	}
	// end is at least pageSize here unless it wrapped to 0, and then the
	// last page ends at the top of the address space.
	last := align.AlignDown(end, pageSize) - 1
	if last < start {
		return ri, false, nil
	}
	ri.alignedStart = start
	ri.alignedLast = last
	ri.pageCount = int((last-start)/pageSize + 1)
	return ri, true, nil
}

// sortRegions orders regions by start address and rejects any overlap of
// their raw bounds.
func sortRegions(infos []regionInfo) error {
	slices.SortFunc(infos, func(a, b regionInfo) int {
		return cmp.Compare(a.start, b.start)
	})
	for i := 1; i < len(infos); i++ {
		prev, cur := &infos[i-1], &infos[i]
		if cur.start <= prev.last {
			return types.Errorf(ErrRegionsOverlap,
				"[0x%x, 0x%x] and [0x%x, 0x%x]", prev.start, prev.last, cur.start, cur.last)
		}
	}
	return nil
}

// findRegion returns the index of the region whose aligned span holds addr,
// or -1. regions must be sorted.
func findRegion(regions []regionInfo, addr uintptr) int {
	i, _ := slices.BinarySearchFunc(regions, addr, func(ri regionInfo, a uintptr) int {
		if ri.alignedLast < a {
			return -1
		}
		if ri.alignedStart > a {
			return 1
		}
		return 0
	})
	if i < len(regions) && regions[i].contains(addr) {
		return i
	}
	return -1
}
