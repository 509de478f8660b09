package page

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/pagezone/mem/list"
)

// counters tracks operation totals since the last Init.
type counters struct {
	AllocCalls       int // AllocPage/AllocPages calls, successful or not
	FreeCalls        int // FreePage/FreePages/Release calls, successful or not
	FailedAllocs     int // allocations that returned an error
	Splits           int // free groups cut to satisfy an allocation
	CoalesceBackward int // merges with the free group below a released one
	CoalesceForward  int // merges with the free group above a released one
}

// Stats is a point-in-time summary of an Allocator.
type Stats struct {
	counters

	PageSize uintptr

	TotalMemory     uint64 // bytes spanned by the usable regions, raw bounds
	EffectiveMemory uint64 // bytes covered by whole pages
	UserMemory      uint64 // EffectiveMemory minus reserved pages
	FreeMemory      uint64 // bytes in free pages

	TotalPages    int
	ReservedPages int
	FreePages     int
	UsedPages     int // allocated to callers, excludes reserved pages

	FreeGroups       int // number of maximal free runs
	LargestFreeGroup int // pages in the longest free run
}

// Stats returns current usage figures. It walks every free bucket.
func (a *Allocator) Stats() Stats {
	s := Stats{
		counters:      a.stats,
		PageSize:      a.pageSize,
		TotalPages:    len(a.pages),
		ReservedPages: a.reserved,
		FreePages:     a.freePages,
	}
	for i := range a.regions {
		s.TotalMemory += uint64(a.regions[i].size())
		s.EffectiveMemory += uint64(a.regions[i].alignedSize())
	}
	s.UserMemory = s.EffectiveMemory - uint64(a.reserved)*uint64(a.pageSize)
	s.FreeMemory = uint64(a.freePages) * uint64(a.pageSize)
	s.UsedPages = s.TotalPages - s.ReservedPages - s.FreePages

	for b := range a.free {
		s.FreeGroups += a.free[b].Len()
		a.free[b].Do(a.nodes, func(i list.Index) bool {
			s.LargestFreeGroup = max(s.LargestFreeGroup, int(a.pages[i].group))
			return true
		})
	}
	return s
}

// String renders the summary on one line.
func (s Stats) String() string {
	return fmt.Sprintf("pages %d/%d used (%d reserved), free %s in %d groups, largest %d pages, page size %s",
		s.UsedPages, s.TotalPages, s.ReservedPages,
		humanize.IBytes(s.FreeMemory), s.FreeGroups, s.LargestFreeGroup,
		humanize.IBytes(uint64(s.PageSize)))
}

// GroupInfo describes one free group.
type GroupInfo struct {
	Address uintptr
	Pages   int
}

// Snapshot is a full dump of the allocator's free lists and used pages, used
// to compare state before and after an operation.
type Snapshot struct {
	Buckets   [][]GroupInfo // free groups per bucket, in list order
	UsedPages []uintptr     // addresses of used pages, ascending
}

// Snapshot captures the current free-group buckets and used pages.
func (a *Allocator) Snapshot() Snapshot {
	snap := Snapshot{Buckets: make([][]GroupInfo, groupBuckets)}
	for b := range a.free {
		a.free[b].Do(a.nodes, func(i list.Index) bool {
			snap.Buckets[b] = append(snap.Buckets[b], GroupInfo{
				Address: a.pages[i].addr,
				Pages:   int(a.pages[i].group),
			})
			return true
		})
	}
	for i := range a.pages {
		if a.pages[i].IsUsed() {
			snap.UsedPages = append(snap.UsedPages, a.pages[i].addr)
		}
	}
	return snap
}
