package page

import (
	"context"
	"log/slog"
	"math"
	"unsafe"

	"github.com/joshuapare/pagezone/internal/logger"
	"github.com/joshuapare/pagezone/mem/align"
	"github.com/joshuapare/pagezone/mem/list"
	"github.com/joshuapare/pagezone/pkg/types"
)

const (
	// MinPageSize is the smallest page size the allocator accepts.
	MinPageSize = 128

	// MaxPageSize is the largest page size the allocator accepts (1GB).
	MaxPageSize = 1 << 30

	// DescriptorSize is the number of bytes one page descriptor occupies when
	// descriptors are reserved inside managed memory.
	DescriptorSize = unsafe.Sizeof(Page{})
)

// Options configures a page Allocator.
type Options struct {
	// Logger receives debug records about groups and init. Nil means the
	// global logger.
	Logger *slog.Logger

	// ReserveDescriptors accounts for the descriptor pool as if it lived in
	// managed memory: the pages it would occupy are taken out of the
	// smallest region able to hold it and are never handed out.
	// Default: false
	ReserveDescriptors bool
}

// DefaultOptions returns the options used when New is given nil.
func DefaultOptions() *Options {
	return &Options{}
}

// Allocator hands out physical pages, one at a time or as groups of
// contiguous pages.
//
// Free pages are kept as maximal groups of contiguous pages, linked into
// buckets by log2 of their length (see bucketFor). Allocation walks the
// buckets upward from the request's bucket and takes the first group long
// enough (segregated first fit), splitting off the rest. Release coalesces the
// group with the free groups directly below and above it before it is linked
// back, so free memory never stays fragmented across adjacent groups.
//
// An Allocator is not safe for concurrent use.
type Allocator struct {
	opts  Options
	log   *slog.Logger
	debug bool

	regions   []regionInfo
	pages     []Page
	nodes     list.Nodes
	pageSize  uintptr
	pageShift uint

	free      [groupBuckets]list.List
	freePages int
	reserved  int
	descIdx   int

	stats counters
}

// New returns an empty allocator. Call Init or InitRange before allocating.
func New(opts *Options) *Allocator {
	if opts == nil {
		opts = DefaultOptions()
	}
	a := &Allocator{opts: *opts}
	a.log = logger.Or(opts.Logger)
	a.debug = a.log.Enabled(context.Background(), slog.LevelDebug)
	a.nodes = func(i list.Index) *list.Node { return &a.pages[i].node }
	a.descIdx = -1
	return a
}

// IsValidPageSize reports whether size is a power of two in
// [MinPageSize, MaxPageSize].
func IsValidPageSize(size uintptr) bool {
	return size >= MinPageSize && size <= MaxPageSize && align.IsPowerOf2(size)
}

// IsValidPageSize reports whether size is acceptable as a page size.
func (a *Allocator) IsValidPageSize(size uintptr) bool {
	return IsValidPageSize(size)
}

// InitRange initializes the allocator over the single span [start, end).
func (a *Allocator) InitRange(start, end, pageSize uintptr) error {
	if end <= start {
		a.Clear()
		return types.Errorf(ErrInvalidRange, "[0x%x, 0x%x)", start, end)
	}
	return a.Init([]Region{{Address: start, Size: end - start, Usable: true}}, pageSize)
}

// Init partitions the usable regions into pages of pageSize bytes. Region
// edges that are not page aligned are rounded inward; regions without a
// whole page are skipped. Any previous state is discarded, also on error.
func (a *Allocator) Init(regions []Region, pageSize uintptr) error {
	a.Clear()

	if !IsValidPageSize(pageSize) {
		return types.Errorf(ErrInvalidPageSize, "page size %d", pageSize)
	}

	infos := make([]regionInfo, 0, len(regions))
	for _, r := range regions {
		if !r.Usable || r.Size == 0 {
			continue
		}
		ri, _, err := newRegionInfo(r, pageSize)
		if err != nil {
			return err
		}
		infos = append(infos, ri)
	}
	if err := sortRegions(infos); err != nil {
		return err
	}

	total := 0
	kept := infos[:0]
	for _, ri := range infos {
		if ri.pageCount == 0 {
			if a.debug {
				a.log.Debug("page: skipping region without a whole page",
					"start", ri.start, "last", ri.last)
			}
			continue
		}
		total += ri.pageCount
		kept = append(kept, ri)
	}
	if total == 0 {
		return ErrNoPages
	}
	if total > math.MaxInt32 {
		return types.Errorf(ErrTooManyPages, "%d pages", total)
	}

	a.regions = kept
	a.pageSize = pageSize
	a.pageShift = uint(align.Log2(pageSize))
	a.pages = make([]Page, total)

	idx := list.Index(0)
	for i := range a.regions {
		ri := &a.regions[i]
		ri.firstPage = idx
		addr := ri.alignedStart
		for range ri.pageCount {
			a.pages[idx].init(addr, idx)
			addr += pageSize
			idx++
		}
		ri.lastPage = idx - 1
		a.pages[ri.firstPage].flags |= flagFirst
	}

	if a.opts.ReserveDescriptors {
		if err := a.reserveDescriptors(); err != nil {
			a.Clear()
			return err
		}
	}

	for i := range a.regions {
		ri := &a.regions[i]
		head, n := ri.firstPage, ri.pageCount
		if i == a.descIdx {
			head += list.Index(a.reserved)
			n -= a.reserved
		}
		if n == 0 {
			continue
		}
		a.setGroup(head, n)
		a.addGroup(head)
	}

	a.log.Debug("page: allocator initialized",
		"regions", len(a.regions), "pages", len(a.pages),
		"page_size", pageSize, "reserved", a.reserved)
	return nil
}

// reserveDescriptors marks the pages that would hold the descriptor pool
// as reserved, picking the smallest region that can hold it.
func (a *Allocator) reserveDescriptors() error {
	need := uintptr(len(a.pages)) * DescriptorSize
	a.descIdx = -1
	for i := range a.regions {
		if a.regions[i].alignedSize() < need {
			continue
		}
		if a.descIdx < 0 || a.regions[i].alignedSize() < a.regions[a.descIdx].alignedSize() {
			a.descIdx = i
		}
	}
	if a.descIdx < 0 {
		return types.Errorf(ErrNoDescriptorRegion, "%d descriptor bytes", need)
	}

	n := int((need + a.pageSize - 1) >> a.pageShift)
	first := a.regions[a.descIdx].firstPage
	for i := first; i < first+list.Index(n); i++ {
		a.pages[i].flags |= flagUsed | flagReserved
	}
	a.reserved = n
	return nil
}

// Clear drops all regions and pages. The allocator can be initialized again.
func (a *Allocator) Clear() {
	a.regions = nil
	a.pages = nil
	a.pageSize = 0
	a.pageShift = 0
	a.free = [groupBuckets]list.List{}
	a.freePages = 0
	a.reserved = 0
	a.descIdx = -1
	a.stats = counters{}
}

// PageSize returns the configured page size, or 0 before Init.
func (a *Allocator) PageSize() uintptr { return a.pageSize }

// FreeCount returns the number of free pages.
func (a *Allocator) FreeCount() int { return a.freePages }

// AllocPage allocates a single page.
func (a *Allocator) AllocPage() (*Page, error) {
	return a.AllocPages(1)
}

// AllocPages allocates n contiguous pages and returns the first one. The
// pages have ascending addresses and all lie in one region.
func (a *Allocator) AllocPages(n int) (*Page, error) {
	a.stats.AllocCalls++
	if a.pageSize == 0 {
		a.stats.FailedAllocs++
		return nil, ErrNotInitialized
	}
	if n < 1 {
		a.stats.FailedAllocs++
		return nil, types.Errorf(ErrInvalidCount, "count %d", n)
	}

	if n <= a.freePages {
		for b := bucketFor(n); b < groupBuckets; b++ {
			head := a.firstFit(b, n)
			if head == list.Nil {
				continue
			}

			a.removeGroup(head)
			first, rest := a.splitGroup(head, n)
			if rest != list.Nil {
				a.addGroup(rest)
			}
			a.markUsed(first, n, true)
			a.pages[first].flags |= flagHead

			if a.debug {
				a.log.Debug("page: group allocated",
					"addr", a.pages[first].addr, "pages", n, "free", a.freePages)
			}
			return &a.pages[first], nil
		}
	}

	a.stats.FailedAllocs++
	if n == 1 {
		return nil, ErrNoFreePage
	}
	return nil, types.Errorf(ErrNoFreeRun, "%d pages (%d free)", n, a.freePages)
}

// firstFit returns the first group of bucket b with at least n pages.
func (a *Allocator) firstFit(b, n int) list.Index {
	found := list.Nil
	a.free[b].Do(a.nodes, func(i list.Index) bool {
		if int(a.pages[i].group) >= n {
			found = i
			return false
		}
		return true
	})
	return found
}

// FreePage releases a page obtained from AllocPage.
func (a *Allocator) FreePage(p *Page) error {
	return a.FreePages(p, 1)
}

// FreePages releases the group of n pages starting at p. n must match the
// count the group was allocated with. Rejected calls leave the allocator
// unchanged.
func (a *Allocator) FreePages(p *Page, n int) error {
	idx, err := a.checkRelease(p)
	if err != nil {
		return err
	}
	if size := int(a.pages[idx].group); n != size {
		return types.Errorf(ErrGroupSizeMismatch, "page 0x%x: freeing %d of %d pages", p.addr, n, size)
	}
	a.release(idx)
	return nil
}

// Release frees the whole allocated group that starts at p.
func (a *Allocator) Release(p *Page) error {
	idx, err := a.checkRelease(p)
	if err != nil {
		return err
	}
	a.release(idx)
	return nil
}

// ReleaseAddr frees the allocated group that starts at addr.
func (a *Allocator) ReleaseAddr(addr uintptr) error {
	if !align.IsNaturallyAligned(addr, a.pageSize) {
		return types.Errorf(ErrNotOwned, "address 0x%x is not page aligned", addr)
	}
	p, ok := a.Page(addr)
	if !ok {
		return types.Errorf(ErrNotOwned, "address 0x%x", addr)
	}
	return a.Release(p)
}

// checkRelease validates that p heads a group this allocator handed out.
func (a *Allocator) checkRelease(p *Page) (list.Index, error) {
	a.stats.FreeCalls++
	idx, ok := a.indexOf(p)
	if !ok {
		return list.Nil, ErrNotOwned
	}

	pg := &a.pages[idx]
	switch {
	case pg.IsReserved():
		return list.Nil, types.Errorf(ErrReservedPage, "page 0x%x", pg.addr)
	case !pg.IsUsed():
		return list.Nil, types.Errorf(ErrDoubleFree, "page 0x%x", pg.addr)
	case pg.flags&flagHead == 0:
		return list.Nil, types.Errorf(ErrNotGroupHead, "page 0x%x", pg.addr)
	}
	return idx, nil
}

// release returns the allocated group at idx to the free buckets, merging it
// with free neighbours.
func (a *Allocator) release(idx list.Index) {
	n := int(a.pages[idx].group)
	a.pages[idx].flags &^= flagHead
	a.markUsed(idx, n, false)

	joined := idx
	for {
		prev := joined - 1
		if prev < 0 || a.pages[prev].IsUsed() || !a.adjacent(prev, joined) {
			break
		}
		prevHead := prev - list.Index(a.pages[prev].group) + 1
		a.removeGroup(prevHead)
		joined = a.joinGroup(prevHead, joined)
		a.stats.CoalesceBackward++
	}

	for {
		last := joined + list.Index(a.pages[joined].group) - 1
		next := last + 1
		if int(next) >= len(a.pages) || a.pages[next].IsUsed() || !a.adjacent(last, next) {
			break
		}
		a.removeGroup(next)
		joined = a.joinGroup(joined, next)
		a.stats.CoalesceForward++
	}

	a.addGroup(joined)
	if a.debug {
		a.log.Debug("page: group released",
			"addr", a.pages[idx].addr, "pages", n,
			"merged_pages", a.pages[joined].group, "free", a.freePages)
	}
}

// indexOf returns the descriptor index of p if p belongs to this allocator.
func (a *Allocator) indexOf(p *Page) (list.Index, bool) {
	if p == nil {
		return list.Nil, false
	}
	i := p.idx
	if i < 0 || int(i) >= len(a.pages) || &a.pages[i] != p {
		return list.Nil, false
	}
	return i, true
}

// Page returns the descriptor of the page containing addr.
func (a *Allocator) Page(addr uintptr) (*Page, bool) {
	r := findRegion(a.regions, addr)
	if r < 0 {
		return nil, false
	}
	ri := &a.regions[r]
	idx := ri.firstPage + list.Index((addr-ri.alignedStart)>>a.pageShift)
	return &a.pages[idx], true
}

// Contains reports whether addr is page aligned and lies inside a region.
func (a *Allocator) Contains(addr uintptr) bool {
	if a.pageSize == 0 || !align.IsNaturallyAligned(addr, a.pageSize) {
		return false
	}
	return findRegion(a.regions, addr) >= 0
}

// IsValidPage reports whether addr is the address of a page that is
// currently allocated to a caller.
func (a *Allocator) IsValidPage(addr uintptr) bool {
	if !a.Contains(addr) {
		return false
	}
	p, _ := a.Page(addr)
	return p.IsUsed() && !p.IsReserved()
}

// PageAt returns the descriptor at position i of the pool.
func (a *Allocator) PageAt(i int) (*Page, bool) {
	if i < 0 || i >= len(a.pages) {
		return nil, false
	}
	return &a.pages[i], true
}

// TotalPages returns the number of page descriptors.
func (a *Allocator) TotalPages() int { return len(a.pages) }
