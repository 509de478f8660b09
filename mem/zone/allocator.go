package zone

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/joshuapare/pagezone/internal/logger"
	"github.com/joshuapare/pagezone/mem/align"
	"github.com/joshuapare/pagezone/mem/list"
	"github.com/joshuapare/pagezone/mem/page"
	"github.com/joshuapare/pagezone/pkg/types"
)

// classCount gives every power of two from MinChunkSize up its own class.
const classCount = bits.UintSize - 4

// PageSource supplies the pages that back zones. *page.Allocator satisfies it.
type PageSource interface {
	PageSize() uintptr
	AllocPages(n int) (*page.Page, error)
	Release(p *page.Page) error
	Page(addr uintptr) (*page.Page, bool)
	IsValidPage(addr uintptr) bool
	IsValidPageSize(size uintptr) bool
}

// Options configures a zone Allocator.
type Options struct {
	// Logger receives debug records about zone creation and release. Nil
	// means the global logger.
	Logger *slog.Logger

	// PagesPerZone is the number of contiguous pages backing each zone.
	// Default: 1
	PagesPerZone int
}

// DefaultOptions returns the options used when New is given nil.
func DefaultOptions() *Options {
	return &Options{PagesPerZone: 1}
}

// class holds the zones of one chunk size.
type class struct {
	zones list.List
	free  int // free chunks across all zones of the class
}

// Allocator serves naturally aligned chunks from zones, creating zones on
// demand from pages of a PageSource.
//
// Zones are grouped by chunk-size class. A request is rounded up to a power
// of two no smaller than MinChunkSize and served from the first zone of its
// class that has a free chunk. A zone whose chunks all come back is handed
// back to the page source, unless it is the only zone of its class with free
// chunks.
//
// An Allocator is not safe for concurrent use.
type Allocator struct {
	pages PageSource
	opts  Options
	log   *slog.Logger
	debug bool

	classes [classCount]class
	slots   []*Zone
	holes   []list.Index
	nodes   list.Nodes

	// page address -> owning zone, for every page of every zone
	byPage map[uintptr]*Zone

	stats counters
}

// New returns a zone allocator that takes its pages from pages.
func New(pages PageSource, opts *Options) *Allocator {
	if opts == nil {
		opts = DefaultOptions()
	}
	a := &Allocator{pages: pages, opts: *opts}
	if a.opts.PagesPerZone < 1 {
		a.opts.PagesPerZone = 1
	}
	a.log = logger.Or(opts.Logger)
	a.debug = a.log.Enabled(context.Background(), slog.LevelDebug)
	a.nodes = func(i list.Index) *list.Node { return &a.slots[i].node }
	a.byPage = make(map[uintptr]*Zone)
	return a
}

// MaxChunkSize returns the largest request Alloc serves, half the page
// size. It is 0 while the page source is not initialized. InitZone accepts
// larger chunk sizes.
func (a *Allocator) MaxChunkSize() uintptr {
	return a.pages.PageSize() / 2
}

// ChunkSizeFor returns the chunk size a request of size bytes is served
// from.
func ChunkSizeFor(size uintptr) uintptr {
	return align.RoundPowerOf2(max(size, MinChunkSize))
}

func classOf(chunkSize uintptr) int {
	return align.Log2(chunkSize) - align.Log2(MinChunkSize)
}

// validChunkSize reports whether chunkSize chunks tile a zone of
// PagesPerZone pages.
func (a *Allocator) validChunkSize(chunkSize uintptr) bool {
	pageSize := a.pages.PageSize()
	if !align.IsPowerOf2(chunkSize) || chunkSize < MinChunkSize {
		return false
	}
	if chunkSize <= pageSize {
		return true
	}
	n, pages := chunkSize/pageSize, uintptr(a.opts.PagesPerZone)
	return n <= pages && pages%n == 0
}

// InitZone creates an empty zone of chunkSize chunks and registers it under
// its class. chunkSize may be anything up to the zone span, a page per zone
// by default.
func (a *Allocator) InitZone(chunkSize uintptr) (*Zone, error) {
	pageSize := a.pages.PageSize()
	if pageSize == 0 {
		return nil, ErrNotInitialized
	}
	if !a.validChunkSize(chunkSize) {
		return nil, types.Errorf(ErrInvalidChunkSize, "chunk size %d, page size %d", chunkSize, pageSize)
	}

	p, err := a.pages.AllocPages(a.opts.PagesPerZone)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoBackingPages, err)
	}

	z := &Zone{}
	if err := z.Init(p.Address(), a.opts.PagesPerZone, pageSize, chunkSize); err != nil {
		_ = a.pages.Release(p)
		return nil, err
	}
	a.addZone(z)
	a.stats.ZonesCreated++

	if a.debug {
		a.log.Debug("zone: created", "base", z.base, "pages", z.pageCount,
			"chunk_size", chunkSize, "chunks", z.ChunkCount())
	}
	return z, nil
}

// addZone registers z under its class and indexes its pages.
func (a *Allocator) addZone(z *Zone) {
	if n := len(a.holes); n > 0 {
		z.slot = a.holes[n-1]
		a.holes = a.holes[:n-1]
		a.slots[z.slot] = z
	} else {
		z.slot = list.Index(len(a.slots))
		a.slots = append(a.slots, z)
	}
	z.node.Init(z.slot)

	c := &a.classes[classOf(z.chunkSize)]
	c.zones.PushFront(a.nodes, z.slot)
	c.free += z.FreeCount()

	for i := 0; i < z.pageCount; i++ {
		a.byPage[z.base+uintptr(i)*z.pageSize] = z
	}
}

// removeZone undoes addZone.
func (a *Allocator) removeZone(z *Zone) {
	c := &a.classes[classOf(z.chunkSize)]
	c.zones.Remove(a.nodes, z.slot)
	c.free -= z.FreeCount()

	for i := 0; i < z.pageCount; i++ {
		delete(a.byPage, z.base+uintptr(i)*z.pageSize)
	}
	a.slots[z.slot] = nil
	a.holes = append(a.holes, z.slot)
}

// releaseZone unregisters an empty zone and returns its pages.
func (a *Allocator) releaseZone(z *Zone) error {
	p, ok := a.pages.Page(z.base)
	if !ok {
		return types.Errorf(ErrNotOwned, "zone base 0x%x", z.base)
	}
	a.removeZone(z)
	a.stats.ZonesReleased++
	if a.debug {
		a.log.Debug("zone: released", "base", z.base, "chunk_size", z.chunkSize)
	}
	return a.pages.Release(p)
}

// Alloc returns the address of a free chunk able to hold size bytes.
func (a *Allocator) Alloc(size uintptr) (uintptr, error) {
	a.stats.AllocCalls++
	if a.pages.PageSize() == 0 {
		a.stats.FailedAllocs++
		return 0, ErrNotInitialized
	}
	if size == 0 || size > a.MaxChunkSize() {
		a.stats.FailedAllocs++
		return 0, types.Errorf(ErrInvalidSize, "size %d (max %d)", size, a.MaxChunkSize())
	}

	chunkSize := ChunkSizeFor(size)
	c := &a.classes[classOf(chunkSize)]

	var z *Zone
	if c.free > 0 {
		z = a.freeZone(c)
	} else {
		var err error
		if z, err = a.InitZone(chunkSize); err != nil {
			a.stats.FailedAllocs++
			return 0, err
		}
	}

	addr, err := z.Take()
	if err != nil {
		a.stats.FailedAllocs++
		return 0, err
	}
	c.free--
	return addr, nil
}

// freeZone returns the first zone of c with a free chunk. c.free must be
// positive.
func (a *Allocator) freeZone(c *class) *Zone {
	var found *Zone
	c.zones.Do(a.nodes, func(i list.Index) bool {
		if z := a.slots[i]; !z.IsFull() {
			found = z
			return false
		}
		return true
	})
	return found
}

// Free returns the chunk at addr to its zone. The allocator is unchanged
// when an error is returned.
func (a *Allocator) Free(addr uintptr) error {
	a.stats.FreeCalls++
	z, ok := a.Zone(addr)
	if !ok {
		return types.Errorf(ErrNotOwned, "address 0x%x", addr)
	}
	if err := z.Give(addr); err != nil {
		return err
	}

	c := &a.classes[classOf(z.chunkSize)]
	c.free++
	if z.IsEmpty() && c.free > z.ChunkCount() {
		return a.releaseZone(z)
	}
	return nil
}

// Zone returns the zone whose pages contain addr.
func (a *Allocator) Zone(addr uintptr) (*Zone, bool) {
	pageSize := a.pages.PageSize()
	if pageSize == 0 {
		return nil, false
	}
	z, ok := a.byPage[align.AlignDown(addr, pageSize)]
	return z, ok
}

// Owns reports whether addr lies in a page that backs a zone.
func (a *Allocator) Owns(addr uintptr) bool {
	_, ok := a.Zone(addr)
	return ok
}

// IsValidPage reports whether addr is a page handed out by the page source.
func (a *Allocator) IsValidPage(addr uintptr) bool {
	return a.pages.IsValidPage(addr)
}

// IsValidPageSize reports whether size is acceptable to the page source.
func (a *Allocator) IsValidPageSize(size uintptr) bool {
	return a.pages.IsValidPageSize(size)
}

// IsValidChunk reports whether addr is a chunk currently allocated from
// one of the zones.
func (a *Allocator) IsValidChunk(addr uintptr) bool {
	z, ok := a.Zone(addr)
	return ok && z.IsAllocated(addr)
}

// Zones returns every zone of the class serving chunkSize, most recently
// created first.
func (a *Allocator) Zones(chunkSize uintptr) []*Zone {
	if !align.IsPowerOf2(chunkSize) || chunkSize < MinChunkSize || classOf(chunkSize) >= classCount {
		return nil
	}
	c := &a.classes[classOf(chunkSize)]
	out := make([]*Zone, 0, c.zones.Len())
	c.zones.Do(a.nodes, func(i list.Index) bool {
		out = append(out, a.slots[i])
		return true
	})
	return out
}

// Clear forgets every zone without returning pages to the page source. Use
// it together with clearing the page source.
func (a *Allocator) Clear() {
	a.classes = [classCount]class{}
	a.slots = nil
	a.holes = nil
	a.byPage = make(map[uintptr]*Zone)
	a.stats = counters{}
}
