// Package allocator is the public entry point: one page allocator and one
// zone allocator working as a pair, with requests routed by size.
//
// # Usage Example
//
//	a := allocator.New(nil)
//	if err := a.InitRange(0x100000, 0x900000, 4096); err != nil {
//	    return err
//	}
//
//	small, err := a.Allocate(200)    // 256 byte chunk from a zone
//	large, err := a.Allocate(10000)  // three contiguous pages
//
//	err = a.Release(small)
//	err = a.Release(large)
//
// Requests up to half a page are served as chunks. Larger requests take
// whole pages. Release accepts either kind of address.
//
// An Allocator is not safe for concurrent use; wrap it in Synchronized to
// share it between goroutines.
package allocator

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/pagezone/internal/logger"
	"github.com/joshuapare/pagezone/mem/page"
	"github.com/joshuapare/pagezone/mem/zone"
	"github.com/joshuapare/pagezone/pkg/types"
)

// Version of the allocator library.
const version = "0.3.0"

// Version returns the library version.
func Version() string { return version }

// Options configures an Allocator.
type Options struct {
	// Logger receives debug records from both tiers. Nil means the global
	// logger.
	Logger *slog.Logger

	// ReserveDescriptors takes the pages that would hold the page
	// descriptors out of the managed memory.
	// Default: false
	ReserveDescriptors bool

	// PagesPerZone is the number of pages backing each zone.
	// Default: 1
	PagesPerZone int
}

// DefaultOptions returns the options used when New is given nil.
func DefaultOptions() *Options {
	return &Options{PagesPerZone: 1}
}

// Allocator combines a page allocator with a zone allocator drawing from
// it.
type Allocator struct {
	pages *page.Allocator
	zones *zone.Allocator
	log   *slog.Logger
}

// New returns an allocator that must be initialized before use.
func New(opts *Options) *Allocator {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := logger.Or(opts.Logger)
	pages := page.New(&page.Options{Logger: log, ReserveDescriptors: opts.ReserveDescriptors})
	return &Allocator{
		pages: pages,
		zones: zone.New(pages, &zone.Options{Logger: log, PagesPerZone: opts.PagesPerZone}),
		log:   log,
	}
}

// Init manages the given regions with pages of pageSize bytes. Previous
// state is discarded.
func (a *Allocator) Init(regions []page.Region, pageSize uintptr) error {
	a.zones.Clear()
	if err := a.pages.Init(regions, pageSize); err != nil {
		return err
	}
	a.log.Info("allocator initialized", "regions", len(regions),
		"pages", a.pages.TotalPages(), "page_size", pageSize)
	return nil
}

// InitRange manages the single span [start, end).
func (a *Allocator) InitRange(start, end, pageSize uintptr) error {
	a.zones.Clear()
	return a.pages.InitRange(start, end, pageSize)
}

// Clear drops all state. The allocator can be initialized again.
func (a *Allocator) Clear() {
	a.zones.Clear()
	a.pages.Clear()
}

// PageSize returns the page size, or 0 before Init.
func (a *Allocator) PageSize() uintptr { return a.pages.PageSize() }

// Pages exposes the page tier.
func (a *Allocator) Pages() *page.Allocator { return a.pages }

// Zones exposes the zone tier.
func (a *Allocator) Zones() *zone.Allocator { return a.zones }

// Allocate returns the address of at least size bytes. The address is
// aligned to the chunk size for small requests and to the page size for
// large ones.
func (a *Allocator) Allocate(size uintptr) (uintptr, error) {
	pageSize := a.pages.PageSize()
	if pageSize == 0 {
		return 0, ErrNotInitialized
	}
	if size == 0 {
		return 0, types.Errorf(ErrInvalidSize, "size 0")
	}

	if size <= a.zones.MaxChunkSize() {
		return a.zones.Alloc(size)
	}

	n := (size-1)/pageSize + 1
	if n > math.MaxInt32 {
		return 0, types.Errorf(ErrInvalidSize, "size %d", size)
	}
	p, err := a.pages.AllocPages(int(n))
	if err != nil {
		return 0, err
	}
	return p.Address(), nil
}

// Release frees memory returned by Allocate.
func (a *Allocator) Release(addr uintptr) error {
	if a.pages.PageSize() == 0 {
		return ErrNotInitialized
	}
	if a.zones.Owns(addr) {
		return a.zones.Free(addr)
	}
	return a.pages.ReleaseAddr(addr)
}

// IsAllocated reports whether addr was returned by Allocate and not yet
// released.
func (a *Allocator) IsAllocated(addr uintptr) bool {
	if a.zones.Owns(addr) {
		return a.zones.IsValidChunk(addr)
	}
	if !a.pages.IsValidPage(addr) {
		return false
	}
	p, _ := a.pages.Page(addr)
	return p.IsHead()
}

// Stats combines both tiers.
type Stats struct {
	Page page.Stats
	Zone zone.Stats
}

// Stats returns the current figures of both tiers.
func (a *Allocator) Stats() Stats {
	return Stats{Page: a.pages.Stats(), Zone: a.zones.Stats()}
}

// String renders a short multi-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("memory: %s total, %s in pages, %s free\n%s\n%s",
		humanize.IBytes(s.Page.TotalMemory), humanize.IBytes(s.Page.EffectiveMemory),
		humanize.IBytes(s.Page.FreeMemory), s.Page, s.Zone)
}
