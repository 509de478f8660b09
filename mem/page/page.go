package page

import (
	"fmt"

	"github.com/joshuapare/pagezone/mem/align"
	"github.com/joshuapare/pagezone/mem/list"
)

// pageFlags packs the per-page state bits.
type pageFlags uint8

const (
	flagUsed     pageFlags = 1 << iota // handed out, or reserved
	flagHead                           // first page of an allocated group
	flagReserved                       // holds allocator metadata, never handed out
	flagFirst                          // first page of its region
)

// Page describes one page of physical memory. Pages are passive records:
// the Allocator owns and mutates them, callers only read them.
//
// The first and the last page of a group both record the group length. A
// free group is linked into a bucket through the head page's node.
type Page struct {
	node  list.Node
	addr  uintptr
	idx   list.Index
	group uint32
	flags pageFlags
}

// init resets the page to a free, unlinked page at addr.
func (p *Page) init(addr uintptr, idx list.Index) {
	p.node.Init(idx)
	p.addr = addr
	p.idx = idx
	p.group = 0
	p.flags = 0
}

// Address returns the physical address of the page.
func (p *Page) Address() uintptr { return p.addr }

// Index returns the position of the page in the allocator's descriptor pool.
func (p *Page) Index() int { return int(p.idx) }

// IsUsed reports whether the page is allocated or reserved.
func (p *Page) IsUsed() bool { return p.flags&flagUsed != 0 }

// IsReserved reports whether the page holds allocator metadata.
func (p *Page) IsReserved() bool { return p.flags&flagReserved != 0 }

// IsHead reports whether the page starts a group handed out by the
// allocator. Release accepts only head pages.
func (p *Page) IsHead() bool { return p.flags&flagHead != 0 }

// GroupSize returns the number of pages in the group this page starts or
// ends. It is 0 for pages in the middle of a group.
func (p *Page) GroupSize() int { return int(p.group) }

// IsNaturallyAligned reports whether the page address is a multiple of
// pageSize.
func (p *Page) IsNaturallyAligned(pageSize uintptr) bool {
	return align.IsNaturallyAligned(p.addr, pageSize)
}

func (p *Page) String() string {
	state := "free"
	switch {
	case p.IsReserved():
		state = "reserved"
	case p.IsUsed():
		state = "used"
	}
	return fmt.Sprintf("page{addr: 0x%x, idx: %d, group: %d, %s}", p.addr, p.idx, p.group, state)
}
