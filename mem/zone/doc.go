// Package zone implements the upper tier of the allocator: zones of
// naturally aligned, power-of-two chunks carved out of pages obtained from
// the page allocator.
//
// # Size Classes
//
// Requests are rounded up to a power of two no smaller than MinChunkSize.
// Each chunk size is its own class:
//
//	Class 0:   16 bytes
//	Class 1:   32 bytes
//	Class 2:   64 bytes
//	...
//	Class n:   page size / 2
//
// Requests above half a page are not served here; callers take whole
// pages from the page allocator instead.
//
// # Zones
//
// A zone covers PagesPerZone contiguous pages. Its base is page aligned, so
// every chunk is aligned to the chunk size. Chunk bookkeeping lives in a
// per-zone table of list nodes; the chunk memory itself is never touched.
//
// The allocator maps every backing page to its zone, so Free resolves the
// owner of an address with one lookup and then validates it against the
// zone: the address must start a chunk and the chunk must be in use.
//
// # Usage Example
//
//	pa := page.New(nil)
//	if err := pa.InitRange(0x100000, 0x200000, 4096); err != nil {
//	    return err
//	}
//	za := zone.New(pa, nil)
//
//	addr, err := za.Alloc(48) // served from the 64 byte class
//	if err != nil {
//	    return err
//	}
//	err = za.Free(addr)
package zone
