// Package page implements the lower tier of the allocator: it partitions
// caller supplied physical memory regions into fixed-size pages and hands
// them out singly or as groups of contiguous pages.
//
// # Overview
//
// Init takes any number of regions in any order. Each usable region is
// rounded inward to whole pages; every resulting page gets a descriptor in a
// single slice that is sized once and never grows. The allocator itself never
// reads or writes the memory it manages, so regions may describe addresses
// that are not mapped in the current process.
//
// # Groups
//
// Free pages are kept as maximal groups of contiguous pages. Both the first
// and the last page of a group record its length, so the group ending just
// below a page and the group starting just above it are found in O(1).
//
// Free groups are linked into 24 buckets by run length:
//
//	Bucket 0:  1 -  3 pages
//	Bucket 1:  4 -  7 pages
//	Bucket 2:  8 - 15 pages
//	...
//	Bucket 23: 2^24 pages and more
//
// AllocPages(n) scans from n's bucket upward and takes the first group with
// at least n pages. The pages handed out are split from the start of the
// group and the remainder is re-bucketed. Releasing a group merges it with
// its free physical neighbours before it is linked back. Each bucket is kept
// in address order, so the free lists depend only on which pages are free:
// an allocation followed by its release leaves no trace.
// Pages of two regions are never merged, even if the regions touch.
//
// # Usage Example
//
//	pa := page.New(nil)
//	if err := pa.InitRange(0x100000, 0x500000, 4096); err != nil {
//	    return err
//	}
//
//	p, err := pa.AllocPages(4)
//	if err != nil {
//	    return err
//	}
//	use(p.Address())
//
//	err = pa.Release(p)
//
// # Errors
//
// Every error is a *types.Error. Match categories with errors.Is against a
// types.ErrKind, or specific conditions against the sentinels in this
// package. A call that returns an error leaves the allocator unchanged.
package page
