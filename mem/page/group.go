package page

import (
	"math/bits"

	"github.com/joshuapare/pagezone/mem/list"
)

// groupBuckets is the number of free-group buckets. Bucket b holds groups of
// [2^(b+1), 2^(b+2)) pages, except bucket 0 which also takes single pages and
// the last bucket which takes everything larger.
const groupBuckets = 24

// bucketFor returns the free-group bucket for a run of n pages.
//
//	n = 1..3   -> 0
//	n = 4..7   -> 1
//	n = 8..15  -> 2
func bucketFor(n int) int {
	if n < 2 {
		return 0
	}
	b := bits.Len(uint(n)) - 2
	return min(b, groupBuckets-1)
}

// setGroup records n as the length of the group starting at head.
func (a *Allocator) setGroup(head list.Index, n int) {
	a.pages[head].group = uint32(n)
	a.pages[head+list.Index(n)-1].group = uint32(n)
}

// clearGroup erases the length stored at both ends of the group at head.
func (a *Allocator) clearGroup(head list.Index) {
	n := a.pages[head].group
	a.pages[head].group = 0
	a.pages[head+list.Index(n)-1].group = 0
}

// splitGroup cuts the group at head into a group of n pages and a group with
// the remaining pages. rest is list.Nil when nothing remains.
func (a *Allocator) splitGroup(head list.Index, n int) (first, rest list.Index) {
	size := int(a.pages[head].group)
	if n == size {
		return head, list.Nil
	}

	a.clearGroup(head)
	rest = head + list.Index(n)
	a.setGroup(head, n)
	a.setGroup(rest, size-n)
	a.stats.Splits++
	return head, rest
}

// joinGroup merges two adjacent groups, first directly followed by second.
func (a *Allocator) joinGroup(first, second list.Index) list.Index {
	n := int(a.pages[first].group) + int(a.pages[second].group)
	a.clearGroup(first)
	a.clearGroup(second)
	a.setGroup(first, n)
	return first
}

// addGroup links a free group into its bucket. Buckets are kept in address
// order, so the free lists depend only on which pages are free.
func (a *Allocator) addGroup(head list.Index) {
	n := int(a.pages[head].group)
	bucket := &a.free[bucketFor(n)]

	at := list.Nil
	bucket.Do(a.nodes, func(i list.Index) bool {
		if i > head {
			at = i
			return false
		}
		return true
	})
	if at == list.Nil {
		bucket.PushBack(a.nodes, head)
	} else {
		bucket.InsertBefore(a.nodes, head, at)
	}
	a.freePages += n
}

// removeGroup unlinks a free group from its bucket.
func (a *Allocator) removeGroup(head list.Index) {
	n := int(a.pages[head].group)
	a.free[bucketFor(n)].Remove(a.nodes, head)
	a.freePages -= n
}

// adjacent reports whether page j starts where page i ends, within one
// region.
func (a *Allocator) adjacent(i, j list.Index) bool {
	return a.pages[j].flags&flagFirst == 0 && a.pages[i].addr+a.pageSize == a.pages[j].addr
}

// markUsed sets or clears the used bit on n pages starting at head.
func (a *Allocator) markUsed(head list.Index, n int, used bool) {
	for i := head; i < head+list.Index(n); i++ {
		if used {
			a.pages[i].flags |= flagUsed
		} else {
			a.pages[i].flags &^= flagUsed
		}
	}
}
