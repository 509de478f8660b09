package page

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagezone/mem/list"
)

const testPageSize = 0x1000

// newTestAllocator returns an allocator over n pages starting at 0x100000.
func newTestAllocator(t testing.TB, n int) *Allocator {
	t.Helper()
	a := New(nil)
	require.NoError(t, a.InitRange(0x100000, 0x100000+uintptr(n)*testPageSize, testPageSize))
	return a
}

// requireInvariants verifies the bucket structure against the descriptors.
func requireInvariants(t testing.TB, a *Allocator) {
	t.Helper()

	inGroup := make([]bool, len(a.pages))
	total := 0
	for b := range a.free {
		heads := a.free[b].Slice(a.nodes)
		require.Len(t, heads, a.free[b].Len(), "bucket %d length", b)

		for _, head := range heads {
			p := &a.pages[head]
			n := int(p.group)
			require.Positive(t, n, "free group at %s has no length", p)
			require.Equal(t, b, bucketFor(n), "group %s in wrong bucket", p)
			require.Zero(t, p.flags&flagHead, "free group %s flagged as head", p)

			last := head + list.Index(n) - 1
			require.Less(t, int(last), len(a.pages), "group %s runs past the pool", p)
			require.Equal(t, p.group, a.pages[last].group, "group %s tail length", p)

			for i := head; i <= last; i++ {
				require.False(t, a.pages[i].IsUsed(), "page %s in free group", &a.pages[i])
				require.False(t, inGroup[i], "page %s in two free groups", &a.pages[i])
				inGroup[i] = true
				if i > head {
					require.True(t, a.adjacent(i-1, i), "group %s not contiguous at %d", p, i)
				}
			}

			// Maximal: no free physical neighbour on either side.
			if head > 0 && a.adjacent(head-1, head) {
				require.True(t, a.pages[head-1].IsUsed(), "group %s has free page below", p)
			}
			if int(last)+1 < len(a.pages) && a.adjacent(last, last+1) {
				require.True(t, a.pages[last+1].IsUsed(), "group %s has free page above", p)
			}
			total += n
		}
	}
	require.Equal(t, a.freePages, total, "freePages counter")

	for i := range a.pages {
		if !a.pages[i].IsUsed() {
			require.True(t, inGroup[i], "free page %s not linked", &a.pages[i])
		}
	}
}

// requireGroup checks that the pages from p on form an allocated run of n
// ascending, contiguous pages.
func requireGroup(t testing.TB, a *Allocator, p *Page, n int) {
	t.Helper()
	require.NotNil(t, p)
	require.Equal(t, n, p.GroupSize())
	require.NotZero(t, p.flags&flagHead)
	for i := 0; i < n; i++ {
		q := &a.pages[p.Index()+i]
		require.True(t, q.IsUsed())
		require.Equal(t, p.Address()+uintptr(i)*a.pageSize, q.Address())
		require.True(t, q.IsNaturallyAligned(a.pageSize))
	}
}
