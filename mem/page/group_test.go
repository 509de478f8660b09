package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagezone/mem/list"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 0},
		{4, 1},
		{7, 1},
		{8, 2},
		{15, 2},
		{16, 3},
		{1 << 20, 19},
		{1<<24 - 1, 22},
		{1 << 24, 23},
		{1 << 30, 23},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bucketFor(tt.n), "n=%d", tt.n)
	}
}

func TestGroup_SplitKeepsBothEnds(t *testing.T) {
	a := newTestAllocator(t, 10)
	head := list.Index(0)
	a.removeGroup(head)

	first, rest := a.splitGroup(head, 3)
	require.Equal(t, head, first)
	require.Equal(t, list.Index(3), rest)

	assert.Equal(t, 3, a.pages[0].GroupSize())
	assert.Equal(t, 3, a.pages[2].GroupSize())
	assert.Zero(t, a.pages[1].GroupSize())
	assert.Equal(t, 7, a.pages[3].GroupSize())
	assert.Equal(t, 7, a.pages[9].GroupSize())
	assert.Zero(t, a.pages[5].GroupSize())
	assert.Equal(t, 1, a.stats.Splits)
}

func TestGroup_SplitWhole(t *testing.T) {
	a := newTestAllocator(t, 4)
	a.removeGroup(0)

	first, rest := a.splitGroup(0, 4)
	assert.Equal(t, list.Index(0), first)
	assert.Equal(t, list.Nil, rest)
	assert.Zero(t, a.stats.Splits)
}

func TestGroup_Join(t *testing.T) {
	a := newTestAllocator(t, 8)
	a.removeGroup(0)
	_, rest := a.splitGroup(0, 5)

	joined := a.joinGroup(0, rest)
	assert.Equal(t, list.Index(0), joined)
	assert.Equal(t, 8, a.pages[0].GroupSize())
	assert.Equal(t, 8, a.pages[7].GroupSize())
	assert.Zero(t, a.pages[4].GroupSize())
	assert.Zero(t, a.pages[5].GroupSize())
}

func TestGroup_SinglePage(t *testing.T) {
	a := newTestAllocator(t, 2)
	a.removeGroup(0)
	_, rest := a.splitGroup(0, 1)

	// A single page is both ends of its group.
	assert.Equal(t, 1, a.pages[0].GroupSize())
	assert.Equal(t, 1, a.pages[rest].GroupSize())

	a.clearGroup(rest)
	assert.Zero(t, a.pages[rest].GroupSize())
}

func TestGroup_AddRemoveTracksFreePages(t *testing.T) {
	a := newTestAllocator(t, 16)
	require.Equal(t, 16, a.freePages)
	require.Equal(t, 1, a.free[bucketFor(16)].Len())

	a.removeGroup(0)
	assert.Zero(t, a.freePages)
	assert.True(t, a.free[bucketFor(16)].Empty())

	_, rest := a.splitGroup(0, 4)
	a.addGroup(rest)
	a.addGroup(0)
	assert.Equal(t, 16, a.freePages)
	assert.Equal(t, 1, a.free[bucketFor(4)].Len())
	assert.Equal(t, 1, a.free[bucketFor(12)].Len())
}

func TestGroup_AdjacentStopsAtRegionEdge(t *testing.T) {
	a := New(nil)
	// Two regions that touch: pages are contiguous in memory but belong to
	// different regions.
	require.NoError(t, a.Init([]Region{
		{Address: 0x10000, Size: 2 * testPageSize, Usable: true},
		{Address: 0x12000, Size: 2 * testPageSize, Usable: true},
	}, testPageSize))

	assert.True(t, a.adjacent(0, 1))
	assert.False(t, a.adjacent(1, 2))
	assert.True(t, a.adjacent(2, 3))
}
