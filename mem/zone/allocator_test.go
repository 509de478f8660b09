package zone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagezone/mem/page"
	"github.com/joshuapare/pagezone/pkg/types"
)

const (
	testPageSize = 4096
	testBase     = 0x100000
)

// newTestAllocators returns a zone allocator over n pages at testBase.
func newTestAllocators(t testing.TB, n int, opts *Options) (*page.Allocator, *Allocator) {
	t.Helper()
	pa := page.New(nil)
	require.NoError(t, pa.InitRange(testBase, testBase+uintptr(n)*testPageSize, testPageSize))
	return pa, New(pa, opts)
}

// Test_ZoneAllocator_OnePage64 fills a single 64 byte zone over the only page.
func Test_ZoneAllocator_OnePage64(t *testing.T) {
	_, za := newTestAllocators(t, 1, nil)

	z, err := za.InitZone(64)
	require.NoError(t, err)
	require.Equal(t, 64, z.ChunkCount())

	for i := 0; i < 64; i++ {
		addr, err := za.Alloc(64)
		require.NoError(t, err)
		require.Equal(t, uintptr(0), addr%64)
		require.True(t, z.IsValidChunk(addr))
	}

	_, err = za.Alloc(64)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrKindOutOfMemory))
	assert.ErrorIs(t, err, ErrNoBackingPages)
	assert.ErrorIs(t, err, page.ErrNoFreePage)

	err = za.Free(z.Base() + 32)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrKindInvalidFree))
	assert.ErrorIs(t, err, ErrMisalignedChunk)
}

func Test_ZoneAllocator_SizeRounding(t *testing.T) {
	_, za := newTestAllocators(t, 16, nil)

	tests := []struct {
		size  uintptr
		chunk uintptr
	}{
		{1, 16},
		{16, 16},
		{17, 32},
		{100, 128},
		{1024, 1024},
		{1025, 2048},
		{2048, 2048},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.chunk, ChunkSizeFor(tt.size), "size %d", tt.size)

		addr, err := za.Alloc(tt.size)
		require.NoError(t, err, "size %d", tt.size)
		z, ok := za.Zone(addr)
		require.True(t, ok)
		assert.Equal(t, tt.chunk, z.ChunkSize(), "size %d", tt.size)
		assert.Zero(t, addr%tt.chunk, "size %d", tt.size)
	}
}

func Test_ZoneAllocator_InvalidSizes(t *testing.T) {
	_, za := newTestAllocators(t, 4, nil)

	for _, size := range []uintptr{0, 2049, 4096, 1 << 20} {
		_, err := za.Alloc(size)
		require.ErrorIs(t, err, ErrInvalidSize, "size %d", size)
		assert.True(t, errors.Is(err, types.ErrKindInvalidArgument))
	}

	for _, cs := range []uintptr{0, 8, 48, 3000, 8192} {
		_, err := za.InitZone(cs)
		require.ErrorIs(t, err, ErrInvalidChunkSize, "chunk %d", cs)
	}
	assert.Zero(t, za.Stats().Zones)
	assert.Equal(t, 4, za.Stats().FailedAllocs)
}

func Test_ZoneAllocator_PageSizedChunks(t *testing.T) {
	pa, za := newTestAllocators(t, 2, nil)

	z, err := za.InitZone(testPageSize)
	require.NoError(t, err)
	assert.Equal(t, 1, z.ChunkCount())
	assert.Equal(t, uintptr(testPageSize), z.ChunkSize())
	assert.True(t, z.IsNaturallyAligned())
	assert.True(t, pa.IsValidPage(z.Base()))
	assert.True(t, za.Owns(z.Base()))
	assert.Equal(t, []*Zone{z}, za.Zones(testPageSize))

	s := za.Stats()
	require.Len(t, s.Classes, 1)
	assert.Equal(t, uintptr(testPageSize), s.Classes[0].ChunkSize)
	assert.Equal(t, 1, s.Classes[0].FreeChunks)
	assert.Equal(t, uint64(testPageSize), s.FreeMemory)

	// Alloc still routes only sub-page requests to zones.
	_, err = za.Alloc(testPageSize)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func Test_ZoneAllocator_MultiPageChunks(t *testing.T) {
	tests := []struct {
		name      string
		pages     int
		chunkSize uintptr
		chunks    int
		err       error
	}{
		{"span sized", 4, 4 * testPageSize, 1, nil},
		{"half span", 4, 2 * testPageSize, 2, nil},
		{"larger than span", 4, 8 * testPageSize, 0, ErrInvalidChunkSize},
		{"does not tile span", 3, 2 * testPageSize, 0, ErrInvalidChunkSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa, za := newTestAllocators(t, 16, &Options{PagesPerZone: tt.pages})
			z, err := za.InitZone(tt.chunkSize)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Equal(t, 16, pa.FreeCount())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.chunks, z.ChunkCount())
			assert.Zero(t, z.Base()%tt.chunkSize)
		})
	}
}

func Test_ZoneAllocator_Uninitialized(t *testing.T) {
	za := New(page.New(nil), nil)

	_, err := za.Alloc(16)
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.True(t, errors.Is(err, types.ErrKindInit))

	_, err = za.InitZone(16)
	require.ErrorIs(t, err, ErrNotInitialized)

	require.ErrorIs(t, za.Free(0x1000), ErrNotOwned)
	assert.False(t, za.IsValidChunk(0x1000))
}

func Test_ZoneAllocator_NewZoneWhenFull(t *testing.T) {
	pa, za := newTestAllocators(t, 4, nil)

	var addrs []uintptr
	for i := 0; i < 5; i++ {
		addr, err := za.Alloc(1024)
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}
	zones := za.Zones(1024)
	require.Len(t, zones, 2)
	assert.Equal(t, 2, pa.Stats().UsedPages)

	// The two zones sit in different pages.
	z0, _ := za.Zone(addrs[0])
	z4, _ := za.Zone(addrs[4])
	assert.NotSame(t, z0, z4)
	assert.Equal(t, 3, za.Stats().Classes[0].FreeChunks)
}

func Test_ZoneAllocator_ReleasesEmptyZone(t *testing.T) {
	pa, za := newTestAllocators(t, 4, nil)

	var first []uintptr
	for i := 0; i < 4; i++ {
		addr, err := za.Alloc(1024)
		require.NoError(t, err)
		first = append(first, addr)
	}
	last, err := za.Alloc(1024)
	require.NoError(t, err)
	require.Equal(t, 2, za.Stats().Zones)

	for _, addr := range first {
		require.NoError(t, za.Free(addr))
	}

	// The emptied zone went back because the other zone still has room.
	s := za.Stats()
	assert.Equal(t, 1, s.Zones)
	assert.Equal(t, 1, s.ZonesReleased)
	assert.Equal(t, 1, pa.Stats().UsedPages)
	assert.False(t, za.Owns(first[0]))
	assert.ErrorIs(t, za.Free(first[0]), ErrNotOwned)

	// The last zone of a class stays even when empty.
	require.NoError(t, za.Free(last))
	s = za.Stats()
	assert.Equal(t, 1, s.Zones)
	assert.Equal(t, 1, s.ZonesReleased)
	assert.Zero(t, s.AllocatedMemory)
	assert.True(t, za.Owns(last))
}

func Test_ZoneAllocator_FreeErrorsLeaveState(t *testing.T) {
	_, za := newTestAllocators(t, 4, nil)

	addr, err := za.Alloc(32)
	require.NoError(t, err)
	other, err := za.Alloc(32)
	require.NoError(t, err)
	require.NoError(t, za.Free(other))

	tests := []struct {
		name string
		addr uintptr
		want error
	}{
		{"outside every zone", testBase + 3*testPageSize, ErrNotOwned},
		{"outside the pool", 0x10, ErrNotOwned},
		{"misaligned", addr + 8, ErrMisalignedChunk},
		{"double free", other, ErrDoubleFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := za.Stats()
			z, _ := za.Zone(addr)
			chunks := z.FreeChunks()

			err := za.Free(tt.addr)
			require.ErrorIs(t, err, tt.want)
			assert.True(t, errors.Is(err, types.ErrKindInvalidFree))

			after := za.Stats()
			assert.Equal(t, before.Classes, after.Classes)
			assert.Equal(t, before.Zones, after.Zones)
			assert.Equal(t, chunks, z.FreeChunks())
		})
	}
}

func Test_ZoneAllocator_Validity(t *testing.T) {
	pa, za := newTestAllocators(t, 4, nil)

	addr, err := za.Alloc(256)
	require.NoError(t, err)

	assert.True(t, za.IsValidChunk(addr))
	assert.False(t, za.IsValidChunk(addr+256)) // free chunk
	assert.False(t, za.IsValidChunk(addr+16))  // not a chunk boundary
	assert.False(t, za.IsValidChunk(testBase+2*testPageSize))

	// The zone's page is in use as far as the page allocator is concerned.
	z, _ := za.Zone(addr)
	assert.True(t, za.IsValidPage(z.Base()))
	assert.True(t, pa.IsValidPage(z.Base()))
	assert.False(t, za.IsValidPage(testBase+3*testPageSize))

	assert.True(t, za.IsValidPageSize(4096))
	assert.False(t, za.IsValidPageSize(4095))

	require.NoError(t, za.Free(addr))
	assert.False(t, za.IsValidChunk(addr))
}

func Test_ZoneAllocator_RoundTrip(t *testing.T) {
	_, za := newTestAllocators(t, 4, nil)

	var live []uintptr
	for i := 0; i < 10; i++ {
		addr, err := za.Alloc(128)
		require.NoError(t, err)
		live = append(live, addr)
	}
	require.NoError(t, za.Free(live[3]))
	require.NoError(t, za.Free(live[7]))

	addr, err := za.Alloc(128)
	require.NoError(t, err)
	require.NoError(t, za.Free(addr))

	again, err := za.Alloc(128)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func Test_ZoneAllocator_PagesPerZone(t *testing.T) {
	pa, za := newTestAllocators(t, 8, &Options{PagesPerZone: 2})

	z, err := za.InitZone(1024)
	require.NoError(t, err)
	assert.Equal(t, 2, z.PageCount())
	assert.Equal(t, 8, z.ChunkCount())
	assert.Equal(t, 2, pa.Stats().UsedPages)

	// Both pages resolve to the zone.
	got, ok := za.Zone(z.Base() + testPageSize + 100)
	require.True(t, ok)
	assert.Same(t, z, got)
}

func Test_ZoneAllocator_DefaultPagesPerZone(t *testing.T) {
	_, za := newTestAllocators(t, 2, &Options{})
	z, err := za.InitZone(16)
	require.NoError(t, err)
	assert.Equal(t, 1, z.PageCount())
	assert.Equal(t, 256, z.ChunkCount())
}

func Test_ZoneAllocator_Stats(t *testing.T) {
	_, za := newTestAllocators(t, 8, nil)

	for i := 0; i < 3; i++ {
		_, err := za.Alloc(16)
		require.NoError(t, err)
	}
	_, err := za.Alloc(2000)
	require.NoError(t, err)

	s := za.Stats()
	assert.Equal(t, 2, s.Zones)
	assert.Equal(t, 2, s.ZonesCreated)
	assert.Equal(t, 4, s.AllocCalls)
	assert.Equal(t, uint64(2*testPageSize), s.UsedMemory)
	assert.Equal(t, uint64(3*16+2048), s.AllocatedMemory)
	assert.Equal(t, s.UsedMemory-s.AllocatedMemory, s.FreeMemory)

	require.Len(t, s.Classes, 2)
	assert.Equal(t, ClassStats{ChunkSize: 16, Zones: 1, Chunks: 256, FreeChunks: 253}, s.Classes[0])
	assert.Equal(t, ClassStats{ChunkSize: 2048, Zones: 1, Chunks: 2, FreeChunks: 1}, s.Classes[1])

	assert.Equal(t, "2 zones, 2.0 KiB allocated, 6.0 KiB free in 8.0 KiB of pages", s.String())
}

func Test_ZoneAllocator_Clear(t *testing.T) {
	pa, za := newTestAllocators(t, 4, nil)
	_, err := za.Alloc(64)
	require.NoError(t, err)

	za.Clear()
	pa.Clear()
	assert.Zero(t, za.Stats().Zones)

	require.NoError(t, pa.InitRange(testBase, testBase+4*testPageSize, testPageSize))
	addr, err := za.Alloc(64)
	require.NoError(t, err)
	assert.Equal(t, uintptr(testBase), addr)
}

func BenchmarkZoneAllocator_AllocFree(b *testing.B) {
	_, za := newTestAllocators(b, 64, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr, err := za.Alloc(64)
		if err != nil {
			b.Fatal(err)
		}
		if err := za.Free(addr); err != nil {
			b.Fatal(err)
		}
	}
}
