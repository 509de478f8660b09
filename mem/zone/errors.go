package zone

import "github.com/joshuapare/pagezone/pkg/types"

var (
	// ErrInvalidChunkSize indicates a chunk size that is not a power of two,
	// is below MinChunkSize, or does not fit the zone span.
	ErrInvalidChunkSize = types.New(types.ErrKindInvalidArgument, "zone: invalid chunk size")

	// ErrInvalidSize indicates an allocation request of zero bytes or above the
	// largest chunk size.
	ErrInvalidSize = types.New(types.ErrKindInvalidArgument, "zone: invalid allocation size")

	// ErrInvalidSpan indicates a zone span with no pages, an invalid page size,
	// or an end past the address space.
	ErrInvalidSpan = types.New(types.ErrKindInit, "zone: invalid span")

	// ErrMisalignedBase indicates a zone base that is not aligned to its chunk
	// size.
	ErrMisalignedBase = types.New(types.ErrKindInit, "zone: base not aligned to chunk size")

	// ErrNotInitialized indicates a zone allocator whose page source has no
	// pages yet.
	ErrNotInitialized = types.New(types.ErrKindInit, "zone: page allocator not initialized")

	// ErrZoneFull indicates a zone with no free chunk.
	ErrZoneFull = types.New(types.ErrKindOutOfMemory, "zone: no free chunk")

	// ErrNoBackingPages indicates that the page allocator could not supply the
	// pages for a new zone.
	ErrNoBackingPages = types.New(types.ErrKindOutOfMemory, "zone: no pages for a new zone")

	// ErrNotOwned indicates an address outside every zone.
	ErrNotOwned = types.New(types.ErrKindInvalidFree, "zone: address not in any zone")

	// ErrMisalignedChunk indicates an address inside a zone that does not start
	// a chunk.
	ErrMisalignedChunk = types.New(types.ErrKindInvalidFree, "zone: address is not a chunk boundary")

	// ErrDoubleFree indicates a release of a chunk that is already free.
	ErrDoubleFree = types.New(types.ErrKindInvalidFree, "zone: double free")
)
