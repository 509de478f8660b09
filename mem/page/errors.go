package page

import "github.com/joshuapare/pagezone/pkg/types"

var (
	// ErrInvalidPageSize indicates a page size that is not a power of two in
	// [MinPageSize, MaxPageSize].
	ErrInvalidPageSize = types.New(types.ErrKindInit, "page: invalid page size")

	// ErrInvalidRange indicates a region whose end does not lie above its start
	// or whose end overflows the address space.
	ErrInvalidRange = types.New(types.ErrKindInit, "page: invalid address range")

	// ErrRegionsOverlap indicates two usable regions sharing at least one byte.
	ErrRegionsOverlap = types.New(types.ErrKindInit, "page: regions overlap")

	// ErrNoPages indicates that no usable region holds a whole aligned page.
	ErrNoPages = types.New(types.ErrKindInit, "page: regions hold no whole page")

	// ErrTooManyPages indicates more pages than a descriptor index can address.
	ErrTooManyPages = types.New(types.ErrKindInit, "page: too many pages")

	// ErrNoDescriptorRegion indicates that no region is large enough to hold
	// the page descriptors when descriptor reservation is enabled.
	ErrNoDescriptorRegion = types.New(types.ErrKindInit, "page: no region can hold the page descriptors")

	// ErrNotInitialized indicates an allocation before a successful Init.
	ErrNotInitialized = types.New(types.ErrKindInit, "page: allocator not initialized")

	// ErrInvalidCount indicates a page count below one.
	ErrInvalidCount = types.New(types.ErrKindInvalidArgument, "page: page count must be positive")

	// ErrNoFreePage indicates that every page is in use.
	ErrNoFreePage = types.New(types.ErrKindOutOfMemory, "page: no free page")

	// ErrNoFreeRun indicates that no run of contiguous free pages is long enough.
	ErrNoFreeRun = types.New(types.ErrKindOutOfMemory, "page: no free run of requested length")

	// ErrNotOwned indicates a page descriptor or address outside this allocator.
	ErrNotOwned = types.New(types.ErrKindInvalidFree, "page: not owned by this allocator")

	// ErrDoubleFree indicates a release of a page that is already free.
	ErrDoubleFree = types.New(types.ErrKindInvalidFree, "page: double free")

	// ErrNotGroupHead indicates a release that does not start at the first
	// page of an allocated group.
	ErrNotGroupHead = types.New(types.ErrKindInvalidFree, "page: not the head of an allocated group")

	// ErrGroupSizeMismatch indicates a release whose page count differs from
	// the allocated group length.
	ErrGroupSizeMismatch = types.New(types.ErrKindInvalidFree, "page: page count does not match allocated group")

	// ErrReservedPage indicates a release of a page reserved for descriptors.
	ErrReservedPage = types.New(types.ErrKindInvalidFree, "page: page is reserved")
)
