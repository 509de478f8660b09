package allocator

import "github.com/joshuapare/pagezone/pkg/types"

var (
	// ErrNotInitialized indicates a call before Init or after Clear.
	ErrNotInitialized = types.New(types.ErrKindInit, "allocator: not initialized")

	// ErrInvalidSize indicates a zero-byte request or one no page run can
	// describe.
	ErrInvalidSize = types.New(types.ErrKindInvalidArgument, "allocator: invalid allocation size")
)
