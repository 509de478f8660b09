// Package types holds the error taxonomy shared by every allocator layer.
//
// Errors carry a stable ErrKind so callers can branch on intent:
//   - ErrKindInit: the allocator could not be built from its regions.
//   - ErrKindOutOfMemory: no page, page run or chunk is available.
//   - ErrKindInvalidFree: an address was released that this allocator does
//     not currently own (misaligned, out of range, double free).
//   - ErrKindInvalidArgument: a request was malformed.
//
// Packages define their own *Error sentinels with New and decorate them with
// call-site detail through Errorf. Both keep matching their kind under
// errors.Is.
//
// This package has no dependencies beyond the standard library.
package types
