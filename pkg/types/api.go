package types

import "fmt"

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
//
// ErrKind implements error itself so it can be used as an errors.Is target:
//
//	if errors.Is(err, types.ErrKindOutOfMemory) { ... }
type ErrKind int

const (
	ErrKindInit            ErrKind = iota // allocator could not be initialized from its input
	ErrKindOutOfMemory                    // no page, page run or chunk available
	ErrKindInvalidFree                    // release of an address this allocator did not hand out
	ErrKindInvalidArgument                // malformed request (zero size, bad chunk size, ...)
)

var kindNames = [...]string{
	ErrKindInit:            "init error",
	ErrKindOutOfMemory:     "out of memory",
	ErrKindInvalidFree:     "invalid free",
	ErrKindInvalidArgument: "invalid argument",
}

// String returns the category name.
func (k ErrKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrKind(%d)", int(k))
}

// Error implements the error interface.
func (k ErrKind) Error() string { return k.String() }

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind, so every *Error answers errors.Is for its
// ErrKind in addition to its own identity.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrKind)
	return ok && e.Kind == k
}

// Errorf builds an *Error of the given kind that wraps cause. Use it to attach
// call-site details (addresses, sizes) to a package sentinel:
//
//	return types.Errorf(ErrDoubleFree, "page 0x%x", addr)
func Errorf(cause *Error, format string, args ...any) *Error {
	return &Error{
		Kind: cause.Kind,
		Msg:  fmt.Sprintf(format, args...),
		Err:  cause,
	}
}

// New returns a sentinel *Error for the given kind.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}
