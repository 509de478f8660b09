// Package align provides the power-of-two and alignment arithmetic shared by
// the page and zone allocators.
//
// Every size passed to the alignment helpers must be a power of two. The
// helpers do not validate that themselves, callers check with IsPowerOf2 first.
package align

import "math/bits"

// IsPowerOf2 reports whether n is a power of two. Zero is not.
func IsPowerOf2(n uintptr) bool {
	return n > 0 && n&(n-1) == 0
}

// IsNaturallyAligned reports whether addr is a multiple of size, where size is
// a power of two. It returns false for any size that is not a power of two.
//
// Example:
//
//	IsNaturallyAligned(0x1000, 0x1000) = true
//	IsNaturallyAligned(0x1040, 64)     = true
//	IsNaturallyAligned(0x1020, 64)     = false
//	IsNaturallyAligned(0x1000, 48)     = false
func IsNaturallyAligned(addr, size uintptr) bool {
	if !IsPowerOf2(size) {
		return false
	}
	return addr&(size-1) == 0
}

// RoundPowerOf2 returns the smallest power of two that is >= n.
// RoundPowerOf2(0) is 1. Values above the largest representable power of two
// wrap to 0.
func RoundPowerOf2(n uintptr) uintptr {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// AlignDown rounds addr down to a multiple of size.
//
// Example:
//
//	AlignDown(0x1fff, 0x1000) = 0x1000
//	AlignDown(0x2000, 0x1000) = 0x2000
func AlignDown(addr, size uintptr) uintptr {
	return addr &^ (size - 1)
}

// AlignUp rounds addr up to a multiple of size. The second return value is
// false when rounding would overflow the address space.
//
// Example:
//
//	AlignUp(0x1001, 0x1000) = 0x2000, true
//	AlignUp(0x1000, 0x1000) = 0x1000, true
func AlignUp(addr, size uintptr) (uintptr, bool) {
	mask := size - 1
	if addr > ^uintptr(0)-mask {
		return 0, false
	}
	return (addr + mask) &^ mask, true
}

// Log2 returns floor(log2(n)). Log2(0) is 0.
func Log2(n uintptr) int {
	if n == 0 {
		return 0
	}
	return bits.Len(uint(n)) - 1
}
