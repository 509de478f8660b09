// Package backing provides blocks of process memory that stand in for
// physical regions, so allocations can be written to and checked.
package backing

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/joshuapare/pagezone/mem/page"
)

// ErrOutOfRange indicates an access outside the mapped block.
var ErrOutOfRange = errors.New("backing: access outside mapped memory")

// Memory is one block of mapped memory.
type Memory struct {
	data    []byte
	release func([]byte) error
}

// Base returns the address of the first byte.
func (m *Memory) Base() uintptr {
	if len(m.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(m.data)))
}

// Size returns the length of the block in bytes.
func (m *Memory) Size() uintptr { return uintptr(len(m.data)) }

// Region describes the block as a usable region.
func (m *Memory) Region() page.Region {
	return page.Region{Address: m.Base(), Size: m.Size(), Usable: true}
}

// Bytes returns the n bytes starting at addr.
func (m *Memory) Bytes(addr uintptr, n int) ([]byte, error) {
	base := m.Base()
	if n < 0 || addr < base || addr-base > m.Size() || uintptr(n) > m.Size()-(addr-base) {
		return nil, fmt.Errorf("%w: [0x%x, +%d)", ErrOutOfRange, addr, n)
	}
	off := addr - base
	return m.data[off : off+uintptr(n)], nil
}

// Fill sets n bytes starting at addr to b.
func (m *Memory) Fill(addr uintptr, n int, b byte) error {
	buf, err := m.Bytes(addr, n)
	if err != nil {
		return err
	}
	for i := range buf {
		buf[i] = b
	}
	return nil
}

// Verify reports whether all n bytes starting at addr equal b.
func (m *Memory) Verify(addr uintptr, n int, b byte) (bool, error) {
	buf, err := m.Bytes(addr, n)
	if err != nil {
		return false, err
	}
	for _, got := range buf {
		if got != b {
			return false, nil
		}
	}
	return true, nil
}

// Close unmaps the block. Closing twice is a no-op.
func (m *Memory) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return m.release(data)
}
