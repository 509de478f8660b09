//go:build linux

package backing

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Map maps size bytes of anonymous, zeroed memory.
func Map(size int) (*Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("backing: invalid size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("backing: mmap %d bytes: %w", size, err)
	}
	return &Memory{data: data, release: unix.Munmap}, nil
}
