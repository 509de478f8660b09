//go:build !linux

package backing

import "fmt"

// Map allocates size bytes on the Go heap when anonymous mappings are not
// available.
func Map(size int) (*Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("backing: invalid size %d", size)
	}
	return &Memory{
		data:    make([]byte, size),
		release: func([]byte) error { return nil },
	}, nil
}
