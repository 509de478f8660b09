package backing

import (
	"errors"
	"fmt"

	sigar "github.com/cloudfoundry/gosigar"
	"github.com/dustin/go-humanize"
)

// ErrInsufficientMemory indicates a mapping larger than the memory the host
// has available.
var ErrInsufficientMemory = errors.New("backing: not enough free host memory")

// HostMemory returns the host's total physical memory and the part of it
// still available to new mappings.
func HostMemory() (total, free uint64, err error) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		return 0, 0, fmt.Errorf("backing: host memory: %w", err)
	}
	return mem.Total, mem.ActualFree, nil
}

// CheckHostMemory fails when size bytes would not fit in the host's
// available memory.
func CheckHostMemory(size uint64) error {
	_, free, err := HostMemory()
	if err != nil {
		return err
	}
	if size > free {
		return fmt.Errorf("%w: need %s, %s available", ErrInsufficientMemory,
			humanize.IBytes(size), humanize.IBytes(free))
	}
	return nil
}
