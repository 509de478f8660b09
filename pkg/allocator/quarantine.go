package allocator

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/joshuapare/pagezone/pkg/types"
)

// ErrQuarantined indicates a release of an address that is already waiting
// in quarantine.
var ErrQuarantined = types.New(types.ErrKindInvalidFree, "allocator: address already released")

// Quarantine delays the reuse of released memory. Released addresses are
// parked in a fixed size LRU and handed back to the allocator only when
// they are evicted, which widens the window in which a stale pointer still
// points at untouched memory.
//
// A Quarantine is not safe for concurrent use.
type Quarantine struct {
	a       *Allocator
	pending *lru.Cache[uintptr, struct{}]
	errs    []error
}

// NewQuarantine parks up to size released addresses before they go back to
// a.
func NewQuarantine(a *Allocator, size int) (*Quarantine, error) {
	q := &Quarantine{a: a}
	c, err := lru.NewWithEvict[uintptr, struct{}](size, q.evicted)
	if err != nil {
		return nil, err
	}
	q.pending = c
	return q, nil
}

func (q *Quarantine) evicted(addr uintptr, _ struct{}) {
	if err := q.a.Release(addr); err != nil {
		q.errs = append(q.errs, err)
	}
}

// Allocate is Allocator.Allocate.
func (q *Quarantine) Allocate(size uintptr) (uintptr, error) {
	return q.a.Allocate(size)
}

// Release parks addr. The address must currently be allocated. Errors from
// the allocator for evicted addresses are returned here.
func (q *Quarantine) Release(addr uintptr) error {
	if q.pending.Contains(addr) {
		return types.Errorf(ErrQuarantined, "address 0x%x", addr)
	}
	if !q.a.IsAllocated(addr) {
		return q.a.Release(addr)
	}
	q.pending.Add(addr, struct{}{})
	return q.takeErrs()
}

// Len returns the number of parked addresses.
func (q *Quarantine) Len() int { return q.pending.Len() }

// Flush returns every parked address to the allocator.
func (q *Quarantine) Flush() error {
	q.pending.Purge()
	return q.takeErrs()
}

func (q *Quarantine) takeErrs() error {
	err := errors.Join(q.errs...)
	q.errs = nil
	return err
}
