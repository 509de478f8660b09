package allocator

import (
	"sync"

	"github.com/Jille/easymutex"
)

// Synchronized serializes access to an Allocator so it can be shared by
// goroutines.
type Synchronized struct {
	mtx sync.Mutex
	a   *Allocator
}

// NewSynchronized wraps a. The caller must not use a directly afterwards.
func NewSynchronized(a *Allocator) *Synchronized {
	return &Synchronized{a: a}
}

// Allocate is Allocator.Allocate under the lock.
func (s *Synchronized) Allocate(size uintptr) (uintptr, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.a.Allocate(size)
}

// Release is Allocator.Release under the lock.
func (s *Synchronized) Release(addr uintptr) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.a.Release(addr)
}

// Stats is Allocator.Stats under the lock.
func (s *Synchronized) Stats() Stats {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.a.Stats()
}

// AllocateFunc allocates size bytes and hands the address to fn without
// holding the lock. If fn fails the memory is released again and fn's error
// is returned.
func (s *Synchronized) AllocateFunc(size uintptr, fn func(addr uintptr) error) (uintptr, error) {
	em := easymutex.LockMutex(&s.mtx)
	defer em.Unlock()
	addr, err := s.a.Allocate(size)
	if err != nil {
		return 0, err
	}
	em.Unlock()
	if err := fn(addr); err != nil {
		em.Lock()
		_ = s.a.Release(addr)
		return 0, err
	}
	return addr, nil
}

// Do runs fn with exclusive access to the wrapped allocator.
func (s *Synchronized) Do(fn func(a *Allocator) error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return fn(s.a)
}
