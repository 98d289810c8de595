package kernel

import (
	"sync/atomic"

	"github.com/freeman1216/badrtos/arch"
)

// atomicExclusive implements arch.Exclusive over sync/atomic's
// compare-and-swap, the reference backend used when no hardware-specific
// Exclusive is supplied. The real LDREX/STREX pair has this exact
// load-then-conditional-store contract, so a hardware port swaps this
// struct out without touching the retry loops built on it.
type atomicExclusive struct{}

func (atomicExclusive) LoadLinked(addr *uint32) (value, token uint32) {
	v := atomic.LoadUint32(addr)
	return v, v
}

func (atomicExclusive) StoreConditional(addr *uint32, token, newValue uint32) bool {
	return atomic.CompareAndSwapUint32(addr, token, newValue)
}

// NBSemaphore is the lock-free, never-blocking semaphore variant: Take and
// Give are load-linked/store-conditional retry loops over a permit counter,
// the exclusive-access sequences a single-core interrupt-driven kernel uses
// instead of disabling interrupts at all. Callable from any context.
type NBSemaphore struct {
	ex    arch.Exclusive
	count uint32 // current permits
	max   uint32 // configured count; 0 = deleted/uninitialised
}

// NewNBSemaphore creates a lock-free semaphore starting at initial permits,
// capped at max (which must be at least 1), backed by the sync/atomic
// reference Exclusive.
func NewNBSemaphore(initial, max int32) *NBSemaphore {
	return NewNBSemaphoreWithExclusive(initial, max, atomicExclusive{})
}

// NewNBSemaphoreWithExclusive is NewNBSemaphore for a caller supplying its
// own arch.Exclusive backend — the hook a real hardware port uses to swap
// in its LDREX/STREX wrappers instead of the sync/atomic reference one.
func NewNBSemaphoreWithExclusive(initial, max int32, ex arch.Exclusive) *NBSemaphore {
	if max < 1 || initial < 0 || initial > max {
		return &NBSemaphore{ex: ex}
	}
	return &NBSemaphore{ex: ex, count: uint32(initial), max: uint32(max)}
}

// Take attempts to claim one permit without ever blocking, returning
// WouldBlock if the count is already zero. The exclusive-access loop is
// bounded by bus arbitration on real hardware and by CAS contention here.
func (s *NBSemaphore) Take() Status {
	if atomic.LoadUint32(&s.max) == 0 {
		return NotInitialised
	}
	for {
		cur, token := s.ex.LoadLinked(&s.count)
		if cur == 0 {
			return WouldBlock
		}
		if s.ex.StoreConditional(&s.count, token, cur-1) {
			return OK
		}
	}
}

// Give returns one permit, returning RecursivePut if that would exceed the
// configured count.
func (s *NBSemaphore) Give() Status {
	max := atomic.LoadUint32(&s.max)
	if max == 0 {
		return NotInitialised
	}
	for {
		cur, token := s.ex.LoadLinked(&s.count)
		if cur >= max {
			return RecursivePut
		}
		if s.ex.StoreConditional(&s.count, token, cur+1) {
			return OK
		}
	}
}

// Delete resets the semaphore to the uninitialised state. It fails with
// CantDelete while permits are outstanding (count below the configured
// maximum). Concurrent Take/Give during Delete follow the same
// interrupt-priority-ordering contract as the message queue's producers.
func (s *NBSemaphore) Delete() Status {
	max := atomic.LoadUint32(&s.max)
	if max == 0 {
		return NotInitialised
	}
	for {
		cur, token := s.ex.LoadLinked(&s.count)
		if cur != max {
			return CantDelete
		}
		if s.ex.StoreConditional(&s.count, token, 0) {
			atomic.StoreUint32(&s.max, 0)
			return OK
		}
	}
}

// Count reads the current permit count.
func (s *NBSemaphore) Count() int32 {
	return int32(atomic.LoadUint32(&s.count))
}
