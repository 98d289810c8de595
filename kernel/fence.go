package kernel

import "sync"

// schedFence and critSection are the two critical-section flavors: a
// scheduler fence brackets code that only touches ready/current
// bookkeeping (on hardware, masking just the deferred context-switch
// trap), while a full critical section brackets code that touches shared
// queues/allocators and must exclude ticks too. The distinction is
// design-level, not syntactic — both map onto the same single mutex here,
// since there is exactly one interrupt source (the tick clock) and exactly
// one mutex protecting all kernel state; keeping the two names makes call
// sites document *why* they are locking.
type kernelLock struct {
	mu sync.Mutex
}

// schedFence excludes the scheduler (and the tick ISR's wake/rotate
// decisions) without implying anything stronger.
func (k *kernelLock) schedFence() func() {
	k.mu.Lock()
	return k.mu.Unlock
}

// critSection excludes everything: scheduler, tick ISR, and any other
// syscall in flight. Named distinctly from schedFence purely for
// call-site clarity.
func (k *kernelLock) critSection() func() {
	k.mu.Lock()
	return k.mu.Unlock
}
