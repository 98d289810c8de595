// Package kernel implements a minimal preemptive RTOS kernel's scheduling,
// synchronization, and allocation semantics over goroutines: tasks are real
// goroutines parked on a per-task gate channel, and the kernel's own mutex
// plays the part of the disabled-interrupts critical section a real
// microcontroller port would use. See fence.go for the schedFence/
// critSection distinction and sched.go for the checkpoint/resume protocol
// that stands in for hardware preemption.
package kernel

import "github.com/freeman1216/badrtos/arch"

// Config is compile-time kernel configuration: task slots, heap orders, and
// feature flags. It is a plain struct, not parsed from a file or flags — an
// RTOS kernel's configuration is a build-time decision baked in by whoever
// links it, not a runtime input, so there is no parsing concern here at
// all.
type Config struct {
	MaxTasks int // number of TCB slab slots, 2..32

	KHeapMin, KHeapMax int // kernel heap buddy orders
	UHeapMin, UHeapMax int // user heap buddy orders

	UseKHeap     bool
	UseUHeap     bool
	UseMutex     bool
	UseSemaphore bool
	UseMsgQueue  bool // not read by the kernel; MsgQueue works regardless
	UseMPU       bool // not read by the kernel; isolation follows Installer

	TickQuantum uint32 // default round-robin quantum, in ticks

	Installer     arch.RegionInstaller // nil disables isolation entirely
	StaticRegions []arch.Region        // kernel-wide regions installed once at Boot
	Clock         arch.Clock           // nil: caller drives Tick() manually
}

// DefaultConfig returns a Config sized for the demo and tests: 16 tasks,
// 4KiB kernel heap (orders 5..12), no user heap, every optional feature flag
// set except UseMPU, quantum of 4 ticks.
func DefaultConfig() Config {
	return Config{
		MaxTasks:     16,
		KHeapMin:     5,
		KHeapMax:     12,
		UseKHeap:     true,
		UseMutex:     true,
		UseSemaphore: true,
		UseMsgQueue:  true,
		UseMPU:       false,
		TickQuantum:  4,
	}
}

// KernelAlloc services an in-kernel allocation request against the kernel
// heap buddy allocator. Returns (nil, AllocFail) if UseKHeap is false or the
// heap has no block large enough.
func (k *Kernel) KernelAlloc(size int) ([]byte, Status) {
	unlock := k.lock.critSection()
	defer unlock()
	if !k.cfg.UseKHeap || k.kheap == nil {
		return nil, AllocFail
	}
	block, offset, order, ok := k.kheap.allocSize(size)
	if !ok {
		return nil, AllocFail
	}
	k.kallocTrack[&block[0]] = allocRecord{offset: offset, order: order}
	return block, OK
}

// KernelFree returns a block obtained from KernelAlloc to the kernel heap.
func (k *Kernel) KernelFree(block []byte) Status {
	unlock := k.lock.critSection()
	defer unlock()
	if !k.cfg.UseKHeap || k.kheap == nil || len(block) == 0 {
		return BadParameters
	}
	rec, ok := k.kallocTrack[&block[0]]
	if !ok {
		return BadParameters
	}
	delete(k.kallocTrack, &block[0])
	k.kheap.freeBlock(rec.offset, rec.order)
	return OK
}

// UserAlloc services an allocation request against the user heap, the
// second buddy heap, sized and enabled independently via UHeapMin/UHeapMax/
// UseUHeap. Unlike KernelAlloc it is a plain thread-context call, not a
// trap entry; the two heaps are kept separate so a leak or fragmentation
// problem in user-requested memory can never starve the kernel's own
// bookkeeping allocations. Returns (nil, AllocFail) if UseUHeap is false
// or no block is large enough.
func (k *Kernel) UserAlloc(size int) ([]byte, Status) {
	unlock := k.lock.critSection()
	defer unlock()
	if !k.cfg.UseUHeap || k.uheap == nil {
		return nil, AllocFail
	}
	block, offset, order, ok := k.uheap.allocSize(size)
	if !ok {
		return nil, AllocFail
	}
	k.uallocTrack[&block[0]] = allocRecord{offset: offset, order: order}
	return block, OK
}

// UserFree returns a block obtained from UserAlloc to the user heap.
func (k *Kernel) UserFree(block []byte) Status {
	unlock := k.lock.critSection()
	defer unlock()
	if !k.cfg.UseUHeap || k.uheap == nil || len(block) == 0 {
		return BadParameters
	}
	rec, ok := k.uallocTrack[&block[0]]
	if !ok {
		return BadParameters
	}
	delete(k.uallocTrack, &block[0])
	k.uheap.freeBlock(rec.offset, rec.order)
	return OK
}

type allocRecord struct {
	offset, order int
}
