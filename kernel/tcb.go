package kernel

import "github.com/freeman1216/badrtos/arch"

// queueTag is the ground truth for which of {running, ready, blocked,
// mutex-blocked, semaphore-blocked} a TCB currently inhabits. A list's
// "member" tag is always its "head" tag plus one, so
// `tag == head || tag == head+1` is the one-comparison membership test
// used by removeEntry.
type queueTag uint8

const (
	tagRunning queueTag = iota
	tagReadyHead
	tagReadyMember
	tagBlockedHead
	tagBlockedMember
	tagMutexHead
	tagMutexMember
	tagSemHead
	tagSemMember
)

func (t queueTag) isMemberOf(head queueTag) bool {
	return t == head || t == head+1
}

// delayTag is the B-discriminator: orthogonal to queueTag, since a mutex- or
// semaphore-blocked TCB may simultaneously carry a finite timeout on the
// delay delta-list.
type delayTag uint8

const (
	delayTagNone delayTag = iota
	delayTagHead
	delayTagMember
)

// wakeKind identifies which timeout callback is pending on a TCB; a tagged
// variant in place of a bare function pointer, so the waited-on object can
// be unlinked without comparing function addresses.
type wakeKind uint8

const (
	wakeNone wakeKind = iota
	wakeDelayExpiry
	wakeMutexTimeout
	wakeSemTimeout
)

// TCB is the task control block: one fat record holding every piece of
// per-task state. Every syscall that names a task takes a *TCB as its
// opaque handle.
type TCB struct {
	id uint32 // slab slot index, stable for the task's lifetime

	// Identity/entry.
	entry func(self *TCB)
	arg   any
	name  string // purely for demo/log readability

	// Execution.
	sp             uintptr // unused register-save slot; Go manages its own goroutine stacks
	stack          []byte
	stackSize      int
	stackFromKHeap bool
	stackOffset    int // valid iff stackFromKHeap
	stackOrder     int // valid iff stackFromKHeap

	// Scheduling. Priorities follow NVIC logic: a lower number is a higher
	// priority, and inheritance only ever lowers effP below baseP.
	baseP   uint8
	effP    uint8
	quantum uint32
	reload  uint32

	// Queue linkage A.
	qtag  queueTag
	qprev *TCB
	qnext *TCB

	// Queue linkage B (delay delta-list).
	dtag  delayTag
	dprev *TCB
	dnext *TCB
	delta uint32

	// Synchronization counters.
	mutexCount uint8

	// Wake callback. wakeFn/wakeArg carry a user-supplied callback run at
	// delay expiration; wakeMutex/wakeSem carry the kernel-internal timeout
	// targets. wake discriminates which kind is armed.
	wake      wakeKind
	wakeMutex *Mutex
	wakeSem   *Semaphore
	wakeFn    func(*TCB, any)
	wakeArg   any

	// Isolation.
	regions []arch.Region

	// Saved return-register slot: whoever wakes a blocked task writes the
	// result here before signaling gate; the resumed call reads it.
	retval Status

	// gate stands in for "the TCB's saved stack pointer plus the hardware's
	// ability to resume it": sending on gate is the only way this task's
	// goroutine is allowed to proceed past a kernel checkpoint.
	gate chan struct{}

	finished bool
}

// Priority reports the task's current effective priority (lower number =
// higher priority; may sit below BasePriority while inheritance is active).
func (t *TCB) Priority() uint8 { return t.effP }

// BasePriority reports the task's base (non-inherited) priority.
func (t *TCB) BasePriority() uint8 { return t.baseP }

// Name returns the task's debug name, if any.
func (t *TCB) Name() string { return t.name }

// ID returns the TCB's slab slot index.
func (t *TCB) ID() uint32 { return t.id }

// SetRegions records t's caller-supplied MPU region table, precomputed once
// (typically right after TaskMake) rather than derived fresh on every
// dispatch — see kernel/isolation.go, which installs the synthesized stack
// region ahead of it. At most maxTaskRegions entries fit the MPU slots left
// over after the stack region; more is BadParameters, no change.
func (t *TCB) SetRegions(regions []arch.Region) Status {
	if len(regions) > maxTaskRegions {
		return BadParameters
	}
	t.regions = regions
	return OK
}

// Regions returns t's caller-supplied region table as recorded by
// SetRegions; the synthesized stack region is not part of it.
func (t *TCB) Regions() []arch.Region { return t.regions }
