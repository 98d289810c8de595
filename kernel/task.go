package kernel

// spawn allocates a TCB from the slab, gives it a stack-sized-only-in-name
// goroutine (Go manages the real stack; stackSize/stack are kept for the
// accounting and isolation surface a per-task stack carries), and starts
// its goroutine parked at the very first checkpoint. It does not make the
// task ready — that is the caller's job.
func (k *Kernel) spawn(name string, priority uint8, entry func(self *TCB)) *TCB {
	unlock := k.lock.critSection()
	t := k.slab.alloc()
	unlock()
	if t == nil {
		return nil
	}
	t.name = name
	t.baseP, t.effP = priority, priority
	t.entry = entry
	t.gate = make(chan struct{}, 1)
	t.qtag = tagRunning // not on any queue yet; retagged on first enqueue
	go func() {
		k.checkpoint(t)
		entry(t)
		k.TaskFinish(t)
	}()
	return t
}

// TaskMake creates a new task at the given priority with the given stack
// size (purely a bookkeeping figure here — see spawn) and entry point, and
// leaves it ready to run. The stack is the caller's responsibility —
// nothing is allocated or freed on this task's behalf; use TaskMakeDynamic
// to have the stack carved out of the kernel heap instead. If the kernel
// is already running and the new task outranks the
// current one, the current task is preempted at its next kernel entry.
// Returns nil if the slab is exhausted.
func (k *Kernel) TaskMake(name string, priority uint8, stackSize int, entry func(self *TCB), arg any) *TCB {
	t := k.spawn(name, priority, entry)
	if t == nil {
		return nil
	}
	unlock := k.lock.critSection()
	t.arg = arg
	t.stackSize = stackSize
	t.quantum, t.reload = k.cfg.TickQuantum, k.cfg.TickQuantum
	if t.quantum == 0 {
		t.quantum, t.reload = 1, 1
	}
	k.ready.insertByPriority(t)
	var grant *TCB
	if k.running {
		grant, _ = k.preemptLocked(nil)
	}
	unlock()
	if grant != nil {
		k.grant(grant)
	}
	return t
}

// TaskMakeDynamic is TaskMake's dynamic-stack variant: the stack is carved
// out of the kernel heap buddy allocator rather than supplied by the
// caller, and TaskFinish returns that block to the heap when the task
// retires. Returns (nil, AllocFail) if the kernel heap is disabled or has
// no block large enough.
func (k *Kernel) TaskMakeDynamic(name string, priority uint8, stackSize int, entry func(self *TCB), arg any) (*TCB, Status) {
	unlock := k.lock.critSection()
	if !k.cfg.UseKHeap || k.kheap == nil {
		unlock()
		return nil, AllocFail
	}
	block, offset, order, ok := k.kheap.allocSize(stackSize)
	unlock()
	if !ok {
		return nil, AllocFail
	}
	t := k.TaskMake(name, priority, stackSize, entry, arg)
	if t == nil {
		unlock = k.lock.critSection()
		k.kheap.freeBlock(offset, order)
		unlock()
		return nil, AllocFail
	}
	unlock = k.lock.critSection()
	t.stack = block
	t.stackFromKHeap = true
	t.stackOffset = offset
	t.stackOrder = order
	unlock()
	return t, OK
}

// Arg returns the argument TaskMake was given for this task.
func (t *TCB) Arg() any { return t.arg }

// TaskYield gives up the remainder of the current quantum voluntarily,
// moving self to the back of its priority group. Yielding only succeeds
// when a peer of equal priority is at the head of ready: anything higher
// would already have preempted, and yielding *down* to a lower-priority
// task would invert the strict-priority policy, so both cases return
// CantYield with self still running.
func (k *Kernel) TaskYield(self *TCB) Status {
	k.checkpoint(self)
	unlock := k.lock.critSection()
	if self != k.current {
		unlock()
		return CantYield
	}
	head := k.ready.head
	if head == nil || head.effP != self.effP {
		unlock()
		return CantYield
	}
	k.ready.insertByPriority(self)
	unlock()
	k.resched(self)
	return OK
}

// TaskFinish retires self permanently: it is removed from scheduling and
// its slab slot is freed. A task that returns from its entry function calls
// this itself (see spawn).
//
// Finishing while still holding a mutex is a programming error, not a
// recoverable Status: a held mutex whose owner vanishes leaves its
// priority-inheritance invariant unrecoverable. It halts rather than
// returning CantFinish.
func (k *Kernel) TaskFinish(self *TCB) Status {
	unlock := k.lock.critSection()
	if self.finished {
		unlock()
		return CantFinish
	}
	if self.mutexCount != 0 {
		unlock()
		halt("task-finish while holding a mutex", map[string]any{
			"task":        self.name,
			"mutex_count": self.mutexCount,
		})
	}
	self.finished = true
	switch {
	case self.qtag.isMemberOf(tagReadyHead):
		k.ready.removeEntry(self)
	case self.qtag.isMemberOf(tagBlockedHead):
		k.blocked.removeEntry(self)
	}
	if self.dtag != delayTagNone {
		k.delay.remove(self)
	}
	if self.stackFromKHeap && k.kheap != nil {
		k.kheap.freeBlock(self.stackOffset, self.stackOrder)
		self.stackFromKHeap = false
	}
	k.slab.free(self)
	var grant *TCB
	if self == k.current {
		next, changed := k.dispatchLocked()
		if changed {
			grant = next
		}
	}
	unlock()
	if grant != nil {
		k.grant(grant)
	}
	return OK
}

// TaskBlock parks self on the unordered blocked queue until a matching
// TaskUnblock call. There is no timeout variant — TaskDelay is the
// primitive for bounded waits.
func (k *Kernel) TaskBlock(self *TCB) Status {
	k.checkpoint(self)
	unlock := k.lock.critSection()
	if self != k.current {
		unlock()
		return BadParameters
	}
	k.blocked.insertTail(self)
	unlock()
	k.resched(self)
	return self.retval
}

// TaskUnblock wakes a task parked via TaskBlock, then reruns the preemption
// decision: the woken task takes the CPU only if it strictly outranks the
// current one. Returns NotBlocked if t is not presently on the blocked
// queue. self may be nil when called on behalf of an interrupt handler.
func (k *Kernel) TaskUnblock(self *TCB, t *TCB) Status {
	if self != nil {
		k.checkpoint(self)
	}
	unlock := k.lock.critSection()
	if st := k.blocked.removeEntry(t); st != OK {
		unlock()
		return NotBlocked
	}
	k.wakeLocked(t, OK)
	grant, park := k.preemptLocked(self)
	unlock()
	if grant != nil {
		k.grant(grant)
	}
	if park {
		<-self.gate
	}
	return OK
}

// TaskDelay suspends self on the delta-list for the given number of ticks
// and resumes with OK once they elapse (or Woken, if another task cancels
// the delay early). A zero delay is not supported — TaskYield is the
// primitive for giving up the CPU without a wait — and fails with
// BadParameters.
func (k *Kernel) TaskDelay(self *TCB, ticks uint32) Status {
	return k.TaskDelayFunc(self, ticks, nil, nil)
}

// TaskDelayFunc is TaskDelay with a wake callback: fn(self, arg) runs in
// tick context when the delay expires naturally, before self is made ready.
// The callback is dropped unrun if the delay is cancelled. It must not
// block or re-enter the kernel.
func (k *Kernel) TaskDelayFunc(self *TCB, ticks uint32, fn func(*TCB, any), arg any) Status {
	k.checkpoint(self)
	if ticks == 0 {
		return BadParameters
	}
	unlock := k.lock.critSection()
	if self != k.current {
		unlock()
		return BadParameters
	}
	self.wake = wakeDelayExpiry
	self.wakeFn = fn
	self.wakeArg = arg
	k.delay.insert(self, ticks)
	unlock()
	k.resched(self)
	return self.retval
}

// TaskDelayCancel wakes a delayed task early without running its wake
// callback; the cancelled task resumes from its own TaskDelay (or timed
// mutex/semaphore wait) with Woken, distinguishing an explicit cancel from
// a natural expiry. Returns NotDelayed if t is not presently delayed; a
// no-op in that case. self may be nil when called on behalf of an
// interrupt handler.
func (k *Kernel) TaskDelayCancel(self *TCB, t *TCB) Status {
	if self != nil {
		k.checkpoint(self)
	}
	unlock := k.lock.critSection()
	if st := k.delay.remove(t); st != OK {
		unlock()
		return st
	}
	switch t.wake {
	case wakeMutexTimeout:
		if t.wakeMutex != nil {
			t.wakeMutex.waiters.removeEntry(t)
		}
	case wakeSemTimeout:
		if t.wakeSem != nil {
			t.wakeSem.waiters.removeEntry(t)
		}
	}
	k.wakeLocked(t, Woken)
	grant, park := k.preemptLocked(self)
	unlock()
	if grant != nil {
		k.grant(grant)
	}
	if park {
		<-self.gate
	}
	return OK
}
