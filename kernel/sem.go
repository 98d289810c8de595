package kernel

// Semaphore is a blocking counting semaphore: count tracks available
// permits, and a Take against a zero count parks the caller on a
// priority-ordered wait queue instead of spinning — the complement to
// nbsem.go's lock-free, never-blocking sibling. A deleted (or
// never-configured) semaphore has max == 0 and answers NotInitialised.
type Semaphore struct {
	count   int32
	max     int32
	waiters *qlist
	k       *Kernel
}

// NewSemaphore creates a counting semaphore starting at initial permits,
// capped at max. max must be at least 1; a semaphore with max 0 is the
// deleted state and fails every operation with NotInitialised.
func (k *Kernel) NewSemaphore(initial, max int32) *Semaphore {
	return &Semaphore{count: initial, max: max, waiters: newQList(tagSemHead), k: k}
}

// Take acquires one permit, blocking self for up to wait ticks if none are
// available. WaitNone never blocks and returns WouldBlock if the count is
// already zero.
func (s *Semaphore) Take(self *TCB, wait Wait) Status {
	k := s.k
	k.checkpoint(self)
	unlock := k.lock.critSection()
	if self != k.current {
		unlock()
		return BadParameters
	}
	if s.max <= 0 {
		unlock()
		return NotInitialised
	}
	if s.count > 0 {
		s.count--
		unlock()
		return OK
	}
	if wait == WaitNone {
		unlock()
		return WouldBlock
	}
	s.waiters.insertByPriority(self)
	if wait > WaitNone {
		self.wake = wakeSemTimeout
		self.wakeSem = s
		k.delay.insert(self, uint32(wait))
	}
	unlock()
	k.resched(self)
	return self.retval
}

// tryTake is the interrupt-context flavor of Take: identical to
// Take(wait == WaitNone) except that it does not identify a calling task,
// so it can run on behalf of an ISR. It never blocks.
func (s *Semaphore) tryTake() Status {
	k := s.k
	unlock := k.lock.critSection()
	defer unlock()
	if s.max <= 0 {
		return NotInitialised
	}
	if s.count > 0 {
		s.count--
		return OK
	}
	return WouldBlock
}

// Put releases one permit. If a task is waiting, the permit is handed
// directly to the highest-priority waiter (its timeout, if armed, is
// cancelled) instead of being added to count and immediately reclaimed;
// the woken waiter then takes the CPU only if it strictly outranks the
// caller. Putting past the configured count returns RecursivePut. self may
// be nil when called on behalf of an interrupt handler.
func (s *Semaphore) Put(self *TCB) Status {
	k := s.k
	if self != nil {
		k.checkpoint(self)
	}
	unlock := k.lock.critSection()
	if self != nil && self != k.current {
		unlock()
		return BadParameters
	}
	if s.max <= 0 {
		unlock()
		return NotInitialised
	}
	if s.count >= s.max {
		unlock()
		return RecursivePut
	}
	next := s.waiters.removeHead()
	if next == nil {
		s.count++
		unlock()
		return OK
	}
	if next.dtag != delayTagNone {
		k.delay.remove(next)
	}
	k.wakeLocked(next, OK)
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

// Delete releases s permanently. Waiters, if any, are woken with Deleted
// rather than being left blocked forever on an object that no longer
// exists. With no waiters, outstanding
// permits (count below the configured maximum) make the semaphore
// undeletable: CantDelete, no state change. A deleted semaphore answers
// NotInitialised to every subsequent operation.
func (s *Semaphore) Delete(self *TCB) Status {
	k := s.k
	if self != nil {
		k.checkpoint(self)
	}
	unlock := k.lock.critSection()
	if s.max <= 0 {
		unlock()
		return NotInitialised
	}
	if s.waiters.empty() && s.count != s.max {
		unlock()
		return CantDelete
	}
	for {
		t := s.waiters.removeHead()
		if t == nil {
			break
		}
		if t.dtag != delayTagNone {
			k.delay.remove(t)
		}
		k.wakeLocked(t, Deleted)
	}
	s.count, s.max = 0, 0
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
