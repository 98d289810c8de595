package kernel

// Mutex is a binary, priority-inheriting lock: a task that owns it and
// blocks higher-priority tasks temporarily inherits the best (numerically
// lowest) effective priority among its waiters, so it can't be starved out
// by a medium-priority task scheduled ahead of it — the classic priority
// inversion. mutexCount on the owning TCB tracks how many distinct mutexes
// the task holds, since the inherited priority must survive until the last
// one is released.
type Mutex struct {
	owner   *TCB
	waiters *qlist
	k       *Kernel
}

// NewMutex creates an unlocked mutex bound to k.
func (k *Kernel) NewMutex() *Mutex {
	return &Mutex{waiters: newQList(tagMutexHead), k: k}
}

// Take acquires m, blocking self for up to wait ticks if it is already
// held by another task. The mutex is non-reentrant by design: a caller
// that already owns m gets RecursiveTake rather than a nested acquire.
// WaitNone never blocks and returns WouldBlock if contended. While self
// waits, the owner's effective priority is lowered to self's if self
// outranks it (priority donation; the donor's own inheritance chain
// already ran when it was donated to, so no transitive walk is needed).
func (m *Mutex) Take(self *TCB, wait Wait) Status {
	k := m.k
	k.checkpoint(self)
	unlock := k.lock.critSection()
	if self != k.current {
		unlock()
		return BadParameters
	}
	if m.owner == self {
		unlock()
		return RecursiveTake
	}
	if m.owner == nil {
		m.owner = self
		self.mutexCount++
		unlock()
		return OK
	}
	if wait == WaitNone {
		unlock()
		return WouldBlock
	}
	if self.effP < m.owner.effP {
		m.owner.effP = self.effP
	}
	m.waiters.insertByPriority(self)
	if wait > WaitNone {
		self.wake = wakeMutexTimeout
		self.wakeMutex = m
		k.delay.insert(self, uint32(wait))
	}
	unlock()
	k.resched(self)
	return self.retval
}

// Put releases m. The highest-priority waiter (if any) becomes the new
// owner immediately — ownership is handed off even if the releasing task
// still holds other mutexes — and its pending timeout, if armed, is
// cancelled. The releasing task's effective priority is restored to its
// base only once its last held mutex is gone. The woken owner then takes
// the CPU only if it strictly outranks the releasing task.
func (m *Mutex) Put(self *TCB) Status {
	k := m.k
	k.checkpoint(self)
	unlock := k.lock.critSection()
	if self != k.current {
		unlock()
		return BadParameters
	}
	if m.owner != self {
		unlock()
		return NotOwner
	}
	self.mutexCount--
	if self.mutexCount == 0 {
		self.effP = self.baseP
	}
	next := m.waiters.removeHead()
	m.owner = next
	if next == nil {
		unlock()
		return OK
	}
	if next.dtag != delayTagNone {
		k.delay.remove(next)
	}
	next.mutexCount++
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

// Delete releases m permanently; only the current owner may call it.
// Every waiter is woken with Deleted (its timeout, if armed, cancelled),
// and the owner's own hold on m is dropped, restoring its base priority
// once its last held mutex is gone. Returns NotOwner if self does not
// hold m.
func (m *Mutex) Delete(self *TCB) Status {
	k := m.k
	k.checkpoint(self)
	unlock := k.lock.critSection()
	if m.owner == nil || m.owner != self {
		unlock()
		return NotOwner
	}
	for {
		t := m.waiters.removeHead()
		if t == nil {
			break
		}
		if t.dtag != delayTagNone {
			k.delay.remove(t)
		}
		k.wakeLocked(t, Deleted)
	}
	self.mutexCount--
	if self.mutexCount == 0 {
		self.effP = self.baseP
	}
	m.owner = nil
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
