package kernel

import (
	"runtime"

	"github.com/freeman1216/badrtos/arch"
)

// idlePriority is the base priority of the built-in idle task. Idle is never
// put on the ready list; dispatch falls back to it only when ready is empty.
const idlePriority = 254

// Kernel is the whole scheduler/allocator/synchronization state machine: one
// instance per simulated system, analogous to the single static kernel
// state a real microcontroller port would keep. Every field below is only
// ever touched while holding lock (see fence.go).
type Kernel struct {
	lock kernelLock
	cfg  Config

	slab  *tcbSlab
	kheap *buddyHeap
	uheap *buddyHeap

	kallocTrack map[*byte]allocRecord
	uallocTrack map[*byte]allocRecord

	ready   *qlist
	blocked *qlist
	delay   delayList

	current *TCB
	idle    *TCB
	running bool

	iso   *isolation
	clock arch.Clock

	ticks uint64
	done  chan struct{}
}

// New constructs a Kernel from cfg. It allocates the TCB slab and the
// configured heaps, spawns the idle task, but does not start the scheduler
// — call Boot to do that once every initial task has been created with
// TaskMake.
func New(cfg Config) *Kernel {
	if cfg.MaxTasks < 2 {
		cfg.MaxTasks = 2
	}
	k := &Kernel{
		cfg:         cfg,
		slab:        newTCBSlab(cfg.MaxTasks),
		kallocTrack: make(map[*byte]allocRecord),
		uallocTrack: make(map[*byte]allocRecord),
		ready:       newQList(tagReadyHead),
		blocked:     newQList(tagBlockedHead),
		clock:       cfg.Clock,
		done:        make(chan struct{}),
	}
	if cfg.UseKHeap {
		k.kheap = newBuddyHeap(cfg.KHeapMin, cfg.KHeapMax)
	}
	if cfg.UseUHeap {
		k.uheap = newBuddyHeap(cfg.UHeapMin, cfg.UHeapMax)
	}
	if cfg.Installer != nil {
		k.iso = newIsolation(cfg.Installer, cfg.StaticRegions)
	}
	k.idle = k.spawn("idle", idlePriority, func(self *TCB) {
		for {
			k.checkpoint(self)
			k.resched(self)
			runtime.Gosched()
		}
	})
	// The idle task's quantum never runs out: Tick skips it entirely, so the
	// reload value below is only ever read for bookkeeping symmetry.
	k.idle.quantum, k.idle.reload = ^uint32(0), ^uint32(0)
	return k
}

// Boot performs the first dispatch and, if a Clock was configured, starts
// the goroutine that drains it into Tick calls. Call it once, after every
// startup task has been created.
func (k *Kernel) Boot() {
	if k.iso != nil {
		if err := k.iso.boot(); err != nil {
			halt("isolation: install static regions", map[string]any{"error": err.Error()})
		}
	}
	unlock := k.lock.critSection()
	k.running = true
	next, _ := k.dispatchLocked()
	unlock()
	k.grant(next)

	if k.clock != nil {
		go k.tickLoop()
	}
}

// Shutdown stops the tick-draining goroutine, if one was started.
func (k *Kernel) Shutdown() {
	select {
	case <-k.done:
	default:
		close(k.done)
	}
	if k.clock != nil {
		k.clock.Stop()
	}
}

func (k *Kernel) tickLoop() {
	for {
		select {
		case <-k.clock.Ticks():
			k.Tick()
		case <-k.done:
			return
		}
	}
}

// dispatchLocked must be called with lock held. It pops the highest
// priority ready task (or falls back to idle), installs it as current, and
// reports whether that is a change from the previous current task. The new
// current task's A-tag becomes running and a spent quantum is reloaded,
// matching the context-switch protocol's "promote next to current" step.
func (k *Kernel) dispatchLocked() (next *TCB, changed bool) {
	next = k.ready.removeHead()
	if next == nil {
		next = k.idle
	}
	old := k.current
	k.current = next
	next.qtag = tagRunning
	if next.quantum == 0 {
		next.quantum = next.reload
	}
	if k.iso != nil && next != old {
		_ = k.iso.switchTo(next)
	}
	return next, next != old
}

// preemptLocked reruns the preemption decision after some task was made
// ready: if the ready head now strictly outranks
// the current task, the current task is pushed to the front of its priority
// group and the head takes over the CPU. Must be called with lock held.
// self is the task executing this syscall, or nil when the caller is not a
// task (tick handler, ISR, pre-boot setup). Returns the task to grant the
// CPU to (nil if current keeps it) and whether self lost the CPU and must
// park once the lock is dropped.
func (k *Kernel) preemptLocked(self *TCB) (grant *TCB, park bool) {
	head := k.ready.head
	cur := k.current
	if head == nil || cur == nil || head.effP >= cur.effP {
		return nil, false
	}
	next := k.ready.removeHead()
	if cur != k.idle {
		k.ready.insertByPriorityFront(cur)
	}
	k.current = next
	next.qtag = tagRunning
	if next.quantum == 0 {
		next.quantum = next.reload
	}
	if k.iso != nil {
		_ = k.iso.switchTo(next)
	}
	return next, self == cur
}

// checkpoint is the cooperative-preemption substitute a hosted port needs:
// a task whose quantum expired under Tick while it was not blocked on
// anything keeps physically running (Go gives no portable way to suspend
// an arbitrary goroutine mid-instruction),
// so every syscall entry point calls checkpoint first. If Tick already
// reassigned k.current away from self, self parks here until granted again
// — bounding the "still running after losing the CPU" window to at most one
// syscall call, the same safepoint-based compromise Go's own scheduler used
// before non-cooperative preemption landed in 1.14.
func (k *Kernel) checkpoint(self *TCB) {
	unlock := k.lock.schedFence()
	current := k.current
	unlock()
	if self == current {
		// Drop a grant self never consumed: a task can be made current
		// while its goroutine is off in user code, in which case the token
		// sits in the gate buffer and would otherwise let a later park
		// return early.
		select {
		case <-self.gate:
		default:
		}
		return
	}
	<-self.gate
}

// grant hands the CPU token to t. Any stale token left over from a
// currency t never consumed is replaced rather than stacked, so the
// buffered gate can never block a granter.
func (k *Kernel) grant(t *TCB) {
	select {
	case <-t.gate:
	default:
	}
	t.gate <- struct{}{}
}

// resched hands control to the highest-priority ready task after self has
// suspended itself: the caller must already have placed self into whatever
// queue reflects its new state (ready, for a voluntary yield; blocked/
// mutex/sem/delay, for a wait) or retired it entirely. If self remains the
// task to run, this returns immediately; otherwise self parks on its own
// gate until granted again.
func (k *Kernel) resched(self *TCB) {
	unlock := k.lock.critSection()
	next, changed := k.dispatchLocked()
	unlock()
	if next == self {
		return
	}
	if changed {
		k.grant(next)
	}
	<-self.gate
}

// wakeLocked moves t onto the ready list (the caller has already unlinked it
// from whatever wait queue and/or delay-list entry it occupied) and records
// its return value, per the rule that a resumed waiter reads its result from
// the same slot whether it blocked or returned immediately. The pending
// wake callback, whatever its kind, is disarmed.
func (k *Kernel) wakeLocked(t *TCB, result Status) {
	t.retval = result
	t.wake = wakeNone
	t.wakeMutex = nil
	t.wakeSem = nil
	t.wakeFn = nil
	t.wakeArg = nil
	k.ready.insertByPriority(t)
}

// Tick is the periodic timer ISR equivalent: it decrements the delay
// delta-list head, wakes anything that has now expired, and — if the
// running task's quantum has run out and an equal-or-higher-priority task
// is ready — rotates the running task to the back of its priority group.
// Safe to call directly (e.g. from a test) instead of wiring a Clock.
func (k *Kernel) Tick() {
	unlock := k.lock.critSection()
	k.ticks++
	expired := k.delay.tick()
	for _, t := range expired {
		switch t.wake {
		case wakeMutexTimeout:
			if t.wakeMutex != nil {
				t.wakeMutex.waiters.removeEntry(t)
			}
			k.wakeLocked(t, Timeout)
		case wakeSemTimeout:
			if t.wakeSem != nil {
				t.wakeSem.waiters.removeEntry(t)
			}
			k.wakeLocked(t, Timeout)
		default:
			// plain delay expiry: run the armed callback, resume with OK.
			if t.wakeFn != nil {
				t.wakeFn(t, t.wakeArg)
			}
			k.wakeLocked(t, OK)
		}
		t.quantum = t.reload
	}

	// A wake may have made a higher-priority task ready; if it preempts,
	// the displaced task keeps its remaining quantum for its next turn and
	// is not charged for this tick.
	grant, _ := k.preemptLocked(nil)
	if grant == nil {
		cur := k.current
		if cur != nil && cur != k.idle {
			if cur.quantum > 0 {
				cur.quantum--
			}
			if cur.quantum == 0 {
				if head := k.ready.head; head != nil && head.effP <= cur.effP {
					cur.quantum = cur.reload
					k.ready.insertByPriority(cur)
					next := k.ready.removeHead()
					next.qtag = tagRunning
					if next.quantum == 0 {
						next.quantum = next.reload
					}
					k.current = next
					if k.iso != nil && next != cur {
						_ = k.iso.switchTo(next)
					}
					if next != cur {
						grant = next
					}
				} else {
					// nothing ready at this level or above: keep running,
					// start a fresh quantum.
					cur.quantum = cur.reload
				}
			}
		}
	}
	unlock()
	if grant != nil {
		k.grant(grant)
	}
}

// Ticks reports the number of Tick calls observed so far.
func (k *Kernel) Ticks() uint64 {
	unlock := k.lock.schedFence()
	defer unlock()
	return k.ticks
}

// Current reports the task presently designated as running.
func (k *Kernel) Current() *TCB {
	unlock := k.lock.schedFence()
	defer unlock()
	return k.current
}
