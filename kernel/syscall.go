package kernel

// SyscallNum is the trap number of a kernel entry point, encoded so that
// the low nibble marks the call as valid from interrupt context and the
// high nibble as valid from thread context. Dispatch ANDs the number with
// a mask derived from the trap origin and switches on the result, so a
// syscall issued from a context its encoding does not permit masks to a
// key no case matches.
type SyscallNum uint8

const (
	SyscallStartFirstTask  SyscallNum = 0x04
	SyscallTickEvent       SyscallNum = 0x0F
	SyscallTaskMake        SyscallNum = 0x11
	SyscallTaskUnblock     SyscallNum = 0x22
	SyscallTaskDelayCancel SyscallNum = 0x33
	SyscallTaskFinish      SyscallNum = 0x40
	SyscallKernelAlloc     SyscallNum = 0x55
	SyscallKernelFree      SyscallNum = 0x66
	SyscallSemTake         SyscallNum = 0x77
	SyscallSemPut          SyscallNum = 0x88
	SyscallSemDelete       SyscallNum = 0x99
	SyscallMutexDelete     SyscallNum = 0xA0
	SyscallMutexPut        SyscallNum = 0xB0
	SyscallMutexTake       SyscallNum = 0xC0
	SyscallTaskYield       SyscallNum = 0xD0
	SyscallTaskBlock       SyscallNum = 0xE0
	SyscallTaskDelay       SyscallNum = 0xF0
)

// CallCtx distinguishes a trap raised by a task's own thread-mode code from
// one raised on behalf of an interrupt handler. On hardware this is read
// out of the trap frame's origin; here the caller states it.
type CallCtx uint8

const (
	CtxThread CallCtx = iota
	CtxInterrupt
)

func (c CallCtx) mask() SyscallNum {
	if c == CtxInterrupt {
		return 0x0F
	}
	return 0xF0
}

// Dispatch is the trap entry point: it masks the syscall number by the
// calling context and forwards to the typed method the masked key names.
// args/results are carried as plain slots rather than a register file,
// since this port has no real trap frame to decode. self is the calling
// task for thread-context syscalls and nil for interrupt-context ones; the
// two syscalls that name no caller at all (tick-event, start-first-task)
// ignore it. A syscall whose encoding does not permit the given context —
// or a number that names nothing — falls through to the dispatcher default,
// WrongContext.
func (k *Kernel) Dispatch(ctx CallCtx, num SyscallNum, self *TCB, a0 any) (any, Status) {
	switch num & ctx.mask() {
	case 0x04:
		k.Boot()
		return nil, OK
	case 0x0F:
		k.Tick()
		return nil, OK
	case 0x10, 0x01:
		args, _ := a0.(TaskDescr)
		if args.Entry == nil {
			return nil, BadParameters
		}
		if args.DynamicStack {
			t, st := k.TaskMakeDynamic(args.Name, args.Priority, args.StackSize, args.Entry, args.Arg)
			return t, st
		}
		t := k.TaskMake(args.Name, args.Priority, args.StackSize, args.Entry, args.Arg)
		if t == nil {
			return nil, AllocFail
		}
		return t, OK
	case 0x20, 0x02:
		t, _ := a0.(*TCB)
		return nil, k.TaskUnblock(self, t)
	case 0x30, 0x03:
		t, _ := a0.(*TCB)
		return nil, k.TaskDelayCancel(self, t)
	case 0x40:
		return nil, k.TaskFinish(self)
	case 0x50, 0x05:
		size, _ := a0.(int)
		block, st := k.KernelAlloc(size)
		return block, st
	case 0x60, 0x06:
		block, _ := a0.([]byte)
		return nil, k.KernelFree(block)
	case 0x70:
		if !k.cfg.UseSemaphore {
			break
		}
		args, _ := a0.(semTakeArgs)
		return nil, args.s.Take(self, args.wait)
	case 0x07:
		// interrupt-context take: the wait is forced to never-block.
		if !k.cfg.UseSemaphore {
			break
		}
		args, _ := a0.(semTakeArgs)
		return nil, args.s.tryTake()
	case 0x80, 0x08:
		if !k.cfg.UseSemaphore {
			break
		}
		s, _ := a0.(*Semaphore)
		return nil, s.Put(self)
	case 0x90, 0x09:
		if !k.cfg.UseSemaphore {
			break
		}
		s, _ := a0.(*Semaphore)
		return nil, s.Delete(self)
	case 0xA0:
		if !k.cfg.UseMutex {
			break
		}
		m, _ := a0.(*Mutex)
		return nil, m.Delete(self)
	case 0xB0:
		if !k.cfg.UseMutex {
			break
		}
		m, _ := a0.(*Mutex)
		return nil, m.Put(self)
	case 0xC0:
		if !k.cfg.UseMutex {
			break
		}
		args, _ := a0.(mutexTakeArgs)
		return nil, args.m.Take(self, args.wait)
	case 0xD0:
		return nil, k.TaskYield(self)
	case 0xE0:
		return nil, k.TaskBlock(self)
	case 0xF0:
		args, _ := a0.(taskDelayArgs)
		return nil, k.TaskDelayFunc(self, args.ticks, args.fn, args.arg)
	}
	return nil, WrongContext
}

// TaskDescr is the task descriptor, the one argument of the task-make
// syscall.
type TaskDescr struct {
	Name         string
	Priority     uint8
	StackSize    int
	DynamicStack bool
	Entry        func(self *TCB)
	Arg          any
}

type mutexTakeArgs struct {
	m    *Mutex
	wait Wait
}

type semTakeArgs struct {
	s    *Semaphore
	wait Wait
}

type taskDelayArgs struct {
	ticks uint32
	fn    func(*TCB, any)
	arg   any
}
