package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTaskFinishWhileHoldingMutexHalts: a task that attempts to finish
// while still holding a mutex is a programming error, not a recoverable
// Status — it halts the kernel.
func TestTaskFinishWhileHoldingMutexHalts(t *testing.T) {
	k := New(testConfig())
	mu := k.NewMutex()
	halted := make(chan struct{})

	k.TaskMake("greedy", 1, 4096, func(self *TCB) {
		mu.Take(self, WaitForever)
		func() {
			// recover locally: TaskFinish halts (panics) rather than
			// returning a Status while a mutex is still held.
			defer func() {
				if recover() != nil {
					close(halted)
				}
			}()
			k.TaskFinish(self)
		}()
		// block forever so spawn's own entry-returned TaskFinish call
		// never fires a second, uncaught halt.
		<-make(chan struct{})
	}, nil)

	k.Boot()

	select {
	case <-halted:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected TaskFinish to halt while mutex held")
	}
}

// TestTaskDelayCancelWakesWithWoken: an explicit TaskDelayCancel resumes
// the target with Woken, distinguishing it from a natural expiry.
func TestTaskDelayCancelWakesWithWoken(t *testing.T) {
	k := New(testConfig())
	result := make(chan Status, 1)
	delaying := make(chan *TCB, 1)

	k.TaskMake("delayed", 1, 4096, func(self *TCB) {
		delaying <- self
		result <- k.TaskDelay(self, 1000)
	}, nil)

	k.Boot()
	delayed := <-delaying
	time.Sleep(2 * time.Millisecond)

	k.TaskMake("canceller", 1, 4096, func(self *TCB) {
		k.TaskDelayCancel(self, delayed)
	}, nil)

	assert.Equal(t, Woken, <-result)
}

// TestTaskDelayCancelNotDelayedIsNoOp: cancel on a task that isn't delayed
// returns NotDelayed without side effects.
func TestTaskDelayCancelNotDelayedIsNoOp(t *testing.T) {
	k := New(testConfig())
	result := make(chan Status, 1)
	running := make(chan *TCB, 1)
	block := make(chan struct{})

	k.TaskMake("idle-ish", 2, 4096, func(self *TCB) {
		running <- self
		<-block
	}, nil)

	k.Boot()
	target := <-running

	// priority 1 so the canceller preempts the (never-suspending) target.
	k.TaskMake("canceller", 1, 4096, func(self *TCB) {
		result <- k.TaskDelayCancel(self, target)
	}, nil)

	assert.Equal(t, NotDelayed, <-result)
	close(block)
}

// TestTaskDelayZeroIsBadParameters: a zero-tick delay is not a supported
// way to give up the CPU (that is TaskYield's job) and is rejected without
// touching the delta-list.
func TestTaskDelayZeroIsBadParameters(t *testing.T) {
	k := New(testConfig())
	result := make(chan Status, 1)

	k.TaskMake("t", 1, 4096, func(self *TCB) {
		result <- k.TaskDelay(self, 0)
	}, nil)

	k.Boot()
	assert.Equal(t, BadParameters, <-result)
}

// TestTaskDelayFuncRunsCallbackOnExpiry: the wake callback armed alongside
// a delay runs when the delay expires naturally. The cancelled case is
// TestTaskDelayCancelSkipsCallback.
func TestTaskDelayFuncRunsCallbackOnExpiry(t *testing.T) {
	k := New(testConfig())
	ranWith := make(chan any, 1)
	result := make(chan Status, 1)

	k.TaskMake("t", 1, 4096, func(self *TCB) {
		result <- k.TaskDelayFunc(self, 2, func(_ *TCB, arg any) {
			ranWith <- arg
		}, "payload")
	}, nil)

	k.Boot()
	time.Sleep(2 * time.Millisecond)
	k.Tick()
	k.Tick()

	assert.Equal(t, OK, <-result)
	assert.Equal(t, "payload", <-ranWith)
}

func TestTaskDelayCancelSkipsCallback(t *testing.T) {
	k := New(testConfig())
	var ran bool
	delaying := make(chan *TCB, 1)
	result := make(chan Status, 1)

	k.TaskMake("delayed", 1, 4096, func(self *TCB) {
		delaying <- self
		result <- k.TaskDelayFunc(self, 1000, func(_ *TCB, _ any) { ran = true }, nil)
	}, nil)

	k.Boot()
	delayed := <-delaying
	time.Sleep(2 * time.Millisecond)

	k.TaskMake("canceller", 1, 4096, func(self *TCB) {
		k.TaskDelayCancel(self, delayed)
	}, nil)

	assert.Equal(t, Woken, <-result)
	assert.False(t, ran, "cancel drops the callback unrun")
}

// TestTaskMakeDynamicReturnsStackToKernelHeap: a dynamically-stacked task's
// backing block comes from the kernel heap at creation and is returned
// there once the task finishes.
func TestTaskMakeDynamicReturnsStackToKernelHeap(t *testing.T) {
	k := New(testConfig())
	before := k.kheap.free[k.kheap.max]

	done := make(chan struct{})
	task, st := k.TaskMakeDynamic("dyn", 1, 256, func(self *TCB) {
		close(done)
	}, nil)
	require.Equal(t, OK, st)
	require.NotNil(t, task)
	assert.True(t, task.stackFromKHeap)
	assert.Len(t, task.stack, 1<<uint(task.stackOrder))

	k.Boot()
	<-done
	time.Sleep(2 * time.Millisecond)

	assert.Equal(t, before, k.kheap.free[k.kheap.max], "stack block coalesced back to the top order")
}

// TestTaskMakeDynamicFailsWhenKernelHeapDisabled: an allocation request
// against a disabled heap fails with AllocFail, not a panic or a
// nil-stack task.
func TestTaskMakeDynamicFailsWhenKernelHeapDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.UseKHeap = false
	k := New(cfg)

	task, st := k.TaskMakeDynamic("dyn", 1, 256, func(self *TCB) {}, nil)
	assert.Nil(t, task)
	assert.Equal(t, AllocFail, st)
}
