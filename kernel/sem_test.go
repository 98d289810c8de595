package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreTakeDecrementsWhenAvailable(t *testing.T) {
	k := New(testConfig())
	s := k.NewSemaphore(1, 1)
	result := make(chan Status, 1)

	k.TaskMake("t", 1, 4096, func(self *TCB) {
		result <- s.Take(self, WaitNone)
	}, nil)

	k.Boot()
	assert.Equal(t, OK, <-result)
}

func TestSemaphoreTakeWaitNoneWouldBlockOnEmpty(t *testing.T) {
	k := New(testConfig())
	s := k.NewSemaphore(0, 1)
	result := make(chan Status, 1)

	k.TaskMake("t", 1, 4096, func(self *TCB) {
		result <- s.Take(self, WaitNone)
	}, nil)

	k.Boot()
	assert.Equal(t, WouldBlock, <-result)
}

// TestSemaphorePutHandsPermitDirectlyToWaiter: Put on a semaphore with a
// blocked waiter hands the permit straight to the highest-priority waiter
// instead of incrementing count.
func TestSemaphorePutHandsPermitDirectlyToWaiter(t *testing.T) {
	k := New(testConfig())
	s := k.NewSemaphore(0, 1)
	result := make(chan Status, 1)
	waiting := make(chan struct{})

	k.TaskMake("waiter", 1, 4096, func(self *TCB) {
		close(waiting)
		result <- s.Take(self, WaitForever)
	}, nil)

	k.Boot()
	<-waiting
	time.Sleep(2 * time.Millisecond)

	k.TaskMake("putter", 1, 4096, func(self *TCB) {
		s.Put(self)
	}, nil)

	assert.Equal(t, OK, <-result)
	assert.Equal(t, int32(0), s.count, "permit went straight to the waiter, not into count")
}

// TestSemaphorePutOverflowIsRecursivePut: putting past the configured
// count returns RecursivePut, not BadParameters.
func TestSemaphorePutOverflowIsRecursivePut(t *testing.T) {
	k := New(testConfig())
	s := k.NewSemaphore(1, 1)
	result := make(chan Status, 1)

	k.TaskMake("t", 1, 4096, func(self *TCB) {
		result <- s.Put(self)
	}, nil)

	k.Boot()
	assert.Equal(t, RecursivePut, <-result)
}

// TestSemaphoreDelayTimeout: a semaphore take with a finite wait resumes
// with Timeout once the wait expires without a matching Put, and leaves no
// trace on the wait queue.
func TestSemaphoreDelayTimeout(t *testing.T) {
	k := New(testConfig())
	s := k.NewSemaphore(0, 1)
	result := make(chan Status, 1)

	k.TaskMake("t", 1, 4096, func(self *TCB) {
		result <- s.Take(self, Wait(3))
	}, nil)

	k.Boot()
	time.Sleep(2 * time.Millisecond)
	for i := 0; i < 3; i++ {
		k.Tick()
	}

	require.Equal(t, Timeout, <-result)
	assert.True(t, s.waiters.empty())
	assert.Equal(t, int32(0), s.count)
}

// TestSemaphoreDeleteWithOutstandingPermitsCantDelete: a semaphore whose
// counter sits below the configured count (a permit is out, but nobody is
// blocked) cannot be deleted.
func TestSemaphoreDeleteWithOutstandingPermitsCantDelete(t *testing.T) {
	k := New(testConfig())
	s := k.NewSemaphore(1, 1)
	result := make(chan Status, 2)

	k.TaskMake("t", 1, 4096, func(self *TCB) {
		require.Equal(t, OK, s.Take(self, WaitNone))
		result <- s.Delete(self)
		require.Equal(t, OK, s.Put(self))
		result <- s.Delete(self)
	}, nil)

	k.Boot()
	assert.Equal(t, CantDelete, <-result)
	assert.Equal(t, OK, <-result, "full semaphore deletes cleanly")
}

// TestSemaphoreDeletedAnswersNotInitialised: after Delete, every operation
// reports NotInitialised rather than acting on the zeroed object.
func TestSemaphoreDeletedAnswersNotInitialised(t *testing.T) {
	k := New(testConfig())
	s := k.NewSemaphore(1, 1)
	result := make(chan Status, 2)

	k.TaskMake("t", 1, 4096, func(self *TCB) {
		require.Equal(t, OK, s.Delete(self))
		result <- s.Take(self, WaitNone)
		result <- s.Put(self)
	}, nil)

	k.Boot()
	assert.Equal(t, NotInitialised, <-result)
	assert.Equal(t, NotInitialised, <-result)
}

// TestSemaphoreDeleteWakesWaiters: deleting a blocking semaphore wakes any
// waiters with Deleted instead of leaving them blocked forever.
func TestSemaphoreDeleteWakesWaiters(t *testing.T) {
	k := New(testConfig())
	s := k.NewSemaphore(0, 1)
	result := make(chan Status, 1)
	waiting := make(chan struct{})

	k.TaskMake("waiter", 1, 4096, func(self *TCB) {
		close(waiting)
		result <- s.Take(self, WaitForever)
	}, nil)

	k.Boot()
	<-waiting
	time.Sleep(2 * time.Millisecond)

	k.TaskMake("deleter", 1, 4096, func(self *TCB) {
		s.Delete(self)
	}, nil)

	assert.Equal(t, Deleted, <-result)
}
