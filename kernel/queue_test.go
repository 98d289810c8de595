package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQListInsertByPriorityOrdersAndPreservesFIFOAmongEquals(t *testing.T) {
	q := newQList(tagReadyHead)
	low1 := &TCB{effP: 5}
	low2 := &TCB{effP: 5}
	high := &TCB{effP: 1}

	q.insertByPriority(low1)
	q.insertByPriority(high)
	q.insertByPriority(low2)

	require.Equal(t, high, q.removeHead())
	require.Equal(t, low1, q.removeHead())
	require.Equal(t, low2, q.removeHead())
	assert.True(t, q.empty())
}

func TestQListInsertByPriorityFrontBeatsEqualPriorityPeers(t *testing.T) {
	q := newQList(tagReadyHead)
	a := &TCB{effP: 2}
	b := &TCB{effP: 2}
	q.insertByPriority(a)
	q.insertByPriorityFront(b)

	assert.Equal(t, b, q.removeHead())
	assert.Equal(t, a, q.removeHead())
}

func TestQListInsertByPriorityFrontStaysBehindHigherPriority(t *testing.T) {
	q := newQList(tagReadyHead)
	high := &TCB{effP: 1}
	bumped := &TCB{effP: 3}
	q.insertByPriority(high)
	q.insertByPriorityFront(bumped)

	assert.Equal(t, high, q.removeHead())
	assert.Equal(t, bumped, q.removeHead())
}

func TestQListRemoveEntryRejectsForeignMember(t *testing.T) {
	q1 := newQList(tagReadyHead)
	q2 := newQList(tagBlockedHead)
	t1 := &TCB{}
	q1.insertTail(t1)

	assert.Equal(t, WrongQueue, q2.removeEntry(t1))
	assert.Equal(t, OK, q1.removeEntry(t1))
}

func TestQListRemoveEntryMidList(t *testing.T) {
	q := newQList(tagBlockedHead)
	a, b, c := &TCB{}, &TCB{}, &TCB{}
	q.insertTail(a)
	q.insertTail(b)
	q.insertTail(c)

	require.Equal(t, OK, q.removeEntry(b))
	assert.Equal(t, a, q.removeHead())
	assert.Equal(t, c, q.removeHead())
}

// TestQListHeadTagFollowsDisplacedHead pins the discriminator invariant: a
// node inserted ahead of the old head takes the head tag, the displaced
// head drops to member, and removing the head restores the tag on its
// successor.
func TestQListHeadTagFollowsDisplacedHead(t *testing.T) {
	q := newQList(tagMutexHead)
	a := &TCB{effP: 5}
	b := &TCB{effP: 1}
	q.insertByPriority(a)
	require.Equal(t, tagMutexHead, a.qtag)

	q.insertByPriority(b)
	assert.Equal(t, tagMutexHead, b.qtag)
	assert.Equal(t, tagMutexMember, a.qtag)

	q.removeHead()
	assert.Equal(t, tagMutexHead, a.qtag)
}
