package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDelayListDeltaBookkeeping walks the list through waiters of 5, 15
// and 20 ticks inserted together: internal deltas come out 5, 10, 5. Three
// ticks later the middle waiter is removed, which folds its remaining
// delta into its successor so the tail's absolute wake time stays 20.
func TestDelayListDeltaBookkeeping(t *testing.T) {
	d := &delayList{}
	a := &TCB{}
	b := &TCB{}
	c := &TCB{}

	d.insert(a, 5)
	d.insert(b, 15)
	d.insert(c, 20)

	assert.Equal(t, uint32(5), a.delta)
	assert.Equal(t, uint32(10), b.delta)
	assert.Equal(t, uint32(5), c.delta)

	for i := 0; i < 3; i++ {
		require.Empty(t, d.tick())
	}
	assert.Equal(t, uint32(2), a.delta)

	require.Equal(t, OK, d.remove(b))
	assert.Equal(t, uint32(2), a.delta)
	assert.Equal(t, uint32(15), c.delta, "b's remaining 10 folds into c's 5; tail still wakes at tick 20")
}

func TestDelayListTickExpiresOnlyHeadWhenDue(t *testing.T) {
	d := &delayList{}
	a := &TCB{}
	b := &TCB{}
	d.insert(a, 1)
	d.insert(b, 3)

	expired := d.tick()
	require.Len(t, expired, 1)
	assert.Equal(t, a, expired[0])
	assert.Equal(t, uint32(2), b.delta)

	assert.Empty(t, d.tick())
	expired2 := d.tick()
	require.Len(t, expired2, 1)
	assert.Equal(t, b, expired2[0])
	assert.True(t, d.empty())
}

func TestDelayListRemoveNotDelayed(t *testing.T) {
	d := &delayList{}
	t1 := &TCB{}
	assert.Equal(t, NotDelayed, d.remove(t1))
}
