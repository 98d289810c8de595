package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuddyHeapSplitAndCoalesce: a 4096-byte heap (max order 12, min 5),
// two 100-byte allocations landing at order 7 (128 bytes, the smallest
// order covering 100 bytes), and both frees coalescing back into one
// order-12 block with every smaller free-list empty again.
func TestBuddyHeapSplitAndCoalesce(t *testing.T) {
	h := newBuddyHeap(5, 12)

	require.Equal(t, 7, h.orderOf(100))

	offA, okA := h.alloc(7)
	require.True(t, okA)
	offB, okB := h.alloc(7)
	require.True(t, okB)
	assert.NotEqual(t, offA, offB)

	h.free_(offA, 7)
	h.free_(offB, 7)

	assert.Len(t, h.free[12], 1)
	assert.Equal(t, 0, h.free[12][0])
	for order := 5; order < 12; order++ {
		assert.Empty(t, h.free[order])
	}
}

func TestBuddyHeapAllocSizeRoundsUpToMin(t *testing.T) {
	h := newBuddyHeap(5, 8)
	block, offset, order, ok := h.allocSize(4)
	require.True(t, ok)
	assert.Equal(t, 5, order)
	assert.Len(t, block, 32)
	h.freeBlock(offset, order)
	assert.Len(t, h.free[8], 1)
}

func TestBuddyHeapAllocFailsWhenExhausted(t *testing.T) {
	h := newBuddyHeap(5, 6)
	_, ok1 := h.alloc(6)
	require.True(t, ok1)
	_, ok2 := h.alloc(5)
	assert.False(t, ok2)
}

func TestRoundUpPow2(t *testing.T) {
	assert.Equal(t, uint32(1), roundUpPow2(uint32(1)))
	assert.Equal(t, uint32(8), roundUpPow2(uint32(5)))
	assert.Equal(t, uint32(16), roundUpPow2(uint32(16)))
}
