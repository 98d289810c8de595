package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCBSlabAllocFreeReuse(t *testing.T) {
	s := newTCBSlab(4)
	a := s.alloc()
	b := s.alloc()
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotEqual(t, a.id, b.id)

	s.free(a)
	c := s.alloc()
	assert.Equal(t, a.id, c.id, "freeing the lowest slot should make it the next alloc")
}

func TestTCBSlabExhaustion(t *testing.T) {
	s := newTCBSlab(2)
	require.NotNil(t, s.alloc())
	require.NotNil(t, s.alloc())
	assert.Nil(t, s.alloc())
}

func TestTCBSlabFreeIsIdempotent(t *testing.T) {
	s := newTCBSlab(2)
	a := s.alloc()
	s.free(a)
	assert.NotPanics(t, func() { s.free(a) })
}
