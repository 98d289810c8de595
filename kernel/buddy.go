package kernel

import "golang.org/x/exp/constraints"

// buddyHeap is a contiguous byte region of size 2^max managed as free-lists
// indexed by block order: allocation splits the smallest free block that
// fits down to the requested order, and freeing coalesces a block with its
// buddy as long as the buddy is also free. Offsets into the backing array
// stand in for raw pointers — Go's GC already owns real memory, so the
// allocator's job is the split/coalesce bookkeeping, not handing out raw
// bytes.
type buddyHeap struct {
	min, max int
	mem      []byte
	free     [][]int // free[order] is a stack of block offsets at that order
}

func newBuddyHeap(min, max int) *buddyHeap {
	if min < 0 || max < min || max > 30 {
		panic("kernel: invalid buddy heap orders")
	}
	h := &buddyHeap{
		min:  min,
		max:  max,
		mem:  make([]byte, 1<<uint(max)),
		free: make([][]int, max+1),
	}
	h.free[max] = append(h.free[max], 0)
	return h
}

// orderOf returns ceil(log2(max(size, 2^min))), the smallest order whose
// block covers size.
func (h *buddyHeap) orderOf(size int) int {
	o := h.min
	for (1 << uint(o)) < size {
		o++
	}
	return o
}

// alloc scans free-lists from order upward for a non-empty one, splitting
// repeatedly down to the requested order. Returns ok=false if order exceeds
// MAX or no block is available.
func (h *buddyHeap) alloc(order int) (offset int, ok bool) {
	if order > h.max {
		return 0, false
	}
	if order < h.min {
		order = h.min
	}
	src := order
	for src <= h.max && len(h.free[src]) == 0 {
		src++
	}
	if src > h.max {
		return 0, false
	}
	// pop the block at src, then split it down to `order`, pushing each
	// right-half buddy onto its (smaller) order's free-list.
	n := len(h.free[src])
	off := h.free[src][n-1]
	h.free[src] = h.free[src][:n-1]
	for src > order {
		src--
		buddyOff := off + (1 << uint(src))
		h.free[src] = append(h.free[src], buddyOff)
	}
	return off, true
}

// free repeatedly computes the buddy address by XORing the offset-from-base
// with 1<<order, searching that order's free-list for it; coalescing stops
// when no buddy is free or max is reached. A free below min is ignored, and
// the coalescing search is linear, which is acceptable because free-list
// counts shrink exponentially with order.
func (h *buddyHeap) free_(offset, order int) {
	if order < h.min {
		return
	}
	for order < h.max {
		buddyOff := offset ^ (1 << uint(order))
		list := h.free[order]
		idx := -1
		for i, o := range list {
			if o == buddyOff {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		// unlink the buddy and coalesce upward.
		list[idx] = list[len(list)-1]
		h.free[order] = list[:len(list)-1]
		if buddyOff < offset {
			offset = buddyOff
		}
		order++
	}
	h.free[order] = append(h.free[order], offset)
}

// allocSize is the size-based convenience wrapper: it rounds up to an order
// via orderOf and returns a live slice view into the backing region plus
// the offset/order pair needed to free it later. The offset is the
// allocation's real handle; the returned slice is a convenience view for
// callers that want to read/write the block directly.
func (h *buddyHeap) allocSize(size int) (block []byte, offset, order int, ok bool) {
	if size <= 0 {
		return nil, 0, 0, false
	}
	order = h.orderOf(size)
	offset, ok = h.alloc(order)
	if !ok {
		return nil, 0, 0, false
	}
	return h.mem[offset : offset+(1<<uint(order))], offset, order, true
}

// freeBlock returns a block previously obtained from allocSize, identified
// by the (offset, order) pair allocSize returned — the caller (here, the
// kernel) is expected to remember both, exactly as the C buddy allocator
// requires its caller to remember the block size at free time.
func (h *buddyHeap) freeBlock(offset, order int) {
	h.free_(offset, order)
}

// roundUpPow2 rounds n up to the next power of two, used to size the
// message queue ring (index wrapping needs a power-of-two capacity) and the
// synthesized stack region. Generic over the integer constraint so one
// definition serves every cursor/size type.
func roundUpPow2[T constraints.Integer](n T) T {
	if n <= 1 {
		return 1
	}
	n--
	var p T = 1
	for p <= n {
		p <<= 1
	}
	return p
}
