package kernel

// delayList is a delta-list of time-waiting tasks: each entry stores the
// tick count *since the previous entry* rather than an absolute wake time,
// so a single tick only ever decrements the head's delta, and inserting/
// removing mid-list only touches the two neighbors' deltas — not every
// entry, the way an absolute-deadline list would require.
type delayList struct {
	head, tail *TCB
}

func (d *delayList) empty() bool { return d.head == nil }

// insert places t so the list stays delta-sorted: walk forward consuming
// ticks from t's remaining budget until it fits strictly before an entry
// whose own delta is larger, then store the remainder as t's delta and
// subtract what t consumed from the following entry's delta.
func (d *delayList) insert(t *TCB, ticks uint32) {
	t.dtag = delayTagMember
	if d.head == nil {
		t.delta = ticks
		t.dprev, t.dnext = nil, nil
		d.head, d.tail = t, t
		d.head.dtag = delayTagHead
		return
	}
	cur := d.head
	remaining := ticks
	for cur != nil && cur.delta <= remaining {
		remaining -= cur.delta
		cur = cur.dnext
	}
	t.delta = remaining
	if cur == nil {
		t.dprev = d.tail
		t.dnext = nil
		d.tail.dnext = t
		d.tail = t
		return
	}
	cur.delta -= remaining
	t.dnext = cur
	t.dprev = cur.dprev
	if cur.dprev != nil {
		cur.dprev.dnext = t
	} else {
		d.head = t
		d.head.dtag = delayTagHead
		cur.dtag = delayTagMember
	}
	cur.dprev = t
}

// remove unlinks t ahead of its expiry (TaskDelayCancel, or a mutex/sem Take
// being satisfied before its timeout). Its delta is folded into the
// following entry so the total remains correct.
func (d *delayList) remove(t *TCB) Status {
	if t.dtag == delayTagNone {
		return NotDelayed
	}
	if t.dnext != nil {
		t.dnext.delta += t.delta
	}
	if t.dprev != nil {
		t.dprev.dnext = t.dnext
	} else {
		d.head = t.dnext
		if d.head != nil {
			d.head.dtag = delayTagHead
		}
	}
	if t.dnext != nil {
		t.dnext.dprev = t.dprev
	} else {
		d.tail = t.dprev
	}
	t.dprev, t.dnext = nil, nil
	t.dtag = delayTagNone
	return OK
}

// tick decrements the head's delta by one and pops every entry that has now
// reached zero, returning them in expiry order. Only the head is ever
// touched per tick — the delta-list's entire point.
func (d *delayList) tick() []*TCB {
	if d.head == nil {
		return nil
	}
	d.head.delta--
	var expired []*TCB
	for d.head != nil && d.head.delta == 0 {
		t := d.head
		d.head = t.dnext
		if d.head != nil {
			d.head.dprev = nil
			d.head.dtag = delayTagHead
		} else {
			d.tail = nil
		}
		t.dprev, t.dnext = nil, nil
		t.dtag = delayTagNone
		expired = append(expired, t)
	}
	return expired
}
