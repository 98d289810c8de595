package kernel

import (
	"sync/atomic"

	"github.com/freeman1216/badrtos/arch"
)

// QueueStatus is the message queue's own result taxonomy, kept separate
// from Status because queue results never travel through a blocked task's
// saved return slot — post and pull complete immediately in whatever
// context issued them.
type QueueStatus uint8

const (
	QueueEmpty QueueStatus = iota
	QueueOK
	QueueBadParameters
	QueueOverrun
	QueueNotInitialised
)

func (s QueueStatus) String() string {
	switch s {
	case QueueEmpty:
		return "QUEUE-EMPTY"
	case QueueOK:
		return "QUEUE-OK"
	case QueueBadParameters:
		return "QUEUE-BAD-PARAMETERS"
	case QueueOverrun:
		return "QUEUE-OVERRUN"
	case QueueNotInitialised:
		return "QUEUE-NOT-INITIALISED"
	default:
		return "QUEUE-UNKNOWN-STATUS"
	}
}

// Message is one (signal, argument) pair: a signal number plus one opaque
// argument word.
type Message struct {
	Signal uint32
	Arg    any
}

// MsgQueue is a lock-free message ring: post reserves its slot with an
// exclusive-access sequence on the producer cursor, so a producer preempted
// mid-post by a higher-priority producer never double-claims a slot, and
// neither side ever takes the kernel lock.
// Capacity is a power of two so index wrapping is a mask, and one slot is
// always left empty to tell full from empty.
//
// The contract is a single consumer against producers strictly ordered by
// interrupt priority (a producer may only be preempted by a higher-priority
// producer, which runs to completion before the preempted post resumes).
// Unordered concurrent producers can publish a slot before its payload is
// written.
type MsgQueue struct {
	ex   arch.Exclusive
	buf  []Message
	mask uint32
	head uint32 // producer cursor: next slot post will write
	tail uint32 // consumer cursor: next slot pull will read
}

// NewMsgQueue creates a message queue whose ring holds capacity entries
// rounded up to the next power of two (one of which stays empty), backed by
// the sync/atomic reference Exclusive.
func NewMsgQueue(capacity int) *MsgQueue {
	return NewMsgQueueWithExclusive(capacity, atomicExclusive{})
}

// NewMsgQueueWithExclusive is NewMsgQueue for a caller supplying its own
// arch.Exclusive backend.
func NewMsgQueueWithExclusive(capacity int, ex arch.Exclusive) *MsgQueue {
	if capacity < 2 {
		capacity = 2
	}
	n := roundUpPow2(uint32(capacity))
	return &MsgQueue{ex: ex, buf: make([]Message, n), mask: n - 1}
}

// Post appends one (signal, arg) pair, returning QueueOverrun if the ring
// is full. The slot is reserved by advancing the producer cursor under an
// exclusive-access sequence before the payload is written; on hardware a
// data-memory barrier follows the payload write. Here the payload is a plain
// write after the reservation, with no barrier of its own after it.
func (q *MsgQueue) Post(signal uint32, arg any) QueueStatus {
	if len(q.buf) == 0 {
		return QueueNotInitialised
	}
	var head uint32
	for {
		var token uint32
		head, token = q.ex.LoadLinked(&q.head)
		next := (head + 1) & q.mask
		if next == atomic.LoadUint32(&q.tail) {
			return QueueOverrun
		}
		if q.ex.StoreConditional(&q.head, token, next) {
			break
		}
	}
	q.buf[head] = Message{Signal: signal, Arg: arg}
	return QueueOK
}

// Pull removes the oldest (signal, arg) pair into out, returning QueueEmpty
// if nothing is queued. Single consumer only.
func (q *MsgQueue) Pull(out *Message) QueueStatus {
	if out == nil {
		return QueueBadParameters
	}
	if len(q.buf) == 0 {
		return QueueNotInitialised
	}
	tail := atomic.LoadUint32(&q.tail)
	if tail == atomic.LoadUint32(&q.head) {
		return QueueEmpty
	}
	*out = q.buf[tail]
	atomic.StoreUint32(&q.tail, (tail+1)&q.mask)
	return QueueOK
}

// Len reports the number of queued-but-unpulled messages. Racy by
// construction against a concurrent Post/Pull — intended for diagnostics,
// not control flow.
func (q *MsgQueue) Len() int {
	head := atomic.LoadUint32(&q.head)
	tail := atomic.LoadUint32(&q.tail)
	return int((head - tail) & q.mask)
}
