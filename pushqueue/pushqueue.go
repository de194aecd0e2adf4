// Package pushqueue implements the bounded outbound FIFO described in spec.md §4.D:
// message-id correlation, at-most-one in-flight submission, ACK-driven drain, and a
// per-item delivery callback.
package pushqueue

import "funahara/lwm2mdp/coap"

// Capacity is the fixed queue depth (spec.md §5).
const Capacity = 10

// Status is the synchronous outcome of a Push call.
type Status int

const (
	OK Status = iota
	Busy
	NotPossible
	Fault
)

// DoneFunc is invoked exactly once per accepted entry, when its ACK is resolved.
type DoneFunc func(success bool, ctx interface{})

type entry struct {
	payload       []byte
	contentFormat coap.ContentFormat
	sent          bool // submitted to the transport and awaiting ACK
	hasMessageID  bool
	messageID     uint16
	done          DoneFunc
	ctx           interface{}
}

// Queue is a fixed-capacity FIFO of outbound payloads.
type Queue struct {
	transport coap.Transport
	entries   []*entry
	inFlight  bool
}

// NewQueue constructs a Queue bound to the given transport.
func NewQueue(transport coap.Transport) *Queue {
	return &Queue{transport: transport}
}

// Len reports the number of entries currently queued (sent or pending).
func (q *Queue) Len() int { return len(q.entries) }

// Push enqueues one outbound payload (spec.md §4.D). If nothing is currently
// in-flight, it attempts an immediate transport submit; otherwise the entry waits for
// the ACK-driven drain scan (the queue never speculates past one in-flight push,
// spec.md §4.D "Ordering").
func (q *Queue) Push(payload []byte, contentFormat coap.ContentFormat, done DoneFunc, ctx interface{}) Status {
	if len(q.entries) >= Capacity {
		return NotPossible
	}
	e := &entry{payload: payload, contentFormat: contentFormat, done: done, ctx: ctx}
	q.entries = append(q.entries, e)
	if q.inFlight {
		return Busy
	}
	return q.attemptSubmit(e)
}

func (q *Queue) attemptSubmit(e *entry) Status {
	result, mid := q.transport.Push(e.payload, e.contentFormat)
	switch result {
	case coap.PushOK:
		e.sent = true
		e.hasMessageID = true
		e.messageID = mid
		q.inFlight = true
		return OK
	case coap.PushBusy:
		e.sent = false
		return Busy
	default:
		q.removeEntry(e)
		return Fault
	}
}

// Ack correlates a transport delivery notification with its queued entry by
// message-id, fires that entry's DoneFunc exactly once, releases the entry, and
// attempts to submit the next pending (sent=false) entry in FIFO order.
func (q *Queue) Ack(result coap.AckResult, messageID uint16) {
	idx := -1
	for i, e := range q.entries {
		if e.hasMessageID && e.messageID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	e := q.entries[idx]
	q.removeAt(idx)
	q.inFlight = false
	if e.done != nil {
		e.done(result == coap.AckReceived, e.ctx)
	}
	for _, next := range q.entries {
		if !next.sent {
			q.attemptSubmit(next)
			break
		}
	}
}

func (q *Queue) removeEntry(e *entry) {
	for i, c := range q.entries {
		if c == e {
			q.removeAt(i)
			return
		}
	}
}

func (q *Queue) removeAt(i int) {
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
}
