package pushqueue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"funahara/lwm2mdp/coap"
)

type fakeTransport struct {
	nextMessageID uint16
	result        coap.PushResult
	submitted     []uint16
}

func (t *fakeTransport) Push(payload []byte, cf coap.ContentFormat) (coap.PushResult, uint16) {
	if t.result != coap.PushOK {
		return t.result, 0
	}
	t.nextMessageID++
	id := t.nextMessageID
	t.submitted = append(t.submitted, id)
	return coap.PushOK, id
}

func TestPushAndAckInvokesCallbackExactlyOnce(t *testing.T) {
	tr := &fakeTransport{result: coap.PushOK}
	q := NewQueue(tr)

	calls := 0
	var gotSuccess bool
	status := q.Push([]byte("payload"), coap.ContentFormatCBOR, func(success bool, ctx interface{}) {
		calls++
		gotSuccess = success
	}, 3)
	require.Equal(t, OK, status)
	require.Len(t, tr.submitted, 1)

	q.Ack(coap.AckReceived, tr.submitted[0])
	require.Equal(t, 1, calls)
	require.True(t, gotSuccess)
	require.Equal(t, 0, q.Len())
}

func TestQueueFullReturnsNotPossible(t *testing.T) {
	tr := &fakeTransport{result: coap.PushBusy}
	q := NewQueue(tr)
	for i := 0; i < Capacity; i++ {
		status := q.Push([]byte{byte(i)}, coap.ContentFormatCBOR, nil, nil)
		require.NotEqual(t, NotPossible, status)
	}
	status := q.Push([]byte("overflow"), coap.ContentFormatCBOR, nil, nil)
	require.Equal(t, NotPossible, status)
}

func TestOrderedDrainOnAck(t *testing.T) {
	tr := &fakeTransport{result: coap.PushOK}
	q := NewQueue(tr)

	var order []int
	done := func(i int) DoneFunc {
		return func(success bool, ctx interface{}) { order = append(order, i) }
	}

	// First push goes in-flight immediately; while it is in flight the second push is
	// queued without a transport attempt and reports Busy.
	status1 := q.Push([]byte("a"), coap.ContentFormatCBOR, done(1), nil)
	require.Equal(t, OK, status1)

	tr.result = coap.PushBusy
	status2 := q.Push([]byte("b"), coap.ContentFormatCBOR, done(2), nil)
	require.Equal(t, Busy, status2)

	tr.result = coap.PushOK
	// ACK the first; the queue should drain the second automatically.
	q.Ack(coap.AckReceived, tr.submitted[0])
	require.Len(t, tr.submitted, 2)

	q.Ack(coap.AckReceived, tr.submitted[1])
	require.Equal(t, []int{1, 2}, order)
	require.Equal(t, 0, q.Len())
}

func TestHardErrorReleasesEntryAndReportsFault(t *testing.T) {
	tr := &fakeTransport{result: coap.PushFault}
	q := NewQueue(tr)
	status := q.Push([]byte("x"), coap.ContentFormatCBOR, nil, nil)
	require.Equal(t, Fault, status)
	require.Equal(t, 0, q.Len())
}
