package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"funahara/lwm2mdp/coap"
	"funahara/lwm2mdp/pushqueue"
	"funahara/lwm2mdp/registry"
)

type fakeTransport struct {
	nextID    uint16
	submitted [][]byte
	formats   []coap.ContentFormat
}

func (t *fakeTransport) Push(payload []byte, cf coap.ContentFormat) (coap.PushResult, uint16) {
	t.nextID++
	t.submitted = append(t.submitted, payload)
	t.formats = append(t.formats, cf)
	return coap.PushOK, t.nextID
}

func TestOverflowRollsBackToPriorState(t *testing.T) {
	r := Create()
	ts := int64(1412320402000)
	var last registry.Result
	for i := 0; i < 10000; i++ {
		last = r.AddInt("intOverflow", int64(i), ts)
		ts += 100
		if last == registry.NoMemory {
			break
		}
	}
	require.Equal(t, registry.NoMemory, last)

	before := r.snapshot()
	res := r.AddInt("intOverflow", int64(999999), ts+100)
	require.Equal(t, registry.NoMemory, res)
	after := r.snapshot()

	require.Equal(t, before.timestamps, after.timestamps)
	require.Equal(t, len(before.order), len(after.order))
}

func TestPushResetsRecordToEmpty(t *testing.T) {
	r := Create()
	ts := int64(1412320402000)
	for i := 0; i < 5; i++ {
		require.Equal(t, registry.OK, r.AddInt("intOverflow", int64(i), ts))
		ts += 100
	}

	tr := &fakeTransport{}
	q := pushqueue.NewQueue(tr)
	res := r.Push(q, nil, nil)
	require.Equal(t, registry.OK, res)
	require.True(t, r.IsEmpty())
	require.Len(t, tr.submitted, 1)
	require.Equal(t, coap.ContentFormatZippedCBOR, tr.formats[0])
}

func TestUnorderedTimestampInsertSortsAscending(t *testing.T) {
	r := Create()
	tsValues := []int64{6000, 2000, 4000, 7000, 3000, 8000, 5000, 9000}
	for _, ts := range tsValues {
		require.Equal(t, registry.OK, r.AddInt("intValue", 1, ts))
	}
	require.Equal(t, []int64{2000, 3000, 4000, 5000, 6000, 7000, 8000, 9000}, r.timestamps)
}
