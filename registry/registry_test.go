package registry

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"funahara/lwm2mdp/coap"
)

type fakeTransport struct {
	nextID    uint16
	submitted [][]byte
}

func (t *fakeTransport) Push(payload []byte, cf coap.ContentFormat) (coap.PushResult, uint16) {
	t.nextID++
	t.submitted = append(t.submitted, payload)
	return coap.PushOK, t.nextID
}

type fakeCore struct{}

func (fakeCore) Open() (bool, error) { return false, nil }
func (fakeCore) Close() error        { return nil }

func TestCreateResourcePrefixDuplicate(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/a/b", ModeVariable))
	require.Equal(t, Duplicate, r.CreateResource("/a", ModeVariable))
	require.Equal(t, Duplicate, r.CreateResource("/a/b/c", ModeVariable))
}

func TestSetIntThenGetIntRoundTrip(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/asset/v", ModeVariable))
	require.Equal(t, OK, r.SetInt("/asset/v", 5))

	var out int64
	require.Equal(t, OK, r.GetInt("/asset/v", &out))
	require.Equal(t, int64(5), out)
}

func TestPushLeafEnqueuesDecodableScalar(t *testing.T) {
	tr := &fakeTransport{}
	r := New(tr, nil, nil)
	require.Equal(t, OK, r.CreateResource("/asset/v", ModeVariable))
	require.Equal(t, OK, r.SetInt("/asset/v", 5))

	var gotSuccess bool
	var gotCtx interface{}
	status := r.Push("/asset/v", func(success bool, ctx interface{}) {
		gotSuccess = success
		gotCtx = ctx
	}, 3)
	require.Equal(t, OK, status)
	require.Len(t, tr.submitted, 1)

	var decoded int64
	require.NoError(t, cbor.Unmarshal(tr.submitted[0], &decoded))
	require.Equal(t, int64(5), decoded)

	r.Ack(coap.AckReceived, tr.nextID)
	require.True(t, gotSuccess)
	require.Equal(t, 3, gotCtx)
}

func TestServerGetOnAncestorProducesMultiLeafMap(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/asset/value1", ModeVariable))
	require.Equal(t, OK, r.CreateResource("/asset/value2", ModeVariable))
	require.Equal(t, OK, r.CreateResource("/asset/value3", ModeVariable))
	require.Equal(t, OK, r.CreateResource("/asset/value4", ModeVariable))
	require.Equal(t, OK, r.SetInt("/asset/value1", 5))
	require.Equal(t, OK, r.SetFloat("/asset/value2", 3.14))
	require.Equal(t, OK, r.SetString("/asset/value3", "helloWorld"))
	require.Equal(t, OK, r.SetBool("/asset/value4", false))

	v1, res := r.ServerRead("/asset/value1")
	require.Equal(t, OK, res)
	require.Equal(t, int64(5), v1.Int)

	entries := r.subtreeEntries("/asset")
	require.Len(t, entries, 4)
}

func TestNullThenGetReportsUnavailable(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/asset/v", ModeVariable))
	require.Equal(t, OK, r.SetInt("/asset/v", 5))
	require.Equal(t, OK, r.SetNull("/asset/v"))

	var out int64
	require.Equal(t, Unavailable, r.GetInt("/asset/v", &out))
}

func TestServerWritePermissionMatchesModeTable(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/asset/v", ModeVariable))
	// variable: client read+write, server read only.
	require.Equal(t, NotPermitted, r.ServerWrite("/asset/v", Value{Type: TypeInt, Int: 1}))

	require.Equal(t, OK, r.CreateResource("/setting/v", ModeSetting))
	// setting: server read+write, client read-only.
	require.Equal(t, OK, r.ServerWrite("/setting/v", Value{Type: TypeInt, Int: 9}))
	var out int64
	require.Equal(t, OK, r.GetInt("/setting/v", &out))
	require.Equal(t, int64(9), out)
	require.Equal(t, NotPermitted, r.SetInt("/setting/v", 1))
}

func TestReadInterceptDefersToHandler(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/setting/v", ModeSetting))

	var invoked bool
	require.Equal(t, OK, r.AddResourceEventHandler("/setting/v", func(path string, kind EventKind, args *ArgList, ctx interface{}) {
		invoked = true
		require.Equal(t, EventRead, kind)
	}, nil))

	_, res := r.ServerRead("/setting/v")
	require.Equal(t, Unavailable, res)
	require.True(t, invoked)
}

func TestRequestSessionDelegatesToFacade(t *testing.T) {
	r := New(nil, fakeCore{}, nil)
	h, err := r.RequestSession(nil)
	require.NoError(t, err)
	require.NoError(t, r.ReleaseSession(h))
}

func TestDeleteInstanceCascadesAssetDeletion(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/asset/v", ModeVariable))

	a, res := r.GetAsset("asset")
	require.Equal(t, OK, res)
	require.Len(t, a.Instances(), 1)
	instanceID := a.Instances()[0].ID()

	var released bool
	require.Equal(t, OK, r.AddResourceEventHandler("/asset/v", func(string, EventKind, *ArgList, interface{}) {
		released = true
	}, nil))

	require.Equal(t, OK, r.DeleteInstance("asset", instanceID))

	_, res = r.GetAsset("asset")
	require.Equal(t, NotFound, res)
	_, res = r.GetAssetByName("asset")
	require.Equal(t, NotFound, res)

	var out int64
	require.Equal(t, NotFound, r.GetInt("/asset/v", &out))

	// The field's handler is released, not just orphaned: re-creating the same path
	// and triggering a server read must not invoke the old closure.
	require.Equal(t, OK, r.CreateResource("/asset/v", ModeVariable))
	_, res = r.ServerRead("/asset/v")
	require.Equal(t, Unavailable, res)
	require.False(t, released)
}

func TestAssetEventHandlerFallsBackWhenNoFieldHandler(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/asset/v", ModeSetting))

	var kind EventKind
	var invoked bool
	require.Equal(t, OK, r.AddAssetEventHandler("asset", func(path string, k EventKind, args *ArgList, ctx interface{}) {
		invoked = true
		kind = k
	}, nil))

	_, res := r.ServerRead("/asset/v")
	require.Equal(t, Unavailable, res)
	require.True(t, invoked)
	require.Equal(t, EventRead, kind)
}

func TestRegistrationUpdateFormatsLeAndReservedNames(t *testing.T) {
	r := New(nil, nil, nil)
	require.Equal(t, OK, r.CreateResource("/lwm2m/v", ModeVariable))
	require.Equal(t, OK, r.CreateResource("/custom/v", ModeVariable))

	body := r.RegistrationUpdate()
	require.Contains(t, body, "</lwm2m/lwm2m/")
	require.Contains(t, body, "</le_custom/custom/")
}
