package lwm2mdp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"funahara/lwm2mdp/coap"
	"funahara/lwm2mdp/registry"
)

type fakeTransport struct {
	nextID uint16
}

func (t *fakeTransport) Push(payload []byte, cf coap.ContentFormat) (coap.PushResult, uint16) {
	t.nextID++
	return coap.PushOK, t.nextID
}

func TestNewWiresDispatcherToRegistry(t *testing.T) {
	dp := New(&Config{ObserveInterval: 30}, &fakeTransport{}, nil, nil)
	require.Equal(t, registry.OK, dp.Registry.CreateResource("/asset/v", registry.ModeVariable))
	require.Equal(t, registry.OK, dp.Registry.SetInt("/asset/v", 5))

	resp := dp.Handle(&coap.Request{Method: coap.MethodGet, URI: "/asset/v"})
	require.Equal(t, coap.CodeContent, resp.Code)
}
