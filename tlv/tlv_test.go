package tlv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"funahara/lwm2mdp/registry"
)

func buildAsset(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(nil, nil, nil)
	require.Equal(t, registry.OK, r.CreateResource("/asset/0/count", registry.ModeVariable))
	require.Equal(t, registry.OK, r.CreateResource("/asset/0/name", registry.ModeVariable))
	require.Equal(t, registry.OK, r.CreateResource("/asset/0/ratio", registry.ModeVariable))
	require.Equal(t, registry.OK, r.CreateResource("/asset/0/active", registry.ModeVariable))
	require.Equal(t, registry.OK, r.SetInt("/asset/0/count", 42))
	require.Equal(t, registry.OK, r.SetString("/asset/0/name", "sensor-a"))
	require.Equal(t, registry.OK, r.SetFloat("/asset/0/ratio", 1.5))
	require.Equal(t, registry.OK, r.SetBool("/asset/0/active", true))
	return r
}

func findAsset(r *registry.Registry) *registry.Asset {
	for _, a := range r.Assets() {
		return a
	}
	return nil
}

func TestEncodeDecodeAssetRoundTrip(t *testing.T) {
	r := buildAsset(t)
	asset := findAsset(r)
	require.NotNil(t, asset)

	enc, err := EncodeAsset(asset, -1)
	require.NoError(t, err)

	decoded, err := DecodeAsset(enc)
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	in := asset.Instances()[0]
	require.Equal(t, in.ID(), decoded[0].InstanceID)

	byID := map[uint16]FieldValue{}
	for _, fv := range decoded[0].Fields {
		byID[fv.FieldID] = fv
	}
	for _, f := range in.Fields() {
		fv, ok := byID[f.ID()]
		require.True(t, ok, "field %s missing from decoded TLV", f.Path())
		got, err := DecodeValue(f.Type(), fv.Raw)
		require.NoError(t, err)
		require.Equal(t, f.Value(), got)
	}
}

func TestEncodeAssetSingleFieldRestriction(t *testing.T) {
	r := buildAsset(t)
	asset := findAsset(r)
	in := asset.Instances()[0]

	var countFieldID uint16
	for _, f := range in.Fields() {
		if f.Path() == "/asset/0/count" {
			countFieldID = f.ID()
		}
	}

	enc, err := EncodeAsset(asset, int(countFieldID))
	require.NoError(t, err)

	fields, err := DecodeInstanceFields(enc)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	require.Equal(t, countFieldID, fields[0].FieldID)

	val, err := DecodeValue(registry.TypeInt, fields[0].Raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), val.Int)
}
