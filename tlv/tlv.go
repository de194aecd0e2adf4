// Package tlv implements the LWM2M TLV wire codec of spec.md §4.A, bit-exact with
// OMA-TS-LightweightM2M-V1_0_2 §6.4.3. It is a direct generalization of the teacher's
// Lwm2mTLV.Marshal/Unmarshal/TotalLength (lwm2m_tlv.go) from the object/instance/resource
// triple-key model to the flat asset-data-path registry: the codec walks
// []*registry.Field instead of (objectID, instanceID, resourceID).
package tlv

import (
	"encoding/binary"
	"fmt"
	"math"

	"funahara/lwm2mdp/registry"
)

// Type-of-identifier kind, bits 7-6 of the TLV type byte. Only the two kinds this data
// plane emits are named; OMA also defines Resource Instance and Multiple Resource for
// array-valued resources, which this registry's flat model has no need of.
const (
	kindObjectInstance byte = 0
	kindResource       byte = 3
)

// rawTLV is one structural TLV node: 1 byte type | 1-2 byte id | 0-3 byte length | value.
type rawTLV struct {
	kind  byte
	id    uint16
	value []byte
}

func (t *rawTLV) length() uint32 { return uint32(len(t.value)) }

// Marshal encodes one TLV node, choosing the narrowest id/length field widths.
func (t *rawTLV) Marshal() []byte {
	ret := make([]byte, 1)
	ret[0] = t.kind << 6
	if t.id <= 0xFF {
		ret = append(ret, byte(t.id))
	} else {
		ret[0] += 1 << 5
		ret = append(ret, byte(t.id>>8), byte(t.id&0x00FF))
	}
	length := t.length()
	switch {
	case length <= 0x07:
		ret[0] += byte(length)
	case length <= 0xFF:
		ret[0] += 1 << 3
		ret = append(ret, byte(length))
	case length <= 0xFFFF:
		ret[0] += 2 << 3
		ret = append(ret, byte(length>>8), byte(length&0x00FF))
	default:
		ret[0] += 3 << 3
		ret = append(ret, byte(length>>16), byte((length>>8)&0x00FF), byte(length&0x00FF))
	}
	ret = append(ret, t.value...)
	return ret
}

// Unmarshal parses one TLV node from the front of raw and returns the number of bytes
// consumed, or -1 if raw does not hold a complete node.
func (t *rawTLV) Unmarshal(raw []byte) int {
	n := len(raw)
	if n < 1 {
		return -1
	}
	t.kind = (raw[0] >> 6) & 0x03
	idx := 1

	if (raw[0]>>5)&0x01 == 0 {
		if n < idx+1 {
			return -1
		}
		t.id = uint16(raw[idx])
		idx++
	} else {
		if n < idx+2 {
			return -1
		}
		t.id = binary.BigEndian.Uint16(raw[idx : idx+2])
		idx += 2
	}

	var length uint32
	switch (raw[0] >> 3) & 0x03 {
	case 0:
		length = uint32(raw[0] & 0x07)
	case 1:
		if n < idx+1 {
			return -1
		}
		length = uint32(raw[idx])
		idx++
	case 2:
		if n < idx+2 {
			return -1
		}
		length = uint32(binary.BigEndian.Uint16(raw[idx : idx+2]))
		idx += 2
	case 3:
		if n < idx+3 {
			return -1
		}
		length = binary.BigEndian.Uint32(append([]byte{0}, raw[idx:idx+3]...))
		idx += 3
	}

	if n < idx+int(length) {
		return -1
	}
	t.value = make([]byte, length)
	copy(t.value, raw[idx:idx+int(length)])
	idx += int(length)
	return idx
}

func parseSequence(raw []byte) ([]*rawTLV, error) {
	var out []*rawTLV
	offset := 0
	for offset < len(raw) {
		var t rawTLV
		n := t.Unmarshal(raw[offset:])
		if n < 0 {
			return nil, fmt.Errorf("tlv: malformed TLV at offset %d", offset)
		}
		out = append(out, &t)
		offset += n
	}
	return out, nil
}

// EncodeValue converts a registry field value to its TLV byte encoding (spec.md §4.A
// "Value encoding by field type"): int is always written as 4 bytes big-endian; bool is
// one byte 0x00/0x01; string is raw UTF-8 bytes; float is 8-byte IEEE-754 double,
// big-endian.
func EncodeValue(t registry.ValueType, v registry.Value) ([]byte, error) {
	switch t {
	case registry.TypeInt:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(v.Int)))
		return buf, nil
	case registry.TypeBool:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case registry.TypeString:
		return []byte(v.Str), nil
	case registry.TypeFloat:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.Float))
		return buf, nil
	default:
		return nil, fmt.Errorf("tlv: field of type none is not writable")
	}
}

// DecodeValue converts a TLV byte string back to a typed registry value. Integer and
// bool accept only the legal lengths (1/2/4 and 1); float accepts 4 (widened) or 8.
func DecodeValue(t registry.ValueType, raw []byte) (registry.Value, error) {
	switch t {
	case registry.TypeInt:
		switch len(raw) {
		case 1:
			return registry.Value{Type: registry.TypeInt, Int: int64(int8(raw[0]))}, nil
		case 2:
			return registry.Value{Type: registry.TypeInt, Int: int64(int16(binary.BigEndian.Uint16(raw)))}, nil
		case 4:
			return registry.Value{Type: registry.TypeInt, Int: int64(int32(binary.BigEndian.Uint32(raw)))}, nil
		default:
			return registry.Value{}, fmt.Errorf("tlv: illegal int length %d", len(raw))
		}
	case registry.TypeBool:
		if len(raw) != 1 {
			return registry.Value{}, fmt.Errorf("tlv: illegal bool length %d", len(raw))
		}
		return registry.Value{Type: registry.TypeBool, Bool: raw[0] == 1}, nil
	case registry.TypeString:
		return registry.Value{Type: registry.TypeString, Str: string(raw)}, nil
	case registry.TypeFloat:
		switch len(raw) {
		case 4:
			return registry.Value{Type: registry.TypeFloat, Float: float64(math.Float32frombits(binary.BigEndian.Uint32(raw)))}, nil
		case 8:
			return registry.Value{Type: registry.TypeFloat, Float: math.Float64frombits(binary.BigEndian.Uint64(raw))}, nil
		default:
			return registry.Value{}, fmt.Errorf("tlv: illegal float length %d", len(raw))
		}
	default:
		return registry.Value{}, fmt.Errorf("tlv: unsupported type %v", t)
	}
}

// FieldValue is one decoded resource TLV, still structural: the caller resolves
// FieldID against the target instance's field list to learn its type.
type FieldValue struct {
	FieldID uint16
	Raw     []byte
}

// InstanceValue is one decoded object-instance TLV.
type InstanceValue struct {
	InstanceID uint16
	Fields     []FieldValue
}

func findFieldByID(in *registry.Instance, id uint16) *registry.Field {
	for _, f := range in.Fields() {
		if f.ID() == id {
			return f
		}
	}
	return nil
}

// EncodeAsset implements WriteObjectToTLV of spec.md §4.A. fieldID == -1 emits one
// object-instance TLV per instance, each wrapping resource TLVs for every
// writable-by-client field. fieldID >= 0 restricts the output to resource TLVs (no
// instance wrapper) for that one field across every instance.
func EncodeAsset(asset *registry.Asset, fieldID int) ([]byte, error) {
	var out []byte
	for _, in := range asset.Instances() {
		if fieldID < 0 {
			var inner []byte
			for _, f := range in.Fields() {
				if !f.ClientWritable() || f.Type() == registry.TypeNone {
					continue
				}
				val, err := EncodeValue(f.Type(), f.Value())
				if err != nil {
					return nil, err
				}
				inner = append(inner, (&rawTLV{kind: kindResource, id: f.ID(), value: val}).Marshal()...)
			}
			out = append(out, (&rawTLV{kind: kindObjectInstance, id: in.ID(), value: inner}).Marshal()...)
			continue
		}

		f := findFieldByID(in, uint16(fieldID))
		if f == nil || !f.ClientWritable() || f.Type() == registry.TypeNone {
			continue
		}
		val, err := EncodeValue(f.Type(), f.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, (&rawTLV{kind: kindResource, id: f.ID(), value: val}).Marshal()...)
	}
	return out, nil
}

// DecodeAsset parses a full bulk-read/write payload: a sequence of object-instance
// TLVs, each containing a sequence of resource TLVs.
func DecodeAsset(raw []byte) ([]InstanceValue, error) {
	tops, err := parseSequence(raw)
	if err != nil {
		return nil, err
	}
	out := make([]InstanceValue, 0, len(tops))
	for _, top := range tops {
		if top.kind != kindObjectInstance {
			return nil, fmt.Errorf("tlv: expected object-instance TLV, got kind %d", top.kind)
		}
		inner, err := parseSequence(top.value)
		if err != nil {
			return nil, err
		}
		iv := InstanceValue{InstanceID: top.id}
		for _, r := range inner {
			if r.kind != kindResource {
				return nil, fmt.Errorf("tlv: expected resource TLV, got kind %d", r.kind)
			}
			iv.Fields = append(iv.Fields, FieldValue{FieldID: r.id, Raw: r.value})
		}
		out = append(out, iv)
	}
	return out, nil
}

// DecodeInstanceFields parses a write-to-a-single-instance payload: a flat sequence of
// resource TLVs with no instance wrapper (spec.md §4.A "Decoder is strictly
// structural...").
func DecodeInstanceFields(raw []byte) ([]FieldValue, error) {
	tops, err := parseSequence(raw)
	if err != nil {
		return nil, err
	}
	out := make([]FieldValue, 0, len(tops))
	for _, r := range tops {
		if r.kind != kindResource {
			return nil, fmt.Errorf("tlv: expected resource TLV, got kind %d", r.kind)
		}
		out = append(out, FieldValue{FieldID: r.id, Raw: r.value})
	}
	return out, nil
}
