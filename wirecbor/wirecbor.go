// Package wirecbor implements the CBOR wire shapes described in spec.md §4.A: bare
// scalar responses for single-leaf reads, nested indefinite-length maps for multi-leaf
// reads/writes, and flat argument maps for execute payloads. It is deliberately
// decoupled from package registry (plain Go scalars in, plain Go scalars out) so that
// registry can depend on it without a import cycle.
package wirecbor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// noneText is the sentinel the spec uses to represent a field of type `none` on the
// wire: a literal CBOR text string, not a CBOR null (spec.md §4.A).
const noneText = "(null)"

// Entry pairs an asset-data path (or, for DecodeArguments, an argument name) with a
// decoded/encodable scalar. Scalar is one of: nil (none), int64, float64, bool, string.
type Entry struct {
	Path  string
	Value interface{}
}

// EncodeScalar encodes a single leaf value as a bare CBOR scalar (spec.md §4.A).
func EncodeScalar(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return cbor.Marshal(noneText)
	case int64:
		return cbor.Marshal(t)
	case float64:
		return cbor.Marshal(t)
	case bool:
		return cbor.Marshal(t)
	case string:
		return cbor.Marshal(t)
	default:
		return nil, fmt.Errorf("wirecbor: unsupported scalar type %T", v)
	}
}

// DecodeScalar decodes a bare CBOR scalar into a Go value (nil/int64/float64/bool/string).
func DecodeScalar(data []byte) (interface{}, error) {
	var v interface{}
	if err := cbor.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case string:
		if t == noneText {
			return nil, nil
		}
		return t, nil
	case uint64:
		return int64(t), nil
	case int64, float64, bool:
		return t, nil
	default:
		return nil, fmt.Errorf("wirecbor: unsupported scalar CBOR type %T", v)
	}
}

// mapNode is an insertion-ordered trie node used while building the nested map shape.
type mapNode struct {
	leaf     bool
	hasLeaf  bool
	value    interface{}
	keys     []string
	children map[string]*mapNode
}

func (n *mapNode) child(key string) *mapNode {
	if n.children == nil {
		n.children = make(map[string]*mapNode)
	}
	c, ok := n.children[key]
	if !ok {
		c = &mapNode{}
		n.children[key] = c
		n.keys = append(n.keys, key)
	}
	return c
}

// EncodeMap builds the nested CBOR map described in spec.md §4.A: entries are
// pre-sorted lexicographically by the caller (registry's subtree enumeration), depth
// is the number of leading path segments common to the subtree root to skip.
func EncodeMap(entries []Entry, depth int) ([]byte, error) {
	root := &mapNode{}
	for _, e := range entries {
		segs := strings.Split(strings.TrimPrefix(e.Path, "/"), "/")
		if depth > len(segs) {
			continue
		}
		rem := segs[depth:]
		if len(rem) == 0 {
			continue
		}
		cur := root
		for _, seg := range rem {
			cur = cur.child(seg)
		}
		cur.leaf = true
		cur.hasLeaf = true
		cur.value = e.Value
	}
	return encodeNode(root)
}

func encodeNode(n *mapNode) ([]byte, error) {
	if n.hasLeaf && len(n.keys) == 0 {
		return EncodeScalar(n.value)
	}
	var buf bytes.Buffer
	buf.WriteByte(0xBF) // indefinite-length map header (major type 5)
	for _, k := range n.keys {
		keyBytes, err := cbor.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		childBytes, err := encodeNode(n.children[k])
		if err != nil {
			return nil, err
		}
		buf.Write(childBytes)
	}
	buf.WriteByte(0xFF) // break
	return buf.Bytes(), nil
}

// DecodeMapLeaves walks a (possibly nested) CBOR map payload, reconstructing the full
// asset-data path of each leaf by string concatenation against basePath (spec.md §4.A:
// "the decoder walks the map, reconstructs child paths ... and calls the registry's set
// operation per leaf"). If data is itself a bare scalar, the result is a single entry
// at basePath.
func DecodeMapLeaves(data []byte, basePath string) ([]Entry, error) {
	var out []Entry
	err := walkDecode(data, basePath, &out)
	return out, err
}

func walkDecode(data []byte, path string, out *[]Entry) error {
	var m map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &m); err == nil {
		for k, v := range m {
			if err := walkDecode(v, path+"/"+k, out); err != nil {
				return err
			}
		}
		return nil
	}
	val, err := DecodeScalar(data)
	if err != nil {
		return err
	}
	*out = append(*out, Entry{Path: path, Value: val})
	return nil
}

// DecodeArguments decodes an execute payload: a flat CBOR map of argument-name to
// typed-value pairs (spec.md §4.A).
func DecodeArguments(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(m))
	for name, raw := range m {
		val, err := DecodeScalar(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Path: name, Value: val})
	}
	return out, nil
}
