// Package record implements the time-series recorder of spec.md §4.C: a bounded
// accumulator of timestamped, multi-field samples that re-encodes into a fixed CBOR
// scratch buffer on every mutation, rolling back the just-added sample (and reporting
// no-memory) when the encode no longer fits. Wire bytes are deflated with best
// compression before being handed to the push queue as zipped CBOR.
package record

import (
	"bytes"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/flate"

	"funahara/lwm2mdp/coap"
	"funahara/lwm2mdp/pushqueue"
	"funahara/lwm2mdp/registry"
)

// maxBufferSize is the fixed CBOR scratch-buffer budget of spec.md §5 ("record CBOR
// buffer ≈ 1024 bytes").
const maxBufferSize = 1024

const tsFactor = 1

type fieldKind int

const (
	kindInt fieldKind = iota
	kindFloat
	kindBool
	kindString
)

func factorFor(k fieldKind) float64 {
	switch k {
	case kindInt, kindFloat:
		return 1
	default:
		return 0
	}
}

type pathData struct {
	name    string
	kind    fieldKind
	samples map[int64]interface{}
}

func (p *pathData) clone() *pathData {
	c := &pathData{name: p.name, kind: p.kind, samples: make(map[int64]interface{}, len(p.samples))}
	for ts, v := range p.samples {
		c.samples[ts] = v
	}
	return c
}

// wireRecord is the three-key CBOR map of spec.md §4.C. Struct field order, not map
// key sort, controls wire order, so insertion order ("h"/"f") and sample sequencing
// ("s") survive encoding unperturbed by fxamacker/cbor's (map-only) key sorting.
type wireRecord struct {
	H []string      `cbor:"h"`
	F []float64     `cbor:"f"`
	S []interface{} `cbor:"s"`
}

// Record is a single bounded time-series accumulator (spec.md §4.C).
type Record struct {
	order      []string
	byName     map[string]*pathData
	timestamps []int64
	encoded    []byte
}

// Create returns a new, empty Record.
func Create() *Record {
	return &Record{byName: make(map[string]*pathData)}
}

// Delete frees all samples held by r.
func (r *Record) Delete() {
	r.order = nil
	r.byName = make(map[string]*pathData)
	r.timestamps = nil
	r.encoded = nil
}

type stateSnapshot struct {
	order      []string
	byName     map[string]*pathData
	timestamps []int64
	encoded    []byte
}

func (r *Record) snapshot() stateSnapshot {
	s := stateSnapshot{
		order:      append([]string(nil), r.order...),
		byName:     make(map[string]*pathData, len(r.byName)),
		timestamps: append([]int64(nil), r.timestamps...),
		encoded:    append([]byte(nil), r.encoded...),
	}
	for name, pd := range r.byName {
		s.byName[name] = pd.clone()
	}
	return s
}

func (r *Record) restore(s stateSnapshot) {
	r.order = s.order
	r.byName = s.byName
	r.timestamps = s.timestamps
	r.encoded = s.encoded
}

func (r *Record) insertTimestamp(ts int64) {
	i := sort.Search(len(r.timestamps), func(i int) bool { return r.timestamps[i] >= ts })
	if i < len(r.timestamps) && r.timestamps[i] == ts {
		return
	}
	r.timestamps = append(r.timestamps, 0)
	copy(r.timestamps[i+1:], r.timestamps[i:])
	r.timestamps[i] = ts
}

func (r *Record) add(path string, kind fieldKind, value interface{}, ts int64) registry.Result {
	snap := r.snapshot()

	pd, ok := r.byName[path]
	if !ok {
		pd = &pathData{name: path, kind: kind, samples: make(map[int64]interface{})}
		r.byName[path] = pd
		r.order = append(r.order, path)
	} else if pd.kind != kind {
		return registry.Fault
	}

	if _, exists := pd.samples[ts]; !exists {
		r.insertTimestamp(ts)
	}
	pd.samples[ts] = value

	enc, err := r.encode()
	if err != nil {
		r.restore(snap)
		return registry.Fault
	}
	if len(enc) > maxBufferSize {
		r.restore(snap)
		return registry.NoMemory
	}
	r.encoded = enc
	return registry.OK
}

// AddInt records an int sample. The first add for path fixes its type; a later add of
// a different type fails with fault (spec.md §4.C).
func (r *Record) AddInt(path string, value int64, ts int64) registry.Result {
	return r.add(path, kindInt, value, ts)
}

// AddFloat records a float sample.
func (r *Record) AddFloat(path string, value float64, ts int64) registry.Result {
	return r.add(path, kindFloat, value, ts)
}

// AddBool records a bool sample.
func (r *Record) AddBool(path string, value bool, ts int64) registry.Result {
	return r.add(path, kindBool, value, ts)
}

// AddString records a string sample.
func (r *Record) AddString(path string, value string, ts int64) registry.Result {
	return r.add(path, kindString, value, ts)
}

// IsEmpty reports whether the record holds no samples (spec.md §8 scenario 3: after a
// push, "resources == [] && timestamps == []").
func (r *Record) IsEmpty() bool {
	return len(r.order) == 0 && len(r.timestamps) == 0
}

func (r *Record) encode() ([]byte, error) {
	factors := make([]float64, 0, len(r.order)+1)
	factors = append(factors, tsFactor)
	for _, name := range r.order {
		factors = append(factors, factorFor(r.byName[name].kind))
	}

	prev := make(map[string]interface{}, len(r.order))
	var samples []interface{}
	var prevTs int64
	for i, ts := range r.timestamps {
		var delta int64
		if i == 0 {
			delta = ts * tsFactor
		} else {
			delta = (ts - prevTs) * tsFactor
		}
		prevTs = ts
		samples = append(samples, delta)

		for _, name := range r.order {
			pd := r.byName[name]
			val, hasVal := pd.samples[ts]
			if !hasVal {
				samples = append(samples, nil)
				continue
			}
			switch pd.kind {
			case kindInt:
				cur := val.(int64)
				if last, seen := prev[name]; seen {
					samples = append(samples, cur-last.(int64))
				} else {
					samples = append(samples, cur)
				}
				prev[name] = cur
			case kindFloat:
				cur := val.(float64)
				if last, seen := prev[name]; seen {
					samples = append(samples, cur-last.(float64))
				} else {
					samples = append(samples, cur)
				}
				prev[name] = cur
			case kindBool, kindString:
				samples = append(samples, val)
			}
		}
	}

	wire := wireRecord{H: append([]string(nil), r.order...), F: factors, S: samples}
	return cbor.Marshal(wire)
}

// Push final-encodes the record, deflates it with best compression, and enqueues it
// into the push queue as zipped CBOR. On a successful or deferred enqueue the record
// is fully reset; a rejected (not-possible/fault) push leaves it untouched so the
// caller may retry (spec.md §4.C).
func (r *Record) Push(q *pushqueue.Queue, done pushqueue.DoneFunc, ctx interface{}) registry.Result {
	enc, err := r.encode()
	if err != nil {
		return registry.Fault
	}

	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return registry.Fault
	}
	if _, err := zw.Write(enc); err != nil {
		return registry.Fault
	}
	if err := zw.Close(); err != nil {
		return registry.Fault
	}

	status := q.Push(buf.Bytes(), coap.ContentFormatZippedCBOR, done, ctx)
	switch status {
	case pushqueue.OK:
		r.Delete()
		return registry.OK
	case pushqueue.Busy:
		r.Delete()
		return registry.Busy
	case pushqueue.NotPossible:
		return registry.NotPossible
	default:
		return registry.Fault
	}
}
