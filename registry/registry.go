// Package registry implements the typed, observable asset/instance/field tree of
// spec.md §4.B: access-controlled create/set/get, server-driven read/write/execute with
// handler dispatch, subtree push, and reference-counted session requests. It owns its
// nodes as index-addressed slices rather than a raw pointer graph, and exposes
// back-references (Instance → Asset, Field → Instance) as plain, non-owning pointers
// per DESIGN NOTES §9.
package registry

import (
	"log"
	"sort"
	"time"

	"funahara/lwm2mdp/coap"
	"funahara/lwm2mdp/pushqueue"
	"funahara/lwm2mdp/session"
	"funahara/lwm2mdp/wirecbor"
)

// registrationUpdateDebounce is the one-shot debounce window of spec.md §4.B.
const registrationUpdateDebounce = time.Second

// UpdateSink receives the formatted registration-update body once the debounce timer
// fires (spec.md §6).
type UpdateSink func(body string)

// Registry is the root object of the asset/instance/field tree.
type Registry struct {
	pathIndex   map[string]*Field
	assets      []*Asset
	assetIndex  map[string]*Asset // keyed by (app_name, asset_id), spec.md §3
	assetByName map[string]*Asset // keyed by (app_name, asset_name), the secondary lookup of spec.md §3

	push    *pushqueue.Queue
	session *session.Facade

	updateTimer *time.Timer
	updateSink  UpdateSink

	logger func(format string, args ...interface{})
}

// New constructs an empty Registry. transport backs the push queue (component D);
// core backs the session façade (component F); sink receives registration-update
// bodies once the debounce timer fires. Any of transport/core/sink may be nil for a
// Registry used purely for local (non-networked) testing of create/set/get.
func New(transport coap.Transport, core session.Core, sink UpdateSink) *Registry {
	r := &Registry{
		pathIndex:   make(map[string]*Field),
		assetIndex:  make(map[string]*Asset),
		assetByName: make(map[string]*Asset),
		updateSink:  sink,
		logger:      defaultLogger,
	}
	if transport != nil {
		r.push = pushqueue.NewQueue(transport)
	}
	if core != nil {
		r.session = session.NewFacade(core)
	}
	return r
}

func defaultLogger(format string, args ...interface{}) {
	// Mirrors the teacher's bare log.Printf-per-event idiom (lwm2m.go); no
	// structured logging library is introduced (see DESIGN.md).
	log.Printf(format, args...)
}

// CreateResource creates a typed asset-data path with the given access mode
// (spec.md §4.B).
func (r *Registry) CreateResource(path string, mode Mode) Result {
	segs, ok := splitPath(path)
	if !ok {
		return Fault
	}
	for existing := range r.pathIndex {
		if existing == path || isPathPrefix(existing, path) || isPathPrefix(path, existing) {
			return Duplicate
		}
	}

	parent, leaf := parentPath(path)
	assetKey := segs[0]
	asset, ok := r.assetIndex[assetKey]
	if !ok {
		asset = &Asset{appName: assetKey, assetID: assetKey, assetName: assetKey}
		r.assetIndex[assetKey] = asset
		r.assetByName[assetKey] = asset
		r.assets = append(r.assets, asset)
	}

	instance := asset.findInstanceByGroup(parent)
	if instance == nil {
		id := asset.nextInstanceID(nil)
		instance = &Instance{id: id, groupPath: parent, asset: asset}
		asset.instances = append(asset.instances, instance)
	}

	field := &Field{
		id:       uint16(len(instance.fields)),
		name:     leaf,
		path:     path,
		mode:     mode,
		value:    Value{Type: TypeNone},
		instance: instance,
	}
	instance.fields = append(instance.fields, field)
	r.pathIndex[path] = field

	r.logger("CREATE %s", path)
	r.scheduleRegistrationUpdate()
	return OK
}

func (a *Asset) findInstanceByGroup(group string) *Instance {
	for _, in := range a.instances {
		if in.groupPath == group {
			return in
		}
	}
	return nil
}

func (r *Registry) fieldFor(path string) (*Field, Result) {
	f, ok := r.pathIndex[path]
	if !ok {
		return nil, NotFound
	}
	return f, OK
}

func typeMismatch(cur ValueType, want ValueType) bool {
	return cur != TypeNone && cur != want
}

// SetInt is the client-perspective typed setter (spec.md §4.B).
func (r *Registry) SetInt(path string, v int64) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessWrite) {
		return NotPermitted
	}
	if typeMismatch(f.value.Type, TypeInt) {
		return BadParameter
	}
	f.value = Value{Type: TypeInt, Int: v}
	return OK
}

// SetFloat is the client-perspective typed setter (spec.md §4.B).
func (r *Registry) SetFloat(path string, v float64) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessWrite) {
		return NotPermitted
	}
	if typeMismatch(f.value.Type, TypeFloat) {
		return BadParameter
	}
	f.value = Value{Type: TypeFloat, Float: v}
	return OK
}

// SetBool is the client-perspective typed setter (spec.md §4.B).
func (r *Registry) SetBool(path string, v bool) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessWrite) {
		return NotPermitted
	}
	if typeMismatch(f.value.Type, TypeBool) {
		return BadParameter
	}
	f.value = Value{Type: TypeBool, Bool: v}
	return OK
}

// SetString is the client-perspective typed setter (spec.md §4.B). Values longer than
// the 256-byte budget (spec.md §5) are rejected as bad-parameter.
func (r *Registry) SetString(path string, v string) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessWrite) {
		return NotPermitted
	}
	if len(v) > maxStringValue {
		return BadParameter
	}
	if typeMismatch(f.value.Type, TypeString) {
		return BadParameter
	}
	f.value = Value{Type: TypeString, Str: v}
	return OK
}

// SetNull clears a field to type none (spec.md §4.B): "null yields a value of type
// none, which any subsequent get reports as unavailable".
func (r *Registry) SetNull(path string) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessWrite) {
		return NotPermitted
	}
	f.value = Value{Type: TypeNone}
	return OK
}

// GetInt is the client-perspective typed getter (spec.md §4.B).
func (r *Registry) GetInt(path string, out *int64) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessRead) {
		return NotPermitted
	}
	if f.value.Type == TypeNone {
		return Unavailable
	}
	if f.value.Type != TypeInt {
		return BadParameter
	}
	*out = f.value.Int
	return OK
}

// GetFloat is the client-perspective typed getter (spec.md §4.B).
func (r *Registry) GetFloat(path string, out *float64) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessRead) {
		return NotPermitted
	}
	if f.value.Type == TypeNone {
		return Unavailable
	}
	if f.value.Type != TypeFloat {
		return BadParameter
	}
	*out = f.value.Float
	return OK
}

// GetBool is the client-perspective typed getter (spec.md §4.B).
func (r *Registry) GetBool(path string, out *bool) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessRead) {
		return NotPermitted
	}
	if f.value.Type == TypeNone {
		return Unavailable
	}
	if f.value.Type != TypeBool {
		return BadParameter
	}
	*out = f.value.Bool
	return OK
}

// GetString is the client-perspective typed getter (spec.md §4.B).
func (r *Registry) GetString(path string, out *string) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideClient, AccessRead) {
		return NotPermitted
	}
	if f.value.Type == TypeNone {
		return Unavailable
	}
	if f.value.Type != TypeString {
		return BadParameter
	}
	*out = f.value.Str
	return OK
}

// ServerRead implements the server-driven read and its read-intercept semantics
// (spec.md §4.B "Read-intercept semantics"): if a handler is registered for the field
// (or, failing that, for its asset), the handler is invoked synchronously with EventRead
// and the read returns unavailable; a value the handler stores is not part of this
// call's result.
func (r *Registry) ServerRead(path string) (Value, Result) {
	f, res := r.fieldFor(path)
	if res != OK {
		r.logger("READ %s Not Found", path)
		return Value{}, res
	}
	if !f.permitted(SideServer, AccessRead) {
		return Value{}, NotPermitted
	}
	if h := f.instance.asset.assetHandler; f.handler == nil && h != nil {
		r.logger("READ %s deferred to asset handler", path)
		h.fn(path, EventRead, nil, h.ctx)
		return Value{}, Unavailable
	}
	if f.handler != nil {
		r.logger("READ %s deferred to handler", path)
		f.handler.fn(path, EventRead, nil, f.handler.ctx)
		return Value{}, Unavailable
	}
	if f.value.Type == TypeNone {
		return Value{}, Unavailable
	}
	r.logger("READ %s", path)
	return f.value, OK
}

// ServerWrite implements the server-driven write: the handler, if any, fires after the
// new value is stored (spec.md §4.B).
func (r *Registry) ServerWrite(path string, v Value) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideServer, AccessWrite) {
		return NotPermitted
	}
	if v.Type != TypeNone && typeMismatch(f.value.Type, v.Type) {
		return BadParameter
	}
	f.value = v
	r.logger("WRITE %s", path)
	if f.handler != nil {
		f.handler.fn(path, EventWrite, nil, f.handler.ctx)
	} else if h := f.instance.asset.assetHandler; h != nil {
		h.fn(path, EventWrite, nil, h.ctx)
	}
	return OK
}

// ServerExecute implements the server-driven execute. A leaf without a registered
// handler is reported not-found, matching the dispatcher's 4.04 mapping (spec.md §4.E).
func (r *Registry) ServerExecute(path string, args *ArgList) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	if !f.permitted(SideServer, AccessExec) {
		return NotPermitted
	}
	if f.handler == nil {
		h := f.instance.asset.assetHandler
		if h == nil {
			return NotFound
		}
		r.logger("EXECUTE %s (asset handler)", path)
		h.fn(path, EventExecute, args, h.ctx)
		return OK
	}
	r.logger("EXECUTE %s", path)
	f.handler.fn(path, EventExecute, args, f.handler.ctx)
	return OK
}

// AddResourceEventHandler registers fn to be invoked on server-driven read, write, or
// execute of path (spec.md §4.B).
func (r *Registry) AddResourceEventHandler(path string, fn HandlerFunc, ctx interface{}) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	f.handler = &registeredHandler{fn: fn, ctx: ctx}
	return OK
}

// AddAssetEventHandler registers an asset-scoped handler (spec.md §3: Assets hold
// "registered action handlers (field-scoped and asset-scoped)"). It fires for any
// read/write/execute on a field of this asset that has no field-scoped handler of its
// own, after the field-scoped dispatch in ServerRead/ServerWrite/ServerExecute — the
// asset-scoped handler is a fallback, not an additional notification, matching the
// single-dispatch-per-event shape the teacher uses for its own handler registration.
func (r *Registry) AddAssetEventHandler(assetKey string, fn HandlerFunc, ctx interface{}) Result {
	a, ok := r.assetIndex[assetKey]
	if !ok {
		return NotFound
	}
	a.assetHandler = &registeredHandler{fn: fn, ctx: ctx}
	return OK
}

// GetAsset looks up an Asset by its (app_name, asset_id) key (spec.md §3's primary key).
func (r *Registry) GetAsset(assetID string) (*Asset, Result) {
	a, ok := r.assetIndex[assetID]
	if !ok {
		return nil, NotFound
	}
	return a, OK
}

// GetAssetByName looks up an Asset by its (app_name, asset_name) key (spec.md §3's
// secondary key). Both keys resolve to the same Asset (testable property 2).
func (r *Registry) GetAssetByName(assetName string) (*Asset, Result) {
	a, ok := r.assetByName[assetName]
	if !ok {
		return nil, NotFound
	}
	return a, OK
}

// DeleteInstance destroys one Instance of the asset identified by assetKey. Deleting an
// Asset's last Instance also deletes the Asset itself and removes both its lookup keys
// (testable property 3), releasing every handler registered on the asset or its fields.
func (r *Registry) DeleteInstance(assetKey string, instanceID uint16) Result {
	a, ok := r.assetIndex[assetKey]
	if !ok {
		return NotFound
	}
	target := a.findInstance(instanceID)
	if target == nil {
		return NotFound
	}
	idx := -1
	for i, in := range a.instances {
		if in == target {
			idx = i
			break
		}
	}

	for _, f := range a.instances[idx].fields {
		delete(r.pathIndex, f.path)
		f.handler = nil
	}
	a.instances = append(a.instances[:idx], a.instances[idx+1:]...)

	if len(a.instances) == 0 {
		r.deleteAsset(a)
	}
	return OK
}

// deleteAsset removes an Asset with no remaining Instances from both lookup keys and
// releases its asset-scoped handler (spec.md §8 testable property 3).
func (r *Registry) deleteAsset(a *Asset) {
	delete(r.assetIndex, a.assetID)
	delete(r.assetByName, a.assetName)
	a.assetHandler = nil
	for i, existing := range r.assets {
		if existing == a {
			r.assets = append(r.assets[:i], r.assets[i+1:]...)
			break
		}
	}
}

func valueToScalar(v Value) interface{} {
	switch v.Type {
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeBool:
		return v.Bool
	case TypeString:
		return v.Str
	default:
		return nil
	}
}

// subtreeEntries implements the subtree-enumeration algorithm of spec.md §4.B: every
// stored path for which query is a segment-boundary-aware proper prefix, sorted
// lexicographically so siblings at any depth are contiguous.
func (r *Registry) subtreeEntries(query string) []wirecbor.Entry {
	var entries []wirecbor.Entry
	for p, f := range r.pathIndex {
		if isPathPrefix(query, p) {
			entries = append(entries, wirecbor.Entry{Path: p, Value: valueToScalar(f.value)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// Push CBOR-encodes the leaf at path, or the subtree rooted at path if path is not
// itself a stored leaf, and enqueues the result into the push queue (spec.md §4.B).
func (r *Registry) Push(path string, done pushqueue.DoneFunc, ctx interface{}) Result {
	if r.push == nil {
		return Fault
	}
	if f, ok := r.pathIndex[path]; ok {
		payload, err := wirecbor.EncodeScalar(valueToScalar(f.value))
		if err != nil {
			return Fault
		}
		return statusToResult(r.push.Push(payload, coap.ContentFormatCBOR, done, ctx))
	}

	entries := r.subtreeEntries(path)
	if len(entries) == 0 {
		return NotFound
	}
	segs, ok := splitPath(path)
	if !ok {
		return Fault
	}
	payload, err := wirecbor.EncodeMap(entries, len(segs))
	if err != nil {
		return Fault
	}
	return statusToResult(r.push.Push(payload, coap.ContentFormatCBOR, done, ctx))
}

func statusToResult(s pushqueue.Status) Result {
	switch s {
	case pushqueue.OK:
		return OK
	case pushqueue.Busy:
		return Busy
	case pushqueue.NotPossible:
		return NotPossible
	default:
		return Fault
	}
}

// ReadSubtree returns the sorted, eligible leaves under path (spec.md §4.B "Subtree
// enumeration"), for callers (the dispatcher) that need it directly rather than via Push.
func (r *Registry) ReadSubtree(path string) []wirecbor.Entry {
	return r.subtreeEntries(path)
}

// Assets returns the current list of assets, in creation order.
func (r *Registry) Assets() []*Asset {
	out := make([]*Asset, len(r.assets))
	copy(out, r.assets)
	return out
}

// Ack forwards a transport ACK to the underlying push queue.
func (r *Registry) Ack(result coap.AckResult, messageID uint16) {
	if r.push != nil {
		r.push.Ack(result, messageID)
	}
}

// RequestSession opens (or joins) the device-management session (spec.md §4.B/§4.F).
func (r *Registry) RequestSession(listener session.Listener) (session.Handle, error) {
	return r.session.RequestSession(listener)
}

// ReleaseSession releases a previously requested session handle.
func (r *Registry) ReleaseSession(h session.Handle) error {
	return r.session.ReleaseSession(h)
}
