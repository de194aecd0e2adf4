package registry

// Package-internal observe/notify support (spec.md §9, "Supplemental Features").
// spec.md §3 defines the is_observe/token fields on Asset and Field but §4 never
// describes the notify loop that drives them; this generalizes the teacher's
// lastValue-comparison idiom (lwm2m_device_management.go's NotifyInstance/NotifyResource)
// to the flat asset-data-path model.

// maxObserveToken is the observer-token budget of spec.md §5.
const maxObserveToken = 8

// Notification is one observed-value change ready to be pushed as a CoAP notify
// (spec.md §9).
type Notification struct {
	Path  string
	Value Value
	Token []byte
}

// ObserveField arms per-field observation with the given token (≤ 8 bytes).
func (r *Registry) ObserveField(path string, token []byte) Result {
	if len(token) > maxObserveToken {
		return BadParameter
	}
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	f.isObserve = true
	f.observeToken = token
	f.hasNotified = true
	f.lastNotified = f.value
	return OK
}

// ObserveAsset sets the object-wide observe flag and token on the asset identified by
// its first path segment (spec.md §3's asset-scoped observe flag). CollectChanges does
// not read them: only fields armed with ObserveField produce Notifications.
func (r *Registry) ObserveAsset(assetKey string, token []byte) Result {
	if len(token) > maxObserveToken {
		return BadParameter
	}
	a, ok := r.assetIndex[assetKey]
	if !ok {
		return NotFound
	}
	a.isObserve = true
	a.observeToken = token
	return OK
}

// Deregister clears per-field observation for path.
func (r *Registry) Deregister(path string) Result {
	f, res := r.fieldFor(path)
	if res != OK {
		return res
	}
	f.isObserve = false
	f.observeToken = nil
	f.hasNotified = false
	return OK
}

// DeregisterAsset clears object-wide observation for the asset identified by its
// first path segment.
func (r *Registry) DeregisterAsset(assetKey string) Result {
	a, ok := r.assetIndex[assetKey]
	if !ok {
		return NotFound
	}
	a.isObserve = false
	a.observeToken = nil
	return OK
}

// CollectChanges performs one poll-and-diff pass over all observed fields, returning a
// Notification for each field whose value differs from the last value it notified.
// ObserveField records the field's value at the time it is armed as that baseline, so
// a freshly observed field produces a Notification only once its value changes.
func (r *Registry) CollectChanges() []Notification {
	var out []Notification
	for _, f := range r.pathIndex {
		if !f.isObserve {
			continue
		}
		if f.hasNotified && valuesEqual(f.lastNotified, f.value) {
			continue
		}
		out = append(out, Notification{Path: f.path, Value: f.value, Token: f.observeToken})
		f.lastNotified = f.value
		f.hasNotified = true
	}
	return out
}

func valuesEqual(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeInt:
		return a.Int == b.Int
	case TypeFloat:
		return a.Float == b.Float
	case TypeBool:
		return a.Bool == b.Bool
	case TypeString:
		return a.Str == b.Str
	default:
		return true
	}
}
