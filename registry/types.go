package registry

// ValueType is a field's tag, matching the LWM2M-ish type set in spec.md §3.
type ValueType int

const (
	TypeNone ValueType = iota
	TypeInt
	TypeBool
	TypeString
	TypeFloat
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	default:
		return "none"
	}
}

// Mode is the access mode supplied to CreateResource (spec.md §4.B).
type Mode int

const (
	ModeVariable Mode = iota
	ModeSetting
	ModeCommand
)

// Access is a permission bitmask; clientAccess and serverAccess give the mask a Mode
// grants to each Side.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite
	AccessExec
)

// Side distinguishes which party (the device/client, or the management server) is
// attempting an operation, since a Mode grants different masks to each (spec.md §4.B).
type Side int

const (
	SideClient Side = iota
	SideServer
)

func clientAccess(m Mode) Access {
	switch m {
	case ModeVariable:
		return AccessRead | AccessWrite
	case ModeSetting:
		return AccessRead
	case ModeCommand:
		return AccessExec
	default:
		return 0
	}
}

func serverAccess(m Mode) Access {
	switch m {
	case ModeVariable:
		return AccessRead
	case ModeSetting:
		return AccessRead | AccessWrite
	case ModeCommand:
		return AccessExec
	default:
		return 0
	}
}

func accessFor(m Mode, side Side) Access {
	if side == SideClient {
		return clientAccess(m)
	}
	return serverAccess(m)
}

// Value is the tagged union stored by a Field. Exactly one of the scalar fields is
// meaningful, selected by Type; Type == TypeNone carries no value (spec.md §4.B: "null
// yields a value of type none, which any subsequent get reports as unavailable").
type Value struct {
	Type  ValueType
	Int   int64
	Bool  bool
	Str   string
	Float float64
}

// EventKind identifies which operation triggered a registered handler (spec.md §4.B).
type EventKind int

const (
	EventRead EventKind = iota
	EventWrite
	EventExecute
)

// HandlerFunc is a registered event handler. args is valid only for the duration of the
// call (spec.md §4.B) and is nil for read/write events.
type HandlerFunc func(path string, kind EventKind, args *ArgList, ctx interface{})

type registeredHandler struct {
	fn  HandlerFunc
	ctx interface{}
}

// Field is one typed, addressable leaf — a "resource" in LWM2M terms (spec.md §3).
type Field struct {
	id           uint16 // sequence number within its Instance, used by the TLV codec
	name         string
	path         string // full asset-data path, e.g. "/asset/v"
	mode         Mode
	value        Value
	isObserve    bool
	observeToken []byte
	handler      *registeredHandler
	instance     *Instance // back-reference, not owning

	hasNotified  bool
	lastNotified Value
}

func (f *Field) Name() string       { return f.name }
func (f *Field) Path() string       { return f.path }
func (f *Field) Mode() Mode         { return f.mode }
func (f *Field) Type() ValueType    { return f.value.Type }
func (f *Field) ID() uint16         { return f.id }
func (f *Field) Instance() *Instance { return f.instance }

func (f *Field) permitted(side Side, op Access) bool {
	return accessFor(f.mode, side)&op != 0
}

// ClientWritable reports whether the client side may write this field, per the
// access-mode table of spec.md §4.B. Used by the TLV codec to select the
// writable-by-client fields it enumerates (spec.md §4.A).
func (f *Field) ClientWritable() bool {
	return f.permitted(SideClient, AccessWrite)
}

// Value returns a snapshot of the field's current tagged value.
func (f *Field) Value() Value { return f.value }

// Instance is one concrete occurrence of an Asset (spec.md §3).
type Instance struct {
	id        uint16
	groupPath string // the directory path its fields share; internal grouping key only
	fields    []*Field
	asset     *Asset // back-reference, not owning
}

func (in *Instance) ID() uint16      { return in.id }
func (in *Instance) Asset() *Asset   { return in.asset }
func (in *Instance) Fields() []*Field {
	out := make([]*Field, len(in.fields))
	copy(out, in.fields)
	return out
}

// Asset groups Instances under an application-assigned identity (spec.md §3).
type Asset struct {
	appName        string
	assetID        string
	assetName      string
	instances      []*Instance
	lastInstanceID uint16
	hasLastID      bool
	isObserve      bool
	observeToken   []byte
	assetHandler   *registeredHandler
}

func (a *Asset) AppName() string   { return a.appName }
func (a *Asset) AssetID() string   { return a.assetID }
func (a *Asset) AssetName() string { return a.assetName }
func (a *Asset) Instances() []*Instance {
	out := make([]*Instance, len(a.instances))
	copy(out, a.instances)
	return out
}

func (a *Asset) findInstance(id uint16) *Instance {
	for _, in := range a.instances {
		if in.id == id {
			return in
		}
	}
	return nil
}

// nextInstanceID implements the last-instance-id allocation algorithm of spec.md §4.B:
// an explicit id bumps the high-water mark; omission (requested == nil) auto-increments.
func (a *Asset) nextInstanceID(requested *uint16) uint16 {
	if requested != nil {
		id := *requested
		if !a.hasLastID || id > a.lastInstanceID {
			a.lastInstanceID = id
			a.hasLastID = true
		}
		return id
	}
	if !a.hasLastID {
		a.hasLastID = true
		a.lastInstanceID = 0
		return 0
	}
	a.lastInstanceID++
	return a.lastInstanceID
}

// ArgList is the argument-name/value list passed to an Execute handler, populated from
// the CBOR execute payload (spec.md §4.A). A reference to it is valid only for the
// duration of the handler call (spec.md §4.B).
type ArgList struct {
	names  []string
	values []Value
}

func NewArgList() *ArgList { return &ArgList{} }

func (a *ArgList) Add(name string, v Value) {
	a.names = append(a.names, name)
	a.values = append(a.values, v)
}

func (a *ArgList) Len() int { return len(a.names) }

func (a *ArgList) At(i int) (string, Value) { return a.names[i], a.values[i] }

func (a *ArgList) Get(name string) (Value, bool) {
	for i, n := range a.names {
		if n == name {
			return a.values[i], true
		}
	}
	return Value{}, false
}
