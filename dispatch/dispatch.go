// Package dispatch implements the server request dispatcher of spec.md §4.E: it maps
// inbound CoAP GET/PUT/POST requests onto registry operations and translates the
// result into a response code, generalizing the teacher's ReadRequest/WriteRequest/
// ExecuteRequest method switch (lwm2m_device_management.go) from the object/instance/
// resource triple-key model to the flat asset-data-path model. Per DESIGN NOTES §9 the
// dispatcher stays "a simple match on method"; extend by adding cases, not virtual
// dispatch.
package dispatch

import (
	"funahara/lwm2mdp/coap"
	"funahara/lwm2mdp/registry"
	"funahara/lwm2mdp/wirecbor"
)

// Dispatcher routes inbound requests to a Registry.
type Dispatcher struct {
	reg *registry.Registry
}

// New constructs a Dispatcher bound to reg.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Handle implements coap.RequestSource-adjacent routing: given one inbound request it
// returns the response to send back, per the table in spec.md §4.E.
func (d *Dispatcher) Handle(req *coap.Request) *coap.Response {
	resp := &coap.Response{Token: req.Token, ContentFormat: coap.ContentFormatCBOR}
	switch req.Method {
	case coap.MethodGet:
		d.handleGet(req, resp)
	case coap.MethodPut:
		d.handlePut(req, resp)
	case coap.MethodPost:
		d.handlePost(req, resp)
	default:
		resp.Code = coap.CodeBadRequest
	}
	return resp
}

func scalarToValue(v interface{}) registry.Value {
	switch t := v.(type) {
	case int64:
		return registry.Value{Type: registry.TypeInt, Int: t}
	case float64:
		return registry.Value{Type: registry.TypeFloat, Float: t}
	case bool:
		return registry.Value{Type: registry.TypeBool, Bool: t}
	case string:
		return registry.Value{Type: registry.TypeString, Str: t}
	default:
		return registry.Value{Type: registry.TypeNone}
	}
}

func valueToScalar(v registry.Value) interface{} {
	switch v.Type {
	case registry.TypeInt:
		return v.Int
	case registry.TypeFloat:
		return v.Float
	case registry.TypeBool:
		return v.Bool
	case registry.TypeString:
		return v.Str
	default:
		return nil
	}
}

func (d *Dispatcher) handleGet(req *coap.Request, resp *coap.Response) {
	v, res := d.reg.ServerRead(req.URI)
	switch res {
	case registry.OK, registry.Unavailable:
		payload, err := wirecbor.EncodeScalar(valueToScalar(v))
		if err != nil {
			resp.Code = coap.CodeInternal
			return
		}
		resp.Code = coap.CodeContent
		resp.Payload = payload
	case registry.NotPermitted:
		resp.Code = coap.CodeUnauthorized
	case registry.NotFound:
		entries := d.reg.ReadSubtree(req.URI)
		if len(entries) == 0 {
			resp.Code = coap.CodeNotFound
			return
		}
		depth := pathDepth(req.URI)
		payload, err := wirecbor.EncodeMap(entries, depth)
		if err != nil {
			resp.Code = coap.CodeInternal
			return
		}
		resp.Code = coap.CodeContent
		resp.Payload = payload
	default:
		resp.Code = coap.CodeInternal
	}
}

func (d *Dispatcher) handlePut(req *coap.Request, resp *coap.Response) {
	scalar, err := wirecbor.DecodeScalar(req.Payload)
	if err == nil {
		res := d.reg.ServerWrite(req.URI, scalarToValue(scalar))
		switch res {
		case registry.OK:
			resp.Code = coap.CodeChanged
			return
		case registry.NotPermitted:
			resp.Code = coap.CodeUnauthorized
			return
		case registry.BadParameter:
			resp.Code = coap.CodeBadRequest
			return
		case registry.NotFound:
			// fall through to the subtree-write attempt below.
		default:
			resp.Code = coap.CodeInternal
			return
		}
	}

	if len(d.reg.ReadSubtree(req.URI)) == 0 {
		resp.Code = coap.CodeBadRequest
		return
	}

	entries, err := wirecbor.DecodeMapLeaves(req.Payload, req.URI)
	if err != nil {
		resp.Code = coap.CodeBadRequest
		return
	}
	for _, e := range entries {
		res := d.reg.ServerWrite(e.Path, scalarToValue(e.Value))
		if res != registry.OK {
			resp.Code = coap.CodeInternal
			return
		}
	}
	resp.Code = coap.CodeChanged
}

func (d *Dispatcher) handlePost(req *coap.Request, resp *coap.Response) {
	entries, err := wirecbor.DecodeArguments(req.Payload)
	if err != nil {
		resp.Code = coap.CodeBadRequest
		return
	}
	args := registry.NewArgList()
	for _, e := range entries {
		args.Add(e.Path, scalarToValue(e.Value))
	}

	res := d.reg.ServerExecute(req.URI, args)
	switch res {
	case registry.OK:
		resp.Code = coap.CodeChanged
	case registry.NotFound:
		resp.Code = coap.CodeNotFound
	case registry.NotPermitted:
		resp.Code = coap.CodeUnauthorized
	default:
		resp.Code = coap.CodeInternal
	}
}

func pathDepth(path string) int {
	depth := 0
	for _, c := range path {
		if c == '/' {
			depth++
		}
	}
	return depth
}
