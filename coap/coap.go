// Package coap defines the narrow boundary between the data plane and a CoAP/DTLS
// transport. The transport itself — sockets, DTLS handshake, retransmission — is an
// external collaborator (see spec.md §1); this package only carries the wire-adjacent
// types the dispatcher and push queue exchange with it.
package coap

// Code is a CoAP response/method code, packed class<<5|detail the same way RFC7252
// represents it on the wire (e.g. 2.05 Content == 0x45 == 69).
type Code byte

// Method codes. RFC7252 12.1.1.
const (
	MethodGet    Code = 1
	MethodPost   Code = 2
	MethodPut    Code = 3
	MethodDelete Code = 4
)

// Response codes, RFC7252 12.1.2. The dispatcher (spec.md §4.E) produces Changed,
// Content, BadRequest, Unauthorized, NotFound and Internal; Created, Deleted and
// NotAllowed are defined but not produced by it.
const (
	CodeCreated      Code = 65  // 2.01 Created
	CodeDeleted      Code = 66  // 2.02 Deleted
	CodeChanged      Code = 68  // 2.04 Changed
	CodeContent      Code = 69  // 2.05 Content
	CodeBadRequest   Code = 128 // 4.00 Bad Request
	CodeUnauthorized Code = 129 // 4.01 Unauthorized
	CodeNotFound     Code = 132 // 4.04 Not Found
	CodeNotAllowed   Code = 133 // 4.05 Method Not Allowed
	CodeInternal     Code = 160 // 5.00 Internal Server Error
)

// ContentFormat identifies the payload encoding. Only CBOR is parsed by this module
// (spec.md §6); the others are recognized so a transport can reject or pass them through.
type ContentFormat uint16

const (
	ContentFormatCBOR       ContentFormat = 60
	ContentFormatZippedCBOR ContentFormat = 11543 // vendor-specific: deflate(CBOR)
)

// Request is an inbound request surfaced by the transport.
type Request struct {
	URI           string // asset-data path, e.g. "/asset/v"
	Method        Code
	Payload       []byte
	Token         []byte // <= 8 bytes
	ContentFormat ContentFormat
}

// Response is the dispatcher's answer, handed back to the transport for delivery.
type Response struct {
	Code          Code
	Payload       []byte
	Token         []byte
	ContentFormat ContentFormat
}

// PushResult is the outcome of a Transport.Push call.
type PushResult int

const (
	PushOK PushResult = iota
	PushBusy
	PushFault
)

// AckResult is the outcome reported by the transport once a push is resolved.
type AckResult int

const (
	AckReceived AckResult = iota
	AckFailed
)

// Transport is implemented by the CoAP core. Push submits one outbound buffer; the
// returned message-id (valid only when result == PushOK) is later echoed to AckFunc.
type Transport interface {
	Push(payload []byte, contentFormat ContentFormat) (result PushResult, messageID uint16)
}

// AckFunc is the shape of the callback the transport invokes when a previously-submitted
// push is resolved, keyed by the message-id Transport.Push returned. pushqueue.Queue.Ack
// and registry.Registry.Ack have this shape; this module registers none with a transport.
type AckFunc func(result AckResult, messageID uint16)

// RequestSource is implemented by the CoAP core to hand inbound requests to a dispatcher
// and to accept the asynchronous response once the dispatcher (or a deferred handler)
// is done with it.
type RequestSource interface {
	Respond(req *Request, resp *Response)
}
