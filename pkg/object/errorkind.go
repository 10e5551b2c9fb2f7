package object

// Kind enumerates the error taxonomy used throughout the connection and
// transport layers. Kinds classify failures; they are not Go error types
// themselves -- every Kind maps to a numeric Error.Code so it can travel as
// a plain Error Object across the wire.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindConnectionClosed
	KindTransport
	KindTimeout
	KindMethodNotFound
	KindCallAborted
	KindProtocol
	KindInvalidResponse
	KindLogic
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid-argument"
	case KindConnectionClosed:
		return "connection-closed"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindMethodNotFound:
		return "method-not-found"
	case KindCallAborted:
		return "call-aborted"
	case KindProtocol:
		return "protocol"
	case KindInvalidResponse:
		return "invalid-response"
	case KindLogic:
		return "logic"
	default:
		return "unknown"
	}
}

// NewKindError builds an Error Object for a taxonomy Kind with no extra or
// stack payload. It's the common case used throughout internal/rpc.
func NewKindError(k Kind, message string) *Object {
	return NewError(int(k), message, nil, nil)
}

// IsKind reports whether o is an Error object carrying the given Kind.
func IsKind(o *Object, k Kind) bool {
	if o == nil || o.typ != Error {
		return false
	}
	ep := o.payload.(errorPayload)
	return ep.code == int(k)
}
