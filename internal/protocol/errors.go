// internal/protocol/errors.go
package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies errors that are reported back to the client that caused them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindProtocol is a malformed or unknown message.
	KindProtocol
	// KindAuthorization is an action the sender may not perform: wrong turn, not owner, kicked.
	KindAuthorization
	// KindState is an action that is invalid in the room's current phase.
	KindState
	// KindCapacity is a full room or an invalid size change.
	KindCapacity
	// KindNotFound is an unknown room, player or deck.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindCapacity:
		return "capacity"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a client-caused failure. It is converted to a ServerError for the originating connection only.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindUnknown if err is not (and does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ToServerError converts any error into the wire error. Unclassified errors keep their text
// and are reported with kind "unknown".
func ToServerError(err error) *ServerError {
	var e *Error
	if errors.As(err, &e) {
		return &ServerError{Message: e.Message, Kind: e.Kind.String()}
	}
	return &ServerError{Message: err.Error(), Kind: KindUnknown.String()}
}
