package session

import "fmt"

// ErrorKind classifies the error kinds surfaced by the core (§7 of
// spec.md), following the typed-error-code pattern pkg/media/errors.go
// and pkg/media_sdp's SDPError use elsewhere in the example pack.
type ErrorKind int

const (
	_ ErrorKind = iota
	// ErrInvalidState: a user API called in the wrong state.
	ErrInvalidState
	// ErrNoStreamRequested: new/accept called with no media selected.
	ErrNoStreamRequested
	// ErrUnsupportedMedia: accept(use_audio=true) but the offer has no
	// audio.
	ErrUnsupportedMedia
	// ErrAllStreamsRejected: accept would reject every proposed m-line.
	ErrAllStreamsRejected
	// ErrStreamAlreadyActive: add_audio with an audio stream already
	// present.
	ErrStreamAlreadyActive
	// ErrStreamNotReady: send_dtmf while audio stream missing or
	// inactive.
	ErrStreamNotReady
	// ErrProtocolViolation: reinvite failed SDP version/origin rules.
	// Handled locally (488) and never returned to a user-facing caller;
	// kept here for completeness and for tests exercising the negotiator
	// boundary.
	ErrProtocolViolation
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidState:
		return "InvalidState"
	case ErrNoStreamRequested:
		return "NoStreamRequested"
	case ErrUnsupportedMedia:
		return "UnsupportedMedia"
	case ErrAllStreamsRejected:
		return "AllStreamsRejected"
	case ErrStreamAlreadyActive:
		return "StreamAlreadyActive"
	case ErrStreamNotReady:
		return "StreamNotReady"
	case ErrProtocolViolation:
		return "ProtocolViolation"
	default:
		return "Unknown"
	}
}

// Error wraps an ErrorKind with a human-readable message. Propagation
// policy per §7: user-facing operations fail synchronously before any
// state change becomes observable.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("session: %s: %s", e.Kind, e.Msg)
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
