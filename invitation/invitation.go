// Package invitation defines the narrow contract the session core drives
// the SIP transaction engine through (§6 of spec.md). It plays the same
// role pkg/dialog.IDialog plays for the soft_phone dialog layer: a small
// interface hiding the SIP state machine, transaction retransmission and
// header plumbing, so that session and sessionmanager never import an
// actual SIP stack.
//
// A production binary wires a github.com/emiago/sipgo-backed
// implementation behind this interface; the session core only ever sees
// Invitation.
package invitation

import (
	"github.com/emiago/sipgo/sip"
)

// State is the invitation's own state machine, independent of the
// Session state layered on top of it (§3, §6).
type State string

const (
	StateNull          State = "NULL"
	StateCalling       State = "CALLING"
	StateEarly         State = "EARLY"
	StateConnecting    State = "CONNECTING"
	StateConfirmed     State = "CONFIRMED"
	StateReinvited     State = "REINVITED"
	StateDisconnecting State = "DISCONNECTING"
	StateDisconnected  State = "DISCONNECTED"
)

// ChangedState is the payload of an InvitationChangedState event.
type ChangedState struct {
	PrevState State
	State     State
	Code      int // provisional/final status code, 0 if not applicable
	Headers   map[string]string
}

// GotSDPUpdate is the payload of an InvitationGotSDPUpdate event.
type GotSDPUpdate struct {
	Succeeded bool
	LocalSDP  *SDPSession
	RemoteSDP *SDPSession
}

// EventSink receives invitation events. SessionManager implements this
// and registers itself as the invitation engine's sole observer (§4.3).
type EventSink interface {
	OnInvitationChangedState(inv Invitation, data ChangedState)
	OnInvitationGotSDPUpdate(inv Invitation, data GotSDPUpdate)
}

// Invitation is the handle the session core drives a SIP INVITE dialog
// through. Implementations must be safe to call concurrently with event
// delivery to an EventSink; the session core never assumes otherwise.
type Invitation interface {
	// State returns the current invitation state.
	State() State
	// IsOutgoing reports whether this invitation was initiated locally.
	IsOutgoing() bool
	// CallerURI is the URI that placed the call.
	CallerURI() sip.Uri

	SendInvite() error
	AcceptInvite() error
	RespondToInviteProvisionally(code int) error
	RespondToReinvite(code int) error

	SetOfferedLocalSDP(sdp *SDPSession)
	SendReinvite() error

	// Disconnect tears the dialog down. code is the BYE/CANCEL/reject
	// status to use; 0 lets the implementation choose a sane default.
	Disconnect(code int) error

	GetOfferedRemoteSDP() *SDPSession
	GetActiveLocalSDP() *SDPSession
	GetActiveRemoteSDP() *SDPSession
}
