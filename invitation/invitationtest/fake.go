// Package invitationtest provides a controllable fake of
// invitation.Invitation, playing the same role pkg/dialog/mockTransport
// plays for the soft_phone dialog layer's transport: a test double the
// session and sessionmanager packages drive without a real SIP stack.
package invitationtest

import (
	"sync"

	"github.com/emiago/sipgo/sip"

	"github.com/sipcore/sipsession/invitation"
)

// Fake is an in-memory invitation.Invitation. Every method call is
// recorded for assertions; SDP and state are plain fields a test can
// set up before exercising the code under test.
type Fake struct {
	mu sync.Mutex

	OutgoingFlag bool
	Caller       sip.Uri

	CurState State2

	OfferedLocalSDP  *invitation.SDPSession
	ActiveLocalSDP   *invitation.SDPSession
	OfferedRemoteSDP *invitation.SDPSession
	ActiveRemoteSDP  *invitation.SDPSession

	// Calls records, in order, every method invoked on this fake.
	Calls []string

	// Fail* let a test force an operation to return an error.
	FailSendInvite    error
	FailAcceptInvite  error
	FailSendReinvite  error
	FailRespondInvite error
	FailRespondReinv  error
	FailDisconnect    error
}

// State2 avoids colliding with invitation.State while keeping the same
// value space; Fake.State() converts it.
type State2 = invitation.State

// NewOutgoing builds a Fake ready to drive through Session.NewOutgoing.
func NewOutgoing() *Fake {
	return &Fake{OutgoingFlag: true, CurState: invitation.StateNull}
}

// NewIncoming builds an incoming Fake in state NULL carrying remote as
// its offered remote SDP, ready for Session.NewIncoming or
// SessionManager.AdmitIncoming.
func NewIncoming(remote *invitation.SDPSession) *Fake {
	return &Fake{OutgoingFlag: false, CurState: invitation.StateNull, OfferedRemoteSDP: remote}
}

func (f *Fake) record(name string) {
	f.Calls = append(f.Calls, name)
}

func (f *Fake) State() invitation.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CurState
}

func (f *Fake) SetState(s invitation.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CurState = s
}

func (f *Fake) IsOutgoing() bool { return f.OutgoingFlag }

func (f *Fake) CallerURI() sip.Uri { return f.Caller }

func (f *Fake) SendInvite() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendInvite")
	if f.FailSendInvite != nil {
		return f.FailSendInvite
	}
	f.CurState = invitation.StateCalling
	return nil
}

func (f *Fake) AcceptInvite() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AcceptInvite")
	if f.FailAcceptInvite != nil {
		return f.FailAcceptInvite
	}
	f.ActiveLocalSDP = f.OfferedLocalSDP
	f.ActiveRemoteSDP = f.OfferedRemoteSDP
	return nil
}

func (f *Fake) RespondToInviteProvisionally(code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RespondToInviteProvisionally")
	return f.FailRespondInvite
}

func (f *Fake) RespondToReinvite(code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RespondToReinvite")
	if f.FailRespondReinv != nil {
		return f.FailRespondReinv
	}
	if code/100 == 2 {
		f.ActiveLocalSDP = f.OfferedLocalSDP
		f.ActiveRemoteSDP = f.OfferedRemoteSDP
	}
	return nil
}

func (f *Fake) SetOfferedLocalSDP(s *invitation.SDPSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OfferedLocalSDP = s
}

func (f *Fake) SendReinvite() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendReinvite")
	if f.FailSendReinvite != nil {
		return f.FailSendReinvite
	}
	f.CurState = invitation.StateReinvited
	return nil
}

func (f *Fake) Disconnect(code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Disconnect")
	if f.FailDisconnect != nil {
		return f.FailDisconnect
	}
	f.CurState = invitation.StateDisconnecting
	return nil
}

func (f *Fake) GetOfferedRemoteSDP() *invitation.SDPSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.OfferedRemoteSDP
}

func (f *Fake) GetActiveLocalSDP() *invitation.SDPSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ActiveLocalSDP
}

func (f *Fake) GetActiveRemoteSDP() *invitation.SDPSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ActiveRemoteSDP
}

var _ invitation.Invitation = (*Fake)(nil)
