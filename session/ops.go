package session

import (
	"fmt"

	"github.com/sipcore/sipsession/invitation"
	"github.com/sipcore/sipsession/mediastream"
	"github.com/sipcore/sipsession/notifybus"
	"github.com/sipcore/sipsession/rtpconfig"
	"github.com/sipcore/sipsession/sdpneg"
)

// NewOutgoing creates a new outgoing Session (§4.1 Session.new). opts.Invitation
// must be a freshly constructed, not-yet-sent Invitation (state NULL).
// Requires NULL (trivially true for a fresh Session) and at least one
// enabled stream. On any failure it rolls back media and re-raises,
// leaving no observable state change (§7 rollback invariant).
func NewOutgoing(opts NewOutgoingOptions) (*Session, error) {
	if !opts.UseAudio {
		return nil, newError(ErrNoStreamRequested, "new: no media stream requested")
	}

	s := newSession(opts.Bus, opts.RTPConfig, opts.StreamFactory)
	s.inv = opts.Invitation

	s.mu.Lock()
	defer s.mu.Unlock()

	localAddr := sdpneg.LocalRTPAddress(opts.RTPConfig.LocalRTPAddress)
	s.origin = invitation.Origin{
		User:        s.id,
		ID:          s.id,
		NetType:     "IN",
		AddressType: "IP4",
		Address:     localAddr,
	}

	stream := s.streamFactory(localAddr)
	s.streams[0] = stream
	s.audioIndex = 0

	media := stream.GetLocalMedia(true, nil)
	offer := sdpneg.NewOffer(localAddr, s.origin, []invitation.SDPMedia{media})

	rollback := func() {
		_ = stream.Stop()
		delete(s.streams, 0)
		s.audioIndex = -1
	}

	s.inv.SetOfferedLocalSDP(offer)
	if err := s.inv.SendInvite(); err != nil {
		rollback()
		return nil, fmt.Errorf("session: new: send invite: %w", err)
	}

	if err := s.setState("new"); err != nil {
		rollback()
		return nil, err
	}
	s.emit(notifybus.SessionNewOutgoing, NewOutgoingData{AudioProposed: true})
	return s, nil
}

// NewOutgoingData is the payload of SessionNewOutgoing.
type NewOutgoingData struct {
	AudioProposed bool
}

// IncomingOptions configures NewIncoming, called by SessionManager when
// the invitation engine reports an INCOMING invitation (§4.3).
type IncomingOptions struct {
	Invitation    invitation.Invitation
	RemoteUA      string
	RTPConfig     rtpconfig.RTPConfiguration
	Bus           *notifybus.Bus
	StreamFactory AudioStreamFactory
	Ringtone      Ringtone
}

// NewIncoming wraps a freshly-arrived Invitation (already in INCOMING
// state per the invitation engine) into a Session (§4.3). No media is
// attached yet; Accept or Reject decides what, if anything, gets
// negotiated.
func NewIncoming(opts IncomingOptions) *Session {
	s := newSession(opts.Bus, opts.RTPConfig, opts.StreamFactory)
	s.inv = opts.Invitation
	s.ringtone = opts.Ringtone
	if opts.RemoteUA != "" {
		s.remoteUserAgent = &opts.RemoteUA
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.setState("incoming")
	s.emit(notifybus.SessionNewIncoming, struct{}{})
	return s
}

// Accept accepts an incoming session (§4.1 accept()). Requires INCOMING.
// For each requested stream the offer proposes, attaches a local media
// answer at the same m-line index; every other remote m-line is
// answered reject-by-port-zero. Fails if audio was requested but not
// offered, or if every proposed stream would be rejected.
func (s *Session) Accept(useAudio bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateLocked() != StateIncoming {
		return newError(ErrInvalidState, "accept: requires INCOMING, have %s", s.stateLocked())
	}

	remote := s.inv.GetOfferedRemoteSDP()
	localAddr := sdpneg.LocalRTPAddress(s.rtpOptions.LocalRTPAddress)

	negotiated := make(map[int]invitation.SDPMedia)
	audioIndex := -1
	if useAudio {
		for i, m := range remote.Media {
			if m.Media == "audio" && m.Port != 0 {
				audioIndex = i
				break
			}
		}
		if audioIndex == -1 {
			return newError(ErrUnsupportedMedia, "accept: audio requested but not offered")
		}
		stream := s.streamFactory(localAddr)
		s.streams[audioIndex] = stream
		s.audioIndex = audioIndex
		answerDir := sdpneg.AnswerDirection(remote.Media[audioIndex].Direction(), true)
		negotiated[audioIndex] = stream.GetLocalMedia(false, &answerDir)
	}

	if len(negotiated) == 0 {
		s.rollbackStreams()
		return newError(ErrAllStreamsRejected, "accept: none of the streams proposed by the remote party is enabled")
	}

	s.origin = invitation.Origin{
		User:        s.id,
		ID:          s.id,
		NetType:     "IN",
		AddressType: "IP4",
		Address:     localAddr,
	}
	answer := sdpneg.BuildAcceptAnswer(localAddr, s.origin, remote, negotiated)
	s.inv.SetOfferedLocalSDP(answer)

	if err := s.inv.AcceptInvite(); err != nil {
		s.rollbackStreams()
		return fmt.Errorf("session: accept: %w", err)
	}
	return s.setState("accept")
}

func (s *Session) rollbackStreams() {
	for idx, st := range s.streams {
		_ = st.Stop()
		delete(s.streams, idx)
	}
	s.audioIndex = -1
}

// Reject rejects an incoming session (§4.1 reject()); requires INCOMING
// and delegates to Terminate.
func (s *Session) Reject() error {
	s.mu.Lock()
	if s.stateLocked() != StateIncoming {
		s.mu.Unlock()
		return newError(ErrInvalidState, "reject: requires INCOMING, have %s", s.stateLocked())
	}
	s.mu.Unlock()
	return s.Terminate()
}

// AddAudio enqueues an ADD_AUDIO intent (§4.1). Requires ESTABLISHED (or
// REINVITING with another reinvite already outstanding, per §3 invariant
// 3: "further intents are enqueued") and no audio stream already
// present.
func (s *Session) AddAudio() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptsIntentLocked() {
		return newError(ErrInvalidState, "add_audio: requires ESTABLISHED, have %s", s.stateLocked())
	}
	if s.audioIndex != -1 {
		return newError(ErrStreamAlreadyActive, "add_audio: an audio stream is already active within this session")
	}
	s.intentQueue = append(s.intentQueue, intent{kind: intentAddAudio})
	s.processQueue()
	return nil
}

// AcceptProposal accepts a pending remote stream-addition proposal
// (§4.1 accept_proposal()), symmetric to RejectProposal. Requires
// PROPOSED; returns to ESTABLISHED.
func (s *Session) AcceptProposal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateLocked() != StateProposed {
		return newError(ErrInvalidState, "accept_proposal: requires PROPOSED, have %s", s.stateLocked())
	}
	remote := s.pendingProposal
	if remote == nil {
		return newError(ErrInvalidState, "accept_proposal: no pending proposal")
	}

	localAddr := sdpneg.LocalRTPAddress(s.rtpOptions.LocalRTPAddress)
	for i, m := range remote.Media {
		if m.Media == "audio" && m.Port != 0 && s.audioIndex == -1 {
			stream := s.streamFactory(localAddr)
			s.streams[i] = stream
			s.audioIndex = i
		}
	}

	answer := s.makeNextSDPLocked(false)
	s.inv.SetOfferedLocalSDP(answer)
	if err := s.inv.RespondToReinvite(200); err != nil {
		return fmt.Errorf("session: accept_proposal: %w", err)
	}
	s.pendingProposal = nil
	if err := s.setState("proposal_resolved"); err != nil {
		return err
	}
	s.emit(notifybus.SessionAcceptedStreamProposal, StreamProposalData{Originator: "local"})
	return nil
}

// RejectProposal rejects a pending remote stream-addition proposal
// (§4.1 reject_proposal()). Requires PROPOSED; returns to ESTABLISHED.
func (s *Session) RejectProposal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateLocked() != StateProposed {
		return newError(ErrInvalidState, "reject_proposal: requires PROPOSED, have %s", s.stateLocked())
	}
	if err := s.inv.RespondToReinvite(488); err != nil {
		return fmt.Errorf("session: reject_proposal: %w", err)
	}
	s.pendingProposal = nil
	if err := s.setState("proposal_resolved"); err != nil {
		return err
	}
	s.emit(notifybus.SessionRejectedStreamProposal, StreamProposalData{Originator: "local"})
	return nil
}

// acceptsIntentLocked reports whether the session is in a state that may
// enqueue a HOLD/UNHOLD/ADD_AUDIO intent: ESTABLISHED (including its
// ONHOLD-* refinements) or REINVITING, the latter being exactly the
// "another reinvite is already outstanding" case §3 invariant 3 exists
// for. Must be called with s.mu held.
func (s *Session) acceptsIntentLocked() bool {
	switch s.stateLocked() {
	case StateEstablished, StateReinviting:
		return true
	default:
		return false
	}
}

// Hold enqueues a HOLD intent (§4.1). Requires ESTABLISHED (ONHOLD-* is
// a refinement of ESTABLISHED, per §3); also accepted while REINVITING
// so a second intent can queue behind an outstanding reinvite (§3
// invariant 3).
func (s *Session) Hold() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptsIntentLocked() {
		return newError(ErrInvalidState, "hold: requires ESTABLISHED, have %s", s.stateLocked())
	}
	s.intentQueue = append(s.intentQueue, intent{kind: intentHold})
	s.processQueue()
	return nil
}

// Unhold enqueues an UNHOLD intent (§4.1). Requires ESTABLISHED; also
// accepted while REINVITING (§3 invariant 3).
func (s *Session) Unhold() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptsIntentLocked() {
		return newError(ErrInvalidState, "unhold: requires ESTABLISHED, have %s", s.stateLocked())
	}
	s.intentQueue = append(s.intentQueue, intent{kind: intentUnhold})
	s.processQueue()
	return nil
}

// Terminate tears the session down from whatever state it is in (§4.1
// terminate()). No-op from NULL/TERMINATING/TERMINATED. Idempotent and
// never returns an error to the caller (§7: "terminate() never errors").
func (s *Session) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateLocked()
	if st == StateNull || st == StateTerminating || st == StateTerminated {
		return nil
	}
	if s.inv != nil && s.inv.State() != invitation.StateDisconnecting {
		_ = s.inv.Disconnect(0)
	}
	s.intentQueue = nil // pending intents dropped on TERMINATING (§5)
	_ = s.setState("terminate")
	s.emit(notifybus.SessionWillEnd, struct{}{})
	return nil
}

// SendDTMF transmits a DTMF digit over the active audio stream (§4.1
// send_dtmf). Fails unless an audio stream exists and is active.
func (s *Session) SendDTMF(digit mediastream.DTMFDigit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioIndex == -1 {
		return newError(ErrStreamNotReady, "send_dtmf: no audio stream")
	}
	stream, ok := s.streams[s.audioIndex].(*mediastream.AudioStream)
	if !ok || !stream.IsActive() {
		return newError(ErrStreamNotReady, "send_dtmf: audio stream inactive")
	}
	if err := stream.SendDTMF(digit, 0); err != nil {
		return newError(ErrStreamNotReady, "send_dtmf: %v", err)
	}
	return nil
}

// makeNextSDPLocked builds the next local SDP per §4.1 make_next_sdp.
// Must be called with s.mu held.
func (s *Session) makeNextSDPLocked(isOffer bool) *invitation.SDPSession {
	active := s.inv.GetActiveLocalSDP()
	if s.audioIndex == -1 {
		return sdpneg.MakeNextSDP(active, -1, invitation.SDPMedia{})
	}
	stream := s.streams[s.audioIndex]
	var dirPtr *invitation.Direction
	if isOffer {
		dir := sdpneg.HoldDirection(stream.Direction(), s.onHoldByLocal)
		dirPtr = &dir
	} else if s.pendingProposal != nil && s.audioIndex < len(s.pendingProposal.Media) {
		dir := sdpneg.AnswerDirection(s.pendingProposal.Media[s.audioIndex].Direction(), true)
		dirPtr = &dir
	}
	media := stream.GetLocalMedia(isOffer, dirPtr)
	return sdpneg.MakeNextSDP(active, s.audioIndex, media)
}
