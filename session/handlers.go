package session

import (
	"github.com/sipcore/sipsession/invitation"
	"github.com/sipcore/sipsession/notifybus"
)

// OnConnecting reacts to the invitation's outgoing CONNECTING transition
// (far-end accepted, dialog confirming) — §4.3. The Session stays in
// CALLING/RINGING; there is no dedicated state for it per §3.
func (s *Session) OnConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(notifybus.SessionWillStart, struct{}{})
}

// OnEarlyRingingOutgoing reacts to a 180/183 on an outgoing invitation
// (§4.3 SessionGotRingIndication): CALLING -> RINGING.
func (s *Session) OnEarlyRingingOutgoing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateLocked() != StateCalling {
		return
	}
	_ = s.setState("ring")
	s.emit(notifybus.SessionGotRingIndication, struct{}{})
}

// OnConfirmed reacts to the invitation reaching CONFIRMED (§4.3): starts
// media against the now-active local/remote SDP and transitions to
// ESTABLISHED (from CALLING/RINGING/ACCEPTING on first confirmation, or
// from REINVITING on every subsequent one).
func (s *Session) OnConfirmed(local, remote *invitation.SDPSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stateLocked() {
	case StateCalling, StateRinging, StateAccepting:
		s.applyActiveMedia(local, remote)
		if err := s.setState("established"); err != nil {
			return
		}
		s.emit(notifybus.SessionDidStart, struct{}{})
	case StateReinviting:
		s.applyActiveMedia(local, remote)
		s.onReinviteSettled()
	}
}

// OnDisconnected reacts to the invitation reaching DISCONNECTED from any
// state (§4.3): stops every stream, transitions to TERMINATED, and
// drops any intents still queued. failed distinguishes a graceful BYE
// from a failure response/timeout for SessionDidFail vs SessionDidEnd.
func (s *Session) OnDisconnected(failed bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasTerminated := s.stateLocked() == StateTerminated
	for idx, stream := range s.streams {
		_ = stream.Stop()
		delete(s.streams, idx)
	}
	s.audioIndex = -1
	s.intentQueue = nil

	if !wasTerminated {
		_ = s.setState("disconnected")
	}
	if s.unregister != nil {
		s.unregister()
	}
	if failed {
		s.emit(notifybus.SessionDidFail, DidFailData{Reason: reason})
		return
	}
	s.emit(notifybus.SessionDidEnd, struct{}{})
}

// DidFailData is the payload of SessionDidFail.
type DidFailData struct {
	Reason string
}

// HandleReinvitePropose reacts to sdpneg.OutcomeProposal (§4.4):
// ESTABLISHED -> PROPOSED, responds 180, and surfaces
// SessionGotStreamProposal for the application to decide via
// AcceptProposal/RejectProposal.
func (s *Session) HandleReinvitePropose(remote *invitation.SDPSession, newKinds []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateLocked() != StateEstablished {
		return newError(ErrInvalidState, "reinvite propose: requires ESTABLISHED, have %s", s.stateLocked())
	}
	s.pendingProposal = remote
	if err := s.inv.RespondToInviteProvisionally(180); err != nil {
		s.pendingProposal = nil
		return err
	}
	if err := s.setState("propose"); err != nil {
		s.pendingProposal = nil
		return err
	}
	hasAudio := false
	for _, k := range newKinds {
		if k == "audio" {
			hasAudio = true
		}
	}
	s.emit(notifybus.SessionGotStreamProposal, StreamProposalData{Originator: "remote", HasAudio: hasAudio})
	return nil
}

// HandleReinviteAutoAnswer reacts to sdpneg.OutcomeAutoAnswer (§4.4): the
// reinvite only changes direction/port on existing streams, so it is
// answered without surfacing a proposal. Detects a remote hold/unhold by
// comparing the proposed direction against the current one.
func (s *Session) HandleReinviteAutoAnswer(remote *invitation.SDPSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateLocked() != StateEstablished {
		return newError(ErrInvalidState, "reinvite auto-answer: requires ESTABLISHED, have %s", s.stateLocked())
	}

	wasOnHoldByRemote := s.onHoldByRemote
	if s.audioIndex != -1 && s.audioIndex < len(remote.Media) {
		// The remote holds us when it stops receiving from us: a sendonly
		// or inactive offer leaves the local side unable to send.
		d := remote.Media[s.audioIndex].Direction()
		s.onHoldByRemote = d == invitation.DirectionInactive || d == invitation.DirectionSendOnly
	}

	answer := s.makeNextSDPLocked(false)
	s.inv.SetOfferedLocalSDP(answer)
	if err := s.inv.RespondToReinvite(200); err != nil {
		s.onHoldByRemote = wasOnHoldByRemote
		return err
	}

	if s.audioIndex != -1 {
		if stream, ok := s.streamWithMixerControl(); ok {
			if s.onHoldByRemote && !wasOnHoldByRemote {
				_ = stream.DetachFromMixer()
			} else if !s.onHoldByRemote && wasOnHoldByRemote {
				_ = stream.AttachToMixer()
			}
		}
	}

	if s.onHoldByRemote != wasOnHoldByRemote {
		kind := notifybus.SessionGotUnholdRequest
		if s.onHoldByRemote {
			kind = notifybus.SessionGotHoldRequest
		}
		s.emit(kind, HoldData{Originator: "remote"})
	}
	return nil
}

func (s *Session) streamWithMixerControl() (mixerControl, bool) {
	st, ok := s.streams[s.audioIndex]
	if !ok {
		return nil, false
	}
	mc, ok := st.(mixerControl)
	return mc, ok
}

type mixerControl interface {
	DetachFromMixer() error
	AttachToMixer() error
}

// HandleReinviteReassert reacts to sdpneg.OutcomeReassertCurrent (§4.4):
// the remote retransmitted an identical offer at the same version;
// answer 200 with the unchanged active local SDP and do not touch any
// session state.
func (s *Session) HandleReinviteReassert() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.inv.GetActiveLocalSDP()
	s.inv.SetOfferedLocalSDP(active)
	return s.inv.RespondToReinvite(200)
}

// HandleReinviteReject488 reacts to sdpneg.OutcomeReject488 (§4.4): the
// proposal violates the version/origin rules and is rejected outright,
// with no session state change.
func (s *Session) HandleReinviteReject488() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv.RespondToReinvite(488)
}

// UpdateMedia is invoked by SessionManager once a locally-initiated
// reinvite (hold/unhold/add_audio) completes with a 2xx (§4.5
// update_audio): applies the negotiated SDP to the live streams and
// returns the session to ESTABLISHED, draining the next queued intent.
func (s *Session) UpdateMedia(local, remote *invitation.SDPSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateLocked() != StateReinviting {
		return
	}
	s.applyActiveMedia(local, remote)
	s.onReinviteSettled()
}

// CancelMedia is invoked by SessionManager when a locally-initiated
// reinvite fails (non-2xx or timeout) — §4.5: the attempted change is
// rolled back (hold/unhold flips its flag back, add_audio's stream is
// torn down) and the session still returns to ESTABLISHED so the queue
// can keep draining.
func (s *Session) CancelMedia(wasHold, wasUnhold, wasAddAudio bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateLocked() != StateReinviting {
		return
	}
	switch {
	case wasHold:
		s.onHoldByLocal = false
	case wasUnhold:
		s.onHoldByLocal = true
	case wasAddAudio:
		if st, ok := s.streams[s.audioIndex]; ok {
			_ = st.Stop()
		}
		delete(s.streams, s.audioIndex)
		s.audioIndex = -1
	}
	s.onReinviteSettled()
}
