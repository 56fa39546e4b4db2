package session

import (
	"github.com/sipcore/sipsession/invitation"
	"github.com/sipcore/sipsession/notifybus"
	"github.com/sipcore/sipsession/sdpneg"
)

// processQueue drains s.intentQueue one reinvite at a time (§4.1: "at
// most one reinvite is ever outstanding; further intents queue until the
// session returns to ESTABLISHED"). Must be called with s.mu held.
// Intents are dropped (not retried) if the Session leaves ESTABLISHED
// for any reason other than REINVITING (e.g. a remote BYE races a local
// Hold call), matching the original source's queue-reset-on-failure
// behavior.
func (s *Session) processQueue() {
	if s.stateLocked() != StateEstablished || len(s.intentQueue) == 0 {
		return
	}
	next := s.intentQueue[0]
	s.intentQueue = s.intentQueue[1:]

	switch next.kind {
	case intentHold:
		s.doHold()
	case intentUnhold:
		s.doUnhold()
	case intentAddAudio:
		s.doAddAudio()
	}
}

// doHold sends the hold reinvite (§4.1 hold()). Must be called with
// s.mu held and state == ESTABLISHED. Mirrors the original source's
// _process_queue, which disconnects the audio transport from the
// engine's mixer around the reinvite.
func (s *Session) doHold() {
	if s.onHoldByLocal || s.audioIndex == -1 {
		s.processQueue()
		return
	}
	s.onHoldByLocal = true
	offer := s.makeNextSDPLocked(true)
	s.inv.SetOfferedLocalSDP(offer)
	if err := s.inv.SendReinvite(); err != nil {
		s.onHoldByLocal = false
		return
	}
	if stream, ok := s.streamWithMixerControl(); ok {
		_ = stream.DetachFromMixer()
	}
	_ = s.setState("reinvite_out")
	s.emit(notifybus.SessionGotHoldRequest, HoldData{Originator: "local"})
}

// doUnhold sends the unhold reinvite (§4.1 unhold()), reattaching the
// audio stream to the engine's mixer the way the original source's
// _process_queue reconnects the audio transport.
func (s *Session) doUnhold() {
	if !s.onHoldByLocal || s.audioIndex == -1 {
		s.processQueue()
		return
	}
	s.onHoldByLocal = false
	offer := s.makeNextSDPLocked(true)
	s.inv.SetOfferedLocalSDP(offer)
	if err := s.inv.SendReinvite(); err != nil {
		s.onHoldByLocal = true
		return
	}
	if stream, ok := s.streamWithMixerControl(); ok {
		_ = stream.AttachToMixer()
	}
	_ = s.setState("reinvite_out")
	s.emit(notifybus.SessionGotUnholdRequest, HoldData{Originator: "local"})
}

// doAddAudio sends the ADD_AUDIO reinvite (§4.1 add_audio()): appends a
// new m-line rather than replacing the negotiated one, since this is the
// only reinvite that changes the m-line count.
func (s *Session) doAddAudio() {
	if s.audioIndex != -1 {
		s.processQueue()
		return
	}
	localAddr := sdpneg.LocalRTPAddress(s.rtpOptions.LocalRTPAddress)
	stream := s.streamFactory(localAddr)
	active := s.inv.GetActiveLocalSDP()
	newIndex := len(active.Media)
	media := stream.GetLocalMedia(true, nil)

	offer := sdpneg.AppendMedia(active, media)
	s.inv.SetOfferedLocalSDP(offer)
	if err := s.inv.SendReinvite(); err != nil {
		return
	}
	s.streams[newIndex] = stream
	s.audioIndex = newIndex
	if err := s.setState("reinvite_out"); err != nil {
		return
	}
	s.emit(notifybus.SessionGotStreamProposal, StreamProposalData{Originator: "local", HasAudio: true})
}

// onReinviteSettled returns the Session to ESTABLISHED and drains the
// next queued intent, if any (§4.1: "the queue resumes draining once
// the session re-enters ESTABLISHED"). Must be called with s.mu held.
func (s *Session) onReinviteSettled() {
	if s.stateLocked() != StateReinviting {
		return
	}
	_ = s.setState("reinvite_done")
	s.processQueue()
}

// applyActiveMedia installs the negotiated local/remote SDP into every
// live stream by index, starting any stream that is not yet active and
// updating direction on streams that are (§4.1 make_next_sdp's
// counterpart on the receiving end, §4.5 update_audio).
func (s *Session) applyActiveMedia(local, remote *invitation.SDPSession) {
	var audioDir invitation.Direction
	haveAudioDir := false
	for idx, stream := range s.streams {
		if idx >= len(local.Media) || idx >= len(remote.Media) {
			continue
		}
		dir := local.Media[idx].Direction()
		if idx == s.audioIndex {
			audioDir, haveAudioDir = dir, true
		}
		if !stream.IsActive() {
			_ = stream.Start(local, remote, idx)
			continue
		}
		_ = stream.UpdateDirection(dir)
	}
	if haveAudioDir {
		s.onHoldByRemote = localDirectionCannotSend(audioDir)
	}
}

// localDirectionCannotSend reports whether dir (the negotiated local
// m-line's direction) indicates the remote party put the session on
// hold: the local side cannot send, per _update_audio's
// `on_hold_by_remote = "send" not in new_direction` in the original
// source.
func localDirectionCannotSend(dir invitation.Direction) bool {
	return dir == invitation.DirectionInactive || dir == invitation.DirectionRecvOnly
}
