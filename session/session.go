// Package session implements the Session state machine (§2 C3, §4.1),
// its intent queue, and the SDP/media orchestration the session drives
// through the sdpneg and mediastream packages. It is grounded on
// pkg/dialog.Dialog's looplab/fsm usage for the state machine shape and
// on original_source/sipsimple/session.py for the operation semantics.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/sipcore/sipsession/invitation"
	"github.com/sipcore/sipsession/mediastream"
	"github.com/sipcore/sipsession/notifybus"
	"github.com/sipcore/sipsession/rtpconfig"
)

// AudioStreamFactory builds a fresh, unstarted audio stream bound to
// localAddr. The session core never allocates RTP ports or opens
// sockets itself (§1 Non-goals); the factory is how the out-of-scope
// audio/RTP engine is plugged in, mirroring pkg/media_sdp.NewSDPMediaBuilder's
// role in the soft_phone codebase.
type AudioStreamFactory func(localAddr string) *mediastream.AudioStream

// Ringtone is the handle a Session owns while state is INCOMING (§3).
type Ringtone interface {
	Start()
	Stop()
}

// Session is one instance per SIP dialog (§3). The zero value is not
// usable; construct with NewOutgoing or NewIncoming.
type Session struct {
	mu sync.Mutex

	id   string
	fsm  *fsm.FSM
	inv  invitation.Invitation

	streams    map[int]mediastream.Stream
	audioIndex int

	remoteUserAgent *string
	rtpOptions      rtpconfig.RTPConfiguration
	origin          invitation.Origin

	onHoldByLocal  bool
	onHoldByRemote bool

	intentQueue []intent

	ringtone Ringtone

	streamFactory AudioStreamFactory
	bus           *notifybus.Bus

	// pendingProposal holds the remote offer while state == PROPOSED, so
	// AcceptProposal/RejectProposal can answer it (§4.1).
	pendingProposal *invitation.SDPSession

	// unregister, when set, is invoked while the session lock is held
	// on entry to TERMINATED so the manager can drop its map entries
	// under the session's lock per §5's map discipline.
	unregister func()
}

type intentKind int

const (
	intentHold intentKind = iota
	intentUnhold
	intentAddAudio
)

type intent struct {
	kind intentKind
}

// NewOutgoingOptions configures NewOutgoing.
type NewOutgoingOptions struct {
	Invitation    invitation.Invitation
	Callee        sip.Uri
	UseAudio      bool
	RTPConfig     rtpconfig.RTPConfiguration
	Bus           *notifybus.Bus
	StreamFactory AudioStreamFactory
}

func newSession(bus *notifybus.Bus, rtpCfg rtpconfig.RTPConfiguration, streamFactory AudioStreamFactory) *Session {
	s := &Session{
		id:            uuid.NewString(),
		streams:       make(map[int]mediastream.Stream),
		audioIndex:    -1,
		rtpOptions:    rtpCfg,
		bus:           bus,
		streamFactory: streamFactory,
	}
	s.fsm = newFSM(func(dst State) {})
	return s
}

// ID returns the Session's identifier, used as the `user`/`id` o= line
// fields so they stay stable across the dialog (§4.1 SDP construction
// rules).
func (s *Session) ID() string { return s.id }

// State returns the Session's current lifecycle position (§3).
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State(s.fsm.Current())
}

// Effective returns State() refined with the ONHOLD-* condition when
// the underlying state is ESTABLISHED (§3).
func (s *Session) Effective() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked()
	if st != StateEstablished {
		return st.String()
	}
	switch {
	case s.onHoldByLocal && s.onHoldByRemote:
		return string(EffectiveOnHoldBoth)
	case s.onHoldByLocal:
		return string(EffectiveOnHoldLocal)
	case s.onHoldByRemote:
		return string(EffectiveOnHoldRemote)
	default:
		return st.String()
	}
}

// OnHoldByLocal reports whether the local side put the call on hold.
func (s *Session) OnHoldByLocal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onHoldByLocal
}

// OnHoldByRemote reports whether the remote side put the call on hold.
func (s *Session) OnHoldByRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onHoldByRemote
}

// RemoteUserAgent returns the detected remote User-Agent/Server header,
// if any has been observed yet (§3).
func (s *Session) RemoteUserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remoteUserAgent == nil {
		return ""
	}
	return *s.remoteUserAgent
}

// Invitation returns the dialog handle the Session owns. Used by
// SessionManager to key its inv_map (§3 invariant 5).
func (s *Session) Invitation() invitation.Invitation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv
}

// HasAudio reports whether an audio stream is present (§3 invariant 2).
func (s *Session) HasAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioIndex >= 0
}

func (s *Session) emit(kind notifybus.Kind, data interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(notifybus.Notification{
		Kind:      kind,
		Sender:    s,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// setState drives the fsm and emits SessionChangedState, matching
// _change_state's unconditional notification post in the original
// source. Must be called with s.mu held.
func (s *Session) setState(event string) error {
	prev := s.stateLocked()
	if err := s.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("session: transition %q from %s: %w", event, prev, err)
	}
	next := s.stateLocked()
	if prev == next {
		return nil
	}
	if next == StateIncoming && s.ringtone != nil {
		s.ringtone.Start()
	}
	if prev == StateIncoming && s.ringtone != nil {
		s.ringtone.Stop()
		s.ringtone = nil
	}
	s.emit(notifybus.SessionChangedState, ChangedStateData{Prev: prev, Next: next})
	return nil
}

// ChangedStateData is the payload of SessionChangedState.
type ChangedStateData struct {
	Prev State
	Next State
}

// StreamProposalData is the payload of SessionGotStreamProposal,
// SessionAcceptedStreamProposal and SessionRejectedStreamProposal.
type StreamProposalData struct {
	Originator string // "local" or "remote"
	HasAudio   bool
	HasChat    bool
}

// HoldData is the payload of SessionGotHoldRequest/SessionGotUnholdRequest.
type HoldData struct {
	Originator string // "local" or "remote"
}
