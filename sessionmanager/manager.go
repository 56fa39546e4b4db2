// Package sessionmanager implements the process-wide Session registry and
// invitation.EventSink dispatcher (§2 C4, §4.3/§4.4 of spec.md). It plays
// the role pkg/dialog.Stack's dialogsMap plays for the soft_phone dialog
// layer, keying every live Session by its Invitation and fanning
// invitation events out to the right Session method. Sessions are not
// indexed by their streams.
package sessionmanager

import (
	"context"
	"sync"

	"github.com/emiago/sipgo/sip"

	"github.com/sipcore/sipsession/internal/logging"
	"github.com/sipcore/sipsession/invitation"
	"github.com/sipcore/sipsession/notifybus"
	"github.com/sipcore/sipsession/rtpconfig"
	"github.com/sipcore/sipsession/sdpneg"
	"github.com/sipcore/sipsession/session"
)

// RingtoneFactory resolves the ringtone a Session should play while
// INCOMING, keyed by the (user, host) pair of the caller's URI (§4.3).
// Returning nil means "no ringtone", not an error.
type RingtoneFactory func(user, host string) session.Ringtone

// Manager is the single observer every Invitation reports to (§4.3). The
// zero value is not usable; construct with New.
type Manager struct {
	mu sync.Mutex

	// invMap keys a Session by the Invitation driving it, the same
	// identity pkg/dialog.dialogsMap uses to key a Dialog by its
	// (Call-ID, local-tag) pair, simplified here since Invitation is
	// already a stable handle.
	invMap map[invitation.Invitation]*session.Session

	bus           *notifybus.Bus
	rtpConfig     rtpconfig.RTPConfiguration
	streamFactory session.AudioStreamFactory
	ringtone      RingtoneFactory
	log           logging.Logger
	metrics       *MetricsCollector

	// pendingReinvite tracks, per Session, which locally-initiated
	// intent (hold/unhold/add_audio) is outstanding, so UpdateMedia and
	// CancelMedia know what to roll back (§4.5).
	pendingReinvite map[*session.Session]pendingKind
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingHold
	pendingUnhold
	pendingAddAudio
)

// Options configures a new Manager.
type Options struct {
	Bus           *notifybus.Bus
	RTPConfig     rtpconfig.RTPConfiguration
	StreamFactory session.AudioStreamFactory
	Ringtone      RingtoneFactory
	Logger        logging.Logger
	Metrics       *MetricsCollector
}

// New constructs a Manager. A nil Bus, Logger or Metrics is replaced with
// an inert default so callers can omit what they don't need.
func New(opts Options) *Manager {
	if opts.Bus == nil {
		opts.Bus = notifybus.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetricsCollector(&MetricsConfig{Enabled: false})
	}
	return &Manager{
		invMap:          make(map[invitation.Invitation]*session.Session),
		bus:             opts.Bus,
		rtpConfig:       opts.RTPConfig,
		streamFactory:   opts.StreamFactory,
		ringtone:        opts.Ringtone,
		log:             opts.Logger.WithComponent("sessionmanager"),
		metrics:         opts.Metrics,
		pendingReinvite: make(map[*session.Session]pendingKind),
	}
}

// PlaceCall starts a new outgoing Session against inv (already
// constructed against callee, not yet sent) and registers it (§4.1
// Session.new, §4.3).
func (m *Manager) PlaceCall(inv invitation.Invitation, callee sip.Uri, useAudio bool) (*session.Session, error) {
	s, err := session.NewOutgoing(session.NewOutgoingOptions{
		Invitation:    inv,
		Callee:        callee,
		UseAudio:      useAudio,
		RTPConfig:     m.rtpConfig,
		Bus:           m.bus,
		StreamFactory: m.streamFactory,
	})
	if err != nil {
		return nil, err
	}
	m.register(inv, s)
	m.metrics.SessionCreated()
	return s, nil
}

func (m *Manager) register(inv invitation.Invitation, s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invMap[inv] = s
}

func (m *Manager) lookup(inv invitation.Invitation) (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.invMap[inv]
	return s, ok
}

func (m *Manager) forget(inv invitation.Invitation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.invMap[inv]; ok {
		delete(m.pendingReinvite, s)
	}
	delete(m.invMap, inv)
}

// OnInvitationChangedState implements invitation.EventSink (§4.3). It is
// the single place an incoming call becomes a Session, and the place
// every other invitation-state transition is translated into a Session
// method call.
func (m *Manager) OnInvitationChangedState(inv invitation.Invitation, data invitation.ChangedState) {
	switch data.State {
	case invitation.StateEarly:
		if s, ok := m.lookup(inv); ok && inv.IsOutgoing() && data.Code/100 == 1 {
			s.OnEarlyRingingOutgoing()
		}
	case invitation.StateConnecting:
		if !inv.IsOutgoing() {
			return
		}
		if s, ok := m.lookup(inv); ok {
			s.OnConnecting()
		}
	case invitation.StateConfirmed:
		m.handleConfirmed(inv, data)
	case invitation.StateReinvited:
		m.handleReinvited(inv)
	case invitation.StateDisconnected:
		m.handleDisconnected(inv, data)
	}

	if !inv.IsOutgoing() && data.State == invitation.StateConfirmed {
		return
	}
	if data.State == invitation.StateNull {
		return
	}

	// A freshly INCOMING invitation has no Session yet; that is
	// synthesized by the transport adapter calling AdmitIncoming before
	// handing events here, matching §4.3's "Session created on INCOMING".
}

// AdmitIncoming wraps a brand-new incoming Invitation (already in
// invitation.StateCalling/INCOMING per the transport adapter) into a
// Session and registers it (§4.3). remoteUA is the detected
// User-Agent/Server header, if any.
//
// Before constructing a Session it scans the offered remote m-lines
// (§4.3 INCOMING handling): if none of them is a supported media kind
// with a nonzero port, the invitation is rejected 415 and no Session is
// created, matching ok == false.
func (m *Manager) AdmitIncoming(inv invitation.Invitation, remoteUA string) (s *session.Session, ok bool) {
	if !hasSupportedMedia(inv.GetOfferedRemoteSDP()) {
		_ = inv.Disconnect(415)
		return nil, false
	}

	var ringtone session.Ringtone
	if m.ringtone != nil {
		user, host := requestTarget(inv.CallerURI())
		ringtone = m.ringtone(user, host)
	}
	s = session.NewIncoming(session.IncomingOptions{
		Invitation:    inv,
		RemoteUA:      remoteUA,
		RTPConfig:     m.rtpConfig,
		Bus:           m.bus,
		StreamFactory: m.streamFactory,
		Ringtone:      ringtone,
	})
	m.register(inv, s)
	m.metrics.SessionCreated()
	return s, true
}

// hasSupportedMedia reports whether remote offers at least one m-line of
// a kind this module can negotiate (today: audio) at a nonzero port.
func hasSupportedMedia(remote *invitation.SDPSession) bool {
	if remote == nil {
		return false
	}
	for _, m := range remote.Media {
		if m.Media == "audio" && m.Port != 0 {
			return true
		}
	}
	return false
}

func requestTarget(uri sip.Uri) (user, host string) {
	return uri.User, uri.Host
}

func (m *Manager) handleConfirmed(inv invitation.Invitation, data invitation.ChangedState) {
	s, ok := m.lookup(inv)
	if !ok {
		return
	}
	local := inv.GetActiveLocalSDP()
	remote := inv.GetActiveRemoteSDP()

	m.mu.Lock()
	kind := m.pendingReinvite[s]
	delete(m.pendingReinvite, s)
	m.mu.Unlock()

	if kind != pendingNone {
		succeeded := data.Code == 0 || data.Code/100 == 2
		if succeeded {
			s.UpdateMedia(local, remote)
		} else {
			s.CancelMedia(kind == pendingHold, kind == pendingUnhold, kind == pendingAddAudio)
		}
		m.metrics.ReinviteCompleted(kind.String(), succeeded)
		return
	}
	s.OnConfirmed(local, remote)
}

// handleReinvited reacts to a REINVITED invitation event (§4.3, §4.4):
// runs the pure negotiation decision and dispatches to the Session
// method that carries it out.
func (m *Manager) handleReinvited(inv invitation.Invitation) {
	s, ok := m.lookup(inv)
	if !ok {
		return
	}
	cur := inv.GetActiveRemoteSDP()
	proposed := inv.GetOfferedRemoteSDP()

	outcome, newKinds := sdpneg.ValidateReinvite(cur, proposed)
	switch outcome {
	case sdpneg.OutcomeReject488:
		_ = s.HandleReinviteReject488()
	case sdpneg.OutcomeReassertCurrent:
		_ = s.HandleReinviteReassert()
	case sdpneg.OutcomeAutoAnswer:
		_ = s.HandleReinviteAutoAnswer(proposed)
	case sdpneg.OutcomeProposal:
		_ = s.HandleReinvitePropose(proposed, newKinds)
	}
	m.metrics.ReinviteReceived(outcome)
}

func (m *Manager) handleDisconnected(inv invitation.Invitation, data invitation.ChangedState) {
	s, ok := m.lookup(inv)
	if !ok {
		return
	}
	failed := data.Code == 0 || data.Code >= 300
	reason := data.Headers["Reason"]

	m.mu.Lock()
	kind := m.pendingReinvite[s]
	delete(m.pendingReinvite, s)
	m.mu.Unlock()
	if kind != pendingNone {
		m.metrics.ReinviteCompleted(kind.String(), false)
	}

	s.OnDisconnected(failed, reason)
	m.forget(inv)
	m.metrics.SessionEnded(failed)
}

// OnInvitationGotSDPUpdate implements invitation.EventSink. The session
// core reads SDP off the Invitation directly in response to state
// transitions (§4.3), so this callback only feeds diagnostics.
func (m *Manager) OnInvitationGotSDPUpdate(inv invitation.Invitation, data invitation.GotSDPUpdate) {
	if data.Succeeded {
		return
	}
	m.log.Warn(context.Background(), "SDP negotiation failed", logging.Field{Key: "outgoing", Value: inv.IsOutgoing()})
}

// MarkPendingHold/MarkPendingUnhold/MarkPendingAddAudio let the code that
// issues a locally-initiated reinvite (session.Hold/Unhold/AddAudio, via
// the transport adapter that actually calls Invitation.SendReinvite)
// record which kind is outstanding, so a later CONFIRMED/DISCONNECTED
// knows whether to call UpdateMedia or CancelMedia with the right
// rollback flags (§4.5).
func (m *Manager) MarkPendingHold(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingReinvite[s] = pendingHold
}

func (m *Manager) MarkPendingUnhold(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingReinvite[s] = pendingUnhold
}

func (m *Manager) MarkPendingAddAudio(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingReinvite[s] = pendingAddAudio
}

func (k pendingKind) String() string {
	switch k {
	case pendingHold:
		return "hold"
	case pendingUnhold:
		return "unhold"
	case pendingAddAudio:
		return "add_audio"
	default:
		return "none"
	}
}
