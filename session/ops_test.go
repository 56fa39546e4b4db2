package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipcore/sipsession/invitation"
	"github.com/sipcore/sipsession/invitation/invitationtest"
	"github.com/sipcore/sipsession/notifybus"
)

func establishedSession(t *testing.T, bus *notifybus.Bus) (*Session, *invitationtest.Fake) {
	t.Helper()
	inv := invitationtest.NewOutgoing()
	s, err := NewOutgoing(NewOutgoingOptions{Invitation: inv, UseAudio: true, Bus: bus, StreamFactory: audioFactory()})
	require.NoError(t, err)

	inv.ActiveLocalSDP = inv.OfferedLocalSDP
	inv.ActiveRemoteSDP = &invitation.SDPSession{
		Origin: invitation.Origin{User: "bob", ID: "1", NetType: "IN", AddressType: "IP4", Address: "203.0.113.9"},
		Media: []invitation.SDPMedia{
			{Media: "audio", Port: 7000, Transport: "RTP/AVP", Formats: []string{"0"},
				Attributes: []invitation.SDPAttribute{{Key: "sendrecv"}}},
		},
	}
	s.OnConfirmed(inv.ActiveLocalSDP, inv.ActiveRemoteSDP)
	require.Equal(t, StateEstablished, s.State())
	return s, inv
}

// Scenario C (spec.md §8): hold then unhold during an active call.
func TestHoldThenUnhold(t *testing.T) {
	bus := notifybus.New()
	kinds := collectKinds(bus)
	s, inv := establishedSession(t, bus)

	require.NoError(t, s.Hold())
	assert.Equal(t, StateReinviting, s.State())
	require.Len(t, inv.OfferedLocalSDP.Media, 1)
	assert.Equal(t, invitation.DirectionSendOnly, inv.OfferedLocalSDP.Media[0].Direction())

	inv.ActiveLocalSDP = inv.OfferedLocalSDP
	s.UpdateMedia(inv.ActiveLocalSDP, inv.ActiveRemoteSDP)
	assert.Equal(t, StateEstablished, s.State())
	assert.True(t, s.OnHoldByLocal())

	require.NoError(t, s.Unhold())
	assert.Equal(t, StateReinviting, s.State())
	assert.Equal(t, invitation.DirectionSendRecv, inv.OfferedLocalSDP.Media[0].Direction())

	inv.ActiveLocalSDP = inv.OfferedLocalSDP
	s.UpdateMedia(inv.ActiveLocalSDP, inv.ActiveRemoteSDP)
	assert.Equal(t, StateEstablished, s.State())
	assert.False(t, s.OnHoldByLocal())

	assert.Contains(t, *kinds, notifybus.SessionGotHoldRequest)
	assert.Contains(t, *kinds, notifybus.SessionGotUnholdRequest)
}

// Property 3 (spec.md §8): the net effect of a HOLD/UNHOLD/HOLD sequence
// issued back-to-back while a reinvite is outstanding is the effect of
// the last intent, once every reinvite has confirmed.
func TestIntentQueueAppliesLastHoldIntentOnly(t *testing.T) {
	s, inv := establishedSession(t, nil)

	require.NoError(t, s.Hold())   // leaves ESTABLISHED, outstanding reinvite
	require.NoError(t, s.Unhold()) // queued, reinvite already in flight
	require.NoError(t, s.Hold())   // queued

	assert.Equal(t, StateReinviting, s.State())

	// Drain the queue one reinvite cycle at a time, exactly as the
	// invitation engine's CONFIRMED event would.
	for s.State() == StateReinviting {
		inv.ActiveLocalSDP = inv.OfferedLocalSDP
		s.UpdateMedia(inv.ActiveLocalSDP, inv.ActiveRemoteSDP)
	}

	assert.Equal(t, StateEstablished, s.State())
	assert.True(t, s.OnHoldByLocal())
}

func TestAddAudioRejectsWhenAudioAlreadyPresent(t *testing.T) {
	s, _ := establishedSession(t, nil)
	err := s.AddAudio()
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrStreamAlreadyActive, serr.Kind)
}

// Scenario E (spec.md §8): a remote stream-addition proposal is accepted
// or rejected by the application, both returning to ESTABLISHED.
func TestAcceptProposalReturnsToEstablished(t *testing.T) {
	bus := notifybus.New()
	kinds := collectKinds(bus)
	s, inv := establishedSession(t, bus)

	remote := inv.ActiveRemoteSDP.Clone()
	remote.Version++
	remote.Media = append(remote.Media, invitation.SDPMedia{Media: "chat", Port: 5050})
	require.NoError(t, s.HandleReinvitePropose(remote, []string{"chat"}))
	assert.Equal(t, StateProposed, s.State())

	require.NoError(t, s.AcceptProposal())
	assert.Equal(t, StateEstablished, s.State())
	assert.Contains(t, *kinds, notifybus.SessionAcceptedStreamProposal)
}

func TestRejectProposalReturnsToEstablished(t *testing.T) {
	bus := notifybus.New()
	kinds := collectKinds(bus)
	s, inv := establishedSession(t, bus)

	remote := inv.ActiveRemoteSDP.Clone()
	remote.Version++
	remote.Media = append(remote.Media, invitation.SDPMedia{Media: "chat", Port: 5050})
	require.NoError(t, s.HandleReinvitePropose(remote, []string{"chat"}))

	require.NoError(t, s.RejectProposal())
	assert.Equal(t, StateEstablished, s.State())
	assert.Contains(t, *kinds, notifybus.SessionRejectedStreamProposal)
	assert.Contains(t, inv.Calls, "RespondToReinvite")
}

func TestHoldRequiresEstablished(t *testing.T) {
	inv := invitationtest.NewOutgoing()
	s, err := NewOutgoing(NewOutgoingOptions{Invitation: inv, UseAudio: true, StreamFactory: audioFactory()})
	require.NoError(t, err)
	err = s.Hold()
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrInvalidState, serr.Kind)
}
