package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipcore/sipsession/invitation"
	"github.com/sipcore/sipsession/invitation/invitationtest"
	"github.com/sipcore/sipsession/mediastream"
	"github.com/sipcore/sipsession/notifybus"
	"github.com/sipcore/sipsession/rtpconfig"
)

func audioFactory() AudioStreamFactory {
	return func(localAddr string) *mediastream.AudioStream {
		return mediastream.NewAudioStream(nil, localAddr, 6000, 0, []string{"0"}, false, 0)
	}
}

func collectKinds(bus *notifybus.Bus) *[]notifybus.Kind {
	var kinds []notifybus.Kind
	bus.SubscribeAll(func(n notifybus.Notification) {
		kinds = append(kinds, n.Kind)
	})
	return &kinds
}

// Scenario A (spec.md §8): outgoing audio call reaches ESTABLISHED with
// the notification sequence NewOutgoing -> RingIndication -> WillStart ->
// DidStart.
func TestOutgoingAudioCallReachesEstablished(t *testing.T) {
	bus := notifybus.New()
	kinds := collectKinds(bus)
	inv := invitationtest.NewOutgoing()

	s, err := NewOutgoing(NewOutgoingOptions{
		Invitation:    inv,
		UseAudio:      true,
		RTPConfig:     rtpconfig.DefaultRTPConfiguration(),
		Bus:           bus,
		StreamFactory: audioFactory(),
	})
	require.NoError(t, err)
	assert.Equal(t, StateCalling, s.State())
	assert.True(t, s.HasAudio())

	s.OnEarlyRingingOutgoing()
	assert.Equal(t, StateRinging, s.State())

	s.OnConnecting()

	inv.ActiveLocalSDP = inv.OfferedLocalSDP
	inv.ActiveRemoteSDP = &invitation.SDPSession{
		Origin: invitation.Origin{User: "bob", ID: "1", NetType: "IN", AddressType: "IP4", Address: "203.0.113.9"},
		Media: []invitation.SDPMedia{
			{Media: "audio", Port: 7000, Transport: "RTP/AVP", Formats: []string{"0"},
				Attributes: []invitation.SDPAttribute{{Key: "sendrecv"}}},
		},
	}
	s.OnConfirmed(inv.ActiveLocalSDP, inv.ActiveRemoteSDP)

	assert.Equal(t, StateEstablished, s.State())
	assert.True(t, s.HasAudio())
	require.Equal(t, []notifybus.Kind{
		notifybus.SessionChangedState,
		notifybus.SessionNewOutgoing,
		notifybus.SessionChangedState,
		notifybus.SessionGotRingIndication,
		notifybus.SessionWillStart,
		notifybus.SessionChangedState,
		notifybus.SessionDidStart,
	}, *kinds)
}

func TestNewOutgoingRequiresAudio(t *testing.T) {
	_, err := NewOutgoing(NewOutgoingOptions{
		Invitation:    invitationtest.NewOutgoing(),
		UseAudio:      false,
		RTPConfig:     rtpconfig.DefaultRTPConfiguration(),
		StreamFactory: audioFactory(),
	})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrNoStreamRequested, serr.Kind)
}

func TestNewOutgoingRollsBackOnSendInviteFailure(t *testing.T) {
	inv := invitationtest.NewOutgoing()
	inv.FailSendInvite = assertErr{}
	_, err := NewOutgoing(NewOutgoingOptions{
		Invitation:    inv,
		UseAudio:      true,
		RTPConfig:     rtpconfig.DefaultRTPConfiguration(),
		StreamFactory: audioFactory(),
	})
	require.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "send invite failed" }

// Scenario B (spec.md §8): incoming audio call with a rejected video
// m-line: Accept(true) answers audio at its offered index and rejects
// video by port 0.
func TestAcceptRejectsUnrequestedVideoByPortZero(t *testing.T) {
	bus := notifybus.New()
	remote := &invitation.SDPSession{
		Origin: invitation.Origin{User: "alice", ID: "2", NetType: "IN", AddressType: "IP4", Address: "203.0.113.5"},
		Media: []invitation.SDPMedia{
			{Media: "audio", Port: 5004, Transport: "RTP/AVP", Formats: []string{"0"}},
			{Media: "video", Port: 5006, Transport: "RTP/AVP", Formats: []string{"96"}},
		},
	}
	inv := invitationtest.NewIncoming(remote)
	s := NewIncoming(IncomingOptions{
		Invitation:    inv,
		RTPConfig:     rtpconfig.DefaultRTPConfiguration(),
		Bus:           bus,
		StreamFactory: audioFactory(),
	})
	require.Equal(t, StateIncoming, s.State())

	require.NoError(t, s.Accept(true))
	assert.Equal(t, StateAccepting, s.State())

	answer := inv.OfferedLocalSDP
	require.Len(t, answer.Media, 2)
	assert.Equal(t, "audio", answer.Media[0].Media)
	assert.NotZero(t, answer.Media[0].Port)
	assert.Equal(t, "video", answer.Media[1].Media)
	assert.Zero(t, answer.Media[1].Port)
}

func TestAcceptFailsWhenAudioNotOffered(t *testing.T) {
	remote := &invitation.SDPSession{
		Media: []invitation.SDPMedia{{Media: "video", Port: 5006}},
	}
	inv := invitationtest.NewIncoming(remote)
	s := NewIncoming(IncomingOptions{Invitation: inv, StreamFactory: audioFactory()})
	err := s.Accept(true)
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrUnsupportedMedia, serr.Kind)
}

func TestRejectDelegatesToTerminate(t *testing.T) {
	bus := notifybus.New()
	kinds := collectKinds(bus)
	inv := invitationtest.NewIncoming(&invitation.SDPSession{Media: []invitation.SDPMedia{{Media: "audio", Port: 1}}})
	s := NewIncoming(IncomingOptions{Invitation: inv, Bus: bus, StreamFactory: audioFactory()})

	require.NoError(t, s.Reject())
	assert.Equal(t, StateTerminating, s.State())
	assert.Contains(t, *kinds, notifybus.SessionWillEnd)
	assert.Contains(t, inv.Calls, "Disconnect")
}

// Scenario F (spec.md §8): terminate during CALLING emits WillEnd then,
// once DISCONNECTED arrives, DidEnd with no DidFail (user-initiated).
func TestTerminateDuringCallingEndsWithoutFailure(t *testing.T) {
	bus := notifybus.New()
	kinds := collectKinds(bus)
	inv := invitationtest.NewOutgoing()
	s, err := NewOutgoing(NewOutgoingOptions{
		Invitation: inv, UseAudio: true, Bus: bus, StreamFactory: audioFactory(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Terminate())
	assert.Equal(t, StateTerminating, s.State())

	s.OnDisconnected(false, "")
	assert.Equal(t, StateTerminated, s.State())

	last := (*kinds)[len(*kinds)-1]
	assert.Equal(t, notifybus.SessionDidEnd, last)
	for _, k := range *kinds {
		assert.NotEqual(t, notifybus.SessionDidFail, k)
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	inv := invitationtest.NewOutgoing()
	s, err := NewOutgoing(NewOutgoingOptions{Invitation: inv, UseAudio: true, StreamFactory: audioFactory()})
	require.NoError(t, err)
	require.NoError(t, s.Terminate())
	require.NoError(t, s.Terminate())
	require.NoError(t, s.Terminate())
}

func TestSendDTMFFailsWithoutActiveAudio(t *testing.T) {
	inv := invitationtest.NewOutgoing()
	s, err := NewOutgoing(NewOutgoingOptions{Invitation: inv, UseAudio: true, StreamFactory: audioFactory()})
	require.NoError(t, err)
	err = s.SendDTMF(mediastream.DTMF1)
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrStreamNotReady, serr.Kind)
}
