package sdpneg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sipcore/sipsession/invitation"
)

func baseSDP(version uint64) *invitation.SDPSession {
	return &invitation.SDPSession{
		Version:    version,
		Origin:     invitation.Origin{User: "alice", ID: "1", NetType: "IN", AddressType: "IP4", Address: "203.0.113.5"},
		Connection: "203.0.113.5",
		Media: []invitation.SDPMedia{
			{Media: "audio", Port: 5004, Transport: "RTP/AVP", Formats: []string{"0"},
				Attributes: []invitation.SDPAttribute{{Key: "sendrecv"}}},
		},
	}
}

// Scenario D (spec.md §8): a version skip is always rejected 488.
func TestValidateReinviteRejectsVersionSkip(t *testing.T) {
	cur := baseSDP(10)
	newer := baseSDP(12)
	outcome, _ := ValidateReinvite(cur, newer)
	assert.Equal(t, OutcomeReject488, outcome)
}

func TestValidateReinviteRejectsIdenticalVersionDifferentBody(t *testing.T) {
	cur := baseSDP(5)
	newer := baseSDP(5)
	newer.Media[0].Port = 6000
	outcome, _ := ValidateReinvite(cur, newer)
	assert.Equal(t, OutcomeReject488, outcome)
}

func TestValidateReinviteReassertsIdenticalRetransmit(t *testing.T) {
	cur := baseSDP(5)
	newer := baseSDP(5)
	outcome, _ := ValidateReinvite(cur, newer)
	assert.Equal(t, OutcomeReassertCurrent, outcome)
}

func TestValidateReinviteRejectsOriginChange(t *testing.T) {
	cur := baseSDP(5)
	newer := baseSDP(6)
	newer.Origin.Address = "203.0.113.6"
	outcome, _ := ValidateReinvite(cur, newer)
	assert.Equal(t, OutcomeReject488, outcome)
}

// Scenario E (spec.md §8): a newly-active stream kind at version+1 with a
// stable origin surfaces as a proposal.
func TestValidateReinviteSurfacesNewStreamAsProposal(t *testing.T) {
	cur := baseSDP(5)
	newer := baseSDP(6)
	newer.Media = append(newer.Media, invitation.SDPMedia{Media: "chat", Port: 6001})
	outcome, kinds := ValidateReinvite(cur, newer)
	assert.Equal(t, OutcomeProposal, outcome)
	assert.Equal(t, []string{"chat"}, kinds)
}

func TestValidateReinviteAutoAnswersDirectionOnlyChange(t *testing.T) {
	cur := baseSDP(5)
	newer := baseSDP(6)
	newer.Media[0] = newer.Media[0].WithDirection(invitation.DirectionSendOnly)
	outcome, _ := ValidateReinvite(cur, newer)
	assert.Equal(t, OutcomeAutoAnswer, outcome)
}

// Property 6 (spec.md §8): any version gap outside {equal, +1} is 488.
func TestValidateReinviteAnyOtherVersionGapIs488(t *testing.T) {
	cur := baseSDP(5)
	for _, v := range []uint64{0, 1, 3, 4, 7, 100} {
		newer := baseSDP(v)
		outcome, _ := ValidateReinvite(cur, newer)
		assert.Equal(t, OutcomeReject488, outcome, "version %d", v)
	}
}

// Property 5 (spec.md §8): make_next_sdp always bumps the version by one
// and preserves origin fields.
func TestMakeNextSDPBumpsVersionAndPreservesOrigin(t *testing.T) {
	active := baseSDP(3)
	next := MakeNextSDP(active, 0, active.Media[0].WithDirection(invitation.DirectionSendOnly))
	assert.Equal(t, active.Version+1, next.Version)
	assert.Equal(t, active.Origin, next.Origin)
	assert.Equal(t, invitation.DirectionSendOnly, next.Media[0].Direction())
}

func TestHoldDirection(t *testing.T) {
	assert.Equal(t, invitation.DirectionSendOnly, HoldDirection(invitation.DirectionSendRecv, true))
	assert.Equal(t, invitation.DirectionSendRecv, HoldDirection(invitation.DirectionSendRecv, false))
	assert.Equal(t, invitation.DirectionInactive, HoldDirection(invitation.DirectionRecvOnly, true))
	assert.Equal(t, invitation.DirectionRecvOnly, HoldDirection(invitation.DirectionRecvOnly, false))
}

func TestAnswerDirection(t *testing.T) {
	assert.Equal(t, invitation.DirectionInactive, AnswerDirection(invitation.DirectionInactive, true))
	assert.Equal(t, invitation.DirectionRecvOnly, AnswerDirection(invitation.DirectionSendOnly, true))
	assert.Equal(t, invitation.DirectionSendOnly, AnswerDirection(invitation.DirectionRecvOnly, true))
	assert.Equal(t, invitation.DirectionInactive, AnswerDirection(invitation.DirectionRecvOnly, false))
	assert.Equal(t, invitation.DirectionSendRecv, AnswerDirection(invitation.DirectionSendRecv, true))
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	orig := baseSDP(1)
	data, err := Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	assert.Equal(t, orig.Connection, got.Connection)
	assert.Equal(t, orig.Origin.User, got.Origin.User)
	assert.Len(t, got.Media, 1)
	assert.Equal(t, "audio", got.Media[0].Media)
	assert.Equal(t, 5004, got.Media[0].Port)
}
