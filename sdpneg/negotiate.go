package sdpneg

import (
	"reflect"

	"github.com/sipcore/sipsession/invitation"
)

// ReinviteOutcome tells the caller (sessionmanager, §4.3 REINVITED
// handling) what to do with an incoming reinvite.
type ReinviteOutcome int

const (
	// OutcomeReject488 means the proposal violates §4.4's version/origin
	// rules and must be answered 488.
	OutcomeReject488 ReinviteOutcome = iota
	// OutcomeReassertCurrent means new == cur at the same version: answer
	// 200 re-asserting the current local SDP, no state change.
	OutcomeReassertCurrent
	// OutcomeAutoAnswer means the stream set is unchanged (only
	// direction/port changes): auto-answer with a freshly built local
	// SDP and respond 200.
	OutcomeAutoAnswer
	// OutcomeProposal means a new stream kind appeared: transition to
	// PROPOSED, respond 180, and surface SessionGotStreamProposal.
	OutcomeProposal
)

// ValidateReinvite implements §4.4: given the currently active remote
// SDP and the newly proposed remote SDP, decide how to answer.
//
// newMediaKinds is only meaningful when the outcome is OutcomeProposal;
// it lists the media kinds (e.g. "audio", "chat") that are newly active
// in new relative to cur, for SessionGotStreamProposal's has_audio /
// has_chat payload.
func ValidateReinvite(cur, new *invitation.SDPSession) (outcome ReinviteOutcome, newMediaKinds []string) {
	switch {
	case new.Version == cur.Version:
		if sdpEqual(cur, new) {
			return OutcomeReassertCurrent, nil
		}
		return OutcomeReject488, nil

	case new.Version == cur.Version+1:
		if !cur.Origin.Equal(new.Origin) {
			return OutcomeReject488, nil
		}
		curKinds := cur.ActiveMediaKinds()
		newKinds := new.ActiveMediaKinds()
		var added []string
		for kind := range newKinds {
			if !curKinds[kind] {
				added = append(added, kind)
			}
		}
		if len(added) > 0 {
			return OutcomeProposal, added
		}
		return OutcomeAutoAnswer, nil

	default:
		return OutcomeReject488, nil
	}
}

// sdpEqual compares two SDP sessions for the "identical SDP" check in
// §4.4's same-version branch.
func sdpEqual(a, b *invitation.SDPSession) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
