package session

import (
	"context"

	"github.com/looplab/fsm"
)

// State is a Session lifecycle position (§3 of spec.md). ONHOLD-LOCAL,
// ONHOLD-REMOTE and ONHOLD-BOTH are not members of this enum: per §3
// they are orthogonal flags layered over ESTABLISHED, surfaced through
// Session.Effective instead of the FSM itself, matching how
// pkg/dialog.Dialog keeps its own small state enum and layers
// call-feature flags (hold, refer) on top rather than multiplying FSM
// states.
type State string

const (
	StateNull        State = "NULL"
	StateCalling     State = "CALLING"
	StateRinging     State = "RINGING"
	StateIncoming    State = "INCOMING"
	StateAccepting   State = "ACCEPTING"
	StateEstablished State = "ESTABLISHED"
	StateProposed    State = "PROPOSED"
	StateReinviting  State = "REINVITING"
	StateTerminating State = "TERMINATING"
	StateTerminated  State = "TERMINATED"
)

func (s State) String() string { return string(s) }

// EffectiveState is what Session.Effective() reports: State() with the
// ONHOLD-* refinement applied when the underlying state is ESTABLISHED
// (§3).
type EffectiveState string

const (
	EffectiveOnHoldLocal  EffectiveState = "ONHOLD-LOCAL"
	EffectiveOnHoldRemote EffectiveState = "ONHOLD-REMOTE"
	EffectiveOnHoldBoth   EffectiveState = "ONHOLD-BOTH"
)

// newFSM builds the looplab/fsm machine backing a Session, the same way
// pkg/dialog.Dialog.initFSM builds its dialog state machine: a flat
// events table plus an after_event callback that passes each
// transition's destination state to onTransition. Session reads its
// state straight from the FSM (fsm.Current) under the session lock.
func newFSM(onTransition func(dst State)) *fsm.FSM {
	return fsm.NewFSM(
		StateNull.String(),
		fsm.Events{
			{Name: "new", Src: []string{StateNull.String()}, Dst: StateCalling.String()},
			{Name: "incoming", Src: []string{StateNull.String()}, Dst: StateIncoming.String()},
			{Name: "ring", Src: []string{StateCalling.String()}, Dst: StateRinging.String()},
			{Name: "accept", Src: []string{StateIncoming.String()}, Dst: StateAccepting.String()},
			{Name: "established", Src: []string{StateCalling.String(), StateRinging.String(), StateAccepting.String()}, Dst: StateEstablished.String()},
			{Name: "reinvite_out", Src: []string{StateEstablished.String()}, Dst: StateReinviting.String()},
			{Name: "reinvite_done", Src: []string{StateReinviting.String()}, Dst: StateEstablished.String()},
			{Name: "propose", Src: []string{StateEstablished.String()}, Dst: StateProposed.String()},
			{Name: "proposal_resolved", Src: []string{StateProposed.String()}, Dst: StateEstablished.String()},
			{
				Name: "terminate",
				Src: []string{
					StateCalling.String(), StateRinging.String(), StateIncoming.String(),
					StateAccepting.String(), StateEstablished.String(), StateProposed.String(),
					StateReinviting.String(),
				},
				Dst: StateTerminating.String(),
			},
			// disconnected fires on the invitation engine's DISCONNECTED
			// event, from whatever state the Session was in — a remote
			// BYE or failure does not necessarily pass through a local
			// terminate() call first (§4.3 DISCONNECTED).
			{
				Name: "disconnected",
				Src: []string{
					StateCalling.String(), StateRinging.String(), StateIncoming.String(),
					StateAccepting.String(), StateEstablished.String(), StateProposed.String(),
					StateReinviting.String(), StateTerminating.String(),
				},
				Dst: StateTerminated.String(),
			},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				onTransition(State(e.Dst))
			},
		},
	)
}
