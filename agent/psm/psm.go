/*
Package psm holds the protocol state machines of the agency. A machine works
in event sourcing principle: every state transition is appended to its States
field and the current state is always the last entry. Replaying or repeating a
transition is therefore structurally visible instead of being lost in a
mutable field. The domain data of a machine lives in a separate rep type
(ConnectionRep, IssueCredRep) stored next to it.
*/
package psm

import (
	"time"

	"github.com/findy-network/findy-common-go/dto"
)

// StateKey is the primary key of a protocol state machine: it's pointed by
// the agent's DID and the entity's correlation id.
type StateKey struct {
	DID   string
	Nonce string
}

func (key StateKey) Data() []byte {
	return []byte(key.DID + "|" + key.Nonce)
}

func (key StateKey) String() string {
	return key.DID + "|" + key.Nonce
}

// State is one entry of a machine's transition history.
type State struct {
	Timestamp int64  // unix nano of the transition
	Name      string // lifecycle state entered
	PLType    string // payload type that caused the transition
}

// PSM is a Protocol State Machine for one connection or credential exchange.
type PSM struct {
	// Key is the primary key of the protocol state machine
	Key StateKey

	// Kind tells which lifecycle table governs this machine
	Kind Kind

	// StartedByUs tells if we sent the first protocol msg. It's false when
	// we are the receiving part.
	StartedByUs bool

	// States has all of the state history of this PSM in timestamp order
	States []State
}

func NewPSM(d []byte) *PSM {
	p := &PSM{}
	dto.FromGOB(d, p)
	return p
}

func (p *PSM) Data() []byte {
	return dto.ToGOB(p)
}

func (p *PSM) FirstState() *State {
	if len(p.States) > 0 {
		return &p.States[0]
	}
	return nil
}

func (p *PSM) LastState() *State {
	if sCount := len(p.States); sCount > 0 {
		return &p.States[sCount-1]
	}
	return nil
}

// StateName returns the machine's current lifecycle state.
func (p *PSM) StateName() string {
	if state := p.LastState(); state != nil {
		return state.Name
	}
	return ""
}

// IsTerminal tells if the machine has reached one of its terminal states and
// will not transition again.
func (p *PSM) IsTerminal() bool {
	return terminal(p.Kind, p.StateName())
}

// Applied tells if the machine has already been through the named state.
// Because states only move forward, a repeated transition to an applied state
// is always a replay and never new work.
func (p *PSM) Applied(name string) bool {
	for i := range p.States {
		if p.States[i].Name == name {
			return true
		}
	}
	return false
}

// Accepts tells if the machine can move to the next state. An already current
// next is not accepted here, idempotent repeats are the transition driver's
// decision.
func (p *PSM) Accepts(next string) bool {
	return CanMoveTo(p.Kind, p.StateName(), next)
}

// Append adds a new state to the history. The caller has validated the edge.
func (p *PSM) Append(name, plType string) {
	p.States = append(p.States, State{
		Timestamp: time.Now().UnixNano(),
		Name:      name,
		PLType:    plType,
	})
}

// CreatedAt is the timestamp of the machine's first transition.
func (p *PSM) CreatedAt() int64 {
	if state := p.FirstState(); state != nil {
		return state.Timestamp
	}
	return 0
}

// Timestamp is the timestamp of the machine's latest transition. It is
// monotonically non-decreasing because states are only appended.
func (p *PSM) Timestamp() int64 {
	if state := p.LastState(); state != nil {
		return state.Timestamp
	}
	return 0
}
