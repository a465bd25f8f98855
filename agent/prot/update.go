/*
Package prot drives the state transitions of every protocol state machine.
All externally triggered transitions go through it: it serializes writers per
machine, validates the lifecycle edge, and commits the new state only after
the transition's own work succeeded. A failed transition leaves the machine in
its pre-transition state and the identical request may be retried. Repeating
an already applied transition is a no-op, not an error.
*/
package prot

import (
	"errors"

	"github.com/findy-network/findy-issuer-agent/agent/bus"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Transition combines the rules to execute one state transition i.e. move a
// machine to its next state.
type Transition struct {
	Key    psm.StateKey
	Kind   psm.Kind
	Target string // the lifecycle state we move to
	PLType string // the payload type that caused this transition

	// StartedByUs is stored to the machine on its first transition.
	StartedByUs bool

	// Update does the transition's own work: rep mutation, message
	// sending. It runs before the state is committed so a failure leaves
	// the machine untouched. Optional.
	Update func() (err error)
}

// Start creates a new machine and commits its initial state. The work in
// ts.Update runs before anything is persisted: when it fails no machine
// exists afterwards.
func Start(ts Transition) (err error) {
	defer err2.Handle(&err, "start psm")

	unlock := machines.lock(ts.Key)
	defer unlock()

	if _, err := psm.GetPSM(ts.Key); err == nil {
		// created already, at-least-once delivery repeats are fine
		glog.V(1).Infoln("psm exists, skipping create:", ts.Key.String())
		return nil
	}

	if ts.Update != nil {
		try.To(ts.Update())
	}

	m := &psm.PSM{Key: ts.Key, Kind: ts.Kind, StartedByUs: ts.StartedByUs}
	m.Append(ts.Target, ts.PLType)
	try.To(psm.AddPSM(m))

	bus.WantAll.Broadcast(ts.Key, ts.Target)
	return nil
}

// Advance moves an existing machine to ts.Target. Applying the same target
// twice is a no-op on the second call. An edge the lifecycle tables reject
// fails with ErrInvalidTransition, or with ErrAlreadyTerminal when the
// machine has completed.
func Advance(ts Transition) (err error) {
	defer err2.Handle(&err, "advance psm")

	unlock := machines.lock(ts.Key)
	defer unlock()

	m, err := psm.GetPSM(ts.Key)
	if errors.Is(err, psm.ErrNotFound) {
		return psm.ErrNotFound
	}
	try.To(err)

	if m.Applied(ts.Target) {
		glog.V(1).Infoln("idempotent repeat of", ts.Target, "for", ts.Key.String())
		return nil
	}
	if !m.Accepts(ts.Target) {
		if m.IsTerminal() {
			return psm.ErrAlreadyTerminal
		}
		glog.Warningln("rejecting transition", m.StateName(), "->", ts.Target)
		return psm.ErrInvalidTransition
	}

	if ts.Update != nil {
		try.To(ts.Update())
	}

	m.Append(ts.Target, ts.PLType)
	try.To(psm.AddPSM(m))

	bus.WantAll.Broadcast(ts.Key, ts.Target)
	return nil
}
