// Package trustping completes connections. A ping or its response over a
// connection in a response state is the confirmation that both ends can reach
// each other, and moves the connection to active.
package trustping

import (
	"github.com/findy-network/findy-issuer-agent/agent/comm"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/pltype"
	"github.com/findy-network/findy-issuer-agent/agent/prot"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/registry"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

func init() {
	comm.Proc.Add(map[string]comm.HandlerFunc{
		pltype.TrustPingPing:     handlePing,
		pltype.TrustPingResponse: handlePingResponse,
	})
}

func handlePing(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "trust ping")

	connID := packet.Payload.ThreadID()
	key, err := connectionKey(packet.Principal, connID)
	try.To(err)

	rep := try.To1(psm.GetConnectionRep(key))
	m := try.To1(psm.GetPSM(key))
	if m.IsTerminal() {
		return psm.ErrAlreadyTerminal
	}

	// also an already active connection answers pings
	opl := didcomm.NewPayload(pltype.TrustPingResponse, connID, nil)
	try.To(comm.SendPL(rep.TheirEndpoint, opl))

	return prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnActive,
		PLType: pltype.TrustPingPing,
	})
}

func handlePingResponse(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "trust ping response")

	connID := packet.Payload.ThreadID()
	key, err := connectionKey(packet.Principal, connID)
	try.To(err)

	// already active connections repeat this as a no-op
	return prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnActive,
		PLType: pltype.TrustPingResponse,
	})
}

func connectionKey(p comm.Principal, connID string) (key psm.StateKey, err error) {
	kind, rErr := registry.Resolve(connID)
	if rErr != nil || kind != psm.Connection {
		return psm.StateKey{}, psm.ErrUnknownConnection
	}
	return psm.StateKey{DID: p.DID, Nonce: connID}, nil
}
