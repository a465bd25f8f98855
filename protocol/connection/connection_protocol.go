/*
Package connection implements the pairwise connection protocol. A connection
starts from an invitation, moves through the request and response messages,
and completes to active when trust ping traffic confirms the other end. The
lifecycle is independent of any credential exchange but every exchange
requires an active connection to run on.
*/
package connection

import (
	"errors"

	"github.com/findy-network/findy-issuer-agent/agent/comm"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/pltype"
	"github.com/findy-network/findy-issuer-agent/agent/prot"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/registry"
	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

func init() {
	comm.Proc.Add(map[string]comm.HandlerFunc{
		pltype.AriesConnectionInvitation: handleConnectionInvitation,
		pltype.AriesConnectionRequest:    handleConnectionRequest,
		pltype.AriesConnectionResponse:   handleConnectionResponse,
	})
}

// CreateInvitation creates a new connection in invitation-sent state and
// returns its rep. Repeated calls create distinct connections by design, the
// invitation content itself does not dedup.
func CreateInvitation(p comm.Principal, label string) (rep *psm.ConnectionRep, err error) {
	defer err2.Handle(&err, "create invitation")

	if label == "" {
		label = utils.Settings.Label()
	}

	connID := try.To1(registry.Allocate(psm.Connection))

	invitation := didcomm.Invitation{
		Type:            pltype.AriesConnectionInvitation,
		ID:              connID,
		ServiceEndpoint: utils.Settings.HostAddr() + "/didcomm/",
		RecipientKeys:   []string{utils.NewVerKey()},
		Label:           label,
	}
	// malformed invitations are never stored
	try.To(invitation.Validate())

	key := psm.StateKey{DID: p.DID, Nonce: connID}
	rep = &psm.ConnectionRep{
		Key:            key,
		Invitation:     invitation,
		InvitationKey:  invitation.RecipientKeys[0],
		InvitationMode: utils.Settings.InvitationMode(),
		Accept:         utils.Settings.AcceptMode(),
		RoutingState:   pltype.RoutingStateNone,
		Initiator:      pltype.InitiatorSelf,
	}

	try.To(prot.Start(prot.Transition{
		Key:         key,
		Kind:        psm.Connection,
		Target:      psm.ConnInvitationSent,
		PLType:      pltype.AriesConnectionInvitation,
		StartedByUs: true,
		Update: func() error {
			return psm.AddConnectionRep(rep)
		},
	}))

	return rep, nil
}

// ReceiveInvitation starts an externally initiated connection from a decoded
// invitation: the new connection enters invitation-received and a connection
// request is sent to the inviter's endpoint.
func ReceiveInvitation(p comm.Principal, invitation *didcomm.Invitation) (rep *psm.ConnectionRep, err error) {
	defer err2.Handle(&err, "receive invitation")

	try.To(invitation.Validate())

	connID := try.To1(registry.Allocate(psm.Connection))
	key := psm.StateKey{DID: p.DID, Nonce: connID}
	rep = &psm.ConnectionRep{
		Key:            key,
		Invitation:     *invitation,
		InvitationKey:  firstKey(invitation),
		InvitationMode: pltype.InvitationModeOnce,
		Accept:         utils.Settings.AcceptMode(),
		RoutingState:   pltype.RoutingStateNone,
		Initiator:      pltype.InitiatorExternal,
		TheirLabel:     invitation.Label,
		TheirEndpoint:  invitation.ServiceEndpoint,
	}

	try.To(prot.Start(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnInvitationReceived,
		PLType: pltype.AriesConnectionInvitation,
		Update: func() error {
			return psm.AddConnectionRep(rep)
		},
	}))

	try.To(prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnRequestSent,
		PLType: pltype.AriesConnectionRequest,
		Update: func() error {
			opl := didcomm.NewPayload(pltype.AriesConnectionRequest,
				invitation.ID, &didcomm.ConnectionRequest{
					Label:    p.Label,
					Endpoint: utils.Settings.HostAddr() + "/didcomm/",
				})
			return comm.SendPL(invitation.ServiceEndpoint, opl)
		},
	}))

	return rep, nil
}

// AcceptRequest is the manual approval step of a connection in manual accept
// mode: it answers a received request with our response.
func AcceptRequest(p comm.Principal, connID string) (err error) {
	defer err2.Handle(&err, "accept request")

	key := psm.StateKey{DID: p.DID, Nonce: connID}
	rep, err := psm.GetConnectionRep(key)
	if errors.Is(err, psm.ErrNotFound) {
		return psm.ErrNotFound
	}
	try.To(err)

	return sendResponse(key, rep)
}

// Reject abandons a connection at any non-terminal state. Abandoning is
// blocked while the connection still has open credential exchanges.
func Reject(p comm.Principal, connID string) (err error) {
	defer err2.Handle(&err, "reject connection")

	key := psm.StateKey{DID: p.DID, Nonce: connID}

	open := try.To1(psm.HasOpenExchanges(connID))
	if open {
		return psm.ErrOpenExchanges
	}

	return prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnAbandoned,
		PLType: pltype.NotificationProblemReport,
	})
}

// Status returns the current point-in-time view of a connection.
func Status(p comm.Principal, connID string) (rep *psm.ConnectionRep, m *psm.PSM, err error) {
	defer err2.Handle(&err, "connection status")

	key := psm.StateKey{DID: p.DID, Nonce: connID}
	rep, err = psm.GetConnectionRep(key)
	if errors.Is(err, psm.ErrNotFound) {
		return nil, nil, psm.ErrNotFound
	}
	try.To(err)

	m = try.To1(psm.GetPSM(key))
	return rep, m, nil
}

func firstKey(invitation *didcomm.Invitation) string {
	if len(invitation.RecipientKeys) > 0 {
		return invitation.RecipientKeys[0]
	}
	return ""
}

func handleConnectionInvitation(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "connection invitation")

	invitation := &didcomm.Invitation{}
	try.To(packet.Payload.FieldObj(invitation))
	if invitation.ID == "" {
		invitation.ID = packet.Payload.ThreadID()
	}

	_, err = ReceiveInvitation(packet.Principal, invitation)
	return err
}

func handleConnectionRequest(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "connection req")

	connID := packet.Payload.ThreadID()
	glog.V(1).Infoln("current thread ID:", connID)

	kind, rErr := registry.Resolve(connID)
	if rErr != nil || kind != psm.Connection {
		return psm.ErrUnknownConnection
	}

	key := psm.StateKey{DID: packet.Principal.DID, Nonce: connID}
	rep := try.To1(psm.GetConnectionRep(key))

	req := &didcomm.ConnectionRequest{}
	try.To(packet.Payload.FieldObj(req))

	if rep.InvitationMode == pltype.InvitationModeMulti {
		// every request spawns an independent connection sharing the
		// invitation content
		rep, key = try.To2(spawnConnection(packet.Principal, rep))
	}

	m := try.To1(psm.GetPSM(key))
	if m.StateName() != psm.ConnInvitationSent {
		// a once invitation answers only its first request, the
		// original connection stays untouched
		return psm.ErrInvitationExhausted
	}

	try.To(prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnRequestReceived,
		PLType: pltype.AriesConnectionRequest,
		Update: func() error {
			rep.TheirLabel = req.Label
			rep.TheirDID = req.DID
			rep.TheirEndpoint = req.Endpoint
			rep.TheirVerKey = req.VerKey
			return psm.AddConnectionRep(rep)
		},
	}))

	if rep.Accept == pltype.AcceptAuto {
		try.To(sendResponse(key, rep))
	}
	return nil
}

func handleConnectionResponse(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "connection response")

	connID := packet.Payload.ThreadID()

	kind, rErr := registry.Resolve(connID)
	if rErr != nil || kind != psm.Connection {
		// distinguish "will never exist" from "not yet visible"
		return psm.ErrUnknownConnection
	}

	key := psm.StateKey{DID: packet.Principal.DID, Nonce: connID}
	rep := try.To1(psm.GetConnectionRep(key))

	response := &didcomm.ConnectionResponse{}
	try.To(packet.Payload.FieldObj(response))

	try.To(prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnResponseReceived,
		PLType: pltype.AriesConnectionResponse,
		Update: func() error {
			rep.TheirDID = response.DID
			if response.Endpoint != "" {
				rep.TheirEndpoint = response.Endpoint
			}
			rep.TheirVerKey = response.VerKey
			return psm.AddConnectionRep(rep)
		},
	}))

	// we have both ends now, confirm with a trust ping and complete
	return prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnActive,
		PLType: pltype.TrustPingPing,
		Update: func() error {
			opl := didcomm.NewPayload(pltype.TrustPingPing, connID, nil)
			return comm.SendPL(rep.TheirEndpoint, opl)
		},
	})
}

func sendResponse(key psm.StateKey, rep *psm.ConnectionRep) (err error) {
	defer err2.Handle(&err, "send response")

	return prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.Connection,
		Target: psm.ConnResponseSent,
		PLType: pltype.AriesConnectionResponse,
		Update: func() error {
			opl := didcomm.NewPayload(pltype.AriesConnectionResponse,
				key.Nonce, &didcomm.ConnectionResponse{
					Endpoint: utils.Settings.HostAddr() + "/didcomm/",
				})
			if rep.ParentID != "" {
				opl.Thread.PID = rep.ParentID
			}
			return comm.SendPL(rep.TheirEndpoint, opl)
		},
	})
}

// spawnConnection creates an independent connection record for one request
// against a multi mode invitation.
func spawnConnection(
	p comm.Principal,
	parent *psm.ConnectionRep,
) (
	rep *psm.ConnectionRep,
	key psm.StateKey,
	err error,
) {
	defer err2.Handle(&err, "spawn connection")

	connID := try.To1(registry.Allocate(psm.Connection))
	key = psm.StateKey{DID: p.DID, Nonce: connID}
	rep = &psm.ConnectionRep{
		Key:            key,
		Invitation:     parent.Invitation,
		InvitationKey:  parent.InvitationKey,
		InvitationMode: parent.InvitationMode,
		Accept:         parent.Accept,
		RoutingState:   parent.RoutingState,
		Initiator:      parent.Initiator,
		ParentID:       parent.ConnectionID(),
	}

	try.To(prot.Start(prot.Transition{
		Key:         key,
		Kind:        psm.Connection,
		Target:      psm.ConnInvitationSent,
		PLType:      pltype.AriesConnectionInvitation,
		StartedByUs: true,
		Update: func() error {
			return psm.AddConnectionRep(rep)
		},
	}))

	return rep, key, nil
}
