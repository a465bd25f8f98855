/*
Package issuecredential implements the credential exchange protocol on top of
the machine layer. An exchange always binds to one active connection and to
one thread id, and at most one exchange per connection, schema and cred def
can be open at a time. The cryptographic material inside offers, requests and
credentials comes from the vc collaborator and moves through this package as
opaque blobs.
*/
package issuecredential

import (
	"context"
	"errors"
	"strings"

	"github.com/findy-network/findy-issuer-agent/agent/comm"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/pltype"
	"github.com/findy-network/findy-issuer-agent/agent/prot"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/registry"
	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/findy-network/findy-issuer-agent/agent/vc"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

func init() {
	comm.Proc.Add(map[string]comm.HandlerFunc{
		pltype.IssueCredentialPropose: handleCredentialPropose,
		pltype.IssueCredentialOffer:   handleCredentialOffer,
		pltype.IssueCredentialRequest: handleCredentialRequest,
		pltype.IssueCredentialIssue:   handleCredentialIssue,
		pltype.IssueCredentialACK:     handleCredentialACK,
	})
}

// Create starts a new credential exchange on connID with the given preview
// attributes. The connection is checked first: nothing of the exchange is
// created when the connection is unknown or not yet active. The returned rep
// is in proposal-sent state and the proposal has gone out.
func Create(
	p comm.Principal,
	connID string,
	attributes []didcomm.CredentialAttribute,
) (
	rep *psm.IssueCredRep,
	err error,
) {
	defer err2.Handle(&err, "create credential exchange")

	connRep, _ := try.To2(activeConnection(p, connID))

	attributes = try.To1(cleanAttributes(attributes))

	exchangeID := try.To1(registry.Allocate(psm.CredentialExchange))
	key := psm.StateKey{DID: p.DID, Nonce: exchangeID}
	threadID := utils.UUID()

	prover := try.To1(vc.Get())
	nonce := utils.NewNonceStr()
	proof := try.To1(prover.BuildProof(context.Background(),
		utils.Settings.CredDefID(), nonce, attributeValues(attributes)))

	rep = &psm.IssueCredRep{
		Key:          key,
		ConnectionID: connID,
		ThreadID:     threadID,
		SchemaID:     utils.Settings.SchemaID(),
		CredDefID:    utils.Settings.CredDefID(),
		AutoIssue:    utils.Settings.AutoIssue(),
		AutoOffer:    utils.Settings.AutoOffer(),
		Attributes:   attributes,
		CredOffer: didcomm.CredentialOffer{
			SchemaID:            utils.Settings.SchemaID(),
			CredDefID:           utils.Settings.CredDefID(),
			KeyCorrectnessProof: proof,
			Nonce:               nonce,
		},
	}

	// the active slot is claimed before the machine exists so two
	// concurrent creates cannot both pass
	try.To(psm.ReserveActive(rep))

	err = prot.Start(prot.Transition{
		Key:         key,
		Kind:        psm.CredentialExchange,
		Target:      psm.CredProposalSent,
		PLType:      pltype.IssueCredentialPropose,
		StartedByUs: true,
		Update: func() error {
			opl := didcomm.NewPayload(pltype.IssueCredentialPropose,
				threadID, &didcomm.CredentialPropose{
					CredDefID: rep.CredDefID,
					SchemaID:  rep.SchemaID,
					CredentialProposal: didcomm.PreviewCredential{
						Type:       pltype.CredentialPreview,
						Attributes: attributes,
					},
				})
			// the parent thread binds the exchange to its connection
			opl.Thread.PID = connID

			// send first: a delivery failure must not leave thread or
			// rep rows behind
			if err := comm.SendPL(connRep.TheirEndpoint, opl); err != nil {
				return err
			}
			if err := psm.AddThread(threadID, key); err != nil {
				return err
			}
			return psm.AddIssueCredRep(rep)
		},
	})
	if err != nil {
		// failed create leaves nothing active nor resolvable behind
		if rErr := psm.ReleaseActive(rep); rErr != nil {
			glog.Warningln("release after failed create:", rErr)
		}
		retire(exchangeID)
		return nil, err
	}

	return rep, nil
}

// SendOffer is the manual issuer step answering a received proposal with our
// offer. With auto offer mode on the offer has gone out already and this call
// is an idempotent repeat.
func SendOffer(p comm.Principal, exchangeID string) (err error) {
	defer err2.Handle(&err, "send offer")

	key := psm.StateKey{DID: p.DID, Nonce: exchangeID}
	rep := try.To1(getRep(key))
	return sendOffer(key, rep)
}

// Issue is the manual issuer step building and sending the credential for a
// validated request.
func Issue(p comm.Principal, exchangeID string) (err error) {
	defer err2.Handle(&err, "issue credential")

	key := psm.StateKey{DID: p.DID, Nonce: exchangeID}
	rep := try.To1(getRep(key))
	return sendCredential(key, rep)
}

// Reject abandons an exchange and notifies the other end with a problem
// report. Rejecting an already terminal exchange fails, the decision cannot
// be altered afterwards.
func Reject(p comm.Principal, exchangeID, comment string) (err error) {
	defer err2.Handle(&err, "reject credential exchange")

	key := psm.StateKey{DID: p.DID, Nonce: exchangeID}
	rep := try.To1(getRep(key))
	return abandon(key, rep, comment, true)
}

// Status returns the current point-in-time view of an exchange.
func Status(p comm.Principal, exchangeID string) (rep *psm.IssueCredRep, m *psm.PSM, err error) {
	defer err2.Handle(&err, "credential exchange status")

	key := psm.StateKey{DID: p.DID, Nonce: exchangeID}
	rep, err = getRep(key)
	try.To(err)
	m = try.To1(psm.GetPSM(key))
	return rep, m, nil
}

func getRep(key psm.StateKey) (rep *psm.IssueCredRep, err error) {
	rep, err = psm.GetIssueCredRep(key)
	if errors.Is(err, psm.ErrNotFound) {
		return nil, psm.ErrNotFound
	}
	return rep, err
}

// activeConnection loads connID and requires it to be in active state.
func activeConnection(p comm.Principal, connID string) (rep *psm.ConnectionRep, m *psm.PSM, err error) {
	defer err2.Handle(&err, "active connection")

	kind, rErr := registry.Resolve(connID)
	if rErr != nil || kind != psm.Connection {
		return nil, nil, psm.ErrUnknownConnection
	}

	key := psm.StateKey{DID: p.DID, Nonce: connID}
	rep = try.To1(psm.GetConnectionRep(key))
	m = try.To1(psm.GetPSM(key))
	if m.StateName() != psm.ConnActive {
		return nil, nil, psm.ErrConnectionNotReady
	}
	return rep, m, nil
}

// cleanAttributes drops attributes with empty values and keeps the rest in
// their declaration order. An all empty set cannot become a credential.
func cleanAttributes(attributes []didcomm.CredentialAttribute) (cleaned []didcomm.CredentialAttribute, err error) {
	cleaned = make([]didcomm.CredentialAttribute, 0, len(attributes))
	for _, a := range attributes {
		if a.Name == "" || a.Value == "" {
			continue
		}
		cleaned = append(cleaned, a)
	}
	if len(cleaned) == 0 {
		return nil, psm.ErrInvalidClaims
	}
	return cleaned, nil
}

// attributeValues is the canonical string of a preview the proofs are
// computed over. Order matters, it is the declaration order of the preview.
func attributeValues(attributes []didcomm.CredentialAttribute) string {
	sb := strings.Builder{}
	for i, a := range attributes {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(a.Name)
		sb.WriteByte('=')
		sb.WriteString(a.Value)
	}
	return sb.String()
}

// endpointFor resolves the service endpoint of the exchange's connection.
func endpointFor(rep *psm.IssueCredRep) (endpoint string, err error) {
	defer err2.Handle(&err, "endpoint for exchange")

	connKey := psm.StateKey{DID: rep.Key.DID, Nonce: rep.ConnectionID}
	connRep := try.To1(psm.GetConnectionRep(connKey))
	return connRep.TheirEndpoint, nil
}

// retire takes a completed exchange's correlation id out of circulation.
// Stale handles resolve to NotFound from here on, the exchange rep itself
// stays readable.
func retire(exchangeID string) {
	if err := registry.Retire(exchangeID); err != nil {
		glog.Warningln("retiring exchange id:", err)
	}
}

// abandon terminates an exchange, frees its active slot and optionally sends
// a problem report to the other end.
func abandon(key psm.StateKey, rep *psm.IssueCredRep, comment string, notify bool) (err error) {
	defer err2.Handle(&err, "abandon exchange")

	try.To(prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredAbandoned,
		PLType: pltype.NotificationProblemReport,
		Update: func() error {
			if err := psm.ReleaseActive(rep); err != nil {
				return err
			}
			if !notify {
				return nil
			}
			endpoint, err := endpointFor(rep)
			if err != nil {
				return err
			}
			opl := didcomm.NewPayload(pltype.NotificationProblemReport,
				rep.ThreadID, &didcomm.ProblemReport{Comment: comment})
			return comm.SendPL(endpoint, opl)
		},
	}))

	retire(rep.ExchangeID())
	return nil
}

// Abandon terminates the exchange owning threadID without notifying the other
// end. The notification protocol calls this for inbound problem reports.
func Abandon(threadID string) (err error) {
	defer err2.Handle(&err, "abandon by thread")

	key, err := psm.GetThread(threadID)
	try.To(err)
	rep := try.To1(getRep(key))
	return abandon(key, rep, "", false)
}

// absorbed tells if err is the normal late or repeated delivery case that
// a handler logs and swallows.
func absorbed(err error, threadID string) bool {
	if errors.Is(err, psm.ErrAlreadyTerminal) {
		glog.V(1).Infoln("absorbing message to terminal exchange:", threadID)
		return true
	}
	return false
}
