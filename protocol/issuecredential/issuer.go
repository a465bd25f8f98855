package issuecredential

import (
	"context"

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

// handleCredentialPropose starts the issuer side of an exchange from an
// inbound proposal. The proposal's thread must be new: a repeat of a known
// thread falls through to the machine layer which absorbs it.
func handleCredentialPropose(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "cred propose")

	threadID := packet.Payload.ThreadID()

	if _, tErr := psm.GetThread(threadID); tErr == nil {
		// at-least-once delivery repeat of a proposal we hold already
		glog.V(1).Infoln("repeated proposal for thread:", threadID)
		return nil
	}

	propose := &didcomm.CredentialPropose{}
	try.To(packet.Payload.FieldObj(propose))

	// the parent thread binds the exchange to its connection
	connID := ""
	if packet.Payload.Thread != nil {
		connID = packet.Payload.Thread.PID
	}
	_, _ = try.To2(activeConnection(packet.Principal, connID))

	attributes := try.To1(cleanAttributes(propose.CredentialProposal.Attributes))

	exchangeID := try.To1(registry.Allocate(psm.CredentialExchange))
	key := psm.StateKey{DID: packet.Principal.DID, Nonce: exchangeID}

	credDefID := propose.CredDefID
	if credDefID == "" {
		credDefID = utils.Settings.CredDefID()
	}
	schemaID := propose.SchemaID
	if schemaID == "" {
		schemaID = utils.Settings.SchemaID()
	}

	rep := &psm.IssueCredRep{
		Key:          key,
		ConnectionID: connID,
		ThreadID:     threadID,
		SchemaID:     schemaID,
		CredDefID:    credDefID,
		AutoIssue:    utils.Settings.AutoIssue(),
		AutoOffer:    utils.Settings.AutoOffer(),
		Attributes:   attributes,
	}

	try.To(psm.ReserveActive(rep))

	err = prot.Start(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredProposalReceived,
		PLType: pltype.IssueCredentialPropose,
		Update: func() error {
			if err := psm.AddThread(threadID, key); err != nil {
				return err
			}
			return psm.AddIssueCredRep(rep)
		},
	})
	if err != nil {
		if rErr := psm.ReleaseActive(rep); rErr != nil {
			glog.Warningln("release after failed propose:", rErr)
		}
		retire(exchangeID)
		return err
	}

	if rep.AutoOffer {
		try.To(sendOffer(key, rep))
	}
	return nil
}

// sendOffer builds the correctness proof and sends the offer answering a
// received proposal.
func sendOffer(key psm.StateKey, rep *psm.IssueCredRep) (err error) {
	defer err2.Handle(&err, "issuer offer")

	return prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredOfferSent,
		PLType: pltype.IssueCredentialOffer,
		Update: func() error {
			prover, err := vc.Get()
			if err != nil {
				return err
			}
			nonce := utils.NewNonceStr()
			proof, err := prover.BuildProof(context.Background(),
				rep.CredDefID, nonce, attributeValues(rep.Attributes))
			if err != nil {
				return err
			}
			rep.CredOffer = didcomm.CredentialOffer{
				SchemaID:            rep.SchemaID,
				CredDefID:           rep.CredDefID,
				KeyCorrectnessProof: proof,
				Nonce:               nonce,
			}
			if err := psm.AddIssueCredRep(rep); err != nil {
				return err
			}
			endpoint, err := endpointFor(rep)
			if err != nil {
				return err
			}
			opl := didcomm.NewPayload(pltype.IssueCredentialOffer,
				rep.ThreadID, &rep.CredOffer)
			return comm.SendPL(endpoint, opl)
		},
	})
}

// handleCredentialRequest validates the holder's request blob against our
// offer. A blob that fails validation kills the exchange: it moves to
// abandoned, frees its active slot and reports the problem to the other end.
func handleCredentialRequest(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "cred request")

	threadID := packet.Payload.ThreadID()
	key, err := psm.GetThread(threadID)
	try.To(err)
	rep := try.To1(getRep(key))

	request := &didcomm.CredentialRequest{}
	try.To(packet.Payload.FieldObj(request))

	prover := try.To1(vc.Get())
	valid := try.To1(prover.Validate(context.Background(),
		rep.CredOffer, attributeValues(rep.Attributes), request.Blob))
	if !valid {
		glog.Warningln("credential request failed validation:", threadID)
		try.To(abandon(key, rep, "request validation failed", true))
		return psm.ErrCryptoValidation
	}

	err = prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredRequestReceived,
		PLType: pltype.IssueCredentialRequest,
		Update: func() error {
			rep.CredRequest = request.Blob
			return psm.AddIssueCredRep(rep)
		},
	})
	if absorbed(err, threadID) {
		return nil
	}
	try.To(err)

	if rep.AutoIssue {
		try.To(sendCredential(key, rep))
	}
	return nil
}

// sendCredential builds the credential for a validated request and sends it.
func sendCredential(key psm.StateKey, rep *psm.IssueCredRep) (err error) {
	defer err2.Handle(&err, "issuer issue")

	return prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredIssued,
		PLType: pltype.IssueCredentialIssue,
		Update: func() error {
			prover, err := vc.Get()
			if err != nil {
				return err
			}
			cred, err := prover.BuildCredential(context.Background(),
				attributeValues(rep.Attributes), rep.CredRequest)
			if err != nil {
				return err
			}
			rep.Credential = cred
			if err := psm.AddIssueCredRep(rep); err != nil {
				return err
			}
			endpoint, err := endpointFor(rep)
			if err != nil {
				return err
			}
			opl := didcomm.NewPayload(pltype.IssueCredentialIssue,
				rep.ThreadID, &didcomm.CredentialIssue{Blob: cred})
			return comm.SendPL(endpoint, opl)
		},
	})
}

// handleCredentialACK completes the issuer side and frees the active slot.
func handleCredentialACK(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "cred ack")

	threadID := packet.Payload.ThreadID()
	key, err := psm.GetThread(threadID)
	try.To(err)
	rep := try.To1(getRep(key))

	err = prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredAcked,
		PLType: pltype.IssueCredentialACK,
		Update: func() error {
			return psm.ReleaseActive(rep)
		},
	})
	if absorbed(err, threadID) {
		return nil
	}
	if err != nil {
		return err
	}

	retire(rep.ExchangeID())
	return nil
}
