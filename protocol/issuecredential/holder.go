package issuecredential

import (
	"context"

	"github.com/findy-network/findy-issuer-agent/agent/comm"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/pltype"
	"github.com/findy-network/findy-issuer-agent/agent/prot"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/vc"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// handleCredentialOffer stores the received offer and answers it with our
// request blob. The offer contents stay opaque here, the collaborator builds
// the request from them.
func handleCredentialOffer(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "cred offer")

	threadID := packet.Payload.ThreadID()
	key, err := psm.GetThread(threadID)
	try.To(err)
	rep := try.To1(getRep(key))

	offer := &didcomm.CredentialOffer{}
	try.To(packet.Payload.FieldObj(offer))

	err = prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredOfferReceived,
		PLType: pltype.IssueCredentialOffer,
		Update: func() error {
			rep.CredOffer = *offer
			return psm.AddIssueCredRep(rep)
		},
	})
	if absorbed(err, threadID) {
		return nil
	}
	try.To(err)

	return prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredRequestSent,
		PLType: pltype.IssueCredentialRequest,
		Update: func() error {
			prover, err := vc.Get()
			if err != nil {
				return err
			}
			blob, err := prover.BuildRequest(context.Background(), *offer)
			if err != nil {
				return err
			}
			rep.CredRequest = blob
			if err := psm.AddIssueCredRep(rep); err != nil {
				return err
			}
			endpoint, err := endpointFor(rep)
			if err != nil {
				return err
			}
			opl := didcomm.NewPayload(pltype.IssueCredentialRequest,
				threadID, &didcomm.CredentialRequest{
					CredDefID: rep.CredDefID,
					Blob:      blob,
				})
			return comm.SendPL(endpoint, opl)
		},
	})
}

// handleCredentialIssue stores the received credential blob, acks the
// exchange and completes it. The active slot frees on completion.
func handleCredentialIssue(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "cred issue")

	threadID := packet.Payload.ThreadID()
	key, err := psm.GetThread(threadID)
	try.To(err)
	rep := try.To1(getRep(key))

	issue := &didcomm.CredentialIssue{}
	try.To(packet.Payload.FieldObj(issue))

	err = prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredIssued,
		PLType: pltype.IssueCredentialIssue,
		Update: func() error {
			rep.Credential = issue.Blob
			return psm.AddIssueCredRep(rep)
		},
	})
	if absorbed(err, threadID) {
		return nil
	}
	try.To(err)

	try.To(prot.Advance(prot.Transition{
		Key:    key,
		Kind:   psm.CredentialExchange,
		Target: psm.CredAcked,
		PLType: pltype.IssueCredentialACK,
		Update: func() error {
			if err := psm.ReleaseActive(rep); err != nil {
				return err
			}
			endpoint, err := endpointFor(rep)
			if err != nil {
				return err
			}
			opl := didcomm.NewPayload(pltype.IssueCredentialACK, threadID, nil)
			return comm.SendPL(endpoint, opl)
		},
	}))

	retire(rep.ExchangeID())
	return nil
}
