/*
Package vc is the boundary to the cryptographic proof collaborator. The state
machines only gate on its pass/fail results: proof and credential contents
stay opaque blobs to the rest of the agency. The default implementation keys
the proofs with a tink MAC primitive, which keeps the blobs real enough to
verify without pulling the anoncreds stack in.
*/
package vc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/google/tink/go/keyset"
	"github.com/google/tink/go/mac"
	"github.com/google/tink/go/tink"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Prover is the narrow capability interface of the crypto collaborator.
type Prover interface {
	// BuildProof produces the correctness proof embedded into an offer for
	// the given cred def, nonce and preview values.
	BuildProof(ctx context.Context, credDefID, nonce, values string) (didcomm.KeyCorrectnessProof, error)

	// BuildRequest produces the holder's request blob against an offer.
	BuildRequest(ctx context.Context, offer didcomm.CredentialOffer) (string, error)

	// Validate checks a holder's request blob against the offer it
	// answers. A false result is fatal for the exchange.
	Validate(ctx context.Context, offer didcomm.CredentialOffer, values, request string) (bool, error)

	// BuildCredential produces the credential blob issued for a validated
	// request.
	BuildCredential(ctx context.Context, values, request string) (string, error)
}

// Active is the prover the protocol handlers use. The serve command installs
// the tink prover, tests may install their own.
var Active Prover

// TinkProver implements Prover with a keyed MAC primitive.
type TinkProver struct {
	m tink.MAC
}

// NewTinkProver creates a prover with a fresh MAC keyset. Proofs made by one
// prover instance only validate on the same instance, which is exactly the
// issuer-side contract this agency needs.
func NewTinkProver() (p *TinkProver, err error) {
	defer err2.Handle(&err, "new tink prover")

	kh := try.To1(keyset.NewHandle(mac.HMACSHA256Tag256KeyTemplate()))
	m := try.To1(mac.New(kh))
	return &TinkProver{m: m}, nil
}

type requestBlob struct {
	Nonce string `json:"nonce"`
	C     string `json:"c"`
}

func (p *TinkProver) BuildProof(
	ctx context.Context,
	credDefID, nonce, values string,
) (
	proof didcomm.KeyCorrectnessProof,
	err error,
) {
	defer err2.Handle(&err, "build proof")
	try.To(ctx.Err())

	c := try.To1(p.m.ComputeMAC([]byte(credDefID + "|" + nonce + "|" + values)))
	xz := try.To1(p.m.ComputeMAC([]byte(nonce + "|" + values)))

	return didcomm.KeyCorrectnessProof{
		C:     utils.EncodeB64(c),
		XzCap: utils.EncodeB64(xz),
	}, nil
}

func (p *TinkProver) BuildRequest(
	ctx context.Context,
	offer didcomm.CredentialOffer,
) (
	request string,
	err error,
) {
	defer err2.Handle(&err, "build request")
	try.To(ctx.Err())

	blob := requestBlob{Nonce: offer.Nonce, C: offer.KeyCorrectnessProof.C}
	d := try.To1(json.Marshal(blob))
	return utils.EncodeB64(d), nil
}

func (p *TinkProver) Validate(
	ctx context.Context,
	offer didcomm.CredentialOffer,
	values, request string,
) (
	valid bool,
	err error,
) {
	defer err2.Handle(&err, "validate request")
	try.To(ctx.Err())

	d, err := utils.DecodeB64(request)
	if err != nil {
		return false, nil
	}
	blob := requestBlob{}
	if err := json.Unmarshal(d, &blob); err != nil {
		return false, nil
	}
	if blob.Nonce != offer.Nonce || blob.C != offer.KeyCorrectnessProof.C {
		return false, nil
	}

	c, err := utils.DecodeB64(offer.KeyCorrectnessProof.C)
	if err != nil {
		return false, nil
	}
	data := offer.CredDefID + "|" + offer.Nonce + "|" + values
	if err := p.m.VerifyMAC(c, []byte(data)); err != nil {
		return false, nil
	}
	return true, nil
}

func (p *TinkProver) BuildCredential(
	ctx context.Context,
	values, request string,
) (
	cred string,
	err error,
) {
	defer err2.Handle(&err, "build credential")
	try.To(ctx.Err())

	d := try.To1(p.m.ComputeMAC([]byte(values + "|" + request)))
	return utils.EncodeB64(d), nil
}

// ErrNoProver guards against running protocols without an installed
// collaborator.
var ErrNoProver = errors.New("no prover installed")

// Get returns the active prover.
func Get() (Prover, error) {
	if Active == nil {
		return nil, ErrNoProver
	}
	return Active, nil
}
