package psm

import (
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
)

// IssueCredRep is the domain data of one credential exchange. It references
// exactly one connection and is correlated to protocol messages by its thread
// id, stable for the whole exchange.
type IssueCredRep struct {
	Key StateKey

	ConnectionID string
	ThreadID     string

	SchemaID  string
	CredDefID string

	AutoIssue bool
	AutoOffer bool

	// Attributes is the credential preview in its declaration order.
	Attributes []didcomm.CredentialAttribute

	// CredOffer carries the opaque correctness proof and nonce. This layer
	// never interprets nor mutates its contents.
	CredOffer didcomm.CredentialOffer

	// CredRequest is the holder's request blob answering our offer, opaque
	// as well.
	CredRequest string

	// Credential is the issued credential blob, stored by the holder side.
	Credential string
}

func NewIssueCredRep(d []byte) *IssueCredRep {
	p := &IssueCredRep{}
	dto.FromGOB(d, p)
	return p
}

func (rep *IssueCredRep) Data() []byte {
	return dto.ToGOB(rep)
}

func (rep *IssueCredRep) KData() []byte {
	return rep.Key.Data()
}

// ExchangeID is the correlation id of this exchange.
func (rep *IssueCredRep) ExchangeID() string {
	return rep.Key.Nonce
}

// ActiveKey is the uniqueness key that allows only one non-terminal exchange
// per connection, schema and cred def at a time.
func (rep *IssueCredRep) ActiveKey() string {
	return rep.ConnectionID + "|" + rep.SchemaID + "|" + rep.CredDefID
}
