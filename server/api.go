package server

import (
	"time"

	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/pltype"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
)

// ConnectionResult is the gateway's point-in-time view of one connection.
// The field names are fixed by the web wallet polling them.
type ConnectionResult struct {
	ConnectionID   string `json:"connection_id"`
	State          string `json:"state"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	Accept         string `json:"accept"`
	InvitationMode string `json:"invitation_mode"`
	InvitationKey  string `json:"invitation_key,omitempty"`
	RoutingState   string `json:"routing_state"`
	Initiator      string `json:"initiator"`
	TheirLabel     string `json:"their_label,omitempty"`
	TheirDID       string `json:"their_did,omitempty"`

	Invitation    *didcomm.Invitation `json:"invitation,omitempty"`
	InvitationURL string              `json:"invitation_url,omitempty"`
}

// Claims is the attribute set of the credentials this agency issues. The
// declaration order here is the attribute order of the issued credential.
type Claims struct {
	UserDisplayName string `json:"userdisplayname"`
	EmailAddress    string `json:"emailaddress"`
	Surname         string `json:"surname"`
	GivenName       string `json:"givenname"`
	BirthDate       string `json:"birthdate"`
	StreetAddress   string `json:"streetaddress"`
	Locality        string `json:"locality"`
	StateOrProvince string `json:"stateorprovince"`
	PostalCode      string `json:"postalcode"`
	Country         string `json:"country"`
}

// Attributes converts the claims to preview attributes in declaration order.
// Empty claims stay in, the protocol layer decides what to drop.
func (c *Claims) Attributes() []didcomm.CredentialAttribute {
	return []didcomm.CredentialAttribute{
		{Name: "userdisplayname", Value: c.UserDisplayName},
		{Name: "emailaddress", Value: c.EmailAddress},
		{Name: "surname", Value: c.Surname},
		{Name: "givenname", Value: c.GivenName},
		{Name: "birthdate", Value: c.BirthDate},
		{Name: "streetaddress", Value: c.StreetAddress},
		{Name: "locality", Value: c.Locality},
		{Name: "stateorprovince", Value: c.StateOrProvince},
		{Name: "postalcode", Value: c.PostalCode},
		{Name: "country", Value: c.Country},
	}
}

// IssueRequest starts a credential exchange over an active connection. The
// connection id member is camel cased, fixed by the web wallet posting it.
type IssueRequest struct {
	ConnectionID string `json:"connectionId"`
	Claims       Claims `json:"claims"`
}

// IssueResult is the gateway's point-in-time view of one credential exchange.
type IssueResult struct {
	CredentialExchangeID string `json:"credential_exchange_id"`
	ConnectionID         string `json:"connection_id"`
	ThreadID             string `json:"thread_id"`
	State                string `json:"state"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
	SchemaID             string `json:"schema_id"`
	CredDefID            string `json:"credential_definition_id"`
	AutoIssue            bool   `json:"auto_issue"`
	AutoOffer            bool   `json:"auto_offer"`
	Initiator            string `json:"initiator"`

	CredentialProposalDict *didcomm.CredentialPropose `json:"credential_proposal_dict,omitempty"`
	CredentialOffer        *didcomm.CredentialOffer   `json:"credential_offer,omitempty"`
}

// VersionResult is the answer of the version endpoint.
type VersionResult struct {
	Version string `json:"version"`
}

func timestampStr(nanos int64) string {
	if nanos == 0 {
		return ""
	}
	return time.Unix(0, nanos).UTC().Format(time.RFC3339)
}

func connectionResult(rep *psm.ConnectionRep, m *psm.PSM) *ConnectionResult {
	r := &ConnectionResult{
		ConnectionID:   rep.ConnectionID(),
		State:          m.StateName(),
		CreatedAt:      timestampStr(m.CreatedAt()),
		UpdatedAt:      timestampStr(m.Timestamp()),
		Accept:         rep.Accept,
		InvitationMode: rep.InvitationMode,
		InvitationKey:  rep.InvitationKey,
		RoutingState:   rep.RoutingState,
		Initiator:      rep.Initiator,
		TheirLabel:     rep.TheirLabel,
		TheirDID:       rep.TheirDID,
	}
	// the shareable invitation only makes sense while it still answers
	if m.StateName() == psm.ConnInvitationSent {
		inv := rep.Invitation
		r.Invitation = &inv
		r.InvitationURL = inv.URL()
	}
	return r
}

func issueResult(rep *psm.IssueCredRep, m *psm.PSM) *IssueResult {
	r := &IssueResult{
		CredentialExchangeID: rep.ExchangeID(),
		ConnectionID:         rep.ConnectionID,
		ThreadID:             rep.ThreadID,
		State:                m.StateName(),
		CreatedAt:            timestampStr(m.CreatedAt()),
		UpdatedAt:            timestampStr(m.Timestamp()),
		SchemaID:             rep.SchemaID,
		CredDefID:            rep.CredDefID,
		AutoIssue:            rep.AutoIssue,
		AutoOffer:            rep.AutoOffer,
		Initiator:            pltype.InitiatorSelf,
	}
	if !m.StartedByUs {
		r.Initiator = pltype.InitiatorExternal
	}
	if len(rep.Attributes) > 0 {
		r.CredentialProposalDict = &didcomm.CredentialPropose{
			Type:      pltype.IssueCredentialPropose,
			ID:        rep.ThreadID,
			CredDefID: rep.CredDefID,
			SchemaID:  rep.SchemaID,
			CredentialProposal: didcomm.PreviewCredential{
				Type:       pltype.CredentialPreview,
				Attributes: rep.Attributes,
			},
		}
	}
	if rep.CredOffer.Nonce != "" {
		offer := rep.CredOffer
		r.CredentialOffer = &offer
	}
	return r
}
