// Package didcomm has the wire level data models of the agency: connection
// invitations, protocol payload envelopes, and the credential preview and
// offer structures. The JSON shapes are fixed by the Aries protocols and by
// the web wallet consuming them, so the structs here change only when the
// protocols do.
package didcomm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/findy-network/findy-issuer-agent/agent/utils"
)

// ErrInvalidInvitation is returned when an invitation payload misses its
// mandatory fields. Invalid invitations are never stored.
var ErrInvalidInvitation = errors.New("invalid invitation")

// Invitation defines DID exchange invitation message
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0023-did-exchange#0-invitation-to-exchange
type Invitation struct {
	// the Type of the connection invitation
	Type string `json:"@type,omitempty"`

	// the ID of the connection invitation
	ID string `json:"@id,omitempty"`

	// the Service endpoint of the connection invitation
	ServiceEndpoint string `json:"serviceEndpoint,omitempty"`

	// the RecipientKeys for the connection invitation
	RecipientKeys []string `json:"recipientKeys,omitempty"`

	// the Label of the connection invitation
	Label string `json:"label,omitempty"`
}

// Validate checks the mandatory invitation fields. A serviceEndpoint and an
// @id must always exist, without them the other end cannot be reached nor the
// exchange correlated.
func (inv *Invitation) Validate() error {
	if inv.ID == "" || inv.ServiceEndpoint == "" {
		return ErrInvalidInvitation
	}
	return nil
}

// URL builds the shareable encoding of the invitation: the service endpoint
// with the invitation JSON in a c_i query argument.
func (inv *Invitation) URL() string {
	d, err := json.Marshal(inv)
	if err != nil {
		panic(err) // struct marshaling cannot fail
	}
	return inv.ServiceEndpoint + "?c_i=" + utils.EncodeB64(d)
}

// ParseInvitationURL decodes an invitation from its URL encoding.
func ParseInvitationURL(s string) (inv *Invitation, err error) {
	_, arg, found := strings.Cut(s, "c_i=")
	if !found {
		return nil, ErrInvalidInvitation
	}
	d, err := utils.DecodeB64(arg)
	if err != nil {
		return nil, ErrInvalidInvitation
	}
	inv = &Invitation{}
	if err := json.Unmarshal(d, inv); err != nil {
		return nil, ErrInvalidInvitation
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}
