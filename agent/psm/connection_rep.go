package psm

import (
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
)

// ConnectionRep is the domain data of one pairwise connection attempt. The
// lifecycle state itself lives in the PSM stored with the same key.
type ConnectionRep struct {
	Key StateKey

	// Invitation is the self-contained offer this connection was created
	// from. Multi mode connections share the invitation content of their
	// parent.
	Invitation didcomm.Invitation

	// InvitationKey is the first recipient key of the invitation.
	InvitationKey string

	InvitationMode string // once|multi
	Accept         string // manual|auto
	RoutingState   string
	Initiator      string // self|external

	// ParentID points to the inviting connection when this record was
	// spawned by a request against a multi mode invitation.
	ParentID string

	TheirLabel    string
	TheirDID      string
	TheirEndpoint string
	TheirVerKey   string
}

func NewConnectionRep(d []byte) *ConnectionRep {
	p := &ConnectionRep{}
	dto.FromGOB(d, p)
	return p
}

func (p *ConnectionRep) Data() []byte {
	return dto.ToGOB(p)
}

func (p *ConnectionRep) KData() []byte {
	return p.Key.Data()
}

// ConnectionID is the correlation id of this connection.
func (p *ConnectionRep) ConnectionID() string {
	return p.Key.Nonce
}
