package psm

// Kind separates the two lifecycle families the agency runs.
type Kind byte

const (
	Connection Kind = 1 + iota
	CredentialExchange
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection"
	case CredentialExchange:
		return "credential_exchange"
	default:
		return "unknown"
	}
}

// Connection lifecycle states. The names are the externally visible state
// strings the web wallet polls for.
const (
	ConnInvitationSent     = "invitation-sent"
	ConnInvitationReceived = "invitation-received"
	ConnRequestSent        = "request-sent"
	ConnRequestReceived    = "request-received"
	ConnResponseSent       = "response-sent"
	ConnResponseReceived   = "response-received"
	ConnActive             = "active"
	ConnAbandoned          = "abandoned"
)

// Credential exchange lifecycle states.
const (
	CredProposalSent     = "proposal-sent"
	CredProposalReceived = "proposal-received"
	CredOfferSent        = "offer-sent"
	CredOfferReceived    = "offer-received"
	CredRequestSent      = "request-sent"
	CredRequestReceived  = "request-received"
	CredIssued           = "credential-issued"
	CredAcked            = "credential-acked"
	CredAbandoned        = "abandoned"
)

// connEdges is the directed transition table of the connection lifecycle.
// Abandoning is allowed from every non-terminal state and is handled
// separately in CanMoveTo.
var connEdges = map[string][]string{
	ConnInvitationSent:     {ConnRequestReceived},
	ConnInvitationReceived: {ConnRequestSent},
	ConnRequestSent:        {ConnResponseReceived},
	ConnRequestReceived:    {ConnResponseSent},
	ConnResponseSent:       {ConnActive},
	ConnResponseReceived:   {ConnActive},
}

var credEdges = map[string][]string{
	CredProposalSent:     {CredOfferReceived},
	CredProposalReceived: {CredOfferSent},
	CredOfferSent:        {CredRequestReceived},
	CredOfferReceived:    {CredRequestSent},
	CredRequestSent:      {CredIssued},
	CredRequestReceived:  {CredIssued},
	CredIssued:           {CredAcked},
}

// terminal tells if state ends the lifecycle for good. An active connection
// is complete but not terminal: it serves exchanges until it is abandoned.
func terminal(kind Kind, state string) bool {
	switch kind {
	case Connection:
		return state == ConnAbandoned
	case CredentialExchange:
		return state == CredAcked || state == CredAbandoned
	}
	return false
}

func abandonedState(kind Kind) string {
	if kind == Connection {
		return ConnAbandoned
	}
	return CredAbandoned
}

// CanMoveTo tells if the lifecycle tables allow moving from state to next.
// States only move forward along the tables, never backward.
func CanMoveTo(kind Kind, state, next string) bool {
	if terminal(kind, state) {
		return false
	}
	if next == abandonedState(kind) {
		return true
	}

	edges := connEdges
	if kind == CredentialExchange {
		edges = credEdges
	}
	for _, s := range edges[state] {
		if s == next {
			return true
		}
	}
	return false
}
