package comm

import (
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
)

// Principal is the authenticated caller of a gateway operation. The identity
// provider authenticates it elsewhere, this core sees only the opaque handle
// and the label shown to the other end.
type Principal struct {
	DID   string
	Label string
}

// Packet gathers all the data needed to process one inbound protocol message.
type Packet struct {
	Payload   *didcomm.Payload
	Principal Principal
}

// HandlerFunc is func type for protocol message handlers. We add them to the
// protocol processor with the associated message type.
type HandlerFunc func(packet Packet) error
