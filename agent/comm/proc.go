package comm

import (
	"fmt"

	"github.com/golang/glog"
)

type processor struct {
	handlers map[string]HandlerFunc
}

// Proc is the protocol message processor. Protocol packages register their
// handlers to it in their init.
var Proc = &processor{}

func (p *processor) Add(h map[string]HandlerFunc) {
	if p.handlers == nil {
		p.handlers = h
		return
	}

	for k, v := range h {
		p.handlers[k] = v
	}
	glog.V(1).Info("handler count: ", len(p.handlers))
}

// Process delivers the protocol message inside the Packet to the correct
// protocol handler.
func (p *processor) Process(packet Packet) error {
	glog.V(1).Info("PL type " + packet.Payload.Type)

	handler, ok := p.handlers[packet.Payload.Type]
	if !ok {
		glog.Error("!!!! No handler in processor !!!! ", packet.Payload.Type)
		return fmt.Errorf("no handler for %s", packet.Payload.Type)
	}
	return handler(packet)
}
