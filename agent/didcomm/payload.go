package didcomm

import (
	"encoding/json"

	"github.com/findy-network/findy-issuer-agent/agent/utils"
)

// Thread is the Aries ~thread decorator. The thread ID correlates all of the
// messages of one protocol run.
type Thread struct {
	ID  string `json:"thid,omitempty"`
	PID string `json:"pthid,omitempty"`
}

func NewThread(id string) *Thread {
	return &Thread{ID: id}
}

// Payload is the envelope of one inbound or outbound protocol message. The
// Msg part is kept raw here, each protocol handler decodes it to its own
// message type.
type Payload struct {
	Type   string          `json:"@type"`
	ID     string          `json:"@id"`
	Thread *Thread         `json:"~thread,omitempty"`
	Msg    json.RawMessage `json:"msg,omitempty"`
}

// NewPayload builds an envelope for msg. The msg can be nil for messages that
// carry no body, like acks.
func NewPayload(plType, threadID string, msg interface{}) *Payload {
	pl := &Payload{
		Type:   plType,
		ID:     utils.UUID(),
		Thread: NewThread(threadID),
	}
	if msg != nil {
		d, err := json.Marshal(msg)
		if err != nil {
			panic(err)
		}
		pl.Msg = d
	}
	return pl
}

// ParsePayload decodes an envelope from wire data.
func ParsePayload(data []byte) (pl *Payload, err error) {
	pl = &Payload{}
	if err := json.Unmarshal(data, pl); err != nil {
		return nil, err
	}
	return pl, nil
}

// ThreadID returns the ~thread ID, or the message ID when the sender didn't
// set one. The first message of a protocol run starts the thread with its own
// ID.
func (pl *Payload) ThreadID() string {
	if pl.Thread != nil && pl.Thread.ID != "" {
		return pl.Thread.ID
	}
	return pl.ID
}

// FieldObj decodes the message body into msg.
func (pl *Payload) FieldObj(msg interface{}) error {
	if len(pl.Msg) == 0 {
		return nil
	}
	return json.Unmarshal(pl.Msg, msg)
}

func (pl *Payload) JSON() []byte {
	d, err := json.Marshal(pl)
	if err != nil {
		panic(err)
	}
	return d
}

// ConnectionRequest is the message body of a connection request.
type ConnectionRequest struct {
	Label    string `json:"label"`
	DID      string `json:"did,omitempty"`
	Endpoint string `json:"serviceEndpoint,omitempty"`
	VerKey   string `json:"verkey,omitempty"`
}

// ConnectionResponse is the message body of a connection response.
type ConnectionResponse struct {
	DID      string `json:"did,omitempty"`
	Endpoint string `json:"serviceEndpoint,omitempty"`
	VerKey   string `json:"verkey,omitempty"`
}

// ProblemReport is the body of a notification problem-report message.
type ProblemReport struct {
	Comment string `json:"explain-ltxt,omitempty"`
}
