package utils

import (
	"time"
)

const HTTPReqTimeout = 1 * time.Minute

// Version is the current version of the agency.
var Version = "0.1.0"

var Settings = &Hub{
	timeout:        HTTPReqTimeout,
	acceptMode:     "auto",
	invitationMode: "once",
}

// Hub carries the runtime settings of the agency. The serve command fills it
// from flags and environment before any server is started.
type Hub struct {
	hostAddr string // host address of the server seen from the internet
	label    string // human readable label set to invitations we create

	timeout time.Duration // timeout setting for outbound calls and waits

	credDefID string // credential definition used for issued credentials
	schemaID  string // schema of the issued credentials

	autoIssue      bool   // issue without a manual step when request validates
	autoOffer      bool   // answer proposals with an offer without a manual step
	acceptMode     string // manual|auto answer mode for connection requests
	invitationMode string // once|multi mode for created invitations

	versionInfo string // version number etc. in free format as a string

	localTestMode bool // tells if we are running unit tests
}

func (h *Hub) HostAddr() string {
	return h.hostAddr
}

func (h *Hub) SetHostAddr(addr string) {
	h.hostAddr = addr
}

func (h *Hub) Label() string {
	return h.label
}

func (h *Hub) SetLabel(label string) {
	h.label = label
}

func (h *Hub) Timeout() time.Duration {
	if h.timeout == 0 {
		return HTTPReqTimeout
	}
	return h.timeout
}

func (h *Hub) SetTimeout(to time.Duration) {
	h.timeout = to
}

func (h *Hub) CredDefID() string {
	return h.credDefID
}

func (h *Hub) SetCredDefID(id string) {
	h.credDefID = id
}

func (h *Hub) SchemaID() string {
	return h.schemaID
}

func (h *Hub) SetSchemaID(id string) {
	h.schemaID = id
}

func (h *Hub) AutoIssue() bool {
	return h.autoIssue
}

func (h *Hub) SetAutoIssue(auto bool) {
	h.autoIssue = auto
}

func (h *Hub) AutoOffer() bool {
	return h.autoOffer
}

func (h *Hub) SetAutoOffer(auto bool) {
	h.autoOffer = auto
}

func (h *Hub) AcceptMode() string {
	return h.acceptMode
}

func (h *Hub) SetAcceptMode(mode string) {
	h.acceptMode = mode
}

func (h *Hub) InvitationMode() string {
	return h.invitationMode
}

func (h *Hub) SetInvitationMode(mode string) {
	h.invitationMode = mode
}

func (h *Hub) VersionInfo() string {
	return h.versionInfo
}

func (h *Hub) SetVersionInfo(info string) {
	h.versionInfo = info
}

func (h *Hub) LocalTestMode() bool {
	return h.localTestMode
}

func (h *Hub) SetLocalTestMode(mode bool) {
	h.localTestMode = mode
}
