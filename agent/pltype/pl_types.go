package pltype

// Protocol constants
const (
	Terminate = ""
	Nothing   = ""
	Aries     = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec" // base for all Aries protocols
)

// Connection protocol constants
const (
	ProtocolConnection = "connections"
	AriesConnection    = Aries + "/" + ProtocolConnection

	HandlerInvitation = "invitation"
	HandlerRequest    = "request"
	HandlerResponse   = "response"

	AriesConnectionInvitation = AriesConnection + "/1.0/" + HandlerInvitation
	AriesConnectionRequest    = AriesConnection + "/1.0/" + HandlerRequest
	AriesConnectionResponse   = AriesConnection + "/1.0/" + HandlerResponse
)

// Issue Credential protocol constants
const (
	ProtocolIssueCredential = "issue-credential"
	AriesIssueCredential    = Aries + "/" + ProtocolIssueCredential

	HandlerCredentialPropose = "propose-credential"
	HandlerCredentialOffer   = "offer-credential"
	HandlerCredentialRequest = "request-credential"
	HandlerCredentialIssue   = "issue-credential"
	HandlerCredentialACK     = "ack"

	IssueCredentialPropose = AriesIssueCredential + "/1.0/" + HandlerCredentialPropose
	IssueCredentialOffer   = AriesIssueCredential + "/1.0/" + HandlerCredentialOffer
	IssueCredentialRequest = AriesIssueCredential + "/1.0/" + HandlerCredentialRequest
	IssueCredentialIssue   = AriesIssueCredential + "/1.0/" + HandlerCredentialIssue
	IssueCredentialACK     = AriesIssueCredential + "/1.0/" + HandlerCredentialACK

	CredentialPreview = AriesIssueCredential + "/1.0/credential-preview"
)

// Trust ping protocol constants
const (
	ProtocolTrustPing = "trust_ping"
	AriesTrustPing    = Aries + "/" + ProtocolTrustPing

	HandlerPing         = "ping"
	HandlerPingResponse = "ping_response"

	TrustPingPing     = AriesTrustPing + "/1.0/" + HandlerPing
	TrustPingResponse = AriesTrustPing + "/1.0/" + HandlerPingResponse
)

// Notification protocol constants
const (
	ProtocolNotification = "notification"
	AriesNotification    = Aries + "/" + ProtocolNotification

	HandlerProblemReport = "problem-report"

	NotificationProblemReport = AriesNotification + "/1.0/" + HandlerProblemReport
)

// Invitation modes tell if an invitation can be used for one connection only
// or if every inbound request spawns an independent connection of its own.
const (
	InvitationModeOnce  = "once"
	InvitationModeMulti = "multi"
)

// Accept modes control whether a connection request is answered without a
// separate caller approval step.
const (
	AcceptManual = "manual"
	AcceptAuto   = "auto"
)

// Initiator values tell which end created the connection.
const (
	InitiatorSelf     = "self"
	InitiatorExternal = "external"
)

// RoutingStateNone is the only routing state this agency currently assigns.
// Mediator routing is not implemented.
const RoutingStateNone = "none"
