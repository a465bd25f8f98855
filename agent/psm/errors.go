package psm

import "errors"

// The error taxonomy of the agency. Gateway handlers map these to HTTP
// statuses, protocol handlers decide which of them are absorbed as normal
// network reordering and which are surfaced to the caller.
var (
	// ErrNotFound is returned when no entity exists for the given id.
	ErrNotFound = errors.New("not found")

	// ErrUnknownConnection marks a protocol message that references a
	// connection id which will never exist, as opposed to one that is not
	// yet visible.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrInvitationExhausted is returned when a second request arrives for
	// a once mode invitation.
	ErrInvitationExhausted = errors.New("invitation exhausted")

	// ErrConnectionNotReady is returned when a credential exchange is
	// started against a connection that is not active.
	ErrConnectionNotReady = errors.New("connection not ready")

	// ErrUnknownThread marks a protocol message with a thread id that does
	// not match any open exchange.
	ErrUnknownThread = errors.New("unknown thread")

	// ErrAlreadyTerminal marks a protocol message that arrived after its
	// exchange completed. Logged and absorbed, never surfaced to callers.
	ErrAlreadyTerminal = errors.New("exchange already terminal")

	// ErrDuplicateActiveExchange is returned when a second concurrent
	// exchange is created for the same connection, schema and cred def.
	ErrDuplicateActiveExchange = errors.New("duplicate active exchange")

	// ErrCryptoValidation is returned when the crypto collaborator rejects
	// a credential request against its offer. Fatal for the exchange.
	ErrCryptoValidation = errors.New("cryptographic validation failed")

	// ErrOpenExchanges blocks abandoning or removing a connection while it
	// still has non-terminal credential exchanges.
	ErrOpenExchanges = errors.New("connection has open exchanges")

	// ErrInvalidTransition is returned for a state transition that the
	// lifecycle tables do not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidClaims is returned when issuance is requested without a
	// single non-empty claim field.
	ErrInvalidClaims = errors.New("invalid claims")

	// ErrTimeout is returned when a bounded wait expires. Always safe to
	// retry with the identical request.
	ErrTimeout = errors.New("timeout")
)
