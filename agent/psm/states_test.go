package psm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanMoveTo_Connection(t *testing.T) {
	tests := []struct {
		name  string
		state string
		next  string
		want  bool
	}{
		{"invitation to request", ConnInvitationSent, ConnRequestReceived, true},
		{"request to response", ConnRequestReceived, ConnResponseSent, true},
		{"response to active", ConnResponseSent, ConnActive, true},
		{"received invitation forward", ConnInvitationReceived, ConnRequestSent, true},
		{"no skipping ahead", ConnInvitationSent, ConnActive, false},
		{"no moving backward", ConnResponseSent, ConnInvitationSent, false},
		{"abandon from middle", ConnRequestReceived, ConnAbandoned, true},
		{"abandon from start", ConnInvitationSent, ConnAbandoned, true},
		{"abandon from active", ConnActive, ConnAbandoned, true},
		{"active never resumes", ConnActive, ConnRequestReceived, false},
		{"abandoned is terminal", ConnAbandoned, ConnActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CanMoveTo(Connection, tt.state, tt.next))
		})
	}
}

func TestCanMoveTo_CredentialExchange(t *testing.T) {
	tests := []struct {
		name  string
		state string
		next  string
		want  bool
	}{
		{"proposal to offer", CredProposalSent, CredOfferReceived, true},
		{"offer to request", CredOfferReceived, CredRequestSent, true},
		{"request to issued", CredRequestSent, CredIssued, true},
		{"issued to acked", CredIssued, CredAcked, true},
		{"issuer side forward", CredProposalReceived, CredOfferSent, true},
		{"issuer offer to request", CredOfferSent, CredRequestReceived, true},
		{"no skipping", CredProposalSent, CredIssued, false},
		{"no backward", CredIssued, CredOfferReceived, false},
		{"abandon mid exchange", CredOfferSent, CredAbandoned, true},
		{"acked is terminal", CredAcked, CredAbandoned, false},
		{"abandoned stays abandoned", CredAbandoned, CredAcked, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CanMoveTo(CredentialExchange, tt.state, tt.next))
		})
	}
}

func TestPSM_History(t *testing.T) {
	m := &PSM{Key: StateKey{DID: "TEST", Nonce: "1234"}, Kind: Connection}
	require.Empty(t, m.StateName())
	require.False(t, m.IsTerminal())

	m.Append(ConnInvitationSent, "invitation")
	require.Equal(t, ConnInvitationSent, m.StateName())
	createdAt := m.CreatedAt()
	require.NotZero(t, createdAt)

	m.Append(ConnRequestReceived, "request")
	m.Append(ConnResponseSent, "response")
	m.Append(ConnActive, "ping")

	require.Len(t, m.States, 4)
	require.False(t, m.IsTerminal())
	require.True(t, m.Applied(ConnResponseSent))
	require.False(t, m.Applied(ConnAbandoned))
	require.Equal(t, createdAt, m.CreatedAt())
	require.GreaterOrEqual(t, m.Timestamp(), createdAt)
	require.True(t, m.Accepts(ConnAbandoned))

	m.Append(ConnAbandoned, "problem-report")
	require.True(t, m.IsTerminal())
}

func TestPSM_DataRoundtrip(t *testing.T) {
	m := &PSM{
		Key:         StateKey{DID: "TEST", Nonce: "1234"},
		Kind:        CredentialExchange,
		StartedByUs: true,
	}
	m.Append(CredProposalSent, "propose")

	decoded := NewPSM(m.Data())
	require.Equal(t, m, decoded)
}
