package issuecredential

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/findy-network/findy-issuer-agent/agent/comm"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/pltype"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/registry"
	"github.com/findy-network/findy-issuer-agent/agent/storage"
	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/findy-network/findy-issuer-agent/agent/vc"
	"github.com/findy-network/findy-issuer-agent/protocol/connection"
	_ "github.com/findy-network/findy-issuer-agent/protocol/trustping" // ping handlers
	"github.com/lainio/err2/try"
	"github.com/stretchr/testify/require"
)

const (
	testCredDefID = "T5VX2IJYLJ:3:CL:12:tag"
	testSchemaID  = "T5VX2IJYLJ:2:identity:1.0"
)

var (
	testDir      string
	testProvider *storage.Provider

	testPrincipal = comm.Principal{DID: "TEST", Label: "tester"}

	sentPayloads []*didcomm.Payload
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	testDir = try.To1(os.MkdirTemp("", "issuecred-test"))
	testProvider = storage.New(storage.Config{
		FileName:  "issuecred",
		FilePath:  testDir,
		BucketIDs: psm.Buckets,
	})
	try.To(testProvider.Init())
	try.To(psm.Open(testProvider))
	try.To(registry.Open(testProvider))

	vc.Active = try.To1(vc.NewTinkProver())

	utils.Settings.SetHostAddr("http://localhost:8080")
	utils.Settings.SetLabel("test-agency")
	utils.Settings.SetTimeout(time.Second)
	utils.Settings.SetCredDefID(testCredDefID)
	utils.Settings.SetSchemaID(testSchemaID)
	utils.Settings.SetAcceptMode(pltype.AcceptAuto)
	utils.Settings.SetInvitationMode(pltype.InvitationModeOnce)
	utils.Settings.SetLocalTestMode(true)

	comm.SendAndWaitReq = func(_ string, msg io.Reader, _ time.Duration) ([]byte, error) {
		d := try.To1(io.ReadAll(msg))
		pl := try.To1(didcomm.ParsePayload(d))
		sentPayloads = append(sentPayloads, pl)
		return []byte("{}"), nil
	}
}

func tearDown() {
	if err := testProvider.Close(); err != nil {
		panic(err)
	}
	os.RemoveAll(testDir)
}

func lastSent(t *testing.T) *didcomm.Payload {
	t.Helper()
	require.NotEmpty(t, sentPayloads)
	return sentPayloads[len(sentPayloads)-1]
}

func process(t *testing.T, pl *didcomm.Payload) error {
	t.Helper()
	return comm.Proc.Process(comm.Packet{Payload: pl, Principal: testPrincipal})
}

// activeConn drives a fresh connection to active state.
func activeConn(t *testing.T) string {
	t.Helper()

	rep := try.To1(connection.CreateInvitation(testPrincipal, ""))
	connID := rep.ConnectionID()

	request := didcomm.NewPayload(pltype.AriesConnectionRequest, connID,
		&didcomm.ConnectionRequest{
			Label:    "wallet",
			Endpoint: "http://wallet.example.com/didcomm/",
		})
	require.NoError(t, process(t, request))

	ping := didcomm.NewPayload(pltype.TrustPingPing, connID, nil)
	require.NoError(t, process(t, ping))

	_, m, err := connection.Status(testPrincipal, connID)
	require.NoError(t, err)
	require.Equal(t, psm.ConnActive, m.StateName())
	return connID
}

func testAttributes() []didcomm.CredentialAttribute {
	return []didcomm.CredentialAttribute{
		{Name: "emailaddress", Value: "test@example.com"},
		{Name: "surname", Value: "Tester"},
		{Name: "givenname", Value: "Teddy"},
	}
}

func TestCreate_GuardsConnection(t *testing.T) {
	_, err := Create(testPrincipal, "never-allocated", testAttributes())
	require.ErrorIs(t, err, psm.ErrUnknownConnection)

	// a known but incomplete connection cannot carry an exchange
	pending := try.To1(connection.CreateInvitation(testPrincipal, ""))
	_, err = Create(testPrincipal, pending.ConnectionID(), testAttributes())
	require.ErrorIs(t, err, psm.ErrConnectionNotReady)
}

func TestCreate_InvalidClaims(t *testing.T) {
	connID := activeConn(t)

	_, err := Create(testPrincipal, connID, []didcomm.CredentialAttribute{
		{Name: "emailaddress", Value: ""},
		{Name: "surname", Value: ""},
	})
	require.ErrorIs(t, err, psm.ErrInvalidClaims)
}

func TestCreate_DropsEmptyValues(t *testing.T) {
	connID := activeConn(t)

	rep, err := Create(testPrincipal, connID, []didcomm.CredentialAttribute{
		{Name: "emailaddress", Value: "test@example.com"},
		{Name: "surname", Value: ""},
	})
	require.NoError(t, err)
	require.Len(t, rep.Attributes, 1)
	require.Equal(t, "emailaddress", rep.Attributes[0].Name)
}

func TestHolderFlow(t *testing.T) {
	connID := activeConn(t)

	rep, err := Create(testPrincipal, connID, testAttributes())
	require.NoError(t, err)

	_, m, err := Status(testPrincipal, rep.ExchangeID())
	require.NoError(t, err)
	require.Equal(t, psm.CredProposalSent, m.StateName())
	require.Equal(t, pltype.IssueCredentialPropose, lastSent(t).Type)
	require.Equal(t, connID, lastSent(t).Thread.PID)

	// the other end offers against our proposal
	prover := try.To1(vc.Get())
	proof := try.To1(prover.BuildProof(context.Background(),
		testCredDefID, "offer-nonce", attributeValues(rep.Attributes)))
	offer := didcomm.NewPayload(pltype.IssueCredentialOffer, rep.ThreadID,
		&didcomm.CredentialOffer{
			SchemaID:            testSchemaID,
			CredDefID:           testCredDefID,
			KeyCorrectnessProof: proof,
			Nonce:               "offer-nonce",
		})
	require.NoError(t, process(t, offer))

	_, m, err = Status(testPrincipal, rep.ExchangeID())
	require.NoError(t, err)
	require.Equal(t, psm.CredRequestSent, m.StateName())
	require.Equal(t, pltype.IssueCredentialRequest, lastSent(t).Type)

	// a repeated offer delivery changes nothing
	before := len(sentPayloads)
	require.NoError(t, process(t, offer))
	_, m, err = Status(testPrincipal, rep.ExchangeID())
	require.NoError(t, err)
	require.Equal(t, psm.CredRequestSent, m.StateName())
	require.Len(t, sentPayloads, before)

	// the credential arrives, we store it and ack
	issue := didcomm.NewPayload(pltype.IssueCredentialIssue, rep.ThreadID,
		&didcomm.CredentialIssue{Blob: "credential-blob"})
	require.NoError(t, process(t, issue))

	stored, m, err := Status(testPrincipal, rep.ExchangeID())
	require.NoError(t, err)
	require.Equal(t, psm.CredAcked, m.StateName())
	require.Equal(t, "credential-blob", stored.Credential)
	require.Equal(t, pltype.IssueCredentialACK, lastSent(t).Type)

	// completion freed the active slot for the next exchange
	_, err = Create(testPrincipal, connID, testAttributes())
	require.NoError(t, err)
}

func TestIssuerFlow(t *testing.T) {
	connID := activeConn(t)
	utils.Settings.SetAutoOffer(true)
	utils.Settings.SetAutoIssue(true)
	defer utils.Settings.SetAutoOffer(false)
	defer utils.Settings.SetAutoIssue(false)

	propose := didcomm.NewPayload(pltype.IssueCredentialPropose, "issuer-thread-1",
		&didcomm.CredentialPropose{
			CredDefID: testCredDefID,
			SchemaID:  testSchemaID,
			CredentialProposal: didcomm.PreviewCredential{
				Type:       pltype.CredentialPreview,
				Attributes: testAttributes(),
			},
		})
	propose.Thread.PID = connID
	require.NoError(t, process(t, propose))

	sentOffer := lastSent(t)
	require.Equal(t, pltype.IssueCredentialOffer, sentOffer.Type)

	offerBody := &didcomm.CredentialOffer{}
	require.NoError(t, sentOffer.FieldObj(offerBody))
	require.Equal(t, testCredDefID, offerBody.CredDefID)
	require.NotEmpty(t, offerBody.Nonce)

	// the holder answers the offer with a valid request blob
	prover := try.To1(vc.Get())
	blob := try.To1(prover.BuildRequest(context.Background(), *offerBody))
	request := didcomm.NewPayload(pltype.IssueCredentialRequest, "issuer-thread-1",
		&didcomm.CredentialRequest{CredDefID: testCredDefID, Blob: blob})
	require.NoError(t, process(t, request))

	sentIssue := lastSent(t)
	require.Equal(t, pltype.IssueCredentialIssue, sentIssue.Type)

	ack := didcomm.NewPayload(pltype.IssueCredentialACK, "issuer-thread-1", nil)
	require.NoError(t, process(t, ack))

	key, err := psm.GetThread("issuer-thread-1")
	require.NoError(t, err)
	_, m, err := Status(testPrincipal, key.Nonce)
	require.NoError(t, err)
	require.Equal(t, psm.CredAcked, m.StateName())

	// a late ack repeat is absorbed
	require.NoError(t, process(t, ack))
}

func TestValidationFailure_AbandonsExchange(t *testing.T) {
	connID := activeConn(t)
	utils.Settings.SetAutoOffer(true)
	defer utils.Settings.SetAutoOffer(false)

	propose := didcomm.NewPayload(pltype.IssueCredentialPropose, "issuer-thread-2",
		&didcomm.CredentialPropose{
			CredentialProposal: didcomm.PreviewCredential{
				Type:       pltype.CredentialPreview,
				Attributes: testAttributes(),
			},
		})
	propose.Thread.PID = connID
	require.NoError(t, process(t, propose))
	require.Equal(t, pltype.IssueCredentialOffer, lastSent(t).Type)

	request := didcomm.NewPayload(pltype.IssueCredentialRequest, "issuer-thread-2",
		&didcomm.CredentialRequest{Blob: "garbage"})
	err := process(t, request)
	require.ErrorIs(t, err, psm.ErrCryptoValidation)

	key, err := psm.GetThread("issuer-thread-2")
	require.NoError(t, err)
	_, m, err := Status(testPrincipal, key.Nonce)
	require.NoError(t, err)
	require.Equal(t, psm.CredAbandoned, m.StateName())
	require.Equal(t, pltype.NotificationProblemReport, lastSent(t).Type)

	// the failed exchange released its active slot
	_, err = Create(testPrincipal, connID, testAttributes())
	require.NoError(t, err)
}

func TestDuplicateActiveExchange(t *testing.T) {
	connID := activeConn(t)

	first, err := Create(testPrincipal, connID, testAttributes())
	require.NoError(t, err)

	_, err = Create(testPrincipal, connID, testAttributes())
	require.ErrorIs(t, err, psm.ErrDuplicateActiveExchange)

	// terminating the first exchange frees the slot
	require.NoError(t, Reject(testPrincipal, first.ExchangeID(), "changed my mind"))

	_, m, err := Status(testPrincipal, first.ExchangeID())
	require.NoError(t, err)
	require.Equal(t, psm.CredAbandoned, m.StateName())

	_, err = Create(testPrincipal, connID, testAttributes())
	require.NoError(t, err)
}

func TestConnectionRejectBlockedByOpenExchange(t *testing.T) {
	connID := activeConn(t)

	rep, err := Create(testPrincipal, connID, testAttributes())
	require.NoError(t, err)

	err = connection.Reject(testPrincipal, connID)
	require.ErrorIs(t, err, psm.ErrOpenExchanges)

	require.NoError(t, Reject(testPrincipal, rep.ExchangeID(), "cleanup"))
}

func TestUnknownThread(t *testing.T) {
	offer := didcomm.NewPayload(pltype.IssueCredentialOffer, "no-such-thread",
		&didcomm.CredentialOffer{Nonce: "n"})
	err := process(t, offer)
	require.ErrorIs(t, err, psm.ErrUnknownThread)

	ack := didcomm.NewPayload(pltype.IssueCredentialACK, "no-such-thread", nil)
	err = process(t, ack)
	require.ErrorIs(t, err, psm.ErrUnknownThread)
}

func TestCreate_DeliveryFailureLeavesNothing(t *testing.T) {
	connID := activeConn(t)

	saved := comm.SendAndWaitReq
	comm.SendAndWaitReq = func(string, io.Reader, time.Duration) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	_, err := Create(testPrincipal, connID, testAttributes())
	comm.SendAndWaitReq = saved
	require.Error(t, err)

	// the slot is free and the identical retry goes through
	open, err := psm.HasOpenExchanges(connID)
	require.NoError(t, err)
	require.False(t, open)

	rep, err := Create(testPrincipal, connID, testAttributes())
	require.NoError(t, err)
	require.NoError(t, Reject(testPrincipal, rep.ExchangeID(), "cleanup"))
}

func TestExchangeIDRetiredOnCompletion(t *testing.T) {
	connID := activeConn(t)
	rep, err := Create(testPrincipal, connID, testAttributes())
	require.NoError(t, err)

	_, err = registry.Resolve(rep.ExchangeID())
	require.NoError(t, err)

	require.NoError(t, Reject(testPrincipal, rep.ExchangeID(), "done"))

	// terminal exchanges take their correlation id out of circulation
	_, err = registry.Resolve(rep.ExchangeID())
	require.ErrorIs(t, err, psm.ErrNotFound)

	// but the exchange itself stays readable for polling
	_, m, err := Status(testPrincipal, rep.ExchangeID())
	require.NoError(t, err)
	require.Equal(t, psm.CredAbandoned, m.StateName())
}
