package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
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
	_ "github.com/findy-network/findy-issuer-agent/protocol/connection" // handlers
	_ "github.com/findy-network/findy-issuer-agent/protocol/issuecredential"
	_ "github.com/findy-network/findy-issuer-agent/protocol/notification"
	_ "github.com/findy-network/findy-issuer-agent/protocol/trustping"
	"github.com/lainio/err2/try"
	"github.com/stretchr/testify/require"
)

var (
	testDir      string
	testProvider *storage.Provider
	testServer   *httptest.Server
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	testDir = try.To1(os.MkdirTemp("", "server-test"))
	testProvider = storage.New(storage.Config{
		FileName:  "server",
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
	utils.Settings.SetCredDefID("T5VX2IJYLJ:3:CL:12:tag")
	utils.Settings.SetSchemaID("T5VX2IJYLJ:2:identity:1.0")
	utils.Settings.SetAcceptMode(pltype.AcceptAuto)
	utils.Settings.SetInvitationMode(pltype.InvitationModeOnce)
	utils.Settings.SetLocalTestMode(true)

	comm.SendAndWaitReq = func(_ string, msg io.Reader, _ time.Duration) ([]byte, error) {
		_ = try.To1(io.ReadAll(msg))
		return []byte("{}"), nil
	}

	testServer = httptest.NewServer(BuildRouter())
}

func tearDown() {
	testServer.Close()
	if err := testProvider.Close(); err != nil {
		panic(err)
	}
	os.RemoveAll(testDir)
}

func get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	response := try.To1(http.Get(testServer.URL + path))
	defer response.Body.Close()
	return response.StatusCode, try.To1(io.ReadAll(response.Body))
}

func post(t *testing.T, path string, body interface{}) (int, []byte) {
	t.Helper()
	d := []byte("{}")
	if body != nil {
		d = try.To1(json.Marshal(body))
	}
	response := try.To1(http.Post(
		testServer.URL+path, "application/json", bytes.NewReader(d)))
	defer response.Body.Close()
	return response.StatusCode, try.To1(io.ReadAll(response.Body))
}

func newConnection(t *testing.T) ConnectionResult {
	t.Helper()
	status, body := get(t, "/connections")
	require.Equal(t, http.StatusOK, status)

	result := ConnectionResult{}
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotEmpty(t, result.ConnectionID)
	return result
}

// driveActive pushes a connection to active through the transport endpoint.
func driveActive(t *testing.T, connID string) {
	t.Helper()

	request := didcomm.NewPayload(pltype.AriesConnectionRequest, connID,
		&didcomm.ConnectionRequest{
			Label:    "wallet",
			Endpoint: "http://wallet.example.com/didcomm/",
		})
	status, _ := post(t, "/didcomm/", request)
	require.Equal(t, http.StatusOK, status)

	ping := didcomm.NewPayload(pltype.TrustPingPing, connID, nil)
	status, _ = post(t, "/didcomm/", ping)
	require.Equal(t, http.StatusOK, status)
}

func TestGetVersion(t *testing.T) {
	status, body := get(t, "/version")
	require.Equal(t, http.StatusOK, status)

	result := VersionResult{}
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotEmpty(t, result.Version)
}

func TestCreateAndPollConnection(t *testing.T) {
	created := newConnection(t)
	require.Equal(t, psm.ConnInvitationSent, created.State)
	require.NotNil(t, created.Invitation)
	require.Contains(t, created.InvitationURL, "?c_i=")

	status, body := get(t, "/connections/"+created.ConnectionID)
	require.Equal(t, http.StatusOK, status)

	polled := ConnectionResult{}
	require.NoError(t, json.Unmarshal(body, &polled))
	require.Equal(t, created.ConnectionID, polled.ConnectionID)
	require.Equal(t, psm.ConnInvitationSent, polled.State)
	require.NotEmpty(t, polled.CreatedAt)
}

func TestGetConnection_NotFound(t *testing.T) {
	status, _ := get(t, "/connections/no-such-id")
	require.Equal(t, http.StatusNotFound, status)
}

func TestIssueOverActiveConnection(t *testing.T) {
	created := newConnection(t)
	driveActive(t, created.ConnectionID)

	status, body := get(t, "/connections/"+created.ConnectionID)
	require.Equal(t, http.StatusOK, status)
	polled := ConnectionResult{}
	require.NoError(t, json.Unmarshal(body, &polled))
	require.Equal(t, psm.ConnActive, polled.State)

	status, body = post(t, "/issues", IssueRequest{
		ConnectionID: created.ConnectionID,
		Claims: Claims{
			UserDisplayName: "Teddy Tester",
			EmailAddress:    "test@example.com",
			Surname:         "Tester",
			GivenName:       "Teddy",
		},
	})
	require.Equal(t, http.StatusOK, status)

	issued := IssueResult{}
	require.NoError(t, json.Unmarshal(body, &issued))
	require.NotEmpty(t, issued.CredentialExchangeID)
	require.Equal(t, psm.CredProposalSent, issued.State)
	require.NotNil(t, issued.CredentialProposalDict)
	require.NotNil(t, issued.CredentialOffer)

	status, body = get(t, "/issues/"+issued.CredentialExchangeID)
	require.Equal(t, http.StatusOK, status)
	polledIssue := IssueResult{}
	require.NoError(t, json.Unmarshal(body, &polledIssue))
	require.Equal(t, issued.CredentialExchangeID, polledIssue.CredentialExchangeID)
}

func TestIssue_ConnectionGuards(t *testing.T) {
	status, _ := post(t, "/issues", IssueRequest{
		ConnectionID: "no-such-id",
		Claims:       Claims{EmailAddress: "test@example.com"},
	})
	require.Equal(t, http.StatusNotFound, status)

	pending := newConnection(t)
	status, _ = post(t, "/issues", IssueRequest{
		ConnectionID: pending.ConnectionID,
		Claims:       Claims{EmailAddress: "test@example.com"},
	})
	require.Equal(t, http.StatusConflict, status)
}

func TestIssue_EmptyClaims(t *testing.T) {
	created := newConnection(t)
	driveActive(t, created.ConnectionID)

	status, _ := post(t, "/issues", IssueRequest{
		ConnectionID: created.ConnectionID,
	})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestIssue_DuplicateActive(t *testing.T) {
	created := newConnection(t)
	driveActive(t, created.ConnectionID)

	issue := IssueRequest{
		ConnectionID: created.ConnectionID,
		Claims:       Claims{EmailAddress: "test@example.com"},
	}

	status, _ := post(t, "/issues", issue)
	require.Equal(t, http.StatusOK, status)

	status, _ = post(t, "/issues", issue)
	require.Equal(t, http.StatusConflict, status)
}

func TestRejectConnection_BlockedAndAllowed(t *testing.T) {
	created := newConnection(t)
	driveActive(t, created.ConnectionID)

	status, body := post(t, "/issues", IssueRequest{
		ConnectionID: created.ConnectionID,
		Claims:       Claims{EmailAddress: "test@example.com"},
	})
	require.Equal(t, http.StatusOK, status)
	issued := IssueResult{}
	require.NoError(t, json.Unmarshal(body, &issued))

	// an open exchange blocks abandoning the connection
	status, _ = post(t, "/connections/"+created.ConnectionID+"/reject", nil)
	require.Equal(t, http.StatusConflict, status)

	status, _ = post(t, "/issues/"+issued.CredentialExchangeID+"/reject", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = post(t, "/connections/"+created.ConnectionID+"/reject", nil)
	require.Equal(t, http.StatusOK, status)
	rejected := ConnectionResult{}
	require.NoError(t, json.Unmarshal(body, &rejected))
	require.Equal(t, psm.ConnAbandoned, rejected.State)
}

func TestDIDComm_MalformedPayload(t *testing.T) {
	response := try.To1(http.Post(
		testServer.URL+"/didcomm/", "application/json",
		bytes.NewReader([]byte("not json"))))
	defer response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestDIDComm_UnknownConnection(t *testing.T) {
	request := didcomm.NewPayload(pltype.AriesConnectionRequest, "no-such-id",
		&didcomm.ConnectionRequest{Label: "wallet"})
	status, _ := post(t, "/didcomm/", request)
	require.Equal(t, http.StatusNotFound, status)
}

// the web wallet posts the connection id camel cased
func TestIssue_OriginalBodyShape(t *testing.T) {
	created := newConnection(t)
	driveActive(t, created.ConnectionID)

	raw := []byte(`{"claims":{"givenname":"Ann","emailaddress":"ann@example.com"},` +
		`"connectionId":"` + created.ConnectionID + `"}`)
	response := try.To1(http.Post(
		testServer.URL+"/issues/", "application/json", bytes.NewReader(raw)))
	defer response.Body.Close()
	body := try.To1(io.ReadAll(response.Body))
	require.Equal(t, http.StatusOK, response.StatusCode)

	issued := IssueResult{}
	require.NoError(t, json.Unmarshal(body, &issued))
	require.Equal(t, created.ConnectionID, issued.ConnectionID)
	require.Equal(t, psm.CredProposalSent, issued.State)

	require.NotNil(t, issued.CredentialProposalDict)
	require.Equal(t, pltype.IssueCredentialPropose, issued.CredentialProposalDict.Type)
	require.Equal(t, issued.ThreadID, issued.CredentialProposalDict.ID)
}
