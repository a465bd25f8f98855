/*
Package server is the HTTP gateway of the agency. It exposes the polling
surface the web wallet and the issuer service use, the manual protocol step
endpoints, and the DIDComm transport endpoint agent-to-agent payloads arrive
through. The gateway holds no state of its own: every answer is a
point-in-time read of the machine layer.
*/
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/findy-network/findy-issuer-agent/agent/bus"
	"github.com/findy-network/findy-issuer-agent/agent/comm"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/findy-network/findy-issuer-agent/protocol/connection"
	"github.com/findy-network/findy-issuer-agent/protocol/issuecredential"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// BuildRouter wires every gateway route. Separated from serving so tests can
// run the router against httptest.
func BuildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/version", getVersion)

	r.Get("/connections", getConnections)
	r.Get("/connections/{id}", getConnection)
	r.Post("/connections/{id}/accept", postConnectionAccept)
	r.Post("/connections/{id}/reject", postConnectionReject)

	r.Post("/issues", postIssue)
	r.Post("/issues/", postIssue)
	r.Get("/issues/{id}", getIssue)
	r.Post("/issues/{id}/offer", postIssueOffer)
	r.Post("/issues/{id}/issue", postIssueIssue)
	r.Post("/issues/{id}/reject", postIssueReject)

	r.Post("/didcomm/", postDIDComm)

	return r
}

// StartHTTPServer starts the gateway and blocks until it exits.
func StartHTTPServer(port string) error {
	addr := ":" + port
	glog.V(1).Infoln("starting http server on", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           BuildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

// principal resolves the authenticated caller from the request. The identity
// provider in front of the gateway fills the header, a missing one maps to
// the agency's own identity.
func principal(r *http.Request) comm.Principal {
	did := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if did == "" {
		did = "agency"
	}
	return comm.Principal{DID: did, Label: utils.Settings.Label()}
}

// httpStatus maps the core's error taxonomy to answer codes. Callers can
// retry 409 answers after the conflicting condition clears, 404s are final.
func httpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, didcomm.ErrInvalidInvitation),
		errors.Is(err, psm.ErrInvalidClaims):
		return http.StatusBadRequest
	case errors.Is(err, psm.ErrNotFound),
		errors.Is(err, psm.ErrUnknownConnection),
		errors.Is(err, psm.ErrUnknownThread):
		return http.StatusNotFound
	case errors.Is(err, psm.ErrConnectionNotReady),
		errors.Is(err, psm.ErrInvitationExhausted),
		errors.Is(err, psm.ErrDuplicateActiveExchange),
		errors.Is(err, psm.ErrAlreadyTerminal),
		errors.Is(err, psm.ErrInvalidTransition),
		errors.Is(err, psm.ErrOpenExchanges):
		return http.StatusConflict
	case errors.Is(err, psm.ErrCryptoValidation):
		return http.StatusBadRequest
	case errors.Is(err, psm.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, err error) {
	glog.V(1).Infoln("gateway error:", err)
	writeJSON(w, httpStatus(err), errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		glog.Errorln("encoding answer:", err)
	}
}

func getVersion(w http.ResponseWriter, _ *http.Request) {
	v := utils.Settings.VersionInfo()
	if v == "" {
		v = utils.Version
	}
	writeJSON(w, http.StatusOK, VersionResult{Version: v})
}

// getConnections creates a fresh invitation and returns the new connection
// with its shareable invitation url. Every call creates a new connection.
func getConnections(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(func(err error) error {
		writeErr(w, err)
		return nil
	})

	p := principal(r)
	rep, err := connection.CreateInvitation(p, r.URL.Query().Get("label"))
	try.To(err)

	_, m, err := connection.Status(p, rep.ConnectionID())
	try.To(err)

	writeJSON(w, http.StatusOK, connectionResult(rep, m))
}

// getConnection answers a point-in-time snapshot of one connection. With a
// wait argument the answer is delayed until the connection reaches the
// wanted state or the agency timeout passes.
func getConnection(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(func(err error) error {
		writeErr(w, err)
		return nil
	})

	p := principal(r)
	connID := chi.URLParam(r, "id")

	if wanted := r.URL.Query().Get("wait"); wanted != "" {
		try.To(waitState(psm.StateKey{DID: p.DID, Nonce: connID}, wanted))
	}

	rep, m, err := connection.Status(p, connID)
	try.To(err)

	writeJSON(w, http.StatusOK, connectionResult(rep, m))
}

func postConnectionAccept(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(func(err error) error {
		writeErr(w, err)
		return nil
	})

	p := principal(r)
	connID := chi.URLParam(r, "id")
	try.To(connection.AcceptRequest(p, connID))

	rep, m, err := connection.Status(p, connID)
	try.To(err)
	writeJSON(w, http.StatusOK, connectionResult(rep, m))
}

func postConnectionReject(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(func(err error) error {
		writeErr(w, err)
		return nil
	})

	p := principal(r)
	connID := chi.URLParam(r, "id")
	try.To(connection.Reject(p, connID))

	rep, m, err := connection.Status(p, connID)
	try.To(err)
	writeJSON(w, http.StatusOK, connectionResult(rep, m))
}

// postIssue starts a new credential exchange with the posted claims.
func postIssue(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(func(err error) error {
		writeErr(w, err)
		return nil
	})

	req := IssueRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	p := principal(r)
	rep, err := issuecredential.Create(p, req.ConnectionID, req.Claims.Attributes())
	try.To(err)

	_, m, err := issuecredential.Status(p, rep.ExchangeID())
	try.To(err)
	writeJSON(w, http.StatusOK, issueResult(rep, m))
}

func getIssue(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(func(err error) error {
		writeErr(w, err)
		return nil
	})

	p := principal(r)
	exchangeID := chi.URLParam(r, "id")

	if wanted := r.URL.Query().Get("wait"); wanted != "" {
		try.To(waitState(psm.StateKey{DID: p.DID, Nonce: exchangeID}, wanted))
	}

	rep, m, err := issuecredential.Status(p, exchangeID)
	try.To(err)
	writeJSON(w, http.StatusOK, issueResult(rep, m))
}

func postIssueOffer(w http.ResponseWriter, r *http.Request) {
	issueStep(w, r, issuecredential.SendOffer)
}

func postIssueIssue(w http.ResponseWriter, r *http.Request) {
	issueStep(w, r, issuecredential.Issue)
}

func postIssueReject(w http.ResponseWriter, r *http.Request) {
	issueStep(w, r, func(p comm.Principal, id string) error {
		return issuecredential.Reject(p, id, "rejected by issuer")
	})
}

func issueStep(w http.ResponseWriter, r *http.Request, step func(comm.Principal, string) error) {
	defer err2.Catch(func(err error) error {
		writeErr(w, err)
		return nil
	})

	p := principal(r)
	exchangeID := chi.URLParam(r, "id")
	try.To(step(p, exchangeID))

	rep, m, err := issuecredential.Status(p, exchangeID)
	try.To(err)
	writeJSON(w, http.StatusOK, issueResult(rep, m))
}

// postDIDComm is the transport endpoint inbound agent-to-agent payloads
// arrive through. The answer only acknowledges delivery, protocol answers
// travel as separate payloads the other way.
func postDIDComm(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(func(err error) error {
		writeErr(w, err)
		return nil
	})

	pl := &didcomm.Payload{}
	if err := json.NewDecoder(r.Body).Decode(pl); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed payload"})
		return
	}

	try.To(comm.Proc.Process(comm.Packet{
		Payload:   pl,
		Principal: principal(r),
	}))

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// waitState blocks until key broadcasts the wanted state or the agency
// timeout passes. Reaching the state before the wait started is fine: the
// current state is checked first.
func waitState(key psm.StateKey, wanted string) error {
	c := bus.WantAll.AddListener(key)
	defer bus.WantAll.RmListener(key, c)

	if m, err := psm.GetPSM(key); err == nil && m.Applied(wanted) {
		return nil
	}

	timer := time.NewTimer(utils.Settings.Timeout())
	defer timer.Stop()

	for {
		select {
		case state := <-c:
			if state == wanted {
				return nil
			}
		case <-timer.C:
			return psm.ErrTimeout
		}
	}
}
