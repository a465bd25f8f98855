// Package notification handles inbound problem reports. A problem report
// abandons the lifecycle it threads to: a credential exchange by its thread
// id, or a connection by its connection id. Reports on already terminal
// lifecycles are absorbed.
package notification

import (
	"errors"

	"github.com/findy-network/findy-issuer-agent/agent/comm"
	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/pltype"
	"github.com/findy-network/findy-issuer-agent/agent/prot"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/registry"
	"github.com/findy-network/findy-issuer-agent/protocol/issuecredential"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

func init() {
	comm.Proc.Add(map[string]comm.HandlerFunc{
		pltype.NotificationProblemReport: handleProblemReport,
	})
}

func handleProblemReport(packet comm.Packet) (err error) {
	defer err2.Handle(&err, "problem report")

	report := &didcomm.ProblemReport{}
	try.To(packet.Payload.FieldObj(report))

	threadID := packet.Payload.ThreadID()
	glog.V(1).Infoln("problem report for", threadID, ":", report.Comment)

	// credential exchange threads first, connection ids second
	err = issuecredential.Abandon(threadID)
	if err == nil || errors.Is(err, psm.ErrAlreadyTerminal) {
		return nil
	}
	if !errors.Is(err, psm.ErrUnknownThread) {
		return err
	}

	kind, rErr := registry.Resolve(threadID)
	if rErr != nil || kind != psm.Connection {
		return psm.ErrUnknownThread
	}

	err = prot.Advance(prot.Transition{
		Key:    psm.StateKey{DID: packet.Principal.DID, Nonce: threadID},
		Kind:   psm.Connection,
		Target: psm.ConnAbandoned,
		PLType: pltype.NotificationProblemReport,
	})
	if errors.Is(err, psm.ErrAlreadyTerminal) {
		glog.V(1).Infoln("absorbing report to terminal connection:", threadID)
		return nil
	}
	return err
}
