// Package agency has the commands that start and probe the agency server.
package agency

import (
	"errors"
	"flag"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/registry"
	"github.com/findy-network/findy-issuer-agent/agent/storage"
	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/findy-network/findy-issuer-agent/agent/vc"
	"github.com/findy-network/findy-issuer-agent/cmds"
	_ "github.com/findy-network/findy-issuer-agent/protocol/connection" // protocols needed
	_ "github.com/findy-network/findy-issuer-agent/protocol/issuecredential"
	_ "github.com/findy-network/findy-issuer-agent/protocol/notification"
	_ "github.com/findy-network/findy-issuer-agent/protocol/trustping"
	"github.com/findy-network/findy-issuer-agent/server"
	"github.com/go-co-op/gocron"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Cmd is the start command of the agency server.
type Cmd struct {
	HostScheme string
	HostAddr   string
	HostPort   uint
	ServerPort uint

	Label string

	PsmDb        string
	PsmDbKey     string
	DbBackupName string
	DbBackupTime string

	CredDefID string
	SchemaID  string

	AutoIssue      bool
	AutoOffer      bool
	AcceptMode     string
	InvitationMode string

	Timeout time.Duration

	VersionInfo string
}

// DefaultValues is the pre-filled start command the CLI flags write over.
var DefaultValues = &Cmd{
	HostScheme:     "http",
	HostAddr:       "localhost",
	HostPort:       8080,
	ServerPort:     8080,
	Label:          "issuer-agency",
	PsmDb:          "findy",
	DbBackupTime:   "04:00",
	AcceptMode:     "auto",
	InvitationMode: "once",
	Timeout:        utils.HTTPReqTimeout,
}

var cron = gocron.NewScheduler(time.Now().Location())

var provider *storage.Provider

func (c *Cmd) Validate() error {
	if c.HostAddr == "" {
		return errors.New("host address cannot be empty")
	}
	if c.HostPort == 0 {
		return errors.New("host port cannot be zero")
	}
	if c.PsmDb == "" {
		return errors.New("psm database location must be given")
	}
	if c.AcceptMode != "auto" && c.AcceptMode != "manual" {
		return errors.New("accept mode must be auto or manual")
	}
	if c.InvitationMode != "once" && c.InvitationMode != "multi" {
		return errors.New("invitation mode must be once or multi")
	}
	if c.DbBackupTime != "" {
		if err := cmds.ValidateTime(c.DbBackupTime); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cmd) Exec(_ io.Writer) (r cmds.Result, err error) {
	return nil, StartAgency(c)
}

// Setup opens the storage, attaches the machine layers to it, installs the
// crypto collaborator and fills the runtime settings. After Setup the agency
// can run protocols but no server listens yet.
func (c *Cmd) Setup() (err error) {
	defer err2.Handle(&err, "agency setup")

	c.printStartupArgs()

	provider = storage.New(storage.Config{
		Key:       c.PsmDbKey,
		FileName:  c.PsmDb,
		BucketIDs: psm.Buckets,
	})
	try.To(provider.Init())
	try.To(psm.Open(provider))
	try.To(registry.Open(provider))

	prover, err := vc.NewTinkProver()
	try.To(err)
	vc.Active = prover

	c.setRuntimeSettings()
	return nil
}

// Run starts the background tasks and serves until the HTTP server exits.
func (c *Cmd) Run() (err error) {
	defer err2.Handle(&err, "agency run")

	c.startBackupTasks()
	try.To(server.StartHTTPServer(portStr(c.ServerPort)))
	return nil
}

func StartAgency(serverCmd *Cmd) (err error) {
	defer err2.Handle(&err, "start agency")

	try.To(serverCmd.Setup())
	try.To(serverCmd.Run())
	serverCmd.closeAll()

	return nil
}

func (c *Cmd) startBackupTasks() {
	if c.DbBackupName != "" {
		glog.V(1).Infoln("db backup time:", c.DbBackupTime)
		_, err := cron.Every(1).Day().At(c.DbBackupTime).Do(func() {
			if err := provider.Backup(); err != nil {
				glog.Errorln("db backup error:", err)
			}
		})
		if err != nil {
			glog.Warningln("db backup start error:", err)
		}
		cron.StartAsync()
	}
}

func (c *Cmd) printStartupArgs() {
	glog.V(1).Infoln(
		"starting agency:",
		c.HostScheme+"://"+c.HostAddr+":"+portStr(c.HostPort),
		"server port:", c.ServerPort,
		"psm db:", c.PsmDb,
	)
}

func (c *Cmd) setRuntimeSettings() {
	utils.Settings.SetHostAddr(c.HostScheme + "://" + c.HostAddr + ":" + portStr(c.HostPort))
	utils.Settings.SetLabel(c.Label)
	utils.Settings.SetTimeout(c.Timeout)
	utils.Settings.SetCredDefID(c.CredDefID)
	utils.Settings.SetSchemaID(c.SchemaID)
	utils.Settings.SetAutoIssue(c.AutoIssue)
	utils.Settings.SetAutoOffer(c.AutoOffer)
	utils.Settings.SetAcceptMode(c.AcceptMode)
	utils.Settings.SetInvitationMode(c.InvitationMode)
	utils.Settings.SetVersionInfo(c.VersionInfo)

	if c.HostPort == 0 {
		c.HostPort = c.ServerPort
	}
}

func (c *Cmd) closeAll() {
	cron.Stop()
	if err := provider.Close(); err != nil {
		glog.Errorln("closing storage:", err)
	}
}

// ParseLoggingArgs sets the glog flags from one startup argument string.
func ParseLoggingArgs(s string) {
	args := make([]string, 1, 12)
	args[0] = os.Args[0]
	args = append(args, strings.Split(s, " ")...)
	orgArgs := os.Args
	os.Args = args
	flag.Parse()
	os.Args = orgArgs
}

func portStr(port uint) string {
	return strconv.FormatUint(uint64(port), 10)
}
