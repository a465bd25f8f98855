package cmd

import (
	"log"
	"os"

	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/findy-network/findy-issuer-agent/cmds/agency"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

// AgencyCmd represents the agency command
var AgencyCmd = &cobra.Command{
	Use:   "agency",
	Short: "Parent command for starting and pinging agency",
	Long: `
Parent command for starting and pinging agency
	`,
	Run: func(cmd *cobra.Command, args []string) {
		SubCmdNeeded(cmd)
	},
}

var agencyStartEnvs = map[string]string{
	"host-scheme":       "HOST_SCHEME",
	"host-address":      "HOST_ADDRESS",
	"host-port":         "HOST_PORT",
	"server-port":       "SERVER_PORT",
	"label":             "LABEL",
	"psm-database-file": "PSM_DATABASE_FILE",
	"psm-database-key":  "PSM_DATABASE_KEY",
	"db-backup":         "DB_BACKUP",
	"db-backup-time":    "DB_BACKUP_TIME",
	"cred-def-id":       "CRED_DEF_ID",
	"schema-id":         "SCHEMA_ID",
	"auto-issue":        "AUTO_ISSUE",
	"auto-offer":        "AUTO_OFFER",
	"accept-mode":       "ACCEPT_MODE",
	"invitation-mode":   "INVITATION_MODE",
	"timeout":           "TIMEOUT",
}

// startAgencyCmd represents the agency start subcommand
var startAgencyCmd = &cobra.Command{
	Use:   "start",
	Short: "Command for starting agency",
	Long: `
Start command for findy issuer agency server.

Example
	findy-issuer-agent agency start \
		--host-address agency.example.com \
		--psm-database-file /data/findy \
		--cred-def-id T5VX2I:3:CL:1:tag \
		--auto-issue
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(agencyStartEnvs, "AGENCY")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		try.To(aCmd.Validate())
		if !rootFlags.dryRun {
			cmd.SilenceUsage = true
			_, err = aCmd.Exec(os.Stdout)
			try.To(err)
		}
		return nil
	},
}

var agencyPingEnvs = map[string]string{
	"base-address": "PING_BASE_ADDRESS",
}

// pingAgencyCmd represents the agency ping subcommand
var pingAgencyCmd = &cobra.Command{
	Use:   "ping",
	Short: "Command for pinging agency",
	Long: `
Pings agency.
If agency works fine, ping ok with server's version is printed.

Example
	findy-issuer-agent agency ping \
		--base-address http://localhost:8080
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(agencyPingEnvs, "AGENCY")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		try.To(paCmd.Validate())
		if !rootFlags.dryRun {
			cmd.SilenceUsage = true
			_, err = paCmd.Exec(os.Stdout)
			try.To(err)
		}
		return nil
	},
}

var (
	aCmd  = agency.DefaultValues
	paCmd = agency.PingCmd{}
)

func init() {
	defer err2.Catch(func(err error) error {
		log.Println(err)
		return nil
	})

	aCmd.VersionInfo = "findy-issuer-agent v. " + utils.Version

	flags := startAgencyCmd.Flags()
	flags.StringVar(&aCmd.HostScheme, "host-scheme", aCmd.HostScheme, flagInfo("scheme of the agency's host address", AgencyCmd.Name(), agencyStartEnvs["host-scheme"]))
	flags.StringVar(&aCmd.HostAddr, "host-address", aCmd.HostAddr, flagInfo("host address", AgencyCmd.Name(), agencyStartEnvs["host-address"]))
	flags.UintVar(&aCmd.HostPort, "host-port", aCmd.HostPort, flagInfo("host port", AgencyCmd.Name(), agencyStartEnvs["host-port"]))
	flags.UintVar(&aCmd.ServerPort, "server-port", aCmd.ServerPort, flagInfo("server port", AgencyCmd.Name(), agencyStartEnvs["server-port"]))
	flags.StringVar(&aCmd.Label, "label", aCmd.Label, flagInfo("label written to invitations we create", AgencyCmd.Name(), agencyStartEnvs["label"]))
	flags.StringVar(&aCmd.PsmDb, "psm-database-file", aCmd.PsmDb, flagInfo("state machine database's filename", AgencyCmd.Name(), agencyStartEnvs["psm-database-file"]))
	flags.StringVar(&aCmd.PsmDbKey, "psm-database-key", "", flagInfo("SHA-256 32 bytes in hex ascii", AgencyCmd.Name(), agencyStartEnvs["psm-database-key"]))
	flags.StringVar(&aCmd.DbBackupName, "db-backup", "", flagInfo("base name for database backup files", AgencyCmd.Name(), agencyStartEnvs["db-backup"]))
	flags.StringVar(&aCmd.DbBackupTime, "db-backup-time", aCmd.DbBackupTime, flagInfo("time to start database backup in HH:MM[:SS]", AgencyCmd.Name(), agencyStartEnvs["db-backup-time"]))
	flags.StringVar(&aCmd.CredDefID, "cred-def-id", "", flagInfo("credential definition for issued credentials", AgencyCmd.Name(), agencyStartEnvs["cred-def-id"]))
	flags.StringVar(&aCmd.SchemaID, "schema-id", "", flagInfo("schema of issued credentials", AgencyCmd.Name(), agencyStartEnvs["schema-id"]))
	flags.BoolVar(&aCmd.AutoIssue, "auto-issue", false, flagInfo("issue credentials without a manual step", AgencyCmd.Name(), agencyStartEnvs["auto-issue"]))
	flags.BoolVar(&aCmd.AutoOffer, "auto-offer", false, flagInfo("answer proposals with an offer without a manual step", AgencyCmd.Name(), agencyStartEnvs["auto-offer"]))
	flags.StringVar(&aCmd.AcceptMode, "accept-mode", aCmd.AcceptMode, flagInfo("auto|manual answer mode for connection requests", AgencyCmd.Name(), agencyStartEnvs["accept-mode"]))
	flags.StringVar(&aCmd.InvitationMode, "invitation-mode", aCmd.InvitationMode, flagInfo("once|multi mode for created invitations", AgencyCmd.Name(), agencyStartEnvs["invitation-mode"]))
	flags.DurationVar(&aCmd.Timeout, "timeout", aCmd.Timeout, flagInfo("timeout for outbound calls and waits", AgencyCmd.Name(), agencyStartEnvs["timeout"]))

	p := pingAgencyCmd.Flags()
	p.StringVar(&paCmd.BaseAddr, "base-address", "http://localhost:8080", flagInfo("base address of agency", AgencyCmd.Name(), agencyPingEnvs["base-address"]))

	rootCmd.AddCommand(AgencyCmd)
	AgencyCmd.AddCommand(startAgencyCmd)
	AgencyCmd.AddCommand(pingAgencyCmd)
}
