package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-coordinator/internal/config"
	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	client "github.com/oshokin/alarm-coordinator/internal/service/client"
	"github.com/oshokin/alarm-coordinator/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the coordinator address.
	serverAddress string
	// retry keeps retrying transient failures.
	retry bool

	// kind is the alarm type of a raised alarm.
	kind string
	// alert is the alert posted by the alert command.
	alert domain.Alert
	// limit bounds the history listing.
	limit int

	// rootCmd represents the base command of the panel CLI.
	rootCmd = &cobra.Command{
		Use:   "alarm-panel",
		Short: "Control the alarm coordinator.",
		Long: `Sends panel commands and lifecycle requests to the alarm coordinator.

Panel commands (trigger, disarm, arm-home, arm-away) behave like the alarm
panel. The other commands call the lifecycle operations directly and are
meant for automations. Every request carries the current user and hostname
for the audit trail.`,
	}
)

// Execute runs the alarm-panel CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newActionCommand builds a subcommand running action.
func newActionCommand(action client.Action, use, short string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				Action:        action,
				Kind:          kind,
				Sensors:       args,
				Alert:         alert,
				Limit:         limit,
				Retry:         retry,
			})
		},
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "s", "", "coordinator address override")
	flags.BoolVarP(&retry, "retry", "r", false, "retry until the coordinator and remote service answer")

	raise := newActionCommand(client.ActionRaise, "raise [entity-id...]",
		"Record a pending alarm raised by sensors.", cobra.ArbitraryArgs)
	raise.Flags().StringVarP(&kind, "kind", "k", domain.KindNameSecurity, "alarm type (security, monitoring, medicalalert)")

	alertCmd := newActionCommand(client.ActionAlert, "alert", "Post a standalone alert.", cobra.NoArgs)
	alertCmd.Flags().StringVarP(&alert.Type, "type", "t", "", "alert type")
	alertCmd.Flags().StringVarP(&alert.Description, "description", "d", "", "alert description")
	alertCmd.Flags().StringVar(&alert.Status, "status", "", "alert status")

	if err := alertCmd.MarkFlagRequired("type"); err != nil {
		panic(err)
	}

	history := newActionCommand(client.ActionHistory, "history", "List recent lifecycle transitions.", cobra.NoArgs)
	history.Flags().IntVarP(&limit, "limit", "n", client.DefaultHistoryLimit, "number of transitions to show")

	rootCmd.AddCommand(
		newActionCommand(client.ActionTrigger, "trigger", "Trigger a security alarm from the panel.", cobra.NoArgs),
		newActionCommand(client.ActionDisarm, "disarm", "Disarm the panel and cancel the alarm.", cobra.NoArgs),
		newActionCommand(client.ActionArmHome, "arm-home", "Set the panel to armed home.", cobra.NoArgs),
		newActionCommand(client.ActionArmAway, "arm-away", "Set the panel to armed away.", cobra.NoArgs),
		raise,
		newActionCommand(client.ActionConfirm, "confirm", "Escalate the pending alarm.", cobra.NoArgs),
		newActionCommand(client.ActionCancel, "cancel", "Discard the pending alarm or cancel the active one.", cobra.NoArgs),
		newActionCommand(client.ActionStatus, "status", "Refresh the remote status of the active alarm.", cobra.NoArgs),
		newActionCommand(client.ActionEvent, "event entity-id...",
			"Report sensor events on the active alarm.", cobra.MinimumNArgs(1)),
		alertCmd,
		newActionCommand(client.ActionSession, "session", "Show the tracked alarm session.", cobra.NoArgs),
		history,
	)
}
