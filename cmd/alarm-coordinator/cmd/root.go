package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-coordinator/internal/config"
	"github.com/oshokin/alarm-coordinator/internal/service/server"
	"github.com/oshokin/alarm-coordinator/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where the alarm session is persisted.
	stateFile string
	// webhookAddress overrides the webhook listen address.
	webhookAddress string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the coordinator.
	rootCmd = &cobra.Command{
		Use:   "alarm-coordinator [listen-address]",
		Short: "Run the alarm lifecycle coordinator.",
		Long: `Starts the coordinator that tracks the single alarm of this installation.

Sensor triggers and panel commands arrive over gRPC, the remote security
service is called over HTTPS, and alarm events pushed by the remote service
are received on the webhook listener.
The listen address can be provided as argument to override config (e.g., :50051).
The alarm session is persisted to a JSON file and restored on restart; every
transition is recorded in the sqlite journal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				WebhookAddress: webhookAddress,
				StateFile:      stateFile,
				LogLevel:       logLevel,
			})
		},
	}
)

// Execute runs the alarm-coordinator CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist the alarm session")
	rootCmd.Flags().StringVarP(&webhookAddress, "webhook-address", "w", "", "webhook listen address override")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(initCmd)
}
