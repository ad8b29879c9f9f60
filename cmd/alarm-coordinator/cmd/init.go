package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-coordinator/internal/config"
)

var (
	// initOptions holds the values written by the init command.
	initOptions = config.Default()
	// force allows overwriting an existing settings file.
	force bool

	// errSettingsExist is returned when init would overwrite a settings file.
	errSettingsExist = errors.New("settings file already exists, use --force to overwrite")

	// initCmd writes a settings file with defaults.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with defaults.",
		Long: `Writes a settings file for this installation.

Everything except the remote service has a default; --base-url and
--system-id are required. The file holds the auth token, so it is written
with owner-only permissions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return errSettingsExist
			}

			if err := config.Save(configPath, initOptions); err != nil {
				return fmt.Errorf("save settings: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "settings written to %s\n", configPath)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := initCmd.Flags()

	flags.StringVar(&initOptions.Remote.BaseURL, "base-url", "", "remote security service base URL")
	flags.StringVar(&initOptions.Remote.SystemID, "system-id", "", "installation system id")
	flags.StringVar(&initOptions.Remote.AuthToken, "auth-token", "", "installation auth token")
	flags.StringVar(&initOptions.ListenAddress, "listen-address", initOptions.ListenAddress, "gRPC listen address")
	flags.StringVar(&initOptions.Webhook.ListenAddress, "webhook-address", initOptions.Webhook.ListenAddress,
		"webhook listen address")
	flags.StringVar(&initOptions.Webhook.Token, "webhook-token", "", "shared secret required on webhook requests")
	flags.DurationVar(&initOptions.PollInterval, "poll-interval", 0, "status poll interval, 0 disables polling")
	flags.BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")

	for _, name := range []string{"base-url", "system-id"} {
		if err := initCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
