package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/unitctl/internal/installer"
)

var unregisterNoDisable bool

var unregisterCmd = &cobra.Command{
	Use:   "unregister <service-path> <timer-path>",
	Short: "Stop and remove a service unit and its timer",
	Long: "Stop the timer and the service, disable both, delete both unit files and\n" +
		"reload systemd. A bare unit name resolves against the unit directory.",
	Args: cobra.ExactArgs(2),
	RunE: runUnregister,
}

func init() {
	unregisterCmd.Flags().BoolVar(&unregisterNoDisable, "no-disable", false, "only stop the units, do not disable them")
	rootCmd.AddCommand(unregisterCmd)
}

func runUnregister(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("unitctl unregister: %w", err)
	}

	opts := installer.OptionsFromConfig(cfg)
	if unregisterNoDisable {
		opts.DisableOnUnregister = false
	}
	ins, release, err := newInstaller(cfg, opts)
	if err != nil {
		return fmt.Errorf("unitctl unregister: %w", err)
	}
	defer release()

	req := installer.NewUnregisterRequest(args[0], args[1], cfg.UnitDir)

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	if _, err := ins.Unregister(ctx, req); err != nil {
		return fmt.Errorf("unitctl unregister: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "unregistered %s and %s\n", req.Service.Name(), req.Timer.Name())
	return nil
}
