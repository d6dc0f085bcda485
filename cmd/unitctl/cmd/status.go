package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/unitctl/internal/installer"
)

var statusCmd = &cobra.Command{
	Use:   "status <service> <timer>",
	Short: "Show whether a service/timer pair is installed, enabled and active",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("unitctl status: %w", err)
	}
	ins, release, err := newInstaller(cfg, installer.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("unitctl status: %w", err)
	}
	defer release()

	req := installer.NewUnregisterRequest(args[0], args[1], cfg.UnitDir)
	if err := req.Validate(); err != nil {
		return fmt.Errorf("unitctl status: %w", err)
	}

	w := cmd.OutOrStdout()
	for _, st := range ins.Status(cmd.Context(), req.Service, req.Timer) {
		fmt.Fprintf(w, "%s:\n", st.Name)
		fmt.Fprintf(w, "  Path:      %s\n", st.Path)
		fmt.Fprintf(w, "  Installed: %s\n", yesNo(st.Installed))
		fmt.Fprintf(w, "  Enabled:   %s\n", yesNo(st.Enabled))
		fmt.Fprintf(w, "  Active:    %s\n", yesNo(st.Active))
		if st.Digest != "" {
			fmt.Fprintf(w, "  Digest:    %s\n", st.Digest)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
