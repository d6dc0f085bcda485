// Package cmd implements the unitctl CLI commands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/plexsphere/unitctl/internal/config"
	"github.com/plexsphere/unitctl/internal/installer"
	"github.com/plexsphere/unitctl/internal/systemd"
)

var (
	cfgFile  string
	logLevel string
	backend  systemd.Backend
	unitDir  string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("unitctl version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "unitctl",
	Short: "unitctl installs and removes systemd service/timer unit pairs",
	Long: "unitctl installs a systemd service unit together with the timer unit that\n" +
		"schedules it: it copies both files into the unit directory, reloads systemd,\n" +
		"and enables and starts both units. It also stops and removes such a pair.",
	// No Run function; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	rootCmd.PersistentFlags().Var(&backend, "backend", "service manager backend: systemctl or dbus (overrides config)")
	rootCmd.PersistentFlags().StringVar(&unitDir, "unit-dir", "", "systemd unit directory (overrides config)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("unitctl version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.Load(cfgFile, explicit)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if unitDir != "" {
		cfg.UnitDir = unitDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newInstaller wires an Installer for cfg. The returned func releases the
// backend's resources.
func newInstaller(cfg *config.Config, opts installer.Options) (*installer.Installer, func(), error) {
	ctrl, err := systemd.New(cfg.Backend, cfg.SystemctlPath)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if c, ok := ctrl.(io.Closer); ok {
			_ = c.Close()
		}
	}
	logger := setupLogger(cfg.LogLevel)
	return installer.NewInstaller(opts, ctrl, systemd.NewRootChecker(), logger), release, nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
