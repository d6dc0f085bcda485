package systemd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// systemctlController implements Controller by running systemctl.
type systemctlController struct {
	path string
}

// NewSystemctlController returns a Controller that calls the systemctl binary
// at path. An empty path means "systemctl" looked up in PATH.
func NewSystemctlController(path string) Controller {
	if path == "" {
		path = "systemctl"
	}
	return &systemctlController{path: path}
}

func (c *systemctlController) IsAvailable() bool {
	_, err := exec.LookPath(c.path)
	return err == nil
}

func (c *systemctlController) DaemonReload(ctx context.Context) error {
	return c.run(ctx, "daemon-reload")
}

func (c *systemctlController) Enable(ctx context.Context, unit string) error {
	return c.run(ctx, "enable", unit)
}

func (c *systemctlController) Disable(ctx context.Context, unit string) error {
	return c.run(ctx, "disable", unit)
}

func (c *systemctlController) Start(ctx context.Context, unit string) error {
	return c.run(ctx, "start", unit)
}

func (c *systemctlController) Stop(ctx context.Context, unit string) error {
	return c.run(ctx, "stop", unit)
}

func (c *systemctlController) IsActive(ctx context.Context, unit string) bool {
	return exec.CommandContext(ctx, c.path, "is-active", "--quiet", unit).Run() == nil
}

func (c *systemctlController) IsEnabled(ctx context.Context, unit string) bool {
	return exec.CommandContext(ctx, c.path, "is-enabled", "--quiet", unit).Run() == nil
}

func (c *systemctlController) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, c.path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			return fmt.Errorf("systemd: systemctl %s: %w", strings.Join(args, " "), err)
		}
		return fmt.Errorf("systemd: systemctl %s: %s: %w", strings.Join(args, " "), msg, err)
	}
	return nil
}
