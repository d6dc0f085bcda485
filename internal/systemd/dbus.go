package systemd

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/util"
)

// dbusController implements Controller over the system bus. The connection
// is opened on first use.
type dbusController struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewDBusController returns a Controller that talks to the systemd system
// instance over D-Bus.
func NewDBusController() Controller {
	return &dbusController{}
}

func (c *dbusController) IsAvailable() bool {
	return util.IsRunningSystemd()
}

func (c *dbusController) connect(ctx context.Context) (*dbus.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.conn.Connected() {
		return c.conn, nil
	}
	// The bus connection is closed when its context ends, so it must not
	// inherit a single step's deadline.
	conn, err := dbus.NewSystemConnectionContext(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("systemd: connect to system bus: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// Close releases the D-Bus connection, if one was opened.
func (c *dbusController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

func (c *dbusController) DaemonReload(ctx context.Context) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("systemd: daemon-reload: %w", err)
	}
	return nil
}

func (c *dbusController) Enable(ctx context.Context, unit string) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
		return fmt.Errorf("systemd: enable %s: %w", unit, err)
	}
	return nil
}

func (c *dbusController) Disable(ctx context.Context, unit string) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
		return fmt.Errorf("systemd: disable %s: %w", unit, err)
	}
	return nil
}

func (c *dbusController) Start(ctx context.Context, unit string) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	result := make(chan string, 1)
	if _, err := conn.StartUnitContext(ctx, unit, "replace", result); err != nil {
		return fmt.Errorf("systemd: start %s: %w", unit, err)
	}
	return waitJob(ctx, "start", unit, result)
}

func (c *dbusController) Stop(ctx context.Context, unit string) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	result := make(chan string, 1)
	if _, err := conn.StopUnitContext(ctx, unit, "replace", result); err != nil {
		return fmt.Errorf("systemd: stop %s: %w", unit, err)
	}
	return waitJob(ctx, "stop", unit, result)
}

func (c *dbusController) IsActive(ctx context.Context, unit string) bool {
	return c.unitProperty(ctx, unit, "ActiveState") == "active"
}

// IsEnabled accepts the same unit file states for which
// "systemctl is-enabled" exits zero.
func (c *dbusController) IsEnabled(ctx context.Context, unit string) bool {
	return enabledState(c.unitProperty(ctx, unit, "UnitFileState"))
}

func enabledState(state string) bool {
	switch state {
	case "enabled", "enabled-runtime", "static", "alias", "indirect", "generated", "transient":
		return true
	}
	return false
}

func (c *dbusController) unitProperty(ctx context.Context, unit, name string) string {
	conn, err := c.connect(ctx)
	if err != nil {
		return ""
	}
	prop, err := conn.GetUnitPropertyContext(ctx, unit, name)
	if err != nil {
		return ""
	}
	s, _ := prop.Value.Value().(string)
	return s
}

// waitJob blocks until systemd reports the queued job's result.
func waitJob(ctx context.Context, verb, unit string, result <-chan string) error {
	select {
	case r := <-result:
		if r != "done" {
			return fmt.Errorf("systemd: %s %s: job %s", verb, unit, r)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("systemd: %s %s: %w", verb, unit, ctx.Err())
	}
}
