// Package systemd drives the service manager that loads, enables and runs
// unit files. Two backends are provided: one shells out to systemctl, the
// other talks to systemd over D-Bus.
package systemd

import (
	"context"

	"github.com/spf13/pflag"
)

// Controller abstracts systemd unit management for testability.
// Mutating methods report failure as an error and do not interpret the
// manager's output beyond that.
type Controller interface {
	// IsAvailable returns true if the backend can reach the service manager.
	IsAvailable() bool

	// DaemonReload makes the manager re-read unit files from disk.
	DaemonReload(ctx context.Context) error

	// Enable marks the named unit to start at boot.
	Enable(ctx context.Context, unit string) error

	// Disable removes the named unit from boot-time start.
	Disable(ctx context.Context, unit string) error

	// Start starts the named unit now.
	Start(ctx context.Context, unit string) error

	// Stop stops the named unit now.
	Stop(ctx context.Context, unit string) error

	// IsActive returns true if the named unit is currently running.
	IsActive(ctx context.Context, unit string) bool

	// IsEnabled returns true if the named unit is enabled for boot.
	IsEnabled(ctx context.Context, unit string) bool
}

// RootChecker abstracts privilege checking for testability.
type RootChecker interface {
	// IsRoot returns true if the current process has root privileges.
	IsRoot() bool
}

// Backend names a Controller implementation.
type Backend string

const (
	// BackendSystemctl runs the systemctl binary.
	BackendSystemctl Backend = "systemctl"

	// BackendDBus talks to the system manager over D-Bus.
	BackendDBus Backend = "dbus"
)

var _ pflag.Value = (*Backend)(nil)

// String implements pflag.Value.
func (b *Backend) String() string { return string(*b) }

// Set implements pflag.Value.
func (b *Backend) Set(s string) error {
	switch Backend(s) {
	case BackendSystemctl, BackendDBus:
		*b = Backend(s)
		return nil
	default:
		return errInvalidBackend(s)
	}
}

// Type implements pflag.Value.
func (b *Backend) Type() string { return "backend" }

// New returns the Controller for backend. systemctlPath is used only by the
// systemctl backend.
func New(backend Backend, systemctlPath string) (Controller, error) {
	switch backend {
	case BackendSystemctl, "":
		return NewSystemctlController(systemctlPath), nil
	case BackendDBus:
		return NewDBusController(), nil
	default:
		return nil, errInvalidBackend(string(backend))
	}
}
