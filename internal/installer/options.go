// Package installer registers and unregisters a service unit together with
// the timer unit that schedules it.
package installer

import (
	"errors"
	"fmt"
	"time"

	"github.com/plexsphere/unitctl/internal/config"
	"github.com/plexsphere/unitctl/internal/unitfile"
)

// Options holds the settings for an Installer.
// Options is passed as a constructor argument; no config file I/O happens in
// this package.
type Options struct {
	// UnitDir is where bare unit names resolve.
	// Default: /etc/systemd/system
	UnitDir string

	// RequireRoot refuses to mutate anything without root privileges.
	RequireRoot bool

	// Rollback undoes completed register steps when a later one fails.
	Rollback bool

	// DisableOnUnregister disables both units after stopping them.
	DisableOnUnregister bool

	// StepTimeout bounds each step. Zero disables the bound.
	StepTimeout time.Duration

	// Vars are substituted into unit files on register.
	Vars map[string]string
}

// OptionsFromConfig maps the loaded configuration onto installer options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		UnitDir:             cfg.UnitDir,
		RequireRoot:         cfg.RequireRoot,
		Rollback:            cfg.Rollback,
		DisableOnUnregister: cfg.Unregister.Disable,
		StepTimeout:         cfg.StepTimeout,
		Vars:                cfg.Vars,
	}
}

// ApplyDefaults sets default values for zero-valued fields.
func (o *Options) ApplyDefaults() {
	if o.UnitDir == "" {
		o.UnitDir = config.DefaultUnitDir
	}
	if o.Vars == nil {
		o.Vars = map[string]string{}
	}
}

// RegisterRequest names the unit pair to install.
type RegisterRequest struct {
	Service unitfile.Ref
	Timer   unitfile.Ref

	// RemoveSource deletes both source files once everything else succeeded.
	RemoveSource bool

	// Vars overlay Options.Vars for this request.
	Vars map[string]string
}

// NewRegisterRequest builds a request from the four positional paths.
func NewRegisterRequest(serviceSrc, serviceDest, timerSrc, timerDest string) RegisterRequest {
	return RegisterRequest{
		Service: unitfile.NewRef(unitfile.KindService, serviceSrc, serviceDest),
		Timer:   unitfile.NewRef(unitfile.KindTimer, timerSrc, timerDest),
	}
}

// Validate checks the request before any step runs.
func (r RegisterRequest) Validate() error {
	if r.Service.Source == "" {
		return errors.New("installer: service source path is required")
	}
	if r.Timer.Source == "" {
		return errors.New("installer: timer source path is required")
	}
	return validatePair(r.Service, r.Timer)
}

// UnregisterRequest names the installed unit pair to remove.
type UnregisterRequest struct {
	Service unitfile.Ref
	Timer   unitfile.Ref
}

// NewUnregisterRequest builds a request from two installed paths. Bare unit
// names resolve against unitDir.
func NewUnregisterRequest(servicePath, timerPath, unitDir string) UnregisterRequest {
	return UnregisterRequest{
		Service: unitfile.Installed(unitfile.KindService, servicePath, unitDir),
		Timer:   unitfile.Installed(unitfile.KindTimer, timerPath, unitDir),
	}
}

// Validate checks the request before any step runs.
func (r UnregisterRequest) Validate() error {
	return validatePair(r.Service, r.Timer)
}

func validatePair(service, timer unitfile.Ref) error {
	if service.Kind != unitfile.KindService || timer.Kind != unitfile.KindTimer {
		return errors.New("installer: unit pair must be a service and a timer")
	}
	if err := service.Validate(); err != nil {
		return fmt.Errorf("installer: %w", err)
	}
	if err := timer.Validate(); err != nil {
		return fmt.Errorf("installer: %w", err)
	}
	return nil
}
