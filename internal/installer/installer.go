package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"

	"github.com/plexsphere/unitctl/internal/fsutil"
	"github.com/plexsphere/unitctl/internal/steps"
	"github.com/plexsphere/unitctl/internal/systemd"
	"github.com/plexsphere/unitctl/internal/unitfile"
)

// Step names, as reported in logs and errors.
const (
	StepCopyService         = "copy service unit"
	StepCopyTimer           = "copy timer unit"
	StepReload              = "reload units"
	StepEnableService       = "enable service"
	StepStartService        = "start service"
	StepEnableTimer         = "enable timer"
	StepStartTimer          = "start timer"
	StepRemoveServiceSource = "remove service source"
	StepRemoveTimerSource   = "remove timer source"

	StepStopTimer         = "stop timer"
	StepStopService       = "stop service"
	StepDisableTimer      = "disable timer"
	StepDisableService    = "disable service"
	StepRemoveServiceFile = "remove service unit file"
	StepRemoveTimerFile   = "remove timer unit file"
)

const unitFileMode = 0o644

// Installer registers and unregisters service/timer unit pairs.
type Installer struct {
	opts    Options
	systemd systemd.Controller
	root    systemd.RootChecker
	logger  *slog.Logger
}

// NewInstaller creates a new Installer with defaults applied.
func NewInstaller(opts Options, ctrl systemd.Controller, root systemd.RootChecker, logger *slog.Logger) *Installer {
	opts.ApplyDefaults()
	return &Installer{
		opts:    opts,
		systemd: ctrl,
		root:    root,
		logger:  logger.With("component", "installer"),
	}
}

// Register installs and starts the unit pair: copy both files, reload,
// enable and start the service, enable and start the timer. The first
// failing step aborts the rest. Source files are removed afterwards only if
// requested and everything else succeeded.
func (ins *Installer) Register(ctx context.Context, req RegisterRequest) (steps.Result, error) {
	if err := req.Validate(); err != nil {
		return steps.Result{}, err
	}
	if err := ins.preflight("register"); err != nil {
		return steps.Result{}, err
	}

	vars := make(map[string]string, len(ins.opts.Vars)+len(req.Vars))
	maps.Copy(vars, ins.opts.Vars)
	maps.Copy(vars, req.Vars)

	// Decided before copying: once the destination is replaced the two
	// paths no longer share an inode.
	keepService := req.Service.SourceIsDest()
	keepTimer := req.Timer.SourceIsDest()

	svc, tmr := req.Service.Name(), req.Timer.Name()
	seq := []steps.Step{
		ins.copyStep(StepCopyService, req.Service, vars),
		ins.copyStep(StepCopyTimer, req.Timer, vars),
		{
			Name:   StepReload,
			Target: ins.opts.UnitDir,
			Run:    ins.systemd.DaemonReload,
		},
		ins.enableStep(StepEnableService, svc),
		ins.startStep(StepStartService, svc),
		ins.enableStep(StepEnableTimer, tmr),
		ins.startStep(StepStartTimer, tmr),
	}

	runner := steps.NewRunner(ins.logger,
		steps.WithTimeout(ins.opts.StepTimeout),
		steps.WithRollback(ins.opts.Rollback),
	)
	res, err := runner.Run(ctx, seq)
	if err != nil {
		ins.reloadAfterRollback(ctx, res, err)
		return res, fmt.Errorf("installer: register: %w", err)
	}

	if req.RemoveSource {
		var cleanup []steps.Step
		if keepService {
			ins.logger.Info("source is the installed unit file, not removing", "path", req.Service.Source)
		} else {
			cleanup = append(cleanup, removeStep(StepRemoveServiceSource, req.Service.Source))
		}
		if keepTimer {
			ins.logger.Info("source is the installed unit file, not removing", "path", req.Timer.Source)
		} else {
			cleanup = append(cleanup, removeStep(StepRemoveTimerSource, req.Timer.Source))
		}
		more, err := steps.NewRunner(ins.logger).Run(ctx, cleanup)
		res.Completed = append(res.Completed, more.Completed...)
		if err != nil {
			return res, fmt.Errorf("installer: register: %w", err)
		}
	}

	ins.logger.Info("unit pair registered", "service", svc, "timer", tmr)
	return res, nil
}

// Unregister stops the timer and the service, optionally disables both,
// deletes both unit files, and reloads the manager. The reload runs only if
// both deletions succeeded.
func (ins *Installer) Unregister(ctx context.Context, req UnregisterRequest) (steps.Result, error) {
	if err := req.Validate(); err != nil {
		return steps.Result{}, err
	}
	if err := ins.preflight("unregister"); err != nil {
		return steps.Result{}, err
	}

	svc, tmr := req.Service.Name(), req.Timer.Name()
	seq := []steps.Step{
		unitStep(StepStopTimer, tmr, ins.systemd.Stop),
		unitStep(StepStopService, svc, ins.systemd.Stop),
	}
	if ins.opts.DisableOnUnregister {
		seq = append(seq,
			unitStep(StepDisableTimer, tmr, ins.systemd.Disable),
			unitStep(StepDisableService, svc, ins.systemd.Disable),
		)
	}
	seq = append(seq,
		removeStep(StepRemoveServiceFile, req.Service.Dest),
		removeStep(StepRemoveTimerFile, req.Timer.Dest),
		steps.Step{
			Name:   StepReload,
			Target: ins.opts.UnitDir,
			Run:    ins.systemd.DaemonReload,
		},
	)

	res, err := steps.NewRunner(ins.logger, steps.WithTimeout(ins.opts.StepTimeout)).Run(ctx, seq)
	if err != nil {
		return res, fmt.Errorf("installer: unregister: %w", err)
	}
	ins.logger.Info("unit pair unregistered", "service", svc, "timer", tmr)
	return res, nil
}

// UnitStatus describes one installed unit.
type UnitStatus struct {
	Name      string
	Path      string
	Installed bool
	Enabled   bool
	Active    bool

	// Digest is the BLAKE2b-256 digest of the installed file, if readable.
	Digest string
}

// Status reports the state of each unit. It never mutates anything.
func (ins *Installer) Status(ctx context.Context, refs ...unitfile.Ref) []UnitStatus {
	out := make([]UnitStatus, 0, len(refs))
	for _, r := range refs {
		st := UnitStatus{Name: r.Name(), Path: r.Dest}
		if data, err := os.ReadFile(r.Dest); err == nil {
			st.Installed = true
			st.Digest = unitfile.Digest(data)
		}
		st.Enabled = ins.systemd.IsEnabled(ctx, st.Name)
		st.Active = ins.systemd.IsActive(ctx, st.Name)
		out = append(out, st)
	}
	return out
}

func (ins *Installer) preflight(op string) error {
	if ins.opts.RequireRoot && !ins.root.IsRoot() {
		return fmt.Errorf("installer: %s requires root privileges", op)
	}
	if !ins.systemd.IsAvailable() {
		return errors.New("installer: systemd is not available")
	}
	return nil
}

// copyStep renders and validates ref.Source and writes it to ref.Dest. Its
// undo puts back whatever was at ref.Dest before.
func (ins *Installer) copyStep(name string, ref unitfile.Ref, vars map[string]string) steps.Step {
	var (
		previous    []byte
		hadPrevious bool
	)
	return steps.Step{
		Name:   name,
		Target: ref.Source + " -> " + ref.Dest,
		Run: func(context.Context) error {
			content, err := unitfile.Load(ref, vars)
			if err != nil {
				return err
			}
			if data, err := os.ReadFile(ref.Dest); err == nil {
				previous, hadPrevious = data, true
			}
			if err := fsutil.WriteFileAtomic(ref.Dest, content, unitFileMode); err != nil {
				return fmt.Errorf("installer: write %s: %w", ref.Dest, err)
			}
			ins.logger.Debug("unit file installed", "path", ref.Dest, "digest", unitfile.Digest(content))
			return nil
		},
		Undo: func(context.Context) error {
			if hadPrevious {
				return fsutil.WriteFileAtomic(ref.Dest, previous, unitFileMode)
			}
			return os.Remove(ref.Dest)
		},
	}
}

// enableStep enables unit. Its undo disables it again unless it was already
// enabled beforehand.
func (ins *Installer) enableStep(name, unit string) steps.Step {
	var wasEnabled bool
	return steps.Step{
		Name:   name,
		Target: unit,
		Run: func(ctx context.Context) error {
			if ins.opts.Rollback {
				wasEnabled = ins.systemd.IsEnabled(ctx, unit)
			}
			return ins.systemd.Enable(ctx, unit)
		},
		Undo: func(ctx context.Context) error {
			if wasEnabled {
				return nil
			}
			return ins.systemd.Disable(ctx, unit)
		},
	}
}

// startStep starts unit. Its undo stops it again unless it was already
// running beforehand.
func (ins *Installer) startStep(name, unit string) steps.Step {
	var wasActive bool
	return steps.Step{
		Name:   name,
		Target: unit,
		Run: func(ctx context.Context) error {
			if ins.opts.Rollback {
				wasActive = ins.systemd.IsActive(ctx, unit)
			}
			return ins.systemd.Start(ctx, unit)
		},
		Undo: func(ctx context.Context) error {
			if wasActive {
				return nil
			}
			return ins.systemd.Stop(ctx, unit)
		},
	}
}

// reloadAfterRollback reloads the manager once rolled-back unit files are
// back in place, so it forgets units that no longer exist.
func (ins *Installer) reloadAfterRollback(ctx context.Context, res steps.Result, err error) {
	var stepErr *steps.StepError
	if !errors.As(err, &stepErr) || !stepErr.RolledBack {
		return
	}
	reloaded := false
	for _, name := range res.Completed {
		if name == StepReload {
			reloaded = true
		}
	}
	if !reloaded {
		return
	}
	if rerr := ins.systemd.DaemonReload(context.WithoutCancel(ctx)); rerr != nil {
		ins.logger.Warn("rollback reload failed", "error", rerr)
		stepErr.UndoErr = errors.Join(stepErr.UndoErr, fmt.Errorf("undo %q: %w", StepReload, rerr))
	}
}

func unitStep(name, unit string, fn func(context.Context, string) error) steps.Step {
	return steps.Step{
		Name:   name,
		Target: unit,
		Run: func(ctx context.Context) error {
			return fn(ctx, unit)
		},
	}
}

func removeStep(name, path string) steps.Step {
	return steps.Step{
		Name:   name,
		Target: path,
		Run: func(context.Context) error {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("installer: remove %s: %w", path, err)
			}
			return nil
		},
	}
}
