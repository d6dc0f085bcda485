package installer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Fake systemd ---

// fakeSystemd models the manager's unit registry: which unit files it has
// loaded from unitDir, which units are enabled, which are running.
// Only mutating calls are recorded.
type fakeSystemd struct {
	unitDir   string
	available bool

	loaded  map[string]bool
	enabled map[string]bool
	active  map[string]bool

	// failOn maps a recorded call ("enable backup.service",
	// "daemon-reload") to the error it returns.
	failOn map[string]error

	// onStart, if set, runs inside Start before the unit becomes active.
	onStart func(ctx context.Context, unit string) error

	calls []string
}

func newFakeSystemd(unitDir string) *fakeSystemd {
	return &fakeSystemd{
		unitDir:   unitDir,
		available: true,
		loaded:    map[string]bool{},
		enabled:   map[string]bool{},
		active:    map[string]bool{},
		failOn:    map[string]error{},
	}
}

type registry struct {
	loaded, enabled, active map[string]bool
}

func (f *fakeSystemd) snapshot() registry {
	return registry{
		loaded:  maps.Clone(f.loaded),
		enabled: maps.Clone(f.enabled),
		active:  maps.Clone(f.active),
	}
}

func (f *fakeSystemd) record(call string) error {
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeSystemd) IsAvailable() bool { return f.available }

func (f *fakeSystemd) DaemonReload(context.Context) error {
	if err := f.record("daemon-reload"); err != nil {
		return err
	}
	entries, err := os.ReadDir(f.unitDir)
	if err != nil {
		return err
	}
	f.loaded = map[string]bool{}
	for _, e := range entries {
		f.loaded[e.Name()] = true
	}
	return nil
}

func (f *fakeSystemd) Enable(_ context.Context, unit string) error {
	if err := f.record("enable " + unit); err != nil {
		return err
	}
	if !f.loaded[unit] {
		return fmt.Errorf("unit file %s does not exist", unit)
	}
	f.enabled[unit] = true
	return nil
}

func (f *fakeSystemd) Disable(_ context.Context, unit string) error {
	if err := f.record("disable " + unit); err != nil {
		return err
	}
	delete(f.enabled, unit)
	return nil
}

func (f *fakeSystemd) Start(ctx context.Context, unit string) error {
	if err := f.record("start " + unit); err != nil {
		return err
	}
	if f.onStart != nil {
		if err := f.onStart(ctx, unit); err != nil {
			return err
		}
	}
	if !f.loaded[unit] {
		return fmt.Errorf("unit %s not found", unit)
	}
	f.active[unit] = true
	return nil
}

func (f *fakeSystemd) Stop(_ context.Context, unit string) error {
	if err := f.record("stop " + unit); err != nil {
		return err
	}
	if !f.loaded[unit] {
		return fmt.Errorf("unit %s not loaded", unit)
	}
	delete(f.active, unit)
	return nil
}

func (f *fakeSystemd) IsActive(_ context.Context, unit string) bool  { return f.active[unit] }
func (f *fakeSystemd) IsEnabled(_ context.Context, unit string) bool { return f.enabled[unit] }

// --- Mock RootChecker ---

type mockRootChecker struct {
	isRoot bool
}

func (m *mockRootChecker) IsRoot() bool { return m.isRoot }

// --- Test helpers ---

const serviceTemplate = `[Unit]
Description=Backup repositories

[Service]
Type=oneshot
ExecStart={{EXEC}}
`

const timerTemplate = `[Unit]
Description=Run backup on schedule

[Timer]
OnCalendar={{DAY_VAR}} *-*-* {{TIME_VAR}}
Persistent=true

[Install]
WantedBy=timers.target
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture is a unit directory watched by a fake manager plus a separate
// directory holding the unit sources.
type fixture struct {
	unitDir string
	srcDir  string
	svcSrc  string
	tmrSrc  string
	systemd *fakeSystemd
	root    *mockRootChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	unitDir := filepath.Join(t.TempDir(), "etc", "systemd", "system")
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	srcDir := t.TempDir()
	f := &fixture{
		unitDir: unitDir,
		srcDir:  srcDir,
		svcSrc:  filepath.Join(srcDir, "backup.service"),
		tmrSrc:  filepath.Join(srcDir, "backup.timer"),
		systemd: newFakeSystemd(unitDir),
		root:    &mockRootChecker{isRoot: true},
	}
	writeFile(t, f.svcSrc, serviceTemplate)
	writeFile(t, f.tmrSrc, timerTemplate)
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q) = %v", path, err)
	}
}

func (f *fixture) installer(opts Options) *Installer {
	opts.UnitDir = f.unitDir
	if opts.Vars == nil {
		opts.Vars = map[string]string{"DAY_VAR": "Fri", "TIME_VAR": "18:00:00"}
	}
	return NewInstaller(opts, f.systemd, f.root, testLogger())
}

func (f *fixture) registerRequest() RegisterRequest {
	req := NewRegisterRequest(f.svcSrc, f.unitDir, f.tmrSrc, f.unitDir)
	req.Vars = map[string]string{"EXEC": "/usr/local/bin/backup --no-ui"}
	return req
}

func (f *fixture) unregisterRequest() UnregisterRequest {
	return NewUnregisterRequest("backup.service", "backup.timer", f.unitDir)
}

func (f *fixture) servicePath() string { return filepath.Join(f.unitDir, "backup.service") }
func (f *fixture) timerPath() string   { return filepath.Join(f.unitDir, "backup.timer") }

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
