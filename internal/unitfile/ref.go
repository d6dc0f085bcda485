// Package unitfile models the service and timer unit files handled by
// unitctl: where they come from, where they are installed, and how their
// content is rendered and checked before installation.
package unitfile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/plexsphere/unitctl/internal/fsutil"
)

// Kind is the type of a systemd unit handled by unitctl.
type Kind string

const (
	// KindService is a .service unit.
	KindService Kind = "service"

	// KindTimer is a .timer unit.
	KindTimer Kind = "timer"
)

// Suffix returns the unit file name suffix for k, including the dot.
func (k Kind) Suffix() string {
	return "." + string(k)
}

// Section returns the unit file section that identifies k.
func (k Kind) Section() string {
	switch k {
	case KindService:
		return "Service"
	case KindTimer:
		return "Timer"
	default:
		return ""
	}
}

// Ref is a unit file's source and installed location.
type Ref struct {
	Kind Kind

	// Source is the file the unit is copied from. Empty for already
	// installed units.
	Source string

	// Dest is the installed path under the manager's unit directory.
	Dest string
}

// NewRef builds a Ref for installing source to dest. If dest is an existing
// directory or ends in a path separator, the source basename is appended.
func NewRef(kind Kind, source, dest string) Ref {
	if strings.HasSuffix(dest, string(filepath.Separator)) || fsutil.IsDir(dest) {
		dest = filepath.Join(dest, filepath.Base(source))
	}
	return Ref{Kind: kind, Source: source, Dest: filepath.Clean(dest)}
}

// Installed builds a Ref for a unit that is already installed. A bare unit
// name (no directory component) is resolved against unitDir.
func Installed(kind Kind, path, unitDir string) Ref {
	if !strings.ContainsRune(path, filepath.Separator) {
		path = filepath.Join(unitDir, path)
	}
	return Ref{Kind: kind, Dest: filepath.Clean(path)}
}

// Name returns the unit name passed to the service manager.
func (r Ref) Name() string {
	return filepath.Base(r.Dest)
}

// Validate checks that the Ref names a unit of its kind.
func (r Ref) Validate() error {
	if r.Dest == "" || r.Dest == "." {
		return fmt.Errorf("unitfile: %s unit: destination path is required", r.Kind)
	}
	if r.Kind.Section() == "" {
		return fmt.Errorf("unitfile: unknown unit kind %q", r.Kind)
	}
	name := r.Name()
	if !strings.HasSuffix(name, r.Kind.Suffix()) || name == r.Kind.Suffix() {
		return fmt.Errorf("unitfile: %s unit name %q must end in %q", r.Kind, name, r.Kind.Suffix())
	}
	return nil
}

// SourceIsDest reports whether the source and destination are the same file.
func (r Ref) SourceIsDest() bool {
	if r.Source == "" {
		return false
	}
	if filepath.Clean(r.Source) == r.Dest {
		return true
	}
	return fsutil.SameFile(r.Source, r.Dest)
}
