package systemd

import "golang.org/x/sys/unix"

// realRootChecker implements RootChecker using the effective UID.
type realRootChecker struct{}

// NewRootChecker returns a RootChecker that checks the real process EUID.
func NewRootChecker() RootChecker {
	return &realRootChecker{}
}

func (c *realRootChecker) IsRoot() bool {
	return unix.Geteuid() == 0
}
