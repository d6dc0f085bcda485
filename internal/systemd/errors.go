package systemd

import "fmt"

func errInvalidBackend(s string) error {
	return fmt.Errorf("systemd: invalid backend %q (must be %q or %q)", s, BackendSystemctl, BackendDBus)
}
