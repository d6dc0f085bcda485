package unitfile

import (
	"bytes"
	"fmt"

	"github.com/coreos/go-systemd/v22/unit"
)

// Validate parses content as a systemd unit file and checks that it carries
// the section identifying kind.
func Validate(kind Kind, content []byte) error {
	opts, err := unit.DeserializeOptions(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("unitfile: parse %s unit: %w", kind, err)
	}
	want := kind.Section()
	for _, opt := range opts {
		if opt.Section == want {
			return nil
		}
	}
	return fmt.Errorf("unitfile: %s unit has no [%s] section", kind, want)
}
