package unitfile

import (
	"fmt"
	"os"
)

// Load reads the unit at r.Source, renders vars into it, and validates the
// result. The returned content is what gets installed at r.Dest.
func Load(r Ref, vars map[string]string) ([]byte, error) {
	raw, err := os.ReadFile(r.Source)
	if err != nil {
		return nil, fmt.Errorf("unitfile: read source: %w", err)
	}
	content, err := Render(raw, vars)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, r.Source)
	}
	if err := Validate(r.Kind, content); err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, r.Source)
	}
	return content, nil
}
