package unitfile

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Render substitutes {{NAME}} placeholders in content with vars[NAME].
// It fails if any placeholder has no value.
func Render(content []byte, vars map[string]string) ([]byte, error) {
	missing := map[string]struct{}{}
	out := placeholderRe.ReplaceAllFunc(content, func(m []byte) []byte {
		name := string(placeholderRe.FindSubmatch(m)[1])
		v, ok := vars[name]
		if !ok {
			missing[name] = struct{}{}
			return m
		}
		return []byte(v)
	})
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unitfile: unresolved template variables: %s", strings.Join(names, ", "))
	}
	return out, nil
}

// ParseVars parses KEY=VALUE assignments into a map. Later assignments win.
func ParseVars(assignments []string) (map[string]string, error) {
	vars := make(map[string]string, len(assignments))
	for _, a := range assignments {
		k, v, ok := strings.Cut(a, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("unitfile: invalid variable %q (want KEY=VALUE)", a)
		}
		vars[k] = v
	}
	return vars, nil
}
