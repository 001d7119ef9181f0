package util

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var ErrEnvNotSet = errors.New("environment variable not set")

// ${NAME} or ${NAME:-fallback}
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvStrict replaces ${NAME} references with their values. A reference
// without a fallback to an unset variable is an error; every missing name is
// reported at once.
func ExpandEnvStrict(s string) (string, error) {
	var missing []string

	out := envVarPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envVarPattern.FindStringSubmatch(ref)
		name, hasFallback := m[1], strings.Contains(ref, ":-")
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasFallback {
			return m[2]
		}
		missing = append(missing, name)
		return ref
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrEnvNotSet, strings.Join(missing, ", "))
	}
	return out, nil
}
