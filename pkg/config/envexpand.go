package config

import (
	"fmt"
	"os"
	"regexp"
)

// envRefPattern matches ${VAR} and ${VAR:-default} references in YAML text.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnv replaces environment-variable references in raw YAML bytes.
// ${VAR} requires VAR to be set; ${VAR:-default} falls back to the default.
// A missing variable without a default is an error so misconfiguration
// surfaces at startup instead of as an empty string deep in the engine.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []string
	expanded := envRefPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		groups := envRefPattern.FindSubmatch(match)
		name := string(groups[1])
		hasDefault := len(groups[2]) > 0
		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if hasDefault {
			return groups[3]
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved environment variables: %v", missing)
	}
	return expanded, nil
}
