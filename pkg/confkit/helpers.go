package confkit

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	if _, err := os.Stat(p); err == nil {
		return true
	}
	return false
}

// Expand trims and expands ${VAR} references in a raw config value.
func Expand(raw string) string {
	return strings.TrimSpace(os.ExpandEnv(raw))
}

// Override returns the value of envKey when it is set, otherwise the expanded current value.
func Override(current, envKey string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return Expand(current)
}

// ParseDuration parses raw as a positive duration. An empty raw value yields fallback.
// scope and field are only used to build the error message.
func ParseDuration(scope, field, raw string, fallback time.Duration) (time.Duration, error) {
	raw = Expand(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid %s %q: %w", scope, field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: %s must be positive, got %s", scope, field, d)
	}
	return d, nil
}
