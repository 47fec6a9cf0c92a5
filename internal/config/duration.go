package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a duration setting. Empty means zero; negative
// values are rejected. field names the setting in errors, e.g. "scheduler.timeout".
func ParseDurationField(field, raw string) (time.Duration, error) {
	return ParseDurationOrDefault(field, raw, 0)
}

// ParseDurationOrDefault is ParseDurationField with def standing in for an
// empty or zero value.
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: must not be negative, got %s", field, s)
	case d == 0:
		return def, nil
	}
	return d, nil
}
