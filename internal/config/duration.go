package config

import (
	"fmt"
	"strings"
	"time"
)

// durationField parses a human duration like "5m" or "30s". Empty or
// zero means unset and yields the fallback; a negative value is a config
// error, never a silent clamp.
func durationField(key, raw string, fallback time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: bad duration %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", key, raw)
	}
	if d == 0 {
		return fallback, nil
	}
	return d, nil
}
