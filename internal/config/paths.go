package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DataDir resolves the directory holding durable state, creating it if needed.
func (c *Config) DataDir() (string, error) {
	dir := strings.TrimSpace(c.Paths.DataDir)
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolve user config dir: %w", err)
		}
		dir = filepath.Join(base, "chime")
	} else {
		dir = expandHome(dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// SequencesDir resolves the sequence document directory, creating it if needed.
func (c *Config) SequencesDir() (string, error) {
	if dir := strings.TrimSpace(c.Paths.SequencesDir); dir != "" {
		dir = expandHome(dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		return dir, nil
	}
	data, err := c.DataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(data, "sequences")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// MediaDir resolves the media root. Relative play_media paths resolve against
// it; it is never created implicitly since it is user content.
func (c *Config) MediaDir() string {
	dir := strings.TrimSpace(c.Paths.MediaDir)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		return home
	}
	return expandHome(dir)
}

// StorePath resolves the alarm store location for the configured driver.
func (c *Config) StorePath() (string, error) {
	if p := strings.TrimSpace(c.Storage.Path); p != "" {
		return expandHome(p), nil
	}
	data, err := c.DataDir()
	if err != nil {
		return "", err
	}
	name := "alarms.json"
	if c.Storage.Driver == "sqlite" {
		name = "alarms.db"
	}
	return filepath.Join(data, name), nil
}

// ReconcileInterval parses scheduler.reconcile_every with a 5m default.
func (c *Config) ReconcileInterval() (time.Duration, error) {
	return durationField("scheduler.reconcile_every", c.Scheduler.ReconcileEvery, 5*time.Minute)
}

// SQLiteBusyTimeout parses storage.busy_timeout (0 = driver default).
func (c *Config) SQLiteBusyTimeout() (time.Duration, error) {
	return durationField("storage.busy_timeout", c.Storage.BusyTimeout, 0)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
