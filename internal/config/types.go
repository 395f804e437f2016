package config

// Config is chime's settings document. It is stored as YAML or JSON next to
// the alarm data and is safe to hand-edit; unknown fields are rejected so a
// typo surfaces immediately instead of silently doing nothing.
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Paths locates the durable state: alarm store, sequence documents and
	// the media root that play_media paths resolve against.
	Paths PathsConfig `json:"paths"`

	// Scheduler selects the host trigger facility.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Storage controls the alarm store driver.
	Storage StorageConfig `json:"storage,omitempty"`

	// Player configures external media playback.
	Player PlayerConfig `json:"player,omitempty"`

	// Brightness and Volume pin a single capability strategy instead of
	// walking the chain ("auto").
	Brightness BrightnessConfig `json:"brightness,omitempty"`
	Volume     VolumeConfig     `json:"volume,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"` // trace|debug|info|warn|error
	Console bool              `json:"console"`
	File    FileLoggingConfig `json:"file,omitempty"`

	// ThrottleWarnPerSec caps warn-and-above records per second (0 = off).
	ThrottleWarnPerSec int `json:"throttle_warn_per_sec,omitempty"`
}

type FileLoggingConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type PathsConfig struct {
	// DataDir holds alarms.json (or alarms.db) and the sequences directory.
	// Default: os.UserConfigDir()/chime.
	DataDir string `json:"data_dir,omitempty"`

	// MediaDir is the root that relative play_media paths resolve against.
	MediaDir string `json:"media_dir,omitempty"`

	// SequencesDir overrides <data_dir>/sequences.
	SequencesDir string `json:"sequences_dir,omitempty"`
}

// SchedulerConfig selects and tunes the trigger backend.
//
// Backend values: "auto" (detect by host OS), "crontab", "launchd",
// "taskscheduler", "inprocess".
type SchedulerConfig struct {
	Backend string `json:"backend,omitempty"`

	// ReconcileEvery is a Go duration string for the periodic reconciliation
	// pass in serve mode. Default "5m". Reconciliation also runs at startup
	// and after every alarm mutation regardless of this setting.
	ReconcileEvery string `json:"reconcile_every,omitempty"`

	// CrontabCommand overrides the crontab binary (tests, odd distros).
	CrontabCommand string `json:"crontab_command,omitempty"`

	// AgentsDir overrides ~/Library/LaunchAgents for the launchd backend.
	AgentsDir string `json:"agents_dir,omitempty"`
}

// StorageConfig controls the alarm store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "~/.config/chime/alarms.db" }
type StorageConfig struct {
	Driver string `json:"driver,omitempty"` // "file" (default) | "sqlite"
	Path   string `json:"path,omitempty"`

	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type PlayerConfig struct {
	// Priority is the ordered list of player binaries tried for play_media.
	// Default: mpv, vlc, ffplay.
	Priority []string `json:"priority,omitempty"`

	Fullscreen bool `json:"fullscreen"`
}

type BrightnessConfig struct {
	// Method pins one strategy: auto|brightnessctl|sysfs|xbacklight|xrandr|ddcutil.
	Method string `json:"method,omitempty"`

	// Device selects a /sys/class/backlight entry for the sysfs strategy.
	Device string `json:"device,omitempty"`
}

type VolumeConfig struct {
	// Method pins one strategy: auto|amixer-pulse|amixer|pactl|osascript.
	Method string `json:"method,omitempty"`
}

// Default returns a config with every defaulted field filled in.
func Default() *Config {
	c := &Config{}
	c.Logging.Console = true
	c.Player.Fullscreen = true
	return c.withDefaults()
}

func (c *Config) withDefaults() *Config {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Scheduler.Backend == "" {
		c.Scheduler.Backend = "auto"
	}
	if c.Scheduler.ReconcileEvery == "" {
		c.Scheduler.ReconcileEvery = "5m"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if len(c.Player.Priority) == 0 {
		c.Player.Priority = []string{"mpv", "vlc", "ffplay"}
	}
	return c
}
