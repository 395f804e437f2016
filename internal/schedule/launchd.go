package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"chime/internal/alarm"
	"chime/internal/config"
	"chime/internal/platform/execx"
	logx "chime/pkg/logx"
)

const launchdLabelPrefix = "io.chime.alarm."

// launchd expresses recurrence as StartCalendarInterval dictionaries, one per
// weekday; a one-time alarm pins month and day of its next occurrence. The
// plist carries the captured session environment so the fired process can
// reach the Aqua session.
var plistTemplate = template.Must(template.New("plist").Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
{{- range .Argv}}
		<string>{{.}}</string>
{{- end}}
	</array>
{{- if .Env}}
	<key>EnvironmentVariables</key>
	<dict>
{{- range .Env}}
		<key>{{.Key}}</key>
		<string>{{.Value}}</string>
{{- end}}
	</dict>
{{- end}}
	<key>StartCalendarInterval</key>
{{- if eq (len .Intervals) 1}}
{{- range .Intervals}}
	<dict>
{{- if .HasDate}}
		<key>Month</key>
		<integer>{{.Month}}</integer>
		<key>Day</key>
		<integer>{{.Day}}</integer>
{{- end}}
{{- if .HasWeekday}}
		<key>Weekday</key>
		<integer>{{.Weekday}}</integer>
{{- end}}
		<key>Hour</key>
		<integer>{{.Hour}}</integer>
		<key>Minute</key>
		<integer>{{.Minute}}</integer>
	</dict>
{{- end}}
{{- else}}
	<array>
{{- range .Intervals}}
		<dict>
			<key>Weekday</key>
			<integer>{{.Weekday}}</integer>
			<key>Hour</key>
			<integer>{{.Hour}}</integer>
			<key>Minute</key>
			<integer>{{.Minute}}</integer>
		</dict>
{{- end}}
	</array>
{{- end}}
	<key>RunAtLoad</key>
	<false/>
</dict>
</plist>
`))

type plistData struct {
	Label     string
	Argv      []string
	Env       []plistEnv
	Intervals []plistInterval
}

type plistEnv struct{ Key, Value string }

type plistInterval struct {
	HasDate      bool
	Month, Day   int
	HasWeekday   bool
	Weekday      int
	Hour, Minute int
}

// Launchd manages per-alarm agent plists in the user's LaunchAgents dir.
// launchctl load/unload is best effort: the plist on disk is the source of
// truth and launchd picks it up at next login even if launchctl fails now.
type Launchd struct {
	dir string
	run execx.Runner
	log logx.Logger
}

func NewLaunchd(cfg config.SchedulerConfig, run execx.Runner, log logx.Logger) (*Launchd, error) {
	dir := cfg.AgentsDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve home: %v", ErrSchedulerUnavailable, err)
		}
		dir = filepath.Join(home, "Library", "LaunchAgents")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Launchd{dir: dir, run: run, log: log}, nil
}

func (l *Launchd) Platform() string { return "launchd" }

func (l *Launchd) Caps() Capabilities {
	return Capabilities{
		// Agents fire inside the logged-in user's session only.
		RequiresForegroundProcess: true,
	}
}

func (l *Launchd) Trigger(alarmID string) TriggerID {
	return TriggerID(launchdLabelPrefix + alarmID)
}

func (l *Launchd) Command(alarmID string) Invocation { return fireInvocation(alarmID) }

func (l *Launchd) Install(ctx context.Context, a alarm.Alarm) (TriggerID, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAlarm, err)
	}

	id := l.Trigger(a.ID)
	path := l.plistPath(id)
	data := l.plistFor(a, string(id))

	var buf strings.Builder
	if err := plistTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render plist: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSchedulerUnavailable, err)
	}

	// Replace-in-place: unload a previous copy first so launchd rereads it.
	l.launchctl(ctx, "unload", path)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return "", fmt.Errorf("write plist: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write plist: %w", err)
	}

	l.launchctl(ctx, "load", path)
	l.log.Info("launchd trigger installed",
		logx.String("alarm", a.ID), logx.String("plist", path))
	return id, nil
}

func (l *Launchd) Remove(ctx context.Context, id TriggerID) error {
	path := l.plistPath(id)
	l.launchctl(ctx, "unload", path)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("remove plist: %w", err)
	}
	l.log.Info("launchd trigger removed", logx.String("trigger", string(id)))
	return nil
}

func (l *Launchd) List(context.Context) ([]TriggerID, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSchedulerUnavailable, err)
	}
	var ids []TriggerID
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, launchdLabelPrefix) || !strings.HasSuffix(name, ".plist") {
			continue
		}
		ids = append(ids, TriggerID(strings.TrimSuffix(name, ".plist")))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (l *Launchd) plistPath(id TriggerID) string {
	return filepath.Join(l.dir, string(id)+".plist")
}

func (l *Launchd) plistFor(a alarm.Alarm, label string) plistData {
	inv := l.Command(a.ID)

	data := plistData{
		Label: label,
		Argv:  append([]string{inv.Binary}, inv.Args...),
	}
	envKeys := make([]string, 0, len(inv.Env))
	for k := range inv.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		data.Env = append(data.Env, plistEnv{Key: k, Value: inv.Env[k]})
	}

	if a.OneTime() {
		next := a.NextOccurrence(timeNow())
		data.Intervals = []plistInterval{{
			HasDate: true,
			Month:   int(next.Month()),
			Day:     next.Day(),
			Hour:    a.At.Hour,
			Minute:  a.At.Minute,
		}}
		return data
	}
	for _, d := range a.Days {
		data.Intervals = append(data.Intervals, plistInterval{
			HasWeekday: true,
			Weekday:    int(d),
			Hour:       a.At.Hour,
			Minute:     a.At.Minute,
		})
	}
	return data
}

func (l *Launchd) launchctl(ctx context.Context, verb, path string) {
	if _, err := l.run.Run(ctx, "launchctl", verb, path); err != nil {
		l.log.Debug("launchctl call failed",
			logx.String("verb", verb), logx.String("plist", path), logx.Err(err))
	}
}
