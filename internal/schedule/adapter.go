// Package schedule installs alarms into the host's native trigger facility
// (crontab, launchd, Windows Task Scheduler) or an in-process cron runner.
// Adapters own only the triggers they created, identified by a marker derived
// purely from the alarm ID, and every operation is idempotent so reconciliation
// can re-run them blindly.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"chime/internal/alarm"
	"chime/internal/config"
	"chime/internal/platform/execx"
	"chime/internal/platform/session"
	logx "chime/pkg/logx"
)

// timeNow is swapped in tests that pin one-time trigger dates.
var timeNow = time.Now

var (
	// ErrSchedulerUnavailable means the host facility cannot be reached at
	// all (binary missing, service down). Individual install failures wrap
	// their own causes.
	ErrSchedulerUnavailable = errors.New("scheduler unavailable")

	// ErrInvalidAlarm means the alarm cannot be expressed as a trigger, or
	// its trigger identity collides with another enabled alarm's.
	ErrInvalidAlarm = errors.New("invalid alarm")
)

// TriggerID is the adapter-scoped identity of an installed trigger. It is a
// pure function of the alarm ID; labels, times and sequence names never
// feed into it, so edits and renames cannot orphan a trigger.
type TriggerID string

// Capabilities documents what the backing facility can and cannot do, so
// callers degrade expectations instead of discovering limits at 6 AM.
type Capabilities struct {
	// RequiresForegroundProcess: triggers only fire while a chime process
	// (or user session hosting it) stays alive.
	RequiresForegroundProcess bool

	// SupportsWakeFromSleep: the facility can wake the machine to fire.
	SupportsWakeFromSleep bool

	// NeedsPriorAuthorization: the user must grant access out of band
	// (cron.allow, macOS automation prompts) before installs succeed.
	NeedsPriorAuthorization bool
}

// Invocation is the command line a trigger executes on fire.
type Invocation struct {
	Binary string
	Args   []string
	// Env is the session environment captured at install time. Host
	// facilities strip the interactive environment; these entries bring
	// back what media playback and dbus calls need.
	Env map[string]string
}

// Adapter maps alarms to host triggers.
type Adapter interface {
	// Install creates or replaces the trigger for the alarm. Calling it
	// twice with the same alarm leaves exactly one trigger.
	Install(ctx context.Context, a alarm.Alarm) (TriggerID, error)

	// Remove deletes the trigger. Removing an absent trigger succeeds.
	Remove(ctx context.Context, id TriggerID) error

	// List returns the triggers this adapter owns, never foreign entries.
	List(ctx context.Context) ([]TriggerID, error)

	// Trigger derives the TriggerID for an alarm ID without installing.
	Trigger(alarmID string) TriggerID

	// Command is the invocation a trigger for this alarm would execute.
	Command(alarmID string) Invocation

	Caps() Capabilities
	Platform() string
}

// ForHost picks the adapter for this machine. cfg.Backend overrides the
// GOOS default ("auto").
func ForHost(cfg config.SchedulerConfig, run execx.Runner, log logx.Logger) (Adapter, error) {
	backend := cfg.Backend
	if backend == "" || backend == "auto" {
		switch runtime.GOOS {
		case "darwin":
			backend = "launchd"
		case "windows":
			backend = "taskscheduler"
		default:
			backend = "crontab"
		}
	}

	switch backend {
	case "crontab":
		return NewCrontab(cfg, run, log), nil
	case "launchd":
		return NewLaunchd(cfg, run, log)
	case "taskscheduler":
		return NewTaskScheduler(run, log), nil
	case "inprocess":
		return NewInProcess(log), nil
	default:
		return nil, fmt.Errorf("unknown scheduler backend %q", backend)
	}
}

// fireInvocation is the shared command line: every adapter triggers the
// running binary back into headless-fire mode.
func fireInvocation(alarmID string) Invocation {
	bin, err := os.Executable()
	if err != nil {
		bin = "chime"
	}
	return Invocation{
		Binary: bin,
		Args:   []string{"--execute-sequence", alarmID},
		Env:    session.Environ(),
	}
}
