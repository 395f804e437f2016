package schedule

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"chime/internal/alarm"
	"chime/internal/config"
	"chime/internal/platform/execx"
	logx "chime/pkg/logx"
)

// cronMarker tags owned crontab lines: "# chime:<alarm-id>" at the end of the
// line. Everything else in the user's crontab is foreign and never touched.
const cronMarker = "# chime:"

// Crontab drives the user's crontab through the crontab(1) binary. The whole
// table is read, owned lines are rewritten, and the table is piped back; the
// binary takes care of locking against concurrent editors.
type Crontab struct {
	run execx.Runner
	bin string
	log logx.Logger
}

func NewCrontab(cfg config.SchedulerConfig, run execx.Runner, log logx.Logger) *Crontab {
	bin := cfg.CrontabCommand
	if bin == "" {
		bin = "crontab"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Crontab{run: run, bin: bin, log: log}
}

func (c *Crontab) Platform() string { return "crontab" }

func (c *Crontab) Caps() Capabilities {
	return Capabilities{
		// cron daemons commonly honor /etc/cron.allow; a fresh user may need
		// to be added before installs take.
		NeedsPriorAuthorization: true,
	}
}

func (c *Crontab) Trigger(alarmID string) TriggerID { return TriggerID(alarmID) }

func (c *Crontab) Command(alarmID string) Invocation { return fireInvocation(alarmID) }

func (c *Crontab) Install(ctx context.Context, a alarm.Alarm) (TriggerID, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAlarm, err)
	}

	spec := cronSpec(a, timeNow())
	if _, err := cron.ParseStandard(spec); err != nil {
		return "", fmt.Errorf("%w: cron spec %q: %v", ErrInvalidAlarm, spec, err)
	}

	lines, err := c.read(ctx)
	if err != nil {
		return "", err
	}

	id := c.Trigger(a.ID)
	kept := withoutMarked(lines, id)
	kept = append(kept, c.renderLine(spec, a.ID))

	if err := c.write(ctx, kept); err != nil {
		return "", err
	}
	c.log.Info("crontab trigger installed",
		logx.String("alarm", a.ID), logx.String("spec", spec))
	return id, nil
}

func (c *Crontab) Remove(ctx context.Context, id TriggerID) error {
	lines, err := c.read(ctx)
	if err != nil {
		return err
	}
	kept := withoutMarked(lines, id)
	if len(kept) == len(lines) {
		return nil
	}
	if err := c.write(ctx, kept); err != nil {
		return err
	}
	c.log.Info("crontab trigger removed", logx.String("trigger", string(id)))
	return nil
}

func (c *Crontab) List(ctx context.Context) ([]TriggerID, error) {
	lines, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	var ids []TriggerID
	for _, line := range lines {
		if id, ok := markedID(line); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// read returns the current crontab lines. A missing table ("no crontab for
// user") is an empty table, not an error.
func (c *Crontab) read(ctx context.Context) ([]string, error) {
	out, err := c.run.Run(ctx, c.bin, "-l")
	if err != nil {
		if strings.Contains(strings.ToLower(out), "no crontab") {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s -l: %v", ErrSchedulerUnavailable, c.bin, err)
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" && len(lines) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	// Drop trailing blanks so rewrites do not accrete empty lines.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func (c *Crontab) write(ctx context.Context, lines []string) error {
	table := strings.Join(lines, "\n")
	if table != "" {
		table += "\n"
	}
	if _, err := c.run.RunInput(ctx, table, c.bin, "-"); err != nil {
		return fmt.Errorf("%w: %s -: %v", ErrSchedulerUnavailable, c.bin, err)
	}
	return nil
}

// renderLine builds "SPEC ENV... 'BINARY' --execute-sequence ID # chime:ID".
// The session environment is baked in as inline assignments because cron
// starts jobs with an almost empty environment.
func (c *Crontab) renderLine(spec, alarmID string) string {
	inv := c.Command(alarmID)

	var b strings.Builder
	b.WriteString(spec)
	keys := make([]string, 0, len(inv.Env))
	for k := range inv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(shellQuote(inv.Env[k]))
	}
	b.WriteString(" ")
	b.WriteString(shellQuote(inv.Binary))
	for _, arg := range inv.Args {
		b.WriteString(" ")
		b.WriteString(shellQuote(arg))
	}
	b.WriteString(" ")
	b.WriteString(cronMarker)
	b.WriteString(alarmID)
	return b.String()
}

// cronSpec renders the five cron fields. Recurring alarms use the weekday
// field; one-time alarms pin the concrete next date since cron has no
// single-shot syntax (the record is deleted after it fires).
func cronSpec(a alarm.Alarm, now time.Time) string {
	if a.OneTime() {
		next := a.NextOccurrence(now)
		return fmt.Sprintf("%d %d %d %d *", a.At.Minute, a.At.Hour, next.Day(), int(next.Month()))
	}
	days := make([]string, 0, len(a.Days))
	for _, d := range a.Days {
		days = append(days, strconv.Itoa(int(d)))
	}
	dow := strings.Join(days, ",")
	if len(a.Days) == 7 {
		dow = "*"
	}
	return fmt.Sprintf("%d %d * * %s", a.At.Minute, a.At.Hour, dow)
}

func withoutMarked(lines []string, id TriggerID) []string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if got, ok := markedID(line); ok && got == id {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

func markedID(line string) (TriggerID, bool) {
	idx := strings.LastIndex(line, cronMarker)
	if idx < 0 {
		return "", false
	}
	id := strings.TrimSpace(line[idx+len(cronMarker):])
	if id == "" {
		return "", false
	}
	return TriggerID(id), true
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\"'\\$&|;<>()*?{}[]~#%") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
