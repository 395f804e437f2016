package schedule

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"chime/internal/alarm"
	"chime/internal/platform/execx"
	logx "chime/pkg/logx"
)

const taskFolder = `\Chime\`

// Task Scheduler is driven through schtasks.exe with rendered task XML: the
// XML form is the only schtasks input that can express WakeToRun and
// StartWhenAvailable together with weekly recurrence. The declared
// encoding must match the UTF-8 bytes we write; without a BOM schtasks
// trusts the declaration rather than sniffing.
var taskTemplate = template.Must(template.New("task").Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<Task version="1.2" xmlns="http://schemas.microsoft.com/windows/2004/02/mit/task">
  <RegistrationInfo>
    <Description>{{.Description}}</Description>
  </RegistrationInfo>
  <Triggers>
{{- if .OneTime}}
    <TimeTrigger>
      <StartBoundary>{{.StartBoundary}}</StartBoundary>
      <Enabled>true</Enabled>
    </TimeTrigger>
{{- else}}
    <CalendarTrigger>
      <StartBoundary>{{.StartBoundary}}</StartBoundary>
      <Enabled>true</Enabled>
      <ScheduleByWeek>
        <WeeksInterval>1</WeeksInterval>
        <DaysOfWeek>
{{- range .Days}}
          <{{.}} />
{{- end}}
        </DaysOfWeek>
      </ScheduleByWeek>
    </CalendarTrigger>
{{- end}}
  </Triggers>
  <Settings>
    <StartWhenAvailable>true</StartWhenAvailable>
    <WakeToRun>true</WakeToRun>
    <DisallowStartIfOnBatteries>false</DisallowStartIfOnBatteries>
    <StopIfGoingOnBatteries>false</StopIfGoingOnBatteries>
    <MultipleInstancesPolicy>IgnoreNew</MultipleInstancesPolicy>
  </Settings>
  <Actions>
    <Exec>
      <Command>{{.Binary}}</Command>
      <Arguments>{{.Arguments}}</Arguments>
    </Exec>
  </Actions>
</Task>
`))

type taskData struct {
	Description   string
	OneTime       bool
	StartBoundary string
	Days          []string
	Binary        string
	Arguments     string
}

// TaskScheduler manages per-alarm tasks under the \Chime folder.
type TaskScheduler struct {
	run execx.Runner
	log logx.Logger
}

func NewTaskScheduler(run execx.Runner, log logx.Logger) *TaskScheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TaskScheduler{run: run, log: log}
}

func (t *TaskScheduler) Platform() string { return "taskscheduler" }

func (t *TaskScheduler) Caps() Capabilities {
	return Capabilities{SupportsWakeFromSleep: true}
}

func (t *TaskScheduler) Trigger(alarmID string) TriggerID {
	return TriggerID(taskFolder + "chime-" + alarmID)
}

func (t *TaskScheduler) Command(alarmID string) Invocation { return fireInvocation(alarmID) }

func (t *TaskScheduler) Install(ctx context.Context, a alarm.Alarm) (TriggerID, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAlarm, err)
	}

	id := t.Trigger(a.ID)
	var buf strings.Builder
	if err := taskTemplate.Execute(&buf, t.taskFor(a)); err != nil {
		return "", fmt.Errorf("render task xml: %w", err)
	}

	xml, err := os.CreateTemp("", "chime-task-*.xml")
	if err != nil {
		return "", fmt.Errorf("task xml temp file: %w", err)
	}
	defer os.Remove(xml.Name())
	if _, err := xml.WriteString(buf.String()); err != nil {
		xml.Close()
		return "", fmt.Errorf("task xml temp file: %w", err)
	}
	xml.Close()

	// /F replaces an existing task, which is what makes install idempotent.
	out, err := t.run.Run(ctx, "schtasks", "/Create", "/TN", string(id), "/XML", xml.Name(), "/F")
	if err != nil {
		return "", fmt.Errorf("%w: schtasks /Create: %v (%s)", ErrSchedulerUnavailable, err, strings.TrimSpace(out))
	}
	t.log.Info("task scheduler trigger installed",
		logx.String("alarm", a.ID), logx.String("task", string(id)))
	return id, nil
}

func (t *TaskScheduler) Remove(ctx context.Context, id TriggerID) error {
	out, err := t.run.Run(ctx, "schtasks", "/Delete", "/TN", string(id), "/F")
	if err != nil {
		if strings.Contains(strings.ToLower(out), "cannot find") {
			return nil
		}
		return fmt.Errorf("%w: schtasks /Delete: %v (%s)", ErrSchedulerUnavailable, err, strings.TrimSpace(out))
	}
	t.log.Info("task scheduler trigger removed", logx.String("trigger", string(id)))
	return nil
}

func (t *TaskScheduler) List(ctx context.Context) ([]TriggerID, error) {
	out, err := t.run.Run(ctx, "schtasks", "/Query", "/FO", "CSV", "/NH")
	if err != nil {
		return nil, fmt.Errorf("%w: schtasks /Query: %v", ErrSchedulerUnavailable, err)
	}

	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse schtasks csv: %w", err)
	}

	var ids []TriggerID
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		name := strings.TrimSpace(rec[0])
		if strings.HasPrefix(name, taskFolder+"chime-") {
			ids = append(ids, TriggerID(name))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *TaskScheduler) taskFor(a alarm.Alarm) taskData {
	inv := t.Command(a.ID)

	label := a.Label
	if label == "" {
		label = "chime alarm"
	}

	data := taskData{
		Description:   label,
		OneTime:       a.OneTime(),
		StartBoundary: a.NextOccurrence(timeNow()).Format("2006-01-02T15:04:05"),
		Binary:        inv.Binary,
		Arguments:     strings.Join(inv.Args, " "),
	}
	for _, d := range a.Days {
		data.Days = append(data.Days, d.String())
	}
	return data
}
