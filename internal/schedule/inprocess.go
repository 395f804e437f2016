package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"chime/internal/alarm"
	logx "chime/pkg/logx"
)

// InProcess schedules alarms with an embedded cron runner instead of a host
// facility. It exists for hosts without crontab/launchd/schtasks and for the
// serve loop's tests; its capabilities say plainly that triggers die with the
// process.
type InProcess struct {
	log  logx.Logger
	cron *cron.Cron

	mu      sync.Mutex
	entries map[TriggerID]cron.EntryID
	fire    func(alarmID string)
}

func NewInProcess(log logx.Logger) *InProcess {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &InProcess{
		log:     log,
		cron:    cron.New(),
		entries: make(map[TriggerID]cron.EntryID),
	}
}

// OnFire registers the callback invoked when a trigger fires. Must be set
// before Start; installs without a callback still succeed so reconciliation
// can run during startup wiring.
func (p *InProcess) OnFire(fn func(alarmID string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fire = fn
}

func (p *InProcess) Start() { p.cron.Start() }

func (p *InProcess) Stop() { <-p.cron.Stop().Done() }

func (p *InProcess) Platform() string { return "inprocess" }

func (p *InProcess) Caps() Capabilities {
	return Capabilities{RequiresForegroundProcess: true}
}

func (p *InProcess) Trigger(alarmID string) TriggerID { return TriggerID(alarmID) }

func (p *InProcess) Command(alarmID string) Invocation { return fireInvocation(alarmID) }

func (p *InProcess) Install(_ context.Context, a alarm.Alarm) (TriggerID, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAlarm, err)
	}

	spec := cronSpec(a, timeNow())
	id := p.Trigger(a.ID)
	alarmID := a.ID

	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.entries[id]; ok {
		p.cron.Remove(old)
	}
	entry, err := p.cron.AddFunc(spec, func() {
		p.mu.Lock()
		fn := p.fire
		p.mu.Unlock()
		if fn != nil {
			fn(alarmID)
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: cron spec %q: %v", ErrInvalidAlarm, spec, err)
	}
	p.entries[id] = entry
	p.log.Info("in-process trigger installed",
		logx.String("alarm", a.ID), logx.String("spec", spec))
	return id, nil
}

func (p *InProcess) Remove(_ context.Context, id TriggerID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.entries[id]; ok {
		p.cron.Remove(entry)
		delete(p.entries, id)
	}
	return nil
}

func (p *InProcess) List(context.Context) ([]TriggerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]TriggerID, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
