package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chime/internal/alarm"
	"chime/internal/config"
	"chime/internal/platform/execx"
	"chime/internal/registry"
	"chime/internal/schedule"
	"chime/internal/sequence"
	"chime/internal/store"
	logx "chime/pkg/logx"
)

// fakeAdapter keeps triggers in memory so fires never touch the host
// scheduler.
type fakeAdapter struct {
	triggers map[schedule.TriggerID]bool
}

func (f *fakeAdapter) Install(_ context.Context, a alarm.Alarm) (schedule.TriggerID, error) {
	id := f.Trigger(a.ID)
	f.triggers[id] = true
	return id, nil
}

func (f *fakeAdapter) Remove(_ context.Context, id schedule.TriggerID) error {
	delete(f.triggers, id)
	return nil
}

func (f *fakeAdapter) List(context.Context) ([]schedule.TriggerID, error) {
	var ids []schedule.TriggerID
	for id := range f.triggers {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeAdapter) Trigger(alarmID string) schedule.TriggerID {
	return schedule.TriggerID("trig-" + alarmID)
}

func (f *fakeAdapter) Command(alarmID string) schedule.Invocation {
	return schedule.Invocation{Binary: "chime", Args: []string{"--execute-sequence", alarmID}}
}

func (f *fakeAdapter) Caps() schedule.Capabilities { return schedule.Capabilities{} }

func (f *fakeAdapter) Platform() string { return "fake" }

func newTestApp(t *testing.T) (*App, *fakeAdapter) {
	t.Helper()
	dir := t.TempDir()

	mgr := config.NewManager(filepath.Join(dir, "chime.yaml"))
	if _, err := mgr.Load(); err != nil {
		t.Fatal(err)
	}

	alarms, err := store.Open(store.Config{Driver: "file", Path: filepath.Join(dir, "alarms.json")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { alarms.Close() })

	seqs := sequence.NewStore(filepath.Join(dir, "sequences"))
	if err := seqs.Save(&sequence.Sequence{
		Name: "morning",
		Actions: []sequence.Action{
			{Kind: sequence.KindWait, Params: sequence.Params{"seconds": 0.01}},
		},
	}); err != nil {
		t.Fatal(err)
	}

	adapter := &fakeAdapter{triggers: map[schedule.TriggerID]bool{}}
	reg := registry.New(alarms, seqs, adapter, logx.Nop())

	return &App{
		Config:    mgr,
		Log:       logx.Nop(),
		Runner:    execx.NewHost(),
		Alarms:    alarms,
		Sequences: seqs,
		Adapter:   adapter,
		Registry:  reg,
	}, adapter
}

func testAlarm(id, seq string) alarm.Alarm {
	return alarm.Alarm{
		ID:       id,
		At:       alarm.Clock{Hour: 7, Minute: 0},
		Sequence: seq,
		Enabled:  true,
		Created:  time.Now(),
	}
}

func TestFireUnresolvableRefExitsOne(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	if code := a.Fire(context.Background(), "no-such-ref"); code != ExitResolution {
		t.Fatalf("exit = %d, want %d", code, ExitResolution)
	}
}

func TestFireActionFailureStillExitsZero(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	if err := a.Sequences.Save(&sequence.Sequence{
		Name: "broken",
		Actions: []sequence.Action{
			{Kind: sequence.KindPlayMedia, Params: sequence.Params{"file": "/nonexistent/tone.mp3"}},
		},
	}); err != nil {
		t.Fatal(err)
	}

	// The trigger did its job; action failures go to the log, not the
	// exit code.
	if code := a.Fire(context.Background(), "broken"); code != ExitOK {
		t.Fatalf("exit = %d, want %d", code, ExitOK)
	}
}

func TestFireByAlarmIDConsumesOneTime(t *testing.T) {
	t.Parallel()

	a, adapter := newTestApp(t)
	ctx := context.Background()
	if err := a.Registry.Save(ctx, testAlarm("once-1", "morning")); err != nil {
		t.Fatal(err)
	}

	if code := a.Fire(ctx, "once-1"); code != ExitOK {
		t.Fatalf("exit = %d, want %d", code, ExitOK)
	}
	if _, err := a.Registry.Get(ctx, "once-1"); err == nil {
		t.Fatal("one-time record survived the fire")
	}
	if len(adapter.triggers) != 0 {
		t.Fatal("one-time trigger survived the fire")
	}
}

func TestFireBySequenceNameLeavesAlarmsAlone(t *testing.T) {
	t.Parallel()

	a, adapter := newTestApp(t)
	ctx := context.Background()
	if err := a.Registry.Save(ctx, testAlarm("once-2", "morning")); err != nil {
		t.Fatal(err)
	}

	// Smoke-testing the sequence by name must not consume any alarm that
	// happens to reference it.
	if code := a.Fire(ctx, "morning"); code != ExitOK {
		t.Fatalf("exit = %d, want %d", code, ExitOK)
	}
	if _, err := a.Registry.Get(ctx, "once-2"); err != nil {
		t.Fatalf("alarm record lost: %v", err)
	}
	if len(adapter.triggers) != 1 {
		t.Fatalf("triggers = %d, want 1", len(adapter.triggers))
	}
}
