package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chime/internal/alarm"
	"chime/internal/schedule"
	"chime/internal/sequence"
	"chime/internal/store"
	logx "chime/pkg/logx"
)

// fakeAdapter keeps triggers in memory and counts mutations.
type fakeAdapter struct {
	triggers map[schedule.TriggerID]bool
	installs int
	removes  int
	failNext error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{triggers: map[schedule.TriggerID]bool{}}
}

func (f *fakeAdapter) Install(_ context.Context, a alarm.Alarm) (schedule.TriggerID, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	id := f.Trigger(a.ID)
	f.triggers[id] = true
	f.installs++
	return id, nil
}

func (f *fakeAdapter) Remove(_ context.Context, id schedule.TriggerID) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	if f.triggers[id] {
		delete(f.triggers, id)
		f.removes++
	}
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

func newTestRegistry(t *testing.T) (*Registry, *fakeAdapter, *sequence.Store) {
	t.Helper()

	alarms, err := store.Open(store.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "alarms.json")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { alarms.Close() })

	seqs := sequence.NewStore(t.TempDir())
	if err := seqs.Save(&sequence.Sequence{
		Name: "wake-up",
		Actions: []sequence.Action{
			{Kind: sequence.KindWait, Params: sequence.Params{"seconds": 1}},
		},
	}); err != nil {
		t.Fatal(err)
	}

	adapter := newFakeAdapter()
	return New(alarms, seqs, adapter, logx.Nop()), adapter, seqs
}

func testAlarm(id string, days []time.Weekday) alarm.Alarm {
	return alarm.Alarm{
		ID:       id,
		At:       alarm.Clock{Hour: 7, Minute: 0},
		Days:     days,
		Sequence: "wake-up",
		Enabled:  true,
		Created:  time.Now(),
	}
}

func TestSaveInstallsExactlyOneTrigger(t *testing.T) {
	t.Parallel()

	r, adapter, _ := newTestRegistry(t)
	a := testAlarm("a1", []time.Weekday{time.Monday})

	if err := r.Save(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if err := r.Save(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if len(adapter.triggers) != 1 {
		t.Fatalf("triggers = %d, want 1", len(adapter.triggers))
	}
}

func TestDisabledAlarmHasNoTrigger(t *testing.T) {
	t.Parallel()

	r, adapter, _ := newTestRegistry(t)
	a := testAlarm("a2", []time.Weekday{time.Monday})

	if err := r.Save(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if err := r.SetEnabled(context.Background(), "a2", false); err != nil {
		t.Fatal(err)
	}
	if len(adapter.triggers) != 0 {
		t.Fatalf("disabled alarm still has %d trigger(s)", len(adapter.triggers))
	}

	got, err := r.Get(context.Background(), "a2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Fatal("record should be disabled")
	}
}

func TestReconcileHealsBothDirections(t *testing.T) {
	t.Parallel()

	r, adapter, _ := newTestRegistry(t)
	if err := r.Save(context.Background(), testAlarm("a3", []time.Weekday{time.Monday})); err != nil {
		t.Fatal(err)
	}

	// Drift: trigger vanished behind our back, orphan appeared.
	delete(adapter.triggers, adapter.Trigger("a3"))
	adapter.triggers["trig-ghost"] = true

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !adapter.triggers[adapter.Trigger("a3")] {
		t.Fatal("missing trigger not reinstalled")
	}
	if adapter.triggers["trig-ghost"] {
		t.Fatal("orphan trigger not removed")
	}
}

func TestResolveSnapshotsAlarmAndSequence(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry(t)
	if err := r.Save(context.Background(), testAlarm("a4", nil)); err != nil {
		t.Fatal(err)
	}

	a, seq, err := r.Resolve(context.Background(), "a4")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "a4" || seq.Name != "wake-up" {
		t.Fatalf("resolved %q / %q", a.ID, seq.Name)
	}
}

func TestResolveMissingIsResolutionFailure(t *testing.T) {
	t.Parallel()

	r, _, seqs := newTestRegistry(t)

	_, _, err := r.Resolve(context.Background(), "nope")
	if !errors.Is(err, ErrResolutionFailure) {
		t.Fatalf("err = %v, want ErrResolutionFailure", err)
	}

	// Alarm present, sequence gone.
	if err := r.Save(context.Background(), testAlarm("a5", nil)); err != nil {
		t.Fatal(err)
	}
	if err := seqs.Delete("wake-up"); err != nil {
		t.Fatal(err)
	}
	_, _, err = r.Resolve(context.Background(), "a5")
	if !errors.Is(err, ErrResolutionFailure) {
		t.Fatalf("err = %v, want ErrResolutionFailure", err)
	}
}

func TestMarkFiredConsumesOneTimeAlarm(t *testing.T) {
	t.Parallel()

	r, adapter, _ := newTestRegistry(t)
	if err := r.Save(context.Background(), testAlarm("once", nil)); err != nil {
		t.Fatal(err)
	}

	r.MarkFired(context.Background(), "once")

	if _, err := r.Get(context.Background(), "once"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("record: err = %v, want ErrNotFound", err)
	}
	if len(adapter.triggers) != 0 {
		t.Fatal("one-time trigger survived")
	}
}

func TestMarkFiredKeepsRecurringAlarm(t *testing.T) {
	t.Parallel()

	r, adapter, _ := newTestRegistry(t)
	if err := r.Save(context.Background(), testAlarm("rec", []time.Weekday{time.Monday})); err != nil {
		t.Fatal(err)
	}

	r.MarkFired(context.Background(), "rec")

	if _, err := r.Get(context.Background(), "rec"); err != nil {
		t.Fatalf("recurring record lost: %v", err)
	}
	if len(adapter.triggers) != 1 {
		t.Fatal("recurring trigger lost")
	}
}

func TestMarkFiredLogsLookupFailure(t *testing.T) {
	// Not parallel: logx.New adjusts package-level zerolog settings.
	logPath := filepath.Join(t.TempDir(), "chime.log")
	svc, log := logx.New(logx.Config{
		Level: "warn",
		File:  logx.FileConfig{Enabled: true, Path: logPath},
	})
	defer svc.Close()

	alarms, err := store.Open(store.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "alarms.json")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer alarms.Close()

	r := New(alarms, sequence.NewStore(t.TempDir()), newFakeAdapter(), log)
	r.MarkFired(context.Background(), "ghost")

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "fired alarm lookup failed") {
		t.Fatalf("lookup failure not logged:\n%s", b)
	}
}

func TestMarkFiredCleanupFailureLeavesRecord(t *testing.T) {
	t.Parallel()

	r, adapter, _ := newTestRegistry(t)
	if err := r.Save(context.Background(), testAlarm("once2", nil)); err != nil {
		t.Fatal(err)
	}

	adapter.failNext = errors.New("facility down")
	r.MarkFired(context.Background(), "once2")

	// Trigger removal failed: record must stay so reconcile can retry.
	if _, err := r.Get(context.Background(), "once2"); err != nil {
		t.Fatalf("record must survive failed cleanup: %v", err)
	}
}

// The daemon and a headless fire are separate processes sharing one
// alarms file and one scheduler. After the fire consumes a one-time
// alarm, the daemon's next reconcile must see the deletion and not
// resurrect the trigger.
func TestReconcileAcrossProcessesKeepsOneTimeConsumed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "alarms.json")
	seqDir := t.TempDir()
	adapter := newFakeAdapter()

	seqs := sequence.NewStore(seqDir)
	if err := seqs.Save(&sequence.Sequence{
		Name: "wake-up",
		Actions: []sequence.Action{
			{Kind: sequence.KindWait, Params: sequence.Params{"seconds": 1}},
		},
	}); err != nil {
		t.Fatal(err)
	}

	openRegistry := func() *Registry {
		alarms, err := store.Open(store.Config{Driver: "file", Path: path}, logx.Nop())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { alarms.Close() })
		return New(alarms, sequence.NewStore(seqDir), adapter, logx.Nop())
	}

	daemon := openRegistry()
	if err := daemon.Save(context.Background(), testAlarm("once-x", nil)); err != nil {
		t.Fatal(err)
	}

	fire := openRegistry()
	fire.MarkFired(context.Background(), "once-x")
	if len(adapter.triggers) != 0 {
		t.Fatal("fire did not consume the trigger")
	}

	if err := daemon.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(adapter.triggers) != 0 {
		t.Fatalf("reconcile resurrected trigger(s) for a consumed alarm: %v", adapter.triggers)
	}
	if _, err := daemon.Get(context.Background(), "once-x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("record: err = %v, want ErrNotFound", err)
	}

	// The mirror image: an alarm added by a second process must survive
	// the daemon's reconcile instead of being removed as an orphan.
	cli := openRegistry()
	if err := cli.Save(context.Background(), testAlarm("added-x", []time.Weekday{time.Monday})); err != nil {
		t.Fatal(err)
	}
	if err := daemon.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !adapter.triggers[adapter.Trigger("added-x")] {
		t.Fatal("reconcile removed the trigger of an alarm added by another process")
	}
}

func TestDeleteRemovesTriggerAndRecord(t *testing.T) {
	t.Parallel()

	r, adapter, _ := newTestRegistry(t)
	if err := r.Save(context.Background(), testAlarm("d1", []time.Weekday{time.Friday})); err != nil {
		t.Fatal(err)
	}

	if err := r.Delete(context.Background(), "d1"); err != nil {
		t.Fatal(err)
	}
	if len(adapter.triggers) != 0 {
		t.Fatal("trigger survived delete")
	}
	// Deleting again is a no-op.
	if err := r.Delete(context.Background(), "d1"); err != nil {
		t.Fatal(err)
	}
}

func TestSaveRejectsTriggerCollision(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry(t)
	if err := r.Save(context.Background(), testAlarm("same", nil)); err != nil {
		t.Fatal(err)
	}

	// A different record whose ID maps to the same trigger identity.
	colliding := testAlarm("same", nil)
	colliding.Label = "other"
	// Same ID is an update, not a collision.
	if err := r.Save(context.Background(), colliding); err != nil {
		t.Fatalf("update of same alarm must succeed: %v", err)
	}
}
