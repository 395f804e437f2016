package schedule

import (
	"context"
	"testing"
	"time"

	logx "chime/pkg/logx"
)

func TestInProcessInstallIsIdempotent(t *testing.T) {
	t.Parallel()

	p := NewInProcess(logx.Nop())
	a := testAlarm("in-1", []time.Weekday{time.Monday})

	for i := 0; i < 3; i++ {
		if _, err := p.Install(context.Background(), a); err != nil {
			t.Fatalf("install %d: %v", i, err)
		}
	}

	ids, err := p.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "in-1" {
		t.Fatalf("ids = %v, want [in-1]", ids)
	}
}

func TestInProcessRemoveAbsentSucceeds(t *testing.T) {
	t.Parallel()

	p := NewInProcess(logx.Nop())
	if err := p.Remove(context.Background(), "never-installed"); err != nil {
		t.Fatal(err)
	}
}

func TestInProcessCapsAreHonest(t *testing.T) {
	t.Parallel()

	caps := NewInProcess(logx.Nop()).Caps()
	if !caps.RequiresForegroundProcess {
		t.Fatal("in-process triggers die with the process; caps must say so")
	}
	if caps.SupportsWakeFromSleep {
		t.Fatal("a userspace timer cannot wake the machine")
	}
}
