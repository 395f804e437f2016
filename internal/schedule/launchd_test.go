package schedule

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chime/internal/config"
	logx "chime/pkg/logx"
)

// launchctlRecorder records launchctl invocations and nothing else; the
// adapter must treat launchctl failures as non-fatal.
type launchctlRecorder struct {
	calls []string
	fail  bool
}

func (r *launchctlRecorder) Run(_ context.Context, name string, args ...string) (string, error) {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	if r.fail {
		return "", os.ErrNotExist
	}
	return "", nil
}

func (r *launchctlRecorder) RunInput(_ context.Context, _ string, name string, args ...string) (string, error) {
	return r.Run(context.Background(), name, args...)
}

func (r *launchctlRecorder) Start(context.Context, []string, string, ...string) error { return nil }

func (r *launchctlRecorder) LookPath(name string) (string, error) { return name, nil }

func newTestLaunchd(t *testing.T, run *launchctlRecorder) *Launchd {
	t.Helper()
	l, err := NewLaunchd(config.SchedulerConfig{AgentsDir: t.TempDir()}, run, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLaunchdInstallWritesOwnedPlist(t *testing.T) {
	t.Parallel()

	rec := &launchctlRecorder{}
	l := newTestLaunchd(t, rec)
	a := testAlarm("aaa-111", []time.Weekday{time.Tuesday, time.Thursday})

	id, err := l.Install(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if id != "io.chime.alarm.aaa-111" {
		t.Fatalf("trigger id = %q", id)
	}

	raw, err := os.ReadFile(filepath.Join(l.dir, string(id)+".plist"))
	if err != nil {
		t.Fatal(err)
	}
	plist := string(raw)
	for _, want := range []string{
		"<string>io.chime.alarm.aaa-111</string>",
		"<string>--execute-sequence</string>",
		"<string>aaa-111</string>",
		"<integer>2</integer>", // Tuesday
		"<integer>4</integer>", // Thursday
		"<integer>7</integer>",
		"<integer>30</integer>",
	} {
		if !strings.Contains(plist, want) {
			t.Fatalf("plist missing %q:\n%s", want, plist)
		}
	}
}

func TestLaunchdInstallSurvivesLaunchctlFailure(t *testing.T) {
	t.Parallel()

	l := newTestLaunchd(t, &launchctlRecorder{fail: true})
	if _, err := l.Install(context.Background(), testAlarm("bbb", []time.Weekday{time.Monday})); err != nil {
		t.Fatalf("install must not depend on launchctl: %v", err)
	}
}

func TestLaunchdRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	l := newTestLaunchd(t, &launchctlRecorder{})
	a := testAlarm("ccc", []time.Weekday{time.Monday})

	id, err := l.Install(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Remove(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if err := l.Remove(context.Background(), id); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestLaunchdListSkipsForeignPlists(t *testing.T) {
	t.Parallel()

	l := newTestLaunchd(t, &launchctlRecorder{})
	if err := os.WriteFile(filepath.Join(l.dir, "com.apple.something.plist"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Install(context.Background(), testAlarm("ddd", []time.Weekday{time.Monday})); err != nil {
		t.Fatal(err)
	}

	ids, err := l.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "io.chime.alarm.ddd" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestLaunchdOneTimePinsDate(t *testing.T) {
	t.Parallel()

	l := newTestLaunchd(t, &launchctlRecorder{})
	a := testAlarm("eee", nil)

	if _, err := l.Install(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(l.dir, "io.chime.alarm.eee.plist"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "<key>Month</key>") || !strings.Contains(string(raw), "<key>Day</key>") {
		t.Fatalf("one-time plist lacks pinned date:\n%s", raw)
	}
}
