package display

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chime/internal/platform/capability"
	logx "chime/pkg/logx"
)

func recording(name string, err error, calls *[]int) Strategy {
	return Strategy{Name: name, Set: func(_ context.Context, level int) error {
		if err == nil {
			*calls = append(*calls, level)
		}
		return err
	}}
}

func TestSetBrightnessFallsThrough(t *testing.T) {
	t.Parallel()

	var calls []int
	chain := NewChainWith([]Strategy{
		recording("first", errors.New("missing binary"), &calls),
		recording("second", nil, &calls),
	}, Options{}, logx.Nop())

	res := chain.SetBrightness(context.Background(), 70)
	if res.Outcome != capability.OK || res.Strategy != "second" {
		t.Fatalf("got outcome=%v strategy=%q, want OK via second", res.Outcome, res.Strategy)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(res.Attempts))
	}
}

func TestSetBrightnessNeverBlacksOut(t *testing.T) {
	t.Parallel()

	var calls []int
	chain := NewChainWith([]Strategy{recording("only", nil, &calls)}, Options{}, logx.Nop())

	chain.SetBrightness(context.Background(), 0)
	chain.SetBrightness(context.Background(), -10)
	chain.SetBrightness(context.Background(), 400)

	want := []int{1, 1, 100}
	for i, lvl := range want {
		if calls[i] != lvl {
			t.Fatalf("call %d = %d, want %d", i, calls[i], lvl)
		}
	}
}

func TestSetBrightnessExhaustionIsDegraded(t *testing.T) {
	t.Parallel()

	var calls []int
	chain := NewChainWith([]Strategy{
		recording("a", errors.New("a down"), &calls),
		recording("b", errors.New("b down"), &calls),
	}, Options{}, logx.Nop())

	res := chain.SetBrightness(context.Background(), 50)
	if res.Outcome != capability.Degraded {
		t.Fatalf("outcome = %v, want Degraded", res.Outcome)
	}
}

func TestSysfsStrategyScalesAgainstMax(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dev := filepath.Join(root, "intel_backlight")
	if err := os.MkdirAll(dev, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dev, "max_brightness"), []byte("400\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dev, "brightness"), []byte("400\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := sysfs(Options{SysfsRoot: root})
	if err := s.Set(context.Background(), 50); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dev, "brightness"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "200" {
		t.Fatalf("brightness file = %q, want 200", got)
	}
}
