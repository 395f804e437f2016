package power

import (
	"context"
	"errors"
	"testing"

	"chime/internal/platform/capability"
	logx "chime/pkg/logx"
)

type fakeStrategy struct {
	name     string
	err      error
	acquired int
	released int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Acquire(context.Context, string) (func() error, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() error {
		f.released++
		return nil
	}, nil
}

func TestChainFallsThroughToFirstWorkingStrategy(t *testing.T) {
	t.Parallel()

	broken := &fakeStrategy{name: "broken", err: errors.New("no bus")}
	working := &fakeStrategy{name: "working"}
	chain := NewChainWith([]Strategy{broken, working}, logx.Nop())

	hold, res := chain.Inhibit(context.Background(), "test")
	if res.Outcome != capability.OK {
		t.Fatalf("outcome = %v, want OK", res.Outcome)
	}
	if res.Strategy != "working" {
		t.Fatalf("strategy = %q, want working", res.Strategy)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(res.Attempts))
	}
	if working.acquired != 1 {
		t.Fatalf("acquired = %d, want 1", working.acquired)
	}

	hold.Release()
	if working.released != 1 {
		t.Fatalf("released = %d, want 1", working.released)
	}
}

func TestHoldReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &fakeStrategy{name: "only"}
	chain := NewChainWith([]Strategy{s}, logx.Nop())

	hold, _ := chain.Inhibit(context.Background(), "test")
	hold.Release()
	hold.Release()
	hold.Release()

	if s.released != 1 {
		t.Fatalf("released = %d, want exactly 1", s.released)
	}
}

func TestChainExhaustionIsDegradedNotFatal(t *testing.T) {
	t.Parallel()

	chain := NewChainWith([]Strategy{
		&fakeStrategy{name: "a", err: errors.New("a down")},
		&fakeStrategy{name: "b", err: errors.New("b down")},
	}, logx.Nop())

	hold, res := chain.Inhibit(context.Background(), "test")
	if res.Outcome != capability.Degraded {
		t.Fatalf("outcome = %v, want Degraded", res.Outcome)
	}
	// The no-op hold must still be safe to release.
	hold.Release()
}

func TestReleaseOnZeroHoldIsSafe(t *testing.T) {
	t.Parallel()

	var h *Hold
	h.Release()
	(&Hold{}).Release()
}
