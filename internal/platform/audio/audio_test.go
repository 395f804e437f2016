package audio

import (
	"context"
	"errors"
	"testing"

	"chime/internal/platform/capability"
	logx "chime/pkg/logx"
)

func fixed(name string, err error, calls *[]int) Strategy {
	return Strategy{Name: name, Set: func(_ context.Context, level int) error {
		if err == nil {
			*calls = append(*calls, level)
		}
		return err
	}}
}

func TestSetVolumeFallsThrough(t *testing.T) {
	t.Parallel()

	var calls []int
	chain := NewChainWith([]Strategy{
		fixed("a", errors.New("unavailable"), &calls),
		fixed("b", nil, &calls),
	}, Options{}, logx.Nop())

	res := chain.SetVolume(context.Background(), 80)
	if res.Outcome != capability.OK || res.Strategy != "b" {
		t.Fatalf("got outcome=%v strategy=%q, want OK via b", res.Outcome, res.Strategy)
	}
	if len(calls) != 1 || calls[0] != 80 {
		t.Fatalf("calls = %v, want [80]", calls)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int
		want int
	}{
		{"above range", 250, 100},
		{"below range", -5, 0},
		{"in range", 55, 55},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls []int
			chain := NewChainWith([]Strategy{fixed("only", nil, &calls)}, Options{}, logx.Nop())
			chain.SetVolume(context.Background(), tt.in)
			if len(calls) != 1 || calls[0] != tt.want {
				t.Fatalf("calls = %v, want [%d]", calls, tt.want)
			}
		})
	}
}

func TestSetVolumeMethodPin(t *testing.T) {
	t.Parallel()

	var calls []int
	chain := NewChainWith([]Strategy{
		fixed("a", nil, &calls),
		fixed("b", nil, &calls),
	}, Options{Method: "b"}, logx.Nop())

	res := chain.SetVolume(context.Background(), 40)
	if res.Strategy != "b" {
		t.Fatalf("strategy = %q, want pinned b", res.Strategy)
	}
	if len(calls) != 1 {
		t.Fatalf("calls = %v, want exactly one", calls)
	}
}

func TestSetVolumeExhaustionIsDegraded(t *testing.T) {
	t.Parallel()

	var calls []int
	chain := NewChainWith([]Strategy{
		fixed("a", errors.New("a down"), &calls),
		fixed("b", errors.New("b down"), &calls),
	}, Options{}, logx.Nop())

	res := chain.SetVolume(context.Background(), 40)
	if res.Outcome != capability.Degraded {
		t.Fatalf("outcome = %v, want Degraded", res.Outcome)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(res.Attempts))
	}
}
