// Package audio sets output volume through an ordered strategy chain, same
// shape as the brightness chain: re-evaluated per call, degraded on
// exhaustion, never fatal.
package audio

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"chime/internal/platform/capability"
	"chime/internal/platform/execx"
	logx "chime/pkg/logx"
)

// Strategy is one volume mechanism.
type Strategy struct {
	Name string
	Set  func(ctx context.Context, level int) error
}

// Options tune the chain.
type Options struct {
	// Method pins a single strategy by name; empty or "auto" walks the chain.
	Method string
	// Mixer overrides the ALSA control name (default "Master").
	Mixer string
}

// Chain tries strategies in priority order until one succeeds.
type Chain struct {
	log        logx.Logger
	opt        Options
	strategies []Strategy
}

func NewChain(run execx.Runner, opt Options, log logx.Logger) *Chain {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.Mixer == "" {
		opt.Mixer = "Master"
	}
	return &Chain{log: log, opt: opt, strategies: strategiesFor(runtime.GOOS, run, opt)}
}

// NewChainWith builds a chain over explicit strategies (tests).
func NewChainWith(strategies []Strategy, opt Options, log logx.Logger) *Chain {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Chain{log: log, opt: opt, strategies: strategies}
}

// SetVolume sets the output level (0-100, clamped). A muted sink stays muted
// on some desktops even after a set, so the pulse strategies also unmute.
func (c *Chain) SetVolume(ctx context.Context, level int) capability.Result {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	var res capability.Result
	for _, s := range c.strategies {
		if !c.wantStrategy(s.Name) {
			continue
		}
		err := s.Set(ctx, level)
		res.Attempts = append(res.Attempts, capability.Attempt{Strategy: s.Name, Err: err})
		if err == nil {
			res.Strategy = s.Name
			c.log.Debug("volume set", logx.Int("level", level), logx.String("strategy", s.Name))
			return res
		}
	}

	res.Outcome = capability.Degraded
	c.log.Warn("all volume strategies failed",
		logx.Int("level", level),
		logx.String("attempts", res.AttemptsString()))
	return res
}

func (c *Chain) wantStrategy(name string) bool {
	m := strings.ToLower(strings.TrimSpace(c.opt.Method))
	return m == "" || m == "auto" || m == name
}

func strategiesFor(goos string, run execx.Runner, opt Options) []Strategy {
	switch goos {
	case "darwin":
		return []Strategy{osascriptVolume(run)}
	case "windows":
		return []Strategy{powershellVolume(run)}
	default:
		return []Strategy{
			amixerPulse(run, opt.Mixer),
			amixerALSA(run, opt.Mixer),
			pactl(run),
		}
	}
}

func amixerPulse(run execx.Runner, mixer string) Strategy {
	return Strategy{Name: "amixer-pulse", Set: func(ctx context.Context, level int) error {
		_, err := run.Run(ctx, "amixer", "-D", "pulse", "set", mixer, fmt.Sprintf("%d%%", level), "unmute")
		return err
	}}
}

func amixerALSA(run execx.Runner, mixer string) Strategy {
	return Strategy{Name: "amixer", Set: func(ctx context.Context, level int) error {
		_, err := run.Run(ctx, "amixer", "set", mixer, fmt.Sprintf("%d%%", level), "unmute")
		return err
	}}
}

func pactl(run execx.Runner) Strategy {
	return Strategy{Name: "pactl", Set: func(ctx context.Context, level int) error {
		if _, err := run.Run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", level)); err != nil {
			return err
		}
		_, err := run.Run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", "0")
		return err
	}}
}

func osascriptVolume(run execx.Runner) Strategy {
	return Strategy{Name: "osascript", Set: func(ctx context.Context, level int) error {
		_, err := run.Run(ctx, "osascript", "-e", fmt.Sprintf("set volume output volume %d", level))
		return err
	}}
}

// powershellVolume nudges the master volume via virtual key presses; crude
// but dependency-free on stock Windows.
func powershellVolume(run execx.Runner) Strategy {
	return Strategy{Name: "powershell", Set: func(ctx context.Context, level int) error {
		steps := (level + 1) / 2
		script := fmt.Sprintf(
			"$o=New-Object -ComObject WScript.Shell;1..50|%%{$o.SendKeys([char]174)};1..%d|%%{$o.SendKeys([char]175)}", steps)
		_, err := run.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
		return err
	}}
}
