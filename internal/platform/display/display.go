// Package display controls screen brightness through an ordered strategy
// chain. The chain is re-evaluated on every call: the mechanism that worked
// last time can vanish between calls (package uninstalled, X11 session
// replaced by Wayland), so nothing is cached.
package display

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"chime/internal/platform/capability"
	"chime/internal/platform/execx"
	logx "chime/pkg/logx"
)

// Strategy is one brightness mechanism.
type Strategy struct {
	Name string
	Set  func(ctx context.Context, level int) error
}

// Options tune the chain.
type Options struct {
	// Method pins a single strategy by name; empty or "auto" walks the chain.
	Method string
	// Device selects a specific /sys/class/backlight entry.
	Device string
	// SysfsRoot overrides /sys/class/backlight (tests).
	SysfsRoot string
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
	if opt.SysfsRoot == "" {
		opt.SysfsRoot = "/sys/class/backlight"
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

// SetBrightness sets the level (0-100, clamped to 1 so a typo cannot black
// out the screen right when an alarm needs it visible). Exhausting the chain
// returns Degraded with every attempt recorded; it never returns an error.
func (c *Chain) SetBrightness(ctx context.Context, level int) capability.Result {
	if level < 1 {
		level = 1
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
			c.log.Debug("brightness set", logx.Int("level", level), logx.String("strategy", s.Name))
			return res
		}
	}

	res.Outcome = capability.Degraded
	c.log.Warn("all brightness strategies failed",
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
		return []Strategy{
			brightnessCLI(run),
			osascriptBrightness(run),
		}
	case "windows":
		return []Strategy{powershellWMI(run)}
	default:
		return []Strategy{
			brightnessctl(run),
			sysfs(opt),
			xbacklight(run),
			xrandrGamma(run),
			ddcutil(run),
		}
	}
}

func brightnessctl(run execx.Runner) Strategy {
	return Strategy{Name: "brightnessctl", Set: func(ctx context.Context, level int) error {
		_, err := run.Run(ctx, "brightnessctl", "s", fmt.Sprintf("%d%%", level))
		return err
	}}
}

func xbacklight(run execx.Runner) Strategy {
	return Strategy{Name: "xbacklight", Set: func(ctx context.Context, level int) error {
		_, err := run.Run(ctx, "xbacklight", "-set", fmt.Sprintf("%d", level))
		return err
	}}
}

// xrandrGamma is a software fallback: no permissions needed, X11 only.
func xrandrGamma(run execx.Runner) Strategy {
	return Strategy{Name: "xrandr", Set: func(ctx context.Context, level int) error {
		out, err := run.Run(ctx, "xrandr")
		if err != nil {
			return err
		}
		output := connectedOutput(out)
		if output == "" {
			return fmt.Errorf("no connected output in xrandr list")
		}
		val := float64(level) / 100.0
		if val < 0.1 {
			val = 0.1
		}
		_, err = run.Run(ctx, "xrandr", "--output", output, "--brightness", fmt.Sprintf("%.2f", val))
		return err
	}}
}

// ddcutil drives external monitors over DDC/CI (VCP feature 10 = brightness).
func ddcutil(run execx.Runner) Strategy {
	return Strategy{Name: "ddcutil", Set: func(ctx context.Context, level int) error {
		if _, err := run.LookPath("ddcutil"); err != nil {
			return err
		}
		_, err := run.Run(ctx, "ddcutil", "setvcp", "10", fmt.Sprintf("%d", level))
		return err
	}}
}

func brightnessCLI(run execx.Runner) Strategy {
	return Strategy{Name: "brightness", Set: func(ctx context.Context, level int) error {
		_, err := run.Run(ctx, "brightness", fmt.Sprintf("%.2f", float64(level)/100.0))
		return err
	}}
}

func osascriptBrightness(run execx.Runner) Strategy {
	return Strategy{Name: "osascript", Set: func(ctx context.Context, level int) error {
		script := fmt.Sprintf("tell application \"System Events\" to set brightness of display 1 to %.2f", float64(level)/100.0)
		_, err := run.Run(ctx, "osascript", "-e", script)
		return err
	}}
}

func powershellWMI(run execx.Runner) Strategy {
	return Strategy{Name: "powershell-wmi", Set: func(ctx context.Context, level int) error {
		script := fmt.Sprintf(
			"(Get-WmiObject -Namespace root/WMI -Class WmiMonitorBrightnessMethods).WmiSetBrightness(1,%d)", level)
		_, err := run.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
		return err
	}}
}

// connectedOutput picks the primary connected output, falling back to the
// first connected one.
func connectedOutput(xrandrList string) string {
	var first string
	for _, line := range strings.Split(xrandrList, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != "connected" {
			continue
		}
		if len(fields) > 2 && fields[2] == "primary" {
			return fields[0]
		}
		if first == "" {
			first = fields[0]
		}
	}
	return first
}
