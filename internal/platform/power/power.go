// Package power acquires and releases system sleep inhibition through an
// ordered strategy chain. Inhibition is handed out as a scoped Hold whose
// lifetime is bounded by the caller (a sequence run), never by a module-level
// flag: every strategy either releases on Hold.Release or dies with the
// process, so an inhibition can not outlive the run that took it.
package power

import (
	"context"
	"runtime"
	"sync"

	"chime/internal/platform/capability"
	logx "chime/pkg/logx"
)

// Strategy is one inhibition mechanism. Acquire returns a release func.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context, reason string) (release func() error, err error)
}

// Hold is a scoped inhibition lock. Release is idempotent and safe on the
// zero value (a degraded acquire returns a no-op Hold).
type Hold struct {
	Strategy string

	once    sync.Once
	release func() error
	log     logx.Logger
}

func (h *Hold) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.release == nil {
			return
		}
		if err := h.release(); err != nil && !h.log.IsZero() {
			h.log.Warn("sleep inhibition release failed",
				logx.String("strategy", h.Strategy), logx.Err(err))
		}
	})
}

// Chain walks strategies in priority order on every Inhibit call.
type Chain struct {
	log        logx.Logger
	strategies []Strategy
}

func NewChain(log logx.Logger) *Chain {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Chain{log: log, strategies: strategiesFor(runtime.GOOS)}
}

// NewChainWith builds a chain over explicit strategies (tests).
func NewChainWith(strategies []Strategy, log logx.Logger) *Chain {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Chain{log: log, strategies: strategies}
}

// Inhibit acquires sleep inhibition via the first working strategy. When the
// whole chain fails the returned Hold is a no-op and the Result is Degraded;
// the caller proceeds either way.
func (c *Chain) Inhibit(ctx context.Context, reason string) (*Hold, capability.Result) {
	var res capability.Result
	for _, s := range c.strategies {
		release, err := s.Acquire(ctx, reason)
		res.Attempts = append(res.Attempts, capability.Attempt{Strategy: s.Name(), Err: err})
		if err == nil {
			res.Strategy = s.Name()
			c.log.Debug("sleep inhibited", logx.String("strategy", s.Name()), logx.String("reason", reason))
			return &Hold{Strategy: s.Name(), release: release, log: c.log}, res
		}
	}

	res.Outcome = capability.Degraded
	c.log.Warn("all sleep inhibition strategies failed; system may sleep during the alarm",
		logx.String("attempts", res.AttemptsString()))
	return &Hold{log: c.log}, res
}

func strategiesFor(goos string) []Strategy {
	switch goos {
	case "darwin":
		return []Strategy{
			childProcess("caffeinate", "caffeinate", "-d", "-i", "-m", "-s"),
		}
	case "windows":
		return []Strategy{executionState()}
	default:
		return []Strategy{
			logind(),
			screenSaverBus(),
			gnomeSessionBus(),
			childProcess("systemd-inhibit",
				"systemd-inhibit", "--what=idle:sleep:handle-lid-switch",
				"--who=chime", "--why=alarm sequence running",
				"sleep", "infinity"),
		}
	}
}
