// Package executor runs alarm sequences: strictly ordered, continue on
// failure, worst outcome wins. A wake-up routine where a failed brightness
// tweak silences the music is worse than useless, so nothing an action does
// can stop the actions after it, panics included.
package executor

import (
	"context"
	"fmt"
	"time"

	"chime/internal/sequence"
	logx "chime/pkg/logx"
)

// Outcome orders by severity so the run outcome is a plain max.
type Outcome int

const (
	Succeeded Outcome = iota
	Degraded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Degraded:
		return "degraded"
	default:
		return "failed"
	}
}

// ActionResult is the record of one executed action.
type ActionResult struct {
	Index   int
	Kind    string
	Outcome Outcome
	Detail  string
	Err     error
}

// RunResult is the record of one sequence run.
type RunResult struct {
	Sequence string
	Outcome  Outcome
	Actions  []ActionResult
	Duration time.Duration
}

// Executor executes sequences against the platform capability providers.
type Executor struct {
	handlers map[string]handler
	cleanups []func()
	log      logx.Logger
}

type handler func(ctx context.Context, p sequence.Params) (string, Outcome, error)

// New builds an executor over the given capability providers (see deps.go).
func New(deps Deps) *Executor {
	e := &Executor{log: deps.Log}
	if e.log.IsZero() {
		e.log = logx.Nop()
	}
	e.handlers = deps.handlers(e)
	return e
}

// Run executes every action in order. It never returns an error: failures
// are data, encoded per action and folded into the outcome.
func (e *Executor) Run(ctx context.Context, seq *sequence.Sequence) RunResult {
	start := time.Now()
	res := RunResult{Sequence: seq.Name}

	e.log.Info("sequence started",
		logx.String("sequence", seq.Name), logx.Int("actions", len(seq.Actions)))

	for i, action := range seq.Actions {
		ar := e.runOne(ctx, i, action)
		res.Actions = append(res.Actions, ar)
		if ar.Outcome > res.Outcome {
			res.Outcome = ar.Outcome
		}

		ev := e.log.Debug
		if ar.Outcome == Failed {
			ev = e.log.Error
		} else if ar.Outcome == Degraded {
			ev = e.log.Warn
		}
		ev("action finished",
			logx.Int("index", i),
			logx.String("kind", action.Kind),
			logx.String("outcome", ar.Outcome.String()),
			logx.String("detail", ar.Detail),
			logx.Err(ar.Err))
	}

	e.release()
	res.Duration = time.Since(start)
	e.log.Info("sequence finished",
		logx.String("sequence", seq.Name),
		logx.String("outcome", res.Outcome.String()),
		logx.Duration("duration", res.Duration))
	return res
}

// runOne isolates a single action: a panicking handler fails its own action
// and nothing else.
func (e *Executor) runOne(ctx context.Context, idx int, a sequence.Action) (ar ActionResult) {
	ar = ActionResult{Index: idx, Kind: a.Kind}

	defer func() {
		if r := recover(); r != nil {
			ar.Outcome = Failed
			ar.Err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	h, ok := e.handlers[a.Kind]
	if !ok {
		ar.Outcome = Failed
		ar.Err = fmt.Errorf("unknown action kind %q", a.Kind)
		return ar
	}

	detail, outcome, err := h(ctx, a.Params)
	ar.Detail = detail
	ar.Outcome = outcome
	ar.Err = err
	return ar
}

// holdCleanup registers a release to run when the sequence finishes. Sleep
// inhibitions taken mid-sequence are scoped to the run, not the process.
func (e *Executor) holdCleanup(fn func()) { e.cleanups = append(e.cleanups, fn) }

func (e *Executor) release() {
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		e.cleanups[i]()
	}
	e.cleanups = nil
}
