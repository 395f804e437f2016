package app

import (
	"context"
	"errors"

	"chime/internal/platform/session"
	"chime/internal/registry"
	"chime/internal/sequence"
	logx "chime/pkg/logx"
)

// Exit codes for the headless fire. Action failures are reported in the run
// summary but exit zero: the trigger did its job, and a non-zero exit would
// only make cron mail noise out of a half-successful wake-up.
const (
	ExitOK         = 0
	ExitResolution = 1
	ExitInit       = 2
)

// Fire resolves and executes the sequence for an alarm ID. The argument may
// also name a sequence directly, which is how a sequence is smoke-tested from
// the shell without creating an alarm.
func (a *App) Fire(ctx context.Context, ref string) int {
	env := session.Inject()
	log := a.Log.With(logx.String("component", "fire"))

	var (
		seq     *sequence.Sequence
		alarmID string
	)
	al, s, err := a.Registry.Resolve(ctx, ref)
	switch {
	case err == nil:
		seq, alarmID = s, al.ID
		log.Info("alarm resolved",
			logx.String("alarm", al.ID),
			logx.String("label", al.Label),
			logx.String("sequence", seq.Name))
	case errors.Is(err, registry.ErrResolutionFailure):
		// Not an alarm ID; try it as a bare sequence name.
		seq, err = a.Sequences.Load(ref)
		if err != nil {
			log.Error("cannot resolve alarm or sequence",
				logx.String("ref", ref), logx.Err(err))
			return ExitResolution
		}
	default:
		log.Error("resolution failed", logx.String("ref", ref), logx.Err(err))
		return ExitResolution
	}

	res := a.NewExecutor(env).Run(ctx, seq)

	for _, ar := range res.Actions {
		if ar.Err != nil {
			log.Warn("action did not succeed",
				logx.Int("index", ar.Index),
				logx.String("kind", ar.Kind),
				logx.String("outcome", ar.Outcome.String()),
				logx.Err(ar.Err))
		}
	}
	log.Info("fire complete",
		logx.String("ref", ref),
		logx.String("outcome", res.Outcome.String()),
		logx.Duration("duration", res.Duration))

	if alarmID != "" {
		a.Registry.MarkFired(ctx, alarmID)
	}
	return ExitOK
}
