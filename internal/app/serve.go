package app

import (
	"context"
	"time"

	"chime/internal/schedule"
	logx "chime/pkg/logx"
)

// Serve runs the daemon: reconcile at startup and on an interval, hot-reload
// logging on config changes, and host in-process triggers when no native
// facility backs the adapter. Returns when ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	log := a.Log.With(logx.String("component", "serve"))

	interval, err := a.Config.Get().ReconcileInterval()
	if err != nil {
		return err
	}

	caps := a.Adapter.Caps()
	log.Info("daemon starting",
		logx.String("scheduler", a.Adapter.Platform()),
		logx.Bool("wake_from_sleep", caps.SupportsWakeFromSleep),
		logx.Bool("needs_foreground", caps.RequiresForegroundProcess),
		logx.Duration("reconcile_every", interval))

	if err := a.Registry.Reconcile(ctx); err != nil {
		log.Error("startup reconcile failed", logx.Err(err))
	}

	if inproc, ok := a.Adapter.(*schedule.InProcess); ok {
		inproc.OnFire(func(alarmID string) {
			fireCtx, cancel := context.WithTimeout(context.Background(), time.Hour)
			defer cancel()
			a.Fire(fireCtx, alarmID)
		})
		inproc.Start()
		defer inproc.Stop()
	}

	updates := a.Config.Subscribe(1)
	defer a.Config.Unsubscribe(updates)
	go func() {
		if err := a.Config.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Error("config watcher stopped", logx.Err(err))
		}
	}()
	go func() {
		if err := a.watchSequences(ctx, log); err != nil && ctx.Err() == nil {
			log.Warn("sequence watcher unavailable", logx.Err(err))
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("daemon stopping")
			return nil

		case <-ticker.C:
			if err := a.Registry.Reconcile(ctx); err != nil {
				log.Error("periodic reconcile failed", logx.Err(err))
			}

		case cfg, ok := <-updates:
			if !ok {
				return nil
			}
			a.LogService.Apply(logConfig(cfg))
			if next, err := cfg.ReconcileInterval(); err == nil && next != interval {
				interval = next
				ticker.Reset(interval)
			}
			log.Info("configuration reloaded")
			if err := a.Registry.Reconcile(ctx); err != nil {
				log.Error("post-reload reconcile failed", logx.Err(err))
			}
		}
	}
}
