package app

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	logx "chime/pkg/logx"
)

// watchSequences reconciles when sequence documents change on disk. An editor
// save storm is collapsed by the limiter; a reconcile per burst is enough
// since sequence content never affects trigger identity, only resolvability.
func (a *App) watchSequences(ctx context.Context, log logx.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(a.Sequences.Dir()); err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Limit(1), 1)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !limiter.Allow() {
				continue
			}
			log.Debug("sequence directory changed", logx.String("file", ev.Name))
			if err := a.Registry.Reconcile(ctx); err != nil {
				log.Error("sequence-change reconcile failed", logx.Err(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("sequence watcher error", logx.Err(err))
		}
	}
}
