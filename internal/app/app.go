// Package app wires configuration, storage, the scheduler adapter and the
// executor into the two entry points: a one-shot headless fire and the serve
// daemon.
package app

import (
	"fmt"

	"chime/internal/config"
	"chime/internal/executor"
	"chime/internal/platform/audio"
	"chime/internal/platform/display"
	"chime/internal/platform/execx"
	"chime/internal/platform/power"
	"chime/internal/registry"
	"chime/internal/schedule"
	"chime/internal/sequence"
	"chime/internal/store"
	logx "chime/pkg/logx"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config     *config.Manager
	LogService *logx.Service
	Log        logx.Logger
	Runner     execx.Runner
	Alarms     store.Store
	Sequences  *sequence.Store
	Adapter    schedule.Adapter
	Registry   *registry.Registry
}

// New loads config and builds every component. An error here is an init
// failure: the caller exits 2 without touching alarms or triggers.
func New(configPath string) (*App, error) {
	mgr := config.NewManager(configPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg))
	mgr.SetLogger(log.With(logx.String("component", "config")))

	storePath, err := cfg.StorePath()
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	busy, err := cfg.SQLiteBusyTimeout()
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	alarms, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        storePath,
		BusyTimeout: busy,
	}, log.With(logx.String("component", "store")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open alarm store: %w", err)
	}

	seqDir, err := cfg.SequencesDir()
	if err != nil {
		alarms.Close()
		logSvc.Close()
		return nil, fmt.Errorf("resolve sequences dir: %w", err)
	}
	seqs := sequence.NewStore(seqDir)

	runner := execx.NewHost()
	adapter, err := schedule.ForHost(cfg.Scheduler, runner,
		log.With(logx.String("component", "schedule")))
	if err != nil {
		alarms.Close()
		logSvc.Close()
		return nil, err
	}

	reg := registry.New(alarms, seqs, adapter,
		log.With(logx.String("component", "registry")))

	return &App{
		Config:     mgr,
		LogService: logSvc,
		Log:        log,
		Runner:     runner,
		Alarms:     alarms,
		Sequences:  seqs,
		Adapter:    adapter,
		Registry:   reg,
	}, nil
}

func (a *App) Close() {
	if a.Alarms != nil {
		if err := a.Alarms.Close(); err != nil {
			a.Log.Warn("closing alarm store", logx.Err(err))
		}
	}
	if a.LogService != nil {
		_ = a.LogService.Close()
	}
}

// NewExecutor builds a sequence executor against the current config and the
// session environment captured by the caller.
func (a *App) NewExecutor(sessionEnv map[string]string) *executor.Executor {
	cfg := a.Config.Get()
	log := a.Log.With(logx.String("component", "executor"))

	return executor.New(executor.Deps{
		Run: a.Runner,
		Display: display.NewChain(a.Runner, display.Options{
			Method: cfg.Brightness.Method,
			Device: cfg.Brightness.Device,
		}, log),
		Audio: audio.NewChain(a.Runner, audio.Options{
			Method: cfg.Volume.Method,
		}, log),
		Power:      power.NewChain(log),
		MediaDir:   cfg.MediaDir(),
		Player:     cfg.Player,
		SessionEnv: sessionEnv,
		Log:        log,
	})
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Throttle: logx.ThrottleConfig{
			Enabled:    cfg.Logging.ThrottleWarnPerSec > 0,
			RatePerSec: cfg.Logging.ThrottleWarnPerSec,
		},
	}
}
