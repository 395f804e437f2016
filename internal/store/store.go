package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"chime/internal/alarm"
	logx "chime/pkg/logx"
)

// ErrNotFound is returned by Get when no alarm has the requested ID.
var ErrNotFound = errors.New("alarm not found")

// Store is the durable alarm registry backend. Implementations must be safe
// for concurrent use; the registry serializes writes on top anyway.
type Store interface {
	List(ctx context.Context) ([]alarm.Alarm, error)
	Get(ctx context.Context, id string) (alarm.Alarm, error)
	Put(ctx context.Context, a alarm.Alarm) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Config configures the store.
//
// Driver values:
//   - "file": single JSON document, atomic tmp+rename writes (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
