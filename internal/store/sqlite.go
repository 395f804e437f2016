package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chime/internal/alarm"
	logx "chime/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) List(ctx context.Context) ([]alarm.Alarm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, hour, minute, days, sequence, enabled, created FROM alarms ORDER BY created`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alarm.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, id string) (alarm.Alarm, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, hour, minute, days, sequence, enabled, created FROM alarms WHERE id = ?`, id)
	a, err := scanAlarm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alarm.Alarm{}, ErrNotFound
	}
	return a, err
}

func (s *sqliteStore) Put(ctx context.Context, a alarm.Alarm) error {
	if err := a.Validate(); err != nil {
		return err
	}
	days, err := json.Marshal(a.Days)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alarms(id, label, hour, minute, days, sequence, enabled, created)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   label=excluded.label, hour=excluded.hour, minute=excluded.minute,
		   days=excluded.days, sequence=excluded.sequence, enabled=excluded.enabled`,
		a.ID, a.Label, a.At.Hour, a.At.Minute, string(days), a.Sequence,
		boolInt(a.Enabled), a.Created.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(r rowScanner) (alarm.Alarm, error) {
	var (
		a       alarm.Alarm
		days    string
		enabled int
		created string
	)
	if err := r.Scan(&a.ID, &a.Label, &a.At.Hour, &a.At.Minute, &days, &a.Sequence, &enabled, &created); err != nil {
		return alarm.Alarm{}, err
	}
	if days != "" && days != "null" {
		if err := json.Unmarshal([]byte(days), &a.Days); err != nil {
			return alarm.Alarm{}, err
		}
	}
	a.Enabled = enabled != 0
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		a.Created = t
	}
	return a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
