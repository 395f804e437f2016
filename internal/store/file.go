package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"chime/internal/alarm"
	logx "chime/pkg/logx"
)

// fileStore keeps every alarm in one JSON document. Writes go through a
// tmp+rename so a crash mid-save never leaves a torn file; the previous
// document stays intact until the rename lands.
//
// Fires and the daemon run as separate processes over the same file, so
// the in-memory map is only a cache: every operation re-reads the
// document when its mtime or size no longer matches the last load.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	alarms map[string]alarm.Alarm
	mtime  time.Time
	size   int64
}

type fileDoc struct {
	Version int           `json:"version"`
	Alarms  []alarm.Alarm `json:"alarms"`
}

const fileDocVersion = 1

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, alarms: map[string]alarm.Alarm{}}
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// reloadLocked refreshes the cache from disk when another process has
// rewritten the document since the last load. Caller holds s.mu (or, at
// open time, has exclusive access).
func (s *fileStore) reloadLocked() error {
	fi, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.alarms = map[string]alarm.Alarm{}
		s.mtime, s.size = time.Time{}, 0
		return nil
	case err != nil:
		return err
	}
	if fi.ModTime().Equal(s.mtime) && fi.Size() == s.size {
		return nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var doc fileDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return errors.New("alarm store corrupt: " + err.Error())
	}
	alarms := make(map[string]alarm.Alarm, len(doc.Alarms))
	for _, a := range doc.Alarms {
		alarms[a.ID] = a
	}
	s.alarms = alarms
	s.mtime, s.size = fi.ModTime(), fi.Size()
	return nil
}

func (s *fileStore) List(ctx context.Context) ([]alarm.Alarm, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	out := make([]alarm.Alarm, 0, len(s.alarms))
	for _, a := range s.alarms {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

func (s *fileStore) Get(ctx context.Context, id string) (alarm.Alarm, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return alarm.Alarm{}, err
	}
	a, ok := s.alarms[id]
	if !ok {
		return alarm.Alarm{}, ErrNotFound
	}
	return a, nil
}

func (s *fileStore) Put(ctx context.Context, a alarm.Alarm) error {
	_ = ctx
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return err
	}
	prev, had := s.alarms[a.ID]
	s.alarms[a.ID] = a
	if err := s.saveLocked(); err != nil {
		// Roll back the in-memory map so memory matches disk.
		if had {
			s.alarms[a.ID] = prev
		} else {
			delete(s.alarms, a.ID)
		}
		return err
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return err
	}
	prev, had := s.alarms[id]
	if !had {
		return nil
	}
	delete(s.alarms, id)
	if err := s.saveLocked(); err != nil {
		s.alarms[id] = prev
		return err
	}
	return nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) saveLocked() error {
	doc := fileDoc{Version: fileDocVersion, Alarms: make([]alarm.Alarm, 0, len(s.alarms))}
	for _, a := range s.alarms {
		doc.Alarms = append(doc.Alarms, a)
	}
	sort.Slice(doc.Alarms, func(i, j int) bool { return doc.Alarms[i].ID < doc.Alarms[j].ID })

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	if fi, err := os.Stat(s.path); err == nil {
		s.mtime, s.size = fi.ModTime(), fi.Size()
	}
	return nil
}
