// Package registry keeps the alarm store and the host trigger facility in
// lockstep: every enabled alarm has exactly one trigger, every owned trigger
// has an enabled alarm. Mutations install or remove triggers inline and then
// reconcile, so drift only survives between reconcile passes when someone
// edits the host facility behind our back.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chime/internal/alarm"
	"chime/internal/schedule"
	"chime/internal/sequence"
	"chime/internal/store"
	logx "chime/pkg/logx"
)

// ErrResolutionFailure means an alarm or its sequence could not be loaded at
// fire time. It is the one error class that makes a headless fire exit
// non-zero.
var ErrResolutionFailure = errors.New("resolution failure")

// Registry serializes all trigger mutations behind one lock. Reads (Resolve,
// Get, List) take the read side so a fire never waits on a reconcile.
type Registry struct {
	mu      sync.RWMutex
	alarms  store.Store
	seqs    *sequence.Store
	adapter schedule.Adapter
	log     logx.Logger
}

func New(alarms store.Store, seqs *sequence.Store, adapter schedule.Adapter, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{alarms: alarms, seqs: seqs, adapter: adapter, log: log}
}

// Adapter exposes the backing adapter for capability display.
func (r *Registry) Adapter() schedule.Adapter { return r.adapter }

// Save validates, persists and installs (or de-installs) the alarm. A
// disabled alarm keeps its record but loses its trigger.
func (r *Registry) Save(ctx context.Context, a alarm.Alarm) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %v", schedule.ErrInvalidAlarm, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkCollision(ctx, a); err != nil {
		return err
	}
	if _, err := r.seqs.Load(a.Sequence); err != nil {
		// Not fatal: the sequence may be created later; the fire will report
		// a resolution failure if it never is.
		r.log.Warn("alarm references missing sequence",
			logx.String("alarm", a.ID), logx.String("sequence", a.Sequence))
	}

	if err := r.alarms.Put(ctx, a); err != nil {
		return fmt.Errorf("persist alarm: %w", err)
	}

	if a.Enabled {
		if _, err := r.adapter.Install(ctx, a); err != nil {
			return fmt.Errorf("install trigger: %w", err)
		}
	} else {
		if err := r.adapter.Remove(ctx, r.adapter.Trigger(a.ID)); err != nil {
			return fmt.Errorf("remove trigger: %w", err)
		}
	}
	return r.reconcileLocked(ctx)
}

// Delete removes the trigger first and the record second: a record without a
// trigger is silent, a trigger without a record is a 6 AM surprise.
func (r *Registry) Delete(ctx context.Context, alarmID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.adapter.Remove(ctx, r.adapter.Trigger(alarmID)); err != nil {
		return fmt.Errorf("remove trigger: %w", err)
	}
	if err := r.alarms.Delete(ctx, alarmID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete alarm: %w", err)
	}
	r.log.Info("alarm deleted", logx.String("alarm", alarmID))
	return nil
}

// SetEnabled flips the flag and heals the trigger to match.
func (r *Registry) SetEnabled(ctx context.Context, alarmID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.alarms.Get(ctx, alarmID)
	if err != nil {
		return err
	}
	if a.Enabled == enabled {
		return nil
	}
	a.Enabled = enabled
	if err := r.alarms.Put(ctx, a); err != nil {
		return fmt.Errorf("persist alarm: %w", err)
	}

	if enabled {
		_, err = r.adapter.Install(ctx, a)
	} else {
		err = r.adapter.Remove(ctx, r.adapter.Trigger(a.ID))
	}
	if err != nil {
		return err
	}
	r.log.Info("alarm toggled", logx.String("alarm", alarmID), logx.Bool("enabled", enabled))
	return nil
}

// Get returns one alarm record.
func (r *Registry) Get(ctx context.Context, alarmID string) (alarm.Alarm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alarms.Get(ctx, alarmID)
}

// List returns all alarm records.
func (r *Registry) List(ctx context.Context) ([]alarm.Alarm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alarms.List(ctx)
}

// Resolve loads the alarm and its sequence as one snapshot. The read lock
// guarantees a concurrent delete cannot pull the sequence out from under a
// fire that already found the alarm.
func (r *Registry) Resolve(ctx context.Context, alarmID string) (alarm.Alarm, *sequence.Sequence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, err := r.alarms.Get(ctx, alarmID)
	if err != nil {
		return alarm.Alarm{}, nil, fmt.Errorf("%w: alarm %s: %v", ErrResolutionFailure, alarmID, err)
	}
	seq, err := r.seqs.Load(a.Sequence)
	if err != nil {
		return alarm.Alarm{}, nil, fmt.Errorf("%w: sequence %q: %v", ErrResolutionFailure, a.Sequence, err)
	}
	return a, seq, nil
}

// MarkFired records that the alarm fired. One-time alarms are consumed:
// trigger first, record second, same ordering as Delete. Failures are logged
// and swallowed so a fire still exits zero; the next reconcile finishes the
// cleanup.
func (r *Registry) MarkFired(ctx context.Context, alarmID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.alarms.Get(ctx, alarmID)
	if err != nil {
		r.log.Warn("fired alarm lookup failed", logx.String("alarm", alarmID), logx.Err(err))
		return
	}
	if !a.OneTime() {
		return
	}
	if err := r.adapter.Remove(ctx, r.adapter.Trigger(a.ID)); err != nil {
		r.log.Warn("one-time trigger cleanup failed", logx.String("alarm", alarmID), logx.Err(err))
		return
	}
	if err := r.alarms.Delete(ctx, alarmID); err != nil {
		r.log.Warn("one-time record cleanup failed", logx.String("alarm", alarmID), logx.Err(err))
		return
	}
	r.log.Info("one-time alarm consumed", logx.String("alarm", alarmID))
}

// Reconcile heals both drift directions.
func (r *Registry) Reconcile(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconcileLocked(ctx)
}

func (r *Registry) reconcileLocked(ctx context.Context) error {
	alarms, err := r.alarms.List(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list alarms: %w", err)
	}

	expected := make(map[schedule.TriggerID]alarm.Alarm, len(alarms))
	for _, a := range alarms {
		if a.Enabled {
			expected[r.adapter.Trigger(a.ID)] = a
		}
	}

	owned, err := r.adapter.List(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list triggers: %w", err)
	}

	have := make(map[schedule.TriggerID]bool, len(owned))
	for _, id := range owned {
		have[id] = true
		if _, ok := expected[id]; ok {
			continue
		}
		r.log.Warn("removing orphaned trigger", logx.String("trigger", string(id)))
		if err := r.adapter.Remove(ctx, id); err != nil {
			return fmt.Errorf("reconcile: remove %s: %w", id, err)
		}
	}

	for id, a := range expected {
		if have[id] {
			continue
		}
		r.log.Warn("installing missing trigger",
			logx.String("alarm", a.ID), logx.String("trigger", string(id)))
		if _, err := r.adapter.Install(ctx, a); err != nil {
			return fmt.Errorf("reconcile: install %s: %w", a.ID, err)
		}
	}
	return nil
}

// checkCollision rejects an alarm whose trigger identity is already claimed
// by a different enabled alarm.
func (r *Registry) checkCollision(ctx context.Context, a alarm.Alarm) error {
	id := r.adapter.Trigger(a.ID)
	existing, err := r.alarms.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == a.ID || !other.Enabled {
			continue
		}
		if r.adapter.Trigger(other.ID) == id {
			return fmt.Errorf("%w: trigger identity %s collides with alarm %s",
				schedule.ErrInvalidAlarm, id, other.ID)
		}
	}
	return nil
}
