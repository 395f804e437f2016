// Package alarm holds the durable alarm record: a wall-clock fire time, a
// weekday recurrence (or one-time), and the name of the sequence to run.
package alarm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock is a wall-clock time of day. Host trigger facilities work on minute
// granularity, so there is no seconds field by design of the stores we write.
type Clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c Clock) valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// ParseClock accepts "HH:MM".
func ParseClock(s string) (Clock, error) {
	var c Clock
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &c.Hour, &c.Minute); err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	if !c.valid() {
		return Clock{}, fmt.Errorf("invalid time %q: out of range", s)
	}
	return c, nil
}

// Alarm is the application-level record. The ID is the only field trigger
// identities may be derived from: renaming the sequence or relabeling the
// alarm never orphans a host trigger.
type Alarm struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`

	At Clock `json:"at"`

	// Days is the weekday recurrence. Empty means one-time: the alarm fires
	// at its next occurrence and is then deleted together with its trigger.
	Days []time.Weekday `json:"days,omitempty"`

	Sequence string `json:"sequence"`
	Enabled  bool   `json:"enabled"`

	Created time.Time `json:"created"`
}

// New returns an enabled alarm with a fresh ID.
func New(label string, at Clock, days []time.Weekday, sequence string) Alarm {
	return Alarm{
		ID:       uuid.NewString(),
		Label:    label,
		At:       at,
		Days:     normalizeDays(days),
		Sequence: sequence,
		Enabled:  true,
		Created:  time.Now(),
	}
}

func (a Alarm) OneTime() bool { return len(a.Days) == 0 }

func (a Alarm) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("alarm id is empty")
	}
	if strings.TrimSpace(a.Sequence) == "" {
		return errors.New("alarm has no sequence reference")
	}
	if !a.At.valid() {
		return fmt.Errorf("alarm time %s out of range", a.At)
	}
	for _, d := range a.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid weekday %d", d)
		}
	}
	return nil
}

// NextOccurrence returns the first instant at or after now matching the
// alarm's clock and recurrence. One-shot trigger stores need a concrete date.
func (a Alarm) NextOccurrence(now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), a.At.Hour, a.At.Minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	if a.OneTime() {
		return candidate
	}
	for i := 0; i < 7; i++ {
		if a.fireOn(candidate.Weekday()) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func (a Alarm) fireOn(d time.Weekday) bool {
	for _, w := range a.Days {
		if w == d {
			return true
		}
	}
	return false
}

// DaysString renders the recurrence for list views: "once", "daily" or
// "Mon,Wed,Fri".
func (a Alarm) DaysString() string {
	if a.OneTime() {
		return "once"
	}
	if len(a.Days) == 7 {
		return "daily"
	}
	parts := make([]string, 0, len(a.Days))
	for _, d := range a.Days {
		parts = append(parts, d.String()[:3])
	}
	return strings.Join(parts, ",")
}

// ParseDays accepts "once", "daily" or a comma list of weekday names
// ("mon,wed,fri"; full names work too).
func ParseDays(s string) ([]time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "once":
		return nil, nil
	case "daily", "everyday", "every":
		return []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		}, nil
	}

	names := map[string]time.Weekday{
		"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
		"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
		"sat": time.Saturday,
	}
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 3 {
			part = part[:3]
		}
		d, ok := names[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		out = append(out, d)
	}
	return normalizeDays(out), nil
}

func normalizeDays(days []time.Weekday) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	seen := map[time.Weekday]bool{}
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
