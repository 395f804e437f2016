// Package sequence models the ordered action chain an alarm executes, and the
// one-file-per-sequence document store the editor writes into.
package sequence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Known action kinds. The executor owns their semantics; a document may carry
// a kind this build does not know, which parses fine and fails only when that
// single action runs.
const (
	KindPlayMedia        = "play_media"
	KindPlayRandomMedia  = "play_random_media"
	KindOpenURL          = "open_url"
	KindWait             = "wait"
	KindSetBrightness    = "set_brightness"
	KindSetVolume        = "set_volume"
	KindInhibitSleep     = "inhibit_sleep"
	KindRunCommand       = "run_command"
	KindRecordAudio      = "record_audio"
	KindScreenAutomation = "screen_automation"
)

// Params is a kind-specific key/value mapping. Immutable once saved;
// execution never mutates it.
type Params map[string]any

func (p Params) Str(key, def string) string {
	if v, ok := p[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Int tolerates JSON numbers arriving as float64.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func (p Params) StrSlice(key string) []string {
	raw, ok := p[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Action is one typed, parameterized operation.
type Action struct {
	Kind   string `json:"kind"`
	Params Params `json:"params,omitempty"`
}

// Sequence is an ordered action list, referenced by alarms by name.
type Sequence struct {
	Name    string   `json:"name"`
	Actions []Action `json:"actions"`
}

func (s *Sequence) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("sequence name is empty")
	}
	if len(s.Actions) == 0 {
		return errors.New("sequence has no actions")
	}
	for i, a := range s.Actions {
		if strings.TrimSpace(a.Kind) == "" {
			return fmt.Errorf("action %d has no kind", i)
		}
	}
	return nil
}

// Decode parses a sequence document. Unknown action kinds are NOT an error
// here: rejecting the whole document over one bad action would make every
// other action unreachable.
func Decode(b []byte) (*Sequence, error) {
	var s Sequence
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode sequence: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Sequence) Encode() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}
