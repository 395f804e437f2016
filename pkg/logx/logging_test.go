package logx

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"shout", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerWithAccumulatesFields(t *testing.T) {
	t.Parallel()

	base := Nop().With(String("component", "test"))
	child := base.With(Int("n", 1))

	if len(child.fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(child.fields))
	}
	if len(base.fields) != 1 {
		t.Fatalf("parent mutated: fields = %d, want 1", len(base.fields))
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	t.Parallel()

	l := Nop()
	l.Info("goes nowhere", String("k", "v"), Err(nil))
	if l.IsZero() {
		t.Fatal("Nop logger should not be the zero Logger")
	}

	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero Logger must report IsZero")
	}
	zero.Warn("must not panic")
}
