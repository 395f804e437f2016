// Package execx abstracts external command execution so capability chains and
// scheduler adapters can be exercised in tests without touching the host.
package execx

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner executes external commands. The zero-dependency Host implementation
// is used at runtime; tests substitute fakes.
type Runner interface {
	// Run executes the command and waits, returning combined stdout.
	Run(ctx context.Context, name string, args ...string) (string, error)

	// RunInput is Run with data piped to stdin.
	RunInput(ctx context.Context, input string, name string, args ...string) (string, error)

	// Start launches a detached process (own session/process group where the
	// platform supports it) and returns once the launch succeeded. Extra env
	// entries are appended to the current environment.
	Start(ctx context.Context, env []string, name string, args ...string) error

	// LookPath reports whether the binary is resolvable.
	LookPath(name string) (string, error)
}

// Host runs commands on the real host.
type Host struct {
	// Timeout bounds Run/RunInput when the caller's context has no deadline.
	Timeout time.Duration
}

func NewHost() *Host { return &Host{Timeout: 30 * time.Second} }

func (h *Host) Run(ctx context.Context, name string, args ...string) (string, error) {
	return h.RunInput(ctx, "", name, args...)
}

func (h *Host) RunInput(ctx context.Context, input string, name string, args ...string) (string, error) {
	if _, ok := ctx.Deadline(); !ok && h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

func (h *Host) Start(ctx context.Context, env []string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Fire-and-forget: reap the child when it exits, but never wait for it.
	go func() { _ = cmd.Wait() }()
	_ = ctx
	return nil
}

func (h *Host) LookPath(name string) (string, error) { return exec.LookPath(name) }
