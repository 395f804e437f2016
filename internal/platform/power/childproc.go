package power

import (
	"context"
	"fmt"
	"os/exec"
)

// childStrategy keeps a helper process alive for the duration of the hold
// (systemd-inhibit wrapping sleep, or caffeinate on macOS). The child is
// parented to us and killed on release; on Linux it also carries a parent
// death signal so it cannot survive a crash.
type childStrategy struct {
	name string
	argv []string
}

func childProcess(name string, argv ...string) Strategy {
	return &childStrategy{name: name, argv: argv}
}

func (c *childStrategy) Name() string { return c.name }

func (c *childStrategy) Acquire(_ context.Context, _ string) (func() error, error) {
	if _, err := exec.LookPath(c.argv[0]); err != nil {
		return nil, fmt.Errorf("%s not found", c.argv[0])
	}

	cmd := exec.Command(c.argv[0], c.argv[1:]...)
	bindToParent(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.argv[0], err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	return func() error {
		select {
		case err := <-done:
			// Exited on its own; the inhibition already lapsed.
			if err != nil {
				return fmt.Errorf("%s exited early: %w", c.argv[0], err)
			}
			return fmt.Errorf("%s exited early", c.argv[0])
		default:
		}
		if err := cmd.Process.Kill(); err != nil {
			return err
		}
		<-done
		return nil
	}, nil
}
