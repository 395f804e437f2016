package power

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/login1"
)

// logindStrategy takes a block-mode inhibitor lock from systemd-logind.
// The lock is a file descriptor; closing it releases the inhibition, and the
// kernel closes it for us if the process dies, so this can never leak.
type logindStrategy struct{}

func logind() Strategy { return logindStrategy{} }

func (logindStrategy) Name() string { return "logind" }

func (logindStrategy) Acquire(_ context.Context, reason string) (func() error, error) {
	conn, err := login1.New()
	if err != nil {
		return nil, fmt.Errorf("connect logind: %w", err)
	}

	fd, err := conn.Inhibit("idle:sleep:handle-lid-switch", "chime", reason, "block")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("logind inhibit: %w", err)
	}

	return func() error {
		err := fd.Close()
		conn.Close()
		if err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
		return nil
	}, nil
}
