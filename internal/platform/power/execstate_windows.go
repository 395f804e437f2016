//go:build windows

package power

import (
	"context"
	"fmt"
	"syscall"
)

const (
	esContinuous      = 0x80000000
	esSystemRequired  = 0x00000001
	esDisplayRequired = 0x00000002
)

var (
	kernel32                    = syscall.NewLazyDLL("kernel32.dll")
	procSetThreadExecutionState = kernel32.NewProc("SetThreadExecutionState")
)

// executionStateStrategy pins the machine awake with SetThreadExecutionState.
// The flag is thread-scoped and resets when the process exits.
type executionStateStrategy struct{}

func executionState() Strategy { return executionStateStrategy{} }

func (executionStateStrategy) Name() string { return "execution-state" }

func (executionStateStrategy) Acquire(context.Context, string) (func() error, error) {
	prev, _, _ := procSetThreadExecutionState.Call(esContinuous | esSystemRequired | esDisplayRequired)
	if prev == 0 {
		return nil, fmt.Errorf("SetThreadExecutionState failed")
	}
	return func() error {
		reset, _, _ := procSetThreadExecutionState.Call(esContinuous)
		if reset == 0 {
			return fmt.Errorf("SetThreadExecutionState reset failed")
		}
		return nil
	}, nil
}
