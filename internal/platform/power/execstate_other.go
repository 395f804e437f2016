//go:build !windows

package power

import (
	"context"
	"fmt"
)

type executionStateStrategy struct{}

func executionState() Strategy { return executionStateStrategy{} }

func (executionStateStrategy) Name() string { return "execution-state" }

func (executionStateStrategy) Acquire(context.Context, string) (func() error, error) {
	return nil, fmt.Errorf("unsupported on this platform")
}
