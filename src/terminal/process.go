package terminal

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessChecker reports whether a process with the given executable name
// is running on this host.
type ProcessChecker interface {
	IsRunning(ctx context.Context, name string) (bool, error)
}

type HostProcessChecker struct{}

func (HostProcessChecker) IsRunning(ctx context.Context, name string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("IsRunning: failed to list processes: %w", err)
	}

	for _, p := range procs {
		pName, err := p.NameWithContext(ctx)
		if err != nil {
			// the process may have exited while listing
			continue
		}

		if strings.EqualFold(pName, name) {
			return true, nil
		}
	}

	return false, nil
}

// ProcessCheckerFunc adapts a function to ProcessChecker.
type ProcessCheckerFunc func(ctx context.Context, name string) (bool, error)

func (f ProcessCheckerFunc) IsRunning(ctx context.Context, name string) (bool, error) {
	return f(ctx, name)
}
