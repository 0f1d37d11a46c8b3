package hosting

import (
	"context"
	"fmt"
)

// Hook is a lifecycle callback run by the host around component start and stop.
type Hook func(ctx context.Context) error

// runHooks executes hooks sequentially, returning the first error.
func runHooks(ctx context.Context, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("hook %d failed: %w", i, err)
		}
	}
	return nil
}
