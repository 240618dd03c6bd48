// Package watch follows orchestrator activity from the CLI: it waits for task
// results and streams workflow events.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/warren/pkg/blackboard"
)

// PollInterval is how often PollForResult checks the blackboard.
var PollInterval = 200 * time.Millisecond

// PollForResult polls until the result for taskID is stored, ctx is cancelled
// or timeout elapses.
func PollForResult(ctx context.Context, client *blackboard.Client, taskID string, timeout time.Duration) (*blackboard.TaskResult, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := client.GetTaskResult(ctx, taskID)
		if err == nil {
			return result, nil
		}
		if !blackboard.IsNotFound(err) {
			return nil, fmt.Errorf("failed to query task result: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for task result after %v", timeout)
		case <-ticker.C:
		}
	}
}
