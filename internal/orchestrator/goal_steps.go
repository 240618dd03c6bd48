package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/warren/pkg/blackboard"
)

// ProgressTaskType is the task type of the synthetic tasks run for goal steps.
const ProgressTaskType = "progress"

// GoalStepRunner runs each goal step as a progress task through the engine.
type GoalStepRunner struct {
	engine *Engine
}

// NewGoalStepRunner creates a step runner backed by e.
func NewGoalStepRunner(e *Engine) *GoalStepRunner {
	return &GoalStepRunner{engine: e}
}

// RunStep submits the step and reports whether it succeeded. A task that never
// ran comes back as an error.
func (r *GoalStepRunner) RunStep(ctx context.Context, goal *blackboard.Goal, step string) (bool, error) {
	result := r.engine.Submit(ctx, fmt.Sprintf("%s: %s", goal.Description, step), Hints{
		Type:     ProgressTaskType,
		Priority: goal.Priority,
	})

	if result.Success {
		return true, nil
	}
	if result.ErrorKind == string(ErrorKindExecutionFailure) {
		return false, nil
	}
	return false, errors.New(result.Error)
}
