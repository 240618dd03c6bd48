package orchestrator

import (
	"errors"

	"github.com/dyluth/warren/internal/registry"
)

var (
	// ErrNoAvailableAgent means neither the preferred primary nor any idle
	// agent sharing a required capability could take the task.
	ErrNoAvailableAgent = errors.New("no available agent")

	// ErrAssignmentConflict is returned when the registry rejects a transition.
	ErrAssignmentConflict = registry.ErrAssignmentConflict

	// ErrExecutionFailure wraps a failed or erroring execution.
	ErrExecutionFailure = errors.New("execution failure")

	// ErrQueueCancelled means the task was dropped from the admission queue
	// before it started.
	ErrQueueCancelled = errors.New("task cancelled while queued")
)

// ErrorKind is the machine-readable failure class carried in a TaskResult.
type ErrorKind string

const (
	ErrorKindNoAvailableAgent   ErrorKind = "no_available_agent"
	ErrorKindAssignmentConflict ErrorKind = "assignment_conflict"
	ErrorKindExecutionFailure   ErrorKind = "execution_failure"
	ErrorKindQueueCancelled     ErrorKind = "queue_cancelled"
)

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNoAvailableAgent):
		return ErrorKindNoAvailableAgent
	case errors.Is(err, ErrAssignmentConflict):
		return ErrorKindAssignmentConflict
	case errors.Is(err, ErrQueueCancelled):
		return ErrorKindQueueCancelled
	default:
		return ErrorKindExecutionFailure
	}
}
