package docker

import (
	"fmt"
)

// Label keys used for Warren worker containers
const (
	LabelProject      = "warren.project"
	LabelInstanceName = "warren.instance.name"
	LabelComponent    = "warren.component"
	LabelAgentID      = "warren.agent.id"
	LabelTaskID       = "warren.task.id"
)

// ComponentWorker marks containers that execute a single task.
const ComponentWorker = "worker"

// BuildLabels creates the standard label set for a Warren container.
// agentID and taskID are omitted when empty.
func BuildLabels(instanceName, component, agentID, taskID string) map[string]string {
	labels := map[string]string{
		LabelProject:      "true",
		LabelInstanceName: instanceName,
	}

	if component != "" {
		labels[LabelComponent] = component
	}
	if agentID != "" {
		labels[LabelAgentID] = agentID
	}
	if taskID != "" {
		labels[LabelTaskID] = taskID
	}

	return labels
}

// WorkerContainerName returns the container name for one task's worker.
// Pattern: warren-{instance}-{agent}-worker-{first 8 chars of task id}
func WorkerContainerName(instanceName, agentID, taskID string) string {
	short := taskID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("warren-%s-%s-worker-%s", instanceName, agentID, short)
}
