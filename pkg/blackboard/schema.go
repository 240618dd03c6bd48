package blackboard

import (
	"fmt"
	"strings"
	"time"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple Warren instances to safely coexist on a single Redis server.
//
// Key pattern: warren:{instance_name}:{entity}:{id}
// Channel pattern: warren:{instance_name}:{event_type}_events

// MemoryKey returns the Redis key for a memory entry hash.
// Pattern: warren:{instance_name}:memory:{entry_id}
func MemoryKey(instanceName, entryID string) string {
	return fmt.Sprintf("warren:%s:memory:%s", instanceName, entryID)
}

// AgentMemoryTimelineKey returns the ZSET key ordering one agent's memory entries by time.
// Pattern: warren:{instance_name}:agent:{agent_id}:memories
func AgentMemoryTimelineKey(instanceName, agentID string) string {
	return fmt.Sprintf("warren:%s:agent:%s:memories", instanceName, agentID)
}

// MemoryTimelineKey returns the ZSET key ordering every memory entry by time.
// The retention sweep walks this index.
// Pattern: warren:{instance_name}:memories
func MemoryTimelineKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:memories", instanceName)
}

// GoalKey returns the Redis key for a goal hash.
// Pattern: warren:{instance_name}:goal:{goal_id}
func GoalKey(instanceName, goalID string) string {
	return fmt.Sprintf("warren:%s:goal:%s", instanceName, goalID)
}

// GoalIndexKey returns the SET key holding every goal ID.
// Pattern: warren:{instance_name}:goals
func GoalIndexKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:goals", instanceName)
}

// AgentSnapshotKey returns the Redis key for an agent's monitoring snapshot.
// Pattern: warren:{instance_name}:agent:{agent_id}
func AgentSnapshotKey(instanceName, agentID string) string {
	return fmt.Sprintf("warren:%s:agent:%s", instanceName, agentID)
}

// AgentIndexKey returns the SET key holding every agent ID with a snapshot.
// Pattern: warren:{instance_name}:agents
func AgentIndexKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:agents", instanceName)
}

// RequestQueueKey returns the LIST key of pending inbound requests.
// Producers LPUSH, the orchestrator BRPOPs, so requests are consumed FIFO.
// Pattern: warren:{instance_name}:requests
func RequestQueueKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:requests", instanceName)
}

// TaskResultKey returns the Redis key for a task's result hash.
// Pattern: warren:{instance_name}:result:{task_id}
func TaskResultKey(instanceName, taskID string) string {
	return fmt.Sprintf("warren:%s:result:%s", instanceName, taskID)
}

// WorkflowEventsChannel returns the Pub/Sub channel name for workflow events.
// This channel carries task grants, completions and goal progress for real-time monitoring.
// Pattern: warren:{instance_name}:workflow_events
func WorkflowEventsChannel(instanceName string) string {
	return fmt.Sprintf("warren:%s:workflow_events", instanceName)
}

// MemorySeqKey returns the counter that orders memory entries across writers.
// Pattern: warren:{instance_name}:memory_seq
func MemorySeqKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:memory_seq", instanceName)
}

// TimelineScore converts a timestamp into a ZSET score (Unix milliseconds).
func TimelineScore(ts time.Time) float64 {
	return float64(ts.UnixMilli())
}

// TimelineBound converts a timestamp into the lowest score of its millisecond.
// Use it for range queries over a timeline built with TimelineScore.
func TimelineBound(ts time.Time) float64 {
	return float64(ts.UnixMilli())
}

// TimelineMember builds the timeline member of an entry. Members sharing a
// score sort lexicographically, so the zero-padded sequence keeps entries
// recorded within the same millisecond in insertion order.
func TimelineMember(seq uint64, entryID string) string {
	return fmt.Sprintf("%020d:%s", seq, entryID)
}

// EntryIDFromMember returns the entry ID of a timeline member.
func EntryIDFromMember(member string) string {
	if i := strings.IndexByte(member, ':'); i >= 0 {
		return member[i+1:]
	}
	return member
}
