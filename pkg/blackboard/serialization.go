package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like arrays
// are JSON-encoded into single hash fields. Timestamps are stored as Unix
// milliseconds so they sort and compare without parsing.

// MemoryEntryToHash converts a MemoryEntry to a Redis hash format.
func MemoryEntryToHash(m *MemoryEntry) (map[string]interface{}, error) {
	tagsJSON, err := json.Marshal(nonNilStrings(m.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return map[string]interface{}{
		"id":           m.ID,
		"agent_id":     m.AgentID,
		"type":         m.Type,
		"content":      m.Content,
		"metadata":     string(metadataJSON),
		"importance":   m.Importance,
		"tags":         string(tagsJSON),
		"timestamp_ms": m.Timestamp.UnixMilli(),
		"seq":          strconv.FormatUint(m.Seq, 10),
	}, nil
}

// HashToMemoryEntry converts a Redis hash back to a MemoryEntry.
func HashToMemoryEntry(hash map[string]string) (*MemoryEntry, error) {
	importance, err := strconv.Atoi(hash["importance"])
	if err != nil {
		return nil, fmt.Errorf("invalid importance field: %w", err)
	}

	timestampMs, err := strconv.ParseInt(hash["timestamp_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp_ms field: %w", err)
	}

	var seq uint64
	if raw := hash["seq"]; raw != "" {
		if seq, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid seq field: %w", err)
		}
	}

	var tags []string
	if raw := hash["tags"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	metadata := map[string]string{}
	if raw := hash["metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &MemoryEntry{
		ID:         hash["id"],
		AgentID:    hash["agent_id"],
		Type:       hash["type"],
		Content:    hash["content"],
		Metadata:   metadata,
		Importance: importance,
		Tags:       nonNilStrings(tags),
		Timestamp:  time.UnixMilli(timestampMs).UTC(),
		Seq:        seq,
	}, nil
}

// GoalToHash converts a Goal to a Redis hash format.
// Step lists are JSON-encoded; a missing deadline is stored as 0.
func GoalToHash(g *Goal) (map[string]interface{}, error) {
	steps, err := json.Marshal(nonNilStrings(g.Steps))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal steps: %w", err)
	}
	completed, err := json.Marshal(nonNilStrings(g.CompletedSteps))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completed_steps: %w", err)
	}
	failed, err := json.Marshal(nonNilStrings(g.FailedSteps))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal failed_steps: %w", err)
	}

	var deadlineMs int64
	if g.Deadline != nil {
		deadlineMs = g.Deadline.UnixMilli()
	}

	return map[string]interface{}{
		"id":              g.ID,
		"description":     g.Description,
		"type":            g.Type,
		"priority":        g.Priority,
		"status":          string(g.Status),
		"progress":        strconv.FormatFloat(g.Progress, 'f', -1, 64),
		"steps":           string(steps),
		"completed_steps": string(completed),
		"failed_steps":    string(failed),
		"deadline_ms":     deadlineMs,
		"created_at_ms":   g.CreatedAt.UnixMilli(),
		"updated_at_ms":   g.UpdatedAt.UnixMilli(),
		"tick_count":      g.TickCount,
	}, nil
}

// HashToGoal converts a Redis hash back to a Goal.
func HashToGoal(hash map[string]string) (*Goal, error) {
	priority, err := strconv.Atoi(hash["priority"])
	if err != nil {
		return nil, fmt.Errorf("invalid priority field: %w", err)
	}

	progress, err := strconv.ParseFloat(hash["progress"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid progress field: %w", err)
	}

	var steps, completed, failed []string
	for field, target := range map[string]*[]string{
		"steps":           &steps,
		"completed_steps": &completed,
		"failed_steps":    &failed,
	} {
		if raw := hash[field]; raw != "" {
			if err := json.Unmarshal([]byte(raw), target); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", field, err)
			}
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)
	deadlineMs, _ := strconv.ParseInt(hash["deadline_ms"], 10, 64)
	tickCount, _ := strconv.Atoi(hash["tick_count"])

	goal := &Goal{
		ID:             hash["id"],
		Description:    hash["description"],
		Type:           hash["type"],
		Priority:       priority,
		Status:         GoalStatus(hash["status"]),
		Progress:       progress,
		Steps:          nonNilStrings(steps),
		CompletedSteps: nonNilStrings(completed),
		FailedSteps:    nonNilStrings(failed),
		CreatedAt:      time.UnixMilli(createdAtMs).UTC(),
		UpdatedAt:      time.UnixMilli(updatedAtMs).UTC(),
		TickCount:      tickCount,
	}

	if deadlineMs > 0 {
		deadline := time.UnixMilli(deadlineMs).UTC()
		goal.Deadline = &deadline
	}

	return goal, nil
}

// AgentSnapshotToHash converts an AgentSnapshot to a Redis hash format.
func AgentSnapshotToHash(s *AgentSnapshot) (map[string]interface{}, error) {
	activeJSON, err := json.Marshal(nonNilStrings(s.ActiveTasks))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal active_tasks: %w", err)
	}

	return map[string]interface{}{
		"agent_id":        s.AgentID,
		"name":            s.Name,
		"specialization":  s.Specialization,
		"status":          s.Status,
		"performance":     strconv.FormatFloat(s.Performance, 'f', -1, 64),
		"health_score":    strconv.FormatFloat(s.HealthScore, 'f', -1, 64),
		"active_tasks":    string(activeJSON),
		"completed_tasks": s.CompletedTasks,
		"failed_tasks":    s.FailedTasks,
		"last_active_ms":  s.LastActive.UnixMilli(),
	}, nil
}

// HashToAgentSnapshot converts a Redis hash back to an AgentSnapshot.
func HashToAgentSnapshot(hash map[string]string) (*AgentSnapshot, error) {
	performance, err := strconv.ParseFloat(hash["performance"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid performance field: %w", err)
	}

	health, err := strconv.ParseFloat(hash["health_score"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid health_score field: %w", err)
	}

	var active []string
	if raw := hash["active_tasks"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &active); err != nil {
			return nil, fmt.Errorf("failed to unmarshal active_tasks: %w", err)
		}
	}

	completed, _ := strconv.Atoi(hash["completed_tasks"])
	failed, _ := strconv.Atoi(hash["failed_tasks"])
	lastActiveMs, _ := strconv.ParseInt(hash["last_active_ms"], 10, 64)

	return &AgentSnapshot{
		AgentID:        hash["agent_id"],
		Name:           hash["name"],
		Specialization: hash["specialization"],
		Status:         hash["status"],
		Performance:    performance,
		HealthScore:    health,
		ActiveTasks:    nonNilStrings(active),
		CompletedTasks: completed,
		FailedTasks:    failed,
		LastActive:     time.UnixMilli(lastActiveMs).UTC(),
	}, nil
}

// TaskResultToHash converts a TaskResult to a Redis hash format.
func TaskResultToHash(r *TaskResult) (map[string]interface{}, error) {
	supportingJSON, err := json.Marshal(nonNilStrings(r.SupportingAgentIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal supporting_agent_ids: %w", err)
	}

	return map[string]interface{}{
		"task_id":              r.TaskID,
		"success":              strconv.FormatBool(r.Success),
		"result":               r.Result,
		"error":                r.Error,
		"error_kind":           r.ErrorKind,
		"primary_agent_id":     r.PrimaryAgentID,
		"supporting_agent_ids": string(supportingJSON),
		"execution_time_ms":    r.ExecutionTimeMs,
		"confidence":           r.Confidence,
		"complexity":           r.Complexity,
		"type":                 r.Type,
	}, nil
}

// HashToTaskResult converts a Redis hash back to a TaskResult.
func HashToTaskResult(hash map[string]string) (*TaskResult, error) {
	success, err := strconv.ParseBool(hash["success"])
	if err != nil {
		return nil, fmt.Errorf("invalid success field: %w", err)
	}

	var supporting []string
	if raw := hash["supporting_agent_ids"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &supporting); err != nil {
			return nil, fmt.Errorf("failed to unmarshal supporting_agent_ids: %w", err)
		}
	}

	executionMs, _ := strconv.ParseInt(hash["execution_time_ms"], 10, 64)
	confidence, _ := strconv.Atoi(hash["confidence"])

	return &TaskResult{
		TaskID:             hash["task_id"],
		Success:            success,
		Result:             hash["result"],
		Error:              hash["error"],
		ErrorKind:          hash["error_kind"],
		PrimaryAgentID:     hash["primary_agent_id"],
		SupportingAgentIDs: nonNilStrings(supporting),
		ExecutionTimeMs:    executionMs,
		Confidence:         confidence,
		Complexity:         hash["complexity"],
		Type:               hash["type"],
	}, nil
}

// nonNilStrings returns an empty slice instead of nil for consistent JSON and comparisons.
func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
