package blackboard

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MemoryEntry is a durable record of a past outcome or derived knowledge for one agent.
// Entries are append-only; they are only ever removed by the retention sweep.
type MemoryEntry struct {
	ID         string            `json:"id"`                 // UUID
	AgentID    string            `json:"agent_id"`           // Agent this entry belongs to
	Type       string            `json:"type"`               // "outcome", "knowledge", ...
	Content    string            `json:"content"`            // Opaque payload (summary, strategy, failure text)
	Metadata   map[string]string `json:"metadata,omitempty"` // outcome, strategy, domain, task_id
	Importance int               `json:"importance"`         // Higher survives retention longer
	Tags       []string          `json:"tags"`
	Timestamp  time.Time         `json:"timestamp"`
	Seq        uint64            `json:"seq,omitempty"` // Instance-wide insertion order, assigned by RecordMemory
}

// Memory entry types written by the coordination engine.
const (
	MemoryTypeOutcome   = "outcome"
	MemoryTypeKnowledge = "knowledge"
)

// GoalStatus is the lifecycle state of an autonomous goal.
type GoalStatus string

const (
	// GoalStatusActive goals are advanced by scheduler ticks
	GoalStatusActive GoalStatus = "active"

	// GoalStatusCompleted goals reached 100% progress
	GoalStatusCompleted GoalStatus = "completed"

	// GoalStatusFailed goals were cancelled explicitly
	GoalStatusFailed GoalStatus = "failed"
)

// Goal is a long-lived, self-progressing unit of work advanced by periodic ticks.
type Goal struct {
	ID             string     `json:"id"`
	Description    string     `json:"description"`
	Type           string     `json:"type"`
	Priority       int        `json:"priority"` // 1-10
	Status         GoalStatus `json:"status"`
	Progress       float64    `json:"progress"` // 0-100
	Steps          []string   `json:"steps"`
	CompletedSteps []string   `json:"completed_steps"`
	FailedSteps    []string   `json:"failed_steps"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	TickCount      int        `json:"tick_count"`
}

// AgentSnapshot is the monitoring view of one agent's runtime state.
type AgentSnapshot struct {
	AgentID        string    `json:"agent_id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Status         string    `json:"status"`
	Performance    float64   `json:"performance"`
	HealthScore    float64   `json:"health_score"`
	ActiveTasks    []string  `json:"active_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	FailedTasks    int       `json:"failed_tasks"`
	LastActive     time.Time `json:"last_active"`
}

// RequestKind distinguishes the inbound requests carried by the request queue.
type RequestKind string

const (
	// RequestKindTask asks the orchestrator to coordinate a free-text task
	RequestKindTask RequestKind = "task"

	// RequestKindGoal asks the orchestrator to create an autonomous goal
	RequestKindGoal RequestKind = "goal"

	// RequestKindCancelGoal asks the orchestrator to fail an active goal
	RequestKindCancelGoal RequestKind = "cancel_goal"
)

// Request is an inbound unit of work pushed by the CLI or another front-end.
// Task requests carry Text plus optional hints; goal requests carry the goal fields;
// cancel requests carry GoalID.
type Request struct {
	ID                   string      `json:"id"`
	Kind                 RequestKind `json:"kind"`
	GoalID               string      `json:"goal_id,omitempty"`
	Text                 string      `json:"text"`
	Type                 string      `json:"type,omitempty"`
	Complexity           string      `json:"complexity,omitempty"`
	Priority             int         `json:"priority,omitempty"`
	RequiredCapabilities []string    `json:"required_capabilities,omitempty"`
	Steps                []string    `json:"steps,omitempty"`
	Deadline             *time.Time  `json:"deadline,omitempty"`
	CreatedAtMs          int64       `json:"created_at_ms"`
}

// TaskResult is the structured outcome of one coordinated task.
// Failures are always reported through Success=false and Error, never as Go errors.
type TaskResult struct {
	TaskID             string   `json:"task_id"`
	Success            bool     `json:"success"`
	Result             string   `json:"result,omitempty"`
	Error              string   `json:"error,omitempty"`
	ErrorKind          string   `json:"error_kind,omitempty"`
	PrimaryAgentID     string   `json:"primary_agent_id,omitempty"`
	SupportingAgentIDs []string `json:"supporting_agent_ids"`
	ExecutionTimeMs    int64    `json:"execution_time_ms"`
	Confidence         int      `json:"confidence"`
	Complexity         string   `json:"complexity,omitempty"`
	Type               string   `json:"type,omitempty"`
}

// WorkflowEvent is a single message on the workflow events channel.
type WorkflowEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// Validate checks that the entry can be stored.
func (m *MemoryEntry) Validate() error {
	if !isValidUUID(m.ID) {
		return fmt.Errorf("invalid memory entry ID: not a valid UUID")
	}

	if m.AgentID == "" {
		return fmt.Errorf("agent_id cannot be empty")
	}

	if m.Type == "" {
		return fmt.Errorf("memory entry type cannot be empty")
	}

	if m.Timestamp.IsZero() {
		return fmt.Errorf("memory entry timestamp cannot be zero")
	}

	return nil
}

// Validate checks that the goal has valid field values.
func (g *Goal) Validate() error {
	if !isValidUUID(g.ID) {
		return fmt.Errorf("invalid goal ID: not a valid UUID")
	}

	if g.Description == "" {
		return fmt.Errorf("goal description cannot be empty")
	}

	if g.Priority < 1 || g.Priority > 10 {
		return fmt.Errorf("invalid priority: must be between 1 and 10, got %d", g.Priority)
	}

	if err := g.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if g.Progress < 0 || g.Progress > 100 {
		return fmt.Errorf("invalid progress: must be between 0 and 100, got %.2f", g.Progress)
	}

	return nil
}

// Validate checks if the GoalStatus is a valid enum value.
func (s GoalStatus) Validate() error {
	switch s {
	case GoalStatusActive, GoalStatusCompleted, GoalStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown goal status: %q", s)
	}
}

// Validate checks that the request is well formed for its kind.
func (r *Request) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid request ID: not a valid UUID")
	}

	switch r.Kind {
	case RequestKindTask:
		if r.Text == "" {
			return fmt.Errorf("task request text cannot be empty")
		}
	case RequestKindGoal:
		if r.Text == "" {
			return fmt.Errorf("goal request description cannot be empty")
		}
		if r.Priority < 1 || r.Priority > 10 {
			return fmt.Errorf("invalid goal priority: must be between 1 and 10, got %d", r.Priority)
		}
	case RequestKindCancelGoal:
		if !isValidUUID(r.GoalID) {
			return fmt.Errorf("invalid goal ID: not a valid UUID")
		}
	default:
		return fmt.Errorf("unknown request kind: %q", r.Kind)
	}

	return nil
}

// HasTag reports whether the entry carries the given tag.
func (m *MemoryEntry) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
