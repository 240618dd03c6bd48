// Package registry holds the agent roster and its mutable runtime state.
//
// The registry is the only owner of agent status and active task sets: the
// coordination engine requests transitions through MarkAssigned and
// MarkReleased and never mutates agents directly. One mutex serialises every
// transition so that an agent is busy or supporting exactly when it holds at
// least one task, and at most one agent is busy for any task.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/pkg/blackboard"
)

// ErrAssignmentConflict is returned when a transition's pre-state does not hold.
var ErrAssignmentConflict = errors.New("assignment conflict")

// Status is the availability of an agent.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusBusy       Status = "busy"
	StatusSupporting Status = "supporting"
)

// Role is the part an agent plays in a task.
type Role string

const (
	RolePrimary    Role = "busy"
	RoleSupporting Role = "supporting"
)

// Outcome is how a task ended for a participating agent.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

const (
	healthGainOnSuccess = 0.02
	healthLossOnFailure = 0.1
	performanceAlpha    = 0.1
)

// Descriptor is the static identity of an agent.
type Descriptor struct {
	ID             string
	Name           string
	Specialization string
	Capabilities   []string
	Performance    float64
}

// Agent is a registry entry. Values returned by the registry are copies.
type Agent struct {
	ID             string
	Name           string
	Specialization string
	Capabilities   []string

	Status         Status
	Performance    float64
	HealthScore    float64
	ActiveTasks    map[string]Role
	CompletedTasks int
	FailedTasks    int
	LastActive     time.Time
	IdleSince      time.Time
}

// HasCapability reports whether the agent advertises capability c.
func (a *Agent) HasCapability(c string) bool {
	for _, have := range a.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// HasAnyCapability reports whether the agent shares at least one capability with required.
// An empty requirement matches every agent.
func (a *Agent) HasAnyCapability(required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, c := range required {
		if a.HasCapability(c) {
			return true
		}
	}
	return false
}

// TaskIDs returns the agent's active task IDs in sorted order.
func (a *Agent) TaskIDs() []string {
	ids := make([]string, 0, len(a.ActiveTasks))
	for id := range a.ActiveTasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Agent) clone() *Agent {
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	c.ActiveTasks = make(map[string]Role, len(a.ActiveTasks))
	for id, role := range a.ActiveTasks {
		c.ActiveTasks[id] = role
	}
	return &c
}

// Registry is the agent roster.
type Registry struct {
	mu         sync.Mutex
	clock      clock.Clock
	agents     map[string]*Agent
	taskOwners map[string]string // taskID -> busy agentID
}

// New creates an empty registry.
func New(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Registry{
		clock:      clk,
		agents:     make(map[string]*Agent),
		taskOwners: make(map[string]string),
	}
}

// FromConfig creates a registry bootstrapped with the configured roster.
func FromConfig(cfg *config.WarrenConfig, clk clock.Clock) (*Registry, error) {
	r := New(clk)
	for _, id := range cfg.AgentIDs() {
		agent := cfg.Agents[id]
		performance := 0.8
		if agent.Performance != nil {
			performance = *agent.Performance
		}
		if _, err := r.Register(Descriptor{
			ID:             id,
			Name:           agent.Name,
			Specialization: agent.Specialization,
			Capabilities:   agent.Capabilities,
			Performance:    performance,
		}); err != nil {
			return nil, fmt.Errorf("failed to register agent %s: %w", id, err)
		}
	}
	return r, nil
}

// Register adds an agent. New agents start idle with full health.
func (r *Registry) Register(d Descriptor) (string, error) {
	if d.ID == "" {
		return "", fmt.Errorf("agent id cannot be empty")
	}
	if d.Performance < 0 || d.Performance > 1 {
		return "", fmt.Errorf("agent %s: performance must be between 0 and 1, got %.2f", d.ID, d.Performance)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[d.ID]; exists {
		return "", fmt.Errorf("agent %s is already registered", d.ID)
	}

	name := d.Name
	if name == "" {
		name = d.ID
	}

	now := r.clock.Now()
	r.agents[d.ID] = &Agent{
		ID:             d.ID,
		Name:           name,
		Specialization: d.Specialization,
		Capabilities:   append([]string(nil), d.Capabilities...),
		Status:         StatusIdle,
		Performance:    d.Performance,
		HealthScore:    1.0,
		ActiveTasks:    make(map[string]Role),
		LastActive:     now,
		IdleSince:      now,
	}

	return d.ID, nil
}

// Get returns a copy of the agent, or false if it is not registered.
func (r *Registry) Get(agentID string) (*Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// IsIdle reports whether the agent exists and is idle.
func (r *Registry) IsIdle(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	return ok && a.Status == StatusIdle
}

// All returns copies of every agent sorted by ID.
func (r *Registry) All() []*Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListIdle returns idle agents sharing at least one of the required capabilities
// (every idle agent when none are required), best performer first. Ties go to the
// most recently idled agent, then to the lowest ID.
func (r *Registry) ListIdle(requiredCapabilities []string) []*Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idle []*Agent
	for _, a := range r.agents {
		if a.Status != StatusIdle || !a.HasAnyCapability(requiredCapabilities) {
			continue
		}
		idle = append(idle, a.clone())
	}

	sort.Slice(idle, func(i, j int) bool {
		if idle[i].Performance != idle[j].Performance {
			return idle[i].Performance > idle[j].Performance
		}
		if !idle[i].IdleSince.Equal(idle[j].IdleSince) {
			return idle[i].IdleSince.After(idle[j].IdleSince)
		}
		return idle[i].ID < idle[j].ID
	})

	return idle
}

// MarkAssigned moves an idle agent onto taskID in the given role.
// It fails with ErrAssignmentConflict, leaving state untouched, when the agent is
// unknown or not idle, or when role is primary and another agent is already busy
// on taskID.
func (r *Registry) MarkAssigned(agentID, taskID string, role Role) error {
	if role != RolePrimary && role != RoleSupporting {
		return fmt.Errorf("unknown role %q", role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: agent %s is not registered", ErrAssignmentConflict, agentID)
	}
	if _, holds := a.ActiveTasks[taskID]; holds {
		return fmt.Errorf("%w: agent %s already holds task %s", ErrAssignmentConflict, agentID, taskID)
	}
	if a.Status != StatusIdle {
		return fmt.Errorf("%w: agent %s is %s, expected idle", ErrAssignmentConflict, agentID, a.Status)
	}
	if role == RolePrimary {
		if owner, taken := r.taskOwners[taskID]; taken {
			return fmt.Errorf("%w: task %s already has busy agent %s", ErrAssignmentConflict, taskID, owner)
		}
		r.taskOwners[taskID] = agentID
		a.Status = StatusBusy
	} else {
		a.Status = StatusSupporting
	}

	a.ActiveTasks[taskID] = role
	a.LastActive = r.clock.Now()
	return nil
}

// MarkReleased removes taskID from the agent and records the outcome.
// The agent returns to idle once it holds no tasks. Health moves up a little on
// success and down more on failure; performance follows an exponential moving
// average of outcomes.
func (r *Registry) MarkReleased(agentID, taskID string, outcome Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: agent %s is not registered", ErrAssignmentConflict, agentID)
	}
	role, holds := a.ActiveTasks[taskID]
	if !holds {
		return fmt.Errorf("%w: agent %s does not hold task %s", ErrAssignmentConflict, agentID, taskID)
	}

	delete(a.ActiveTasks, taskID)
	if role == RolePrimary && r.taskOwners[taskID] == agentID {
		delete(r.taskOwners, taskID)
	}

	now := r.clock.Now()
	a.LastActive = now

	target := 0.0
	if outcome == OutcomeSuccess {
		a.CompletedTasks++
		a.HealthScore = clamp01(a.HealthScore + healthGainOnSuccess)
		target = 1.0
	} else {
		a.FailedTasks++
		a.HealthScore = clamp01(a.HealthScore - healthLossOnFailure)
	}
	a.Performance = clamp01(a.Performance + performanceAlpha*(target-a.Performance))

	if len(a.ActiveTasks) == 0 {
		a.Status = StatusIdle
		a.IdleSince = now
	}

	return nil
}

// Unassign reverts a MarkAssigned that never ran. No outcome is recorded.
func (r *Registry) Unassign(agentID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: agent %s is not registered", ErrAssignmentConflict, agentID)
	}
	role, holds := a.ActiveTasks[taskID]
	if !holds {
		return fmt.Errorf("%w: agent %s does not hold task %s", ErrAssignmentConflict, agentID, taskID)
	}

	delete(a.ActiveTasks, taskID)
	if role == RolePrimary && r.taskOwners[taskID] == agentID {
		delete(r.taskOwners, taskID)
	}

	now := r.clock.Now()
	a.LastActive = now
	if len(a.ActiveTasks) == 0 {
		a.Status = StatusIdle
		a.IdleSince = now
	}
	return nil
}

// Snapshots returns the monitoring view of every agent sorted by ID.
func (r *Registry) Snapshots() []*blackboard.AgentSnapshot {
	agents := r.All()
	snapshots := make([]*blackboard.AgentSnapshot, 0, len(agents))
	for _, a := range agents {
		snapshots = append(snapshots, &blackboard.AgentSnapshot{
			AgentID:        a.ID,
			Name:           a.Name,
			Specialization: a.Specialization,
			Status:         string(a.Status),
			Performance:    a.Performance,
			HealthScore:    a.HealthScore,
			ActiveTasks:    a.TaskIDs(),
			CompletedTasks: a.CompletedTasks,
			FailedTasks:    a.FailedTasks,
			LastActive:     a.LastActive,
		})
	}
	return snapshots
}

// Reset releases every agent and clears all counters. Used on teardown.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for _, a := range r.agents {
		a.Status = StatusIdle
		a.ActiveTasks = make(map[string]Role)
		a.CompletedTasks = 0
		a.FailedTasks = 0
		a.HealthScore = 1.0
		a.IdleSince = now
	}
	r.taskOwners = make(map[string]string)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
