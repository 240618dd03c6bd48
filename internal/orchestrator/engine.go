package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/warren/internal/analyzer"
	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/internal/executor"
	"github.com/dyluth/warren/internal/goals"
	"github.com/dyluth/warren/internal/memory"
	"github.com/dyluth/warren/internal/registry"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
)

// Scorer analyzes free-form input. Both analyzer.Scorer and analyzer.CachedScorer satisfy it.
type Scorer interface {
	Score(input string) *analyzer.Analysis
}

// AssignmentStatus is the lifecycle state of a TaskAssignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentFailed    AssignmentStatus = "failed"
)

// Task is one unit of work handed to Coordinate.
type Task struct {
	ID         string
	Text       string
	Type       string
	Complexity analyzer.Complexity
	Priority   int
	Confidence int

	// Used when no rule exists for Type.
	PreferredAgentID       string
	SuggestedSupportingIDs []string
	RequiredCapabilities   []string
}

// Assignment binds a task to the agents executing it.
type Assignment struct {
	TaskID             string              `json:"task_id"`
	Type               string              `json:"type"`
	Complexity         analyzer.Complexity `json:"complexity"`
	Priority           int                 `json:"priority"`
	PrimaryAgentID     string              `json:"primary_agent_id"`
	SupportingAgentIDs []string            `json:"supporting_agent_ids"`
	Status             AssignmentStatus    `json:"status"`
	StartTime          time.Time           `json:"start_time"`
	EndTime            time.Time           `json:"end_time,omitempty"`
}

// Hints are optional caller overrides for Submit.
type Hints struct {
	ID                   string
	Type                 string
	Complexity           analyzer.Complexity
	Priority             int
	RequiredCapabilities []string
}

// Options wires the engine's collaborators. Memory, Board and Goals are optional.
type Options struct {
	Registry       *registry.Registry
	Rules          *RuleSet
	Scorer         Scorer
	Executor       executor.Executor
	Memory         *memory.Store
	Board          *blackboard.Client
	Goals          *goals.Scheduler
	Clock          clock.Clock
	InstanceName   string
	MaxActiveTasks int
	ResultTTL      time.Duration
	PollTimeout    time.Duration
	ExecTimeout    time.Duration // zero means no limit
}

// Engine coordinates tasks across the agent registry.
type Engine struct {
	registry     *registry.Registry
	rules        *RuleSet
	scorer       Scorer
	executor     executor.Executor
	memory       *memory.Store
	board        *blackboard.Client
	goals        *goals.Scheduler
	clock        clock.Clock
	instanceName string
	resultTTL    time.Duration
	pollTimeout  time.Duration
	execTimeout  time.Duration

	admission *admission

	// assignMu serializes agent selection with the registry transitions that follow it.
	assignMu sync.Mutex

	mu          sync.RWMutex
	assignments map[string]*Assignment

	inflight sync.WaitGroup
}

// NewEngine creates a new coordination engine.
func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.MaxActiveTasks == 0 {
		opts.MaxActiveTasks = 5
	}
	if opts.ResultTTL == 0 {
		opts.ResultTTL = time.Hour
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.Rules == nil {
		opts.Rules = &RuleSet{rules: map[string]Rule{}}
	}

	return &Engine{
		registry:     opts.Registry,
		rules:        opts.Rules,
		scorer:       opts.Scorer,
		executor:     opts.Executor,
		memory:       opts.Memory,
		board:        opts.Board,
		goals:        opts.Goals,
		clock:        opts.Clock,
		instanceName: opts.InstanceName,
		resultTTL:    opts.ResultTTL,
		pollTimeout:  opts.PollTimeout,
		execTimeout:  opts.ExecTimeout,
		admission:    newAdmission(opts.MaxActiveTasks),
		assignments:  make(map[string]*Assignment),
	}
}

// Submit analyzes text, builds a task from the analysis and hints, adjusts its
// confidence from the selected primary's memory and coordinates it.
func (e *Engine) Submit(ctx context.Context, text string, hints Hints) *blackboard.TaskResult {
	analysis := e.scorer.Score(text)

	task := &Task{
		ID:                     hints.ID,
		Text:                   text,
		Type:                   hints.Type,
		Complexity:             analysis.Complexity,
		Priority:               hints.Priority,
		Confidence:             analysis.Confidence,
		PreferredAgentID:       analysis.PrimaryAgentID,
		SuggestedSupportingIDs: analysis.SupportingAgentIDs,
		RequiredCapabilities:   hints.RequiredCapabilities,
	}
	if hints.Complexity != "" {
		task.Complexity = hints.Complexity
	}
	if task.Priority == 0 {
		task.Priority = 5
	}
	if task.Type == "" && analysis.PrimaryAgentID != "" {
		if agent, ok := e.registry.Get(analysis.PrimaryAgentID); ok {
			task.Type = agent.Specialization
		}
	}

	if e.memory != nil {
		e.adjustConfidence(ctx, task)
	}

	return e.Coordinate(ctx, task)
}

// adjustConfidence moves the task's confidence by what memory knows of the agent
// selection would currently pick as primary for it.
func (e *Engine) adjustConfidence(ctx context.Context, task *Task) {
	sel, err := e.selectAgents(task)
	if err != nil {
		// Coordinate reports the failure
		return
	}

	mctx, err := e.memory.RelevantContext(ctx, sel.primary, task.Type)
	if err != nil {
		log.Printf("[Orchestrator] Failed to load memory context for %s: %v", sel.primary, err)
		return
	}
	if delta := mctx.ConfidenceDelta(); delta != 0 {
		task.Confidence = clampConfidence(task.Confidence + delta)
		e.logEvent("confidence_adjusted", map[string]interface{}{
			"agent_id":           sel.primary,
			"delta":              delta,
			"confidence":         task.Confidence,
			"success_strategies": len(mctx.SuccessStrategies),
			"failure_patterns":   len(mctx.FailurePatterns),
		})
	}
}

// Coordinate selects agents for the task, waits for an admission slot, executes
// and reports. It never returns an error: failures come back as a TaskResult
// with Success=false.
//
// ctx is honoured only while the task is queued. Once admitted the task runs to
// completion.
func (e *Engine) Coordinate(ctx context.Context, task *Task) *blackboard.TaskResult {
	start := e.clock.Now()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	result := &blackboard.TaskResult{
		TaskID:             task.ID,
		Type:               task.Type,
		Complexity:         string(task.Complexity),
		Confidence:         task.Confidence,
		SupportingAgentIDs: []string{},
	}

	if _, err := e.selectAgents(task); err != nil {
		return e.fail(result, err, start)
	}

	if e.admission.inFlight() >= e.admission.limit {
		e.logEvent("task_queued", map[string]interface{}{
			"task_id":  task.ID,
			"type":     task.Type,
			"priority": task.Priority,
			"queued":   e.admission.queued() + 1,
		})
	}

	if err := e.admission.acquire(ctx); err != nil {
		return e.fail(result, err, start)
	}
	defer e.admission.release()

	assignment, err := e.assign(task)
	if err != nil {
		if errors.Is(err, registry.ErrAssignmentConflict) {
			// Rolled-back agents may have moved since their last snapshot
			e.persistSnapshots(ctx, nil)
		}
		return e.fail(result, err, start)
	}
	result.PrimaryAgentID = assignment.PrimaryAgentID
	result.SupportingAgentIDs = append([]string{}, assignment.SupportingAgentIDs...)
	e.persistSnapshots(context.WithoutCancel(ctx), append([]string{assignment.PrimaryAgentID}, assignment.SupportingAgentIDs...))

	e.logEvent("task_granted", map[string]interface{}{
		"task_id":              task.ID,
		"type":                 task.Type,
		"complexity":           string(task.Complexity),
		"primary_agent_id":     assignment.PrimaryAgentID,
		"supporting_agent_ids": assignment.SupportingAgentIDs,
	})
	e.publish(ctx, "task_granted", map[string]interface{}{
		"task_id":          task.ID,
		"primary_agent_id": assignment.PrimaryAgentID,
	})

	req := executor.Request{
		TaskID:     task.ID,
		Text:       task.Text,
		Type:       task.Type,
		Complexity: task.Complexity,
		Primary:    e.executorAgent(assignment.PrimaryAgentID),
	}
	for _, id := range assignment.SupportingAgentIDs {
		req.Supporting = append(req.Supporting, e.executorAgent(id))
	}

	execCtx := context.WithoutCancel(ctx)
	runCtx := execCtx
	if e.execTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(execCtx, e.execTimeout)
		defer cancel()
	}
	res, execErr := e.executor.Execute(runCtx, req)

	success := execErr == nil && res.Success
	switch {
	case execErr != nil:
		result.Error = fmt.Errorf("%w: %v", ErrExecutionFailure, execErr).Error()
		result.ErrorKind = string(ErrorKindExecutionFailure)
	case !res.Success:
		result.Error = fmt.Errorf("%w: %s", ErrExecutionFailure, res.Output).Error()
		result.ErrorKind = string(ErrorKindExecutionFailure)
		result.Result = res.Output
	default:
		result.Result = res.Output
	}
	result.Success = success

	e.finish(execCtx, task, assignment, result)
	result.ExecutionTimeMs = e.clock.Now().Sub(start).Milliseconds()

	if success {
		e.logEvent("task_completed", map[string]interface{}{
			"task_id":           task.ID,
			"primary_agent_id":  assignment.PrimaryAgentID,
			"execution_time_ms": result.ExecutionTimeMs,
		})
		e.publish(execCtx, "task_completed", map[string]interface{}{"task_id": task.ID})
	} else {
		e.logEvent("task_failed", map[string]interface{}{
			"task_id":          task.ID,
			"primary_agent_id": assignment.PrimaryAgentID,
			"error":            result.Error,
		})
		e.publish(execCtx, "task_failed", map[string]interface{}{"task_id": task.ID, "error": result.Error})
	}

	return result
}

type selection struct {
	primary     string
	supporting  []string
	alternative bool
}

// selectAgents resolves the rule for the task type, falling back to the
// analyzer's preferred agent. A busy primary is replaced with the best idle
// agent sharing a required capability. Supporters are best effort.
func (e *Engine) selectAgents(task *Task) (*selection, error) {
	var preferred string
	var required, wanted []string

	if rule, ok := e.rules.Lookup(task.Type); ok {
		preferred = rule.PrimaryAgentID
		required = rule.RequiredCapabilities
		wanted = rule.SupportingAgentIDs
	} else {
		preferred = task.PreferredAgentID
		required = task.RequiredCapabilities
		wanted = task.SuggestedSupportingIDs
		if len(required) == 0 && preferred != "" {
			if agent, ok := e.registry.Get(preferred); ok {
				required = agent.Capabilities
			}
		}
	}

	if preferred == "" && len(required) == 0 {
		return nil, fmt.Errorf("%w: no agent matches task type %q", ErrNoAvailableAgent, task.Type)
	}

	sel := &selection{}
	if preferred != "" && e.registry.IsIdle(preferred) {
		sel.primary = preferred
	} else {
		idle := e.registry.ListIdle(required)
		if len(idle) == 0 {
			return nil, fmt.Errorf("%w: no idle agent with any of [%s]", ErrNoAvailableAgent, strings.Join(required, ", "))
		}
		sel.primary = idle[0].ID
		sel.alternative = preferred != ""
	}

	seen := map[string]bool{sel.primary: true}
	for _, id := range wanted {
		if seen[id] || !e.registry.IsIdle(id) {
			continue
		}
		seen[id] = true
		sel.supporting = append(sel.supporting, id)
	}

	return sel, nil
}

// assign re-runs selection after admission and performs the registry
// transitions. On any rejected transition the partial assignment is rolled back.
func (e *Engine) assign(task *Task) (*Assignment, error) {
	e.assignMu.Lock()
	defer e.assignMu.Unlock()

	sel, err := e.selectAgents(task)
	if err != nil {
		return nil, err
	}

	if sel.alternative {
		e.logEvent("alternative_agent_selected", map[string]interface{}{
			"task_id":  task.ID,
			"type":     task.Type,
			"agent_id": sel.primary,
		})
	}

	if err := e.registry.MarkAssigned(sel.primary, task.ID, registry.RolePrimary); err != nil {
		log.Printf("[Orchestrator] Assignment of task %s rejected: %v", task.ID, err)
		return nil, err
	}

	assigned := []string{sel.primary}
	for _, id := range sel.supporting {
		if err := e.registry.MarkAssigned(id, task.ID, registry.RoleSupporting); err != nil {
			log.Printf("[Orchestrator] Assignment of task %s rejected: %v", task.ID, err)
			e.rollback(task.ID, assigned)
			return nil, err
		}
		assigned = append(assigned, id)
	}

	assignment := &Assignment{
		TaskID:             task.ID,
		Type:               task.Type,
		Complexity:         task.Complexity,
		Priority:           task.Priority,
		PrimaryAgentID:     sel.primary,
		SupportingAgentIDs: append([]string{}, sel.supporting...),
		Status:             AssignmentActive,
		StartTime:          e.clock.Now(),
	}

	e.mu.Lock()
	e.assignments[task.ID] = assignment
	e.mu.Unlock()

	return assignment, nil
}

func (e *Engine) rollback(taskID string, agentIDs []string) {
	for _, id := range agentIDs {
		if err := e.registry.Unassign(id, taskID); err != nil {
			log.Printf("[Orchestrator] Failed to roll back %s on task %s: %v", id, taskID, err)
		}
	}
	e.logEvent("assignment_rolled_back", map[string]interface{}{
		"task_id":   taskID,
		"agent_ids": agentIDs,
	})
}

// finish releases every participant, records one memory entry each and retires
// the assignment.
func (e *Engine) finish(ctx context.Context, task *Task, a *Assignment, result *blackboard.TaskResult) {
	outcome := registry.OutcomeSuccess
	status := AssignmentCompleted
	if !result.Success {
		outcome = registry.OutcomeFailure
		status = AssignmentFailed
	}

	participants := append([]string{a.PrimaryAgentID}, a.SupportingAgentIDs...)
	for _, id := range participants {
		if err := e.registry.MarkReleased(id, task.ID, outcome); err != nil {
			log.Printf("[Orchestrator] Failed to release %s from task %s: %v", id, task.ID, err)
		}
	}

	if e.memory != nil {
		for _, id := range participants {
			if err := e.memory.Record(ctx, e.outcomeEntry(task, a, id, result)); err != nil {
				log.Printf("[Orchestrator] %v", err)
			}
		}
	}

	e.mu.Lock()
	a.Status = status
	a.EndTime = e.clock.Now()
	delete(e.assignments, task.ID)
	e.mu.Unlock()

	e.persistSnapshots(ctx, participants)
}

func (e *Engine) outcomeEntry(task *Task, a *Assignment, agentID string, result *blackboard.TaskResult) *memory.Entry {
	role := string(registry.RoleSupporting)
	if agentID == a.PrimaryAgentID {
		role = string(registry.RolePrimary)
	}

	tag := memory.TagSuccess
	outcome := "success"
	content := fmt.Sprintf("Completed %s task: %s", task.Type, task.Text)
	if !result.Success {
		tag = memory.TagFailure
		outcome = "failure"
		content = fmt.Sprintf("Failed %s task: %s", task.Type, task.Text)
	}

	tags := []string{tag}
	if task.Type != "" {
		tags = append(tags, task.Type)
	}

	meta := map[string]string{
		memory.MetaOutcome:  outcome,
		memory.MetaStrategy: strategy(a),
		memory.MetaDomain:   task.Type,
		memory.MetaTaskID:   task.ID,
		memory.MetaRole:     role,
	}
	if result.Error != "" {
		meta[memory.MetaError] = result.Error
	}

	return &memory.Entry{
		AgentID:    agentID,
		Type:       blackboard.MemoryTypeOutcome,
		Content:    content,
		Metadata:   meta,
		Importance: memory.OutcomeImportance(result.Success, task.Confidence),
		Tags:       tags,
	}
}

// strategy names the agent line-up that ran the task.
func strategy(a *Assignment) string {
	if len(a.SupportingAgentIDs) == 0 {
		return fmt.Sprintf("%s solo at %s complexity", a.PrimaryAgentID, a.Complexity)
	}
	return fmt.Sprintf("%s with %s at %s complexity", a.PrimaryAgentID, strings.Join(a.SupportingAgentIDs, "+"), a.Complexity)
}

func (e *Engine) fail(result *blackboard.TaskResult, err error, start time.Time) *blackboard.TaskResult {
	result.Success = false
	result.Error = err.Error()
	result.ErrorKind = string(kindOf(err))
	result.ExecutionTimeMs = e.clock.Now().Sub(start).Milliseconds()

	e.logEvent("task_rejected", map[string]interface{}{
		"task_id":    result.TaskID,
		"type":       result.Type,
		"error_kind": result.ErrorKind,
		"error":      result.Error,
	})
	return result
}

func (e *Engine) executorAgent(id string) executor.Agent {
	agent, ok := e.registry.Get(id)
	if !ok {
		return executor.Agent{ID: id, Name: id}
	}
	return executor.Agent{
		ID:             agent.ID,
		Name:           agent.Name,
		Specialization: agent.Specialization,
		Performance:    agent.Performance,
	}
}

// ActiveAssignments returns the in-flight assignments ordered by start time.
func (e *Engine) ActiveAssignments() []*Assignment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Assignment, 0, len(e.assignments))
	for _, a := range e.assignments {
		c := *a
		c.SupportingAgentIDs = append([]string{}, a.SupportingAgentIDs...)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// QueueLength returns the number of tasks waiting for admission.
func (e *Engine) QueueLength() int {
	return e.admission.queued()
}

// AgentSnapshots returns the registry's monitoring view.
func (e *Engine) AgentSnapshots() []*blackboard.AgentSnapshot {
	return e.registry.Snapshots()
}

// Run consumes requests from the blackboard request queue until ctx is
// cancelled. Each task request is coordinated in its own goroutine; admission
// control bounds how many execute at once. Run waits for in-flight tasks
// before returning.
func (e *Engine) Run(ctx context.Context) error {
	if e.board == nil {
		return fmt.Errorf("engine has no blackboard client")
	}

	log.Printf("[Orchestrator] Starting for instance '%s'", e.instanceName)
	e.persistSnapshots(ctx, nil)

	defer e.inflight.Wait()

	for {
		if ctx.Err() != nil {
			log.Printf("[Orchestrator] Shutting down...")
			return nil
		}

		req, err := e.board.DequeueRequest(ctx, e.pollTimeout)
		if err != nil {
			if blackboard.IsNotFound(err) {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Printf("[Orchestrator] Shutting down...")
				return nil
			}
			log.Printf("[Orchestrator] Failed to dequeue request: %v", err)
			if err := clock.Sleep(ctx, e.clock, time.Second); err != nil {
				return nil
			}
			continue
		}

		e.logEvent("request_received", map[string]interface{}{
			"request_id": req.ID,
			"kind":       string(req.Kind),
		})

		switch req.Kind {
		case blackboard.RequestKindTask:
			e.inflight.Add(1)
			go func(req *blackboard.Request) {
				defer e.inflight.Done()
				e.handleTaskRequest(ctx, req)
			}(req)

		case blackboard.RequestKindGoal:
			e.handleGoalRequest(ctx, req)

		case blackboard.RequestKindCancelGoal:
			e.handleCancelRequest(ctx, req)

		default:
			log.Printf("[Orchestrator] Ignoring request %s with unknown kind %q", req.ID, req.Kind)
		}
	}
}

func (e *Engine) handleTaskRequest(ctx context.Context, req *blackboard.Request) {
	hints := Hints{
		ID:                   req.ID,
		Type:                 req.Type,
		Priority:             req.Priority,
		RequiredCapabilities: req.RequiredCapabilities,
	}
	if req.Complexity != "" {
		c, err := analyzer.ParseComplexity(req.Complexity)
		if err != nil {
			log.Printf("[Orchestrator] Request %s: %v", req.ID, err)
		} else {
			hints.Complexity = c
		}
	}

	result := e.Submit(ctx, req.Text, hints)

	if err := e.board.StoreTaskResult(context.WithoutCancel(ctx), result, e.resultTTL); err != nil {
		log.Printf("[Orchestrator] Failed to store result for task %s: %v", result.TaskID, err)
	}
}

func (e *Engine) handleGoalRequest(ctx context.Context, req *blackboard.Request) {
	if e.goals == nil {
		log.Printf("[Orchestrator] Dropping goal request %s: goal scheduler not running", req.ID)
		return
	}

	goalID, err := e.goals.CreateGoal(ctx, goals.Spec{
		ID:          req.ID,
		Description: req.Text,
		Type:        req.Type,
		Priority:    req.Priority,
		Steps:       req.Steps,
		Deadline:    req.Deadline,
	})
	if err != nil {
		log.Printf("[Orchestrator] Failed to create goal from request %s: %v", req.ID, err)
		return
	}

	e.logEvent("goal_created", map[string]interface{}{
		"request_id": req.ID,
		"goal_id":    goalID,
	})
}

func (e *Engine) handleCancelRequest(ctx context.Context, req *blackboard.Request) {
	if e.goals == nil {
		log.Printf("[Orchestrator] Dropping cancel request %s: goal scheduler not running", req.ID)
		return
	}

	if err := e.goals.Cancel(ctx, req.GoalID); err != nil {
		log.Printf("[Orchestrator] Failed to cancel goal %s: %v", req.GoalID, err)
		return
	}

	e.logEvent("goal_cancelled", map[string]interface{}{
		"request_id": req.ID,
		"goal_id":    req.GoalID,
	})
}

// persistSnapshots writes agent snapshots to the blackboard for the CLI.
// A nil list writes every agent.
func (e *Engine) persistSnapshots(ctx context.Context, agentIDs []string) {
	if e.board == nil {
		return
	}

	wanted := make(map[string]bool, len(agentIDs))
	for _, id := range agentIDs {
		wanted[id] = true
	}

	for _, s := range e.registry.Snapshots() {
		if agentIDs != nil && !wanted[s.AgentID] {
			continue
		}
		if err := e.board.SaveAgentSnapshot(ctx, s); err != nil {
			log.Printf("[Orchestrator] Failed to save snapshot for %s: %v", s.AgentID, err)
		}
	}
}

// publish emits a workflow event. Failures are logged and otherwise ignored.
func (e *Engine) publish(ctx context.Context, event string, data map[string]interface{}) {
	if e.board == nil {
		return
	}
	if err := e.board.PublishWorkflowEvent(ctx, event, data); err != nil {
		log.Printf("[Orchestrator] Failed to publish %s: %v", event, err)
	}
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "orchestrator"
	data["event_type"] = eventType
	data["instance"] = e.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Orchestrator] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
