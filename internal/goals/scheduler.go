// Package goals runs autonomous goals: long-lived units of work that advance on
// periodic ticks until they reach 100% progress.
//
// All pending ticks live in one min-heap keyed by next-tick time and are
// dispatched by a single loop driven by an injectable clock. Each due tick runs
// on its own goroutine, so a slow step only delays its own goal.
package goals

import (
	"container/heap"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
)

var (
	// ErrGoalNotFound is returned for unknown goal IDs.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrGoalNotActive is returned when cancelling a goal that already finished.
	ErrGoalNotActive = errors.New("goal is not active")
)

// Store persists goals.
type Store interface {
	SaveGoal(ctx context.Context, g *blackboard.Goal) error
	GetGoal(ctx context.Context, goalID string) (*blackboard.Goal, error)
	ListGoals(ctx context.Context) ([]*blackboard.Goal, error)
}

// Publisher emits workflow events.
type Publisher interface {
	PublishWorkflowEvent(ctx context.Context, event string, data map[string]interface{}) error
}

// StepRunner executes one named goal step. A false result or an error marks the
// step failed; the goal still progresses.
type StepRunner interface {
	RunStep(ctx context.Context, goal *blackboard.Goal, step string) (bool, error)
}

// Spec describes a goal to create.
type Spec struct {
	ID          string // optional; must be a UUID when set
	Description string
	Type        string
	Priority    int
	Steps       []string
	Deadline    *time.Time
}

// Options configures a Scheduler. Zero durations and increments take defaults.
type Options struct {
	Store        Store
	Publisher    Publisher
	Runner       StepRunner
	Clock        clock.Clock
	InstanceName string

	InitialDelay    time.Duration // default 5s
	TickInterval    time.Duration // default 30s
	SummaryInterval time.Duration // default 5m
	MinIncrement    float64       // default 5
	MaxIncrement    float64       // default 15

	Rand *rand.Rand
	Seed int64 // used when Rand is nil; 0 seeds from the wall clock
}

// Scheduler owns every goal's progression.
type Scheduler struct {
	store        Store
	publisher    Publisher
	runner       StepRunner
	clock        clock.Clock
	instanceName string

	initialDelay    time.Duration
	tickInterval    time.Duration
	summaryInterval time.Duration
	minIncrement    float64
	maxIncrement    float64

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.Mutex
	goals     map[string]*blackboard.Goal
	queue     tickQueue
	scheduled map[string]*tickItem
	running   map[string]bool
	seq       uint64

	inflight sync.WaitGroup

	wake chan struct{}
}

// NewScheduler creates a scheduler.
func NewScheduler(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.InitialDelay == 0 {
		opts.InitialDelay = 5 * time.Second
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = 30 * time.Second
	}
	if opts.SummaryInterval == 0 {
		opts.SummaryInterval = 5 * time.Minute
	}
	if opts.MinIncrement == 0 {
		opts.MinIncrement = 5
	}
	if opts.MaxIncrement == 0 {
		opts.MaxIncrement = 15
	}
	if opts.MaxIncrement < opts.MinIncrement {
		opts.MaxIncrement = opts.MinIncrement
	}

	rng := opts.Rand
	if rng == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	return &Scheduler{
		store:           opts.Store,
		publisher:       opts.Publisher,
		runner:          opts.Runner,
		clock:           opts.Clock,
		instanceName:    opts.InstanceName,
		initialDelay:    opts.InitialDelay,
		tickInterval:    opts.TickInterval,
		summaryInterval: opts.SummaryInterval,
		minIncrement:    opts.MinIncrement,
		maxIncrement:    opts.MaxIncrement,
		rng:             rng,
		goals:           make(map[string]*blackboard.Goal),
		scheduled:       make(map[string]*tickItem),
		running:         make(map[string]bool),
		wake:            make(chan struct{}, 1),
	}
}

// SetRunner replaces the step runner. Call it before Run or CreateGoal.
func (s *Scheduler) SetRunner(r StepRunner) {
	s.runner = r
}

// CreateGoal validates and persists a new active goal and schedules its first tick.
func (s *Scheduler) CreateGoal(ctx context.Context, spec Spec) (string, error) {
	id := spec.ID
	if id == "" {
		id = uuid.New().String()
	}

	now := s.clock.Now().UTC()
	g := &blackboard.Goal{
		ID:             id,
		Description:    spec.Description,
		Type:           spec.Type,
		Priority:       spec.Priority,
		Status:         blackboard.GoalStatusActive,
		Progress:       0,
		Steps:          append([]string{}, spec.Steps...),
		CompletedSteps: []string{},
		FailedSteps:    []string{},
		Deadline:       spec.Deadline,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if g.Type == "" {
		g.Type = "general"
	}

	if err := g.Validate(); err != nil {
		return "", fmt.Errorf("invalid goal: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.goals[id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("goal %s already exists", id)
	}
	if err := s.store.SaveGoal(ctx, g); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("failed to save goal: %w", err)
	}
	s.goals[id] = g
	s.scheduleLocked(id, s.clock.Now().Add(s.initialDelay))
	s.mu.Unlock()

	s.notify()

	s.logEvent("goal_created", map[string]interface{}{
		"goal_id":  id,
		"type":     g.Type,
		"priority": g.Priority,
		"steps":    len(g.Steps),
	})

	return id, nil
}

// Tick advances one goal. It does nothing unless the goal is active. The next
// pending step runs through the StepRunner, then progress grows by a random
// increment and the goal completes at 100. While steps are still pending,
// progress is held at the share of steps already run. When the new state
// cannot be persisted the tick is discarded and the goal stays as it was.
//
// Tick blocks for the duration of the step; RunDue runs ticks concurrently.
func (s *Scheduler) Tick(ctx context.Context, goalID string) error {
	s.mu.Lock()
	current, ok := s.goals[goalID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	if current.Status != blackboard.GoalStatusActive {
		s.mu.Unlock()
		return nil
	}
	next := cloneGoal(current)
	s.mu.Unlock()

	if step := nextStep(next); step != "" && s.runner != nil {
		ok, err := s.runner.RunStep(ctx, next, step)
		if err != nil {
			log.Printf("[Goals] Step %q of goal %s failed: %v", step, goalID, err)
		}
		if ok && err == nil {
			next.CompletedSteps = append(next.CompletedSteps, step)
		} else {
			next.FailedSteps = append(next.FailedSteps, step)
		}
	}

	prev := next.Progress
	next.Progress += s.increment()
	if s.runner != nil && nextStep(next) != "" {
		ran := len(next.CompletedSteps) + len(next.FailedSteps)
		ceiling := max(100*float64(ran)/float64(len(next.Steps)), prev)
		next.Progress = min(next.Progress, ceiling)
	}
	if next.Progress >= 100 {
		next.Progress = 100
		next.Status = blackboard.GoalStatusCompleted
	}
	next.TickCount++
	next.UpdatedAt = s.clock.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Cancelled while the step was running.
	if s.goals[goalID].Status != blackboard.GoalStatusActive {
		return nil
	}

	if err := s.store.SaveGoal(ctx, next); err != nil {
		s.logEvent("goal_tick_skipped", map[string]interface{}{
			"goal_id": goalID,
			"error":   err.Error(),
		})
		return fmt.Errorf("failed to persist goal %s: %w", goalID, err)
	}
	s.goals[goalID] = next

	if next.Status == blackboard.GoalStatusCompleted {
		s.logEvent("goal_completed", map[string]interface{}{
			"goal_id":         goalID,
			"ticks":           next.TickCount,
			"completed_steps": len(next.CompletedSteps),
			"failed_steps":    len(next.FailedSteps),
		})
		s.publish(ctx, "goal_completed", map[string]interface{}{"goal_id": goalID})
	}

	return nil
}

// RunDue starts every tick due at the clock's current time and returns how many
// it started. Ticks run on their own goroutines; a goal never has more than one
// tick in flight. Goals still active when their tick finishes are re-armed one
// TickInterval after the tick was due to start. Use Wait to block until the
// started ticks finish.
func (s *Scheduler) RunDue(ctx context.Context) int {
	now := s.clock.Now()
	started := 0

	for {
		s.mu.Lock()
		item := s.queue.peek()
		if item == nil || item.at.After(now) {
			s.mu.Unlock()
			return started
		}
		heap.Pop(&s.queue)
		delete(s.scheduled, item.goalID)
		if s.running[item.goalID] {
			// Re-armed when the running tick finishes.
			s.mu.Unlock()
			continue
		}
		s.running[item.goalID] = true
		s.inflight.Add(1)
		s.mu.Unlock()

		started++
		go s.runTick(ctx, item.goalID, now)
	}
}

// Wait blocks until every tick started by RunDue has finished.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

func (s *Scheduler) runTick(ctx context.Context, goalID string, dispatched time.Time) {
	defer s.inflight.Done()

	if err := s.Tick(ctx, goalID); err != nil {
		log.Printf("[Goals] Tick for goal %s skipped: %v", goalID, err)
	}

	s.mu.Lock()
	delete(s.running, goalID)
	if g, ok := s.goals[goalID]; ok && g.Status == blackboard.GoalStatusActive {
		s.scheduleLocked(goalID, dispatched.Add(s.tickInterval))
	}
	s.mu.Unlock()

	s.notify()
}

// Run drives the scheduler until ctx is cancelled, logging and publishing a
// progress summary every SummaryInterval.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("[Goals] Scheduler started (tick interval %s)", s.tickInterval)
	nextSummary := s.clock.Now().Add(s.summaryInterval)

	for {
		s.RunDue(ctx)

		now := s.clock.Now()
		if !now.Before(nextSummary) {
			s.reportSummary(ctx)
			nextSummary = now.Add(s.summaryInterval)
		}

		wait := nextSummary.Sub(now)
		if due, ok := s.NextDue(); ok && due.Sub(now) < wait {
			wait = due.Sub(now)
		}

		select {
		case <-ctx.Done():
			s.Wait()
			log.Printf("[Goals] Scheduler stopped")
			return nil
		case <-s.wake:
		case <-s.clock.After(wait):
		}
	}
}

// NextDue returns the time of the earliest pending tick.
func (s *Scheduler) NextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.queue.peek()
	if item == nil {
		return time.Time{}, false
	}
	return item.at, true
}

// Cancel marks an active goal failed and stops its ticks.
func (s *Scheduler) Cancel(ctx context.Context, goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.goals[goalID]
	if !ok {
		stored, err := s.store.GetGoal(ctx, goalID)
		if blackboard.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
		}
		if err != nil {
			return fmt.Errorf("failed to load goal %s: %w", goalID, err)
		}
		current = stored
	}
	if current.Status != blackboard.GoalStatusActive {
		return fmt.Errorf("%w: %s is %s", ErrGoalNotActive, goalID, current.Status)
	}

	next := cloneGoal(current)
	next.Status = blackboard.GoalStatusFailed
	next.UpdatedAt = s.clock.Now().UTC()

	if err := s.store.SaveGoal(ctx, next); err != nil {
		return fmt.Errorf("failed to save goal %s: %w", goalID, err)
	}
	s.goals[goalID] = next

	if item, ok := s.scheduled[goalID]; ok {
		heap.Remove(&s.queue, item.index)
		delete(s.scheduled, goalID)
	}

	s.logEvent("goal_cancelled", map[string]interface{}{
		"goal_id":  goalID,
		"progress": next.Progress,
	})
	s.publish(ctx, "goal_cancelled", map[string]interface{}{"goal_id": goalID})
	return nil
}

// Get returns a copy of the goal's current state.
func (s *Scheduler) Get(ctx context.Context, goalID string) (*blackboard.Goal, error) {
	s.mu.Lock()
	g, ok := s.goals[goalID]
	s.mu.Unlock()
	if ok {
		return cloneGoal(g), nil
	}

	g, err := s.store.GetGoal(ctx, goalID)
	if blackboard.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	return g, err
}

// List returns every stored goal.
func (s *Scheduler) List(ctx context.Context) ([]*blackboard.Goal, error) {
	return s.store.ListGoals(ctx)
}

// MonitorGoalProgress summarizes every stored goal.
func (s *Scheduler) MonitorGoalProgress(ctx context.Context) (Summary, error) {
	all, err := s.store.ListGoals(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list goals: %w", err)
	}
	return Summarize(all, s.clock.Now()), nil
}

// Restore loads active goals from the store and schedules each one's next tick
// after the initial delay. It returns the number of goals re-armed.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	all, err := s.store.ListGoals(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list goals: %w", err)
	}

	s.mu.Lock()
	restored := 0
	first := s.clock.Now().Add(s.initialDelay)
	for _, g := range all {
		if g.Status != blackboard.GoalStatusActive {
			continue
		}
		if _, known := s.goals[g.ID]; known {
			continue
		}
		s.goals[g.ID] = g
		s.scheduleLocked(g.ID, first)
		restored++
	}
	s.mu.Unlock()

	if restored > 0 {
		s.notify()
		log.Printf("[Goals] Restored %d active goal(s)", restored)
	}
	return restored, nil
}

func (s *Scheduler) reportSummary(ctx context.Context) {
	summary, err := s.MonitorGoalProgress(ctx)
	if err != nil {
		log.Printf("[Goals] Failed to summarize goals: %v", err)
		return
	}

	s.logEvent("goal_progress", summary.fields())
	s.publish(ctx, "goal_progress", summary.fields())
}

func (s *Scheduler) scheduleLocked(goalID string, at time.Time) {
	if item, ok := s.scheduled[goalID]; ok {
		item.at = at
		heap.Fix(&s.queue, item.index)
		return
	}
	s.seq++
	item := &tickItem{goalID: goalID, at: at, seq: s.seq}
	heap.Push(&s.queue, item)
	s.scheduled[goalID] = item
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) increment() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.minIncrement + s.rng.Float64()*(s.maxIncrement-s.minIncrement)
}

func (s *Scheduler) publish(ctx context.Context, event string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishWorkflowEvent(ctx, event, data); err != nil {
		log.Printf("[Goals] Failed to publish %s: %v", event, err)
	}
}

// logEvent logs a structured event in JSON format.
func (s *Scheduler) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "goals"
	data["event_type"] = eventType
	data["instance"] = s.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Goals] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}

// nextStep returns the first step that has neither completed nor failed.
func nextStep(g *blackboard.Goal) string {
	done := make(map[string]int, len(g.CompletedSteps)+len(g.FailedSteps))
	for _, s := range g.CompletedSteps {
		done[s]++
	}
	for _, s := range g.FailedSteps {
		done[s]++
	}
	for _, s := range g.Steps {
		if done[s] > 0 {
			done[s]--
			continue
		}
		return s
	}
	return ""
}

func cloneGoal(g *blackboard.Goal) *blackboard.Goal {
	c := *g
	c.Steps = append([]string{}, g.Steps...)
	c.CompletedSteps = append([]string{}, g.CompletedSteps...)
	c.FailedSteps = append([]string{}, g.FailedSteps...)
	if g.Deadline != nil {
		d := *g.Deadline
		c.Deadline = &d
	}
	return &c
}
