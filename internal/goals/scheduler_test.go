package goals

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupTestClient(t *testing.T) *blackboard.Client {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// flakyStore fails SaveGoal while failing is set.
type flakyStore struct {
	Store
	mu      sync.Mutex
	failing bool
}

func (f *flakyStore) SaveGoal(ctx context.Context, g *blackboard.Goal) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("redis unavailable")
	}
	return f.Store.SaveGoal(ctx, g)
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

type recordingRunner struct {
	mu    sync.Mutex
	steps []string
	fail  map[string]bool
}

func (r *recordingRunner) RunStep(_ context.Context, _ *blackboard.Goal, step string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
	return !r.fail[step], nil
}

func newTestScheduler(t *testing.T, opts Options) (*Scheduler, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(start)
	if opts.Store == nil {
		opts.Store = setupTestClient(t)
	}
	opts.Clock = clk
	if opts.Rand == nil && opts.Seed == 0 {
		opts.Seed = 42
	}
	return NewScheduler(opts), clk
}

// runDue starts every due tick and waits for them to finish.
func runDue(ctx context.Context, s *Scheduler) int {
	n := s.RunDue(ctx)
	s.Wait()
	return n
}

// gatedRunner holds steps of the goal described by block until release closes.
type gatedRunner struct {
	block   string
	release chan struct{}

	mu    sync.Mutex
	calls map[string]int
}

func newGatedRunner(block string) *gatedRunner {
	return &gatedRunner{block: block, release: make(chan struct{}), calls: make(map[string]int)}
}

func (r *gatedRunner) RunStep(ctx context.Context, g *blackboard.Goal, _ string) (bool, error) {
	r.mu.Lock()
	r.calls[g.Description]++
	r.mu.Unlock()

	if g.Description == r.block {
		select {
		case <-r.release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return true, nil
}

func (r *gatedRunner) callCount(description string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[description]
}

func TestCreateGoal(t *testing.T) {
	s, _ := newTestScheduler(t, Options{})
	ctx := context.Background()

	id, err := s.CreateGoal(ctx, Spec{Description: "Monitor flight prices", Type: "shopping", Priority: 7})
	require.NoError(t, err)

	g, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, blackboard.GoalStatusActive, g.Status)
	assert.Equal(t, 0.0, g.Progress)
	assert.Equal(t, start, g.CreatedAt)

	due, ok := s.NextDue()
	require.True(t, ok)
	assert.Equal(t, start.Add(5*time.Second), due, "first tick after the initial delay")

	stored, err := s.store.GetGoal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Monitor flight prices", stored.Description)
}

func TestCreateGoal_Validation(t *testing.T) {
	s, _ := newTestScheduler(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		spec Spec
	}{
		{"priority too low", Spec{Description: "x", Priority: 0}},
		{"priority too high", Spec{Description: "x", Priority: 11}},
		{"empty description", Spec{Priority: 5}},
		{"bad id", Spec{ID: "not-a-uuid", Description: "x", Priority: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateGoal(ctx, tt.spec)
			assert.Error(t, err)
		})
	}

	_, ok := s.NextDue()
	assert.False(t, ok, "nothing scheduled for rejected goals")
}

func TestGoalCompletesWithMonotonicProgress(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		s, clk := newTestScheduler(t, Options{Seed: seed})
		ctx := context.Background()

		id, err := s.CreateGoal(ctx, Spec{Description: "Research topic", Priority: 5})
		require.NoError(t, err)

		assert.Equal(t, 0, runDue(ctx, s), "nothing due before the initial delay")
		clk.Advance(5 * time.Second)

		last := 0.0
		ticks := 0
		for ; ticks < 25; ticks++ {
			require.Equal(t, 1, runDue(ctx, s))

			g, err := s.Get(ctx, id)
			require.NoError(t, err)
			require.GreaterOrEqual(t, g.Progress, last, "progress never decreases")
			require.LessOrEqual(t, g.Progress, 100.0)
			last = g.Progress

			if g.Status == blackboard.GoalStatusCompleted {
				break
			}
			due, ok := s.NextDue()
			require.True(t, ok)
			assert.Equal(t, clk.Now().Add(30*time.Second), due)
			clk.Advance(30 * time.Second)
		}

		g, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, blackboard.GoalStatusCompleted, g.Status, "seed %d", seed)
		assert.Equal(t, 100.0, g.Progress)
		assert.LessOrEqual(t, g.TickCount, 20, "5 is the smallest increment")
		assert.GreaterOrEqual(t, g.TickCount, 7, "15 is the largest increment")

		_, ok := s.NextDue()
		assert.False(t, ok, "completed goals are not re-armed")
	}
}

func TestIncrementsWithinRange(t *testing.T) {
	s, _ := newTestScheduler(t, Options{Rand: rand.New(rand.NewSource(9))})
	for i := 0; i < 1000; i++ {
		inc := s.increment()
		require.GreaterOrEqual(t, inc, 5.0)
		require.Less(t, inc, 15.0)
	}
}

func TestTick_Steps(t *testing.T) {
	runner := &recordingRunner{fail: map[string]bool{"compare": true}}
	s, clk := newTestScheduler(t, Options{Runner: runner})
	ctx := context.Background()

	id, err := s.CreateGoal(ctx, Spec{Description: "Buy a laptop", Priority: 5, Steps: []string{"search", "compare", "order"}})
	require.NoError(t, err)

	clk.Advance(5 * time.Second)
	for i := 0; i < 3; i++ {
		runDue(ctx, s)
		clk.Advance(30 * time.Second)
	}

	g, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"search", "compare", "order"}, runner.steps)
	assert.Equal(t, []string{"search", "order"}, g.CompletedSteps)
	assert.Equal(t, []string{"compare"}, g.FailedSteps)
	assert.Equal(t, 3, g.TickCount)
	assert.Greater(t, g.Progress, 0.0, "failed steps still make progress")
}

func TestTick_PendingStepsHoldCompletion(t *testing.T) {
	runner := &recordingRunner{}
	s, clk := newTestScheduler(t, Options{Runner: runner, MinIncrement: 40, MaxIncrement: 40})
	ctx := context.Background()

	steps := []string{"one", "two", "three", "four", "five", "six"}
	id, err := s.CreateGoal(ctx, Spec{Description: "many steps", Priority: 5, Steps: steps})
	require.NoError(t, err)

	clk.Advance(5 * time.Second)
	last := 0.0
	for i := 0; i < len(steps); i++ {
		require.Equal(t, 1, runDue(ctx, s))
		g, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.GreaterOrEqual(t, g.Progress, last)
		last = g.Progress
		if i < len(steps)-1 {
			require.Equal(t, blackboard.GoalStatusActive, g.Status, "step %d of %d", i+1, len(steps))
			assert.InDelta(t, 100*float64(i+1)/float64(len(steps)), g.Progress, 0.001)
		}
		clk.Advance(30 * time.Second)
	}

	g, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, blackboard.GoalStatusCompleted, g.Status)
	assert.Equal(t, 100.0, g.Progress)
	assert.Equal(t, steps, runner.steps)
	assert.Equal(t, steps, g.CompletedSteps)
}

func TestTick_InactiveGoalIsNoop(t *testing.T) {
	s, _ := newTestScheduler(t, Options{})
	ctx := context.Background()

	id, err := s.CreateGoal(ctx, Spec{Description: "x", Priority: 5})
	require.NoError(t, err)
	require.NoError(t, s.Cancel(ctx, id))

	require.NoError(t, s.Tick(ctx, id))

	g, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, g.Progress)
	assert.Equal(t, 0, g.TickCount)
}

func TestTick_UnknownGoal(t *testing.T) {
	s, _ := newTestScheduler(t, Options{})
	err := s.Tick(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrGoalNotFound)
}

func TestTick_StorageFailureSkipsTick(t *testing.T) {
	store := &flakyStore{Store: setupTestClient(t)}
	s, clk := newTestScheduler(t, Options{Store: store})
	ctx := context.Background()

	id, err := s.CreateGoal(ctx, Spec{Description: "x", Priority: 5})
	require.NoError(t, err)

	store.setFailing(true)
	clk.Advance(5 * time.Second)
	assert.Equal(t, 1, runDue(ctx, s))

	g, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, blackboard.GoalStatusActive, g.Status)
	assert.Equal(t, 0.0, g.Progress, "failed tick is not committed")
	assert.Equal(t, 0, g.TickCount)

	due, ok := s.NextDue()
	require.True(t, ok, "goal is re-armed")
	assert.Equal(t, clk.Now().Add(30*time.Second), due)

	store.setFailing(false)
	clk.Advance(30 * time.Second)
	assert.Equal(t, 1, runDue(ctx, s))

	g, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, g.Progress, 0.0)
	assert.Equal(t, 1, g.TickCount)
}

func TestCancel(t *testing.T) {
	s, clk := newTestScheduler(t, Options{})
	ctx := context.Background()

	id, err := s.CreateGoal(ctx, Spec{Description: "x", Priority: 5})
	require.NoError(t, err)

	require.NoError(t, s.Cancel(ctx, id))

	g, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, blackboard.GoalStatusFailed, g.Status)

	_, ok := s.NextDue()
	assert.False(t, ok)

	clk.Advance(time.Minute)
	assert.Equal(t, 0, runDue(ctx, s))

	assert.ErrorIs(t, s.Cancel(ctx, id), ErrGoalNotActive)
	assert.ErrorIs(t, s.Cancel(ctx, uuid.New().String()), ErrGoalNotFound)
}

func TestMultipleGoalsTickIndependently(t *testing.T) {
	s, clk := newTestScheduler(t, Options{})
	ctx := context.Background()

	a, err := s.CreateGoal(ctx, Spec{Description: "a", Priority: 5})
	require.NoError(t, err)
	clk.Advance(10 * time.Second)
	b, err := s.CreateGoal(ctx, Spec{Description: "b", Priority: 5})
	require.NoError(t, err)

	// a is due at +5s, b at +15s
	assert.Equal(t, 1, runDue(ctx, s))
	ga, _ := s.Get(ctx, a)
	gb, _ := s.Get(ctx, b)
	assert.Equal(t, 1, ga.TickCount)
	assert.Equal(t, 0, gb.TickCount)

	clk.Advance(5 * time.Second)
	assert.Equal(t, 1, runDue(ctx, s))
	gb, _ = s.Get(ctx, b)
	assert.Equal(t, 1, gb.TickCount)
}

func TestRunDue_SlowStepDoesNotBlockOtherGoals(t *testing.T) {
	runner := newGatedRunner("slow")
	s, clk := newTestScheduler(t, Options{Runner: runner})
	ctx := context.Background()

	slow, err := s.CreateGoal(ctx, Spec{Description: "slow", Priority: 5, Steps: []string{"wait", "finish"}})
	require.NoError(t, err)
	fast, err := s.CreateGoal(ctx, Spec{Description: "fast", Priority: 5, Steps: []string{"fetch", "store"}})
	require.NoError(t, err)

	clk.Advance(5 * time.Second)
	require.Equal(t, 2, s.RunDue(ctx))

	require.Eventually(t, func() bool {
		g, err := s.Get(ctx, fast)
		return err == nil && g.TickCount == 1
	}, 2*time.Second, 5*time.Millisecond, "fast goal ticks while the slow step is running")

	g, err := s.Get(ctx, slow)
	require.NoError(t, err)
	assert.Equal(t, 0, g.TickCount)

	// The slow goal is not re-armed while its tick is in flight.
	clk.Advance(60 * time.Second)
	assert.Equal(t, 1, s.RunDue(ctx))
	require.Eventually(t, func() bool {
		g, err := s.Get(ctx, fast)
		return err == nil && g.TickCount == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, runner.callCount("slow"))

	close(runner.release)
	s.Wait()

	g, err = s.Get(ctx, slow)
	require.NoError(t, err)
	assert.Equal(t, 1, g.TickCount)
	assert.Equal(t, []string{"wait"}, g.CompletedSteps)

	due, ok := s.NextDue()
	require.True(t, ok, "slow goal re-armed after its tick")
	assert.Equal(t, start.Add(35*time.Second), due)
}

func TestCancel_DuringRunningStep(t *testing.T) {
	runner := newGatedRunner("slow")
	s, clk := newTestScheduler(t, Options{Runner: runner})
	ctx := context.Background()

	id, err := s.CreateGoal(ctx, Spec{Description: "slow", Priority: 5, Steps: []string{"wait"}})
	require.NoError(t, err)

	clk.Advance(5 * time.Second)
	require.Equal(t, 1, s.RunDue(ctx))
	require.Eventually(t, func() bool { return runner.callCount("slow") == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Cancel(ctx, id))
	close(runner.release)
	s.Wait()

	g, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, blackboard.GoalStatusFailed, g.Status)
	assert.Equal(t, 0, g.TickCount, "finished step does not overwrite the cancellation")

	_, ok := s.NextDue()
	assert.False(t, ok, "cancelled goals are not re-armed")
}

func TestRestore(t *testing.T) {
	store := setupTestClient(t)
	ctx := context.Background()

	first, _ := newTestScheduler(t, Options{Store: store})
	active, err := first.CreateGoal(ctx, Spec{Description: "keep going", Priority: 5})
	require.NoError(t, err)
	cancelled, err := first.CreateGoal(ctx, Spec{Description: "stop", Priority: 5})
	require.NoError(t, err)
	require.NoError(t, first.Cancel(ctx, cancelled))

	second, clk := newTestScheduler(t, Options{Store: store})
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already known goals are not re-armed twice")

	clk.Advance(5 * time.Second)
	assert.Equal(t, 1, runDue(ctx, second))

	g, err := second.Get(ctx, active)
	require.NoError(t, err)
	assert.Equal(t, 1, g.TickCount)
}

func TestMonitorGoalProgress(t *testing.T) {
	s, clk := newTestScheduler(t, Options{})
	ctx := context.Background()

	past := start.Add(time.Minute)
	_, err := s.CreateGoal(ctx, Spec{Description: "overdue", Priority: 5, Deadline: &past})
	require.NoError(t, err)
	cancelled, err := s.CreateGoal(ctx, Spec{Description: "cancelled", Priority: 5})
	require.NoError(t, err)
	require.NoError(t, s.Cancel(ctx, cancelled))

	clk.Advance(2 * time.Minute)

	summary, err := s.MonitorGoalProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Active)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Overdue)
}

func TestSummarize(t *testing.T) {
	now := start
	goals := []*blackboard.Goal{
		{Status: blackboard.GoalStatusActive, Progress: 40},
		{Status: blackboard.GoalStatusCompleted, Progress: 100},
		{Status: blackboard.GoalStatusFailed, Progress: 10},
	}

	s := Summarize(goals, now)
	assert.Equal(t, Summary{Total: 3, Active: 1, Completed: 1, Failed: 1, MeanProgress: 50}, s)

	assert.Equal(t, Summary{}, Summarize(nil, now))
}

func TestRun(t *testing.T) {
	s, clk := newTestScheduler(t, Options{InitialDelay: time.Second, TickInterval: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	id, err := s.CreateGoal(context.Background(), Spec{Description: "run loop", Priority: 5})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		clk.Advance(time.Second)
		g, err := s.Get(context.Background(), id)
		return err == nil && g.Status == blackboard.GoalStatusCompleted
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
