package blackboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func newMemoryEntry(agentID string, ts time.Time) *MemoryEntry {
	return &MemoryEntry{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Type:       MemoryTypeOutcome,
		Content:    "navigated to example.com",
		Metadata:   map[string]string{"outcome": "success"},
		Importance: 6,
		Tags:       []string{"success", "navigation"},
		Timestamp:  ts,
	}
}

func newGoal(description string, created time.Time) *Goal {
	return &Goal{
		ID:             uuid.New().String(),
		Description:    description,
		Type:           "research",
		Priority:       5,
		Status:         GoalStatusActive,
		Steps:          []string{"collect", "summarise"},
		CompletedSteps: []string{},
		FailedSteps:    []string{},
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestClose(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)

	assert.NoError(t, client.Close())
}

func TestRecordMemory(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("writes hash and both timelines", func(t *testing.T) {
		entry := newMemoryEntry("navigation_specialist", time.Now().UTC())
		require.NoError(t, client.RecordMemory(ctx, entry))

		assert.True(t, mr.Exists(MemoryKey("test-instance", entry.ID)))

		require.NotZero(t, entry.Seq)
		member := TimelineMember(entry.Seq, entry.ID)

		agentMembers, err := mr.ZMembers(AgentMemoryTimelineKey("test-instance", entry.AgentID))
		require.NoError(t, err)
		assert.Contains(t, agentMembers, member)

		globalMembers, err := mr.ZMembers(MemoryTimelineKey("test-instance"))
		require.NoError(t, err)
		assert.Contains(t, globalMembers, member)
	})

	t.Run("rejects invalid entry", func(t *testing.T) {
		entry := newMemoryEntry("", time.Now())
		err := client.RecordMemory(ctx, entry)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid memory entry")
	})

	t.Run("round trips through GetMemory", func(t *testing.T) {
		entry := newMemoryEntry("form_filler", time.Now().UTC().Truncate(time.Millisecond))
		require.NoError(t, client.RecordMemory(ctx, entry))

		got, err := client.GetMemory(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
	})

	t.Run("missing entry is not found", func(t *testing.T) {
		_, err := client.GetMemory(ctx, uuid.New().String())
		assert.True(t, IsNotFound(err))
	})
}

func TestAgentMemoryIDs(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := newMemoryEntry("research_agent", base.Add(-2*time.Hour))
	sameMsA := newMemoryEntry("research_agent", base)
	sameMsB := newMemoryEntry("research_agent", base)
	other := newMemoryEntry("form_filler", base)

	for _, e := range []*MemoryEntry{older, sameMsA, sameMsB, other} {
		require.NoError(t, client.RecordMemory(ctx, e))
	}

	t.Run("newest first with insertion order breaking ties", func(t *testing.T) {
		ids, err := client.AgentMemoryIDs(ctx, "research_agent", time.Time{})
		require.NoError(t, err)
		assert.Equal(t, []string{sameMsB.ID, sameMsA.ID, older.ID}, ids)
	})

	t.Run("since excludes older entries", func(t *testing.T) {
		ids, err := client.AgentMemoryIDs(ctx, "research_agent", base.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []string{sameMsB.ID, sameMsA.ID}, ids)
	})

	t.Run("unknown agent has empty timeline", func(t *testing.T) {
		ids, err := client.AgentMemoryIDs(ctx, "nobody", time.Time{})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestAgentMemoryIDs_SameMillisecondOrdering(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	// Second writer on the same instance, as the CLI and daemon are
	other, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	// Start just below the point where a per-millisecond counter of 1000 would wrap
	mr.Set(MemorySeqKey("test-instance"), "997")

	ts := time.Now().UTC().Truncate(time.Millisecond)
	var recorded []string
	for i := 0; i < 6; i++ {
		writer := client
		if i%2 == 1 {
			writer = other
		}
		entry := newMemoryEntry("research_analyst", ts)
		require.NoError(t, writer.RecordMemory(ctx, entry))
		recorded = append(recorded, entry.ID)
	}

	ids, err := client.AgentMemoryIDs(ctx, "research_analyst", time.Time{})
	require.NoError(t, err)

	newestFirst := make([]string, len(recorded))
	for i, id := range recorded {
		newestFirst[len(recorded)-1-i] = id
	}
	assert.Equal(t, newestFirst, ids)
}

func TestMemoryIDsBeforeAndDelete(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := newMemoryEntry("data_extractor", now.Add(-200*time.Hour))
	fresh := newMemoryEntry("data_extractor", now)
	require.NoError(t, client.RecordMemory(ctx, old))
	require.NoError(t, client.RecordMemory(ctx, fresh))

	ids, err := client.MemoryIDsBefore(ctx, now.Add(-168*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, ids)

	require.NoError(t, client.DeleteMemory(ctx, old))
	assert.False(t, mr.Exists(MemoryKey("test-instance", old.ID)))

	remaining, err := client.AgentMemoryIDs(ctx, "data_extractor", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID}, remaining)

	ids, err = client.MemoryIDsBefore(ctx, now.Add(-168*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGoals(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	created := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("save and get", func(t *testing.T) {
		goal := newGoal("compile market report", created)
		deadline := created.Add(time.Hour)
		goal.Deadline = &deadline
		goal.Progress = 12.5

		require.NoError(t, client.SaveGoal(ctx, goal))

		got, err := client.GetGoal(ctx, goal.ID)
		require.NoError(t, err)
		assert.Equal(t, goal, got)
	})

	t.Run("rejects invalid priority", func(t *testing.T) {
		goal := newGoal("bad", created)
		goal.Priority = 11
		err := client.SaveGoal(ctx, goal)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid goal")
	})

	t.Run("missing goal is not found", func(t *testing.T) {
		_, err := client.GetGoal(ctx, uuid.New().String())
		assert.True(t, IsNotFound(err))
	})

	t.Run("list orders by creation time", func(t *testing.T) {
		c2, _ := setupTestClient(t)
		second := newGoal("second", created.Add(time.Minute))
		first := newGoal("first", created)
		require.NoError(t, c2.SaveGoal(ctx, second))
		require.NoError(t, c2.SaveGoal(ctx, first))

		goals, err := c2.ListGoals(ctx)
		require.NoError(t, err)
		require.Len(t, goals, 2)
		assert.Equal(t, "first", goals[0].Description)
		assert.Equal(t, "second", goals[1].Description)
	})

	t.Run("scan by prefix", func(t *testing.T) {
		c3, _ := setupTestClient(t)
		goal := newGoal("prefixed", created)
		require.NoError(t, c3.SaveGoal(ctx, goal))
		require.NoError(t, c3.SaveGoal(ctx, newGoal("other", created)))

		ids, err := c3.ScanGoalIDs(ctx, goal.ID[:13])
		require.NoError(t, err)
		assert.Equal(t, []string{goal.ID}, ids)

		ids, err = c3.ScanGoalIDs(ctx, "")
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	})
}

func TestAgentSnapshots(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	lastActive := time.Now().UTC().Truncate(time.Millisecond)
	snapshots := []*AgentSnapshot{
		{AgentID: "research_agent", Name: "Research Agent", Specialization: "research", Status: "idle", Performance: 0.9, HealthScore: 1, ActiveTasks: []string{}, LastActive: lastActive},
		{AgentID: "form_filler", Name: "Form Filler", Specialization: "forms", Status: "busy", Performance: 0.85, HealthScore: 0.98, ActiveTasks: []string{"t-1"}, CompletedTasks: 3, FailedTasks: 1, LastActive: lastActive},
	}
	for _, s := range snapshots {
		require.NoError(t, client.SaveAgentSnapshot(ctx, s))
	}

	got, err := client.ListAgentSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, snapshots[1], got[0])
	assert.Equal(t, snapshots[0], got[1])

	err = client.SaveAgentSnapshot(ctx, &AgentSnapshot{})
	assert.Error(t, err)
}

func TestRequestQueue(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	first := &Request{ID: uuid.New().String(), Kind: RequestKindTask, Text: "navigate to example.com", CreatedAtMs: 1}
	second := &Request{ID: uuid.New().String(), Kind: RequestKindGoal, Text: "weekly digest", Priority: 4, Steps: []string{"gather"}, CreatedAtMs: 2}

	require.NoError(t, client.EnqueueRequest(ctx, first))
	require.NoError(t, client.EnqueueRequest(ctx, second))

	pending, err := client.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	got, err := client.DequeueRequest(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, RequestKindTask, got.Kind)

	got, err = client.DequeueRequest(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, []string{"gather"}, got.Steps)

	t.Run("empty queue times out as not found", func(t *testing.T) {
		_, err := client.DequeueRequest(ctx, time.Second)
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects invalid request", func(t *testing.T) {
		err := client.EnqueueRequest(ctx, &Request{ID: uuid.New().String(), Kind: RequestKindTask})
		assert.Error(t, err)
	})
}

func TestTaskResults(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	result := &TaskResult{
		TaskID:             uuid.New().String(),
		Success:            true,
		Result:             "done",
		PrimaryAgentID:     "navigation_specialist",
		SupportingAgentIDs: []string{"data_extractor"},
		ExecutionTimeMs:    1200,
		Confidence:         92,
		Complexity:         "high",
		Type:               "navigation",
	}

	require.NoError(t, client.StoreTaskResult(ctx, result, time.Hour))

	got, err := client.GetTaskResult(ctx, result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, result, got)

	mr.FastForward(2 * time.Hour)
	_, err = client.GetTaskResult(ctx, result.TaskID)
	assert.True(t, IsNotFound(err), "result should expire after its TTL")
}

func TestSubscribeWorkflowEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("receives published events", func(t *testing.T) {
		sub, err := client.SubscribeWorkflowEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		err = client.PublishWorkflowEvent(ctx, "task_completed", map[string]interface{}{
			"task_id": "t-1",
			"success": true,
		})
		require.NoError(t, err)

		select {
		case event := <-sub.Events():
			assert.Equal(t, "task_completed", event.Event)
			assert.Equal(t, "t-1", event.Data["task_id"])
			assert.Equal(t, true, event.Data["success"])
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for event")
		}
	})

	t.Run("cleanup on Close", func(t *testing.T) {
		sub, err := client.SubscribeWorkflowEvents(ctx)
		require.NoError(t, err)

		assert.NoError(t, sub.Close())
		// Calling Close again should be safe
		assert.NoError(t, sub.Close())
	})

	t.Run("cleanup on context cancellation", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)

		sub, err := client.SubscribeWorkflowEvents(cancelCtx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "channel should be closed")
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for channel close")
		}
	})
}

func TestSubscriptionErrorChannel(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeWorkflowEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	mr.Publish(WorkflowEventsChannel("test-instance"), "not json")

	select {
	case err := <-sub.Errors():
		assert.Contains(t, err.Error(), "failed to unmarshal workflow event")
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for error")
	}
}

func TestInstanceNamespacing(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	ctx := context.Background()

	a, err := NewClient(&redis.Options{Addr: mr.Addr()}, "instance-a")
	require.NoError(t, err)
	defer a.Close()

	b, err := NewClient(&redis.Options{Addr: mr.Addr()}, "instance-b")
	require.NoError(t, err)
	defer b.Close()

	goal := newGoal("isolated", time.Now().UTC())
	require.NoError(t, a.SaveGoal(ctx, goal))

	_, err = b.GetGoal(ctx, goal.ID)
	assert.True(t, IsNotFound(err), "instance-b must not see instance-a goals")

	goals, err := b.ListGoals(ctx)
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(redis.Nil))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(assert.AnError))
}
