package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the blackboard.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new blackboard client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Warren instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
// Returns an error if Redis is not reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the namespace this client writes under.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// RecordMemory appends a memory entry: the entry hash plus its position in the
// agent timeline and the global timeline, written in one MULTI/EXEC.
func (c *Client) RecordMemory(ctx context.Context, m *MemoryEntry) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid memory entry: %w", err)
	}

	seq, err := c.rdb.Incr(ctx, MemorySeqKey(c.instanceName)).Uint64()
	if err != nil {
		return fmt.Errorf("failed to allocate memory sequence: %w", err)
	}
	m.Seq = seq

	hash, err := MemoryEntryToHash(m)
	if err != nil {
		return fmt.Errorf("failed to serialize memory entry: %w", err)
	}

	z := redis.Z{Score: TimelineScore(m.Timestamp), Member: TimelineMember(seq, m.ID)}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, MemoryKey(c.instanceName, m.ID), hash)
		pipe.ZAdd(ctx, AgentMemoryTimelineKey(c.instanceName, m.AgentID), z)
		pipe.ZAdd(ctx, MemoryTimelineKey(c.instanceName), z)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write memory entry to Redis: %w", err)
	}

	return nil
}

// GetMemory retrieves a memory entry by ID.
// Returns (nil, redis.Nil) if the entry doesn't exist.
func (c *Client) GetMemory(ctx context.Context, entryID string) (*MemoryEntry, error) {
	hashData, err := c.rdb.HGetAll(ctx, MemoryKey(c.instanceName, entryID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory entry from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	entry, err := HashToMemoryEntry(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize memory entry: %w", err)
	}

	return entry, nil
}

// AgentMemoryIDs returns the IDs of an agent's memory entries recorded at or after
// since, newest first. A zero since returns the whole timeline.
func (c *Client) AgentMemoryIDs(ctx context.Context, agentID string, since time.Time) ([]string, error) {
	min := "-inf"
	if !since.IsZero() {
		min = strconv.FormatFloat(TimelineBound(since), 'f', -1, 64)
	}

	members, err := c.rdb.ZRevRangeByScore(ctx, AgentMemoryTimelineKey(c.instanceName, agentID), &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read agent memory timeline: %w", err)
	}

	return entryIDs(members), nil
}

// MemoryIDsBefore returns the IDs of every memory entry recorded strictly before cutoff,
// oldest first.
func (c *Client) MemoryIDsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	max := "(" + strconv.FormatFloat(TimelineBound(cutoff), 'f', -1, 64)

	members, err := c.rdb.ZRangeByScore(ctx, MemoryTimelineKey(c.instanceName), &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory timeline: %w", err)
	}

	return entryIDs(members), nil
}

func entryIDs(members []string) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = EntryIDFromMember(m)
	}
	return ids
}

// DeleteMemory removes a memory entry and its timeline references.
// Only the retention sweep deletes entries.
func (c *Client) DeleteMemory(ctx context.Context, m *MemoryEntry) error {
	member := TimelineMember(m.Seq, m.ID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, MemoryKey(c.instanceName, m.ID))
		pipe.ZRem(ctx, AgentMemoryTimelineKey(c.instanceName, m.AgentID), member)
		pipe.ZRem(ctx, MemoryTimelineKey(c.instanceName), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete memory entry %s: %w", m.ID, err)
	}
	return nil
}

// SaveGoal writes a goal (full replacement) and adds it to the goal index.
func (c *Client) SaveGoal(ctx context.Context, g *Goal) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("invalid goal: %w", err)
	}

	hash, err := GoalToHash(g)
	if err != nil {
		return fmt.Errorf("failed to serialize goal: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, GoalKey(c.instanceName, g.ID), hash)
		pipe.SAdd(ctx, GoalIndexKey(c.instanceName), g.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write goal to Redis: %w", err)
	}

	return nil
}

// GetGoal retrieves a goal by ID.
// Returns (nil, redis.Nil) if the goal doesn't exist.
func (c *Client) GetGoal(ctx context.Context, goalID string) (*Goal, error) {
	hashData, err := c.rdb.HGetAll(ctx, GoalKey(c.instanceName, goalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read goal from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	goal, err := HashToGoal(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize goal: %w", err)
	}

	return goal, nil
}

// ScanGoalIDs returns the indexed goal IDs starting with prefix, sorted.
func (c *Client) ScanGoalIDs(ctx context.Context, prefix string) ([]string, error) {
	var (
		matches []string
		cursor  uint64
	)
	for {
		ids, next, err := c.rdb.SScan(ctx, GoalIndexKey(c.instanceName), cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal index: %w", err)
		}
		matches = append(matches, ids...)
		if next == 0 {
			break
		}
		cursor = next
	}

	sort.Strings(matches)
	return matches, nil
}

// ListGoals returns every indexed goal ordered by creation time.
// Index entries whose hash has disappeared are skipped.
func (c *Client) ListGoals(ctx context.Context) ([]*Goal, error) {
	ids, err := c.rdb.SMembers(ctx, GoalIndexKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read goal index: %w", err)
	}

	goals := make([]*Goal, 0, len(ids))
	for _, id := range ids {
		goal, err := c.GetGoal(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		goals = append(goals, goal)
	}

	sort.Slice(goals, func(i, j int) bool {
		if goals[i].CreatedAt.Equal(goals[j].CreatedAt) {
			return goals[i].ID < goals[j].ID
		}
		return goals[i].CreatedAt.Before(goals[j].CreatedAt)
	})

	return goals, nil
}

// SaveAgentSnapshot writes the monitoring snapshot of one agent.
func (c *Client) SaveAgentSnapshot(ctx context.Context, s *AgentSnapshot) error {
	if s.AgentID == "" {
		return fmt.Errorf("invalid agent snapshot: agent_id cannot be empty")
	}

	hash, err := AgentSnapshotToHash(s)
	if err != nil {
		return fmt.Errorf("failed to serialize agent snapshot: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, AgentSnapshotKey(c.instanceName, s.AgentID), hash)
		pipe.SAdd(ctx, AgentIndexKey(c.instanceName), s.AgentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write agent snapshot to Redis: %w", err)
	}

	return nil
}

// ListAgentSnapshots returns every stored agent snapshot sorted by agent ID.
func (c *Client) ListAgentSnapshots(ctx context.Context) ([]*AgentSnapshot, error) {
	ids, err := c.rdb.SMembers(ctx, AgentIndexKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read agent index: %w", err)
	}
	sort.Strings(ids)

	snapshots := make([]*AgentSnapshot, 0, len(ids))
	for _, id := range ids {
		hashData, err := c.rdb.HGetAll(ctx, AgentSnapshotKey(c.instanceName, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read agent snapshot %s: %w", id, err)
		}
		if len(hashData) == 0 {
			continue
		}
		snapshot, err := HashToAgentSnapshot(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize agent snapshot %s: %w", id, err)
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// EnqueueRequest pushes an inbound request onto the request queue.
func (c *Client) EnqueueRequest(ctx context.Context, r *Request) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.rdb.LPush(ctx, RequestQueueKey(c.instanceName), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}

	return nil
}

// DequeueRequest blocks up to timeout for the oldest pending request.
// Returns (nil, redis.Nil) when the timeout elapses with nothing queued.
func (c *Client) DequeueRequest(ctx context.Context, timeout time.Duration) (*Request, error) {
	result, err := c.rdb.BRPop(ctx, timeout, RequestQueueKey(c.instanceName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BRPOP returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(result))
	}

	var req Request
	if err := json.Unmarshal([]byte(result[1]), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	return &req, nil
}

// PendingRequests returns the number of requests waiting in the queue.
func (c *Client) PendingRequests(ctx context.Context) (int64, error) {
	n, err := c.rdb.LLen(ctx, RequestQueueKey(c.instanceName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read request queue length: %w", err)
	}
	return n, nil
}

// StoreTaskResult writes a task result so that the submitting client can poll for it.
// A positive ttl expires the result; zero keeps it until deleted.
func (c *Client) StoreTaskResult(ctx context.Context, r *TaskResult, ttl time.Duration) error {
	if r.TaskID == "" {
		return fmt.Errorf("invalid task result: task_id cannot be empty")
	}

	hash, err := TaskResultToHash(r)
	if err != nil {
		return fmt.Errorf("failed to serialize task result: %w", err)
	}

	key := TaskResultKey(c.instanceName, r.TaskID)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, hash)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write task result to Redis: %w", err)
	}

	return nil
}

// GetTaskResult retrieves a task result by task ID.
// Returns (nil, redis.Nil) if no result has been stored yet.
func (c *Client) GetTaskResult(ctx context.Context, taskID string) (*TaskResult, error) {
	hashData, err := c.rdb.HGetAll(ctx, TaskResultKey(c.instanceName, taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read task result from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	result, err := HashToTaskResult(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize task result: %w", err)
	}

	return result, nil
}

// PublishWorkflowEvent publishes a named event with its data to the workflow events channel.
func (c *Client) PublishWorkflowEvent(ctx context.Context, event string, data map[string]interface{}) error {
	payload, err := json.Marshal(WorkflowEvent{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow event: %w", err)
	}

	if err := c.rdb.Publish(ctx, WorkflowEventsChannel(c.instanceName), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish workflow event: %w", err)
	}

	return nil
}

// WorkflowSubscription represents an active Pub/Sub subscription to workflow events.
// Caller must call Close() when done to clean up resources.
type WorkflowSubscription struct {
	events <-chan *WorkflowEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of workflow events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *WorkflowSubscription) Events() <-chan *WorkflowEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *WorkflowSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *WorkflowSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeWorkflowEvents subscribes to workflow events for this instance.
// Events are delivered on a buffered channel (size 10); Redis Pub/Sub is at-most-once,
// so a slow subscriber may miss events.
func (c *Client) SubscribeWorkflowEvents(ctx context.Context) (*WorkflowSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, WorkflowEventsChannel(c.instanceName))

	// Wait for the subscription to be confirmed so events published right after
	// this call are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to workflow events: %w", err)
	}

	eventsChan := make(chan *WorkflowEvent, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event WorkflowEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal workflow event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &WorkflowSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetGoal, GetMemory, GetTaskResult or DequeueRequest returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
