// Package blackboard provides type-safe Go definitions and Redis schema patterns
// for the Warren shared state store.
//
// # Overview
//
// The blackboard is the storage collaborator of the coordination engine. The
// engine itself owns agent state, task assignments and goal progression in
// memory; the blackboard persists what must outlive a process or be visible to
// other processes:
//
//   - Memory entries: the per-agent log of task outcomes and derived knowledge
//   - Goals: autonomous goals and their progress, for restart and the CLI
//   - Agent snapshots: the monitoring view of every agent
//   - Requests and results: the inbound task/goal queue and polled task results
//   - Workflow events: grants, completions and goal progress on Pub/Sub
//
// # Redis Schema
//
// All Redis keys follow the pattern: warren:{instance_name}:{entity}:{id}
//
// Memory entries: warren:{instance_name}:memory:{entry_id} (hash)
// Agent memory timeline: warren:{instance_name}:agent:{agent_id}:memories (ZSET)
// Global memory timeline: warren:{instance_name}:memories (ZSET)
// Goals: warren:{instance_name}:goal:{goal_id} (hash), index warren:{instance_name}:goals (SET)
// Agent snapshots: warren:{instance_name}:agent:{agent_id} (hash), index warren:{instance_name}:agents (SET)
// Requests: warren:{instance_name}:requests (LIST, LPUSH/BRPOP)
// Task results: warren:{instance_name}:result:{task_id} (hash, TTL)
//
// Pub/Sub channel: warren:{instance_name}:workflow_events
//
// # Usage Example
//
//	client, err := blackboard.NewClient(&redis.Options{Addr: "localhost:6379"}, "default-1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	req := &blackboard.Request{
//		ID:   uuid.New().String(),
//		Kind: blackboard.RequestKindTask,
//		Text: "navigate to example.com",
//	}
//	if err := client.EnqueueRequest(ctx, req); err != nil {
//		log.Fatal(err)
//	}
package blackboard
