package instance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/redis/go-redis/v9"
)

// Info summarises one instance found on a Redis server.
type Info struct {
	Name            string `json:"name"`
	Agents          int64  `json:"agents"`
	Goals           int64  `json:"goals"`
	PendingRequests int64  `json:"pending_requests"`
}

// indexSuffixes are the per-instance keys that mark an instance as present.
var indexSuffixes = []string{":agents", ":goals", ":requests", ":memories"}

// Discover scans rdb for warren instances and returns them sorted by name.
// An instance is any name owning at least one of the agent index, goal
// index, request queue or memory timeline.
func Discover(ctx context.Context, rdb redis.Cmdable) ([]Info, error) {
	names := make(map[string]struct{})

	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, "warren:*", 500).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance keys: %w", err)
		}
		for _, key := range keys {
			if name, ok := instanceFromKey(key); ok {
				names[name] = struct{}{}
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	infos := make([]Info, 0, len(names))
	for name := range names {
		info := Info{Name: name}

		pipe := rdb.Pipeline()
		agents := pipe.SCard(ctx, blackboard.AgentIndexKey(name))
		goals := pipe.SCard(ctx, blackboard.GoalIndexKey(name))
		pending := pipe.LLen(ctx, blackboard.RequestQueueKey(name))
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to read instance %s: %w", name, err)
		}
		info.Agents = agents.Val()
		info.Goals = goals.Val()
		info.PendingRequests = pending.Val()

		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// instanceFromKey extracts the instance name from an index key
// (warren:{name}:agents and friends). Per-entity keys are ignored.
func instanceFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "warren:")
	if !ok {
		return "", false
	}
	for _, suffix := range indexSuffixes {
		if name, ok := strings.CutSuffix(rest, suffix); ok && ValidateName(name) == nil {
			return name, true
		}
	}
	return "", false
}
