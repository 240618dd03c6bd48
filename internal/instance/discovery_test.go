package instance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	ctx := context.Background()

	client := func(name string) *blackboard.Client {
		c, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, name)
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		return c
	}

	prod := client("prod")
	require.NoError(t, prod.SaveAgentSnapshot(ctx, &blackboard.AgentSnapshot{AgentID: "code_assistant", Status: "idle", LastActive: time.Now()}))
	require.NoError(t, prod.SaveAgentSnapshot(ctx, &blackboard.AgentSnapshot{AgentID: "research_analyst", Status: "idle", LastActive: time.Now()}))
	require.NoError(t, prod.EnqueueRequest(ctx, &blackboard.Request{
		ID: uuid.New().String(), Kind: blackboard.RequestKindTask, Text: "navigate to example.com", CreatedAtMs: time.Now().UnixMilli(),
	}))

	staging := client("staging")
	require.NoError(t, staging.SaveAgentSnapshot(ctx, &blackboard.AgentSnapshot{AgentID: "code_assistant", Status: "idle", LastActive: time.Now()}))

	// Unrelated keys are ignored
	mr.Set("other:key", "x")
	mr.Set("warren:not a name:agents", "x")

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	infos, err := Discover(ctx, rdb)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, Info{Name: "prod", Agents: 2, PendingRequests: 1}, infos[0])
	assert.Equal(t, Info{Name: "staging", Agents: 1}, infos[1])
}

func TestInstanceFromKey(t *testing.T) {
	tests := []struct {
		key  string
		name string
		ok   bool
	}{
		{"warren:prod:agents", "prod", true},
		{"warren:prod:goals", "prod", true},
		{"warren:prod:requests", "prod", true},
		{"warren:prod:memories", "prod", true},
		{"warren:prod:agent:code_assistant", "", false},
		{"warren:prod:agent:code_assistant:memories", "", false},
		{"other:prod:agents", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			name, ok := instanceFromKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
		})
	}
}
