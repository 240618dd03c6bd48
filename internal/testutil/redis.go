//go:build integration

// Package testutil holds helpers shared by the integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisImage is the image started by StartRedis
const RedisImage = "redis:7-alpine"

// StartRedis starts a throwaway Redis container and returns its URL.
// The container is terminated when the test ends.
func StartRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        RedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

// NewBlackboard connects a blackboard client for instanceName to a fresh
// Redis container.
func NewBlackboard(t *testing.T, instanceName string) *blackboard.Client {
	t.Helper()

	opts, err := redis.ParseURL(StartRedis(t))
	require.NoError(t, err)

	client, err := blackboard.NewClient(opts, instanceName)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Ping(context.Background()))
	return client
}
