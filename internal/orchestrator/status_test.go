package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/internal/executor"
	"github.com/dyluth/warren/internal/goals"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatusServer(t *testing.T) (*StatusServer, *testEngine, *goals.Scheduler) {
	t.Helper()
	te := newDefaultEngine(t, &fixedExecutor{result: executor.Result{Success: true}})
	scheduler := goals.NewScheduler(goals.Options{
		Store: te.board,
		Clock: clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Seed:  1,
	})
	return NewStatusServer(":0", te.engine, te.board, scheduler), te, scheduler
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatusServer_Healthz(t *testing.T) {
	t.Run("healthy with Redis", func(t *testing.T) {
		s, _, _ := newStatusServer(t)

		w := get(t, s.Router(), "/healthz")
		require.Equal(t, http.StatusOK, w.Code)

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "connected", resp.Redis)
	})

	t.Run("unhealthy when Redis unavailable", func(t *testing.T) {
		// port 9 is the discard protocol; connections fail immediately
		client, err := blackboard.NewClient(&redis.Options{
			Addr:         "localhost:9",
			DialTimeout:  50 * time.Millisecond,
			ReadTimeout:  50 * time.Millisecond,
			WriteTimeout: 50 * time.Millisecond,
		}, "test")
		require.NoError(t, err)
		defer client.Close()

		e, _ := newGenericEngine(t, 1, &fixedExecutor{})
		s := NewStatusServer(":0", e, client, nil)

		w := get(t, s.Router(), "/healthz")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "disconnected", resp.Redis)
		assert.NotEmpty(t, resp.Error)
	})
}

func TestStatusServer_MethodNotAllowed(t *testing.T) {
	s, _, _ := newStatusServer(t)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusServer_Agents(t *testing.T) {
	s, te, _ := newStatusServer(t)

	te.engine.Submit(context.Background(), "navigate to example.com", Hints{})

	w := get(t, s.Router(), "/agents")
	require.Equal(t, http.StatusOK, w.Code)

	var snaps []*blackboard.AgentSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snaps))
	require.Len(t, snaps, 8)
	assert.Equal(t, "automation_agent", snaps[0].AgentID, "sorted by id")

	w = get(t, s.Router(), "/agents/navigation_specialist")
	require.Equal(t, http.StatusOK, w.Code)
	var nav blackboard.AgentSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&nav))
	assert.Equal(t, 1, nav.CompletedTasks)
	assert.Equal(t, "idle", nav.Status)

	w = get(t, s.Router(), "/agents/nobody")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusServer_Tasks(t *testing.T) {
	gate := newGateExecutor()
	e, _ := newGenericEngine(t, 3, gate)
	s := NewStatusServer(":0", e, nil, nil)

	done := make(chan struct{})
	go func() {
		e.Coordinate(context.Background(), genericTask(0))
		close(done)
	}()
	gate.waitStarted(t)

	w := get(t, s.Router(), "/tasks")
	require.Equal(t, http.StatusOK, w.Code)

	var resp TasksResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Active, 1)
	assert.Equal(t, AssignmentActive, resp.Active[0].Status)
	assert.Equal(t, 0, resp.QueueLength)
	assert.Equal(t, 5, resp.MaxActiveTasks)

	gate.results <- executor.Result{Success: true}
	<-done
}

func TestStatusServer_Goals(t *testing.T) {
	s, _, scheduler := newStatusServer(t)
	ctx := context.Background()

	id, err := scheduler.CreateGoal(ctx, goals.Spec{Description: "Track prices", Priority: 5})
	require.NoError(t, err)

	w := get(t, s.Router(), "/goals")
	require.Equal(t, http.StatusOK, w.Code)

	var resp GoalsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Active)
	require.Len(t, resp.Goals, 1)
	assert.Equal(t, id, resp.Goals[0].ID)

	w = get(t, s.Router(), "/goals/"+id)
	require.Equal(t, http.StatusOK, w.Code)

	w = get(t, s.Router(), "/goals/"+uuid.New().String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusServer_GoalsUnavailable(t *testing.T) {
	e, _ := newGenericEngine(t, 1, &fixedExecutor{})
	s := NewStatusServer(":0", e, nil, nil)

	w := get(t, s.Router(), "/goals")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
