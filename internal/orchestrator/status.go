package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/dyluth/warren/internal/goals"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// StatusServer serves health and monitoring endpoints for the orchestrator.
type StatusServer struct {
	addr   string
	engine *Engine
	client *blackboard.Client
	goals  *goals.Scheduler
	server *http.Server
}

// NewStatusServer creates a status server. goals may be nil.
func NewStatusServer(addr string, engine *Engine, client *blackboard.Client, scheduler *goals.Scheduler) *StatusServer {
	return &StatusServer{
		addr:   addr,
		engine: engine,
		client: client,
		goals:  scheduler,
	}
}

// Router returns the HTTP handler with every route mounted.
func (s *StatusServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(10 * time.Second))

	r.Get("/healthz", s.healthCheckHandler)
	r.Get("/agents", s.agentsHandler)
	r.Get("/agents/{agentID}", s.agentHandler)
	r.Get("/tasks", s.tasksHandler)
	r.Get("/goals", s.goalsHandler)
	r.Get("/goals/{goalID}", s.goalHandler)

	return r
}

// Start starts the HTTP server in the background.
func (s *StatusServer) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Orchestrator] Status server error: %v", err)
		}
	}()

	log.Printf("[Orchestrator] Status server listening on %s", s.addr)
	return nil
}

// Shutdown gracefully stops the server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TasksResponse describes in-flight and queued work.
type TasksResponse struct {
	Active         []*Assignment `json:"active"`
	QueueLength    int           `json:"queue_length"`
	MaxActiveTasks int           `json:"max_active_tasks"`
}

// GoalsResponse is the goal summary plus every goal.
type GoalsResponse struct {
	Summary goals.Summary      `json:"summary"`
	Goals   []*blackboard.Goal `json:"goals"`
}

// healthCheckHandler returns 200 when Redis answers a ping, 503 otherwise.
func (s *StatusServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.client == nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: "no blackboard client"})
		return
	}

	if err := s.client.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Redis:  "disconnected",
			Error:  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Redis: "connected"})
}

func (s *StatusServer) agentsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.AgentSnapshots())
}

func (s *StatusServer) agentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentID")
	for _, snap := range s.engine.AgentSnapshots() {
		if snap.AgentID == id {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	writeError(w, http.StatusNotFound, "agent not found: "+id)
}

func (s *StatusServer) tasksHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TasksResponse{
		Active:         s.engine.ActiveAssignments(),
		QueueLength:    s.engine.QueueLength(),
		MaxActiveTasks: s.engine.admission.limit,
	})
}

func (s *StatusServer) goalsHandler(w http.ResponseWriter, r *http.Request) {
	if s.goals == nil {
		writeError(w, http.StatusServiceUnavailable, "goal scheduler not running")
		return
	}

	all, err := s.goals.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if all == nil {
		all = []*blackboard.Goal{}
	}

	writeJSON(w, http.StatusOK, GoalsResponse{
		Summary: goals.Summarize(all, s.engine.clock.Now()),
		Goals:   all,
	})
}

func (s *StatusServer) goalHandler(w http.ResponseWriter, r *http.Request) {
	if s.goals == nil {
		writeError(w, http.StatusServiceUnavailable, "goal scheduler not running")
		return
	}

	g, err := s.goals.Get(r.Context(), chi.URLParam(r, "goalID"))
	if errors.Is(err, goals.ErrGoalNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Orchestrator] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
