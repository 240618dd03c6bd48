package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/warren/internal/analyzer"
	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/executor"
	"github.com/dyluth/warren/internal/goals"
	"github.com/dyluth/warren/internal/instance"
	"github.com/dyluth/warren/internal/memory"
	"github.com/dyluth/warren/internal/orchestrator"
	"github.com/dyluth/warren/internal/registry"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const analysisCacheEntries = 10_000

func main() {
	// 1. Load environment variables
	instanceName := os.Getenv("WARREN_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")
	configPath := os.Getenv("WARREN_CONFIG")

	if instanceName == "" || redisURL == "" {
		fmt.Fprintf(os.Stderr, "Error: WARREN_INSTANCE_NAME and REDIS_URL must be set\n")
		os.Exit(1)
	}
	if configPath == "" {
		configPath = "warren.yml"
	}
	if err := instance.ValidateName(instanceName); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid WARREN_INSTANCE_NAME: %v\n", err)
		os.Exit(1)
	}

	// 2. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create blackboard client
	bbClient, err := blackboard.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create blackboard client: %v\n", err)
		os.Exit(1)
	}
	defer bbClient.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := bbClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 5. Load warren.yml, falling back to the built-in roster
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", configPath, err)
		os.Exit(1)
	}

	fmt.Printf("Orchestrator starting for instance '%s' with %d agents (executor: %s)\n",
		instanceName, len(cfg.Agents), cfg.Executor.Kind)

	if err := run(ctx, cfg, bbClient, instanceName); err != nil {
		fmt.Fprintf(os.Stderr, "Orchestrator error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Orchestrator stopped")
}

func run(ctx context.Context, cfg *config.WarrenConfig, bbClient *blackboard.Client, instanceName string) error {
	clk := clock.Real{}

	reg, err := registry.FromConfig(cfg, clk)
	if err != nil {
		return fmt.Errorf("failed to build agent registry: %w", err)
	}

	scorer, err := analyzer.NewCachedScorer(analyzer.FromConfig(cfg), analysisCacheEntries)
	if err != nil {
		return fmt.Errorf("failed to create analysis cache: %w", err)
	}
	defer scorer.Close()

	exec, err := executor.New(ctx, cfg, instanceName, clk)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	store := memory.NewStore(bbClient, clk, memory.Options{
		Retention:     cfg.Memory.Retention,
		KeepThreshold: *cfg.Memory.KeepThreshold,
	})

	scheduler := goals.NewScheduler(goals.Options{
		Store:           bbClient,
		Publisher:       bbClient,
		Clock:           clk,
		InstanceName:    instanceName,
		InitialDelay:    cfg.Goals.InitialDelay,
		TickInterval:    cfg.Goals.TickInterval,
		SummaryInterval: cfg.Goals.SummaryInterval,
		MinIncrement:    cfg.Goals.MinIncrement,
		MaxIncrement:    cfg.Goals.MaxIncrement,
		Seed:            cfg.Goals.Seed,
	})

	engine := orchestrator.NewEngine(orchestrator.Options{
		Registry:       reg,
		Rules:          orchestrator.NewRuleSet(cfg),
		Scorer:         scorer,
		Executor:       exec,
		Memory:         store,
		Board:          bbClient,
		Goals:          scheduler,
		Clock:          clk,
		InstanceName:   instanceName,
		MaxActiveTasks: *cfg.Engine.MaxActiveTasks,
		ResultTTL:      cfg.Engine.ResultTTL,
		PollTimeout:    cfg.Engine.PollTimeout,
		ExecTimeout:    cfg.Executor.Timeout,
	})
	if *cfg.Goals.RunSteps {
		scheduler.SetRunner(orchestrator.NewGoalStepRunner(engine))
	}

	restored, err := scheduler.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore goals: %w", err)
	}
	if restored > 0 {
		fmt.Printf("Restored %d active goals\n", restored)
	}

	status := orchestrator.NewStatusServer(cfg.Engine.StatusAddr, engine, bbClient, scheduler)
	if err := status.Start(); err != nil {
		return fmt.Errorf("failed to start status server: %w", err)
	}

	// Setup graceful shutdown
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return store.RunRetention(gctx, cfg.Memory.SweepInterval) })

	<-gctx.Done()
	fmt.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := status.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: status server shutdown: %v\n", err)
	}

	return g.Wait()
}
