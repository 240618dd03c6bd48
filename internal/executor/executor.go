// Package executor provides the backends behind execute(task, agent).
//
// The coordination engine treats every backend as opaque: it hands over one
// task and its assigned agents and gets back success and output. A returned
// error means the backend itself could not run the task; the engine reports
// both cases as an execution failure.
package executor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dyluth/warren/internal/analyzer"
	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/internal/config"
	dockerpkg "github.com/dyluth/warren/internal/docker"
)

// Agent is the executing agent as seen by a backend.
type Agent struct {
	ID             string
	Name           string
	Specialization string
	Performance    float64
}

// Request is one unit of work.
type Request struct {
	TaskID     string
	Text       string
	Type       string
	Complexity analyzer.Complexity
	Primary    Agent
	Supporting []Agent
}

// Result is what the backend reports.
type Result struct {
	Success bool
	Output  string
}

// Executor runs tasks.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// New builds the executor selected by executor.kind.
func New(ctx context.Context, cfg *config.WarrenConfig, instanceName string, clk clock.Clock) (Executor, error) {
	ec := cfg.Executor

	switch ec.Kind {
	case config.ExecutorSimulated, "":
		return NewSimulated(SimulatedOptions{
			Clock:     clk,
			TimeScale: ec.TimeScale,
			Seed:      ec.Seed,
		}), nil

	case config.ExecutorOpenAI:
		apiKey := os.Getenv(ec.APIKeyEnv)
		if apiKey == "" && ec.BaseURL == "" {
			return nil, fmt.Errorf("executor kind 'openai' requires %s to be set", ec.APIKeyEnv)
		}
		return NewOpenAI(OpenAIOptions{
			APIKey:    apiKey,
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			MaxTokens: ec.MaxTokens,
			Prompts:   prompts(cfg),
		}), nil

	case config.ExecutorAnthropic:
		apiKey := os.Getenv(ec.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("executor kind 'anthropic' requires %s to be set", ec.APIKeyEnv)
		}
		return NewAnthropic(AnthropicOptions{
			APIKey:    apiKey,
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			MaxTokens: ec.MaxTokens,
			Prompts:   prompts(cfg),
		}), nil

	case config.ExecutorDocker:
		cli, err := dockerpkg.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		return NewDocker(cli, instanceName, ec.Image, cfg.Agents), nil

	default:
		return nil, fmt.Errorf("unknown executor kind %q", ec.Kind)
	}
}

func prompts(cfg *config.WarrenConfig) map[string]string {
	out := make(map[string]string, len(cfg.Agents))
	for id, agent := range cfg.Agents {
		out[id] = agent.Prompt
	}
	return out
}

// systemPrompt returns the configured prompt for the agent or a generic one.
func systemPrompt(prompts map[string]string, agent Agent) string {
	if p := prompts[agent.ID]; p != "" {
		return p
	}
	return fmt.Sprintf("You are %s, a browser assistant agent specialised in %s. Complete the task and report the outcome briefly.", agent.Name, agent.Specialization)
}

// userPrompt renders the task for an LLM backend.
func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task (%s, %s complexity): %s", req.Type, req.Complexity, req.Text)
	if len(req.Supporting) > 0 {
		names := make([]string, 0, len(req.Supporting))
		for _, s := range req.Supporting {
			names = append(names, fmt.Sprintf("%s (%s)", s.Name, s.Specialization))
		}
		fmt.Fprintf(&b, "\nSupporting agents: %s", strings.Join(names, ", "))
	}
	return b.String()
}
