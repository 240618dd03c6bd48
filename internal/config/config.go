package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Executor kinds accepted by executor.kind
const (
	ExecutorSimulated = "simulated"
	ExecutorOpenAI    = "openai"
	ExecutorAnthropic = "anthropic"
	ExecutorDocker    = "docker"
)

// WarrenConfig represents the top-level warren.yml configuration
type WarrenConfig struct {
	Version  string           `yaml:"version"`
	Engine   *EngineConfig    `yaml:"engine,omitempty"`
	Memory   *MemoryConfig    `yaml:"memory,omitempty"`
	Goals    *GoalsConfig     `yaml:"goals,omitempty"`
	Executor *ExecutorConfig  `yaml:"executor,omitempty"`
	Agents   map[string]Agent `yaml:"agents,omitempty"` // Omitted = built-in roster
	Rules    map[string]Rule  `yaml:"rules,omitempty"`  // Keyed by task type
}

// EngineConfig specifies coordination engine behaviour
type EngineConfig struct {
	MaxActiveTasks *int          `yaml:"max_active_tasks,omitempty"` // Admission budget (default 5)
	ResultTTL      time.Duration `yaml:"result_ttl,omitempty"`       // How long task results stay pollable (default 1h)
	PollTimeout    time.Duration `yaml:"poll_timeout,omitempty"`     // BRPOP timeout of the request loop (default 5s)
	StatusAddr     string        `yaml:"status_addr,omitempty"`      // Status server listen address (default :8080)
}

// MemoryConfig specifies the memory retention policy
type MemoryConfig struct {
	Retention     time.Duration `yaml:"retention,omitempty"`      // Default 168h
	KeepThreshold *int          `yaml:"keep_threshold,omitempty"` // Entries at or above survive any age (default 7)
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"` // Default 1h
}

// GoalsConfig specifies autonomous goal progression
type GoalsConfig struct {
	InitialDelay    time.Duration `yaml:"initial_delay,omitempty"`    // Default 5s
	TickInterval    time.Duration `yaml:"tick_interval,omitempty"`    // Default 30s
	SummaryInterval time.Duration `yaml:"summary_interval,omitempty"` // Default 5m
	MinIncrement    float64       `yaml:"min_increment,omitempty"`    // Default 5
	MaxIncrement    float64       `yaml:"max_increment,omitempty"`    // Default 15
	Seed            int64         `yaml:"seed,omitempty"`             // 0 = seeded from time
	RunSteps        *bool         `yaml:"run_steps,omitempty"`        // Submit goal steps through the engine (default true)
}

// ExecutorConfig selects and configures the execute(task, agent) backend
type ExecutorConfig struct {
	Kind      string        `yaml:"kind,omitempty"`        // simulated, openai, anthropic or docker
	TimeScale float64       `yaml:"time_scale,omitempty"`  // Simulated duration multiplier (default 1.0)
	Seed      int64         `yaml:"seed,omitempty"`        // Simulated outcome seed, 0 = from time
	Model     string        `yaml:"model,omitempty"`       // LLM model name
	BaseURL   string        `yaml:"base_url,omitempty"`    // Optional OpenAI-compatible endpoint
	APIKeyEnv string        `yaml:"api_key_env,omitempty"` // Env var holding the API key
	MaxTokens int64         `yaml:"max_tokens,omitempty"`  // Default 1024
	Image     string        `yaml:"image,omitempty"`       // Docker worker image when an agent has none
	Timeout   time.Duration `yaml:"timeout,omitempty"`     // Per-task execution timeout (default 5m)
}

// Agent represents a single agent of the roster
type Agent struct {
	Name           string         `yaml:"name,omitempty"`
	Specialization string         `yaml:"specialization"`
	Capabilities   []string       `yaml:"capabilities"`
	Performance    *float64       `yaml:"performance,omitempty"` // Prior estimate 0-1 (default 0.8)
	Vocabulary     map[string]int `yaml:"vocabulary,omitempty"`  // Phrase -> signal score 0-100
	Prompt         string         `yaml:"prompt,omitempty"`      // LLM system prompt
	Image          string         `yaml:"image,omitempty"`       // Docker executor image
	Command        []string       `yaml:"command,omitempty"`
	Environment    []string       `yaml:"environment,omitempty"`
}

// Rule maps a task type to its agent assignment
type Rule struct {
	Primary              string   `yaml:"primary"`
	Supporting           []string `yaml:"supporting,omitempty"`
	RequiredCapabilities []string `yaml:"required_capabilities"`
	Priority             int      `yaml:"priority,omitempty"` // 1-10 (default 5)
}

// Validate performs strict validation on the configuration and applies defaults
func (c *WarrenConfig) Validate() error {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// No roster given: fall back to the built-in roster, and its rules unless rules were given
	if len(c.Agents) == 0 {
		c.Agents = DefaultAgents()
		if len(c.Rules) == 0 {
			c.Rules = DefaultRules()
		}
	}

	for id, agent := range c.Agents {
		if err := agent.Validate(id); err != nil {
			return err
		}
		c.Agents[id] = agent
	}

	for taskType, rule := range c.Rules {
		if err := c.validateRule(taskType, &rule); err != nil {
			return err
		}
		c.Rules[taskType] = rule
	}

	if err := c.applyEngineDefaults(); err != nil {
		return err
	}
	if err := c.applyMemoryDefaults(); err != nil {
		return err
	}
	if err := c.applyGoalsDefaults(); err != nil {
		return err
	}
	return c.applyExecutorDefaults()
}

// Validate performs validation on a single agent configuration
func (a *Agent) Validate(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("agent id cannot be empty")
	}

	if a.Specialization == "" {
		return fmt.Errorf("agent '%s': specialization is required", id)
	}

	if len(a.Capabilities) == 0 {
		return fmt.Errorf("agent '%s': at least one capability is required", id)
	}

	if a.Name == "" {
		a.Name = id
	}

	if a.Performance == nil {
		p := 0.8
		a.Performance = &p
	}
	if *a.Performance < 0 || *a.Performance > 1 {
		return fmt.Errorf("agent '%s': performance must be between 0 and 1, got %.2f", id, *a.Performance)
	}

	for phrase, score := range a.Vocabulary {
		if strings.TrimSpace(phrase) == "" {
			return fmt.Errorf("agent '%s': vocabulary contains an empty phrase", id)
		}
		if score < 0 || score > 100 {
			return fmt.Errorf("agent '%s': vocabulary score for %q must be between 0 and 100, got %d", id, phrase, score)
		}
	}

	return nil
}

func (c *WarrenConfig) validateRule(taskType string, r *Rule) error {
	if _, ok := c.Agents[r.Primary]; !ok {
		return fmt.Errorf("rule '%s': unknown primary agent '%s'", taskType, r.Primary)
	}

	for _, s := range r.Supporting {
		if _, ok := c.Agents[s]; !ok {
			return fmt.Errorf("rule '%s': unknown supporting agent '%s'", taskType, s)
		}
		if s == r.Primary {
			return fmt.Errorf("rule '%s': agent '%s' cannot be both primary and supporting", taskType, s)
		}
	}

	if len(r.RequiredCapabilities) == 0 {
		r.RequiredCapabilities = append([]string(nil), c.Agents[r.Primary].Capabilities...)
	}

	if r.Priority == 0 {
		r.Priority = 5
	}
	if r.Priority < 1 || r.Priority > 10 {
		return fmt.Errorf("rule '%s': priority must be between 1 and 10, got %d", taskType, r.Priority)
	}

	return nil
}

func (c *WarrenConfig) applyEngineDefaults() error {
	if c.Engine == nil {
		c.Engine = &EngineConfig{}
	}
	if c.Engine.MaxActiveTasks == nil {
		defaultMax := 5
		c.Engine.MaxActiveTasks = &defaultMax
	}
	if *c.Engine.MaxActiveTasks < 1 {
		return fmt.Errorf("engine.max_active_tasks must be >= 1, got %d", *c.Engine.MaxActiveTasks)
	}
	if c.Engine.ResultTTL == 0 {
		c.Engine.ResultTTL = time.Hour
	}
	if c.Engine.PollTimeout == 0 {
		c.Engine.PollTimeout = 5 * time.Second
	}
	if c.Engine.StatusAddr == "" {
		c.Engine.StatusAddr = ":8080"
	}
	return nil
}

func (c *WarrenConfig) applyMemoryDefaults() error {
	if c.Memory == nil {
		c.Memory = &MemoryConfig{}
	}
	if c.Memory.Retention == 0 {
		c.Memory.Retention = 168 * time.Hour
	}
	if c.Memory.Retention < 0 {
		return fmt.Errorf("memory.retention must be positive")
	}
	if c.Memory.KeepThreshold == nil {
		defaultThreshold := 7
		c.Memory.KeepThreshold = &defaultThreshold
	}
	if c.Memory.SweepInterval == 0 {
		c.Memory.SweepInterval = time.Hour
	}
	return nil
}

func (c *WarrenConfig) applyGoalsDefaults() error {
	if c.Goals == nil {
		c.Goals = &GoalsConfig{}
	}
	g := c.Goals
	if g.InitialDelay == 0 {
		g.InitialDelay = 5 * time.Second
	}
	if g.TickInterval == 0 {
		g.TickInterval = 30 * time.Second
	}
	if g.SummaryInterval == 0 {
		g.SummaryInterval = 5 * time.Minute
	}
	if g.MinIncrement == 0 {
		g.MinIncrement = 5
	}
	if g.MaxIncrement == 0 {
		g.MaxIncrement = 15
	}
	if g.MinIncrement <= 0 || g.MaxIncrement < g.MinIncrement {
		return fmt.Errorf("goals: increments must satisfy 0 < min_increment <= max_increment, got %.1f..%.1f", g.MinIncrement, g.MaxIncrement)
	}
	if g.RunSteps == nil {
		runSteps := true
		g.RunSteps = &runSteps
	}
	return nil
}

func (c *WarrenConfig) applyExecutorDefaults() error {
	if c.Executor == nil {
		c.Executor = &ExecutorConfig{}
	}
	e := c.Executor
	if e.Kind == "" {
		e.Kind = ExecutorSimulated
	}
	if e.TimeScale == 0 {
		e.TimeScale = 1.0
	}
	if e.TimeScale < 0 {
		return fmt.Errorf("executor.time_scale must be positive")
	}
	if e.MaxTokens == 0 {
		e.MaxTokens = 1024
	}
	if e.Timeout == 0 {
		e.Timeout = 5 * time.Minute
	}

	switch e.Kind {
	case ExecutorSimulated:
	case ExecutorOpenAI:
		if e.Model == "" {
			e.Model = "gpt-4o-mini"
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = "OPENAI_API_KEY"
		}
	case ExecutorAnthropic:
		if e.Model == "" {
			e.Model = "claude-3-5-haiku-latest"
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	case ExecutorDocker:
		for _, id := range c.AgentIDs() {
			if c.Agents[id].Image == "" && e.Image == "" {
				return fmt.Errorf("executor kind 'docker' requires executor.image or an image for agent '%s'", id)
			}
		}
	default:
		return fmt.Errorf("invalid executor.kind: %s (must be 'simulated', 'openai', 'anthropic' or 'docker')", e.Kind)
	}

	return nil
}

// AgentIDs returns the roster agent IDs in sorted order.
func (c *WarrenConfig) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for id := range c.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads and validates warren.yml from the specified path
func Load(path string) (*WarrenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config WarrenConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path when it exists and falls back to DefaultConfig otherwise.
// An empty path always yields the default configuration.
func LoadOrDefault(path string) (*WarrenConfig, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}
