package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/instance"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	defaultRedisURL     = "redis://localhost:6379"
	defaultConfigPath   = "warren.yml"
)

var (
	version string
	commit  string
	date    string

	instanceName string
	redisURL     string
	configPath   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - agent task coordination engine",
	Long: `Warren coordinates a roster of specialized agents: it scores free-form
requests against each agent's vocabulary, assigns a primary agent and
supporters, bounds how many tasks run at once, and keeps each agent's
outcome history as memory that informs later assignments.

Autonomous goals advance on their own schedule, submitting their steps
through the same coordination path.

The CLI talks to a running orchestrator through its Redis blackboard.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&instanceName, "name", "n", envOr("WARREN_INSTANCE_NAME", instance.DefaultName), "Target instance name")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", envOr("REDIS_URL", defaultRedisURL), "Redis URL of the instance blackboard")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", envOr("WARREN_CONFIG", defaultConfigPath), "Path to warren.yml (built-in roster when missing)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// connect opens and pings the instance blackboard. Failures are reported
// through the printer.
func connect(ctx context.Context) (*blackboard.Client, error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return nil, printer.Error(
			"invalid instance name",
			err.Error(),
			[]string{"List the instances on this Redis with:\n     warren instances"},
		)
	}

	redisOpts, err := parseRedisURL()
	if err != nil {
		return nil, err
	}

	client, err := blackboard.NewClient(redisOpts, instanceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create blackboard client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			map[string]string{"Instance": instanceName, "Error": err.Error()},
			[]string{
				"Check that the orchestrator's Redis is running",
				"Point the CLI at it:\n     warren --redis-url redis://host:6379 <command>",
			},
		)
	}

	return client, nil
}

func parseRedisURL() (*redis.Options, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", redisURL, err),
			[]string{"Use the form redis://host:port[/db]"},
		)
	}
	return redisOpts, nil
}

// loadConfig loads warren.yml, falling back to the built-in roster.
func loadConfig() (*config.WarrenConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix %s or remove it to use the built-in roster", configPath)},
		)
	}
	return cfg, nil
}
