package commands

import (
	"fmt"
	"time"

	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/internal/memory"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/status"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/internal/watch"
	"github.com/spf13/cobra"
)

var (
	memoryType          string
	memoryTags          []string
	memoryMinImportance int
	memorySince         string
	memoryLimit         int
	memoryOutput        string
	memoryRetention     time.Duration
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and maintain agent memory",
	Long: `Every coordinated task leaves one memory entry per participating agent.
Entries carry the outcome, the strategy used and any error, and feed the
confidence adjustment of later tasks in the same domain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var memoryQueryCmd = &cobra.Command{
	Use:   "query <agent-id>",
	Short: "List an agent's memory entries, newest first",
	Long: `List an agent's memory entries, newest first.

Filters combine: every given tag must be present.

Examples:
  warren memory query navigation_specialist
  warren memory query research_agent --tag failure --since 24h
  warren memory query code_assistant --min-importance 6 --output=json | jq .`,
	Args: cobra.ExactArgs(1),
	RunE: runMemoryQuery,
}

var memorySweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired low-importance memory now",
	Long: `Run one retention sweep: entries older than the retention window are
removed unless their importance reaches the keep threshold. The orchestrator
runs the same sweep periodically; this forces one immediately.`,
	Args: cobra.NoArgs,
	RunE: runMemorySweep,
}

func init() {
	memoryQueryCmd.Flags().StringVar(&memoryType, "type", "", "Only entries of this type (outcome, knowledge)")
	memoryQueryCmd.Flags().StringArrayVar(&memoryTags, "tag", nil, "Required tag (repeatable)")
	memoryQueryCmd.Flags().IntVar(&memoryMinImportance, "min-importance", 0, "Minimum importance")
	memoryQueryCmd.Flags().StringVar(&memorySince, "since", "", "Only entries after this time (duration like 24h or 7d, or RFC3339)")
	memoryQueryCmd.Flags().IntVar(&memoryLimit, "limit", 50, "Maximum entries to show (0 = all)")
	memoryQueryCmd.Flags().StringVarP(&memoryOutput, "output", "o", "default", "Output format (default or json)")

	memorySweepCmd.Flags().DurationVar(&memoryRetention, "retention", 0, "Override the configured retention window")

	memoryCmd.AddCommand(memoryQueryCmd, memorySweepCmd)
	rootCmd.AddCommand(memoryCmd)
}

func runMemoryQuery(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	agentID := args[0]

	format, err := watch.ParseOutputFormat(memoryOutput)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	filter := memory.Filter{
		Type:          memoryType,
		Tags:          memoryTags,
		MinImportance: memoryMinImportance,
		Limit:         memoryLimit,
	}
	if memorySince != "" {
		filter.Since, err = timespec.Since(memorySince, time.Now())
		if err != nil {
			return printer.Error("invalid --since", err.Error(), []string{"Use a duration like 24h or 7d, or an RFC3339 time"})
		}
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	store := memory.NewStore(client, clock.Real{}, memory.Options{})
	entries, err := store.Query(ctx, agentID, filter)
	if err != nil {
		return fmt.Errorf("failed to query memory: %w", err)
	}

	if format == watch.OutputFormatJSON {
		return status.FormatJSONL(cmd.OutOrStdout(), entries)
	}
	status.FormatMemory(cmd.OutOrStdout(), entries, agentID, time.Now())
	return nil
}

func runMemorySweep(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	retention := cfg.Memory.Retention
	if memoryRetention > 0 {
		retention = memoryRetention
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	store := memory.NewStore(client, clock.Real{}, memory.Options{
		Retention:     retention,
		KeepThreshold: *cfg.Memory.KeepThreshold,
	})

	removed, err := store.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("memory sweep failed after removing %d entries: %w", removed, err)
	}

	printer.Success("Removed %d expired memory entries (retention %s, keep threshold %d)\n",
		removed, retention, *cfg.Memory.KeepThreshold)
	return nil
}
