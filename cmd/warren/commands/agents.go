package commands

import (
	"fmt"
	"time"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/status"
	"github.com/dyluth/warren/internal/watch"
	"github.com/spf13/cobra"
)

var agentsOutputFormat string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents and their runtime state",
	Long: `List every agent of the instance with its status, performance, health,
task counters and the tasks it is currently working on.

Snapshots are written by the orchestrator whenever an agent's state changes.

Output Formats:
  default - Human-readable table
  json    - Line-delimited JSON for programmatic processing`,
	Args: cobra.NoArgs,
	RunE: runAgents,
}

func init() {
	agentsCmd.Flags().StringVarP(&agentsOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	format, err := watch.ParseOutputFormat(agentsOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	snaps, err := client.ListAgentSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}

	if format == watch.OutputFormatJSON {
		return status.FormatJSONL(cmd.OutOrStdout(), snaps)
	}
	status.FormatAgents(cmd.OutOrStdout(), snaps, instanceName, time.Now())
	return nil
}
