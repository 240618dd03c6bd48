package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/watch"
	"github.com/spf13/cobra"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time coordination activity",
	Long: `Stream task grants, completions and failures plus goal progress as the
orchestrator publishes them. Press Ctrl-C to stop.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  warren watch
  warren watch --name prod --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeWorkflowEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}
	defer sub.Close()

	if format == watch.OutputFormatDefault {
		printer.Step("Watching instance '%s'...\n", instanceName)
	}
	return watch.StreamEvents(ctx, sub, format, cmd.OutOrStdout())
}
