package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/warren/internal/analyzer"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/status"
	"github.com/dyluth/warren/internal/watch"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	submitType         string
	submitComplexity   string
	submitPriority     int
	submitCapabilities []string
	submitNoWait       bool
	submitTimeout      time.Duration
	submitOutputFormat string
)

var submitCmd = &cobra.Command{
	Use:   "submit <text>",
	Short: "Submit a task to the orchestrator",
	Long: `Submit a free-form task to the running orchestrator and wait for its result.

The orchestrator analyzes the text, picks a primary agent (and supporters for
complex work), waits for an admission slot, executes the task and records the
outcome in each participant's memory.

Hints override what the analyzer infers:
  --type         coordination rule to apply (e.g. navigation, research)
  --complexity   low, medium or high
  --capability   required capability (repeatable)

Examples:
  warren submit "navigate to example.com"
  warren submit --type research --priority 8 "find reviews of the new phone"
  warren submit --no-wait "summarize this page"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitType, "type", "t", "", "Task type (selects a coordination rule)")
	submitCmd.Flags().StringVar(&submitComplexity, "complexity", "", "Complexity override (low, medium, high)")
	submitCmd.Flags().IntVarP(&submitPriority, "priority", "p", 5, "Task priority 1-10")
	submitCmd.Flags().StringSliceVar(&submitCapabilities, "capability", nil, "Required capability (repeatable)")
	submitCmd.Flags().BoolVar(&submitNoWait, "no-wait", false, "Return after queueing instead of waiting for the result")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 5*time.Minute, "How long to wait for the result")
	submitCmd.Flags().StringVarP(&submitOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	format, err := watch.ParseOutputFormat(submitOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	if submitComplexity != "" {
		if _, err := analyzer.ParseComplexity(submitComplexity); err != nil {
			return printer.Error("invalid complexity", err.Error(), []string{"Valid values: low, medium, high"})
		}
	}
	if submitPriority < 1 || submitPriority > 10 {
		return printer.Error("invalid priority", fmt.Sprintf("Priority must be between 1 and 10, got %d", submitPriority), nil)
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	req := &blackboard.Request{
		ID:                   uuid.New().String(),
		Kind:                 blackboard.RequestKindTask,
		Text:                 strings.Join(args, " "),
		Type:                 submitType,
		Complexity:           strings.ToLower(submitComplexity),
		Priority:             submitPriority,
		RequiredCapabilities: submitCapabilities,
		CreatedAtMs:          time.Now().UnixMilli(),
	}
	if err := client.EnqueueRequest(ctx, req); err != nil {
		return fmt.Errorf("failed to submit task: %w", err)
	}

	if submitNoWait {
		printer.Success("Task %s queued for instance '%s'\n", req.ID, instanceName)
		return nil
	}

	printer.Step("Task %s queued, waiting for result...\n", req.ID)

	result, err := watch.PollForResult(ctx, client, req.ID, submitTimeout)
	if err != nil {
		return printer.ErrorWithContext(
			"no task result",
			err.Error(),
			map[string]string{"Task": req.ID, "Instance": instanceName},
			[]string{"Check the orchestrator is running and watching this instance:\n     warren watch --name " + instanceName},
		)
	}

	if format == watch.OutputFormatJSON {
		return status.FormatJSON(cmd.OutOrStdout(), result)
	}
	status.FormatTaskResult(cmd.OutOrStdout(), result)

	if !result.Success {
		return fmt.Errorf("task %s failed", result.TaskID)
	}
	return nil
}
