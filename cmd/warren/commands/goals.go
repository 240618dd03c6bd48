package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/resolver"
	"github.com/dyluth/warren/internal/status"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/internal/watch"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	goalType         string
	goalPriority     int
	goalSteps        []string
	goalDeadline     string
	goalStatusFilter string
	goalsOutput      string
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Manage autonomous goals",
	Long: `Autonomous goals advance on their own: every tick the orchestrator runs the
next pending step through the coordination engine and adds a random
increment to the goal's progress until it reaches 100%.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var goalsCreateCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Create an autonomous goal",
	Long: `Queue a new goal for the orchestrator. The goal ID is printed immediately;
the first tick happens a few seconds after the orchestrator picks it up.

Examples:
  warren goals create "Track laptop prices" --priority 7
  warren goals create "Weekly digest" --step gather --step summarize --deadline 7d`,
	Args: cobra.ExactArgs(1),
	RunE: runGoalsCreate,
}

var goalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals and their progress",
	Args:  cobra.NoArgs,
	RunE:  runGoalsList,
}

var goalsCancelCmd = &cobra.Command{
	Use:   "cancel <goal-id | prefix>",
	Short: "Cancel an active goal",
	Long: `Ask the orchestrator to stop an active goal. The goal is marked failed and
receives no further ticks. Completed or already cancelled goals are rejected.

The goal may be named by its full ID or by a unique prefix of at least six
characters, such as the short ID shown by 'warren goals list'.`,
	Args: cobra.ExactArgs(1),
	RunE: runGoalsCancel,
}

func init() {
	goalsCreateCmd.Flags().StringVarP(&goalType, "type", "t", "", "Goal type (default general)")
	goalsCreateCmd.Flags().IntVarP(&goalPriority, "priority", "p", 5, "Goal priority 1-10")
	goalsCreateCmd.Flags().StringArrayVar(&goalSteps, "step", nil, "Named step, run in order (repeatable)")
	goalsCreateCmd.Flags().StringVar(&goalDeadline, "deadline", "", "Deadline as a duration from now (48h, 7d) or RFC3339")

	goalsListCmd.Flags().StringVar(&goalStatusFilter, "status", "", "Only show goals with this status (active, completed, failed)")
	goalsListCmd.Flags().StringVarP(&goalsOutput, "output", "o", "default", "Output format (default or json)")

	goalsCmd.AddCommand(goalsCreateCmd, goalsListCmd, goalsCancelCmd)
	rootCmd.AddCommand(goalsCmd)
}

func runGoalsCreate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	if goalPriority < 1 || goalPriority > 10 {
		return printer.Error("invalid priority", fmt.Sprintf("Priority must be between 1 and 10, got %d", goalPriority), nil)
	}

	req := &blackboard.Request{
		ID:          uuid.New().String(),
		Kind:        blackboard.RequestKindGoal,
		Text:        args[0],
		Type:        goalType,
		Priority:    goalPriority,
		Steps:       goalSteps,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if goalDeadline != "" {
		deadline, err := timespec.Deadline(goalDeadline, time.Now())
		if err != nil {
			return printer.Error("invalid deadline", err.Error(), []string{"Use a duration like 48h or 7d, or an RFC3339 time"})
		}
		deadline = deadline.UTC()
		req.Deadline = &deadline
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.EnqueueRequest(ctx, req); err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}

	printer.Success("Goal %s queued for instance '%s'\n", req.ID, instanceName)
	return nil
}

func runGoalsList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	format, err := watch.ParseOutputFormat(goalsOutput)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	var filter blackboard.GoalStatus
	if goalStatusFilter != "" {
		filter = blackboard.GoalStatus(goalStatusFilter)
		if err := filter.Validate(); err != nil {
			return printer.Error("invalid status", err.Error(), []string{"Valid statuses: active, completed, failed"})
		}
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	all, err := client.ListGoals(ctx)
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}

	gs := all
	if filter != "" {
		gs = make([]*blackboard.Goal, 0, len(all))
		for _, g := range all {
			if g.Status == filter {
				gs = append(gs, g)
			}
		}
	}

	if format == watch.OutputFormatJSON {
		return status.FormatJSONL(cmd.OutOrStdout(), gs)
	}
	status.FormatGoals(cmd.OutOrStdout(), gs, time.Now())
	return nil
}

func runGoalsCancel(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	goalID, err := resolver.ResolveGoalID(ctx, client, args[0])
	if err != nil {
		var (
			notFound  *resolver.NotFoundError
			ambiguous *resolver.AmbiguousError
		)
		switch {
		case errors.As(err, &notFound):
			return printer.ErrorWithContext(
				"goal not found",
				"",
				map[string]string{"Goal": args[0], "Instance": instanceName},
				[]string{"List goals:\n     warren goals list"},
			)
		case errors.As(err, &ambiguous):
			return printer.Error(
				"ambiguous goal ID",
				fmt.Sprintf("%q matches %d goals:\n%s", args[0], len(ambiguous.Matches), ambiguous.Listing()),
				[]string{"Use a longer prefix to uniquely identify the goal"},
			)
		case errors.Is(err, resolver.ErrInvalidShortID):
			return printer.Error("invalid goal ID", err.Error(), []string{"List goals:\n     warren goals list"})
		default:
			return err
		}
	}

	g, err := client.GetGoal(ctx, goalID)
	if err != nil {
		return fmt.Errorf("failed to load goal: %w", err)
	}
	if g.Status != blackboard.GoalStatusActive {
		return printer.Error("goal is not active", fmt.Sprintf("Goal %s is already %s.", goalID, g.Status), nil)
	}

	req := &blackboard.Request{
		ID:          uuid.New().String(),
		Kind:        blackboard.RequestKindCancelGoal,
		GoalID:      goalID,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := client.EnqueueRequest(ctx, req); err != nil {
		return fmt.Errorf("failed to cancel goal: %w", err)
	}

	printer.Success("Cancellation of goal %s queued\n", goalID)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
