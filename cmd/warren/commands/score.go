package commands

import (
	"strings"

	"github.com/dyluth/warren/internal/analyzer"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/status"
	"github.com/dyluth/warren/internal/watch"
	"github.com/spf13/cobra"
)

var scoreOutputFormat string

var scoreCmd = &cobra.Command{
	Use:   "score <text>",
	Short: "Show how the analyzer ranks agents for an input",
	Long: `Score an input against every agent's vocabulary without submitting it.

Prints the winning agent, its confidence, the complexity bucket, the
supporting agents a multi-agent task would pull in, and every agent's score.
Runs locally against the configured roster; no orchestrator is needed.

Examples:
  warren score "navigate to example.com"
  warren score --output=json "compare laptop prices and write a summary"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(scoreOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := strings.Join(args, " ")
	analysis := analyzer.FromConfig(cfg).Score(input)

	if format == watch.OutputFormatJSON {
		return status.FormatJSON(cmd.OutOrStdout(), analysis)
	}
	status.FormatAnalysis(cmd.OutOrStdout(), input, analysis)
	return nil
}
