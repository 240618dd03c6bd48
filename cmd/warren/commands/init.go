package commands

import (
	"path/filepath"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit    bool
	initDir      string
	initExecutor string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter warren.yml",
	Long: `Write a starter warren.yml containing the built-in agent roster, the
coordination rules and every engine default, ready to be edited.

Creates:
  • warren.yml - Roster, rules and engine configuration
  • workers/example-worker/ - Example worker image (--executor=docker only)

Use --force to overwrite an existing configuration.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	// No -f shorthand: it would read as a file flag next to --config
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing warren.yml and example worker")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to initialize")
	initCmd.Flags().StringVar(&initExecutor, "executor", config.ExecutorSimulated, "Executor kind (simulated, openai, anthropic or docker)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting(initDir); err != nil {
			return printer.Error(
				"already initialized",
				err.Error(),
				[]string{"Re-run with --force to overwrite"},
			)
		}
	}

	created, err := scaffold.Initialize(scaffold.Options{Dir: initDir, Force: true, Executor: initExecutor})
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	printer.Success("Initialized warren in %s\n", initDir)
	for _, path := range created {
		printer.Info("  %s\n", filepath.Join(initDir, path))
	}

	printer.Info("\nNext steps:\n")
	if initExecutor == config.ExecutorDocker {
		printer.Info("  docker build -t %s %s\n", scaffold.WorkerImage, filepath.Join(initDir, scaffold.WorkerDir))
	}
	printer.Info("  warren-orchestrator   (reads %s via WARREN_CONFIG)\n", scaffold.ConfigFile)
	printer.Info("  warren submit \"navigate to example.com\"\n")
	return nil
}
