package commands

import (
	"fmt"

	"github.com/dyluth/warren/internal/instance"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/status"
	"github.com/dyluth/warren/internal/watch"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var instancesOutputFormat string

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List the warren instances sharing a Redis server",
	Long: `List every instance that has state on the Redis server: registered
agents, goals, queued requests or memories.

The --name flag is ignored; every instance is listed.`,
	Args: cobra.NoArgs,
	RunE: runInstances,
}

func init() {
	instancesCmd.Flags().StringVarP(&instancesOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(instancesCmd)
}

func runInstances(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	format, err := watch.ParseOutputFormat(instancesOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
	}

	redisOpts, err := parseRedisURL()
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	infos, err := instance.Discover(ctx, rdb)
	if err != nil {
		return printer.ErrorWithContext(
			"instance discovery failed",
			fmt.Sprintf("Could not scan Redis at %s", redisURL),
			map[string]string{"Error": err.Error()},
			nil,
		)
	}

	if format == watch.OutputFormatJSON {
		return status.FormatJSONL(cmd.OutOrStdout(), infos)
	}

	status.FormatInstances(cmd.OutOrStdout(), infos)
	return nil
}
