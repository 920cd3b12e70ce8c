package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler loop",
	Long: `Start the polling scheduler: every interval, due schedules fire their
workflow's latest published version and retention cleanup runs. Blocks
until interrupted. With --once a single poll pass runs and the command
exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if runOnce {
			return services.runner.RunOnce(ctx)
		}

		fmt.Printf("Scheduler polling every %s, press Ctrl+C to stop\n", services.cfg.Interval())
		services.runner.Start(ctx)
		<-ctx.Done()
		services.runner.Stop()
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single poll pass and exit")
}
