package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aiwm/aiwm/internal/cronexpr"
	"github.com/aiwm/aiwm/internal/store"
)

var (
	scheduleTimezone string
	scheduleProfile  string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage cron schedules for published workflows",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <workflow-id> <cron>",
	Short: "Attach a cron schedule to a workflow",
	Example: `  # Run workflow 3 every weekday at 09:00
  aiwm schedule add 3 "0 9 * * 1-5"

  # Same, evaluated in New York local time
  aiwm schedule add 3 "0 9 * * 1-5" --timezone America/New_York`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workflowID, err := parseID(args[0])
		if err != nil {
			return err
		}
		profile := scheduleProfile
		if profile == "" {
			profile = services.cfg.Scheduler.DefaultProfile
		}
		record, err := services.schedules.Add(cmd.Context(), workflowID, args[1], store.ScheduleOptions{
			Timezone: scheduleTimezone,
			Profile:  profile,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Schedule %d created, next run %s\n", record.ID, formatTime(record.NextRunAt))
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := services.schedules.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWORKFLOW\tCRON\tTIMEZONE\tPROFILE\tSTATUS\tLAST RUN\tNEXT RUN")
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.WorkflowID, r.Cron, r.Timezone, r.Profile, r.Status,
				formatTime(r.LastRunAt), formatTime(r.NextRunAt))
		}
		return w.Flush()
	},
}

var schedulePauseCmd = &cobra.Command{
	Use:   "pause <schedule-id>",
	Short: "Pause a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  scheduleStatusAction((*store.ScheduleStore).Pause, "paused"),
}

var scheduleResumeCmd = &cobra.Command{
	Use:   "resume <schedule-id>",
	Short: "Resume a paused schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  scheduleStatusAction((*store.ScheduleStore).Resume, "resumed"),
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  scheduleStatusAction((*store.ScheduleStore).Delete, "deleted"),
}

var scheduleNextCmd = &cobra.Command{
	Use:   "next <cron>",
	Short: "Show the next fire time for a cron expression",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		next, err := cronexpr.NextRunISO(args[0], cronexpr.Options{Timezone: scheduleTimezone})
		if err != nil {
			return err
		}
		fmt.Println(next)
		return nil
	},
}

func scheduleStatusAction(fn func(*store.ScheduleStore, context.Context, int64) error, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := fn(services.schedules, cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Schedule %d %s\n", id, verb)
		return nil
	}
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleTimezone, "timezone", "", "IANA timezone for evaluation (default UTC)")
	scheduleAddCmd.Flags().StringVar(&scheduleProfile, "profile", "", "execution profile")
	scheduleNextCmd.Flags().StringVar(&scheduleTimezone, "timezone", "", "IANA timezone for evaluation (default UTC)")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(schedulePauseCmd)
	scheduleCmd.AddCommand(scheduleResumeCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	scheduleCmd.AddCommand(scheduleNextCmd)
}
