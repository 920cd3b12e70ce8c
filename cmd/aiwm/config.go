package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aiwm/aiwm/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit preferences",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := services.cfg
		fmt.Printf("data_dir: %s\n", cfg.DataDir)
		fmt.Printf("storage.driver: %s\n", cfg.Storage.Driver)
		fmt.Printf("scheduler.interval_seconds: %d\n", cfg.Scheduler.IntervalSeconds)
		fmt.Printf("scheduler.default_profile: %s\n", cfg.Scheduler.DefaultProfile)
		fmt.Printf("notifications.quiet_hours: %s-%s\n",
			cfg.Notifications.QuietHours.Start, cfg.Notifications.QuietHours.End)
		fmt.Printf("notifications.channels: %v\n", cfg.Notifications.Channels)
		fmt.Printf("retention: logs %dd, telemetry %dd, security scans %dd, backups keep %d\n",
			cfg.Retention.Logs.Days, cfg.Retention.Telemetry.Days,
			cfg.Retention.SecurityScans.Days, cfg.Retention.Backups.Keep)
		return nil
	},
}

var configQuietHoursCmd = &cobra.Command{
	Use:   "quiet-hours <start> <end>",
	Short: "Set the notification quiet hours window",
	Long: `Set the quiet-hours window as HH:mm times. Windows may wrap midnight
(22:00 06:00). Equal start and end disables suppression.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := services.cfg
		cfg.Notifications.QuietHours.Start = args[0]
		cfg.Notifications.QuietHours.End = args[1]
		if err := config.Save(cfg, configFile); err != nil {
			return err
		}
		fmt.Printf("Quiet hours set to %s-%s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configQuietHoursCmd)
}
