package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/aiwm/aiwm/internal/config"
	"github.com/aiwm/aiwm/internal/logging"
	"github.com/aiwm/aiwm/internal/notify"
	"github.com/aiwm/aiwm/internal/publish"
	"github.com/aiwm/aiwm/internal/retention"
	"github.com/aiwm/aiwm/internal/scheduler"
	"github.com/aiwm/aiwm/internal/store"
	"github.com/aiwm/aiwm/internal/workflow"
)

var configFile string

// app holds the wired services for the lifetime of one command
// invocation. Built in the root PersistentPreRunE, torn down in
// PersistentPostRunE.
type app struct {
	cfg        *config.Config
	db         *sqlx.DB
	log        *logging.Service
	schedules  *store.ScheduleStore
	workflows  *store.WorkflowStore
	drafts     *store.DraftStore
	engine     *workflow.Engine
	runtime    *workflow.Runtime
	dispatcher *notify.Dispatcher
	retention  *retention.Service
	publisher  *publish.Service
	runner     *scheduler.Runner
}

var services *app

var rootCmd = &cobra.Command{
	Use:   "aiwm",
	Short: "Workflow manager with cron scheduling",
	Long: `aiwm manages workflow drafts, validates and publishes them as
versioned workflows, and runs published workflows on cron schedules.`,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	SilenceUsage:       true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	log, err := logging.New(cfg.DataDir)
	if err != nil {
		return err
	}

	storeCfg := store.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN, Path: cfg.Storage.Path}
	if storeCfg.Driver == store.DriverSQLite && storeCfg.Path == "" {
		storeCfg.Path = cfg.DatabasePath()
	}
	db, err := store.Open(storeCfg)
	if err != nil {
		return err
	}

	engine := workflow.NewEngine()
	dispatcher := notify.NewDispatcher(func() notify.Preferences {
		return notify.Preferences{
			QuietHours: notify.QuietHours{
				Start: cfg.Notifications.QuietHours.Start,
				End:   cfg.Notifications.QuietHours.End,
			},
			Channels: cfg.Notifications.Channels,
		}
	}, log)
	policy := retention.Policy{
		LogsDays:          cfg.Retention.Logs.Days,
		TelemetryDays:     cfg.Retention.Telemetry.Days,
		SecurityScansDays: cfg.Retention.SecurityScans.Days,
		BackupsKeep:       cfg.Retention.Backups.Keep,
	}

	a := &app{
		cfg:        cfg,
		db:         db,
		log:        log,
		schedules:  store.NewScheduleStore(db, log),
		workflows:  store.NewWorkflowStore(db),
		drafts:     store.NewDraftStore(db),
		engine:     engine,
		runtime:    workflow.NewRuntime(engine),
		dispatcher: dispatcher,
		retention:  retention.New(cfg.DataDir, policy, log),
	}
	a.publisher = publish.New(a.workflows, a.drafts, engine)
	a.runner = scheduler.New(a.schedules, a.workflows, a.runtime, log, dispatcher,
		scheduler.WithInterval(cfg.Interval()),
		scheduler.WithRetention(a.retention),
	)

	services = a
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if services == nil {
		return nil
	}
	return services.db.Close()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}
