// Package cmd contains the command-line interface (CLI) definitions and execution logic for Forge.
// It provides the root command and its subcommands, orchestrating image builds, post-build
// verification, security scanning, retention pruning, and scheduled build sessions. This package
// serves as the primary entry point for the Forge CLI.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mlchallenge/forge/internal/actions"
	"github.com/mlchallenge/forge/internal/api"
	"github.com/mlchallenge/forge/internal/flags"
	"github.com/mlchallenge/forge/internal/meta"
	"github.com/mlchallenge/forge/pkg/container"
	"github.com/mlchallenge/forge/pkg/metrics"
	"github.com/mlchallenge/forge/pkg/notifications"
	"github.com/mlchallenge/forge/pkg/types"
)

// client is the engine client instance used for all image and container
// operations, initialized during the preRun phase from DOCKER_* settings.
var client types.Client

// scheduleSpec holds the cron-formatted schedule string that dictates when
// periodic build sessions occur. Empty means a single foreground session.
var scheduleSpec string

// targets holds the declared build targets after config loading.
var targets []types.BuildTarget

// buildParams holds the session configuration assembled from flags.
var buildParams actions.BuildParams

// retention is the per-repository retention policy applied after builds.
var retention types.RetentionPolicy

// notifier delivers session summaries; URL-less notifiers drop them.
var notifier *notifications.Notifier

// Flags read during preRun that steer the session pipeline.
var (
	runOnce      bool
	runSmoke     bool
	runScan      bool
	runPrune     bool
	metricsAddr  string
	smokeTimeout time.Duration
)

var rootCmd = NewRootCommand()

// NewRootCommand creates the root command for the Forge CLI.
func NewRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "forge [service...]",
		Short:  "Builds and maintains the project's Docker images",
		Long:   "\nForge builds the project's Docker images, verifies them with smoke checks,\nscans them for vulnerabilities, and prunes stale image revisions.",
		Run:    run,
		PreRun: preRun,
		Args:   cobra.ArbitraryArgs, // Positional arguments select build targets by name.
	}
}

// init registers command-line flags and subcommands during package initialization.
func init() {
	flags.SetDefaults()
	flags.RegisterDockerFlags(rootCmd)
	flags.RegisterBuildFlags(rootCmd)
	flags.RegisterSystemFlags(rootCmd)
	rootCmd.AddCommand(newCleanupCommand())
}

// Execute runs the root command and manages any errors encountered during its execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("Failed to execute root command")
	}
}

// preRun prepares the environment and configuration before the main command execution begins.
//
// It configures logging, loads and validates the build targets, sets the
// Docker environment from flags, and initializes the engine client and the
// notification system.
//
// Parameters:
//   - cmd: The cobra.Command instance being executed, providing access to parsed flags.
//   - _: A slice of string arguments (unused here, target names are handled in run).
func preRun(cmd *cobra.Command, _ []string) {
	flagsSet := cmd.PersistentFlags()

	if err := flags.SetupLogging(flagsSet); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logging")
	}

	scheduleSpec, _ = flagsSet.GetString("schedule")
	runOnce, _ = flagsSet.GetBool("run-once")
	metricsAddr, _ = flagsSet.GetString("metrics-addr")
	runSmoke, _ = flagsSet.GetBool("test")
	runScan, _ = flagsSet.GetBool("security-scan")
	runPrune, _ = flagsSet.GetBool("cleanup")
	smokeTimeout, _ = flagsSet.GetDuration("smoke-timeout")

	prefix, _ := flagsSet.GetString("prefix")
	parallel, _ := flagsSet.GetBool("parallel")
	maxParallel, _ := flagsSet.GetInt("max-parallel")
	pull, _ := flagsSet.GetBool("pull")
	keep, _ := flagsSet.GetInt("keep")

	if keep < 1 {
		logrus.Fatal("Please specify a keep count of at least 1")
	}

	if maxParallel < 0 {
		logrus.Fatal("Please specify a non-negative value for max-parallel")
	}

	buildArgs, err := flags.ReadBuildArgs(flagsSet)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to read build arguments")
	}

	buildParams = actions.BuildParams{
		Prefix:      prefix,
		Parallel:    parallel,
		MaxParallel: maxParallel,
		Pull:        pull,
		BuildArgs:   buildArgs,
	}
	retention = types.RetentionPolicy{Keep: keep}

	configPath, _ := flagsSet.GetString("config")

	declared, err := flags.LoadTargets(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load build targets")
	}

	targets = declared

	if err := flags.EnvConfig(cmd); err != nil {
		logrus.WithError(err).Fatal("Failed to configure Docker environment")
	}

	client = container.NewClient()

	urls, _ := flagsSet.GetStringSlice("notification-url")

	notifier, err = notifications.NewNotifier(urls)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize notifications")
	}
}

// run executes the main Forge logic based on parsed command-line flags.
//
// It selects and validates the requested targets, then either runs a single
// foreground session or enters scheduled mode, exiting non-zero when a
// session fails.
//
// Parameters:
//   - c: The cobra.Command instance being executed, providing access to parsed flags.
//   - names: Target names provided as positional arguments.
func run(c *cobra.Command, names []string) {
	flagsSet := c.PersistentFlags()

	requested, _ := flagsSet.GetStringSlice("service")
	requested = append(requested, names...)

	selected, err := flags.SelectTargets(targets, requested)
	if err != nil {
		logrus.WithError(err).Fatal("Unknown build target requested")
	}

	if err := flags.ValidateTargets(afero.NewOsFs(), selected); err != nil {
		logrus.WithError(err).Fatal("Build target validation failed")
	}

	startupLog := logrus.WithFields(logrus.Fields{
		"version": meta.Version,
		"targets": len(selected),
	})
	startupLog.Info("Forge ", meta.Version, " using Docker API v", client.GetVersion())

	if names := notifier.GetNames(); len(names) > 0 {
		startupLog.WithField("notifiers", names).Info("Session summaries enabled")
	}

	if scheduleSpec == "" || runOnce {
		report := runSession(context.Background(), selected)
		if !report.Success() {
			logrus.WithField("failed", len(report.Failed())).Debug("Exiting with non-zero status")
			os.Exit(1)
		}

		return
	}

	runSessionsOnSchedule(selected)
}

// runSession executes one full build session: build, then the opt-in smoke,
// scan and prune stages, then metrics and the summary notification.
//
// A smoke-check failure marks its target's result failed; the session
// continues through the remaining stages either way.
func runSession(ctx context.Context, selected []types.BuildTarget) types.Report {
	sessionStart := time.Now()

	report := actions.Build(ctx, client, selected, buildParams)

	if runSmoke {
		for i := range report.Results {
			result := &report.Results[i]
			if !result.Success || len(result.Tags) == 0 {
				continue
			}

			target := result.Target
			if smokeTimeout > 0 && target.SmokeTimeout == 0 {
				target.SmokeTimeout = smokeTimeout
			}

			// Verify the stable latest tag, as scanned below.
			ref := result.Tags[0].Ref()
			if err := actions.SmokeTest(ctx, client, target, ref); err != nil {
				result.Success = false
				result.Error = err.Error()
			}
		}
	}

	if runScan {
		refs := make([]string, 0, len(report.Results))

		for _, result := range report.Results {
			if result.Success && len(result.Tags) > 0 {
				refs = append(refs, result.Tags[0].Ref())
			}
		}

		if len(refs) > 0 {
			if err := actions.Scan(ctx, actions.ExecRunner{}, refs); err != nil {
				logrus.WithError(err).Error("Security scan failed")
			}
		}
	}

	var pruned types.PruneResult

	if runPrune {
		var err error

		pruned, err = actions.PruneStale(ctx, client, selected, buildParams.Prefix, retention)
		if err != nil {
			logrus.WithError(err).Error("Retention pruning had failures")
		}
	}

	metrics.Default().Register(metrics.NewMetric(report, pruned))
	notifier.SendSummary(report, pruned, time.Since(sessionStart))
	logSessionSummary(report, pruned)

	return report
}

// logSessionSummary writes the end-of-session accounting to the log.
func logSessionSummary(report types.Report, pruned types.PruneResult) {
	for _, result := range report.Results {
		if !result.Success {
			logrus.WithFields(logrus.Fields{
				"target": result.Target.Name,
				"error":  result.Error,
			}).Error("Target failed")

			continue
		}

		for _, tag := range result.Tags {
			logrus.WithFields(logrus.Fields{
				"ref":  tag.Ref(),
				"size": result.Size,
			}).Info("Image ready")
		}
	}

	logrus.WithFields(logrus.Fields{
		"built":  len(report.Built()),
		"failed": len(report.Failed()),
		"pruned": pruned.Removed,
	}).Info("Session finished")
}

// runSessionsOnSchedule schedules periodic build sessions according to the
// cron specification and serves the metrics endpoint meanwhile.
//
// It ensures graceful shutdown on interrupt signals (SIGINT, SIGTERM),
// handling concurrency with a lock channel so sessions never overlap.
func runSessionsOnSchedule(selected []types.BuildTarget) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := api.New(metricsAddr).Start(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to start metrics endpoint")
	}

	lock := make(chan bool, 1)
	lock <- true

	scheduler := cron.New()

	logrus.WithField("schedule_spec", scheduleSpec).Debug("Attempting to add cron function")

	if err := scheduler.AddFunc(scheduleSpec, func() {
		select {
		case v := <-lock:
			defer func() { lock <- v }()

			runSession(ctx, selected)
		default:
			logrus.Debug("Skipped session, another one is still running.")
		}

		nextRuns := scheduler.Entries()
		if len(nextRuns) > 0 {
			logrus.Debug("Scheduled next run: " + nextRuns[0].Next.String())
		}
	}); err != nil {
		logrus.WithError(err).Fatal("Failed to schedule build sessions")
	}

	logrus.WithField("next_run", scheduler.Entries()[0].Schedule.Next(time.Now())).
		Info("Starting scheduled build sessions")

	scheduler.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logrus.Debug("Context canceled, stopping scheduler...")
	case <-interrupt:
		logrus.Debug("Received interrupt signal, stopping scheduler...")
	}

	scheduler.Stop()
	logrus.Debug("Waiting for running session to finish...")
	<-lock
	metrics.Default().Shutdown()
	logrus.Debug("Scheduler stopped and session completed.")
}
