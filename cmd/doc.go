// Package cmd contains the command-line interface (CLI) definitions and execution logic for Forge.
// It provides the root command and subcommands to orchestrate image builds, verification,
// retention pruning, and resource cleanup.
//
// Key components:
//   - rootCmd: Root command for build sessions, metrics, and scheduling.
//   - cleanup: Subcommand removing project containers and pruning unused resources.
//
// Usage examples:
//   - Run the CLI from main.go:
//     cmd.Execute()
//   - Build a single target:
//     forge ml-api
//   - Free disk space:
//     forge cleanup --all
//
// The package integrates with the actions, container, notifications, and flags packages,
// using Cobra for CLI parsing and logrus for logging.
package cmd
