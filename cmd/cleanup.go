package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mlchallenge/forge/internal/actions"
	"github.com/mlchallenge/forge/internal/flags"
	"github.com/mlchallenge/forge/pkg/container"
	"github.com/mlchallenge/forge/pkg/types"
)

// newCleanupCommand creates the cleanup subcommand, which removes the
// project's containers and prunes unused engine resources.
func newCleanupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "cleanup",
		Short:  "Removes project containers and prunes unused Docker resources",
		Long:   "\nCleanup stops and removes the project's compose containers and prunes\nunused Docker resources. Without scope flags it runs the default scopes:\ncontainers, images, volumes and networks.",
		PreRun: preRunCleanup,
		Run:    runCleanup,
		Args:   cobra.NoArgs,
	}

	flags.RegisterCleanupFlags(cmd)

	return cmd
}

// preRunCleanup mirrors the root preRun for the cleanup subcommand, which
// runs its own lighter pipeline and skips target loading.
func preRunCleanup(cmd *cobra.Command, _ []string) {
	if err := flags.SetupLogging(cmd.Root().PersistentFlags()); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logging")
	}

	if err := flags.EnvConfig(cmd.Root()); err != nil {
		logrus.WithError(err).Fatal("Failed to configure Docker environment")
	}

	client = container.NewClient()
}

// runCleanup assembles the cleanup scopes from flags and executes them.
func runCleanup(cmd *cobra.Command, _ []string) {
	flagsSet := cmd.Flags()

	scopeFlags := []struct {
		name  string
		scope types.CleanupScope
	}{
		{"containers", types.ScopeContainers},
		{"images", types.ScopeImages},
		{"volumes", types.ScopeVolumes},
		{"networks", types.ScopeNetworks},
		{"build-cache", types.ScopeBuildCache},
	}

	var scopes []types.CleanupScope

	for _, sf := range scopeFlags {
		if enabled, _ := flagsSet.GetBool(sf.name); enabled {
			scopes = append(scopes, sf.scope)
		}
	}

	// No explicit scope selects the default set.
	if len(scopes) == 0 {
		scopes = types.DefaultScopes()
	}

	if everything, _ := flagsSet.GetBool("everything"); everything {
		scopes = append(scopes, types.ScopeEverything)
	}

	removeNamed, _ := flagsSet.GetBool("all")
	force, _ := flagsSet.GetBool("force")
	prefix, _ := cmd.Root().PersistentFlags().GetString("prefix")
	stopTimeout, _ := cmd.Root().PersistentFlags().GetDuration("stop-timeout")

	params := actions.CleanupParams{
		Scopes:      scopes,
		Prefix:      prefix,
		RemoveNamed: removeNamed,
		Force:       force,
		StopTimeout: stopTimeout,
	}

	confirm := actions.StdioConfirmer{In: os.Stdin, Out: os.Stderr}

	result, err := actions.Cleanup(cmd.Context(), client, params, confirm)
	if err != nil {
		logrus.WithError(err).Error("Cleanup finished with failures")
		os.Exit(1)
	}

	logrus.WithFields(logrus.Fields{
		"removed":   result.Removed,
		"reclaimed": result.SpaceReclaimed,
	}).Info("Cleanup finished")
}
