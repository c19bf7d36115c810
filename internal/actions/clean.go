package actions

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlchallenge/forge/pkg/types"
)

// composeProjectLabel is the label compose puts on containers it manages;
// cleanup uses it to find the project's own containers.
const composeProjectLabel = "com.docker.compose.project"

// Confirmer asks the user a yes/no question before a destructive operation.
type Confirmer interface {
	// Confirm returns true when the user accepts the prompt.
	Confirm(prompt string) bool
}

// StdioConfirmer prompts on the given streams, defaulting to no.
type StdioConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm writes the prompt and reads one line; only an explicit "y" or
// "yes" counts as acceptance.
func (c StdioConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.Out, "%s [y/N]: ", prompt)

	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes"
}

// CleanupParams configures one cleanup run.
type CleanupParams struct {
	// Scopes selects which sub-operations run, in their canonical order.
	Scopes []types.CleanupScope
	// Prefix is the project naming prefix for containers and images.
	Prefix string
	// RemoveNamed escalates the images scope to also remove images named
	// under the prefix, not just dangling ones.
	RemoveNamed bool
	// Force skips the confirmation prompt for the everything scope.
	Force bool
	// StopTimeout bounds each container stop.
	StopTimeout time.Duration
}

// Cleanup removes project containers and prunes unused engine resources
// according to the selected scopes.
//
// Every scope is idempotent and failures in one scope never stop the others.
// When the everything scope is selected, confirmation is asked up front
// unless forced; a declined prompt cancels the whole run without touching any
// resource and without error.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts.
//   - client: Container client for engine operations.
//   - params: Cleanup configuration.
//   - confirm: Confirmer consulted when the everything scope is selected.
//
// Returns:
//   - types.PruneResult: Aggregate removals and reclaimed bytes.
//   - error: Non-nil if any scope failed.
func Cleanup(
	ctx context.Context,
	client types.Client,
	params CleanupParams,
	confirm Confirmer,
) (types.PruneResult, error) {
	if slices.Contains(params.Scopes, types.ScopeEverything) && !params.Force {
		if !confirm.Confirm(
			"This removes ALL unused images, containers, volumes and networks, not just this project's. Continue?",
		) {
			logrus.Info("Full system prune declined, leaving all resources untouched")

			return types.PruneResult{}, nil
		}
	}

	var (
		total    types.PruneResult
		failures []string
	)

	runScope := func(scope types.CleanupScope, run func() (types.PruneResult, error)) {
		result, err := run()
		if err != nil {
			logrus.WithError(err).WithField("scope", scope).Error("Cleanup scope failed")
			failures = append(failures, string(scope))

			return
		}

		total.Add(result)
	}

	for _, scope := range params.Scopes {
		switch scope {
		case types.ScopeContainers:
			runScope(scope, func() (types.PruneResult, error) {
				return cleanContainers(ctx, client, params.Prefix, params.StopTimeout)
			})
		case types.ScopeImages:
			runScope(scope, func() (types.PruneResult, error) {
				return cleanImages(ctx, client, params.Prefix, params.RemoveNamed)
			})
		case types.ScopeVolumes:
			runScope(scope, func() (types.PruneResult, error) { return client.PruneVolumes(ctx) })
		case types.ScopeNetworks:
			runScope(scope, func() (types.PruneResult, error) { return client.PruneNetworks(ctx) })
		case types.ScopeBuildCache:
			runScope(scope, func() (types.PruneResult, error) { return client.PruneBuildCache(ctx) })
		case types.ScopeEverything:
			runScope(scope, func() (types.PruneResult, error) { return client.PruneSystem(ctx) })
		default:
			logrus.WithField("scope", scope).Warn("Unknown cleanup scope, skipping")
		}
	}

	if len(failures) > 0 {
		return total, fmt.Errorf("%w: %s", errCleanupFailed, strings.Join(failures, ", "))
	}

	return total, nil
}

// cleanContainers stops and removes the project's compose containers, then
// prunes all stopped containers.
func cleanContainers(
	ctx context.Context,
	client types.Client,
	prefix string,
	stopTimeout time.Duration,
) (types.PruneResult, error) {
	containers, err := client.ListContainers(ctx, true)
	if err != nil {
		return types.PruneResult{}, err
	}

	var removed int

	for _, candidate := range containers {
		if candidate.Labels[composeProjectLabel] != prefix {
			continue
		}

		clog := logrus.WithFields(logrus.Fields{
			"container": candidate.Name,
			"state":     candidate.State,
		})

		if err := client.StopAndRemoveContainer(ctx, candidate.ID, stopTimeout); err != nil {
			clog.WithError(err).Warn("Failed to remove project container")

			continue
		}

		clog.Info("Removed project container")

		removed++
	}

	pruned, err := client.PruneContainers(ctx)
	if err != nil {
		return types.PruneResult{Removed: removed}, err
	}

	pruned.Add(types.PruneResult{Removed: removed})

	return pruned, nil
}

// cleanImages prunes dangling images and, when removeNamed is set, also
// removes every image tagged under the project prefix.
func cleanImages(
	ctx context.Context,
	client types.Client,
	prefix string,
	removeNamed bool,
) (types.PruneResult, error) {
	total, err := client.PruneImages(ctx)
	if err != nil {
		return types.PruneResult{}, err
	}

	if !removeNamed {
		return total, nil
	}

	images, err := client.ListImagesByPrefix(ctx, prefix)
	if err != nil {
		return total, err
	}

	for _, image := range images {
		if err := client.RemoveImage(ctx, image.Ref); err != nil {
			logrus.WithError(err).WithField("ref", image.Ref).Warn("Failed to remove project image")

			continue
		}

		logrus.WithField("ref", image.Ref).Info("Removed project image")
		total.Add(types.PruneResult{Removed: 1, SpaceReclaimed: image.Size})
	}

	return total, nil
}
