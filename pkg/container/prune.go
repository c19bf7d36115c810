package container

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	dockerBuild "github.com/docker/docker/api/types/build"
	dockerFilters "github.com/docker/docker/api/types/filters"

	"github.com/mlchallenge/forge/pkg/types"
)

// PruneContainers removes all stopped containers.
func (c *client) PruneContainers(ctx context.Context) (types.PruneResult, error) {
	report, err := c.api.ContainersPrune(ctx, dockerFilters.NewArgs())
	if err != nil {
		return types.PruneResult{}, fmt.Errorf("%w: containers: %w", errPruneFailed, err)
	}

	result := types.PruneResult{
		Removed:        len(report.ContainersDeleted),
		SpaceReclaimed: int64(report.SpaceReclaimed),
	}

	logPrune("containers", result)

	return result, nil
}

// PruneImages removes dangling images.
func (c *client) PruneImages(ctx context.Context) (types.PruneResult, error) {
	report, err := c.api.ImagesPrune(ctx, dockerFilters.NewArgs(
		dockerFilters.Arg("dangling", "true"),
	))
	if err != nil {
		return types.PruneResult{}, fmt.Errorf("%w: images: %w", errPruneFailed, err)
	}

	result := types.PruneResult{
		Removed:        len(report.ImagesDeleted),
		SpaceReclaimed: int64(report.SpaceReclaimed),
	}

	logPrune("images", result)

	return result, nil
}

// PruneVolumes removes anonymous volumes not used by any container.
func (c *client) PruneVolumes(ctx context.Context) (types.PruneResult, error) {
	report, err := c.api.VolumesPrune(ctx, dockerFilters.NewArgs())
	if err != nil {
		return types.PruneResult{}, fmt.Errorf("%w: volumes: %w", errPruneFailed, err)
	}

	result := types.PruneResult{
		Removed:        len(report.VolumesDeleted),
		SpaceReclaimed: int64(report.SpaceReclaimed),
	}

	logPrune("volumes", result)

	return result, nil
}

// PruneNetworks removes custom networks not used by any container.
func (c *client) PruneNetworks(ctx context.Context) (types.PruneResult, error) {
	report, err := c.api.NetworksPrune(ctx, dockerFilters.NewArgs())
	if err != nil {
		return types.PruneResult{}, fmt.Errorf("%w: networks: %w", errPruneFailed, err)
	}

	result := types.PruneResult{Removed: len(report.NetworksDeleted)}

	logPrune("networks", result)

	return result, nil
}

// PruneBuildCache clears the builder cache.
func (c *client) PruneBuildCache(ctx context.Context) (types.PruneResult, error) {
	report, err := c.api.BuildCachePrune(ctx, dockerBuild.CachePruneOptions{All: true})
	if err != nil {
		return types.PruneResult{}, fmt.Errorf("%w: build cache: %w", errPruneFailed, err)
	}

	result := types.PruneResult{
		Removed:        len(report.CachesDeleted),
		SpaceReclaimed: int64(report.SpaceReclaimed),
	}

	logPrune("build cache", result)

	return result, nil
}

// PruneSystem runs every prune in sequence, continuing past individual
// failures, and returns the aggregate alongside the first error encountered.
func (c *client) PruneSystem(ctx context.Context) (types.PruneResult, error) {
	var (
		total    types.PruneResult
		firstErr error
	)

	prunes := []func(context.Context) (types.PruneResult, error){
		c.PruneContainers,
		c.PruneImages,
		c.PruneVolumes,
		c.PruneNetworks,
		c.PruneBuildCache,
	}

	for _, prune := range prunes {
		result, err := prune(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		total.Add(result)
	}

	return total, firstErr
}

// logPrune emits a debug line for a completed prune pass.
func logPrune(kind string, result types.PruneResult) {
	logrus.WithFields(logrus.Fields{
		"kind":      kind,
		"removed":   result.Removed,
		"reclaimed": result.SpaceReclaimed,
	}).Debug("Prune pass finished")
}
