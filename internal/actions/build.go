package actions

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/docker/go-units"

	"github.com/mlchallenge/forge/pkg/types"
)

// BuildParams configures one build session.
type BuildParams struct {
	// Prefix is the repository naming prefix for built images.
	Prefix string
	// Parallel builds all targets concurrently instead of in declared order.
	Parallel bool
	// MaxParallel bounds concurrent builds in parallel mode. Zero means
	// unbounded.
	MaxParallel int
	// Pull forces pulling newer base images.
	Pull bool
	// BuildArgs are forwarded into every build.
	BuildArgs map[string]*string
	// Clock supplies the session timestamp; nil means time.Now.
	Clock func() time.Time
}

// now returns the session clock, defaulting to time.Now.
func (p BuildParams) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}

	return time.Now()
}

// Build runs one build session over the given targets and aggregates the
// outcomes into a report.
//
// Every target produces exactly one engine build that applies both the stable
// latest tag and an immutable timestamp tag shared by the whole session. A
// failed target never aborts the session; its failure is recorded and the
// remaining targets still build. Results keep the declared target order even
// when builds run in parallel.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts.
//   - client: Container client for engine operations.
//   - targets: Targets to build, in declared order.
//   - params: Session configuration.
//
// Returns:
//   - types.Report: Aggregated per-target results in declared order.
func Build(
	ctx context.Context,
	client types.Client,
	targets []types.BuildTarget,
	params BuildParams,
) types.Report {
	sessionStart := params.now().UTC()
	timestamp := sessionStart.Format(types.TimestampFormat)
	labels := sessionLabels(sessionStart)

	logrus.WithFields(logrus.Fields{
		"targets":   len(targets),
		"timestamp": timestamp,
		"parallel":  params.Parallel,
	}).Debug("Starting build session")

	results := make([]types.BuildResult, len(targets))

	if params.Parallel {
		group, groupCtx := errgroup.WithContext(ctx)
		if params.MaxParallel > 0 {
			group.SetLimit(params.MaxParallel)
		}

		for i, target := range targets {
			group.Go(func() error {
				results[i] = buildTarget(groupCtx, client, target, params, timestamp, labels)

				// Failures are recorded in the result; never cancel siblings.
				return nil
			})
		}

		_ = group.Wait()
	} else {
		for i, target := range targets {
			results[i] = buildTarget(ctx, client, target, params, timestamp, labels)
		}
	}

	return types.Report{Results: results}
}

// buildTarget builds one target, applying the session's timestamp tag and the
// stable latest tag in a single engine invocation.
func buildTarget(
	ctx context.Context,
	client types.Client,
	target types.BuildTarget,
	params BuildParams,
	timestamp string,
	labels map[string]string,
) types.BuildResult {
	repository := target.Repository(params.Prefix)
	tags := []types.ImageTag{
		{Repository: repository, Tag: types.LatestTag},
		{Repository: repository, Tag: timestamp},
	}

	clog := logrus.WithFields(logrus.Fields{
		"target":     target.Name,
		"repository": repository,
		"tag":        timestamp,
	})
	clog.Info("Building image")

	contextDir := target.Context
	if contextDir == "" {
		contextDir = "."
	}

	refs := make([]string, 0, len(tags))
	for _, tag := range tags {
		refs = append(refs, tag.Ref())
	}

	start := time.Now()

	imageID, err := client.BuildImage(ctx, types.BuildRequest{
		Dockerfile: target.Dockerfile,
		Context:    contextDir,
		Tags:       refs,
		BuildArgs:  params.BuildArgs,
		Labels:     labels,
		Pull:       params.Pull,
	})

	duration := time.Since(start)

	if err != nil {
		clog.WithError(err).Error("Build failed")

		return types.BuildResult{
			Target:   target,
			Success:  false,
			Duration: duration,
			Error:    err.Error(),
		}
	}

	result := types.BuildResult{
		Target:   target,
		Success:  true,
		ID:       imageID,
		Tags:     tags,
		Duration: duration,
	}

	// The size query is informational; its failure never fails the build.
	if info, err := client.InspectImage(ctx, tags[0].Ref()); err != nil {
		clog.WithError(err).Warn("Failed to query built image size")
	} else {
		result.Size = units.HumanSize(float64(info.Size))
	}

	clog.WithFields(logrus.Fields{
		"image_id": imageID.ShortID(),
		"size":     result.Size,
		"duration": duration.Round(time.Millisecond),
	}).Info("Built image")

	return result
}
