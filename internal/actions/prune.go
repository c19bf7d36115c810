package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlchallenge/forge/pkg/sorter"
	"github.com/mlchallenge/forge/pkg/types"
)

// PruneStale removes timestamped tags beyond the retention policy, per target.
//
// For every target the repository's timestamp-tagged revisions are sorted
// newest first and everything past the keep count is removed. The stable
// latest tag and any tag that does not parse as a build timestamp are never
// candidates. Image lists are per repository; targets never share candidates.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts.
//   - client: Container client for engine operations.
//   - targets: Targets whose repositories are pruned.
//   - prefix: Repository naming prefix.
//   - policy: Retention policy applied to every repository.
//
// Returns:
//   - types.PruneResult: Aggregate count of removed tags and reclaimed bytes.
//   - error: Non-nil if any removal failed; pruning still continues past
//     individual failures.
func PruneStale(
	ctx context.Context,
	client types.Client,
	targets []types.BuildTarget,
	prefix string,
	policy types.RetentionPolicy,
) (types.PruneResult, error) {
	keep := policy.Keep
	if keep < 1 {
		keep = 1
	}

	var (
		total    types.PruneResult
		failures []string
	)

	for _, target := range targets {
		repository := target.Repository(prefix)
		clog := logrus.WithField("repository", repository)

		images, err := client.ListImages(ctx, repository)
		if err != nil {
			clog.WithError(err).Error("Failed to list images for pruning")
			failures = append(failures, repository)

			continue
		}

		candidates := timestampTagged(images)
		sorter.SortByCreated(candidates)

		if len(candidates) <= keep {
			clog.WithField("revisions", len(candidates)).Debug("Nothing to prune")

			continue
		}

		for _, stale := range candidates[keep:] {
			if err := client.RemoveImage(ctx, stale.Ref); err != nil {
				clog.WithError(err).WithField("ref", stale.Ref).Warn("Failed to remove stale tag")
				failures = append(failures, stale.Ref)

				continue
			}

			clog.WithField("ref", stale.Ref).Info("Removed stale tag")
			total.Add(types.PruneResult{Removed: 1, SpaceReclaimed: stale.Size})
		}
	}

	if len(failures) > 0 {
		return total, fmt.Errorf("%w: %s", errPruneStaleFailed, strings.Join(failures, ", "))
	}

	return total, nil
}

// timestampTagged filters an image list down to revisions whose tag parses as
// a build timestamp. The latest tag and foreign tags are excluded.
func timestampTagged(images []types.ImageInfo) []types.ImageInfo {
	var candidates []types.ImageInfo

	for _, image := range images {
		tag := image.Tag()
		if tag == types.LatestTag {
			continue
		}

		if _, err := time.Parse(types.TimestampFormat, tag); err != nil {
			continue
		}

		candidates = append(candidates, image)
	}

	return candidates
}
