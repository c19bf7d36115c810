// Package sorter orders image lists for retention pruning.
package sorter

import (
	"sort"

	"github.com/mlchallenge/forge/pkg/types"
)

// SortByCreated sorts images in place, newest creation time first.
//
// Entries with equal creation times (the latest tag and the timestamp tag of
// the same build share one artifact) are broken by tag: the latest tag sorts
// first, then timestamp tags in reverse lexicographic order, which matches
// reverse chronological order for the tag format.
func SortByCreated(images []types.ImageInfo) {
	sort.SliceStable(images, func(i, j int) bool {
		if images[i].Created != images[j].Created {
			return images[i].Created > images[j].Created
		}

		iLatest := images[i].Tag() == types.LatestTag
		jLatest := images[j].Tag() == types.LatestTag

		if iLatest != jLatest {
			return iLatest
		}

		return images[i].Tag() > images[j].Tag()
	})
}
