package actions

import (
	"time"

	"github.com/sirupsen/logrus"

	git "github.com/go-git/go-git/v5"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// sessionLabels builds the OCI annotation labels applied to every image of a
// session. The revision label is only set when the working directory is
// inside a git repository.
func sessionLabels(sessionStart time.Time) map[string]string {
	labels := map[string]string{
		ocispec.AnnotationCreated: sessionStart.Format(time.RFC3339),
	}

	if revision := gitRevision(); revision != "" {
		labels[ocispec.AnnotationRevision] = revision
	}

	return labels
}

// gitRevision resolves the HEAD commit hash of the repository containing the
// working directory, or empty when there is none.
func gitRevision() string {
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		logrus.WithError(err).Debug("No git repository detected for revision label")

		return ""
	}

	head, err := repo.Head()
	if err != nil {
		logrus.WithError(err).Debug("Failed to resolve git HEAD for revision label")

		return ""
	}

	return head.Hash().String()
}
