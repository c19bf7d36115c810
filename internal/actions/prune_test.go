package actions_test

import (
	"context"
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"

	"github.com/mlchallenge/forge/internal/actions"
	"github.com/mlchallenge/forge/internal/actions/mocks"
	"github.com/mlchallenge/forge/pkg/types"
)

// revisions builds a per-tag image list for a repository, assigning creation
// times so later entries in tags are older.
func revisions(repository string, tags ...string) []types.ImageInfo {
	images := make([]types.ImageInfo, 0, len(tags))
	for i, tag := range tags {
		images = append(images, types.ImageInfo{
			Ref:     repository + ":" + tag,
			ID:      types.ImageID("sha256:" + tag),
			Created: int64(1_700_000_000 - i*3600),
			Size:    50,
		})
	}

	return images
}

var _ = ginkgo.Describe("the retention pruner", func() {
	var (
		target types.BuildTarget
		policy types.RetentionPolicy
	)

	ginkgo.BeforeEach(func() {
		target = types.BuildTarget{Name: "ml-api", Dockerfile: "Dockerfile.api"}
		policy = types.DefaultRetentionPolicy()
	})

	ginkgo.When("a repository holds more revisions than the keep count", func() {
		ginkgo.It("removes only the oldest timestamped tags", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				Images: map[string][]types.ImageInfo{
					"mlchallenge/ml-api": revisions("mlchallenge/ml-api",
						"latest",
						"20240517-093000",
						"20240516-093000",
						"20240515-093000",
						"20240514-093000",
						"20240513-093000",
					),
				},
			})

			result, err := actions.PruneStale(
				context.Background(),
				client,
				[]types.BuildTarget{target},
				"mlchallenge",
				policy,
			)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(result.Removed).To(gomega.Equal(2))
			gomega.Expect(client.TestData.RemovedImages).To(gomega.ConsistOf(
				"mlchallenge/ml-api:20240514-093000",
				"mlchallenge/ml-api:20240513-093000",
			))
		})

		ginkgo.It("never removes the latest tag", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				Images: map[string][]types.ImageInfo{
					"mlchallenge/ml-api": revisions("mlchallenge/ml-api",
						"latest",
						"20240517-093000",
						"20240516-093000",
						"20240515-093000",
						"20240514-093000",
					),
				},
			})

			_, err := actions.PruneStale(
				context.Background(),
				client,
				[]types.BuildTarget{target},
				"mlchallenge",
				policy,
			)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.RemovedImages).NotTo(
				gomega.ContainElement("mlchallenge/ml-api:latest"),
			)
		})

		ginkgo.It("ignores tags that are not build timestamps", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				Images: map[string][]types.ImageInfo{
					"mlchallenge/ml-api": revisions("mlchallenge/ml-api",
						"v1.2.3",
						"20240517-093000",
						"20240516-093000",
						"20240515-093000",
						"20240514-093000",
					),
				},
			})

			_, err := actions.PruneStale(
				context.Background(),
				client,
				[]types.BuildTarget{target},
				"mlchallenge",
				policy,
			)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.RemovedImages).To(gomega.ConsistOf(
				"mlchallenge/ml-api:20240514-093000",
			))
		})
	})

	ginkgo.When("a repository holds exactly the keep count", func() {
		ginkgo.It("removes nothing", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				Images: map[string][]types.ImageInfo{
					"mlchallenge/ml-api": revisions("mlchallenge/ml-api",
						"20240517-093000",
						"20240516-093000",
						"20240515-093000",
					),
				},
			})

			result, err := actions.PruneStale(
				context.Background(),
				client,
				[]types.BuildTarget{target},
				"mlchallenge",
				policy,
			)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(result.Removed).To(gomega.BeZero())
			gomega.Expect(client.TestData.RemovedImages).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("targets share a prefix", func() {
		ginkgo.It("prunes each repository independently", func() {
			worker := types.BuildTarget{Name: "ml-worker", Dockerfile: "Dockerfile.worker"}
			client := mocks.CreateMockClient(&mocks.TestData{
				Images: map[string][]types.ImageInfo{
					"mlchallenge/ml-api": revisions("mlchallenge/ml-api",
						"20240517-093000",
						"20240516-093000",
						"20240515-093000",
						"20240514-093000",
					),
					"mlchallenge/ml-worker": revisions("mlchallenge/ml-worker",
						"20240517-093000",
					),
				},
			})

			result, err := actions.PruneStale(
				context.Background(),
				client,
				[]types.BuildTarget{target, worker},
				"mlchallenge",
				policy,
			)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(result.Removed).To(gomega.Equal(1))
			gomega.Expect(client.TestData.RemovedImages).To(gomega.ConsistOf(
				"mlchallenge/ml-api:20240514-093000",
			))
		})
	})

	ginkgo.When("removals fail", func() {
		ginkgo.It("continues past the failure and reports it", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				Images: map[string][]types.ImageInfo{
					"mlchallenge/ml-api": revisions("mlchallenge/ml-api",
						"20240517-093000",
						"20240516-093000",
						"20240515-093000",
						"20240514-093000",
						"20240513-093000",
					),
				},
				FailRemovals: map[string]error{
					"mlchallenge/ml-api:20240514-093000": errors.New("in use"),
				},
			})

			result, err := actions.PruneStale(
				context.Background(),
				client,
				[]types.BuildTarget{target},
				"mlchallenge",
				policy,
			)

			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("20240514-093000")))
			gomega.Expect(result.Removed).To(gomega.Equal(1))
			gomega.Expect(client.TestData.RemovedImages).To(gomega.ConsistOf(
				"mlchallenge/ml-api:20240513-093000",
			))
		})

		ginkgo.It("logs each skipped removal as a warning", func() {
			hook := logrusTest.NewGlobal()
			defer hook.Reset()

			client := mocks.CreateMockClient(&mocks.TestData{
				Images: map[string][]types.ImageInfo{
					"mlchallenge/ml-api": revisions("mlchallenge/ml-api",
						"20240517-093000",
						"20240516-093000",
						"20240515-093000",
						"20240514-093000",
					),
				},
				FailRemovals: map[string]error{
					"mlchallenge/ml-api:20240514-093000": errors.New("in use"),
				},
			})

			_, err := actions.PruneStale(
				context.Background(),
				client,
				[]types.BuildTarget{target},
				"mlchallenge",
				policy,
			)

			gomega.Expect(err).To(gomega.HaveOccurred())

			var levels []logrus.Level
			for _, entry := range hook.Entries {
				if entry.Message == "Failed to remove stale tag" {
					levels = append(levels, entry.Level)
				}
			}

			gomega.Expect(levels).To(gomega.ConsistOf(logrus.WarnLevel))
		})
	})
})
