package actions_test

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/mlchallenge/forge/internal/actions"
	"github.com/mlchallenge/forge/internal/actions/mocks"
	"github.com/mlchallenge/forge/pkg/types"
)

// scriptedConfirmer answers every prompt with a fixed response and records
// whether it was consulted.
type scriptedConfirmer struct {
	answer bool
	asked  bool
}

func (c *scriptedConfirmer) Confirm(string) bool {
	c.asked = true

	return c.answer
}

var _ = ginkgo.Describe("the resource cleaner", func() {
	var params actions.CleanupParams

	ginkgo.BeforeEach(func() {
		params = actions.CleanupParams{
			Scopes:      types.DefaultScopes(),
			Prefix:      "mlchallenge",
			StopTimeout: 10 * time.Second,
		}
	})

	ginkgo.When("running the default scopes", func() {
		ginkgo.It("prunes containers, images, volumes and networks", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})
			confirm := &scriptedConfirmer{}

			_, err := actions.Cleanup(context.Background(), client, params, confirm)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.Pruned).To(gomega.Equal(
				[]string{"containers", "images", "volumes", "networks"},
			))
			gomega.Expect(confirm.asked).To(gomega.BeFalse())
		})

		ginkgo.It("removes only the project's compose containers", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				Containers: []types.ContainerInfo{
					{
						ID:     "aaa",
						Name:   "mlchallenge-api-1",
						State:  "running",
						Labels: map[string]string{"com.docker.compose.project": "mlchallenge"},
					},
					{
						ID:     "bbb",
						Name:   "postgres",
						State:  "running",
						Labels: map[string]string{"com.docker.compose.project": "otherapp"},
					},
					{ID: "ccc", Name: "plain", State: "exited"},
				},
			})

			_, err := actions.Cleanup(context.Background(), client, params, &scriptedConfirmer{})

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.RemovedContainers).To(gomega.ConsistOf(
				types.ContainerID("aaa"),
			))
		})
	})

	ginkgo.When("the images scope is escalated", func() {
		ginkgo.It("also removes images named under the prefix", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				Images: map[string][]types.ImageInfo{
					"mlchallenge": {
						{Ref: "mlchallenge/ml-api:latest", Size: 100},
						{Ref: "mlchallenge/ml-worker:latest", Size: 100},
					},
				},
			})
			params.Scopes = []types.CleanupScope{types.ScopeImages}
			params.RemoveNamed = true

			result, err := actions.Cleanup(context.Background(), client, params, &scriptedConfirmer{})

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.RemovedImages).To(gomega.ConsistOf(
				"mlchallenge/ml-api:latest",
				"mlchallenge/ml-worker:latest",
			))
			gomega.Expect(result.Removed).To(gomega.Equal(3))
		})
	})

	ginkgo.When("the everything scope is selected", func() {
		ginkgo.BeforeEach(func() {
			params.Scopes = []types.CleanupScope{types.ScopeEverything}
		})

		ginkgo.It("asks for confirmation and prunes on acceptance", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})
			confirm := &scriptedConfirmer{answer: true}

			_, err := actions.Cleanup(context.Background(), client, params, confirm)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(confirm.asked).To(gomega.BeTrue())
			gomega.Expect(client.TestData.Pruned).To(gomega.ContainElement("system"))
		})

		ginkgo.It("cancels without error when declined", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})
			confirm := &scriptedConfirmer{answer: false}

			_, err := actions.Cleanup(context.Background(), client, params, confirm)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.Pruned).To(gomega.BeEmpty())
		})

		ginkgo.It("asks before any scope when combined with the default set", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				Containers: []types.ContainerInfo{
					{
						ID:     "aaa",
						Name:   "mlchallenge-api-1",
						State:  "running",
						Labels: map[string]string{"com.docker.compose.project": "mlchallenge"},
					},
				},
			})
			confirm := &scriptedConfirmer{answer: false}
			params.Scopes = append(types.DefaultScopes(), types.ScopeEverything)

			result, err := actions.Cleanup(context.Background(), client, params, confirm)

			// A declined prompt must leave every resource untouched.
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(confirm.asked).To(gomega.BeTrue())
			gomega.Expect(client.TestData.Pruned).To(gomega.BeEmpty())
			gomega.Expect(client.TestData.RemovedContainers).To(gomega.BeEmpty())
			gomega.Expect(result).To(gomega.Equal(types.PruneResult{}))
		})

		ginkgo.It("runs the combined scopes in order on acceptance", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})
			confirm := &scriptedConfirmer{answer: true}
			params.Scopes = append(types.DefaultScopes(), types.ScopeEverything)

			_, err := actions.Cleanup(context.Background(), client, params, confirm)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.Pruned).To(gomega.Equal(
				[]string{"containers", "images", "volumes", "networks", "system"},
			))
		})

		ginkgo.It("skips the prompt when forced", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})
			confirm := &scriptedConfirmer{}
			params.Force = true

			_, err := actions.Cleanup(context.Background(), client, params, confirm)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(confirm.asked).To(gomega.BeFalse())
			gomega.Expect(client.TestData.Pruned).To(gomega.ContainElement("system"))
		})
	})

	ginkgo.When("a scope fails", func() {
		ginkgo.It("runs the remaining scopes and reports the failure", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				ListError: errors.New("boom"),
			})
			params.Scopes = []types.CleanupScope{types.ScopeImages, types.ScopeVolumes}
			params.RemoveNamed = true

			_, err := actions.Cleanup(context.Background(), client, params, &scriptedConfirmer{})

			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("images")))
			gomega.Expect(client.TestData.Pruned).To(gomega.ContainElement("volumes"))
		})
	})
})

var _ = ginkgo.Describe("the stdio confirmer", func() {
	ginkgo.It("accepts y and yes regardless of case", func() {
		for _, answer := range []string{"y\n", "Y\n", "yes\n", "YES\n"} {
			confirm := actions.StdioConfirmer{
				In:  strings.NewReader(answer),
				Out: ginkgo.GinkgoWriter,
			}
			gomega.Expect(confirm.Confirm("proceed?")).To(gomega.BeTrue())
		}
	})

	ginkgo.It("defaults to no", func() {
		for _, answer := range []string{"\n", "n\n", "nah\n", ""} {
			confirm := actions.StdioConfirmer{
				In:  strings.NewReader(answer),
				Out: ginkgo.GinkgoWriter,
			}
			gomega.Expect(confirm.Confirm("proceed?")).To(gomega.BeFalse())
		}
	})
})
