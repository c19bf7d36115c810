package actions_test

import (
	"context"
	"errors"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/mlchallenge/forge/internal/actions"
	"github.com/mlchallenge/forge/internal/actions/mocks"
	"github.com/mlchallenge/forge/pkg/types"
)

var errBoom = errors.New("base image not found")

var _ = ginkgo.Describe("the build session", func() {
	var (
		targets   []types.BuildTarget
		params    actions.BuildParams
		sessionAt time.Time
	)

	ginkgo.BeforeEach(func() {
		targets = []types.BuildTarget{
			{Name: "ml-api", Dockerfile: "Dockerfile.api", Context: "."},
			{Name: "ml-worker", Dockerfile: "Dockerfile.worker", Context: "."},
		}
		sessionAt = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
		params = actions.BuildParams{
			Prefix: "mlchallenge",
			Clock:  func() time.Time { return sessionAt },
		}
	})

	ginkgo.When("all targets build successfully", func() {
		ginkgo.It("applies the latest and timestamp tags in one invocation", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})

			report := actions.Build(context.Background(), client, targets, params)

			gomega.Expect(report.Success()).To(gomega.BeTrue())
			gomega.Expect(client.TestData.BuildRequests).To(gomega.HaveLen(2))
			gomega.Expect(client.TestData.BuildRequests[0].Tags).To(gomega.Equal([]string{
				"mlchallenge/ml-api:latest",
				"mlchallenge/ml-api:20240517-093000",
			}))
		})

		ginkgo.It("keeps results in declared target order", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})

			report := actions.Build(context.Background(), client, targets, params)

			gomega.Expect(report.Results[0].Target.Name).To(gomega.Equal("ml-api"))
			gomega.Expect(report.Results[1].Target.Name).To(gomega.Equal("ml-worker"))
		})

		ginkgo.It("reports a human readable size for built images", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				InspectSizes: map[string]int64{
					"mlchallenge/ml-api:latest":    2_000_000_000,
					"mlchallenge/ml-worker:latest": 2_000_000_000,
				},
			})

			report := actions.Build(context.Background(), client, targets, params)

			gomega.Expect(report.Results[0].Size).To(gomega.Equal("2GB"))
		})
	})

	ginkgo.When("one target fails to build", func() {
		ginkgo.It("records the failure and still builds the rest", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				FailBuilds: map[string]error{"Dockerfile.api": errBoom},
			})

			report := actions.Build(context.Background(), client, targets, params)

			gomega.Expect(report.Success()).To(gomega.BeFalse())
			gomega.Expect(report.Failed()).To(gomega.HaveLen(1))
			gomega.Expect(report.Results[0].Error).To(gomega.ContainSubstring("base image not found"))
			gomega.Expect(report.Results[1].Success).To(gomega.BeTrue())
			gomega.Expect(client.TestData.BuildRequests).To(gomega.HaveLen(2))
		})
	})

	ginkgo.When("builds run in parallel", func() {
		ginkgo.It("still returns results in declared order", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})
			params.Parallel = true

			report := actions.Build(context.Background(), client, targets, params)

			gomega.Expect(report.Success()).To(gomega.BeTrue())
			gomega.Expect(report.Results[0].Target.Name).To(gomega.Equal("ml-api"))
			gomega.Expect(report.Results[1].Target.Name).To(gomega.Equal("ml-worker"))
		})

		ginkgo.It("produces the same tag set as a sequential session", func() {
			sequential := mocks.CreateMockClient(&mocks.TestData{})
			actions.Build(context.Background(), sequential, targets, params)

			concurrent := mocks.CreateMockClient(&mocks.TestData{})
			params.Parallel = true
			actions.Build(context.Background(), concurrent, targets, params)

			collect := func(client *mocks.MockClient) []string {
				var tags []string
				for _, request := range client.TestData.BuildRequests {
					tags = append(tags, request.Tags...)
				}

				return tags
			}

			gomega.Expect(collect(concurrent)).To(gomega.ConsistOf(collect(sequential)))
		})

		ginkgo.It("does not abort siblings when one build fails", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				FailBuilds: map[string]error{"Dockerfile.worker": errBoom},
			})
			params.Parallel = true
			params.MaxParallel = 2

			report := actions.Build(context.Background(), client, targets, params)

			gomega.Expect(report.Results[0].Success).To(gomega.BeTrue())
			gomega.Expect(report.Results[1].Success).To(gomega.BeFalse())
		})
	})

	ginkgo.When("a target declares no context", func() {
		ginkgo.It("defaults to the working directory", func() {
			client := mocks.CreateMockClient(&mocks.TestData{})

			actions.Build(context.Background(), client, []types.BuildTarget{
				{Name: "ml-api", Dockerfile: "Dockerfile.api"},
			}, params)

			gomega.Expect(client.TestData.BuildRequests[0].Context).To(gomega.Equal("."))
		})
	})
})
