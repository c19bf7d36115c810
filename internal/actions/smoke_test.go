package actions_test

import (
	"context"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/mlchallenge/forge/internal/actions"
	"github.com/mlchallenge/forge/internal/actions/mocks"
	"github.com/mlchallenge/forge/pkg/types"
)

var _ = ginkgo.Describe("the image verifier", func() {
	const ref = "mlchallenge/ml-api:20240517-093000"

	var target types.BuildTarget

	ginkgo.BeforeEach(func() {
		target = types.BuildTarget{
			Name:         "ml-api",
			Dockerfile:   "Dockerfile.api",
			SmokeCommand: []string{"python", "--version"},
			SmokeExpect:  "Python",
		}
	})

	ginkgo.When("the command exits zero with the expected output", func() {
		ginkgo.It("passes", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				ExecResults: map[string]types.ExecResult{
					ref: {ExitCode: 0, Output: "Python 3.12.1"},
				},
			})

			err := actions.SmokeTest(context.Background(), client, target, ref)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.RunRefs).To(gomega.ConsistOf(ref))
		})
	})

	ginkgo.When("the command exits non-zero", func() {
		ginkgo.It("fails with the exit code", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				ExecResults: map[string]types.ExecResult{
					ref: {ExitCode: 127, Output: "python: not found"},
				},
			})

			err := actions.SmokeTest(context.Background(), client, target, ref)

			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("exit code 127")))
		})
	})

	ginkgo.When("the output misses the expected text", func() {
		ginkgo.It("fails even on a zero exit", func() {
			client := mocks.CreateMockClient(&mocks.TestData{
				ExecResults: map[string]types.ExecResult{
					ref: {ExitCode: 0, Output: "bash 5.2"},
				},
			})

			err := actions.SmokeTest(context.Background(), client, target, ref)

			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("Python")))
		})
	})

	ginkgo.When("the target declares no expected output", func() {
		ginkgo.It("passes on exit code alone", func() {
			target.SmokeExpect = ""
			client := mocks.CreateMockClient(&mocks.TestData{
				ExecResults: map[string]types.ExecResult{
					ref: {ExitCode: 0, Output: ""},
				},
			})

			err := actions.SmokeTest(context.Background(), client, target, ref)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})
	})

	ginkgo.When("the target declares no verification command", func() {
		ginkgo.It("skips without touching the engine", func() {
			target.SmokeCommand = nil
			client := mocks.CreateMockClient(&mocks.TestData{})

			err := actions.SmokeTest(context.Background(), client, target, ref)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(client.TestData.RunRefs).To(gomega.BeEmpty())
		})
	})
})
