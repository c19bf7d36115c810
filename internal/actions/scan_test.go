package actions_test

import (
	"context"
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/mlchallenge/forge/internal/actions"
)

// fakeRunner scripts scanner availability and execution for tests.
type fakeRunner struct {
	installed map[string]bool
	runErr    error
	output    string
	calls     [][]string
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.installed[name] {
		return "/usr/local/bin/" + name, nil
	}

	return "", errors.New("executable file not found in $PATH")
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	r.calls = append(r.calls, append([]string{name}, args...))

	return r.output, r.runErr
}

var _ = ginkgo.Describe("the security scanner", func() {
	refs := []string{"mlchallenge/ml-api:latest", "mlchallenge/ml-worker:latest"}

	ginkgo.When("trivy is installed", func() {
		ginkgo.It("scans every reference with trivy", func() {
			runner := &fakeRunner{installed: map[string]bool{"trivy": true, "grype": true}}

			err := actions.Scan(context.Background(), runner, refs)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(runner.calls).To(gomega.HaveLen(2))
			gomega.Expect(runner.calls[0][0]).To(gomega.Equal("trivy"))
			gomega.Expect(runner.calls[0]).To(gomega.ContainElement("mlchallenge/ml-api:latest"))
		})
	})

	ginkgo.When("only grype is installed", func() {
		ginkgo.It("falls back to grype", func() {
			runner := &fakeRunner{installed: map[string]bool{"grype": true}}

			err := actions.Scan(context.Background(), runner, refs)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(runner.calls[0][0]).To(gomega.Equal("grype"))
		})
	})

	ginkgo.When("no scanner is installed", func() {
		ginkgo.It("skips scanning without error", func() {
			runner := &fakeRunner{}

			err := actions.Scan(context.Background(), runner, refs)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(runner.calls).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("the scanner fails to execute", func() {
		ginkgo.It("returns the failure", func() {
			runner := &fakeRunner{
				installed: map[string]bool{"trivy": true},
				runErr:    errors.New("database download failed"),
			}

			err := actions.Scan(context.Background(), runner, refs)

			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("trivy")))
		})
	})
})
