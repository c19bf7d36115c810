package actions

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner abstracts scanner binary lookup and execution so tests can
// substitute the host toolchain.
type Runner interface {
	// LookPath reports the absolute path of a binary, or an error when it is
	// not installed.
	LookPath(name string) (string, error)
	// Run executes a binary with arguments and returns its combined output.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs scanners through the host's exec facilities.
type ExecRunner struct{}

// LookPath resolves a binary on the host PATH.
func (ExecRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("failed to locate %s: %w", name, err)
	}

	return path, nil
}

// Run executes a binary and returns its combined stdout and stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("failed to run %s: %w", name, err)
	}

	return string(output), nil
}

// scanner describes one supported vulnerability scanner and how to invoke it
// against an image reference.
type scanner struct {
	binary string
	args   func(ref string) []string
}

// scanners lists supported scanners in preference order.
var scanners = []scanner{
	{
		binary: "trivy",
		args: func(ref string) []string {
			return []string{"image", "--severity", "HIGH,CRITICAL", "--no-progress", ref}
		},
	},
	{
		binary: "grype",
		args: func(ref string) []string {
			return []string{ref, "--only-fixed"}
		},
	},
}

// Scan runs the first installed vulnerability scanner over the given image
// references.
//
// Findings are reported through the log and never fail the session; only a
// scanner that cannot be executed returns an error. When no supported scanner
// is installed, a warning is logged and scanning is skipped without error.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts.
//   - runner: Runner used to locate and execute scanner binaries.
//   - refs: Image references to scan.
//
// Returns:
//   - error: Non-nil only when a located scanner fails to execute.
func Scan(ctx context.Context, runner Runner, refs []string) error {
	active, found := findScanner(runner)
	if !found {
		logrus.Warn("No supported vulnerability scanner found (tried trivy, grype), skipping scan")

		return nil
	}

	for _, ref := range refs {
		clog := logrus.WithFields(logrus.Fields{
			"scanner": active.binary,
			"ref":     ref,
		})
		clog.Info("Scanning image")

		output, err := runner.Run(ctx, active.binary, active.args(ref)...)
		if err != nil {
			clog.WithError(err).Error("Scanner invocation failed")

			return fmt.Errorf("%w: %s: %w", errScannerFailed, active.binary, err)
		}

		if trimmed := strings.TrimSpace(output); trimmed != "" {
			clog.WithField("report", trimmed).Info("Scan finished")
		} else {
			clog.Info("Scan finished with no findings")
		}
	}

	return nil
}

// findScanner returns the first supported scanner installed on the host.
func findScanner(runner Runner) (scanner, bool) {
	for _, candidate := range scanners {
		path, err := runner.LookPath(candidate.binary)
		if err != nil {
			continue
		}

		logrus.WithFields(logrus.Fields{
			"scanner": candidate.binary,
			"path":    path,
		}).Debug("Located vulnerability scanner")

		return candidate, true
	}

	return scanner{}, false
}
