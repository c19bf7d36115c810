package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mlchallenge/forge/pkg/types"
)

// SmokeTest runs a target's verification command inside a throwaway container
// of the given image reference.
//
// The check passes when the command exits zero and, if the target declares
// expected output, that text appears on the combined output. Targets without
// a verification command are skipped and pass trivially.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts.
//   - client: Container client for engine operations.
//   - target: Target declaring the verification command.
//   - ref: Image reference to verify, normally the fresh latest tag.
//
// Returns:
//   - error: Non-nil if the run fails, exits non-zero, or output does not
//     contain the expected text.
func SmokeTest(
	ctx context.Context,
	client types.Client,
	target types.BuildTarget,
	ref string,
) error {
	if len(target.SmokeCommand) == 0 {
		logrus.WithField("target", target.Name).Debug("No verification command declared, skipping")

		return nil
	}

	clog := logrus.WithFields(logrus.Fields{
		"target":  target.Name,
		"ref":     ref,
		"command": strings.Join(target.SmokeCommand, " "),
	})
	clog.Info("Verifying image")

	result, err := client.RunOnce(ctx, ref, target.SmokeCommand, target.SmokeDeadline())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errSmokeTestFailed, target.Name, err)
	}

	if result.ExitCode != 0 {
		clog.WithFields(logrus.Fields{
			"exit_code": result.ExitCode,
			"output":    result.Output,
		}).Error("Verification command exited non-zero")

		return fmt.Errorf(
			"%w: %s: exit code %d",
			errSmokeTestFailed,
			target.Name,
			result.ExitCode,
		)
	}

	if target.SmokeExpect != "" && !strings.Contains(result.Output, target.SmokeExpect) {
		clog.WithFields(logrus.Fields{
			"expected": target.SmokeExpect,
			"output":   result.Output,
		}).Error("Verification output missing expected text")

		return fmt.Errorf(
			"%w: %s: output does not contain %q",
			errSmokeTestFailed,
			target.Name,
			target.SmokeExpect,
		)
	}

	clog.Info("Image verified")

	return nil
}
