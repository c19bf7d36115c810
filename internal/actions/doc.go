// Package actions provides core logic for Forge's build-and-lifecycle operations.
// It handles image builds, post-build verification, retention pruning, security
// scanning, and workspace cleanup.
//
// Key components:
//   - Build: Builds the selected targets and aggregates the session report.
//   - SmokeTest: Runs a target's verification command inside the fresh image.
//   - PruneStale: Removes timestamped tags beyond the retention policy.
//   - Scan: Runs a vulnerability scanner over the built images.
//   - Cleanup: Removes project containers and prunes unused engine resources.
//
// Usage example:
//
//	report := actions.Build(ctx, client, targets, params)
//	if !report.Success() {
//	    logrus.Error("Build session had failures")
//	}
//	pruned, err := actions.PruneStale(ctx, client, targets, params.Prefix, policy)
//
// The package integrates with the container, sorter, and types packages, using
// logrus for logging operations and errors.
package actions
