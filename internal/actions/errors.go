package actions

import "errors"

// Errors for build and verification operations.
var (
	// errSmokeTestFailed indicates a verification run exited non-zero or
	// produced unexpected output.
	errSmokeTestFailed = errors.New("image verification failed")
	// errScannerFailed indicates a scanner invocation failed to run.
	errScannerFailed = errors.New("vulnerability scanner failed")
)

// Errors for prune and cleanup operations.
var (
	// errPruneStaleFailed flags failures while removing stale tags.
	errPruneStaleFailed = errors.New("errors occurred while pruning stale tags")
	// errCleanupFailed flags failures during resource cleanup.
	errCleanupFailed = errors.New("errors occurred during resource cleanup")
)
