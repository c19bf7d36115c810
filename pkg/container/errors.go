package container

import "errors"

// Sentinel errors for engine operations. Callers match these with errors.Is
// and wrap them with %w to carry engine detail.
var (
	// errBuildFailed indicates the engine reported a failed build step.
	errBuildFailed = errors.New("image build failed")
	// errTarContextFailed indicates the build context could not be archived.
	errTarContextFailed = errors.New("failed to archive build context")
	// errInspectImageFailed indicates an image inspection failed.
	errInspectImageFailed = errors.New("failed to inspect image")
	// errListImagesFailed indicates an image listing failed.
	errListImagesFailed = errors.New("failed to list images")
	// errRemoveImageFailed indicates an image removal failed.
	errRemoveImageFailed = errors.New("failed to remove image")
	// errListContainersFailed indicates a container listing failed.
	errListContainersFailed = errors.New("failed to list containers")
	// errRemoveContainerFailed indicates a container stop or removal failed.
	errRemoveContainerFailed = errors.New("failed to stop and remove container")
	// errPruneFailed indicates an engine prune sub-operation failed.
	errPruneFailed = errors.New("prune operation failed")
	// errRunFailed indicates a throwaway container run could not complete.
	errRunFailed = errors.New("failed to run container")
	// errRunTimeout indicates a throwaway container run exceeded its deadline.
	errRunTimeout = errors.New("container run timed out")
)
