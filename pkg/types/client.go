package types

import (
	"context"
	"time"
)

// BuildRequest carries everything the engine needs for one image build.
//
// A single build invocation applies every listed tag to the resulting
// artifact; the builder never runs one build per tag.
type BuildRequest struct {
	// Dockerfile is the recipe path relative to the context root.
	Dockerfile string
	// Context is the directory tarred up and sent as the build context.
	Context string
	// Tags lists every repository:tag reference to apply to the result.
	Tags []string
	// BuildArgs are forwarded verbatim into the build. Nil values unset an
	// argument, matching the engine API convention.
	BuildArgs map[string]*string
	// Labels are applied to the resulting image.
	Labels map[string]string
	// Pull forces pulling a newer version of base images when set.
	Pull bool
}

// Client is the container engine abstraction Forge operates through.
//
// It narrows the Docker API to the operations the build pipeline and the
// resource cleaner need, so that tests can substitute a mock engine.
type Client interface {
	// BuildImage runs one build and applies every requested tag to the
	// result. It returns the built image ID, or the engine's error output on
	// a failed build.
	BuildImage(ctx context.Context, req BuildRequest) (ImageID, error)

	// InspectImage resolves a reference to the image it names.
	InspectImage(ctx context.Context, ref string) (ImageInfo, error)

	// ListImages returns every tagged image in the given repository, one
	// entry per tag. Order is unspecified; callers sort.
	ListImages(ctx context.Context, repository string) ([]ImageInfo, error)

	// ListImagesByPrefix returns every tagged image whose repository lives
	// under the given naming prefix.
	ListImagesByPrefix(ctx context.Context, prefix string) ([]ImageInfo, error)

	// RemoveImage deletes one tag reference. Removing the last tag of an
	// artifact deletes the artifact.
	RemoveImage(ctx context.Context, ref string) error

	// RunOnce starts a throwaway container from ref, runs cmd, waits for it
	// to terminate within timeout, and removes the container. The container's
	// exit code and combined output are returned; a non-zero exit is not an
	// error at this layer.
	RunOnce(ctx context.Context, ref string, cmd []string, timeout time.Duration) (ExecResult, error)

	// ListContainers lists containers, including stopped ones when all is
	// set.
	ListContainers(ctx context.Context, all bool) ([]ContainerInfo, error)

	// StopAndRemoveContainer stops a container within timeout and removes it.
	// A container that no longer exists is treated as removed.
	StopAndRemoveContainer(ctx context.Context, id ContainerID, timeout time.Duration) error

	// PruneContainers removes all stopped containers.
	PruneContainers(ctx context.Context) (PruneResult, error)

	// PruneImages removes dangling images.
	PruneImages(ctx context.Context) (PruneResult, error)

	// PruneVolumes removes unused anonymous volumes.
	PruneVolumes(ctx context.Context) (PruneResult, error)

	// PruneNetworks removes unused networks.
	PruneNetworks(ctx context.Context) (PruneResult, error)

	// PruneBuildCache removes unreferenced build cache entries.
	PruneBuildCache(ctx context.Context) (PruneResult, error)

	// PruneSystem performs an engine-wide prune of all unused resources,
	// including named images and volumes, regardless of naming prefix. Only
	// the confirmed "everything" cleanup scope calls this.
	PruneSystem(ctx context.Context) (PruneResult, error)

	// GetVersion returns the negotiated engine API version.
	GetVersion() string
}
