// Package mocks provides mock implementations for testing Forge components.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/mlchallenge/forge/pkg/types"
)

// MockClient is a mock implementation of a Forge Client for testing purposes.
// It simulates engine operations with configurable behavior defined by TestData.
type MockClient struct {
	TestData *TestData

	// mut guards TestData records, which parallel build sessions append to
	// concurrently.
	mut sync.Mutex
}

// TestData holds configuration data for MockClient's test behavior.
// It defines preconfigured images and containers, scripted failures, and
// records of the operations tests want to assert on.
type TestData struct {
	// Images maps a repository (or prefix) to the image list returned for it.
	Images map[string][]types.ImageInfo
	// Containers is the list returned by ListContainers.
	Containers []types.ContainerInfo
	// InspectSizes maps a reference to the size reported by InspectImage.
	InspectSizes map[string]int64

	// BuildID is the image ID returned by successful builds.
	BuildID types.ImageID
	// FailBuilds lists dockerfiles whose build fails.
	FailBuilds map[string]error
	// ExecResults maps an image reference to the scripted RunOnce outcome.
	ExecResults map[string]types.ExecResult
	// FailRemovals lists references whose removal fails.
	FailRemovals map[string]error
	// ListError, when set, fails every image list call.
	ListError error
	// PruneError, when set, fails every prune call.
	PruneError error

	// BuildRequests records every build in invocation order.
	BuildRequests []types.BuildRequest
	// RemovedImages records every removed image reference.
	RemovedImages []string
	// RemovedContainers records every stopped-and-removed container ID.
	RemovedContainers []types.ContainerID
	// RunRefs records every reference RunOnce was invoked with.
	RunRefs []string
	// Pruned records which prune operations ran, in order.
	Pruned []string
}

// CreateMockClient constructs a new MockClient instance for testing.
func CreateMockClient(data *TestData) *MockClient {
	if data.BuildID == "" {
		data.BuildID = "sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	}

	return &MockClient{TestData: data}
}

// BuildImage records the request and returns the scripted outcome.
func (client *MockClient) BuildImage(
	_ context.Context,
	req types.BuildRequest,
) (types.ImageID, error) {
	client.mut.Lock()
	client.TestData.BuildRequests = append(client.TestData.BuildRequests, req)
	client.mut.Unlock()

	if err, ok := client.TestData.FailBuilds[req.Dockerfile]; ok {
		return "", err
	}

	return client.TestData.BuildID, nil
}

// InspectImage returns a scripted size for known references.
func (client *MockClient) InspectImage(_ context.Context, ref string) (types.ImageInfo, error) {
	size := client.TestData.InspectSizes[ref]

	return types.ImageInfo{Ref: ref, ID: client.TestData.BuildID, Size: size}, nil
}

// ListImages returns the preconfigured image list for a repository.
func (client *MockClient) ListImages(_ context.Context, repository string) ([]types.ImageInfo, error) {
	if client.TestData.ListError != nil {
		return nil, client.TestData.ListError
	}

	return client.TestData.Images[repository], nil
}

// ListImagesByPrefix returns the preconfigured image list for a prefix.
func (client *MockClient) ListImagesByPrefix(_ context.Context, prefix string) ([]types.ImageInfo, error) {
	if client.TestData.ListError != nil {
		return nil, client.TestData.ListError
	}

	return client.TestData.Images[prefix], nil
}

// RemoveImage records the removal and returns any scripted failure.
func (client *MockClient) RemoveImage(_ context.Context, ref string) error {
	if err, ok := client.TestData.FailRemovals[ref]; ok {
		return err
	}

	client.TestData.RemovedImages = append(client.TestData.RemovedImages, ref)

	return nil
}

// RunOnce records the invocation and returns the scripted exec result.
func (client *MockClient) RunOnce(
	_ context.Context,
	ref string,
	_ []string,
	_ time.Duration,
) (types.ExecResult, error) {
	client.TestData.RunRefs = append(client.TestData.RunRefs, ref)

	return client.TestData.ExecResults[ref], nil
}

// ListContainers returns the preconfigured list of containers from TestData.
func (client *MockClient) ListContainers(_ context.Context, _ bool) ([]types.ContainerInfo, error) {
	return client.TestData.Containers, nil
}

// StopAndRemoveContainer records the removal and always succeeds.
func (client *MockClient) StopAndRemoveContainer(
	_ context.Context,
	id types.ContainerID,
	_ time.Duration,
) error {
	client.TestData.RemovedContainers = append(client.TestData.RemovedContainers, id)

	return nil
}

// PruneContainers records the prune pass.
func (client *MockClient) PruneContainers(_ context.Context) (types.PruneResult, error) {
	return client.prune("containers")
}

// PruneImages records the prune pass.
func (client *MockClient) PruneImages(_ context.Context) (types.PruneResult, error) {
	return client.prune("images")
}

// PruneVolumes records the prune pass.
func (client *MockClient) PruneVolumes(_ context.Context) (types.PruneResult, error) {
	return client.prune("volumes")
}

// PruneNetworks records the prune pass.
func (client *MockClient) PruneNetworks(_ context.Context) (types.PruneResult, error) {
	return client.prune("networks")
}

// PruneBuildCache records the prune pass.
func (client *MockClient) PruneBuildCache(_ context.Context) (types.PruneResult, error) {
	return client.prune("build-cache")
}

// PruneSystem records the prune pass.
func (client *MockClient) PruneSystem(_ context.Context) (types.PruneResult, error) {
	return client.prune("system")
}

// prune records one prune pass with a fixed per-pass result.
func (client *MockClient) prune(kind string) (types.PruneResult, error) {
	if client.TestData.PruneError != nil {
		return types.PruneResult{}, client.TestData.PruneError
	}

	client.TestData.Pruned = append(client.TestData.Pruned, kind)

	return types.PruneResult{Removed: 1, SpaceReclaimed: 100}, nil
}

// GetVersion returns a fixed API version string.
func (client *MockClient) GetVersion() string {
	return "1.44"
}
