package container

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/distribution/reference"
	dockerContainer "github.com/docker/docker/api/types/container"
	dockerFilters "github.com/docker/docker/api/types/filters"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerClient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/mlchallenge/forge/internal/util"
	"github.com/mlchallenge/forge/pkg/types"
)

// client is the concrete implementation of types.Client backed by the Docker
// API.
type client struct {
	api dockerClient.APIClient
}

// NewClient initializes a Docker API client from the environment (DOCKER_HOST,
// DOCKER_TLS_VERIFY, DOCKER_API_VERSION) with API version negotiation.
//
// Returns:
//   - types.Client: Initialized client instance (exits on failure).
func NewClient() types.Client {
	ctx := context.Background()

	cli, err := dockerClient.NewClientWithOpts(
		dockerClient.FromEnv,
		dockerClient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize Docker client")
	}

	cli.NegotiateAPIVersion(ctx)

	if serverVersion, err := cli.ServerVersion(ctx); err != nil {
		logrus.WithError(err).Debug("Failed to retrieve server version")
	} else {
		logrus.WithFields(logrus.Fields{
			"client_version": cli.ClientVersion(),
			"server_version": serverVersion.APIVersion,
		}).Debug("Initialized Docker client")
	}

	return &client{api: cli}
}

// InspectImage resolves a reference to the image it names.
func (c *client) InspectImage(ctx context.Context, ref string) (types.ImageInfo, error) {
	response, err := c.api.ImageInspect(ctx, ref)
	if err != nil {
		logrus.WithError(err).WithField("ref", ref).Debug("Failed to inspect image")

		return types.ImageInfo{}, fmt.Errorf("%w: %s: %w", errInspectImageFailed, ref, err)
	}

	created, _ := time.Parse(time.RFC3339Nano, response.Created)

	return types.ImageInfo{
		Ref:     ref,
		ID:      types.ImageID(response.ID),
		Created: created.Unix(),
		Size:    response.Size,
	}, nil
}

// ListImages returns one entry per tag for every tagged image in the given
// repository.
func (c *client) ListImages(ctx context.Context, repository string) ([]types.ImageInfo, error) {
	return c.listImages(ctx, repository, func(name string) bool {
		return name == repository
	})
}

// ListImagesByPrefix returns one entry per tag for every tagged image whose
// repository lives under the given naming prefix.
func (c *client) ListImagesByPrefix(ctx context.Context, prefix string) ([]types.ImageInfo, error) {
	return c.listImages(ctx, prefix+"/*", func(name string) bool {
		return strings.HasPrefix(name, prefix+"/")
	})
}

// listImages lists images through a reference filter and expands each summary
// into per-tag entries, keeping only tags whose repository passes match.
//
// The engine's reference filter selects matching summaries, but a summary's
// RepoTags can carry tags outside the filter, so tags are re-checked here.
func (c *client) listImages(
	ctx context.Context,
	pattern string,
	match func(repository string) bool,
) ([]types.ImageInfo, error) {
	summaries, err := c.api.ImageList(ctx, dockerImage.ListOptions{
		Filters: dockerFilters.NewArgs(dockerFilters.Arg("reference", pattern)),
	})
	if err != nil {
		logrus.WithError(err).WithField("pattern", pattern).Debug("Failed to list images")

		return nil, fmt.Errorf("%w: %s: %w", errListImagesFailed, pattern, err)
	}

	var images []types.ImageInfo

	for _, summary := range summaries {
		for _, tag := range summary.RepoTags {
			named, err := reference.ParseNormalizedNamed(tag)
			if err != nil {
				logrus.WithError(err).WithField("tag", tag).Debug("Skipping unparsable tag")

				continue
			}

			if !match(reference.FamiliarName(named)) {
				continue
			}

			images = append(images, types.ImageInfo{
				Ref:     tag,
				ID:      types.ImageID(summary.ID),
				Created: summary.Created,
				Size:    summary.Size,
			})
		}
	}

	logrus.WithFields(logrus.Fields{
		"pattern": pattern,
		"count":   len(images),
	}).Debug("Listed images")

	return images, nil
}

// RemoveImage deletes one tag reference from the local store.
func (c *client) RemoveImage(ctx context.Context, ref string) error {
	_, err := c.api.ImageRemove(ctx, ref, dockerImage.RemoveOptions{PruneChildren: true})
	if err != nil {
		logrus.WithError(err).WithField("ref", ref).Debug("Failed to remove image")

		return fmt.Errorf("%w: %s: %w", errRemoveImageFailed, ref, err)
	}

	logrus.WithField("ref", ref).Debug("Removed image")

	return nil
}

// RunOnce starts a throwaway container from ref, runs cmd to completion
// within timeout, captures its output, and removes the container afterwards.
func (c *client) RunOnce(
	ctx context.Context,
	ref string,
	cmd []string,
	timeout time.Duration,
) (types.ExecResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := "forge-check-" + util.RandName()
	clog := logrus.WithFields(logrus.Fields{"ref": ref, "container": name})

	created, err := c.api.ContainerCreate(
		runCtx,
		&dockerContainer.Config{Image: ref, Cmd: cmd},
		&dockerContainer.HostConfig{},
		nil,
		nil,
		name,
	)
	if err != nil {
		clog.WithError(err).Debug("Failed to create container")

		return types.ExecResult{}, fmt.Errorf("%w: %s: %w", errRunFailed, ref, err)
	}

	// Removal is deferred rather than delegated to AutoRemove so that logs
	// can still be read after the container exits.
	defer func() {
		removeCtx, removeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer removeCancel()

		if err := c.api.ContainerRemove(removeCtx, created.ID, dockerContainer.RemoveOptions{
			Force: true,
		}); err != nil && !cerrdefs.IsNotFound(err) {
			clog.WithError(err).Warn("Failed to remove throwaway container")
		}
	}()

	if err := c.api.ContainerStart(runCtx, created.ID, dockerContainer.StartOptions{}); err != nil {
		clog.WithError(err).Debug("Failed to start container")

		return types.ExecResult{}, fmt.Errorf("%w: %s: %w", errRunFailed, ref, err)
	}

	waitCh, errCh := c.api.ContainerWait(runCtx, created.ID, dockerContainer.WaitConditionNotRunning)

	var exitCode int64

	select {
	case waitResponse := <-waitCh:
		exitCode = waitResponse.StatusCode
	case err := <-errCh:
		clog.WithError(err).Debug("Failed to wait for container")

		return types.ExecResult{}, fmt.Errorf("%w: %s: %w", errRunFailed, ref, err)
	case <-runCtx.Done():
		clog.Debug("Container run exceeded deadline")

		return types.ExecResult{}, fmt.Errorf("%w: %s", errRunTimeout, ref)
	}

	output, err := c.containerOutput(created.ID)
	if err != nil {
		clog.WithError(err).Warn("Failed to capture container output")
	}

	clog.WithFields(logrus.Fields{
		"exit_code": exitCode,
		"output":    output,
	}).Debug("Throwaway container finished")

	return types.ExecResult{ExitCode: exitCode, Output: output}, nil
}

// containerOutput reads the combined stdout/stderr log of a finished
// container.
func (c *client) containerOutput(id string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logs, err := c.api.ContainerLogs(ctx, id, dockerContainer.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", errRunFailed, err)
	}
	defer logs.Close()

	var buf bytes.Buffer

	// The log stream is multiplexed; demux both channels into one buffer.
	if _, err := stdcopy.StdCopy(&buf, &buf, logs); err != nil {
		return "", fmt.Errorf("%w: %w", errRunFailed, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// ListContainers lists containers, including stopped ones when all is set.
func (c *client) ListContainers(ctx context.Context, all bool) ([]types.ContainerInfo, error) {
	summaries, err := c.api.ContainerList(ctx, dockerContainer.ListOptions{All: all})
	if err != nil {
		logrus.WithError(err).Debug("Failed to list containers")

		return nil, fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	containers := make([]types.ContainerInfo, 0, len(summaries))

	for _, summary := range summaries {
		name := ""
		if len(summary.Names) > 0 {
			name = strings.TrimPrefix(summary.Names[0], "/")
		}

		containers = append(containers, types.ContainerInfo{
			ID:     types.ContainerID(summary.ID),
			Name:   name,
			Image:  summary.Image,
			State:  string(summary.State),
			Labels: summary.Labels,
		})
	}

	return containers, nil
}

// StopAndRemoveContainer stops a container within timeout and removes it. A
// container that no longer exists counts as removed.
func (c *client) StopAndRemoveContainer(
	ctx context.Context,
	id types.ContainerID,
	timeout time.Duration,
) error {
	clog := logrus.WithField("container_id", id.ShortID())
	seconds := int(timeout.Seconds())

	if err := c.api.ContainerStop(ctx, string(id), dockerContainer.StopOptions{
		Timeout: &seconds,
	}); err != nil && !cerrdefs.IsNotFound(err) {
		clog.WithError(err).Debug("Failed to stop container")

		return fmt.Errorf("%w: %s: %w", errRemoveContainerFailed, id.ShortID(), err)
	}

	if err := c.api.ContainerRemove(ctx, string(id), dockerContainer.RemoveOptions{
		Force: true,
	}); err != nil && !cerrdefs.IsNotFound(err) {
		clog.WithError(err).Debug("Failed to remove container")

		return fmt.Errorf("%w: %s: %w", errRemoveContainerFailed, id.ShortID(), err)
	}

	clog.Debug("Stopped and removed container")

	return nil
}

// GetVersion returns the negotiated engine API version.
func (c *client) GetVersion() string {
	return strings.Trim(c.api.ClientVersion(), "\"")
}
