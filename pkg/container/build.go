package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	cliBuild "github.com/docker/cli/cli/command/image/build"
	cliConfig "github.com/docker/cli/cli/config"
	dockerBuild "github.com/docker/docker/api/types/build"
	dockerRegistry "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/mlchallenge/forge/pkg/types"
)

// BuildImage builds an image from the request's context directory and
// Dockerfile, applying every requested tag in a single engine invocation, and
// returns the ID of the resulting image.
//
// Parameters:
//   - ctx: Context for API requests.
//   - req: Build request describing context, Dockerfile, tags, args, labels.
//
// Returns:
//   - types.ImageID: ID of the built image.
//   - error: Non-nil if tarring the context or the build itself fails.
func (c *client) BuildImage(ctx context.Context, req types.BuildRequest) (types.ImageID, error) {
	clog := logrus.WithFields(logrus.Fields{
		"context":    req.Context,
		"dockerfile": req.Dockerfile,
		"tags":       req.Tags,
	})

	buildContext, err := tarBuildContext(req.Context, req.Dockerfile)
	if err != nil {
		clog.WithError(err).Debug("Failed to tar build context")

		return "", fmt.Errorf("%w: %s: %w", errTarContextFailed, req.Context, err)
	}
	defer buildContext.Close()

	response, err := c.api.ImageBuild(ctx, buildContext, dockerBuild.ImageBuildOptions{
		Tags:        req.Tags,
		Dockerfile:  req.Dockerfile,
		BuildArgs:   req.BuildArgs,
		Labels:      req.Labels,
		Remove:      true,
		PullParent:  req.Pull,
		AuthConfigs: registryAuthConfigs(),
	})
	if err != nil {
		clog.WithError(err).Debug("Failed to start build")

		return "", fmt.Errorf("%w: %s: %w", errBuildFailed, req.Dockerfile, err)
	}
	defer response.Body.Close()

	imageID, err := followBuildOutput(response.Body)
	if err != nil {
		clog.WithError(err).Debug("Build failed")

		return "", fmt.Errorf("%w: %s: %w", errBuildFailed, req.Dockerfile, err)
	}

	clog.WithField("image_id", imageID.ShortID()).Debug("Build finished")

	return imageID, nil
}

// tarBuildContext tars the context directory for the build endpoint, honoring
// the directory's .dockerignore.
func tarBuildContext(contextDir, dockerfile string) (io.ReadCloser, error) {
	if err := cliBuild.ValidateContextDirectory(contextDir, nil); err != nil {
		return nil, err
	}

	excludes, err := cliBuild.ReadDockerignore(contextDir)
	if err != nil {
		return nil, err
	}

	// The Dockerfile and .dockerignore must survive their own exclusion
	// rules or the daemon cannot run the build.
	excludes = cliBuild.TrimBuildFilesFromExcludes(excludes, dockerfile, false)

	return archive.TarWithOptions(contextDir, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
}

// followBuildOutput streams the engine's build progress, forwarding it to the
// debug log, and extracts the built image ID from the stream's aux messages.
func followBuildOutput(body io.ReadCloser) (types.ImageID, error) {
	var imageID types.ImageID

	aux := func(msg jsonmessage.JSONMessage) {
		var result dockerBuild.Result
		if err := json.Unmarshal(*msg.Aux, &result); err != nil {
			logrus.WithError(err).Debug("Failed to decode build aux message")

			return
		}

		if result.ID != "" {
			imageID = types.ImageID(result.ID)
		}
	}

	out := logrus.StandardLogger().WriterLevel(logrus.DebugLevel)
	defer out.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(body, out, 0, false, aux); err != nil {
		return "", err
	}

	return imageID, nil
}

// registryAuthConfigs loads the credentials of the invoking user's Docker CLI
// configuration so base image pulls can reach private registries.
func registryAuthConfigs() map[string]dockerRegistry.AuthConfig {
	configFile := cliConfig.LoadDefaultConfigFile(os.Stderr)

	cliAuths, err := configFile.GetAllCredentials()
	if err != nil {
		logrus.WithError(err).Debug("Failed to load registry credentials")

		return nil
	}

	auths := make(map[string]dockerRegistry.AuthConfig, len(cliAuths))

	for host, auth := range cliAuths {
		auths[host] = dockerRegistry.AuthConfig{
			Username:      auth.Username,
			Password:      auth.Password,
			Auth:          auth.Auth,
			ServerAddress: auth.ServerAddress,
			IdentityToken: auth.IdentityToken,
			RegistryToken: auth.RegistryToken,
		}
	}

	return auths
}
