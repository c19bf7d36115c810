package flags

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/mlchallenge/forge/pkg/types"
)

// errUnknownTarget indicates a requested target name is not declared.
var errUnknownTarget = errors.New("unknown build target")

// errReadConfigFailed indicates a target config file could not be read.
var errReadConfigFailed = errors.New("failed to read targets config")

// errInvalidTarget indicates a declared target is missing required fields.
var errInvalidTarget = errors.New("invalid build target")

// errMissingBuildFile indicates a target's Dockerfile or context does not exist.
var errMissingBuildFile = errors.New("missing build file")

// DefaultTargets returns the built-in build targets used when no config file
// overrides them.
func DefaultTargets() []types.BuildTarget {
	return []types.BuildTarget{
		{
			Name:         "ml-api",
			Dockerfile:   "Dockerfile.api",
			Context:      ".",
			SmokeCommand: []string{"python", "--version"},
			SmokeExpect:  "Python",
		},
		{
			Name:         "ml-worker",
			Dockerfile:   "Dockerfile.worker",
			Context:      ".",
			SmokeCommand: []string{"python", "--version"},
			SmokeExpect:  "Python",
		},
	}
}

// LoadTargets returns the declared build targets, reading them from the given
// config file when one is set and falling back to the defaults otherwise.
//
// Parameters:
//   - configPath: Path to a YAML/TOML/JSON config file with a "targets" list,
//     or empty for the built-in defaults.
//
// Returns:
//   - []types.BuildTarget: Declared targets.
//   - error: Non-nil if the config file cannot be read or decoded.
func LoadTargets(configPath string) ([]types.BuildTarget, error) {
	if configPath == "" {
		return DefaultTargets(), nil
	}

	loader := viper.New()
	loader.SetConfigFile(configPath)

	if err := loader.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errReadConfigFailed, configPath, err)
	}

	var config struct {
		Targets []types.BuildTarget `mapstructure:"targets"`
	}

	if err := loader.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errReadConfigFailed, configPath, err)
	}

	if len(config.Targets) == 0 {
		return nil, fmt.Errorf("%w: %s: no targets declared", errReadConfigFailed, configPath)
	}

	for _, target := range config.Targets {
		if target.Name == "" || target.Dockerfile == "" {
			return nil, fmt.Errorf(
				"%w: %s: every target needs a name and a dockerfile",
				errInvalidTarget,
				configPath,
			)
		}
	}

	logrus.WithFields(logrus.Fields{
		"config": configPath,
		"count":  len(config.Targets),
	}).Debug("Loaded build targets from config")

	return config.Targets, nil
}

// SelectTargets filters declared targets down to the requested names,
// preserving declared order. An empty request selects every target; an
// unknown name is an error and nothing is built.
func SelectTargets(
	declared []types.BuildTarget,
	requested []string,
) ([]types.BuildTarget, error) {
	if len(requested) == 0 {
		return declared, nil
	}

	byName := make(map[string]struct{}, len(declared))
	for _, target := range declared {
		byName[target.Name] = struct{}{}
	}

	var unknown []string

	for _, name := range requested {
		if _, ok := byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", errUnknownTarget, strings.Join(unknown, ", "))
	}

	wanted := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		wanted[name] = struct{}{}
	}

	var selected []types.BuildTarget

	for _, target := range declared {
		if _, ok := wanted[target.Name]; ok {
			selected = append(selected, target)
		}
	}

	return selected, nil
}

// ValidateTargets checks that each target's Dockerfile and context directory
// exist on the given filesystem before any build starts.
func ValidateTargets(fs afero.Fs, targets []types.BuildTarget) error {
	for _, target := range targets {
		contextDir := target.Context
		if contextDir == "" {
			contextDir = "."
		}

		if ok, err := afero.DirExists(fs, contextDir); err != nil || !ok {
			return fmt.Errorf(
				"%w: target %s: context directory %s",
				errMissingBuildFile,
				target.Name,
				contextDir,
			)
		}

		dockerfile := filepath.Join(contextDir, target.Dockerfile)
		if ok, err := afero.Exists(fs, dockerfile); err != nil || !ok {
			return fmt.Errorf(
				"%w: target %s: dockerfile %s",
				errMissingBuildFile,
				target.Name,
				dockerfile,
			)
		}
	}

	return nil
}
