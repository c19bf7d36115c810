// Package flags manages command-line flags and environment variables for Forge configuration.
package flags

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DockerAPIMinVersion specifies the minimum Docker API version required by Forge.
// It ensures compatibility with the Docker client.
const DockerAPIMinVersion string = "1.44"

// defaultKeepCount defines the default number of timestamped tags retained per repository.
const defaultKeepCount = 3

// defaultStopTimeoutSeconds defines the default timeout for stopping containers (10 seconds).
const defaultStopTimeoutSeconds = 10

// defaultSmokeTimeoutSeconds defines the default deadline for image verification runs (30 seconds).
const defaultSmokeTimeoutSeconds = 30

// defaultImagePrefix defines the default repository naming prefix for built images.
const defaultImagePrefix = "mlchallenge"

// defaultMetricsAddr defines the default listen address of the scheduled-mode HTTP endpoint.
const defaultMetricsAddr = ":8080"

// errInvalidLogFormat indicates an invalid log format was specified.
// It is used in SetupLogging to report configuration errors.
var errInvalidLogFormat = errors.New("invalid log format specified")

// errInvalidLogLevel indicates an invalid log level was specified.
// It is used in SetupLogging to report configuration errors.
var errInvalidLogLevel = errors.New("invalid log level specified")

// errSetEnvFailed indicates a failure to set an environment variable.
// It is used in setEnvOptStr to wrap os.Setenv errors.
var errSetEnvFailed = errors.New("failed to set environment variable")

// errSetFlagFailed indicates a failure to read a flag's value.
var errSetFlagFailed = errors.New("failed to get flag value")

// RegisterDockerFlags adds flags used directly by the Docker API client to the root command.
// These flags configure the Docker connection settings.
func RegisterDockerFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringP("host", "H", envString("DOCKER_HOST"), "daemon socket to connect to")
	flags.BoolP("tlsverify", "v", envBool("DOCKER_TLS_VERIFY"), "use TLS and verify the remote")
	flags.StringP(
		"api-version",
		"a",
		envString("DOCKER_API_VERSION"),
		"api version to use by docker client",
	)
}

// RegisterBuildFlags adds flags that control the build session to the root command.
func RegisterBuildFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.StringSliceP(
		"service",
		"t",
		// Due to issue spf13/viper#380, can't use viper.GetStringSlice:
		strings.Fields(envString("FORGE_SERVICE")),
		"Names of the declared services to build (defaults to all)")

	flags.StringP(
		"prefix",
		"p",
		envString("FORGE_IMAGE_PREFIX"),
		"Repository naming prefix for built images")

	flags.StringP(
		"config",
		"c",
		envString("FORGE_CONFIG"),
		"Path to a build targets config file")

	flags.BoolP(
		"parallel",
		"",
		envBool("FORGE_PARALLEL"),
		"Build all selected services concurrently instead of in order")

	flags.IntP(
		"max-parallel",
		"j",
		envInt("FORGE_MAX_PARALLEL"),
		"Maximum concurrent builds in parallel mode (0 means unbounded)")

	flags.BoolP(
		"pull",
		"",
		envBool("FORGE_PULL"),
		"Always attempt to pull newer base images")

	flags.StringArrayP(
		"build-arg",
		"",
		nil,
		"Build-time variable passed to every build as KEY=VALUE (repeatable)")

	flags.BoolP(
		"test",
		"",
		envBool("FORGE_TEST"),
		"Run each built image's smoke check after building")

	flags.BoolP(
		"security-scan",
		"",
		envBool("FORGE_SECURITY_SCAN"),
		"Scan each built latest tag with an installed vulnerability scanner")

	flags.BoolP(
		"cleanup",
		"",
		envBool("FORGE_CLEANUP"),
		"Prune stale timestamped tags after building")

	flags.IntP(
		"keep",
		"k",
		envInt("FORGE_KEEP"),
		"Number of timestamped tags to retain per repository when pruning")

	flags.DurationP(
		"smoke-timeout",
		"",
		envDuration("FORGE_SMOKE_TIMEOUT"),
		"Deadline for each image verification run")
}

// RegisterSystemFlags adds flags that modify Forge's program flow to the root command.
// These flags control scheduling, logging, and operational modes.
func RegisterSystemFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.StringP(
		"schedule",
		"s",
		envString("FORGE_SCHEDULE"),
		"The cron expression which defines when to run build sessions")

	flags.BoolP(
		"run-once",
		"R",
		envBool("FORGE_RUN_ONCE"),
		"Run a single build session and exit, even when a schedule is set")

	flags.StringP(
		"metrics-addr",
		"",
		envString("FORGE_METRICS_ADDR"),
		"Listen address for the metrics and health endpoint in scheduled mode")

	flags.StringSliceP(
		"notification-url",
		"n",
		// Due to issue spf13/viper#380, can't use viper.GetStringSlice:
		strings.Fields(envString("FORGE_NOTIFICATION_URL")),
		"Shoutrrr URLs to send session summaries to")

	flags.DurationP(
		"stop-timeout",
		"",
		envDuration("FORGE_TIMEOUT"),
		"Timeout before a container is forcefully stopped")

	flags.StringP(
		"log-level",
		"",
		envString("FORGE_LOG_LEVEL"),
		"The maximum log level that will be written to STDERR. Possible values: panic, fatal, error, warn, info, debug or trace")

	flags.StringP(
		"log-format",
		"l",
		envString("FORGE_LOG_FORMAT"),
		"Sets what logging format to use for console output. Possible values: Auto, LogFmt, Pretty or JSON")

	flags.BoolP(
		"debug",
		"d",
		envBool("FORGE_DEBUG"),
		"Enable debug mode with verbose logging")

	flags.BoolP(
		"trace",
		"",
		envBool("FORGE_TRACE"),
		"Enable trace mode with very verbose logging - caution, exposes credentials")

	flags.BoolP(
		"no-color",
		"",
		viper.IsSet("NO_COLOR"),
		"Disable color output in logging")
}

// RegisterCleanupFlags adds resource cleanup flags to the cleanup command.
func RegisterCleanupFlags(cleanupCmd *cobra.Command) {
	flags := cleanupCmd.Flags()

	flags.BoolP(
		"containers",
		"",
		envBool("FORGE_CLEAN_CONTAINERS"),
		"Remove project containers and prune stopped containers")

	flags.BoolP(
		"images",
		"",
		envBool("FORGE_CLEAN_IMAGES"),
		"Prune dangling images")

	flags.BoolP(
		"volumes",
		"",
		envBool("FORGE_CLEAN_VOLUMES"),
		"Prune unused volumes")

	flags.BoolP(
		"networks",
		"",
		envBool("FORGE_CLEAN_NETWORKS"),
		"Prune unused networks")

	flags.BoolP(
		"build-cache",
		"",
		envBool("FORGE_CLEAN_BUILD_CACHE"),
		"Prune the builder cache")

	flags.BoolP(
		"all",
		"",
		envBool("FORGE_CLEAN_ALL"),
		"Also remove images named under the project prefix, not just dangling ones")

	flags.BoolP(
		"everything",
		"",
		envBool("FORGE_CLEAN_EVERYTHING"),
		"Run a full system prune after the selected scopes (asks for confirmation)")

	flags.BoolP(
		"force",
		"f",
		envBool("FORGE_CLEAN_FORCE"),
		"Skip the confirmation prompt for --everything")
}

// ReadBuildArgs collects the repeatable build-arg flag into the map shape the
// engine build call expects.
//
// Each entry splits at the first "=" into key and value. An entry without "="
// maps its key to a nil value, which makes the engine resolve it from the
// build environment, matching the docker CLI.
func ReadBuildArgs(flags *pflag.FlagSet) (map[string]*string, error) {
	raw, err := flags.GetStringArray("build-arg")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if len(raw) == 0 {
		return nil, nil
	}

	args := make(map[string]*string, len(raw))

	for _, pair := range raw {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			args[key] = nil

			continue
		}

		args[key] = &value
	}

	return args, nil
}

// envString reads a string value from the viper environment binding.
func envString(key string) string {
	viper.MustBindEnv(key)

	return viper.GetString(key)
}

// envInt reads an int value from the viper environment binding.
func envInt(key string) int {
	viper.MustBindEnv(key)

	return viper.GetInt(key)
}

// envBool reads a bool value from the viper environment binding.
func envBool(key string) bool {
	viper.MustBindEnv(key)

	return viper.GetBool(key)
}

// envDuration reads a duration value from the viper environment binding.
func envDuration(key string) time.Duration {
	viper.MustBindEnv(key)

	return viper.GetDuration(key)
}

// SetDefaults registers the default values for all environment-driven settings.
func SetDefaults() {
	viper.AutomaticEnv()
	viper.SetDefault("DOCKER_HOST", "unix:///var/run/docker.sock")
	viper.SetDefault("DOCKER_API_VERSION", DockerAPIMinVersion)
	viper.SetDefault("FORGE_IMAGE_PREFIX", defaultImagePrefix)
	viper.SetDefault("FORGE_KEEP", defaultKeepCount)
	viper.SetDefault("FORGE_MAX_PARALLEL", 0)
	viper.SetDefault("FORGE_TIMEOUT", time.Second*defaultStopTimeoutSeconds)
	viper.SetDefault("FORGE_SMOKE_TIMEOUT", time.Second*defaultSmokeTimeoutSeconds)
	viper.SetDefault("FORGE_METRICS_ADDR", defaultMetricsAddr)
	viper.SetDefault("FORGE_LOG_LEVEL", "info")
	viper.SetDefault("FORGE_LOG_FORMAT", "auto")
}

// EnvConfig sets environment variables based on Docker-related flags.
// It configures the Docker client's environment, returning an error if flag retrieval fails.
func EnvConfig(cmd *cobra.Command) error {
	var err error

	var host string

	var tls bool

	var version string

	flags := cmd.PersistentFlags()

	if host, err = flags.GetString("host"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if tls, err = flags.GetBool("tlsverify"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if version, err = flags.GetString("api-version"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err = setEnvOptStr("DOCKER_HOST", host); err != nil {
		return err
	}

	if err = setEnvOptBool("DOCKER_TLS_VERIFY", tls); err != nil {
		return err
	}

	if err = setEnvOptStr("DOCKER_API_VERSION", version); err != nil {
		return err
	}

	return nil
}

// setEnvOptStr sets an environment variable to a specified string value if needed.
// It skips setting if the value is empty or matches the current environment, returning an error if the set fails.
func setEnvOptStr(env string, opt string) error {
	if opt == "" || opt == os.Getenv(env) {
		return nil
	}

	if err := os.Setenv(env, opt); err != nil {
		return fmt.Errorf("%w: %s: %w", errSetEnvFailed, env, err)
	}

	return nil
}

// setEnvOptBool sets an environment variable to "1" if the boolean is true.
// It returns an error if the set operation fails, otherwise nil.
func setEnvOptBool(env string, opt bool) error {
	if opt {
		return setEnvOptStr(env, "1")
	}

	return nil
}

// SetupLogging configures logrus from the log-level, log-format, debug and
// trace flags.
func SetupLogging(flags *pflag.FlagSet) error {
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err := configureLogFormat(logFormat, noColor); err != nil {
		return err
	}

	rawLogLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if flagIsEnabled(flags, "debug") {
		rawLogLevel = "debug"
	}

	if flagIsEnabled(flags, "trace") {
		rawLogLevel = "trace"
	}

	logLevel, err := logrus.ParseLevel(rawLogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	logrus.SetLevel(logLevel)

	return nil
}

// configureLogFormat sets the logrus formatter based on the specified format and color preference.
// It returns an error if the format is invalid.
func configureLogFormat(logFormat string, noColor bool) error {
	switch strings.ToLower(logFormat) {
	case "auto":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors:             noColor,
			EnvironmentOverrideColors: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "logfmt":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !noColor,
			FullTimestamp: false,
		})
	default:
		return fmt.Errorf("%w: %s", errInvalidLogFormat, logFormat)
	}

	return nil
}

// flagIsEnabled checks if a boolean flag is set to true.
// It exits with a fatal error if the flag is not defined.
func flagIsEnabled(flags *pflag.FlagSet, name string) bool {
	value, err := flags.GetBool(name)
	if err != nil {
		logrus.Fatalf("The flag %q is not defined", name)
	}

	return value
}
