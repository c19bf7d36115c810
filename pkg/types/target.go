package types

import "time"

// DefaultKeep is the default number of tagged revisions retained per target
// when pruning.
const DefaultKeep = 3

// defaultSmokeTimeout bounds a smoke-test container run when the target does
// not declare its own limit.
const defaultSmokeTimeout = 30 * time.Second

// BuildTarget describes one named image to build: a dockerfile, the build
// context it is evaluated against, and an optional post-build smoke check.
//
// The set of targets is fixed configuration declared before any build runs;
// targets are never created or mutated at runtime.
type BuildTarget struct {
	// Name uniquely identifies the target and becomes the final path segment
	// of the image repository (e.g. "ml-api" -> "<prefix>/ml-api").
	Name string `mapstructure:"name"`

	// Dockerfile is the build recipe path, relative to Context.
	Dockerfile string `mapstructure:"dockerfile"`

	// Context is the directory used as the build's file-set root.
	Context string `mapstructure:"context"`

	// SmokeCommand is the fixed verification command run inside a freshly
	// built image by the smoke tester. Empty means the target has no smoke
	// check and is skipped.
	SmokeCommand []string `mapstructure:"smoke_command"`

	// SmokeExpect, when non-empty, is text required on the smoke command's
	// standard output in addition to a zero exit code.
	SmokeExpect string `mapstructure:"smoke_expect"`

	// SmokeTimeout bounds the smoke-test run. Zero selects the default.
	SmokeTimeout time.Duration `mapstructure:"smoke_timeout"`
}

// Repository returns the image repository for the target under the given
// naming prefix.
func (t BuildTarget) Repository(prefix string) string {
	return prefix + "/" + t.Name
}

// SmokeDeadline returns the effective smoke-test timeout for the target.
func (t BuildTarget) SmokeDeadline() time.Duration {
	if t.SmokeTimeout > 0 {
		return t.SmokeTimeout
	}

	return defaultSmokeTimeout
}

// RetentionPolicy controls how many tagged revisions of a target survive a
// prune pass. Policies apply per target name; image lists for different
// targets are never merged.
type RetentionPolicy struct {
	// Keep is the number of timestamp-tagged revisions to retain, newest
	// first. Must be at least 1.
	Keep int
}

// DefaultRetentionPolicy returns the standard keep-3 policy.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{Keep: DefaultKeep}
}
