package types

import "time"

// BuildResult records the outcome of one build attempt. Results are consumed
// immediately by the scheduler for aggregation and logging; nothing persists
// them.
type BuildResult struct {
	Target  BuildTarget
	Success bool

	// ID is the built image artifact, set on success.
	ID ImageID

	// Tags are the references applied by the build: the stable latest tag and
	// the immutable timestamp tag, both naming the same artifact.
	Tags []ImageTag

	// Size is the engine-reported image size, human readable. Empty when the
	// post-build size query failed; that failure is non-fatal.
	Size string

	// Duration is the wall-clock build time.
	Duration time.Duration

	// Error carries the engine's error output for failed builds.
	Error string
}

// Report aggregates the build results of one scheduler run in declared target
// order (parallel runs are collected back into declared order before the
// report is returned).
type Report struct {
	Results []BuildResult
}

// Success reports overall success: true only if every individual result
// succeeded.
func (r Report) Success() bool {
	for _, res := range r.Results {
		if !res.Success {
			return false
		}
	}

	return true
}

// Failed returns the results of failed builds.
func (r Report) Failed() []BuildResult {
	var failed []BuildResult

	for _, res := range r.Results {
		if !res.Success {
			failed = append(failed, res)
		}
	}

	return failed
}

// Built returns the targets that produced an image in this run.
func (r Report) Built() []BuildTarget {
	var built []BuildTarget

	for _, res := range r.Results {
		if res.Success {
			built = append(built, res.Target)
		}
	}

	return built
}

// PruneResult summarizes one engine prune sub-operation.
type PruneResult struct {
	// Removed counts deleted resources.
	Removed int
	// SpaceReclaimed is reported in bytes.
	SpaceReclaimed int64
}

// Add merges another prune result into this one.
func (p *PruneResult) Add(other PruneResult) {
	p.Removed += other.Removed
	p.SpaceReclaimed += other.SpaceReclaimed
}

// ExecResult captures the outcome of a command run in a throwaway container.
type ExecResult struct {
	ExitCode int64
	Output   string
}
