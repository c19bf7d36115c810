// Package types defines the shared data model and interfaces used across Forge,
// including build targets, build results, cleanup scopes, and the container
// engine client abstraction.
package types
