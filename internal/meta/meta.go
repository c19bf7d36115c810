// Package meta holds build-time metadata for Forge.
package meta

// Version is the Forge version, set at build time via ldflags.
var Version = "v0.0.0-unknown"
