// Package container wraps the Docker API client with the engine operations
// Forge needs: building and tagging images, listing and removing tags,
// running throwaway verification containers, and pruning unused resources.
package container
