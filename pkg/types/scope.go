package types

// CleanupScope selects which resource-cleaner sub-operations run.
type CleanupScope string

// Cleanup scopes, each mapping to one idempotent sub-operation. ScopeEverything
// is the only scope whose blast radius extends beyond artifacts created by
// this tool and requires interactive confirmation.
const (
	ScopeContainers CleanupScope = "containers"
	ScopeImages     CleanupScope = "images"
	ScopeVolumes    CleanupScope = "volumes"
	ScopeNetworks   CleanupScope = "networks"
	ScopeBuildCache CleanupScope = "build-cache"
	ScopeEverything CleanupScope = "everything"
)

// DefaultScopes is the set run when no scope is selected explicitly.
func DefaultScopes() []CleanupScope {
	return []CleanupScope{ScopeContainers, ScopeImages, ScopeVolumes, ScopeNetworks}
}
