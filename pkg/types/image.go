package types

import "strings"

// TimestampFormat is the layout of immutable build tags. The format sorts
// lexicographically in creation order, which the retention pruner relies on.
const TimestampFormat = "20060102-150405"

// LatestTag is the stable tag applied to every successful build alongside the
// timestamp tag.
const LatestTag = "latest"

// shortIDLength is the conventional truncated hash length used for logging.
const shortIDLength = 12

// ImageID is a hash string identifying an image artifact.
type ImageID string

// ContainerID is a hash string identifying a container instance.
type ContainerID string

// ShortID returns the 12-character short version of an image ID without the
// "sha256:" prefix.
func (id ImageID) ShortID() string {
	return shortID(string(id))
}

// ShortID returns the 12-character short version of a container ID.
func (id ContainerID) ShortID() string {
	return shortID(string(id))
}

// shortID truncates a hash string to 12 characters, skipping any algorithm
// prefix such as "sha256:".
func shortID(longID string) string {
	offset := 0
	if sep := strings.IndexRune(longID, ':'); sep >= 0 {
		offset = sep + 1
	}

	if len(longID) >= offset+shortIDLength {
		return longID[offset : offset+shortIDLength]
	}

	return longID[offset:]
}

// ImageTag is a repository plus tag pair naming one revision of a built image.
type ImageTag struct {
	Repository string
	Tag        string
}

// Ref returns the full "repository:tag" reference.
func (t ImageTag) Ref() string {
	return t.Repository + ":" + t.Tag
}

// ImageInfo describes one tagged image as reported by the engine.
type ImageInfo struct {
	// Ref is the full repository:tag reference.
	Ref string
	// ID is the underlying image artifact.
	ID ImageID
	// Created is the creation time as a unix timestamp.
	Created int64
	// Size is the reported image size in bytes.
	Size int64
}

// Tag returns the tag portion of the reference, or an empty string if the
// reference carries no tag.
func (i ImageInfo) Tag() string {
	if sep := strings.LastIndexByte(i.Ref, ':'); sep >= 0 {
		return i.Ref[sep+1:]
	}

	return ""
}

// ContainerInfo describes one container as reported by the engine.
type ContainerInfo struct {
	ID     ContainerID
	Name   string
	Image  string
	State  string
	Labels map[string]string
}

// IsExited reports whether the container is in a terminal exited state.
func (c ContainerInfo) IsExited() bool {
	return c.State == "exited"
}
