package common

import (
	"github.com/google/uuid"
)

// NewArtifactDirToken returns the first eight characters of a fresh random
// UUID. The Artifact Store does not use it: a directory name that is
// already taken fails with ErrArtifactConflict rather than being suffixed.
func NewArtifactDirToken() string {
	return uuid.New().String()[:8]
}

// NewUUID generates the opaque, globally-unique identifier attached to
// every Run and UrlTest row (spec §3 "Identity").
func NewUUID() string {
	return uuid.New().String()
}
