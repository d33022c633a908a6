package core

import (
	"context"
	"time"
)

// ArtifactStore hands out time-limited download URLs for release
// artifacts. Implementations may be disabled, in which case orders carry
// the release's registered artifact URL unchanged.
type ArtifactStore interface {
	// Enabled reports whether presigning is configured.
	Enabled() bool
	// PresignDownload returns a URL granting temporary read access to the
	// named artifact object.
	PresignDownload(ctx context.Context, object string, expiry time.Duration) (string, error)
}
