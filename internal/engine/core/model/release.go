package model

import "time"

// Release is a published software version available for rollout to the
// fleet. Artifact metadata is immutable once registered; only the active
// and latest markers change afterwards.
type Release struct {
	ID           string
	Version      string
	ArtifactURL  string
	Checksum     string
	AgentVersion string
	SizeBytes    int64
	Notes        string
	Active       bool
	Latest       bool
	CreatedAt    time.Time
}
