package model

import "time"

// Appliance is one edge device known to the fleet registry. The engine
// learns about appliances through check-ins; CurrentVersion reflects the
// last version the appliance reported running.
type Appliance struct {
	ID             string
	CurrentVersion string
	LastSeenAt     time.Time
	CreatedAt      time.Time
}

// VersionDistribution maps a running software version to the number of
// appliances reporting it.
type VersionDistribution map[string]int
