package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/model"
)

// selectionRank is the stable per-rollout ordering key of an appliance.
// Ranking by a hash of appliance and rollout IDs spreads wave membership
// across the fleet, yet keeps the order reproducible: re-running selection
// for the same rollout always extends the same sequence.
func selectionRank(applianceID, rolloutID string) string {
	sum := sha256.Sum256([]byte(applianceID + "|" + rolloutID))
	return hex.EncodeToString(sum[:])
}

// selectAppliances picks up to count appliances for the rollout. Appliances
// that already hold a record in the rollout or already run the target
// version are excluded; the remainder is ordered by selection rank.
func selectAppliances(fleet []*model.Appliance, rolloutID, targetVersion string, recorded map[string]bool, count int) []*model.Appliance {
	if count <= 0 {
		return nil
	}
	eligible := make([]*model.Appliance, 0, len(fleet))
	for _, a := range fleet {
		if recorded[a.ID] || a.CurrentVersion == targetVersion {
			continue
		}
		eligible = append(eligible, a)
	}
	sort.Slice(eligible, func(i, j int) bool {
		return selectionRank(eligible[i].ID, rolloutID) < selectionRank(eligible[j].ID, rolloutID)
	})
	if len(eligible) > count {
		eligible = eligible[:count]
	}
	return eligible
}
