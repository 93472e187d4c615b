package analytics

import (
	"math"
	"time"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

// ScopeSummary compares a release's first observed run (the baseline scope
// commitment) against its most recent run.
type ScopeSummary struct {
	Release               string    `json:"release"`
	BaselineAt            time.Time `json:"baselineAt"`
	LatestAt              time.Time `json:"latestAt"`
	BaselineScope         int       `json:"baselineScope"`
	CurrentScope          int       `json:"currentScope"`
	AddedCount            int       `json:"addedCount"`
	RemovedCount          int       `json:"removedCount"`
	DeliveredFromBaseline int       `json:"deliveredFromBaseline"`
	PredictabilityPct     int       `json:"predictabilityPct"`
}

// Scope reconciles baseline vs current snapshot sets. Snapshots must be
// ordered ascending by snapshot_at (the repository contract); the first and
// last runs in that ordering are baseline and current. Returns ok=false when
// the release has no snapshots at all.
//
// A release with a single run has baseline == current: added/removed are 0 and
// predictability reflects the state at that one point.
func Scope(release string, snaps []workitems.Snapshot, tax stages.Taxonomy) (ScopeSummary, bool) {
	if len(snaps) == 0 {
		return ScopeSummary{Release: release}, false
	}

	baselineRun := snaps[0].RunID
	currentRun := snaps[len(snaps)-1].RunID

	baseline := make(map[int]bool)
	current := make(map[int]string) // id -> current state
	for _, s := range snaps {
		if s.RunID == baselineRun {
			baseline[s.WorkItemID] = true
		}
		if s.RunID == currentRun {
			current[s.WorkItemID] = s.State
		}
	}

	var added, removed, delivered int
	for id := range current {
		if !baseline[id] {
			added++
		}
	}
	for id := range baseline {
		state, stillHere := current[id]
		if !stillHere {
			removed++
			continue
		}
		if tax.IsDone(state) {
			delivered++
		}
	}

	return ScopeSummary{
		Release:               release,
		BaselineAt:            snaps[0].SnapshotAt,
		LatestAt:              snaps[len(snaps)-1].SnapshotAt,
		BaselineScope:         len(baseline),
		CurrentScope:          len(current),
		AddedCount:            added,
		RemovedCount:          removed,
		DeliveredFromBaseline: delivered,
		PredictabilityPct:     pct(delivered, len(baseline)),
	}, true
}

// pct is round(100*part/whole), 0 when whole is 0.
func pct(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}
