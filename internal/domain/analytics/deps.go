package analytics

import (
	"sort"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

// BlockedItem is one entry of the top-blocked ranking.
type BlockedItem struct {
	WorkItemID   int    `json:"workItemId"`
	Title        string `json:"title,omitempty"`
	State        string `json:"state"`
	AssignedTo   string `json:"assignedTo,omitempty"`
	OpenDepCount int    `json:"openDepCount"`
}

// DependencyRiskSummary measures how much of a release's open scope is waiting
// on unresolved dependencies.
type DependencyRiskSummary struct {
	Release      string        `json:"release"`
	ActiveCount  int           `json:"activeCount"`
	BlockedCount int           `json:"blockedCount"`
	BlockedPct   int           `json:"blockedPct"`
	OpenDepTotal int           `json:"openDepTotal"`
	TopBlocked   []BlockedItem `json:"topBlocked"`
}

// DependencyRisk scopes to current active items. An item is blocked when it
// has a reported open_dep_count > 0; items that never reported the field are
// not blocked (no-data is not evidence of a dependency).
func DependencyRisk(release string, items []*workitems.WorkItem, tax stages.Taxonomy) DependencyRiskSummary {
	sum := DependencyRiskSummary{Release: release}
	var blocked []BlockedItem

	for _, it := range items {
		if !tax.IsActive(it.State) {
			continue
		}
		sum.ActiveCount++
		if it.OpenDepCount == nil || *it.OpenDepCount <= 0 {
			continue
		}
		sum.BlockedCount++
		sum.OpenDepTotal += *it.OpenDepCount
		blocked = append(blocked, BlockedItem{
			WorkItemID:   it.WorkItemID,
			Title:        it.Title,
			State:        it.State,
			AssignedTo:   it.AssignedTo,
			OpenDepCount: *it.OpenDepCount,
		})
	}

	sum.BlockedPct = pct(sum.BlockedCount, sum.ActiveCount)

	// open deps desc; ties go to the higher (newer) item id
	sort.Slice(blocked, func(i, j int) bool {
		if blocked[i].OpenDepCount != blocked[j].OpenDepCount {
			return blocked[i].OpenDepCount > blocked[j].OpenDepCount
		}
		return blocked[i].WorkItemID > blocked[j].WorkItemID
	})
	if len(blocked) > topN {
		blocked = blocked[:topN]
	}
	sum.TopBlocked = blocked
	return sum
}
