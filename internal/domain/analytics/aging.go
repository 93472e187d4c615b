package analytics

import (
	"sort"
	"time"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

// StateAging is the per-state slice of the aging breakdown.
type StateAging struct {
	State         string `json:"state"`
	Count         int    `json:"count"`
	StaleCount    int    `json:"staleCount"`
	OldestAgeDays int    `json:"oldestAgeDays"`
}

// AgingItem is one aged work item in a top-N list.
type AgingItem struct {
	WorkItemID int       `json:"workItemId"`
	Title      string    `json:"title,omitempty"`
	State      string    `json:"state"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	AgeDays    int       `json:"ageDays"`
	StateSince time.Time `json:"stateSince"`
}

// AgingSummary classifies staleness of a release's active items as of the
// latest sync.
type AgingSummary struct {
	Release       string       `json:"release"`
	ThresholdDays int          `json:"thresholdDays"`
	ActiveCount   int          `json:"activeCount"`
	MaxAgeDays    int          `json:"maxAgeDays"`
	StaleCount    int          `json:"staleCount"`
	ByState       []StateAging `json:"byState"`
	Oldest        []AgingItem  `json:"oldest"`
}

const topN = 5

// Aging computes time-in-current-state for every active item. Age is floored
// at zero so clock skew between the tracker and the sync job never yields a
// negative age.
func Aging(release string, items []*workitems.WorkItem, asOf time.Time, thresholdDays int, tax stages.Taxonomy) AgingSummary {
	sum := AgingSummary{Release: release, ThresholdDays: thresholdDays}
	byState := make(map[string]*StateAging)
	var aged []AgingItem

	for _, it := range items {
		if !tax.IsActive(it.State) {
			continue
		}
		since := asOf
		if s := it.StateSince(); s != nil {
			since = *s
		}
		age := ageDays(since, asOf)

		sum.ActiveCount++
		if age > sum.MaxAgeDays {
			sum.MaxAgeDays = age
		}
		stale := age >= thresholdDays
		if stale {
			sum.StaleCount++
		}

		sa, ok := byState[it.State]
		if !ok {
			sa = &StateAging{State: it.State}
			byState[it.State] = sa
		}
		sa.Count++
		if stale {
			sa.StaleCount++
		}
		if age > sa.OldestAgeDays {
			sa.OldestAgeDays = age
		}

		aged = append(aged, AgingItem{
			WorkItemID: it.WorkItemID,
			Title:      it.Title,
			State:      it.State,
			AssignedTo: it.AssignedTo,
			AgeDays:    age,
			StateSince: since,
		})
	}

	sum.ByState = make([]StateAging, 0, len(byState))
	for _, sa := range byState {
		sum.ByState = append(sum.ByState, *sa)
	}
	// stale desc, then count desc, then state asc for a deterministic order
	sort.Slice(sum.ByState, func(i, j int) bool {
		a, b := sum.ByState[i], sum.ByState[j]
		if a.StaleCount != b.StaleCount {
			return a.StaleCount > b.StaleCount
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.State < b.State
	})

	sum.Oldest = topOldest(aged, topN)
	return sum
}

// topOldest orders by age descending, ties broken by earlier state_since, so
// longer-stuck items surface first.
func topOldest(items []AgingItem, n int) []AgingItem {
	sort.Slice(items, func(i, j int) bool {
		if items[i].AgeDays != items[j].AgeDays {
			return items[i].AgeDays > items[j].AgeDays
		}
		return items[i].StateSince.Before(items[j].StateSince)
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}

// ageDays floors the elapsed whole days, never negative.
func ageDays(since, asOf time.Time) int {
	d := asOf.Sub(since)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
