package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

// StageCount is one bucket of the current pipeline distribution.
type StageCount struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

// CycleSummary reconstructs in-window stage flow for a release: first-time
// completions, rework bounces, the current stage distribution, and the oldest
// residents of the mid-pipeline stages.
type CycleSummary struct {
	Release         string       `json:"release"`
	WindowDays      int          `json:"windowDays"`
	DoneEvents      int          `json:"doneEvents"`
	DoneItems       int          `json:"doneItems"`
	ReworkEvents    int          `json:"reworkEvents"`
	ReworkItems     int          `json:"reworkItems"`
	Stages          []StageCount `json:"stages"`
	OldestDev       []AgingItem  `json:"oldestDev"`
	OldestQAQueue   []AgingItem  `json:"oldestQaQueue"`
	OldestQATesting []AgingItem  `json:"oldestQaTesting"`
}

// transition pairs a snapshot state with the item's immediately preceding
// in-window state; prev is empty for the first snapshot in the window.
type transition struct {
	itemID  int
	kind    string // work item type, for the bug/non-bug rework rule
	prev    string
	hasPrev bool
	to      string
}

// StageFlow detects completion and rework events from ordered snapshots inside
// the trailing window and classifies current items (from latest state, not
// snapshots) into pipeline buckets.
//
// A done event is a transition whose new state is done and whose previous
// state was not: re-confirming an already-done item across runs does not
// count. A rework event is a transition out of a late stage (qa-queue,
// qa-testing, done) into a regression marker: a reopen state for bug-type
// items, a return to dev-in-progress for everything else. Bug and feature
// workflows name "sent back" differently, hence the split rule.
func StageFlow(release string, windowSnaps []workitems.Snapshot, items []*workitems.WorkItem, asOf time.Time, windowDays int, tax stages.Taxonomy) CycleSummary {
	sum := CycleSummary{Release: release, WindowDays: windowDays}

	doneItems := make(map[int]bool)
	reworkItems := make(map[int]bool)
	for _, tr := range itemTransitions(windowSnaps) {
		if !tr.hasPrev {
			continue
		}
		if tax.IsDone(tr.to) && !tax.IsDone(tr.prev) {
			sum.DoneEvents++
			doneItems[tr.itemID] = true
		}
		if isRework(tr, tax) {
			sum.ReworkEvents++
			reworkItems[tr.itemID] = true
		}
	}
	sum.DoneItems = len(doneItems)
	sum.ReworkItems = len(reworkItems)

	sum.Stages = stageCounts(items, tax)
	sum.OldestDev = oldestInStage(items, stages.StageDev, asOf, tax)
	sum.OldestQAQueue = oldestInStage(items, stages.StageQAQueue, asOf, tax)
	sum.OldestQATesting = oldestInStage(items, stages.StageQATesting, asOf, tax)
	return sum
}

// itemTransitions orders each item's snapshots by time (run id as a stable
// tie-break for snapshots missing distinct timestamps) and pairs consecutive
// states.
func itemTransitions(snaps []workitems.Snapshot) []transition {
	byItem := make(map[int][]workitems.Snapshot)
	ids := make([]int, 0)
	for _, s := range snaps {
		if _, seen := byItem[s.WorkItemID]; !seen {
			ids = append(ids, s.WorkItemID)
		}
		byItem[s.WorkItemID] = append(byItem[s.WorkItemID], s)
	}
	sort.Ints(ids)

	var out []transition
	for _, id := range ids {
		seq := byItem[id]
		sort.Slice(seq, func(i, j int) bool {
			if !seq[i].SnapshotAt.Equal(seq[j].SnapshotAt) {
				return seq[i].SnapshotAt.Before(seq[j].SnapshotAt)
			}
			return seq[i].RunID < seq[j].RunID
		})
		for i, s := range seq {
			tr := transition{itemID: id, kind: s.Type, to: s.State}
			if i > 0 {
				tr.prev = seq[i-1].State
				tr.hasPrev = true
			}
			out = append(out, tr)
		}
	}
	return out
}

func isRework(tr transition, tax stages.Taxonomy) bool {
	if !stages.IsLate(tax.Classify(tr.prev)) {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(tr.kind), "bug") {
		return tax.IsReopened(tr.to)
	}
	return tax.Classify(tr.to) == stages.StageDev
}

// stageCounts always emits all six buckets, in pipeline order, so consumers
// get stable columns even when a bucket is empty.
func stageCounts(items []*workitems.WorkItem, tax stages.Taxonomy) []StageCount {
	order := []stages.Stage{
		stages.StageIntake,
		stages.StageDev,
		stages.StageBlocked,
		stages.StageQAQueue,
		stages.StageQATesting,
		stages.StageDone,
	}
	counts := make(map[stages.Stage]int)
	for _, it := range items {
		counts[tax.Bucket(it.State)]++
	}
	out := make([]StageCount, 0, len(order))
	for _, st := range order {
		out = append(out, StageCount{Stage: string(st), Count: counts[st]})
	}
	return out
}

// oldestInStage reuses the aging computation for the per-stage top lists.
// Blocked items belong to the dev list here: the dashboard ranks them with
// their working stage, not the blocked split.
func oldestInStage(items []*workitems.WorkItem, stage stages.Stage, asOf time.Time, tax stages.Taxonomy) []AgingItem {
	var aged []AgingItem
	for _, it := range items {
		if tax.Classify(it.State) != stage {
			continue
		}
		since := asOf
		if s := it.StateSince(); s != nil {
			since = *s
		}
		aged = append(aged, AgingItem{
			WorkItemID: it.WorkItemID,
			Title:      it.Title,
			State:      it.State,
			AssignedTo: it.AssignedTo,
			AgeDays:    ageDays(since, asOf),
			StateSince: since,
		})
	}
	return topOldest(aged, topN)
}
