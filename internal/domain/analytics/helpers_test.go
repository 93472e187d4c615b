package analytics

import (
	"time"

	"github.com/trackforge/release-radar/internal/domain/workitems"
)

// Fixture builders shared by the analyzer tests.

var asOf = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return asOf.AddDate(0, 0, -n) }

func tp(t time.Time) *time.Time { return &t }

func ip(n int) *int { return &n }

func item(id int, state string, opts ...func(*workitems.WorkItem)) *workitems.WorkItem {
	w := &workitems.WorkItem{WorkItemID: id, State: state, Release: "R1", SyncedAt: asOf}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func withSince(t time.Time) func(*workitems.WorkItem) {
	return func(w *workitems.WorkItem) { w.StateChangeDate = tp(t) }
}

func withClosed(t time.Time) func(*workitems.WorkItem) {
	return func(w *workitems.WorkItem) { w.ClosedDate = tp(t) }
}

func withOpenDeps(n int) func(*workitems.WorkItem) {
	return func(w *workitems.WorkItem) { w.OpenDepCount = ip(n) }
}

func withType(kind string) func(*workitems.WorkItem) {
	return func(w *workitems.WorkItem) { w.Type = kind }
}

func snap(run workitems.RunID, at time.Time, id int, state string) workitems.Snapshot {
	return workitems.Snapshot{RunID: run, SnapshotAt: at, WorkItemID: id, Release: "R1", State: state}
}
