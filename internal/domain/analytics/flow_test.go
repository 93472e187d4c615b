package analytics

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

func typedSnap(run workitems.RunID, day int, id int, kind, state string) workitems.Snapshot {
	s := snap(run, daysAgo(day), id, state)
	s.Type = kind
	return s
}

func TestStageFlowDoneEvents(t *testing.T) {
	snaps := []workitems.Snapshot{
		// item 1 completes in-window
		typedSnap("run-1", 6, 1, "Task", "In Development"),
		typedSnap("run-2", 3, 1, "Task", "Done"),
		// item 2 was already done at window start; re-observing it is not an event
		typedSnap("run-1", 6, 2, "Task", "Done"),
		typedSnap("run-2", 3, 2, "Task", "Done"),
		// item 3 only appears once; no prior state, no event
		typedSnap("run-2", 3, 3, "Task", "Closed"),
	}

	sum := StageFlow("R1", snaps, nil, asOf, 7, stages.Default())
	assert.Equal(t, 1, sum.DoneEvents)
	assert.Equal(t, 1, sum.DoneItems)
	assert.Equal(t, 0, sum.ReworkEvents)
}

func TestStageFlowReworkBugReopen(t *testing.T) {
	snaps := []workitems.Snapshot{
		typedSnap("run-1", 6, 1, "Bug", "Resolved"),
		typedSnap("run-2", 3, 1, "Bug", "Re-opened"),
	}

	sum := StageFlow("R1", snaps, nil, asOf, 7, stages.Default())
	assert.Equal(t, 1, sum.ReworkEvents)
	assert.Equal(t, 1, sum.ReworkItems)
}

func TestStageFlowReworkNonBugBackToDev(t *testing.T) {
	snaps := []workitems.Snapshot{
		typedSnap("run-1", 6, 1, "User Story", "QA Testing"),
		typedSnap("run-2", 3, 1, "User Story", "In Development"),
	}

	sum := StageFlow("R1", snaps, nil, asOf, 7, stages.Default())
	assert.Equal(t, 1, sum.ReworkEvents)
}

func TestStageFlowEarlyStageBounceIsNotRework(t *testing.T) {
	snaps := []workitems.Snapshot{
		// bug moves between early states; nothing was sent back from QA
		typedSnap("run-1", 6, 1, "Bug", "New"),
		typedSnap("run-2", 3, 1, "Bug", "In Development"),
		// non-bug leaving QA into intake (not dev) is odd but not rework
		typedSnap("run-1", 6, 2, "Task", "Resolved"),
		typedSnap("run-2", 3, 2, "Task", "New"),
	}

	sum := StageFlow("R1", snaps, nil, asOf, 7, stages.Default())
	assert.Equal(t, 0, sum.ReworkEvents)
}

func TestStageFlowReworkEventsVsItems(t *testing.T) {
	// item 1 bounces out of QA twice inside the window
	snaps := []workitems.Snapshot{
		typedSnap("run-1", 6, 1, "User Story", "QA Testing"),
		typedSnap("run-2", 4, 1, "User Story", "In Development"),
		typedSnap("run-3", 2, 1, "User Story", "Resolved"),
		typedSnap("run-4", 1, 1, "User Story", "In Development"),
	}

	sum := StageFlow("R1", snaps, nil, asOf, 7, stages.Default())
	assert.Equal(t, 2, sum.ReworkEvents)
	assert.Equal(t, 1, sum.ReworkItems)
}

func TestStageFlowStageDistribution(t *testing.T) {
	items := []*workitems.WorkItem{
		item(1, "New"),
		item(2, "In Development"),
		item(3, "On-Hold"), // counts as blocked here, not dev
		item(4, "Resolved"),
		item(5, "QA Testing"),
		item(6, "Done"),
		item(7, "Removed"), // not one of the six dashboard buckets
	}

	sum := StageFlow("R1", nil, items, asOf, 7, stages.Default())
	want := []StageCount{
		{Stage: "intake", Count: 1},
		{Stage: "dev-in-progress", Count: 1},
		{Stage: "blocked", Count: 1},
		{Stage: "qa-queue", Count: 1},
		{Stage: "qa-testing", Count: 1},
		{Stage: "done", Count: 1},
	}
	if diff := cmp.Diff(want, sum.Stages); diff != "" {
		t.Errorf("stage counts mismatch (-want +got):\n%s", diff)
	}
}

func TestStageFlowOldestListsRankBlockedWithDev(t *testing.T) {
	items := []*workitems.WorkItem{
		item(1, "In Development", withSince(daysAgo(5))),
		item(2, "On-Hold", withSince(daysAgo(9))),
		item(3, "Resolved", withSince(daysAgo(4))),
		item(4, "QA Testing", withSince(daysAgo(2))),
	}

	sum := StageFlow("R1", nil, items, asOf, 7, stages.Default())
	require.Len(t, sum.OldestDev, 2)
	assert.Equal(t, 2, sum.OldestDev[0].WorkItemID) // on-hold ages with its dev peers
	assert.Equal(t, 1, sum.OldestDev[1].WorkItemID)
	require.Len(t, sum.OldestQAQueue, 1)
	assert.Equal(t, 3, sum.OldestQAQueue[0].WorkItemID)
	require.Len(t, sum.OldestQATesting, 1)
	assert.Equal(t, 4, sum.OldestQATesting[0].WorkItemID)
}

func TestItemTransitionsOrdering(t *testing.T) {
	// same timestamp: run id breaks the tie
	at := daysAgo(3)
	snaps := []workitems.Snapshot{
		{RunID: "run-b", SnapshotAt: at, WorkItemID: 1, Release: "R1", State: "Done"},
		{RunID: "run-a", SnapshotAt: at, WorkItemID: 1, Release: "R1", State: "QA Testing"},
	}

	trs := itemTransitions(snaps)
	require.Len(t, trs, 2)
	assert.Equal(t, "QA Testing", trs[0].to)
	assert.False(t, trs[0].hasPrev)
	assert.Equal(t, "QA Testing", trs[1].prev)
	assert.Equal(t, "Done", trs[1].to)
}
