package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

func TestAgingStaleClassification(t *testing.T) {
	items := []*workitems.WorkItem{
		item(1, "In Development", withSince(daysAgo(10))), // stale
		item(2, "In Development", withSince(daysAgo(3))),
		item(3, "New", withSince(daysAgo(7))), // exactly at threshold counts as stale
		item(4, "Done", withSince(daysAgo(30))),
		item(5, "Removed", withSince(daysAgo(30))),
	}

	sum := Aging("R1", items, asOf, 7, stages.Default())
	assert.Equal(t, 3, sum.ActiveCount)
	assert.Equal(t, 2, sum.StaleCount)
	assert.Equal(t, 10, sum.MaxAgeDays)
	assert.Equal(t, 7, sum.ThresholdDays)
}

func TestAgingMissingDatesAgeZero(t *testing.T) {
	items := []*workitems.WorkItem{item(1, "New")}

	sum := Aging("R1", items, asOf, 7, stages.Default())
	require.Len(t, sum.Oldest, 1)
	assert.Equal(t, 0, sum.Oldest[0].AgeDays)
	assert.Equal(t, asOf, sum.Oldest[0].StateSince)
	assert.Equal(t, 0, sum.StaleCount)
}

func TestAgingNeverNegative(t *testing.T) {
	// state_change in the future relative to asOf (clock skew)
	items := []*workitems.WorkItem{item(1, "New", withSince(asOf.AddDate(0, 0, 2)))}

	sum := Aging("R1", items, asOf, 7, stages.Default())
	require.Len(t, sum.Oldest, 1)
	assert.Equal(t, 0, sum.Oldest[0].AgeDays)
}

func TestAgingByStateOrdering(t *testing.T) {
	items := []*workitems.WorkItem{
		item(1, "New", withSince(daysAgo(1))),
		item(2, "New", withSince(daysAgo(2))),
		item(3, "New", withSince(daysAgo(3))),
		item(4, "QA Testing", withSince(daysAgo(20))),
		item(5, "In Development", withSince(daysAgo(15))),
		item(6, "In Development", withSince(daysAgo(12))),
	}

	sum := Aging("R1", items, asOf, 7, stages.Default())
	require.Len(t, sum.ByState, 3)
	// stale desc first: In Development has 2 stale, QA Testing 1, New 0
	assert.Equal(t, "In Development", sum.ByState[0].State)
	assert.Equal(t, 2, sum.ByState[0].StaleCount)
	assert.Equal(t, "QA Testing", sum.ByState[1].State)
	assert.Equal(t, "New", sum.ByState[2].State)
	assert.Equal(t, 3, sum.ByState[2].Count)
}

func TestTopOldestCapAndTieBreak(t *testing.T) {
	var items []*workitems.WorkItem
	for i := 1; i <= 8; i++ {
		items = append(items, item(i, "New", withSince(daysAgo(i))))
	}
	// same whole-day age as item 8, but entered the state earlier in the day
	items = append(items, item(99, "New", withSince(daysAgo(8).Add(-6*time.Hour))))

	sum := Aging("R1", items, asOf, 30, stages.Default())
	require.Len(t, sum.Oldest, 5)
	assert.Equal(t, 99, sum.Oldest[0].WorkItemID) // earlier state_since wins the tie
	assert.Equal(t, 8, sum.Oldest[1].WorkItemID)
	assert.Equal(t, 7, sum.Oldest[2].WorkItemID)
}
