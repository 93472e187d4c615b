package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

func TestThroughputEtaProjection(t *testing.T) {
	var items []*workitems.WorkItem
	// 7 completions inside the trailing 7 days
	for i := 1; i <= 7; i++ {
		items = append(items, item(i, "Done", withClosed(daysAgo(i-1).Add(-1))))
	}
	// 5 more in the (7d, 14d] band
	for i := 8; i <= 12; i++ {
		items = append(items, item(i, "Closed", withClosed(daysAgo(i))))
	}
	// 14 remaining
	for i := 20; i < 34; i++ {
		items = append(items, item(i, "In Development"))
	}

	sum := Throughput("R1", items, asOf, stages.Default())
	assert.Equal(t, 7, sum.Done7d)
	assert.Equal(t, 12, sum.Done14d)
	assert.Equal(t, 1.0, sum.AvgPerDay7d)
	assert.Equal(t, 14, sum.Remaining)
	require.NotNil(t, sum.EtaDays)
	assert.Equal(t, 14, *sum.EtaDays)
	require.NotNil(t, sum.EtaDate)
	assert.Equal(t, asOf.AddDate(0, 0, 14), *sum.EtaDate)
}

func TestThroughputZeroVelocityMeansNoEta(t *testing.T) {
	items := []*workitems.WorkItem{
		item(1, "In Development"),
		item(2, "New"),
		item(3, "Done", withClosed(daysAgo(30))), // too old to count
	}

	sum := Throughput("R1", items, asOf, stages.Default())
	assert.Equal(t, 0, sum.Done7d)
	assert.Equal(t, 0.0, sum.AvgPerDay7d)
	assert.Equal(t, 2, sum.Remaining)
	assert.Nil(t, sum.EtaDays)
	assert.Nil(t, sum.EtaDate)
}

func TestThroughputEtaRoundsUp(t *testing.T) {
	items := []*workitems.WorkItem{
		item(1, "Done", withClosed(daysAgo(1))),
		item(2, "Done", withClosed(daysAgo(2))),
		item(3, "In Development"),
		item(4, "In Development"),
		item(5, "In Development"),
	}

	// avg = 2/7, remaining 3 -> ceil(10.5) = 11 days
	sum := Throughput("R1", items, asOf, stages.Default())
	require.NotNil(t, sum.EtaDays)
	assert.Equal(t, 11, *sum.EtaDays)
}

func TestThroughputUndatedDoneNotCounted(t *testing.T) {
	items := []*workitems.WorkItem{
		item(1, "Done"), // no closed_date, no state_change_date
		item(2, "Removed", withClosed(daysAgo(1))),
	}

	sum := Throughput("R1", items, asOf, stages.Default())
	assert.Equal(t, 0, sum.Done7d)
	assert.Equal(t, 0, sum.Done14d)
	assert.Equal(t, 0, sum.Remaining) // removed is not remaining work
}

func TestThroughputFutureCompletionIgnored(t *testing.T) {
	items := []*workitems.WorkItem{
		item(1, "Done", withClosed(asOf.AddDate(0, 0, 1))),
	}

	sum := Throughput("R1", items, asOf, stages.Default())
	assert.Equal(t, 0, sum.Done7d)
}
