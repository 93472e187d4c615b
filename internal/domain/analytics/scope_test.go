package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

func TestScopeNoSnapshots(t *testing.T) {
	_, ok := Scope("R1", nil, stages.Default())
	assert.False(t, ok)
}

func TestScopeBaselineVsCurrent(t *testing.T) {
	t0 := daysAgo(14)
	t1 := daysAgo(0)
	snaps := []workitems.Snapshot{
		// baseline run: items 1, 2, 3
		snap("run-a", t0, 1, "New"),
		snap("run-a", t0, 2, "New"),
		snap("run-a", t0, 3, "New"),
		// current run: 1 dropped, 4 and 5 added, 2 delivered
		snap("run-b", t1, 2, "Done"),
		snap("run-b", t1, 3, "In Development"),
		snap("run-b", t1, 4, "New"),
		snap("run-b", t1, 5, "New"),
	}

	sum, ok := Scope("R1", snaps, stages.Default())
	require.True(t, ok)

	assert.Equal(t, 3, sum.BaselineScope)
	assert.Equal(t, 4, sum.CurrentScope)
	assert.Equal(t, 2, sum.AddedCount)
	assert.Equal(t, 1, sum.RemovedCount)
	assert.Equal(t, 1, sum.DeliveredFromBaseline)
	// current = baseline - removed + added
	assert.Equal(t, sum.BaselineScope-sum.RemovedCount+sum.AddedCount, sum.CurrentScope)
	assert.Equal(t, 33, sum.PredictabilityPct) // round(100*1/3)
	assert.Equal(t, t0, sum.BaselineAt)
	assert.Equal(t, t1, sum.LatestAt)
}

func TestScopeSingleRunIsItsOwnBaseline(t *testing.T) {
	t0 := daysAgo(1)
	snaps := []workitems.Snapshot{
		snap("run-a", t0, 1, "Done"),
		snap("run-a", t0, 2, "New"),
	}

	sum, ok := Scope("R1", snaps, stages.Default())
	require.True(t, ok)

	assert.Equal(t, 2, sum.BaselineScope)
	assert.Equal(t, 2, sum.CurrentScope)
	assert.Equal(t, 0, sum.AddedCount)
	assert.Equal(t, 0, sum.RemovedCount)
	assert.Equal(t, 1, sum.DeliveredFromBaseline)
	assert.Equal(t, 50, sum.PredictabilityPct)
}

func TestPctZeroWhole(t *testing.T) {
	assert.Equal(t, 0, pct(3, 0))
	assert.Equal(t, 0, pct(0, 0))
	assert.Equal(t, 67, pct(2, 3))
}
