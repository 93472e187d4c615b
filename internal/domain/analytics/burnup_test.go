package analytics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

func TestParseGranularity(t *testing.T) {
	assert.Equal(t, GranHour, ParseGranularity("hour"))
	assert.Equal(t, GranWeek, ParseGranularity("week"))
	assert.Equal(t, GranDay, ParseGranularity("day"))
	assert.Equal(t, GranDay, ParseGranularity(""))
	assert.Equal(t, GranDay, ParseGranularity("fortnight"))
}

func TestBurnupThreeRunSequence(t *testing.T) {
	d1 := time.Date(2025, 5, 5, 9, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)

	snaps := []workitems.Snapshot{
		// run 1: A and B, nothing done
		snap("run-1", d1, 1, "New"),
		snap("run-1", d1, 2, "New"),
		// run 2: C joins, A done
		snap("run-2", d2, 1, "Done"),
		snap("run-2", d2, 2, "In Development"),
		snap("run-2", d2, 3, "New"),
		// run 3: A drops out, B done
		snap("run-3", d3, 2, "Closed"),
		snap("run-3", d3, 3, "QA Testing"),
	}

	got := Burnup(snaps, GranDay, stages.Default())
	want := []BurnupPoint{
		{BucketStart: time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC), TotalScope: 2, DoneScope: 0},
		{BucketStart: time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC), TotalScope: 3, DoneScope: 1},
		{BucketStart: time.Date(2025, 5, 7, 0, 0, 0, 0, time.UTC), TotalScope: 2, DoneScope: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("burnup points mismatch (-want +got):\n%s", diff)
	}
}

func TestBurnupEmptyAndSinglePoint(t *testing.T) {
	tax := stages.Default()

	assert.Empty(t, Burnup(nil, GranDay, tax))

	one := []workitems.Snapshot{snap("run-1", daysAgo(0), 1, "New")}
	assert.Len(t, Burnup(one, GranDay, tax), 1)
}

func TestTruncateWeekStartsMonday(t *testing.T) {
	// 2025-06-01 is a Sunday; its week starts Monday 2025-05-26.
	sunday := time.Date(2025, 6, 1, 17, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC), truncate(sunday, GranWeek))

	monday := time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, truncate(monday, GranWeek))

	hour := time.Date(2025, 6, 1, 17, 45, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC), truncate(hour, GranHour))
}
