package analytics

import (
	"sort"
	"time"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

// Granularity is the burnup bucket width.
type Granularity string

const (
	GranHour Granularity = "hour"
	GranDay  Granularity = "day"
	GranWeek Granularity = "week"
)

// ParseGranularity falls back to day for unrecognized values.
func ParseGranularity(s string) Granularity {
	switch Granularity(s) {
	case GranHour, GranDay, GranWeek:
		return Granularity(s)
	default:
		return GranDay
	}
}

// BurnupPoint is one time bucket of snapshot scope.
type BurnupPoint struct {
	BucketStart time.Time `json:"bucketStart"`
	TotalScope  int       `json:"totalScope"`
	DoneScope   int       `json:"doneScope"`
}

// Burnup groups a release's snapshots into fixed-width buckets and counts
// total vs done scope per bucket, ascending by time. Fewer than 2 points
// means insufficient trend data; that is the caller's message to surface,
// not an error here.
func Burnup(snaps []workitems.Snapshot, g Granularity, tax stages.Taxonomy) []BurnupPoint {
	byBucket := make(map[time.Time]*BurnupPoint)
	for _, s := range snaps {
		b := truncate(s.SnapshotAt.UTC(), g)
		p, ok := byBucket[b]
		if !ok {
			p = &BurnupPoint{BucketStart: b}
			byBucket[b] = p
		}
		p.TotalScope++
		if tax.IsDone(s.State) {
			p.DoneScope++
		}
	}

	out := make([]BurnupPoint, 0, len(byBucket))
	for _, p := range byBucket {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BucketStart.Before(out[j].BucketStart)
	})
	return out
}

// truncate floors a timestamp to its bucket boundary in UTC; weeks start on
// Monday.
func truncate(t time.Time, g Granularity) time.Time {
	switch g {
	case GranHour:
		return t.Truncate(time.Hour)
	case GranWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday=0
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}
