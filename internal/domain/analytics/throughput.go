package analytics

import (
	"math"
	"time"

	"github.com/trackforge/release-radar/internal/domain/stages"
	"github.com/trackforge/release-radar/internal/domain/workitems"
)

// ThroughputSummary holds rolling completion counts and the velocity-projected
// completion date. EtaDays/EtaDate are nil when recent velocity is zero: an
// undefined ETA, never a divide-by-zero artifact.
type ThroughputSummary struct {
	Release     string     `json:"release"`
	Done7d      int        `json:"done7d"`
	Done14d     int        `json:"done14d"`
	AvgPerDay7d float64    `json:"avgPerDay7d"`
	Remaining   int        `json:"remaining"`
	EtaDays     *int       `json:"etaDays"`
	EtaDate     *time.Time `json:"etaDate"`
}

// Throughput counts completion events inside the trailing 7/14-day windows
// ending at asOf and projects an ETA for the remaining active items. An item
// counts as a completion when its current state is terminal-done and its
// completion date (closed_date, else state_change_date) falls inside the
// window; done items with no usable date are not counted.
func Throughput(release string, items []*workitems.WorkItem, asOf time.Time, tax stages.Taxonomy) ThroughputSummary {
	sum := ThroughputSummary{Release: release}
	cut7 := asOf.AddDate(0, 0, -7)
	cut14 := asOf.AddDate(0, 0, -14)

	for _, it := range items {
		if tax.IsActive(it.State) {
			sum.Remaining++
			continue
		}
		if !tax.IsDone(it.State) {
			continue // removed
		}
		at := it.DoneAt()
		if at == nil || at.After(asOf) {
			continue
		}
		if at.After(cut14) {
			sum.Done14d++
		}
		if at.After(cut7) {
			sum.Done7d++
		}
	}

	sum.AvgPerDay7d = float64(sum.Done7d) / 7
	if sum.AvgPerDay7d > 0 {
		days := int(math.Ceil(float64(sum.Remaining) / sum.AvgPerDay7d))
		date := asOf.AddDate(0, 0, days)
		sum.EtaDays = &days
		sum.EtaDate = &date
	}
	return sum
}
