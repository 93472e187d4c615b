package httpserver

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	domain "github.com/trackforge/release-radar/internal/domain/workitems"
)

var csvHeader = []string{
	"work_item_id", "type", "title", "state", "reason",
	"assigned_to", "assigned_to_upn",
	"project", "area_path", "iteration_path",
	"tags", "release",
	"created_by", "changed_by",
	"created_date", "changed_date", "state_change_date", "closed_date",
	"severity", "effort",
	"parent_id", "feature_id", "feature",
	"dep_count", "open_dep_count", "related_link_count", "open_related_count",
	"source", "synced_at",
}

// writeCSV streams the export; absent optional fields become empty cells, not
// zeros, so spreadsheets keep the no-data distinction.
func writeCSV(w http.ResponseWriter, rows []*domain.WorkItem) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=work_items.csv")

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.WorkItemID), r.Type, r.Title, r.State, r.Reason,
			r.AssignedTo, r.AssignedToUPN,
			r.Project, r.AreaPath, r.IterationPath,
			r.Tags, r.Release,
			r.CreatedBy, r.ChangedBy,
			csvDate(r.CreatedDate), csvDate(r.ChangedDate), csvDate(r.StateChangeDate), csvDate(r.ClosedDate),
			r.Severity, csvFloat(r.Effort),
			csvInt(r.ParentID), csvInt(r.FeatureID), r.Feature,
			strconv.Itoa(r.DepCount), csvInt(r.OpenDepCount),
			strconv.Itoa(r.RelatedLinkCount), csvInt(r.OpenRelatedCount),
			r.Source, r.SyncedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func csvInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func csvFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
