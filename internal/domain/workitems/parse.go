package workitems

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// IngestRow is one raw work-item record as delivered by the sync job. Numeric
// fields arrive as JSON numbers or strings depending on the export path, so
// they are typed as any and normalized leniently.
type IngestRow struct {
	WorkItemID       any    `json:"workItemId"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	State            string `json:"state"`
	Reason           string `json:"reason"`
	AssignedTo       string `json:"assignedTo"`
	AssignedToUPN    string `json:"assignedToUPN"`
	Project          string `json:"project"`
	AreaPath         string `json:"areaPath"`
	IterationPath    string `json:"iterationPath"`
	Tags             string `json:"tags"`
	Release          string `json:"release"`
	CreatedBy        string `json:"createdBy"`
	ChangedBy        string `json:"changedBy"`
	CreatedDate      string `json:"createdDate"`
	ChangedDate      string `json:"changedDate"`
	StateChangeDate  string `json:"stateChangeDate"`
	ClosedDate       string `json:"closedDate"`
	Severity         string `json:"severity"`
	Effort           any    `json:"effort"`
	ParentID         any    `json:"parentId"`
	FeatureID        any    `json:"featureId"`
	Feature          string `json:"feature"`
	DepCount         any    `json:"depCount"`
	OpenDepCount     any    `json:"openDepCount"`
	RelatedLinkCount any    `json:"relatedLinkCount"`
	OpenRelatedCount any    `json:"openRelatedCount"`
}

// ParseRows normalizes a batch into WorkItem projections stamped with the
// run's source and timestamp. Malformed field values degrade to absent (nil)
// rather than failing the row; count fields default to 0 when omitted. Only a
// missing/invalid workItemId rejects the batch, since it is the row identity.
func ParseRows(rows []IngestRow, source string, syncedAt time.Time) ([]*WorkItem, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}

	items := make([]*WorkItem, 0, len(rows))
	for i, r := range rows {
		id := normInt(r.WorkItemID)
		if id == nil {
			return nil, fmt.Errorf("row %d: workItemId required: %w", i, ErrBadRow)
		}
		items = append(items, &WorkItem{
			WorkItemID:       *id,
			Type:             r.Type,
			Title:            r.Title,
			State:            r.State,
			Reason:           r.Reason,
			AssignedTo:       r.AssignedTo,
			AssignedToUPN:    r.AssignedToUPN,
			Project:          r.Project,
			AreaPath:         r.AreaPath,
			IterationPath:    r.IterationPath,
			Tags:             r.Tags,
			Release:          r.Release,
			CreatedBy:        r.CreatedBy,
			ChangedBy:        r.ChangedBy,
			CreatedDate:      toDateOrNil(r.CreatedDate),
			ChangedDate:      toDateOrNil(r.ChangedDate),
			StateChangeDate:  toDateOrNil(r.StateChangeDate),
			ClosedDate:       toDateOrNil(r.ClosedDate),
			Severity:         r.Severity,
			Effort:           normNum(r.Effort),
			ParentID:         normInt(r.ParentID),
			FeatureID:        normInt(r.FeatureID),
			Feature:          r.Feature,
			DepCount:         intOrZero(r.DepCount),
			OpenDepCount:     normInt(r.OpenDepCount),
			RelatedLinkCount: intOrZero(r.RelatedLinkCount),
			OpenRelatedCount: normInt(r.OpenRelatedCount),
			Source:           source,
			SyncedAt:         syncedAt,
		})
	}
	return items, nil
}

// normNum coerces a JSON number or numeric string to a float, nil when the
// value is absent, empty, or not finite.
func normNum(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// normInt is normNum truncated toward zero.
func normInt(v any) *int {
	f := normNum(v)
	if f == nil {
		return nil
	}
	n := int(math.Trunc(*f))
	return &n
}

// intOrZero is for count fields: absent means 0, not unknown.
func intOrZero(v any) int {
	if n := normInt(v); n != nil {
		return *n
	}
	return 0
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toDateOrNil parses the common tracker date formats; unparseable values
// become absent rather than erroring the batch.
func toDateOrNil(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
