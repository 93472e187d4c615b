package workitems

import (
	"time"
)

// RunID identifies one ingestion run.
type RunID string

// SyncRun binds one ingestion batch: every snapshot from the batch shares
// the run's id and timestamp.
type SyncRun struct {
	RunID     RunID     `json:"run_id"`
	RunAt     time.Time `json:"run_at"`
	Source    string    `json:"source"`
	ItemCount int       `json:"item_count"`
}

// Snapshot is an immutable per-item, per-run fact. Identity = (run_id, work_item_id).
// Rows are append-only; ordering across runs for the same item is by SnapshotAt.
type Snapshot struct {
	RunID            RunID      `json:"runId"`
	SnapshotAt       time.Time  `json:"snapshotAt"`
	WorkItemID       int        `json:"workItemId"`
	Release          string     `json:"release"`
	Type             string     `json:"type"`
	State            string     `json:"state"`
	Severity         string     `json:"severity,omitempty"`
	Effort           *float64   `json:"effort,omitempty"`
	DepCount         int        `json:"depCount"`
	OpenDepCount     *int       `json:"openDepCount,omitempty"`
	RelatedLinkCount int        `json:"relatedLinkCount"`
	OpenRelatedCount *int       `json:"openRelatedCount,omitempty"`
	ClosedDate       *time.Time `json:"closedDate,omitempty"`
}

// Aggregate root: WorkItem, the current-state projection of a tracker item.
// Upserted (replace-all-fields) per run, keyed by WorkItemID. The only mutable
// entity in the model.
//
// Open counts are *int on purpose: nil means the source never reported the
// field, 0 means the source reported an explicit zero.
type WorkItem struct {
	WorkItemID       int        `json:"workItemId"`
	Type             string     `json:"type,omitempty"`
	Title            string     `json:"title,omitempty"`
	State            string     `json:"state,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	AssignedTo       string     `json:"assignedTo,omitempty"`
	AssignedToUPN    string     `json:"assignedToUPN,omitempty"`
	Project          string     `json:"project,omitempty"`
	AreaPath         string     `json:"areaPath,omitempty"`
	IterationPath    string     `json:"iterationPath,omitempty"`
	Tags             string     `json:"tags,omitempty"`
	Release          string     `json:"release,omitempty"`
	CreatedBy        string     `json:"createdBy,omitempty"`
	ChangedBy        string     `json:"changedBy,omitempty"`
	CreatedDate      *time.Time `json:"createdDate,omitempty"`
	ChangedDate      *time.Time `json:"changedDate,omitempty"`
	StateChangeDate  *time.Time `json:"stateChangeDate,omitempty"`
	ClosedDate       *time.Time `json:"closedDate,omitempty"`
	Severity         string     `json:"severity,omitempty"`
	Effort           *float64   `json:"effort,omitempty"`
	ParentID         *int       `json:"parentId,omitempty"`
	FeatureID        *int       `json:"featureId,omitempty"`
	Feature          string     `json:"feature,omitempty"`
	DepCount         int        `json:"depCount"`
	OpenDepCount     *int       `json:"openDepCount,omitempty"`
	RelatedLinkCount int        `json:"relatedLinkCount"`
	OpenRelatedCount *int       `json:"openRelatedCount,omitempty"`
	Source           string     `json:"source,omitempty"`
	SyncedAt         time.Time  `json:"syncedAt"`
}

// SnapshotFor stamps the analytic subset of the item with the run's identity.
func (w *WorkItem) SnapshotFor(run SyncRun) Snapshot {
	return Snapshot{
		RunID:            run.RunID,
		SnapshotAt:       run.RunAt,
		WorkItemID:       w.WorkItemID,
		Release:          w.Release,
		Type:             w.Type,
		State:            w.State,
		Severity:         w.Severity,
		Effort:           w.Effort,
		DepCount:         w.DepCount,
		OpenDepCount:     w.OpenDepCount,
		RelatedLinkCount: w.RelatedLinkCount,
		OpenRelatedCount: w.OpenRelatedCount,
		ClosedDate:       w.ClosedDate,
	}
}

// StateSince is the moment the item entered its current state: first non-nil
// of state_change_date, changed_date, created_date.
func (w *WorkItem) StateSince() *time.Time {
	if w.StateChangeDate != nil {
		return w.StateChangeDate
	}
	if w.ChangedDate != nil {
		return w.ChangedDate
	}
	return w.CreatedDate
}

// DoneAt dates a completion event: first non-nil of closed_date, state_change_date.
func (w *WorkItem) DoneAt() *time.Time {
	if w.ClosedDate != nil {
		return w.ClosedDate
	}
	return w.StateChangeDate
}
