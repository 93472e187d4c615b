package workitems

import (
	"context"
	"time"
)

// Repository is the persistence port for runs, snapshots, and latest state.
type Repository interface {
	// AppendRun persists one sync run as a single atomic unit: the run row,
	// one snapshot per item, and the latest-state upsert for each item all
	// become visible together, or not at all.
	AppendRun(ctx context.Context, run SyncRun, items []*WorkItem) error

	// Query returns current-state rows matching the filter, plus total count
	// and the dashboard rollup, independent of the pagination window.
	Query(ctx context.Context, f Filter) (PaginatedResult, error)

	// LatestForRelease returns all current-state rows for a release.
	LatestForRelease(ctx context.Context, release string) ([]*WorkItem, error)

	// SnapshotsForRelease returns every snapshot for a release ordered by
	// snapshot_at ascending, then run id, then work item id.
	SnapshotsForRelease(ctx context.Context, release string) ([]Snapshot, error)

	// SnapshotsSince is SnapshotsForRelease restricted to snapshot_at >= since.
	SnapshotsSince(ctx context.Context, release string, since time.Time) ([]Snapshot, error)
}

// ArchiveStore keeps raw ingestion payloads for audit and replay.
type ArchiveStore interface {
	Archive(ctx context.Context, key string, payload []byte) (string, error)
}

// Filter for the work-item grid query.
type Filter struct {
	Query         string // free text over title/tags/id
	Release       string
	AssignedToUPN string
	State         string
	Type          string
	Feature       string // substring
	FromChanged   *time.Time
	ToChanged     *time.Time
	Limit         int
	Offset        int
}

// Rollup powers the dashboard tiles above the grid.
type Rollup struct {
	Total        int `json:"total"`
	DepTotal     int `json:"dep_total"`
	RelTotal     int `json:"rel_total"`
	OpenDepTotal int `json:"open_dep_total"`
	OpenRelTotal int `json:"open_rel_total"`
}

// PaginatedResult represents a paginated grid response with data and metadata
type PaginatedResult struct {
	Rows   []*WorkItem `json:"rows"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Rollup Rollup      `json:"rollup"`
}
