package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domain "github.com/trackforge/release-radar/internal/domain/workitems"
)

// chunkSize bounds the number of rows per multi-row statement; matches the
// sync job's historical batching.
const chunkSize = 200

type WorkItemRepository struct {
	db *sql.DB
}

func NewWorkItemRepository(db *sql.DB) *WorkItemRepository {
	return &WorkItemRepository{db: db}
}

var latestCols = []string{
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

var snapshotCols = []string{
	"run_id", "snapshot_at", "work_item_id", "release", "type", "state",
	"severity", "effort",
	"dep_count", "open_dep_count", "related_link_count", "open_related_count",
	"closed_date",
}

// AppendRun persists the run row, the latest-state upserts, and the snapshot
// inserts in one transaction. Either the whole run becomes visible or none of
// it does, so readers never observe a half-ingested run.
func (r *WorkItemRepository) AppendRun(ctx context.Context, run domain.SyncRun, items []*domain.WorkItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const runQ = `
INSERT INTO sync_runs (run_id, run_at, source, item_count)
VALUES ($1,$2,$3,$4);`
	if _, err := tx.ExecContext(ctx, runQ, run.RunID, run.RunAt, run.Source, run.ItemCount); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for start := 0; start < len(items); start += chunkSize {
		end := start + chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		if err := r.upsertLatest(ctx, tx, chunk); err != nil {
			return fmt.Errorf("upserting latest: %w", err)
		}
		if err := r.insertSnapshots(ctx, tx, run, chunk); err != nil {
			return fmt.Errorf("inserting snapshots: %w", err)
		}
	}

	return tx.Commit()
}

func (r *WorkItemRepository) upsertLatest(ctx context.Context, tx *sql.Tx, items []*domain.WorkItem) error {
	args := make([]any, 0, len(items)*len(latestCols))
	for _, w := range items {
		args = append(args,
			w.WorkItemID, w.Type, w.Title, w.State, w.Reason,
			w.AssignedTo, w.AssignedToUPN,
			w.Project, w.AreaPath, w.IterationPath,
			w.Tags, w.Release,
			w.CreatedBy, w.ChangedBy,
			w.CreatedDate, w.ChangedDate, w.StateChangeDate, w.ClosedDate,
			w.Severity, w.Effort,
			w.ParentID, w.FeatureID, w.Feature,
			w.DepCount, w.OpenDepCount, w.RelatedLinkCount, w.OpenRelatedCount,
			w.Source, w.SyncedAt,
		)
	}

	var upd strings.Builder
	for i, c := range latestCols[1:] {
		if i > 0 {
			upd.WriteString(", ")
		}
		fmt.Fprintf(&upd, "%s = EXCLUDED.%s", c, c)
	}

	q := fmt.Sprintf(`
INSERT INTO work_item_latest (%s)
VALUES %s
ON CONFLICT (work_item_id) DO UPDATE SET %s;`,
		strings.Join(latestCols, ", "),
		placeholderRows(len(items), len(latestCols)),
		upd.String(),
	)
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func (r *WorkItemRepository) insertSnapshots(ctx context.Context, tx *sql.Tx, run domain.SyncRun, items []*domain.WorkItem) error {
	args := make([]any, 0, len(items)*len(snapshotCols))
	for _, w := range items {
		s := w.SnapshotFor(run)
		args = append(args,
			s.RunID, s.SnapshotAt, s.WorkItemID, s.Release, s.Type, s.State,
			s.Severity, s.Effort,
			s.DepCount, s.OpenDepCount, s.RelatedLinkCount, s.OpenRelatedCount,
			s.ClosedDate,
		)
	}

	q := fmt.Sprintf(`
INSERT INTO work_item_snapshots (%s)
VALUES %s;`,
		strings.Join(snapshotCols, ", "),
		placeholderRows(len(items), len(snapshotCols)),
	)
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// placeholderRows renders ($1,$2,..),($k+1,..) tuples for n rows of width w.
func placeholderRows(n, w int) string {
	var b strings.Builder
	for row := 0; row < n; row++ {
		if row > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for col := 0; col < w; col++ {
			if col > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", row*w+col+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Query returns the filtered grid page plus total count and rollup. The count
// and rollup ignore the pagination window on purpose.
func (r *WorkItemRepository) Query(ctx context.Context, f domain.Filter) (domain.PaginatedResult, error) {
	whereSql, params := buildWhere(f)

	lim := f.Limit
	if lim <= 0 {
		lim = 200
	}
	off := f.Offset
	if off < 0 {
		off = 0
	}

	res := domain.PaginatedResult{Limit: lim, Offset: off}

	countQ := fmt.Sprintf(`SELECT COUNT(*) FROM work_item_latest %s`, whereSql)
	if err := r.db.QueryRowContext(ctx, countQ, params...).Scan(&res.Count); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting rows: %w", err)
	}

	rollupQ := fmt.Sprintf(`
SELECT COUNT(*),
       COALESCE(SUM(dep_count),0),
       COALESCE(SUM(related_link_count),0),
       COALESCE(SUM(open_dep_count),0),
       COALESCE(SUM(open_related_count),0)
FROM work_item_latest %s`, whereSql)
	if err := r.db.QueryRowContext(ctx, rollupQ, params...).Scan(
		&res.Rollup.Total, &res.Rollup.DepTotal, &res.Rollup.RelTotal,
		&res.Rollup.OpenDepTotal, &res.Rollup.OpenRelTotal,
	); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("rollup: %w", err)
	}

	rowsQ := fmt.Sprintf(`
SELECT %s FROM work_item_latest
%s
ORDER BY changed_date DESC NULLS LAST
LIMIT $%d OFFSET $%d`,
		strings.Join(latestCols, ", "), whereSql, len(params)+1, len(params)+2)

	rows, err := r.db.QueryContext(ctx, rowsQ, append(params, lim, off)...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		res.Rows = append(res.Rows, w)
	}
	return res, rows.Err()
}

func buildWhere(f domain.Filter) (string, []any) {
	var where []string
	var params []any
	add := func(cond string, val any) {
		params = append(params, val)
		where = append(where, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(params)), 1))
	}

	if f.Release != "" {
		add("release = ?", f.Release)
	}
	if f.AssignedToUPN != "" {
		add("assigned_to_upn = ?", f.AssignedToUPN)
	}
	if f.State != "" {
		add("state = ?", f.State)
	}
	if f.Type != "" {
		add("type = ?", f.Type)
	}
	if f.Feature != "" {
		add("feature ILIKE ?", "%"+escapeLikePattern(f.Feature)+"%")
	}
	if f.FromChanged != nil {
		add("changed_date >= ?", *f.FromChanged)
	}
	if f.ToChanged != nil {
		add("changed_date <= ?", *f.ToChanged)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		params = append(params, "%"+escapeLikePattern(s)+"%")
		p := fmt.Sprintf("$%d", len(params))
		where = append(where, fmt.Sprintf(
			"(title ILIKE %s OR tags ILIKE %s OR CAST(work_item_id AS TEXT) ILIKE %s)", p, p, p))
	}

	if len(where) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(where, " AND "), params
}

// escapeLikePattern escapes special characters in LIKE patterns
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// LatestForRelease returns all current-state rows for a release.
func (r *WorkItemRepository) LatestForRelease(ctx context.Context, release string) ([]*domain.WorkItem, error) {
	q := fmt.Sprintf(`
SELECT %s FROM work_item_latest
WHERE release = $1
ORDER BY work_item_id;`, strings.Join(latestCols, ", "))

	rows, err := r.db.QueryContext(ctx, q, release)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const snapshotSelect = `
SELECT run_id, snapshot_at, work_item_id, release, type, state,
       severity, effort,
       dep_count, open_dep_count, related_link_count, open_related_count,
       closed_date
FROM work_item_snapshots`

// SnapshotsForRelease returns the release's full snapshot log in reduction
// order: snapshot_at, run_id, work_item_id ascending.
func (r *WorkItemRepository) SnapshotsForRelease(ctx context.Context, release string) ([]domain.Snapshot, error) {
	q := snapshotSelect + `
WHERE release = $1
ORDER BY snapshot_at, run_id, work_item_id;`
	return r.querySnapshots(ctx, q, release)
}

// SnapshotsSince restricts the log to snapshot_at >= since.
func (r *WorkItemRepository) SnapshotsSince(ctx context.Context, release string, since time.Time) ([]domain.Snapshot, error) {
	q := snapshotSelect + `
WHERE release = $1 AND snapshot_at >= $2
ORDER BY snapshot_at, run_id, work_item_id;`
	return r.querySnapshots(ctx, q, release, since)
}

func (r *WorkItemRepository) querySnapshots(ctx context.Context, q string, args ...any) ([]domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		var sev sql.NullString
		var effort sql.NullFloat64
		var openDep, openRel sql.NullInt64
		var closed sql.NullTime
		if err := rows.Scan(
			&s.RunID, &s.SnapshotAt, &s.WorkItemID, &s.Release, &s.Type, &s.State,
			&sev, &effort,
			&s.DepCount, &openDep, &s.RelatedLinkCount, &openRel,
			&closed,
		); err != nil {
			return nil, err
		}
		s.Severity = sev.String
		s.Effort = nullFloat(effort)
		s.OpenDepCount = nullInt(openDep)
		s.OpenRelatedCount = nullInt(openRel)
		s.ClosedDate = nullTime(closed)
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkItem(row rowScanner) (*domain.WorkItem, error) {
	var w domain.WorkItem
	var typ, title, state, reason, assignedTo, assignedToUPN sql.NullString
	var project, areaPath, iterationPath, tags, release sql.NullString
	var createdBy, changedBy, severity, feature, source sql.NullString
	var createdDate, changedDate, stateChangeDate, closedDate sql.NullTime
	var effort sql.NullFloat64
	var parentID, featureID, openDep, openRel sql.NullInt64

	if err := row.Scan(
		&w.WorkItemID, &typ, &title, &state, &reason,
		&assignedTo, &assignedToUPN,
		&project, &areaPath, &iterationPath,
		&tags, &release,
		&createdBy, &changedBy,
		&createdDate, &changedDate, &stateChangeDate, &closedDate,
		&severity, &effort,
		&parentID, &featureID, &feature,
		&w.DepCount, &openDep, &w.RelatedLinkCount, &openRel,
		&source, &w.SyncedAt,
	); err != nil {
		return nil, err
	}

	w.Type = typ.String
	w.Title = title.String
	w.State = state.String
	w.Reason = reason.String
	w.AssignedTo = assignedTo.String
	w.AssignedToUPN = assignedToUPN.String
	w.Project = project.String
	w.AreaPath = areaPath.String
	w.IterationPath = iterationPath.String
	w.Tags = tags.String
	w.Release = release.String
	w.CreatedBy = createdBy.String
	w.ChangedBy = changedBy.String
	w.CreatedDate = nullTime(createdDate)
	w.ChangedDate = nullTime(changedDate)
	w.StateChangeDate = nullTime(stateChangeDate)
	w.ClosedDate = nullTime(closedDate)
	w.Severity = severity.String
	w.Effort = nullFloat(effort)
	w.ParentID = nullInt(parentID)
	w.FeatureID = nullInt(featureID)
	w.Feature = feature.String
	w.OpenDepCount = nullInt(openDep)
	w.OpenRelatedCount = nullInt(openRel)
	w.Source = source.String
	return &w, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
