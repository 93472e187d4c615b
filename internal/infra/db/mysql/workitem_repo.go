package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domain "github.com/trackforge/release-radar/internal/domain/workitems"
)

// MySQL adapter for installations that cannot run Postgres. Same contracts as
// the postgres package; the differences are placeholders, the upsert form,
// and NULL ordering (MySQL sorts NULLs first on DESC, so changed_date gets an
// explicit IS NULL key).

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
	"tags", "`release`",
	"created_by", "changed_by",
	"created_date", "changed_date", "state_change_date", "closed_date",
	"severity", "effort",
	"parent_id", "feature_id", "feature",
	"dep_count", "open_dep_count", "related_link_count", "open_related_count",
	"source", "synced_at",
}

func (r *WorkItemRepository) AppendRun(ctx context.Context, run domain.SyncRun, items []*domain.WorkItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const runQ = `
INSERT INTO sync_runs (run_id, run_at, source, item_count)
VALUES (?,?,?,?);`
	if _, err := tx.ExecContext(ctx, runQ, run.RunID, run.RunAt, run.Source, run.ItemCount); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for start := 0; start < len(items); start += chunkSize {
		end := start + chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		if err := upsertLatest(ctx, tx, chunk); err != nil {
			return fmt.Errorf("upserting latest: %w", err)
		}
		if err := insertSnapshots(ctx, tx, run, chunk); err != nil {
			return fmt.Errorf("inserting snapshots: %w", err)
		}
	}
	return tx.Commit()
}

func upsertLatest(ctx context.Context, tx *sql.Tx, items []*domain.WorkItem) error {
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
		fmt.Fprintf(&upd, "%s=VALUES(%s)", c, c)
	}

	q := fmt.Sprintf(`
INSERT INTO work_item_latest (%s)
VALUES %s
ON DUPLICATE KEY UPDATE %s;`,
		strings.Join(latestCols, ", "),
		placeholderRows(len(items), len(latestCols)),
		upd.String(),
	)
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func insertSnapshots(ctx context.Context, tx *sql.Tx, run domain.SyncRun, items []*domain.WorkItem) error {
	args := make([]any, 0, len(items)*13)
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
INSERT INTO work_item_snapshots
(run_id, snapshot_at, work_item_id, `+"`release`"+`, type, state,
 severity, effort,
 dep_count, open_dep_count, related_link_count, open_related_count,
 closed_date)
VALUES %s;`, placeholderRows(len(items), 13))
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func placeholderRows(n, w int) string {
	row := "(" + strings.TrimRight(strings.Repeat("?,", w), ",") + ")"
	rows := make([]string, n)
	for i := range rows {
		rows[i] = row
	}
	return strings.Join(rows, ",")
}

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

	if err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM work_item_latest %s`, whereSql), params...,
	).Scan(&res.Count); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting rows: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT COUNT(*),
       COALESCE(SUM(dep_count),0),
       COALESCE(SUM(related_link_count),0),
       COALESCE(SUM(open_dep_count),0),
       COALESCE(SUM(open_related_count),0)
FROM work_item_latest %s`, whereSql), params...,
	).Scan(
		&res.Rollup.Total, &res.Rollup.DepTotal, &res.Rollup.RelTotal,
		&res.Rollup.OpenDepTotal, &res.Rollup.OpenRelTotal,
	); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("rollup: %w", err)
	}

	rowsQ := fmt.Sprintf(`
SELECT %s FROM work_item_latest
%s
ORDER BY changed_date IS NULL, changed_date DESC
LIMIT ? OFFSET ?`, strings.Join(latestCols, ", "), whereSql)

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
		where = append(where, cond)
		params = append(params, val)
	}

	if f.Release != "" {
		add("`release` = ?", f.Release)
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
		add("feature LIKE ?", "%"+escapeLikePattern(f.Feature)+"%")
	}
	if f.FromChanged != nil {
		add("changed_date >= ?", *f.FromChanged)
	}
	if f.ToChanged != nil {
		add("changed_date <= ?", *f.ToChanged)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		pat := "%" + escapeLikePattern(s) + "%"
		where = append(where, "(title LIKE ? OR tags LIKE ? OR CAST(work_item_id AS CHAR) LIKE ?)")
		params = append(params, pat, pat, pat)
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

func (r *WorkItemRepository) LatestForRelease(ctx context.Context, release string) ([]*domain.WorkItem, error) {
	q := fmt.Sprintf(`
SELECT %s FROM work_item_latest
WHERE `+"`release`"+` = ?
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
SELECT run_id, snapshot_at, work_item_id, ` + "`release`" + `, type, state,
       severity, effort,
       dep_count, open_dep_count, related_link_count, open_related_count,
       closed_date
FROM work_item_snapshots`

func (r *WorkItemRepository) SnapshotsForRelease(ctx context.Context, release string) ([]domain.Snapshot, error) {
	q := snapshotSelect + "\nWHERE `release` = ?\nORDER BY snapshot_at, run_id, work_item_id;"
	return r.querySnapshots(ctx, q, release)
}

func (r *WorkItemRepository) SnapshotsSince(ctx context.Context, release string, since time.Time) ([]domain.Snapshot, error) {
	q := snapshotSelect + "\nWHERE `release` = ? AND snapshot_at >= ?\nORDER BY snapshot_at, run_id, work_item_id;"
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
