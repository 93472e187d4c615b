package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	domain "github.com/trackforge/release-radar/internal/domain/workitems"
)

// WorkItemRepository is the fixture-backed store used by service and handler
// tests. It implements the same contracts as the SQL adapters, including
// run-level atomicity (the mutex makes each AppendRun a unit) and the
// snapshot reduction ordering.
type WorkItemRepository struct {
	mu     sync.RWMutex
	latest map[int]*domain.WorkItem
	snaps  []domain.Snapshot
	runs   []domain.SyncRun
}

func NewWorkItemRepository() *WorkItemRepository {
	return &WorkItemRepository{latest: make(map[int]*domain.WorkItem)}
}

func (r *WorkItemRepository) AppendRun(_ context.Context, run domain.SyncRun, items []*domain.WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = append(r.runs, run)
	for _, w := range items {
		cp := *w
		r.latest[w.WorkItemID] = &cp
		r.snaps = append(r.snaps, w.SnapshotFor(run))
	}
	return nil
}

// Runs returns the recorded sync runs, oldest first.
func (r *WorkItemRepository) Runs() []domain.SyncRun {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SyncRun(nil), r.runs...)
}

func (r *WorkItemRepository) Query(_ context.Context, f domain.Filter) (domain.PaginatedResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.WorkItem
	for _, w := range r.latest {
		if matches(w, f) {
			matched = append(matched, w)
		}
	}
	// changed_date desc, nils last
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].ChangedDate, matched[j].ChangedDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	lim := f.Limit
	if lim <= 0 {
		lim = 200
	}
	off := f.Offset
	if off < 0 {
		off = 0
	}

	res := domain.PaginatedResult{Count: len(matched), Limit: lim, Offset: off}
	for _, w := range matched {
		res.Rollup.Total++
		res.Rollup.DepTotal += w.DepCount
		res.Rollup.RelTotal += w.RelatedLinkCount
		if w.OpenDepCount != nil {
			res.Rollup.OpenDepTotal += *w.OpenDepCount
		}
		if w.OpenRelatedCount != nil {
			res.Rollup.OpenRelTotal += *w.OpenRelatedCount
		}
	}

	if off < len(matched) {
		end := off + lim
		if end > len(matched) {
			end = len(matched)
		}
		for _, w := range matched[off:end] {
			cp := *w
			res.Rows = append(res.Rows, &cp)
		}
	}
	return res, nil
}

func matches(w *domain.WorkItem, f domain.Filter) bool {
	if f.Release != "" && w.Release != f.Release {
		return false
	}
	if f.AssignedToUPN != "" && w.AssignedToUPN != f.AssignedToUPN {
		return false
	}
	if f.State != "" && w.State != f.State {
		return false
	}
	if f.Type != "" && w.Type != f.Type {
		return false
	}
	if f.Feature != "" && !containsFold(w.Feature, f.Feature) {
		return false
	}
	if f.FromChanged != nil && (w.ChangedDate == nil || w.ChangedDate.Before(*f.FromChanged)) {
		return false
	}
	if f.ToChanged != nil && (w.ChangedDate == nil || w.ChangedDate.After(*f.ToChanged)) {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		if !containsFold(w.Title, q) && !containsFold(w.Tags, q) &&
			!strings.Contains(strconv.Itoa(w.WorkItemID), q) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (r *WorkItemRepository) LatestForRelease(_ context.Context, release string) ([]*domain.WorkItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.WorkItem
	for _, w := range r.latest {
		if w.Release == release {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkItemID < out[j].WorkItemID })
	return out, nil
}

func (r *WorkItemRepository) SnapshotsForRelease(_ context.Context, release string) ([]domain.Snapshot, error) {
	return r.snapshotsWhere(release, time.Time{})
}

func (r *WorkItemRepository) SnapshotsSince(_ context.Context, release string, since time.Time) ([]domain.Snapshot, error) {
	return r.snapshotsWhere(release, since)
}

func (r *WorkItemRepository) snapshotsWhere(release string, since time.Time) ([]domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Snapshot
	for _, s := range r.snaps {
		if s.Release != release {
			continue
		}
		if !since.IsZero() && s.SnapshotAt.Before(since) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.SnapshotAt.Equal(b.SnapshotAt) {
			return a.SnapshotAt.Before(b.SnapshotAt)
		}
		if a.RunID != b.RunID {
			return a.RunID < b.RunID
		}
		return a.WorkItemID < b.WorkItemID
	})
	return out, nil
}
