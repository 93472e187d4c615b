package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/trackforge/release-radar/internal/domain/workitems"
	"github.com/trackforge/release-radar/internal/infra/db/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingArchive struct {
	keys []string
	err  error
}

func (a *recordingArchive) Archive(_ context.Context, key string, _ []byte) (string, error) {
	a.keys = append(a.keys, key)
	return "http://archive/" + key, a.err
}

var now = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func row(id int, state string) domain.IngestRow {
	return domain.IngestRow{WorkItemID: float64(id), State: state, Release: "R1"}
}

func TestAppendRunEmptyBatch(t *testing.T) {
	svc := &Service{Repo: memory.NewWorkItemRepository(), Clock: fixedClock{now}}

	_, err := svc.AppendRun(context.Background(), Command{})
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
}

func TestAppendRunDefaultsSourceAndClock(t *testing.T) {
	repo := memory.NewWorkItemRepository()
	svc := &Service{Repo: repo, Clock: fixedClock{now}}

	res, err := svc.AppendRun(context.Background(), Command{Rows: []domain.IngestRow{row(1, "New")}})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, now, res.RunAt)
	assert.Equal(t, 1, res.Count)

	runs := repo.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "tfs-weekly-sync", runs[0].Source)
	assert.Equal(t, 1, runs[0].ItemCount)
}

func TestAppendRunUsesCallerTimestamp(t *testing.T) {
	repo := memory.NewWorkItemRepository()
	svc := &Service{Repo: repo, Clock: fixedClock{now}}

	res, err := svc.AppendRun(context.Background(), Command{
		Source:      "backfill",
		SyncedAtUTC: "2025-05-26T00:00:00Z",
		Rows:        []domain.IngestRow{row(1, "New")},
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC), res.RunAt)
	assert.Equal(t, "backfill", repo.Runs()[0].Source)
}

func TestAppendRunBadTimestampFallsBackToClock(t *testing.T) {
	svc := &Service{Repo: memory.NewWorkItemRepository(), Clock: fixedClock{now}}

	res, err := svc.AppendRun(context.Background(), Command{
		SyncedAtUTC: "last tuesday",
		Rows:        []domain.IngestRow{row(1, "New")},
	})
	require.NoError(t, err)
	assert.Equal(t, now, res.RunAt)
}

// Re-ingesting produces a second run whose values win the latest projection
// while both runs stay visible in the snapshot history.
func TestAppendRunTwiceRoundTrip(t *testing.T) {
	repo := memory.NewWorkItemRepository()
	svc := &Service{Repo: repo, Clock: fixedClock{now}}
	ctx := context.Background()

	first, err := svc.AppendRun(ctx, Command{
		SyncedAtUTC: "2025-05-26T00:00:00Z",
		Rows:        []domain.IngestRow{row(1, "New"), row(2, "New")},
	})
	require.NoError(t, err)

	second, err := svc.AppendRun(ctx, Command{
		SyncedAtUTC: "2025-06-02T00:00:00Z",
		Rows:        []domain.IngestRow{row(1, "Done"), row(2, "In Development")},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	require.Len(t, repo.Runs(), 2)

	latest, err := repo.LatestForRelease(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "Done", latest[0].State)
	assert.Equal(t, "In Development", latest[1].State)

	snaps, err := repo.SnapshotsForRelease(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	assert.Equal(t, first.RunID, snaps[0].RunID)
	assert.Equal(t, second.RunID, snaps[3].RunID)
}

func TestAppendRunArchivesRawBatch(t *testing.T) {
	arch := &recordingArchive{}
	svc := &Service{Repo: memory.NewWorkItemRepository(), Archive: arch, Clock: fixedClock{now}}

	res, err := svc.AppendRun(context.Background(), Command{
		Source: "tfs",
		Rows:   []domain.IngestRow{row(1, "New")},
		Raw:    []byte(`{"rows":[{"workItemId":1}]}`),
	})
	require.NoError(t, err)
	require.Len(t, arch.keys, 1)
	assert.Equal(t, "archive/tfs/"+string(res.RunID)+".json", arch.keys[0])
}

func TestAppendRunArchiveFailureDoesNotFailRun(t *testing.T) {
	arch := &recordingArchive{err: errors.New("bucket gone")}
	repo := memory.NewWorkItemRepository()
	svc := &Service{Repo: repo, Archive: arch, Clock: fixedClock{now}}

	_, err := svc.AppendRun(context.Background(), Command{
		Rows: []domain.IngestRow{row(1, "New")},
		Raw:  []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Len(t, repo.Runs(), 1)
}
