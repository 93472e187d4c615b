package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/trackforge/release-radar/internal/application"
	domain "github.com/trackforge/release-radar/internal/domain/workitems"
)

const defaultSource = "tfs-weekly-sync"

// Service implements the ingestion use case. Each call is one logical sync
// run: all rows share one run id and one timestamp and commit atomically.
// Safe for concurrent use; concurrent calls produce independent runs.
type Service struct {
	Repo    domain.Repository
	Archive domain.ArchiveStore // optional; nil disables raw-batch archiving
	Clock   application.Clock
}

// Command for one ingestion batch. Raw, when set, is the original request
// body and is what gets archived.
type Command struct {
	Source      string
	SyncedAtUTC string
	Rows        []domain.IngestRow
	Raw         []byte
}

type Result struct {
	RunID domain.RunID `json:"runId"`
	RunAt time.Time    `json:"runAt"`
	Count int          `json:"count"`
}

// AppendRun validates and persists one batch. Replaying a batch creates a new
// run (no run-level idempotency); callers dedupe on the returned run id.
func (s *Service) AppendRun(ctx context.Context, cmd Command) (Result, error) {
	if len(cmd.Rows) == 0 {
		return Result{}, domain.ErrEmptyBatch
	}

	source := cmd.Source
	if source == "" {
		source = defaultSource
	}

	runAt := s.Clock.Now().UTC()
	if cmd.SyncedAtUTC != "" {
		if t, err := time.Parse(time.RFC3339, cmd.SyncedAtUTC); err == nil {
			runAt = t.UTC()
		}
	}

	items, err := domain.ParseRows(cmd.Rows, source, runAt)
	if err != nil {
		return Result{}, err
	}

	run := domain.SyncRun{
		RunID:     domain.RunID(uuid.New().String()),
		RunAt:     runAt,
		Source:    source,
		ItemCount: len(items),
	}
	if err := s.Repo.AppendRun(ctx, run, items); err != nil {
		return Result{}, fmt.Errorf("appending run: %w", err)
	}

	// Archive after commit: a failed upload must not roll back an ingested run.
	if s.Archive != nil && len(cmd.Raw) > 0 {
		key := fmt.Sprintf("archive/%s/%s.json", source, run.RunID)
		if _, aerr := s.Archive.Archive(ctx, key, cmd.Raw); aerr != nil {
			log.Printf("batch archive failed for run %s: %v", run.RunID, aerr)
		}
	}

	return Result{RunID: run.RunID, RunAt: run.RunAt, Count: len(items)}, nil
}
