package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	engine "github.com/trackforge/release-radar/internal/domain/analytics"
	"github.com/trackforge/release-radar/internal/domain/stages"
	domain "github.com/trackforge/release-radar/internal/domain/workitems"
)

// Messages for the successful-but-empty results: not enough history is an
// expected steady state early in a release, never an error.
const (
	msgNoSnapshots   = "no snapshot data yet for this release"
	msgNoItems       = "no work items yet for this release"
	msgShortHistory  = "fewer than 2 snapshot runs; insufficient trend data"
	queryTimeout     = 10 * time.Second
	defaultThreshold = 7
	defaultWindow    = 7
)

// Limits bound the caller-supplied analyzer parameters.
type Limits struct {
	MinThresholdDays int
	MaxThresholdDays int
	MinWindowDays    int
	MaxWindowDays    int
}

// DefaultLimits per the documented parameter ranges.
func DefaultLimits() Limits {
	return Limits{MinThresholdDays: 1, MaxThresholdDays: 90, MinWindowDays: 1, MaxWindowDays: 60}
}

// Service exposes the analyzers as stateless read-side use cases. Any number
// of calls may run concurrently; nothing here mutates the store.
type Service struct {
	Repo   domain.Repository
	Tax    stages.Taxonomy
	Limits Limits
}

func NewService(repo domain.Repository, tax stages.Taxonomy, limits Limits) *Service {
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	return &Service{Repo: repo, Tax: tax, Limits: limits}
}

// ScopeReport adds the reporting timestamp and the insufficiency message to
// the engine output. AsOf for scope is the latest run's timestamp.
type ScopeReport struct {
	engine.ScopeSummary
	AsOf    time.Time `json:"asOf"`
	Message string    `json:"message,omitempty"`
}

func (s *Service) Scope(ctx context.Context, release string) (ScopeReport, error) {
	release, err := requireRelease(release)
	if err != nil {
		return ScopeReport{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	snaps, err := s.Repo.SnapshotsForRelease(ctx, release)
	if err != nil {
		return ScopeReport{}, fmt.Errorf("loading snapshots: %w", err)
	}
	sum, ok := engine.Scope(release, snaps, s.Tax)
	rep := ScopeReport{ScopeSummary: sum, AsOf: sum.LatestAt}
	if !ok {
		rep.Message = msgNoSnapshots
	}
	return rep, nil
}

type BurnupReport struct {
	Release string               `json:"release"`
	Bucket  engine.Granularity   `json:"bucket"`
	Points  []engine.BurnupPoint `json:"points"`
	AsOf    time.Time            `json:"asOf"`
	Message string               `json:"message,omitempty"`
}

func (s *Service) Burnup(ctx context.Context, release, bucket string) (BurnupReport, error) {
	release, err := requireRelease(release)
	if err != nil {
		return BurnupReport{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	g := engine.ParseGranularity(bucket)
	snaps, err := s.Repo.SnapshotsForRelease(ctx, release)
	if err != nil {
		return BurnupReport{}, fmt.Errorf("loading snapshots: %w", err)
	}
	rep := BurnupReport{Release: release, Bucket: g, Points: engine.Burnup(snaps, g, s.Tax)}
	if len(snaps) > 0 {
		rep.AsOf = snaps[len(snaps)-1].SnapshotAt
	}
	switch {
	case len(snaps) == 0:
		rep.Message = msgNoSnapshots
	case len(rep.Points) < 2:
		rep.Message = msgShortHistory
	}
	return rep, nil
}

type AgingReport struct {
	engine.AgingSummary
	AsOf    time.Time `json:"asOf"`
	Message string    `json:"message,omitempty"`
}

func (s *Service) Aging(ctx context.Context, release string, thresholdDays int) (AgingReport, error) {
	release, err := requireRelease(release)
	if err != nil {
		return AgingReport{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	threshold := clamp(thresholdDays, s.Limits.MinThresholdDays, s.Limits.MaxThresholdDays, defaultThreshold)
	items, err := s.Repo.LatestForRelease(ctx, release)
	if err != nil {
		return AgingReport{}, fmt.Errorf("loading work items: %w", err)
	}
	asOf := latestSyncedAt(items)
	rep := AgingReport{AgingSummary: engine.Aging(release, items, asOf, threshold, s.Tax), AsOf: asOf}
	if len(items) == 0 {
		rep.Message = msgNoItems
	}
	return rep, nil
}

type ThroughputReport struct {
	engine.ThroughputSummary
	AsOf    time.Time `json:"asOf"`
	Message string    `json:"message,omitempty"`
}

func (s *Service) Throughput(ctx context.Context, release string) (ThroughputReport, error) {
	release, err := requireRelease(release)
	if err != nil {
		return ThroughputReport{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	items, err := s.Repo.LatestForRelease(ctx, release)
	if err != nil {
		return ThroughputReport{}, fmt.Errorf("loading work items: %w", err)
	}
	asOf := latestSyncedAt(items)
	rep := ThroughputReport{ThroughputSummary: engine.Throughput(release, items, asOf, s.Tax), AsOf: asOf}
	if len(items) == 0 {
		rep.Message = msgNoItems
	}
	return rep, nil
}

type DependencyRiskReport struct {
	engine.DependencyRiskSummary
	AsOf    time.Time `json:"asOf"`
	Message string    `json:"message,omitempty"`
}

func (s *Service) DependencyRisk(ctx context.Context, release string) (DependencyRiskReport, error) {
	release, err := requireRelease(release)
	if err != nil {
		return DependencyRiskReport{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	items, err := s.Repo.LatestForRelease(ctx, release)
	if err != nil {
		return DependencyRiskReport{}, fmt.Errorf("loading work items: %w", err)
	}
	asOf := latestSyncedAt(items)
	rep := DependencyRiskReport{DependencyRiskSummary: engine.DependencyRisk(release, items, s.Tax), AsOf: asOf}
	if len(items) == 0 {
		rep.Message = msgNoItems
	}
	return rep, nil
}

type StageFlowReport struct {
	engine.CycleSummary
	AsOf    time.Time `json:"asOf"`
	Message string    `json:"message,omitempty"`
}

func (s *Service) StageFlow(ctx context.Context, release string, windowDays int) (StageFlowReport, error) {
	release, err := requireRelease(release)
	if err != nil {
		return StageFlowReport{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	window := clamp(windowDays, s.Limits.MinWindowDays, s.Limits.MaxWindowDays, defaultWindow)
	items, err := s.Repo.LatestForRelease(ctx, release)
	if err != nil {
		return StageFlowReport{}, fmt.Errorf("loading work items: %w", err)
	}
	asOf := latestSyncedAt(items)

	var snaps []domain.Snapshot
	if len(items) > 0 {
		snaps, err = s.Repo.SnapshotsSince(ctx, release, asOf.AddDate(0, 0, -window))
		if err != nil {
			return StageFlowReport{}, fmt.Errorf("loading snapshots: %w", err)
		}
	}
	rep := StageFlowReport{
		CycleSummary: engine.StageFlow(release, snaps, items, asOf, window, s.Tax),
		AsOf:         asOf,
	}
	if len(items) == 0 {
		rep.Message = msgNoItems
	}
	return rep, nil
}

func requireRelease(release string) (string, error) {
	release = strings.TrimSpace(release)
	if release == "" {
		return "", domain.ErrReleaseRequired
	}
	return release, nil
}

func clamp(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// latestSyncedAt is the "as of" instant for latest-state reductions: the most
// recent synced_at among the release's rows.
func latestSyncedAt(items []*domain.WorkItem) time.Time {
	var asOf time.Time
	for _, it := range items {
		if it.SyncedAt.After(asOf) {
			asOf = it.SyncedAt
		}
	}
	return asOf
}
