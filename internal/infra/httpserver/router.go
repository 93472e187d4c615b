package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	appanalytics "github.com/trackforge/release-radar/internal/application/analytics"
	appingest "github.com/trackforge/release-radar/internal/application/ingest"
	appinsight "github.com/trackforge/release-radar/internal/application/insight"
	dominsight "github.com/trackforge/release-radar/internal/domain/insight"
	domain "github.com/trackforge/release-radar/internal/domain/workitems"
	"github.com/trackforge/release-radar/internal/middleware"
)

const (
	defaultGridLimit   = 200
	maxGridLimit       = 1000
	defaultExportLimit = 5000
	maxExportLimit     = 20000
)

type Router struct {
	repo         domain.Repository
	ingestSvc    *appingest.Service
	analyticsSvc *appanalytics.Service
	insightSvc   *appinsight.Service
	syncKey      string
}

func NewRouter(repo domain.Repository, ingestSvc *appingest.Service, analyticsSvc *appanalytics.Service, insightSvc *appinsight.Service, syncKey string) http.Handler {
	r := &Router{
		repo:         repo,
		ingestSvc:    ingestSvc,
		analyticsSvc: analyticsSvc,
		insightSvc:   insightSvc,
		syncKey:      syncKey,
	}
	mux := chi.NewRouter()

	mux.Route("/api", func(rt chi.Router) {
		rt.With(middleware.SyncKeyAuth(r.syncKey)).
			Post("/sync/work-items", r.wrap(r.handleSync))

		rt.Get("/work-items", r.wrap(r.handleWorkItems))
		rt.Get("/work-items/export.csv", r.wrap(r.handleExportCSV))

		rt.Route("/analytics", func(an chi.Router) {
			an.Get("/scope", r.wrap(r.handleScope))
			an.Get("/burnup", r.wrap(r.handleBurnup))
			an.Get("/aging", r.wrap(r.handleAging))
			an.Get("/throughput", r.wrap(r.handleThroughput))
			an.Get("/dependency-risk", r.wrap(r.handleDependencyRisk))
			an.Get("/stage-flow", r.wrap(r.handleStageFlow))
		})

		rt.Get("/release-health", r.wrap(r.handleReleaseHealth))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps domain errors onto the error taxonomy: caller errors are 4xx with
// a stable code, everything else is a retryable 500 with no partial data.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrEmptyBatch):
			writeErr(w, http.StatusBadRequest, "rows_required", err.Error())
		case errors.Is(err, domain.ErrBadRow):
			writeErr(w, http.StatusBadRequest, "bad_row", err.Error())
		case errors.Is(err, domain.ErrReleaseRequired):
			writeErr(w, http.StatusBadRequest, "release_required", err.Error())
		case errors.Is(err, dominsight.ErrQuotaExceeded):
			writeErr(w, http.StatusTooManyRequests, "quota_exceeded", err.Error())
		default:
			writeErr(w, http.StatusInternalServerError, "store_unavailable", err.Error())
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"ok":      false,
		"error":   code,
		"message": message,
	})
}

// POST /api/sync/work-items
// Body: {"source": "...", "syncedAtUtc": "...", "rows": [...]}
func (r *Router) handleSync(w http.ResponseWriter, req *http.Request) error {
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}

	var body struct {
		Source      string             `json:"source"`
		SyncedAtUTC string             `json:"syncedAtUtc"`
		Rows        []domain.IngestRow `json:"rows"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_json", err.Error())
		return nil
	}

	res, err := r.ingestSvc.AppendRun(req.Context(), appingest.Command{
		Source:      body.Source,
		SyncedAtUTC: body.SyncedAtUTC,
		Rows:        body.Rows,
		Raw:         raw,
	})
	if err != nil {
		return err
	}
	middleware.RecordIngestedRun(res.Count)

	return writeJSON(w, struct {
		OK    bool         `json:"ok"`
		Count int          `json:"count"`
		RunID domain.RunID `json:"runId"`
		RunAt time.Time    `json:"runAt"`
	}{true, res.Count, res.RunID, res.RunAt})
}

// GET /api/work-items?q=&release=&assignedToUPN=&state=&type=&feature=&fromChanged=&toChanged=&limit=&offset=
func (r *Router) handleWorkItems(w http.ResponseWriter, req *http.Request) error {
	f := parseFilter(req, defaultGridLimit, maxGridLimit)
	res, err := r.repo.Query(req.Context(), f)
	if err != nil {
		return err
	}

	rows := res.Rows
	if rows == nil {
		rows = []*domain.WorkItem{}
	}
	return writeJSON(w, struct {
		OK     bool               `json:"ok"`
		Count  int                `json:"count"`
		Limit  int                `json:"limit"`
		Offset int                `json:"offset"`
		Rollup domain.Rollup      `json:"rollup"`
		Rows   []*domain.WorkItem `json:"rows"`
	}{true, res.Count, res.Limit, res.Offset, res.Rollup, rows})
}

// GET /api/work-items/export.csv with the same filters as the grid, bigger limit cap.
func (r *Router) handleExportCSV(w http.ResponseWriter, req *http.Request) error {
	f := parseFilter(req, defaultExportLimit, maxExportLimit)
	res, err := r.repo.Query(req.Context(), f)
	if err != nil {
		return err
	}
	return writeCSV(w, res.Rows)
}

// GET /api/analytics/scope?release=
func (r *Router) handleScope(w http.ResponseWriter, req *http.Request) error {
	rep, err := r.analyticsSvc.Scope(req.Context(), req.URL.Query().Get("release"))
	if err != nil {
		return err
	}
	return writeJSON(w, struct {
		OK bool `json:"ok"`
		appanalytics.ScopeReport
	}{true, rep})
}

// GET /api/analytics/burnup?release=&bucket=hour|day|week
func (r *Router) handleBurnup(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	rep, err := r.analyticsSvc.Burnup(req.Context(), q.Get("release"), q.Get("bucket"))
	if err != nil {
		return err
	}
	return writeJSON(w, struct {
		OK bool `json:"ok"`
		appanalytics.BurnupReport
	}{true, rep})
}

// GET /api/analytics/aging?release=&thresholdDays=
func (r *Router) handleAging(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	threshold, _ := strconv.Atoi(q.Get("thresholdDays"))
	rep, err := r.analyticsSvc.Aging(req.Context(), q.Get("release"), threshold)
	if err != nil {
		return err
	}
	return writeJSON(w, struct {
		OK bool `json:"ok"`
		appanalytics.AgingReport
	}{true, rep})
}

// GET /api/analytics/throughput?release=
func (r *Router) handleThroughput(w http.ResponseWriter, req *http.Request) error {
	rep, err := r.analyticsSvc.Throughput(req.Context(), req.URL.Query().Get("release"))
	if err != nil {
		return err
	}
	return writeJSON(w, struct {
		OK bool `json:"ok"`
		appanalytics.ThroughputReport
	}{true, rep})
}

// GET /api/analytics/dependency-risk?release=
func (r *Router) handleDependencyRisk(w http.ResponseWriter, req *http.Request) error {
	rep, err := r.analyticsSvc.DependencyRisk(req.Context(), req.URL.Query().Get("release"))
	if err != nil {
		return err
	}
	return writeJSON(w, struct {
		OK bool `json:"ok"`
		appanalytics.DependencyRiskReport
	}{true, rep})
}

// GET /api/analytics/stage-flow?release=&windowDays=
func (r *Router) handleStageFlow(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	window, _ := strconv.Atoi(q.Get("windowDays"))
	rep, err := r.analyticsSvc.StageFlow(req.Context(), q.Get("release"), window)
	if err != nil {
		return err
	}
	return writeJSON(w, struct {
		OK bool `json:"ok"`
		appanalytics.StageFlowReport
	}{true, rep})
}

// GET /api/release-health?release= returns the analyzer summaries in one
// payload, plus the model narrative when configured.
func (r *Router) handleReleaseHealth(w http.ResponseWriter, req *http.Request) error {
	release := req.URL.Query().Get("release")
	ctx := req.Context()

	scope, err := r.analyticsSvc.Scope(ctx, release)
	if err != nil {
		return err
	}
	aging, err := r.analyticsSvc.Aging(ctx, release, 0)
	if err != nil {
		return err
	}
	throughput, err := r.analyticsSvc.Throughput(ctx, release)
	if err != nil {
		return err
	}
	deps, err := r.analyticsSvc.DependencyRisk(ctx, release)
	if err != nil {
		return err
	}
	flow, err := r.analyticsSvc.StageFlow(ctx, release, 0)
	if err != nil {
		return err
	}

	resp := struct {
		OK             bool                                `json:"ok"`
		Release        string                              `json:"release"`
		AsOf           time.Time                           `json:"asOf"`
		Scope          appanalytics.ScopeReport            `json:"scope"`
		Aging          appanalytics.AgingReport            `json:"aging"`
		Throughput     appanalytics.ThroughputReport       `json:"throughput"`
		DependencyRisk appanalytics.DependencyRiskReport   `json:"dependencyRisk"`
		StageFlow      appanalytics.StageFlowReport        `json:"stageFlow"`
		Narrative      *dominsight.Narrative               `json:"narrative,omitempty"`
		Message        string                              `json:"message,omitempty"`
	}{
		OK:             true,
		Release:        strings.TrimSpace(release),
		AsOf:           aging.AsOf,
		Scope:          scope,
		Aging:          aging,
		Throughput:     throughput,
		DependencyRisk: deps,
		StageFlow:      flow,
	}

	if r.insightSvc.Enabled() && aging.Message == "" {
		narrative, nerr := r.insightSvc.Narrate(ctx, map[string]any{
			"scope":          scope,
			"aging":          aging,
			"throughput":     throughput,
			"dependencyRisk": deps,
			"stageFlow":      flow,
		})
		if nerr != nil {
			// Metrics still stand on their own; note the miss and move on.
			resp.Message = "narrative unavailable: " + nerr.Error()
		} else {
			resp.Narrative = narrative
		}
	} else if !r.insightSvc.Enabled() {
		resp.Message = "narrative disabled; showing metrics only"
	}

	return writeJSON(w, resp)
}

func parseFilter(req *http.Request, defLimit, maxLimit int) domain.Filter {
	q := req.URL.Query()

	lim, _ := strconv.Atoi(q.Get("limit"))
	if lim <= 0 {
		lim = defLimit
	}
	if lim > maxLimit {
		lim = maxLimit
	}
	off, _ := strconv.Atoi(q.Get("offset"))
	if off < 0 {
		off = 0
	}

	f := domain.Filter{
		Query:         q.Get("q"),
		Release:       q.Get("release"),
		AssignedToUPN: q.Get("assignedToUPN"),
		State:         q.Get("state"),
		Type:          q.Get("type"),
		Feature:       q.Get("feature"),
		Limit:         lim,
		Offset:        off,
	}
	if t := parseDate(q.Get("fromChanged")); t != nil {
		f.FromChanged = t
	}
	if t := parseDate(q.Get("toChanged")); t != nil {
		f.ToChanged = t
	}
	return f
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
