package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/avlasov/spendlens/internal/ai"
	"github.com/avlasov/spendlens/internal/analytics"
	"github.com/avlasov/spendlens/internal/api/middleware"
	"github.com/avlasov/spendlens/internal/cache"
	"github.com/avlasov/spendlens/internal/config"
	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/domain"
	"github.com/avlasov/spendlens/internal/index"
	"github.com/avlasov/spendlens/internal/jobs"
)

// SpendHandler handles the spend analytics endpoints backed by the
// normalized dataset.
type SpendHandler struct {
	loader *dataset.Loader
	cache  *cache.TTLCache
	detect config.DetectConfig
	log    zerolog.Logger
}

// NewSpendHandler creates a new spend analytics handler.
func NewSpendHandler(loader *dataset.Loader, c *cache.TTLCache, detect config.DetectConfig, log zerolog.Logger) *SpendHandler {
	return &SpendHandler{
		loader: loader,
		cache:  c,
		detect: detect,
		log:    log,
	}
}

// cacheKey includes the query string so parameterized endpoints cache each
// variant separately.
func cacheKey(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

func (h *SpendHandler) serveCached(w http.ResponseWriter, r *http.Request) bool {
	v, ok := h.cache.Get(cacheKey(r))
	if !ok {
		return false
	}
	middleware.WriteJSON(w, http.StatusOK, v)
	return true
}

func (h *SpendHandler) respond(w http.ResponseWriter, r *http.Request, data interface{}) {
	h.cache.Set(cacheKey(r), data)
	middleware.WriteJSON(w, http.StatusOK, data)
}

func (h *SpendHandler) load(ctx context.Context) (*dataset.Table, []string, error) {
	table, warnings, err := h.loader.Load(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	if warnings == nil {
		warnings = []string{}
	}
	return table, warnings, nil
}

// kpiResponse flattens the KPI summary and the data quality warnings into
// a single object.
type kpiResponse struct {
	analytics.KPIs
	Warnings []string `json:"warnings"`
}

// GetKPIs handles GET /api/kpi
func (h *SpendHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	ctx := r.Context()

	table, warnings, err := h.load(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load spend data")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load spend data")
		return
	}

	h.respond(w, r, kpiResponse{KPIs: analytics.ComputeKPIs(table), Warnings: warnings})
}

// GetServiceTotals handles GET /api/services
func (h *SpendHandler) GetServiceTotals(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	ctx := r.Context()

	table, warnings, err := h.load(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load spend data")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load spend data")
		return
	}

	h.respond(w, r, map[string]interface{}{
		"services": analytics.ServiceTotalsTruncated(table),
		"warnings": warnings,
	})
}

// GetMonthlyTotals handles GET /api/monthly
func (h *SpendHandler) GetMonthlyTotals(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	ctx := r.Context()

	table, warnings, err := h.load(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load spend data")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load spend data")
		return
	}

	h.respond(w, r, map[string]interface{}{
		"monthly":  analytics.MonthlyTotals(table),
		"warnings": warnings,
	})
}

// Recommendation is one entry in the recommendations response. Flagged
// services carry service, pct_increase and action; informational entries
// carry only message.
type Recommendation struct {
	Service     string   `json:"service,omitempty"`
	PctIncrease *float64 `json:"pct_increase,omitempty"`
	Action      string   `json:"action,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// GetRecommendations handles GET /api/recommendations
func (h *SpendHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	ctx := r.Context()

	threshold := h.detect.ThresholdPct
	if raw := r.URL.Query().Get("threshold_pct"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			middleware.WriteError(w, http.StatusBadRequest, "threshold_pct must be a number between 0 and 100")
			return
		}
		threshold = parsed
	}

	table, warnings, err := h.load(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load spend data")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load spend data")
		return
	}

	flags, trendAnalyzed := analytics.DetectSpendShifts(table, threshold)

	recommendations := make([]Recommendation, 0, len(flags)+1)
	if !trendAnalyzed {
		recommendations = append(recommendations, Recommendation{
			Message: "Not enough months of data to compute recommendations.",
		})
	}
	for _, f := range flags {
		pct := f.PctIncrease
		switch f.Kind {
		case analytics.FlagSuddenIncrease:
			recommendations = append(recommendations, Recommendation{
				Service:     f.Service,
				PctIncrease: &pct,
				Action: fmt.Sprintf(
					"Investigate sudden spend increase (> %s%%). Check deployments, pricing tier, or noisy jobs.",
					strconv.FormatFloat(threshold, 'f', -1, 64),
				),
			})
		case analytics.FlagZeroTotal:
			recommendations = append(recommendations, Recommendation{
				Service:     f.Service,
				PctIncrease: &pct,
				Action:      "Service shows zero cost — confirm if unused and removable.",
			})
		}
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, Recommendation{
			Message: "No recommendations — spend looks stable.",
		})
	}

	h.respond(w, r, map[string]interface{}{
		"recommendations": recommendations,
		"warnings":        warnings,
	})
}

// GetIdleResources handles GET /api/idle
func (h *SpendHandler) GetIdleResources(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}
	ctx := r.Context()

	opts := analytics.IdleOptions{
		IdleMonths:       h.detect.IdleMonths,
		MinMonthlySaving: h.detect.MinMonthlySaving,
	}
	query := r.URL.Query()
	if raw := query.Get("months"); raw != "" {
		months, err := strconv.Atoi(raw)
		if err != nil || months < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "months must be a positive integer")
			return
		}
		opts.IdleMonths = months
	}
	if raw := query.Get("min_saving"); raw != "" {
		minSaving, err := strconv.ParseFloat(raw, 64)
		if err != nil || minSaving < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "min_saving must be a non-negative number")
			return
		}
		opts.MinMonthlySaving = minSaving
	}

	table, warnings, err := h.load(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load spend data")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load spend data")
		return
	}

	findings, idleWarnings := analytics.DetectIdleResources(table, opts)
	if findings == nil {
		findings = []analytics.IdleFinding{}
	}

	h.respond(w, r, map[string]interface{}{
		"findings": findings,
		"warnings": append(warnings, idleWarnings...),
	})
}

// Searcher is the retrieval capability the ask endpoint depends on.
type Searcher interface {
	Query(ctx context.Context, text string, topK int) ([]index.Result, error)
}

// AskHandler handles the retrieval-grounded question endpoint.
type AskHandler struct {
	searcher Searcher
	provider ai.Provider
	maxLen   int
	log      zerolog.Logger
}

// NewAskHandler creates a new ask handler. maxLen bounds accepted question
// length in runes.
func NewAskHandler(searcher Searcher, provider ai.Provider, maxLen int, log zerolog.Logger) *AskHandler {
	return &AskHandler{
		searcher: searcher,
		provider: provider,
		maxLen:   maxLen,
		log:      log,
	}
}

// Ask handles GET /api/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	question := query.Get("question")
	if strings.TrimSpace(question) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Question must be provided.")
		return
	}

	topK := index.DefaultTopK
	if raw := query.Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			middleware.WriteError(w, http.StatusBadRequest, "top_k must be an integer between 1 and 50")
			return
		}
		topK = parsed
	}

	sanitized, err := ai.SanitizeQuestion(question, h.maxLen)
	if err != nil {
		h.log.Warn().Err(err).Msg("Question rejected")
		middleware.WriteError(w, http.StatusBadRequest, "Question contains disallowed content.")
		return
	}

	results, err := h.searcher.Query(ctx, sanitized, topK)
	if err != nil {
		if errors.Is(err, index.ErrNotBuilt) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Index not built. Build the index first.")
			return
		}
		h.log.Error().Err(err).Msg("Retrieval failed")
		middleware.WriteError(w, http.StatusBadGateway, "Retrieval failed")
		return
	}
	if results == nil {
		results = []index.Result{}
	}

	rows := lo.Map(results, func(res index.Result, _ int) domain.SpendRecord {
		return res.SpendRecord
	})

	answer, err := h.provider.Answer(ctx, sanitized, rows)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "AI provider not configured")
			return
		}
		h.log.Error().Err(err).Msg("Answer generation failed")
		middleware.WriteError(w, http.StatusBadGateway, "Answer generation failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"answer":        answer,
		"sources":       results,
		"model_version": h.provider.ModelVersion(),
	})
}

// IndexHandler handles index lifecycle endpoints.
type IndexHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(publisher jobs.Publisher, log zerolog.Logger) *IndexHandler {
	return &IndexHandler{
		publisher: publisher,
		log:       log,
	}
}

// EnqueueBuild handles POST /api/index/build
func (h *IndexHandler) EnqueueBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}

	// An empty body means the configured default source.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()

	job := &jobs.IndexBuildJob{
		Source: req.Source,
	}

	if err := h.publisher.PublishIndexBuild(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue index build")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue index build")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", job.Source).Msg("Index build enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"source": job.Source,
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Source: query.Get("source"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
