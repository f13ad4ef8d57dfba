// Package handlers implements the HTTP endpoints for summary reads and
// asynchronous report computation.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/card-analytics/internal/api/middleware"
	"github.com/dvloznov/card-analytics/internal/jobs"
	"github.com/dvloznov/card-analytics/internal/report"
)

// ReportProvider serves the most recent finished report.
type ReportProvider interface {
	Latest() (*report.Report, error)
}

// ReportsHandler handles report-related endpoints.
type ReportsHandler struct {
	provider  ReportProvider
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(provider ReportProvider, publisher jobs.Publisher, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		provider:  provider,
		publisher: publisher,
		log:       log,
	}
}

func (h *ReportsHandler) latest(w http.ResponseWriter) *report.Report {
	rep, err := h.provider.Latest()
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "No report computed yet")
		return nil
	}
	return rep
}

// GetCustomers handles GET /api/reports/customers
func (h *ReportsHandler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	rep := h.latest(w)
	if rep == nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    rep.RunID,
		"customers": rep.Customers,
		"count":     len(rep.Customers),
	})
}

// GetMerchants handles GET /api/reports/merchants
func (h *ReportsHandler) GetMerchants(w http.ResponseWriter, r *http.Request) {
	rep := h.latest(w)
	if rep == nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    rep.RunID,
		"merchants": rep.Merchants,
		"count":     len(rep.Merchants),
	})
}

// GetCategories handles GET /api/reports/categories
func (h *ReportsHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	rep := h.latest(w)
	if rep == nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     rep.RunID,
		"categories": rep.Categories,
		"count":      len(rep.Categories),
	})
}

// GetFraud handles GET /api/reports/fraud
func (h *ReportsHandler) GetFraud(w http.ResponseWriter, r *http.Request) {
	rep := h.latest(w)
	if rep == nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": rep.RunID,
		"fraud":  rep.Fraud,
	})
}

// GetKPIs handles GET /api/reports/kpis
func (h *ReportsHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	rep := h.latest(w)
	if rep == nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":       rep.RunID,
		"generated_at": rep.GeneratedAt,
		"as_of":        rep.AsOf,
		"kpis":         rep.KPIs,
	})
}

// GetRFM handles GET /api/reports/rfm
func (h *ReportsHandler) GetRFM(w http.ResponseWriter, r *http.Request) {
	rep := h.latest(w)
	if rep == nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": rep.RunID,
		"as_of":  rep.AsOf,
		"rfm":    rep.RFM,
		"count":  len(rep.RFM),
	})
}

// ComputeReport handles POST /api/reports/compute
func (h *ReportsHandler) ComputeReport(w http.ResponseWriter, r *http.Request) {
	var opts jobs.ReportOptions
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if opts.RollingWindowDays < 0 || opts.AmountBuckets < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Window and bucket sizes must be positive")
		return
	}

	job := &jobs.ComputeReportJob{Options: opts}
	if err := h.publisher.PublishComputeReport(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue report job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue report job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Report job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
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
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
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

	jobsList, err := h.store.ListJobs(r.Context(), filter)
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
