package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/card-analytics/internal/jobs"
	"github.com/dvloznov/card-analytics/internal/report"
)

type mockProvider struct {
	LatestFunc func() (*report.Report, error)
}

func (m *mockProvider) Latest() (*report.Report, error) {
	return m.LatestFunc()
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.ComputeReportJob) error
}

func (m *mockPublisher) PublishComputeReport(ctx context.Context, job *jobs.ComputeReportJob) error {
	return m.PublishFunc(ctx, job)
}

func (m *mockPublisher) Close() error { return nil }

type mockJobStore struct {
	GetJobFunc   func(ctx context.Context, jobID string) (*jobs.ComputeReportJob, error)
	ListJobsFunc func(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ComputeReportJob, error)
}

func (m *mockJobStore) SaveJob(context.Context, *jobs.ComputeReportJob) error { return nil }

func (m *mockJobStore) GetJob(ctx context.Context, jobID string) (*jobs.ComputeReportJob, error) {
	return m.GetJobFunc(ctx, jobID)
}

func (m *mockJobStore) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ComputeReportJob, error) {
	return m.ListJobsFunc(ctx, filter)
}

func (m *mockJobStore) UpdateJobStatus(context.Context, string, jobs.JobStatus, string) error {
	return nil
}

func TestGetKPIs(t *testing.T) {
	provider := &mockProvider{
		LatestFunc: func() (*report.Report, error) {
			return &report.Report{RunID: "run-1"}, nil
		},
	}
	h := NewReportsHandler(provider, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetKPIs(rec, httptest.NewRequest(http.MethodGet, "/api/reports/kpis", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["run_id"] != "run-1" {
		t.Errorf("run_id = %v", body["run_id"])
	}
}

func TestGetCustomers_NoReportYet(t *testing.T) {
	provider := &mockProvider{
		LatestFunc: func() (*report.Report, error) {
			return nil, errors.New("no report computed yet")
		},
	}
	h := NewReportsHandler(provider, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetCustomers(rec, httptest.NewRequest(http.MethodGet, "/api/reports/customers", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestComputeReport_Enqueues(t *testing.T) {
	var published *jobs.ComputeReportJob
	pub := &mockPublisher{
		PublishFunc: func(_ context.Context, job *jobs.ComputeReportJob) error {
			job.JobID = "j1"
			job.Status = jobs.JobStatusPending
			published = job
			return nil
		},
	}
	h := NewReportsHandler(nil, pub, zerolog.Nop())

	body := strings.NewReader(`{"as_of":"2024-02-01","rolling_window_days":30}`)
	rec := httptest.NewRecorder()
	h.ComputeReport(rec, httptest.NewRequest(http.MethodPost, "/api/reports/compute", body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if published == nil || published.Options.AsOf != "2024-02-01" || published.Options.RollingWindowDays != 30 {
		t.Errorf("published job = %+v", published)
	}
}

func TestComputeReport_BadBody(t *testing.T) {
	h := NewReportsHandler(nil, &mockPublisher{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ComputeReport(rec, httptest.NewRequest(http.MethodPost, "/api/reports/compute", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestComputeReport_NegativeWindow(t *testing.T) {
	h := NewReportsHandler(nil, &mockPublisher{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ComputeReport(rec, httptest.NewRequest(http.MethodPost, "/api/reports/compute", strings.NewReader(`{"rolling_window_days":-1}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	store := &mockJobStore{
		GetJobFunc: func(_ context.Context, jobID string) (*jobs.ComputeReportJob, error) {
			if jobID != "j1" {
				return nil, errors.New("job not found")
			}
			return &jobs.ComputeReportJob{JobID: "j1", Status: jobs.JobStatusCompleted}, nil
		},
	}
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil), "j1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil), "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListJobs_ForwardsFilter(t *testing.T) {
	var got jobs.JobFilter
	store := &mockJobStore{
		ListJobsFunc: func(_ context.Context, filter jobs.JobFilter) ([]*jobs.ComputeReportJob, error) {
			got = filter
			return nil, nil
		},
	}
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=pending&limit=5&offset=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.Status != jobs.JobStatusPending || got.Limit != 5 || got.Offset != 10 {
		t.Errorf("filter = %+v", got)
	}
}
