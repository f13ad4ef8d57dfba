package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/card-analytics/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.ComputeReportJob{JobID: "j1", Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	got, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("status = %s", got.Status)
	}

	// Mutating the returned copy must not change stored state.
	got.Status = jobs.JobStatusFailed
	again, _ := store.GetJob(ctx, "j1")
	if again.Status != jobs.JobStatusPending {
		t.Error("stored job mutated through returned copy")
	}
}

func TestStore_SaveRequiresID(t *testing.T) {
	if err := NewStore().SaveJob(context.Background(), &jobs.ComputeReportJob{}); err == nil {
		t.Fatal("expected error for missing job ID")
	}
}

func TestStore_GetMissing(t *testing.T) {
	if _, err := NewStore().GetJob(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Now()

	for i, status := range []jobs.JobStatus{
		jobs.JobStatusCompleted, jobs.JobStatusPending, jobs.JobStatusPending,
	} {
		job := &jobs.ComputeReportJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	pending, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending jobs, got %d", len(pending))
	}
	// Newest first.
	if pending[0].JobID != "c" || pending[1].JobID != "b" {
		t.Errorf("order = %s, %s", pending[0].JobID, pending[1].JobID)
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(limited) != 1 || limited[0].JobID != "c" {
		t.Errorf("limited = %+v", limited)
	}

	offset, err := store.ListJobs(ctx, jobs.JobFilter{Offset: 5})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(offset) != 0 {
		t.Errorf("expected empty page past end, got %d", len(offset))
	}
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	done := make(chan string, 1)
	handler := func(ctx context.Context, job jobs.Job) error {
		done <- job.GetID()
		return nil
	}
	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ComputeReportJob{}
	if err := queue.PublishComputeReport(context.Background(), job); err != nil {
		t.Fatalf("PublishComputeReport failed: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("publish did not assign a job ID")
	}

	select {
	case id := <-done:
		if id != job.JobID {
			t.Errorf("handled job %s, want %s", id, job.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never handled")
	}

	// The store eventually reflects completion.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := store.GetJob(context.Background(), job.JobID)
		if err == nil && got.Status == jobs.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never marked completed, last state: %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestQueue_RetriesFailedJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient failure")
		}
		return nil
	}
	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ComputeReportJob{MaxRetries: 2}
	if err := queue.PublishComputeReport(context.Background(), job); err != nil {
		t.Fatalf("PublishComputeReport failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := store.GetJob(context.Background(), job.JobID)
		if err == nil && got.Status == jobs.JobStatusCompleted {
			if got.RetryCount != 1 {
				t.Errorf("retry count = %d, want 1", got.RetryCount)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed after retry, last state: %+v", got)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	queue := NewQueue(1, 1, nil)
	if err := queue.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := queue.PublishComputeReport(context.Background(), &jobs.ComputeReportJob{}); err == nil {
		t.Fatal("expected error publishing to closed queue")
	}
}
