package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/card-analytics/internal/api/handlers"
	"github.com/dvloznov/card-analytics/internal/api/middleware"
	"github.com/dvloznov/card-analytics/internal/csvload"
	"github.com/dvloznov/card-analytics/internal/gcs"
	infraBQ "github.com/dvloznov/card-analytics/internal/infra/bigquery"
	"github.com/dvloznov/card-analytics/internal/jobs"
	"github.com/dvloznov/card-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/card-analytics/internal/logger"
	"github.com/dvloznov/card-analytics/internal/report"
)

func main() {
	var (
		port     = flag.String("port", "8080", "HTTP server port")
		source   = flag.String("source", "bigquery", "Dataset source: bigquery or csv")
		txFile   = flag.String("transactions", os.Getenv("CSV_TRANSACTIONS"), "Transactions CSV path or gs:// URI (csv source)")
		custFile = flag.String("customers", os.Getenv("CSV_CUSTOMERS"), "Customers CSV path or gs:// URI (csv source)")
		merFile  = flag.String("merchants", os.Getenv("CSV_MERCHANTS"), "Merchants CSV path or gs:// URI (csv source)")
		catFile  = flag.String("categories", os.Getenv("CSV_CATEGORIES"), "Categories CSV path or gs:// URI (csv source)")
		store    = flag.Bool("store", false, "Also write finished reports to the BigQuery reporting tables")
		logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	log := logger.New(*logLevel)
	ctx := logger.WithContext(context.Background(), log)

	// Dataset source
	var datasetSource report.DatasetSource
	switch *source {
	case "csv":
		datasetSource = csvload.NewSource(csvload.Files{
			Transactions: *txFile,
			Customers:    *custFile,
			Merchants:    *merFile,
			Categories:   *catFile,
		}, gcs.NewFetcher(nil), log)
	case "bigquery":
		bqSource, err := infraBQ.NewSource(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery source")
		}
		defer bqSource.Close()
		datasetSource = bqSource
	default:
		log.Fatal().Str("source", *source).Msg("Unknown dataset source")
	}

	// Report sink: the in-memory cache serves API reads; BigQuery persistence
	// is opt-in.
	var durable report.SummarySink
	if *store {
		bqSink, err := infraBQ.NewSink(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery sink")
		}
		defer bqSink.Close()
		durable = bqSink
	}
	cache := report.NewCache(durable)

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 0, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		reportJob, ok := job.(*jobs.ComputeReportJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", reportJob.JobID).
			Msg("Processing report job")

		opts, err := report.ParseOptions(
			reportJob.Options.AsOf,
			reportJob.Options.RollingWindowDays,
			reportJob.Options.AmountBuckets,
			reportJob.Options.Strict,
		)
		if err != nil {
			return err
		}

		runner := &report.Runner{
			Source: datasetSource,
			Sink:   cache,
			Log:    logger.WithRun(log, reportJob.JobID),
			Opts:   opts,
		}

		rep, err := runner.Run(ctx)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", reportJob.JobID).
				Msg("Report computation failed")
			return err
		}

		reportJob.RunID = rep.RunID
		log.Info().
			Str("job_id", reportJob.JobID).
			Str("run_id", rep.RunID).
			Msg("Report computation completed")

		return nil
	}

	go func() {
		log.Info().Msg("Starting report worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Report worker stopped with error")
		}
	}()

	reportsHandler := handlers.NewReportsHandler(cache, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	for path, get := range map[string]http.HandlerFunc{
		"/api/reports/customers":  reportsHandler.GetCustomers,
		"/api/reports/merchants":  reportsHandler.GetMerchants,
		"/api/reports/categories": reportsHandler.GetCategories,
		"/api/reports/fraud":      reportsHandler.GetFraud,
		"/api/reports/kpis":       reportsHandler.GetKPIs,
		"/api/reports/rfm":        reportsHandler.GetRFM,
	} {
		get := get
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				get(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})
	}

	mux.HandleFunc("/api/reports/compute", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			reportsHandler.ComputeReport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
