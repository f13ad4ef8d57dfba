package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	infraBQ "github.com/dvloznov/card-analytics/internal/infra/bigquery"
	"github.com/dvloznov/card-analytics/internal/jobs"
	"github.com/dvloznov/card-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/card-analytics/internal/logger"
	"github.com/dvloznov/card-analytics/internal/report"
)

func main() {
	var (
		workers  = flag.Int("workers", 2, "Number of concurrent report workers")
		logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	log := logger.New(*logLevel)
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	source, err := infraBQ.NewSource(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery source")
	}
	defer source.Close()

	sink, err := infraBQ.NewSink(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery sink")
	}
	defer sink.Close()

	// In production this queue would be replaced with Cloud Tasks or Pub/Sub.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	log.Info().Int("workers", *workers).Msg("Starting worker service")

	handler := func(ctx context.Context, job jobs.Job) error {
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
			Source: source,
			Sink:   sink,
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

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
