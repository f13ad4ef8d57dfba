package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/card-analytics/internal/csvload"
	"github.com/dvloznov/card-analytics/internal/gcs"
	infraBQ "github.com/dvloznov/card-analytics/internal/infra/bigquery"
	"github.com/dvloznov/card-analytics/internal/logger"
	"github.com/dvloznov/card-analytics/internal/narrative"
	"github.com/dvloznov/card-analytics/internal/notion"
	"github.com/dvloznov/card-analytics/internal/report"
)

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "load":
		runLoad(log)
	case "report":
		runReport(log)
	case "rfm":
		runRFM(log)
	case "fraud":
		runFraud(log)
	case "export":
		runExport(log)
	case "narrative":
		runNarrative(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Card Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  load       Load the four CSV relations into the BigQuery star schema")
	fmt.Println("  report     Compute the full report and print headline KPIs")
	fmt.Println("  rfm        Compute and print per-customer RFM scores")
	fmt.Println("  fraud      Compute and print fraud-rate slices")
	fmt.Println("  export     Compute a report and export summaries to Notion")
	fmt.Println("  narrative  Compute a report and print a model-written narrative")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// csvFlags registers the four relation path flags on a subcommand flag set.
// Paths may be local files or gs:// URIs.
func csvFlags(fs *flag.FlagSet) *csvload.Files {
	files := &csvload.Files{}
	fs.StringVar(&files.Transactions, "transactions", os.Getenv("CSV_TRANSACTIONS"), "Transactions CSV path or gs:// URI")
	fs.StringVar(&files.Customers, "customers", os.Getenv("CSV_CUSTOMERS"), "Customers CSV path or gs:// URI")
	fs.StringVar(&files.Merchants, "merchants", os.Getenv("CSV_MERCHANTS"), "Merchants CSV path or gs:// URI")
	fs.StringVar(&files.Categories, "categories", os.Getenv("CSV_CATEGORIES"), "Categories CSV path or gs:// URI")
	return files
}

// buildSource picks the dataset source for commands that accept both.
func buildSource(ctx context.Context, log zerolog.Logger, source string, files csvload.Files) (report.DatasetSource, func(), error) {
	switch source {
	case "csv":
		return csvload.NewSource(files, gcs.NewFetcher(nil), log), func() {}, nil
	case "bigquery":
		bq, err := infraBQ.NewSource(ctx)
		if err != nil {
			return nil, nil, err
		}
		return bq, func() { bq.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (want csv or bigquery)", source)
	}
}

func computeReport(ctx context.Context, log zerolog.Logger, src report.DatasetSource, asOf string, strict bool) *report.Report {
	opts, err := report.ParseOptions(asOf, 0, 0, strict)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid options")
	}

	runner := &report.Runner{Source: src, Log: log, Opts: opts}
	rep, err := runner.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Report computation failed")
	}
	return rep
}

func runLoad(log zerolog.Logger) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	files := csvFlags(fs)
	strict := fs.Bool("strict", false, "Fail on referential mismatches instead of skipping")
	fs.Parse(os.Args[2:])

	if files.Transactions == "" || files.Customers == "" || files.Merchants == "" || files.Categories == "" {
		log.Fatal().Msg("Error: all four of -transactions, -customers, -merchants, -categories are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src := csvload.NewSource(*files, gcs.NewFetcher(nil), log)
	ds, err := src.LoadDataset(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load CSV dataset")
	}

	vr, err := ds.Validate(*strict)
	if err != nil {
		log.Fatal().Err(err).Msg("Dataset validation failed")
	}
	for _, m := range vr.Mismatches {
		log.Warn().
			Str("transaction_id", m.TransactionID).
			Str("dimension", m.Dimension).
			Str("key", m.Key).
			Msg("Skipping transaction with referential mismatch")
	}

	if err := infraBQ.StoreDataset(ctx, ds); err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset into BigQuery")
	}

	fmt.Printf("Loaded %d transactions, %d customers, %d merchants, %d categories.\n",
		len(ds.Transactions), len(ds.Customers), len(ds.Merchants), len(ds.Categories))
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	source := fs.String("source", "csv", "Dataset source: csv or bigquery")
	files := csvFlags(fs)
	asOf := fs.String("as-of", "", "Reference date for recency (YYYY-MM-DD)")
	strict := fs.Bool("strict", false, "Fail on referential mismatches instead of skipping")
	store := fs.Bool("store", false, "Write the finished report to the BigQuery reporting tables")
	bucket := fs.String("upload-bucket", os.Getenv("GCS_BUCKET"), "GCS bucket to upload the report JSON to")
	object := fs.String("upload-object", "", "GCS object name for the report JSON (defaults to report-<run_id>.json)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, closeSrc, err := buildSource(ctx, log, *source, *files)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dataset source")
	}
	defer closeSrc()

	rep := computeReport(ctx, log, src, *asOf, *strict)

	if *store {
		sink, err := infraBQ.NewSink(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery sink")
		}
		defer sink.Close()
		if err := sink.StoreReport(ctx, rep); err != nil {
			log.Fatal().Err(err).Msg("Failed to store report")
		}
	}

	if *bucket != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to marshal report")
		}
		name := *object
		if name == "" {
			name = "report-" + rep.RunID + ".json"
		}
		if err := gcs.NewClient().Upload(ctx, *bucket, name, data); err != nil {
			log.Fatal().Err(err).Msg("Failed to upload report")
		}
		fmt.Printf("Uploaded report to gs://%s/%s\n", *bucket, name)
	}

	k := rep.KPIs
	fmt.Println("\n=== Business KPIs ===")
	fmt.Printf("Run ID:             %s\n", rep.RunID)
	fmt.Printf("As of:              %s\n", rep.AsOf)
	fmt.Printf("Transactions:       %d (%s .. %s)\n", k.TotalTransactions, k.FirstDate, k.LastDate)
	fmt.Printf("Total spend:        %s\n", k.TotalSpend.StringFixed(2))
	if k.AvgTransaction.Valid {
		fmt.Printf("Avg transaction:    %s\n", k.AvgTransaction.Decimal.StringFixed(2))
	}
	fmt.Printf("Active customers:   %d\n", k.ActiveCustomers)
	fmt.Printf("Inactive customers: %d\n", k.InactiveCustomers)
	if k.FraudRatePct.Valid {
		fmt.Printf("Fraud rate:         %s%% (%d of %d)\n", k.FraudRatePct.Decimal.String(), k.FraudCount, k.TotalTransactions)
	}
	fmt.Printf("\nMonthly spend points: %d, weekly count points: %d, cohort cells: %d\n",
		len(k.MonthlySpend), len(k.WeeklyTxnCount), len(k.Cohorts))
}

func runRFM(log zerolog.Logger) {
	fs := flag.NewFlagSet("rfm", flag.ExitOnError)
	source := fs.String("source", "csv", "Dataset source: csv or bigquery")
	files := csvFlags(fs)
	asOf := fs.String("as-of", "", "Reference date for recency (YYYY-MM-DD)")
	limit := fs.Int("limit", 20, "Number of customers to print (0 for all)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, closeSrc, err := buildSource(ctx, log, *source, *files)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dataset source")
	}
	defer closeSrc()

	rep := computeReport(ctx, log, src, *asOf, false)

	rows := rep.RFM
	if *limit > 0 && len(rows) > *limit {
		rows = rows[:*limit]
	}

	fmt.Printf("\n=== Customer RFM (as of %s, %d of %d) ===\n", rep.AsOf, len(rows), len(rep.RFM))
	fmt.Printf("%-16s %8s %8s %12s  R F M\n", "CUSTOMER", "RECENCY", "FREQ", "MONETARY")
	for _, r := range rows {
		fmt.Printf("%-16s %8d %8d %12s  %d %d %d\n",
			r.CustomerID, r.RecencyDays, r.Frequency, r.Monetary.StringFixed(2),
			r.RQuintile, r.FQuintile, r.MQuintile)
	}
}

func runFraud(log zerolog.Logger) {
	fs := flag.NewFlagSet("fraud", flag.ExitOnError)
	source := fs.String("source", "csv", "Dataset source: csv or bigquery")
	files := csvFlags(fs)
	slicing := fs.String("by", "category", "Slicing: category, merchant, hour or amount")
	window := fs.Int("window", 0, "Rolling window in days (also prints the rolling series)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, closeSrc, err := buildSource(ctx, log, *source, *files)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dataset source")
	}
	defer closeSrc()

	opts, err := report.ParseOptions("", *window, 0, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid options")
	}
	runner := &report.Runner{Source: src, Log: log, Opts: opts}
	rep, err := runner.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Report computation failed")
	}

	var slices = rep.Fraud.ByCategory
	switch *slicing {
	case "category":
	case "merchant":
		slices = rep.Fraud.ByMerchant
	case "hour":
		slices = rep.Fraud.ByHour
	case "amount":
		slices = rep.Fraud.ByAmountBucket
	default:
		log.Fatal().Str("by", *slicing).Msg("Unknown slicing")
	}

	fmt.Printf("\n=== Fraud rate by %s ===\n", *slicing)
	fmt.Printf("%-24s %8s %8s %8s\n", "KEY", "FRAUD", "TOTAL", "RATE %")
	for _, s := range slices {
		rate := "null"
		if s.FraudRatePct.Valid {
			rate = s.FraudRatePct.Decimal.String()
		}
		fmt.Printf("%-24s %8d %8d %8s\n", s.Key, s.FraudCount, s.TotalCount, rate)
	}

	if *window > 0 {
		fmt.Printf("\n=== Rolling %d-day fraud rate ===\n", rep.Fraud.WindowDays)
		for _, p := range rep.Fraud.Rolling {
			rate := "null"
			if p.FraudRatePct.Valid {
				rate = p.FraudRatePct.Decimal.String()
			}
			fmt.Printf("%s  %8d %8d %8s\n", p.Day, p.FraudCount, p.TotalCount, rate)
		}
	}
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	source := fs.String("source", "csv", "Dataset source: csv or bigquery")
	files := csvFlags(fs)
	categoriesDB := fs.String("categories-db", os.Getenv("NOTION_CATEGORIES_DB"), "Notion database ID for category summaries")
	fraudDB := fs.String("fraud-db", os.Getenv("NOTION_FRAUD_DB"), "Notion database ID for fraud slices")
	kpisDB := fs.String("kpis-db", os.Getenv("NOTION_KPIS_DB"), "Notion database ID for KPI pages")
	dryRun := fs.Bool("dry-run", false, "Log what would be exported without touching Notion")
	fs.Parse(os.Args[2:])

	token := os.Getenv("NOTION_TOKEN")
	if token == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN environment variable is required")
	}
	if *categoriesDB == "" && *fraudDB == "" && *kpisDB == "" {
		log.Fatal().Msg("Error: at least one of -categories-db, -fraud-db, -kpis-db is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, closeSrc, err := buildSource(ctx, log, *source, *files)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dataset source")
	}
	defer closeSrc()

	rep := computeReport(ctx, log, src, "", false)

	exporter := &notion.Exporter{
		Service: notion.NewClient(token),
		DBs: notion.Databases{
			Categories: *categoriesDB,
			Fraud:      *fraudDB,
			KPIs:       *kpisDB,
		},
		Log:    log,
		DryRun: *dryRun,
	}

	if err := exporter.Export(ctx, rep); err != nil {
		log.Fatal().Err(err).Msg("Notion export failed")
	}

	fmt.Println("Export completed successfully.")
}

func runNarrative(log zerolog.Logger) {
	fs := flag.NewFlagSet("narrative", flag.ExitOnError)
	source := fs.String("source", "csv", "Dataset source: csv or bigquery")
	files := csvFlags(fs)
	model := fs.String("model", "", "Gemini model name (default "+narrative.DefaultModelName+")")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, closeSrc, err := buildSource(ctx, log, *source, *files)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dataset source")
	}
	defer closeSrc()

	rep := computeReport(ctx, log, src, "", false)

	gen := narrative.NewGenerator(*model)
	text, err := gen.Narrate(ctx, rep)
	if err != nil {
		log.Fatal().Err(err).Msg("Narrative generation failed")
	}

	fmt.Println()
	fmt.Println(text)
}
