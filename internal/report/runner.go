package report

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/card-analytics/internal/analytics"
	"github.com/dvloznov/card-analytics/internal/model"
)

// DatasetSource loads the four input relations. Implementations exist for
// BigQuery and CSV files (local or GCS).
type DatasetSource interface {
	LoadDataset(ctx context.Context) (*model.Dataset, error)
}

// SummarySink persists a finished report. Implementations exist for
// BigQuery reporting tables; tests use an in-memory sink.
type SummarySink interface {
	StoreReport(ctx context.Context, r *Report) error
}

// Narrator produces a prose narrative from a finished report.
type Narrator interface {
	Narrate(ctx context.Context, r *Report) (string, error)
}

// Exporter pushes a finished report to an external dashboard.
type Exporter interface {
	Export(ctx context.Context, r *Report) error
}

// Options tune one analysis run.
type Options struct {
	// AsOf is the reference date for recency; zero means day after the
	// latest transaction.
	AsOf civil.Date
	// RollingWindowDays is the trailing fraud-rate window. Defaults to 7.
	RollingWindowDays int
	// AmountBuckets is the number of equal-width amount buckets for fraud
	// slicing. Defaults to analytics.DefaultAmountBuckets.
	AmountBuckets int
	// Strict makes referential mismatches fatal instead of skip-and-warn.
	Strict bool
}

// ParseOptions builds Options from wire-level values; asOf is an ISO date
// string, empty for the default.
func ParseOptions(asOf string, rollingWindowDays, amountBuckets int, strict bool) (Options, error) {
	opts := Options{
		RollingWindowDays: rollingWindowDays,
		AmountBuckets:     amountBuckets,
		Strict:            strict,
	}
	if asOf != "" {
		d, err := civil.ParseDate(asOf)
		if err != nil {
			return Options{}, fmt.Errorf("ParseOptions: invalid as-of date %q: %w", asOf, err)
		}
		opts.AsOf = d
	}
	return opts, nil
}

func (o Options) withDefaults() Options {
	if o.RollingWindowDays == 0 {
		o.RollingWindowDays = 7
	}
	if o.AmountBuckets == 0 {
		o.AmountBuckets = analytics.DefaultAmountBuckets
	}
	return o
}

// Runner executes the full analysis: load, validate, analyze, assemble,
// store. Any analyzer failure aborts the run; a failed run produces no
// report at all, so clients never see a half-filled dashboard.
type Runner struct {
	Source DatasetSource
	Sink   SummarySink
	Log    zerolog.Logger
	Opts   Options
}

// Run loads the dataset and computes the report, storing it in the sink
// when one is configured.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ds, err := r.Source.LoadDataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("Run: loading dataset: %w", err)
	}

	vr, err := ds.Validate(r.Opts.Strict)
	if err != nil {
		return nil, fmt.Errorf("Run: validating dataset: %w", err)
	}
	for _, m := range vr.Mismatches {
		r.Log.Warn().
			Str("transaction_id", m.TransactionID).
			Str("dimension", m.Dimension).
			Str("key", m.Key).
			Msg("Skipping transaction with referential mismatch")
	}

	rep, err := Compute(ctx, ds, r.Opts)
	if err != nil {
		return nil, err
	}

	r.Log.Info().
		Str("run_id", rep.RunID).
		Int64("transactions", rep.KPIs.TotalTransactions).
		Int64("active_customers", rep.KPIs.ActiveCustomers).
		Msg("Report computed")

	if r.Sink != nil {
		if err := r.Sink.StoreReport(ctx, rep); err != nil {
			return nil, fmt.Errorf("Run: storing report: %w", err)
		}
	}
	return rep, nil
}

// Compute runs every analyzer over the validated dataset and assembles the
// five summary shapes. The analyzers are independent readers of the same
// immutable transaction set, so they run in parallel; the first failure
// cancels the rest. Cancellation is checked between analyzer invocations,
// not mid-aggregation.
func Compute(ctx context.Context, ds *model.Dataset, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	ds.SortTransactions()
	txns := ds.Transactions

	var (
		customerRows []analytics.GroupRow
		merchantRows []analytics.GroupRow
		categoryRows []analytics.GroupRow
		rfm          []analytics.CustomerRFM
		fraud        FraudSummary
		monthlySpend []analytics.TimeSeriesPoint
		monthlyMA3   []analytics.TimeSeriesPoint
		weeklyCount  []analytics.TimeSeriesPoint
		cohorts      []analytics.CohortCell
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		customerRows, err = analytics.Aggregate(txns, []analytics.Dimension{analytics.DimCustomer}, nil)
		return err
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		merchantRows, err = analytics.Aggregate(txns, []analytics.Dimension{analytics.DimMerchant}, nil)
		return err
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		categoryRows, err = analytics.Aggregate(txns, []analytics.Dimension{analytics.DimCategory}, nil)
		return err
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		rfm, err = analytics.ComputeRFM(txns, opts.AsOf)
		return err
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		if fraud.ByCategory, err = analytics.FraudRateBy(txns, analytics.DimCategory); err != nil {
			return err
		}
		if fraud.ByMerchant, err = analytics.FraudRateBy(txns, analytics.DimMerchant); err != nil {
			return err
		}
		if fraud.ByHour, err = analytics.FraudRateBy(txns, analytics.DimHour); err != nil {
			return err
		}
		if fraud.ByAmountBucket, err = analytics.FraudRateByAmountBucket(txns, opts.AmountBuckets); err != nil {
			return err
		}
		fraud.WindowDays = opts.RollingWindowDays
		fraud.Rolling, err = analytics.RollingFraudRate(txns, opts.RollingWindowDays)
		return err
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		if monthlySpend, err = analytics.PeriodSeries(txns, analytics.GranularityMonth, analytics.MeasureTotalAmount); err != nil {
			return err
		}
		if monthlyMA3, err = analytics.MovingAverage(monthlySpend, 3); err != nil {
			return err
		}
		if weeklyCount, err = analytics.PeriodSeries(txns, analytics.GranularityWeek, analytics.MeasureTxnCount); err != nil {
			return err
		}
		cohorts = analytics.CohortRetention(txns)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		AsOf:        opts.AsOf,
		Customers:   assembleCustomers(ds.Customers, customerRows, rfm),
		Merchants:   assembleMerchants(ds.Merchants, ds.Categories, merchantRows, fraud.ByMerchant),
		Categories:  assembleCategories(ds.Categories, categoryRows, fraud.ByCategory),
		Fraud:       fraud,
		RFM:         rfm,
	}
	if (rep.AsOf == civil.Date{}) && len(txns) > 0 {
		rep.AsOf = txns[len(txns)-1].Date.AddDays(1)
	}

	rep.KPIs = assembleKPIs(ds, txns, monthlySpend, monthlyMA3, weeklyCount, cohorts)
	return rep, nil
}

// assembleKPIs derives the headline business_kpis record from the whole
// transaction set and the precomputed series.
func assembleKPIs(ds *model.Dataset, txns []model.Transaction, monthlySpend, monthlyMA3, weeklyCount []analytics.TimeSeriesPoint, cohorts []analytics.CohortCell) BusinessKPIs {
	kpis := BusinessKPIs{
		MonthlySpend:    monthlySpend,
		MonthlySpendMA3: monthlyMA3,
		WeeklyTxnCount:  weeklyCount,
		Cohorts:         cohorts,
	}

	active := make(map[string]bool)
	for _, t := range txns {
		kpis.TotalTransactions++
		kpis.TotalSpend = kpis.TotalSpend.Add(t.Amount)
		if t.IsFraud {
			kpis.FraudCount++
		}
		active[t.CustomerID] = true
	}
	kpis.ActiveCustomers = int64(len(active))
	kpis.InactiveCustomers = int64(len(ds.Customers)) - kpis.ActiveCustomers

	if kpis.TotalTransactions > 0 {
		avg := kpis.TotalSpend.Div(decimal.NewFromInt(kpis.TotalTransactions))
		kpis.AvgTransaction = decimal.NullDecimal{Decimal: avg, Valid: true}
		kpis.FirstDate = txns[0].Date
		kpis.LastDate = txns[len(txns)-1].Date
	}
	kpis.FraudRatePct = analytics.PercentOfCounts(kpis.FraudCount, kpis.TotalTransactions)
	return kpis
}
