package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/card-analytics/internal/analytics"
	"github.com/dvloznov/card-analytics/internal/report"
)

// Sink implements report.SummarySink: it writes the five summary shapes to
// the reporting tables. Rows are keyed by run_id, so repeated runs append
// rather than overwrite; dashboards read the latest run.
type Sink struct {
	client *bigquery.Client
}

// NewSink creates a Sink with a shared BigQuery client.
func NewSink(ctx context.Context) (*Sink, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewSink: creating client: %w", err)
	}
	return &Sink{client: client}, nil
}

// Close closes the BigQuery client connection.
func (s *Sink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// StoreReport writes every summary table for the run.
func (s *Sink) StoreReport(ctx context.Context, r *report.Report) error {
	return StoreReportWithClient(ctx, s.client, r)
}

// StoreReportWithClient writes the report using the provided client.
func StoreReportWithClient(ctx context.Context, client *bigquery.Client, r *report.Report) error {
	if err := insert(ctx, client, customerSummaryTable, customerRows(r)); err != nil {
		return fmt.Errorf("StoreReportWithClient: customer summary: %w", err)
	}
	if err := insert(ctx, client, merchantSummaryTable, merchantRows(r)); err != nil {
		return fmt.Errorf("StoreReportWithClient: merchant summary: %w", err)
	}
	if err := insert(ctx, client, categorySummaryTable, categoryRows(r)); err != nil {
		return fmt.Errorf("StoreReportWithClient: category summary: %w", err)
	}
	if err := insert(ctx, client, fraudSlicesTable, fraudSliceRows(r)); err != nil {
		return fmt.Errorf("StoreReportWithClient: fraud slices: %w", err)
	}
	if err := insert(ctx, client, fraudRollingTable, fraudRollingRows(r)); err != nil {
		return fmt.Errorf("StoreReportWithClient: fraud rolling: %w", err)
	}
	if err := insert(ctx, client, businessKPIsTable, []*BusinessKPIRow{kpiRow(r)}); err != nil {
		return fmt.Errorf("StoreReportWithClient: business kpis: %w", err)
	}
	return nil
}

func insert[T any](ctx context.Context, client *bigquery.Client, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := client.DatasetInProject(projectID, datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("inserting rows into %s: %w", table, err)
	}
	return nil
}

func customerRows(r *report.Report) []*CustomerSummaryRow {
	out := make([]*CustomerSummaryRow, len(r.Customers))
	for i, c := range r.Customers {
		row := &CustomerSummaryRow{
			RunID:       r.RunID,
			CustomerID:  c.CustomerID,
			FullName:    c.FullName,
			TxnCount:    c.TxnCount,
			TotalSpend:  nullDecimalToRat(c.TotalSpend),
			AvgTxn:      nullDecimalToRat(c.AvgTxn),
			GeneratedTS: r.GeneratedAt,
		}
		if c.FirstTxn != nil {
			row.FirstTxn = bigquery.NullDate{Date: *c.FirstTxn, Valid: true}
		}
		if c.LastTxn != nil {
			row.LastTxn = bigquery.NullDate{Date: *c.LastTxn, Valid: true}
		}
		if c.RFM != nil {
			row.RecencyDays = bigquery.NullInt64{Int64: int64(c.RFM.RecencyDays), Valid: true}
			row.Frequency = bigquery.NullInt64{Int64: c.RFM.Frequency, Valid: true}
			row.Monetary = decimalToRat(c.RFM.Monetary)
			row.RQuintile = bigquery.NullInt64{Int64: int64(c.RFM.RQuintile), Valid: true}
			row.FQuintile = bigquery.NullInt64{Int64: int64(c.RFM.FQuintile), Valid: true}
			row.MQuintile = bigquery.NullInt64{Int64: int64(c.RFM.MQuintile), Valid: true}
		}
		out[i] = row
	}
	return out
}

func merchantRows(r *report.Report) []*MerchantSummaryRow {
	out := make([]*MerchantSummaryRow, len(r.Merchants))
	for i, m := range r.Merchants {
		out[i] = &MerchantSummaryRow{
			RunID:        r.RunID,
			MerchantID:   m.MerchantID,
			MerchantName: m.Name,
			CategoryID:   m.CategoryID,
			CategoryName: m.CategoryName,
			TxnCount:     m.TxnCount,
			TotalSpend:   nullDecimalToRat(m.TotalSpend),
			AvgTxn:       nullDecimalToRat(m.AvgTxn),
			FraudCount:   m.FraudCount,
			FraudRatePct: nullDecimalToRat(m.FraudRatePct),
			GeneratedTS:  r.GeneratedAt,
		}
	}
	return out
}

func categoryRows(r *report.Report) []*CategorySummaryRow {
	out := make([]*CategorySummaryRow, len(r.Categories))
	for i, c := range r.Categories {
		out[i] = &CategorySummaryRow{
			RunID:        r.RunID,
			CategoryID:   c.CategoryID,
			CategoryName: c.Name,
			TxnCount:     c.TxnCount,
			TotalSpend:   nullDecimalToRat(c.TotalSpend),
			AvgTxn:       nullDecimalToRat(c.AvgTxn),
			FraudCount:   c.FraudCount,
			FraudRatePct: nullDecimalToRat(c.FraudRatePct),
			GeneratedTS:  r.GeneratedAt,
		}
	}
	return out
}

func fraudSliceRows(r *report.Report) []*FraudSliceRow {
	var out []*FraudSliceRow
	for _, group := range []struct {
		slicing string
		slices  []analytics.FraudSlice
	}{
		{"category", r.Fraud.ByCategory},
		{"merchant", r.Fraud.ByMerchant},
		{"hour", r.Fraud.ByHour},
		{"amount_bucket", r.Fraud.ByAmountBucket},
	} {
		for _, s := range group.slices {
			out = append(out, &FraudSliceRow{
				RunID:        r.RunID,
				Slicing:      group.slicing,
				SliceKey:     s.Key,
				FraudCount:   s.FraudCount,
				TotalCount:   s.TotalCount,
				FraudRatePct: nullDecimalToRat(s.FraudRatePct),
				GeneratedTS:  r.GeneratedAt,
			})
		}
	}
	return out
}

func fraudRollingRows(r *report.Report) []*FraudRollingRow {
	out := make([]*FraudRollingRow, len(r.Fraud.Rolling))
	for i, p := range r.Fraud.Rolling {
		out[i] = &FraudRollingRow{
			RunID:        r.RunID,
			Day:          p.Day,
			WindowDays:   int64(r.Fraud.WindowDays),
			FraudCount:   p.FraudCount,
			TotalCount:   p.TotalCount,
			FraudRatePct: nullDecimalToRat(p.FraudRatePct),
			GeneratedTS:  r.GeneratedAt,
		}
	}
	return out
}

func kpiRow(r *report.Report) *BusinessKPIRow {
	k := r.KPIs
	row := &BusinessKPIRow{
		RunID:             r.RunID,
		AsOf:              r.AsOf,
		TotalTransactions: k.TotalTransactions,
		TotalSpend:        decimalToRat(k.TotalSpend),
		AvgTransaction:    nullDecimalToRat(k.AvgTransaction),
		ActiveCustomers:   k.ActiveCustomers,
		InactiveCustomers: k.InactiveCustomers,
		FraudCount:        k.FraudCount,
		FraudRatePct:      nullDecimalToRat(k.FraudRatePct),
		GeneratedTS:       r.GeneratedAt,
	}
	if k.TotalTransactions > 0 {
		row.FirstDate = bigquery.NullDate{Date: k.FirstDate, Valid: true}
		row.LastDate = bigquery.NullDate{Date: k.LastDate, Valid: true}
	}
	return row
}
