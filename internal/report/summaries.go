// Package report composes the analytics core into the five fixed-shape
// summary records and orchestrates a full analysis run. The assemblers here
// are strictly composition: they join analyzer outputs by key and never
// re-derive a metric that an analyzer already computed.
package report

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/card-analytics/internal/analytics"
	"github.com/dvloznov/card-analytics/internal/model"
)

// CustomerSummary is one row of the customer_summary shape. Left-outer
// semantics: every customer in the dimension table appears. The convention
// for zero-activity customers is txn_count 0 with null money fields and nil
// dates; RFM is nil for them as well, which is how the "no activity" group
// is surfaced rather than silently zero-scored.
type CustomerSummary struct {
	CustomerID string               `json:"customer_id"`
	FullName   string               `json:"full_name"`
	TxnCount   int64                `json:"txn_count"`
	TotalSpend decimal.NullDecimal  `json:"total_spend"`
	AvgTxn     decimal.NullDecimal  `json:"avg_txn"`
	FirstTxn   *civil.Date          `json:"first_txn"`
	LastTxn    *civil.Date          `json:"last_txn"`
	RFM        *analytics.CustomerRFM `json:"rfm,omitempty"`
}

// MerchantSummary is one row of the merchant_summary shape, left-outer over
// the merchant dimension.
type MerchantSummary struct {
	MerchantID   string              `json:"merchant_id"`
	Name         string              `json:"merchant_name"`
	CategoryID   string              `json:"category_id"`
	CategoryName string              `json:"category_name"`
	TxnCount     int64               `json:"txn_count"`
	TotalSpend   decimal.NullDecimal `json:"total_spend"`
	AvgTxn       decimal.NullDecimal `json:"avg_txn"`
	FraudCount   int64               `json:"fraud_count"`
	FraudRatePct decimal.NullDecimal `json:"fraud_rate_pct"`
}

// CategorySummary is one row of the category_summary shape, left-outer over
// the category dimension.
type CategorySummary struct {
	CategoryID   string              `json:"category_id"`
	Name         string              `json:"category_name"`
	TxnCount     int64               `json:"txn_count"`
	TotalSpend   decimal.NullDecimal `json:"total_spend"`
	AvgTxn       decimal.NullDecimal `json:"avg_txn"`
	FraudCount   int64               `json:"fraud_count"`
	FraudRatePct decimal.NullDecimal `json:"fraud_rate_pct"`
}

// FraudSummary is the fraud_summary shape: the standard slicings plus the
// rolling daily rate.
type FraudSummary struct {
	ByCategory     []analytics.FraudSlice        `json:"by_category"`
	ByMerchant     []analytics.FraudSlice        `json:"by_merchant"`
	ByHour         []analytics.FraudSlice        `json:"by_hour"`
	ByAmountBucket []analytics.FraudSlice        `json:"by_amount_bucket"`
	Rolling        []analytics.RollingFraudPoint `json:"rolling"`
	WindowDays     int                           `json:"window_days"`
}

/// BusinessKPIs is the business_kpis shape: headline figures plus the
// monthly trend series and cohort retention grid.
type BusinessKPIs struct {
	TotalTransactions int64                       `json:"total_transactions"`
	TotalSpend        decimal.Decimal             `json:"total_spend"`
	AvgTransaction    decimal.NullDecimal         `json:"avg_transaction"`
	ActiveCustomers   int64                       `json:"active_customers"`
	InactiveCustomers int64                       `json:"inactive_customers"`
	FraudCount        int64                       `json:"fraud_count"`
	FraudRatePct      decimal.NullDecimal         `json:"fraud_rate_pct"`
	FirstDate         civil.Date                  `json:"first_date"`
	LastDate          civil.Date                  `json:"last_date"`
	MonthlySpend      []analytics.TimeSeriesPoint `json:"monthly_spend"`
	MonthlySpendMA3   []analytics.TimeSeriesPoint `json:"monthly_spend_ma3"`
	WeeklyTxnCount    []analytics.TimeSeriesPoint `json:"weekly_txn_count"`
	Cohorts           []analytics.CohortCell      `json:"cohorts"`
}

// Report is the full output of one analysis run.
type Report struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	AsOf        civil.Date              `json:"as_of"`
	Customers   []CustomerSummary       `json:"customer_summary"`
	Merchants   []MerchantSummary       `json:"merchant_summary"`
	Categories  []CategorySummary       `json:"category_summary"`
	Fraud       FraudSummary            `json:"fraud_summary"`
	KPIs        BusinessKPIs            `json:"business_kpis"`
	RFM         []analytics.CustomerRFM `json:"customer_rfm"`
}

// assembleCustomers joins the per-customer aggregates and RFM scores onto
// the customer dimension, preserving every customer.
func assembleCustomers(customers []model.Customer, rows []analytics.GroupRow, rfm []analytics.CustomerRFM) []CustomerSummary {
	byID := make(map[string]analytics.GroupRow, len(rows))
	for _, row := range rows {
		byID[row.Key[0]] = row
	}
	rfmByID := make(map[string]*analytics.CustomerRFM, len(rfm))
	for i := range rfm {
		rfmByID[rfm[i].CustomerID] = &rfm[i]
	}

	out := make([]CustomerSummary, len(customers))
	for i, c := range customers {
		summary := CustomerSummary{
			CustomerID: c.ID,
			FullName:   c.FullName(),
		}
		if row, ok := byID[c.ID]; ok {
			first, last := row.FirstDate, row.LastDate
			summary.TxnCount = row.Count
			summary.TotalSpend = decimal.NullDecimal{Decimal: row.Sum, Valid: true}
			summary.AvgTxn = decimal.NullDecimal{Decimal: row.Avg, Valid: true}
			summary.FirstTxn = &first
			summary.LastTxn = &last
			summary.RFM = rfmByID[c.ID]
		}
		out[i] = summary
	}
	return out
}

// assembleMerchants joins per-merchant aggregates and fraud slices onto the
// merchant dimension.
func assembleMerchants(merchants []model.Merchant, categories []model.Category, rows []analytics.GroupRow, fraud []analytics.FraudSlice) []MerchantSummary {
	byID := make(map[string]analytics.GroupRow, len(rows))
	for _, row := range rows {
		byID[row.Key[0]] = row
	}
	fraudByID := make(map[string]analytics.FraudSlice, len(fraud))
	for _, s := range fraud {
		fraudByID[s.Key] = s
	}
	categoryName := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryName[c.ID] = c.Name
	}

	out := make([]MerchantSummary, len(merchants))
	for i, m := range merchants {
		summary := MerchantSummary{
			MerchantID:   m.ID,
			Name:         m.Name,
			CategoryID:   m.CategoryID,
			CategoryName: categoryName[m.CategoryID],
		}
		if row, ok := byID[m.ID]; ok {
			summary.TxnCount = row.Count
			summary.TotalSpend = decimal.NullDecimal{Decimal: row.Sum, Valid: true}
			summary.AvgTxn = decimal.NullDecimal{Decimal: row.Avg, Valid: true}
		}
		if s, ok := fraudByID[m.ID]; ok {
			summary.FraudCount = s.FraudCount
			summary.FraudRatePct = s.FraudRatePct
		}
		out[i] = summary
	}
	return out
}

// assembleCategories joins per-category aggregates and fraud slices onto the
// category dimension.
func assembleCategories(categories []model.Category, rows []analytics.GroupRow, fraud []analytics.FraudSlice) []CategorySummary {
	byID := make(map[string]analytics.GroupRow, len(rows))
	for _, row := range rows {
		byID[row.Key[0]] = row
	}
	fraudByID := make(map[string]analytics.FraudSlice, len(fraud))
	for _, s := range fraud {
		fraudByID[s.Key] = s
	}

	out := make([]CategorySummary, len(categories))
	for i, c := range categories {
		summary := CategorySummary{
			CategoryID: c.ID,
			Name:       c.Name,
		}
		if row, ok := byID[c.ID]; ok {
			summary.TxnCount = row.Count
			summary.TotalSpend = decimal.NullDecimal{Decimal: row.Sum, Valid: true}
			summary.AvgTxn = decimal.NullDecimal{Decimal: row.Avg, Valid: true}
		}
		if s, ok := fraudByID[c.ID]; ok {
			summary.FraudCount = s.FraudCount
			summary.FraudRatePct = s.FraudRatePct
		}
		out[i] = summary
	}
	return out
}
