// Package bigquery is the BigQuery-backed dataset source and summary sink.
// The star schema lives in four input tables (transactions fact plus the
// customer/merchant/category dimensions); finished reports are written to the
// reporting tables created by cmd/migrate.
package bigquery

import (
	"math/big"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

var (
	projectID = envOr("BQ_PROJECT", "card-analytics-dev")
	datasetID = envOr("BQ_DATASET", "card_analytics")
)

const (
	transactionsTable = "transactions"
	customersTable    = "dim_customers"
	merchantsTable    = "dim_merchants"
	categoriesTable   = "dim_categories"

	customerSummaryTable = "customer_summary"
	merchantSummaryTable = "merchant_summary"
	categorySummaryTable = "category_summary"
	fraudSlicesTable     = "fraud_slices"
	fraudRollingTable    = "fraud_rolling"
	businessKPIsTable    = "business_kpis"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TransactionFactRow mirrors one row of the transactions fact table.
type TransactionFactRow struct {
	TransactionID string     `bigquery:"transaction_id"` // REQUIRED
	CustomerID    string     `bigquery:"customer_id"`    // REQUIRED
	MerchantID    string     `bigquery:"merchant_id"`    // REQUIRED
	CategoryID    string     `bigquery:"category_id"`    // REQUIRED
	TxnDate       civil.Date `bigquery:"txn_date"`       // REQUIRED
	TxnTime       civil.Time `bigquery:"txn_time"`       // REQUIRED TIME
	Amount        *big.Rat   `bigquery:"amount"`         // REQUIRED NUMERIC
	IsFraud       bool       `bigquery:"is_fraud"`       // REQUIRED
}

// CustomerDimRow mirrors one row of dim_customers.
type CustomerDimRow struct {
	CustomerID string              `bigquery:"customer_id"` // REQUIRED
	FirstName  bigquery.NullString `bigquery:"first_name"`
	LastName   bigquery.NullString `bigquery:"last_name"`
	Gender     bigquery.NullString `bigquery:"gender"`
	Street     bigquery.NullString `bigquery:"street"`
	City       bigquery.NullString `bigquery:"city"`
	State      bigquery.NullString `bigquery:"state"`
	Zip        bigquery.NullString `bigquery:"zip"`
	Job        bigquery.NullString `bigquery:"job"`
	DOB        bigquery.NullDate   `bigquery:"dob"`
	Age        bigquery.NullInt64  `bigquery:"age"`
}

// MerchantDimRow mirrors one row of dim_merchants.
type MerchantDimRow struct {
	MerchantID   string               `bigquery:"merchant_id"` // REQUIRED
	MerchantName bigquery.NullString  `bigquery:"merchant_name"`
	CategoryID   bigquery.NullString  `bigquery:"category_id"`
	Latitude     bigquery.NullFloat64 `bigquery:"latitude"`
	Longitude    bigquery.NullFloat64 `bigquery:"longitude"`
}

// CategoryDimRow mirrors one row of dim_categories.
type CategoryDimRow struct {
	CategoryID   string              `bigquery:"category_id"` // REQUIRED
	CategoryName bigquery.NullString `bigquery:"category_name"`
}

// CustomerSummaryRow is one customer_summary reporting row, RFM columns
// included. Nil NUMERIC pointers and invalid Null* values surface the
// zero-activity convention as SQL NULLs.
type CustomerSummaryRow struct {
	RunID       string             `bigquery:"run_id"`
	CustomerID  string             `bigquery:"customer_id"`
	FullName    string             `bigquery:"full_name"`
	TxnCount    int64              `bigquery:"txn_count"`
	TotalSpend  *big.Rat           `bigquery:"total_spend"` // NULLABLE NUMERIC
	AvgTxn      *big.Rat           `bigquery:"avg_txn"`     // NULLABLE NUMERIC
	FirstTxn    bigquery.NullDate  `bigquery:"first_txn"`
	LastTxn     bigquery.NullDate  `bigquery:"last_txn"`
	RecencyDays bigquery.NullInt64 `bigquery:"recency_days"`
	Frequency   bigquery.NullInt64 `bigquery:"frequency"`
	Monetary    *big.Rat           `bigquery:"monetary"` // NULLABLE NUMERIC
	RQuintile   bigquery.NullInt64 `bigquery:"r_quintile"`
	FQuintile   bigquery.NullInt64 `bigquery:"f_quintile"`
	MQuintile   bigquery.NullInt64 `bigquery:"m_quintile"`
	GeneratedTS time.Time          `bigquery:"generated_ts"`
}

// MerchantSummaryRow is one merchant_summary reporting row.
type MerchantSummaryRow struct {
	RunID        string    `bigquery:"run_id"`
	MerchantID   string    `bigquery:"merchant_id"`
	MerchantName string    `bigquery:"merchant_name"`
	CategoryID   string    `bigquery:"category_id"`
	CategoryName string    `bigquery:"category_name"`
	TxnCount     int64     `bigquery:"txn_count"`
	TotalSpend   *big.Rat  `bigquery:"total_spend"`
	AvgTxn       *big.Rat  `bigquery:"avg_txn"`
	FraudCount   int64     `bigquery:"fraud_count"`
	FraudRatePct *big.Rat  `bigquery:"fraud_rate_pct"`
	GeneratedTS  time.Time `bigquery:"generated_ts"`
}

// CategorySummaryRow is one category_summary reporting row.
type CategorySummaryRow struct {
	RunID        string    `bigquery:"run_id"`
	CategoryID   string    `bigquery:"category_id"`
	CategoryName string    `bigquery:"category_name"`
	TxnCount     int64     `bigquery:"txn_count"`
	TotalSpend   *big.Rat  `bigquery:"total_spend"`
	AvgTxn       *big.Rat  `bigquery:"avg_txn"`
	FraudCount   int64     `bigquery:"fraud_count"`
	FraudRatePct *big.Rat  `bigquery:"fraud_rate_pct"`
	GeneratedTS  time.Time `bigquery:"generated_ts"`
}

// FraudSliceRow is one fraud_slices reporting row; Slicing names the grouping
// (category, merchant, hour, amount_bucket).
type FraudSliceRow struct {
	RunID        string    `bigquery:"run_id"`
	Slicing      string    `bigquery:"slicing"`
	SliceKey     string    `bigquery:"slice_key"`
	FraudCount   int64     `bigquery:"fraud_count"`
	TotalCount   int64     `bigquery:"total_count"`
	FraudRatePct *big.Rat  `bigquery:"fraud_rate_pct"`
	GeneratedTS  time.Time `bigquery:"generated_ts"`
}

// FraudRollingRow is one fraud_rolling reporting row.
type FraudRollingRow struct {
	RunID        string     `bigquery:"run_id"`
	Day          civil.Date `bigquery:"day"`
	WindowDays   int64      `bigquery:"window_days"`
	FraudCount   int64      `bigquery:"fraud_count"`
	TotalCount   int64      `bigquery:"total_count"`
	FraudRatePct *big.Rat   `bigquery:"fraud_rate_pct"`
	GeneratedTS  time.Time  `bigquery:"generated_ts"`
}

// BusinessKPIRow is the single business_kpis reporting row per run.
type BusinessKPIRow struct {
	RunID             string            `bigquery:"run_id"`
	AsOf              civil.Date        `bigquery:"as_of"`
	TotalTransactions int64             `bigquery:"total_transactions"`
	TotalSpend        *big.Rat          `bigquery:"total_spend"`
	AvgTransaction    *big.Rat          `bigquery:"avg_transaction"`
	ActiveCustomers   int64             `bigquery:"active_customers"`
	InactiveCustomers int64             `bigquery:"inactive_customers"`
	FraudCount        int64             `bigquery:"fraud_count"`
	FraudRatePct      *big.Rat          `bigquery:"fraud_rate_pct"`
	FirstDate         bigquery.NullDate `bigquery:"first_date"`
	LastDate          bigquery.NullDate `bigquery:"last_date"`
	GeneratedTS       time.Time         `bigquery:"generated_ts"`
}
