package model

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction is one row of the immutable fact table. Amounts are exact
// decimals; Date and Time are split the way the source dataset stores them.
type Transaction struct {
	ID         string          `json:"transaction_id"`
	CustomerID string          `json:"customer_id"`
	MerchantID string          `json:"merchant_id"`
	CategoryID string          `json:"category_id"`
	Date       civil.Date      `json:"date"`
	Time       civil.Time      `json:"time"`
	Amount     decimal.Decimal `json:"amount"`
	IsFraud    bool            `json:"is_fraud"`
}

// Customer is a dimension record. Age is precomputed in the source dataset,
// not derived from DOB at query time.
type Customer struct {
	ID        string     `json:"customer_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Gender    string     `json:"gender"`
	Street    string     `json:"street"`
	City      string     `json:"city"`
	State     string     `json:"state"`
	Zip       string     `json:"zip"`
	Job       string     `json:"job"`
	DOB       civil.Date `json:"dob"`
	Age       int        `json:"age"`
}

// FullName returns "First Last" for summary records.
func (c Customer) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Merchant is a dimension record. Merchants carry only lat/long geo
// attributes; there is no merchant state field, so no customer-state
// matching is attempted anywhere in the core.
type Merchant struct {
	ID         string  `json:"merchant_id"`
	Name       string  `json:"merchant_name"`
	CategoryID string  `json:"category_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Category is a small fixed-cardinality dimension (~14 rows in the
// reference dataset).
type Category struct {
	ID   string `json:"category_id"`
	Name string `json:"category_name"`
}

// DateDimension is one row of the precomputed calendar lookup.
type DateDimension struct {
	Date      civil.Date   `json:"date"`
	Year      int          `json:"year"`
	Quarter   int          `json:"quarter"`
	Month     int          `json:"month"`
	Week      int          `json:"week"`
	DayOfWeek time.Weekday `json:"day_of_week"`
	IsWeekend bool         `json:"is_weekend"`
}
