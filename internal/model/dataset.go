package model

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
)

// Dataset bundles the four input relations plus the optional calendar
// lookup. Once loaded it is treated as immutable: analyzers read it,
// nothing mutates it.
type Dataset struct {
	Customers    []Customer
	Merchants    []Merchant
	Categories   []Category
	Transactions []Transaction
	Calendar     []DateDimension
}

// ReferentialMismatchError reports a transaction referencing a dimension
// record that does not exist.
type ReferentialMismatchError struct {
	TransactionID string
	Dimension     string
	Key           string
}

func (e *ReferentialMismatchError) Error() string {
	return fmt.Sprintf("transaction %s references unknown %s %q", e.TransactionID, e.Dimension, e.Key)
}

// ValidationReport captures what Validate found. Skipped holds transactions
// that referenced missing dimension records; they are excluded from
// Dataset.Transactions so no aggregate silently joins null dimension
// attributes.
type ValidationReport struct {
	Mismatches []*ReferentialMismatchError
	Skipped    []Transaction
}

// Validate checks ID uniqueness and referential integrity of the loaded
// relations. Transactions referencing missing customers, merchants or
// categories are removed from the dataset and reported; in strict mode the
// first mismatch is returned as an error instead. Duplicate IDs are always
// an error: the fact table's primary key is not negotiable.
func (d *Dataset) Validate(strict bool) (*ValidationReport, error) {
	customers := make(map[string]bool, len(d.Customers))
	for _, c := range d.Customers {
		if customers[c.ID] {
			return nil, fmt.Errorf("Validate: duplicate customer id %q", c.ID)
		}
		customers[c.ID] = true
	}

	merchants := make(map[string]bool, len(d.Merchants))
	for _, m := range d.Merchants {
		if merchants[m.ID] {
			return nil, fmt.Errorf("Validate: duplicate merchant id %q", m.ID)
		}
		merchants[m.ID] = true
	}

	categories := make(map[string]bool, len(d.Categories))
	for _, c := range d.Categories {
		if categories[c.ID] {
			return nil, fmt.Errorf("Validate: duplicate category id %q", c.ID)
		}
		categories[c.ID] = true
	}

	report := &ValidationReport{}
	seen := make(map[string]bool, len(d.Transactions))
	kept := make([]Transaction, 0, len(d.Transactions))

	for _, t := range d.Transactions {
		if seen[t.ID] {
			return nil, fmt.Errorf("Validate: duplicate transaction id %q", t.ID)
		}
		seen[t.ID] = true

		if t.Amount.IsNegative() {
			return nil, fmt.Errorf("Validate: transaction %s has negative amount %s", t.ID, t.Amount)
		}

		var mismatch *ReferentialMismatchError
		switch {
		case !customers[t.CustomerID]:
			mismatch = &ReferentialMismatchError{TransactionID: t.ID, Dimension: "customer", Key: t.CustomerID}
		case !merchants[t.MerchantID]:
			mismatch = &ReferentialMismatchError{TransactionID: t.ID, Dimension: "merchant", Key: t.MerchantID}
		case !categories[t.CategoryID]:
			mismatch = &ReferentialMismatchError{TransactionID: t.ID, Dimension: "category", Key: t.CategoryID}
		}

		if mismatch != nil {
			if strict {
				return nil, mismatch
			}
			report.Mismatches = append(report.Mismatches, mismatch)
			report.Skipped = append(report.Skipped, t)
			continue
		}
		kept = append(kept, t)
	}

	d.Transactions = kept
	return report, nil
}

// SortTransactions orders the fact table by date, then time, then ID.
// Analyzers assume chronological input; sorting once here keeps every
// downstream computation deterministic.
func (d *Dataset) SortTransactions() {
	sort.SliceStable(d.Transactions, func(i, j int) bool {
		a, b := d.Transactions[i], d.Transactions[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return timeLess(a.Time, b.Time)
		}
		return a.ID < b.ID
	})
}

// timeLess compares civil times field by field; civil.Time has no Before.
func timeLess(a, b civil.Time) bool {
	if a.Hour != b.Hour {
		return a.Hour < b.Hour
	}
	if a.Minute != b.Minute {
		return a.Minute < b.Minute
	}
	if a.Second != b.Second {
		return a.Second < b.Second
	}
	return a.Nanosecond < b.Nanosecond
}
