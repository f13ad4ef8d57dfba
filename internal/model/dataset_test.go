package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleDataset() *Dataset {
	return &Dataset{
		Customers:  []Customer{{ID: "c1", FirstName: "Ada", LastName: "Lovelace"}},
		Merchants:  []Merchant{{ID: "m1", Name: "Corner Shop", CategoryID: "g1"}},
		Categories: []Category{{ID: "g1", Name: "grocery_pos"}},
		Transactions: []Transaction{
			{ID: "t1", CustomerID: "c1", MerchantID: "m1", CategoryID: "g1", Date: date("2024-01-10"), Amount: decimal.NewFromInt(10)},
		},
	}
}

func TestValidate_CleanDataset(t *testing.T) {
	ds := sampleDataset()
	report, err := ds.Validate(false)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(report.Mismatches) != 0 || len(report.Skipped) != 0 {
		t.Errorf("unexpected mismatches: %+v", report)
	}
	if len(ds.Transactions) != 1 {
		t.Errorf("transactions trimmed to %d, want 1", len(ds.Transactions))
	}
}

func TestValidate_SkipsMismatchedTransactions(t *testing.T) {
	ds := sampleDataset()
	ds.Transactions = append(ds.Transactions, Transaction{
		ID: "t2", CustomerID: "ghost", MerchantID: "m1", CategoryID: "g1",
		Date: date("2024-01-11"), Amount: decimal.NewFromInt(5),
	})

	report, err := ds.Validate(false)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(report.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(report.Mismatches))
	}
	m := report.Mismatches[0]
	if m.TransactionID != "t2" || m.Dimension != "customer" || m.Key != "ghost" {
		t.Errorf("mismatch = %+v", m)
	}
	if len(ds.Transactions) != 1 || ds.Transactions[0].ID != "t1" {
		t.Errorf("kept transactions = %+v, want only t1", ds.Transactions)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].ID != "t2" {
		t.Errorf("skipped = %+v, want t2", report.Skipped)
	}
}

func TestValidate_StrictModeFailsOnMismatch(t *testing.T) {
	ds := sampleDataset()
	ds.Transactions = append(ds.Transactions, Transaction{
		ID: "t2", CustomerID: "c1", MerchantID: "m1", CategoryID: "missing",
		Date: date("2024-01-11"), Amount: decimal.NewFromInt(5),
	})

	_, err := ds.Validate(true)
	var mismatch *ReferentialMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ReferentialMismatchError, got %v", err)
	}
	if mismatch.Dimension != "category" || mismatch.Key != "missing" {
		t.Errorf("mismatch = %+v", mismatch)
	}
}

func TestValidate_DuplicateIDs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Dataset)
	}{
		{"customer", func(ds *Dataset) { ds.Customers = append(ds.Customers, Customer{ID: "c1"}) }},
		{"merchant", func(ds *Dataset) { ds.Merchants = append(ds.Merchants, Merchant{ID: "m1"}) }},
		{"category", func(ds *Dataset) { ds.Categories = append(ds.Categories, Category{ID: "g1"}) }},
		{"transaction", func(ds *Dataset) {
			ds.Transactions = append(ds.Transactions, ds.Transactions[0])
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := sampleDataset()
			tt.mutate(ds)
			if _, err := ds.Validate(false); err == nil {
				t.Fatalf("expected duplicate %s id error", tt.name)
			} else if !strings.Contains(err.Error(), "duplicate") {
				t.Errorf("error = %v, want duplicate id message", err)
			}
		})
	}
}

func TestValidate_NegativeAmount(t *testing.T) {
	ds := sampleDataset()
	ds.Transactions[0].Amount = decimal.NewFromInt(-1)
	if _, err := ds.Validate(false); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestSortTransactions(t *testing.T) {
	ds := sampleDataset()
	ds.Customers = append(ds.Customers, Customer{ID: "c2"})
	ds.Transactions = []Transaction{
		{ID: "t3", CustomerID: "c1", MerchantID: "m1", CategoryID: "g1", Date: date("2024-01-11"), Amount: decimal.NewFromInt(1)},
		{ID: "t2", CustomerID: "c2", MerchantID: "m1", CategoryID: "g1", Date: date("2024-01-10"), Time: civil.Time{Hour: 9}, Amount: decimal.NewFromInt(1)},
		{ID: "t1", CustomerID: "c1", MerchantID: "m1", CategoryID: "g1", Date: date("2024-01-10"), Time: civil.Time{Hour: 8, Minute: 30}, Amount: decimal.NewFromInt(1)},
	}

	ds.SortTransactions()

	got := []string{ds.Transactions[0].ID, ds.Transactions[1].ID, ds.Transactions[2].ID}
	want := []string{"t1", "t2", "t3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestBuildCalendar(t *testing.T) {
	// 2024-01-06 is a Saturday, 2024-01-08 a Monday of ISO week 2.
	cal, err := BuildCalendar(date("2024-01-06"), date("2024-01-08"))
	if err != nil {
		t.Fatalf("BuildCalendar failed: %v", err)
	}
	if len(cal) != 3 {
		t.Fatalf("expected 3 days, got %d", len(cal))
	}

	sat := cal[0]
	if !sat.IsWeekend || sat.DayOfWeek != time.Saturday {
		t.Errorf("saturday row = %+v", sat)
	}
	mon := cal[2]
	if mon.IsWeekend || mon.Week != 2 || mon.Quarter != 1 {
		t.Errorf("monday row = %+v", mon)
	}
}

func TestBuildCalendar_EndBeforeStart(t *testing.T) {
	if _, err := BuildCalendar(date("2024-02-01"), date("2024-01-01")); err == nil {
		t.Fatal("expected error when end precedes start")
	}
}

func TestTruncateToWeek(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-01-10", "2024-01-08"}, // Wednesday
		{"2024-01-08", "2024-01-08"}, // Monday maps to itself
		{"2024-01-14", "2024-01-08"}, // Sunday belongs to the preceding Monday
	}
	for _, tt := range tests {
		if got := TruncateToWeek(date(tt.in)); got != date(tt.want) {
			t.Errorf("TruncateToWeek(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCustomerFullName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Ada", "Lovelace", "Ada Lovelace"},
		{"", "Lovelace", "Lovelace"},
		{"Ada", "", "Ada"},
	}
	for _, tt := range tests {
		c := Customer{FirstName: tt.first, LastName: tt.last}
		if got := c.FullName(); got != tt.want {
			t.Errorf("FullName(%q, %q) = %q, want %q", tt.first, tt.last, got, tt.want)
		}
	}
}
