package csvload

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
)

const (
	transactionsCSV = `transaction_id,customer_id,merchant_id,category_id,txn_date,txn_time,amount,is_fraud
t1,c1,m1,g1,2024-01-10,14:35:02,100.50,0
t2,c1,m2,g2,2024-01-12,9:05:00,50.00,1
`
	customersCSV = `customer_id,first_name,last_name,gender,city,state,zip,job,dob,age
c1,Ada,Lovelace,F,London,LN,00001,Engineer,1990-12-10,33
`
	merchantsCSV = `merchant_id,merchant_name,category_id,latitude,longitude
m1,Corner Shop,g1,51.5072,-0.1276
m2,Gas Station,g2,40.7128,-74.0060
`
	categoriesCSV = `category_id,category_name
g1,grocery_pos
g2,gas_transport
`
)

type mockFetcher struct {
	FetchFunc func(ctx context.Context, ref string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return m.FetchFunc(ctx, ref)
}

func TestReadTransactions(t *testing.T) {
	txns, err := ReadTransactions([]byte(transactionsCSV))
	if err != nil {
		t.Fatalf("ReadTransactions failed: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}

	t1 := txns[0]
	if t1.ID != "t1" || t1.CustomerID != "c1" || t1.MerchantID != "m1" || t1.CategoryID != "g1" {
		t.Errorf("t1 keys = %+v", t1)
	}
	if t1.Date != (civil.Date{Year: 2024, Month: 1, Day: 10}) {
		t.Errorf("t1 date = %s", t1.Date)
	}
	if t1.Time.Hour != 14 || t1.Time.Minute != 35 || t1.Time.Second != 2 {
		t.Errorf("t1 time = %v", t1.Time)
	}
	if t1.Amount.String() != "100.5" {
		t.Errorf("t1 amount = %s", t1.Amount)
	}
	if t1.IsFraud {
		t.Error("t1 flagged as fraud")
	}

	// Single-digit hour is accepted.
	if txns[1].Time.Hour != 9 || !txns[1].IsFraud {
		t.Errorf("t2 = %+v", txns[1])
	}
}

func TestReadTransactions_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"missing column", "transaction_id,customer_id\nt1,c1\n", "missing required column"},
		{"bad amount", strings.Replace(transactionsCSV, "100.50", "lots", 1), "invalid amount"},
		{"bad date", strings.Replace(transactionsCSV, "2024-01-10", "Jan 10", 1), "invalid txn_date"},
		{"bad fraud flag", strings.Replace(transactionsCSV, ",0\n", ",maybe\n", 1), "invalid is_fraud"},
		{"empty key", strings.Replace(transactionsCSV, "t1,c1", "t1,", 1), "is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTransactions([]byte(tt.csv))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestReadDimensions(t *testing.T) {
	customers, err := ReadCustomers([]byte(customersCSV))
	if err != nil {
		t.Fatalf("ReadCustomers failed: %v", err)
	}
	if len(customers) != 1 || customers[0].FullName() != "Ada Lovelace" || customers[0].Age != 33 {
		t.Errorf("customers = %+v", customers)
	}

	merchants, err := ReadMerchants([]byte(merchantsCSV))
	if err != nil {
		t.Fatalf("ReadMerchants failed: %v", err)
	}
	if len(merchants) != 2 || merchants[0].Latitude != 51.5072 {
		t.Errorf("merchants = %+v", merchants)
	}

	categories, err := ReadCategories([]byte(categoriesCSV))
	if err != nil {
		t.Fatalf("ReadCategories failed: %v", err)
	}
	if len(categories) != 2 || categories[1].Name != "gas_transport" {
		t.Errorf("categories = %+v", categories)
	}
}

func TestSource_LoadDataset(t *testing.T) {
	byRef := map[string]string{
		"tx.csv":  transactionsCSV,
		"cu.csv":  customersCSV,
		"me.csv":  merchantsCSV,
		"cat.csv": categoriesCSV,
	}
	fetcher := &mockFetcher{
		FetchFunc: func(_ context.Context, ref string) ([]byte, error) {
			data, ok := byRef[ref]
			if !ok {
				return nil, errors.New("unknown ref " + ref)
			}
			return []byte(data), nil
		},
	}

	source := NewSource(Files{
		Transactions: "tx.csv",
		Customers:    "cu.csv",
		Merchants:    "me.csv",
		Categories:   "cat.csv",
	}, fetcher, zerolog.Nop())

	ds, err := source.LoadDataset(context.Background())
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	if len(ds.Transactions) != 2 || len(ds.Customers) != 1 || len(ds.Merchants) != 2 || len(ds.Categories) != 2 {
		t.Errorf("dataset sizes = %d/%d/%d/%d", len(ds.Transactions), len(ds.Customers), len(ds.Merchants), len(ds.Categories))
	}
}

func TestSource_LoadDataset_MissingFile(t *testing.T) {
	source := NewSource(Files{Transactions: "tx.csv"}, LocalFetcher{}, zerolog.Nop())
	if _, err := source.LoadDataset(context.Background()); err == nil {
		t.Fatal("expected error for unconfigured relation")
	}
}

func TestSource_LoadDataset_FetchError(t *testing.T) {
	fetchErr := errors.New("object not found")
	source := NewSource(Files{
		Transactions: "tx.csv", Customers: "cu.csv", Merchants: "me.csv", Categories: "cat.csv",
	}, &mockFetcher{
		FetchFunc: func(context.Context, string) ([]byte, error) { return nil, fetchErr },
	}, zerolog.Nop())

	if _, err := source.LoadDataset(context.Background()); !errors.Is(err, fetchErr) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}
