package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/card-analytics/internal/model"
)

// StoreDataset appends the four input relations to the star-schema tables.
// The fact table is append-only; re-loading the same file duplicates rows,
// so loads are expected to target a fresh dataset.
func StoreDataset(ctx context.Context, ds *model.Dataset) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("StoreDataset: creating client: %w", err)
	}
	defer client.Close()

	return StoreDatasetWithClient(ctx, client, ds)
}

// StoreDatasetWithClient appends the dataset using the provided client.
// Dimensions go first so the fact rows never precede their keys.
func StoreDatasetWithClient(ctx context.Context, client *bigquery.Client, ds *model.Dataset) error {
	if err := insert(ctx, client, customersTable, customerDimRows(ds.Customers)); err != nil {
		return fmt.Errorf("StoreDatasetWithClient: customers: %w", err)
	}
	if err := insert(ctx, client, categoriesTable, categoryDimRows(ds.Categories)); err != nil {
		return fmt.Errorf("StoreDatasetWithClient: categories: %w", err)
	}
	if err := insert(ctx, client, merchantsTable, merchantDimRows(ds.Merchants)); err != nil {
		return fmt.Errorf("StoreDatasetWithClient: merchants: %w", err)
	}
	if err := insert(ctx, client, transactionsTable, transactionFactRows(ds.Transactions)); err != nil {
		return fmt.Errorf("StoreDatasetWithClient: transactions: %w", err)
	}
	return nil
}

func transactionFactRows(txns []model.Transaction) []*TransactionFactRow {
	out := make([]*TransactionFactRow, len(txns))
	for i, t := range txns {
		out[i] = &TransactionFactRow{
			TransactionID: t.ID,
			CustomerID:    t.CustomerID,
			MerchantID:    t.MerchantID,
			CategoryID:    t.CategoryID,
			TxnDate:       t.Date,
			TxnTime:       t.Time,
			Amount:        decimalToRat(t.Amount),
			IsFraud:       t.IsFraud,
		}
	}
	return out
}

func customerDimRows(customers []model.Customer) []*CustomerDimRow {
	out := make([]*CustomerDimRow, len(customers))
	for i, c := range customers {
		row := &CustomerDimRow{
			CustomerID: c.ID,
			FirstName:  nullString(c.FirstName),
			LastName:   nullString(c.LastName),
			Gender:     nullString(c.Gender),
			Street:     nullString(c.Street),
			City:       nullString(c.City),
			State:      nullString(c.State),
			Zip:        nullString(c.Zip),
			Job:        nullString(c.Job),
		}
		if c.DOB.IsValid() {
			row.DOB = bigquery.NullDate{Date: c.DOB, Valid: true}
		}
		if c.Age > 0 {
			row.Age = bigquery.NullInt64{Int64: int64(c.Age), Valid: true}
		}
		out[i] = row
	}
	return out
}

func merchantDimRows(merchants []model.Merchant) []*MerchantDimRow {
	out := make([]*MerchantDimRow, len(merchants))
	for i, m := range merchants {
		row := &MerchantDimRow{
			MerchantID:   m.ID,
			MerchantName: nullString(m.Name),
			CategoryID:   nullString(m.CategoryID),
		}
		if m.Latitude != 0 || m.Longitude != 0 {
			row.Latitude = bigquery.NullFloat64{Float64: m.Latitude, Valid: true}
			row.Longitude = bigquery.NullFloat64{Float64: m.Longitude, Valid: true}
		}
		out[i] = row
	}
	return out
}

func categoryDimRows(categories []model.Category) []*CategoryDimRow {
	out := make([]*CategoryDimRow, len(categories))
	for i, c := range categories {
		out[i] = &CategoryDimRow{
			CategoryID:   c.ID,
			CategoryName: nullString(c.Name),
		}
	}
	return out
}

func nullString(s string) bigquery.NullString {
	if s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: s, Valid: true}
}
