package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/card-analytics/internal/model"
)

// Source implements report.DatasetSource over the star-schema tables. It
// holds a shared BigQuery client to avoid creating a new connection for each
// operation.
type Source struct {
	client *bigquery.Client

	// StartDate/EndDate bound the fact-table scan; zero dates mean no bound.
	StartDate civil.Date
	EndDate   civil.Date
}

// NewSource creates a Source with a shared BigQuery client.
func NewSource(ctx context.Context) (*Source, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewSource: creating client: %w", err)
	}
	return &Source{client: client}, nil
}

// Close closes the BigQuery client connection.
func (s *Source) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// LoadDataset reads the four relations into a model.Dataset.
func (s *Source) LoadDataset(ctx context.Context) (*model.Dataset, error) {
	txns, err := QueryTransactionsWithClient(ctx, s.client, s.StartDate, s.EndDate)
	if err != nil {
		return nil, fmt.Errorf("LoadDataset: %w", err)
	}
	customers, err := ListCustomersWithClient(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("LoadDataset: %w", err)
	}
	merchants, err := ListMerchantsWithClient(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("LoadDataset: %w", err)
	}
	categories, err := ListCategoriesWithClient(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("LoadDataset: %w", err)
	}

	return &model.Dataset{
		Customers:    customers,
		Merchants:    merchants,
		Categories:   categories,
		Transactions: txns,
	}, nil
}

// QueryTransactions queries the fact table within the given date range.
func QueryTransactions(ctx context.Context, startDate, endDate civil.Date) ([]model.Transaction, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: bigquery client: %w", err)
	}
	defer client.Close()

	return QueryTransactionsWithClient(ctx, client, startDate, endDate)
}

// QueryTransactionsWithClient queries the fact table using the provided
// BigQuery client. Zero dates leave the corresponding bound open.
func QueryTransactionsWithClient(ctx context.Context, client *bigquery.Client, startDate, endDate civil.Date) ([]model.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT
			transaction_id,
			customer_id,
			merchant_id,
			category_id,
			txn_date,
			txn_time,
			amount,
			is_fraud
		FROM `+"`%s.%s.%s`"+`
		WHERE (@start_date = '' OR txn_date >= PARSE_DATE('%%F', @start_date))
		  AND (@end_date = '' OR txn_date <= PARSE_DATE('%%F', @end_date))
		ORDER BY txn_date, txn_time, transaction_id
	`, projectID, datasetID, transactionsTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: formatBound(startDate)},
		{Name: "end_date", Value: formatBound(endDate)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsWithClient: query read: %w", err)
	}

	var out []model.Transaction
	for {
		var row TransactionFactRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsWithClient: iter next: %w", err)
		}
		t, err := factRowToTransaction(&row)
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsWithClient: row %s: %w", row.TransactionID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func formatBound(d civil.Date) string {
	if (d == civil.Date{}) {
		return ""
	}
	return d.String()
}

func factRowToTransaction(row *TransactionFactRow) (model.Transaction, error) {
	amount, err := ratToDecimal(row.Amount)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{
		ID:         row.TransactionID,
		CustomerID: row.CustomerID,
		MerchantID: row.MerchantID,
		CategoryID: row.CategoryID,
		Date:       row.TxnDate,
		Time:       row.TxnTime,
		Amount:     amount,
		IsFraud:    row.IsFraud,
	}, nil
}

// ListCustomersWithClient retrieves the whole customer dimension.
func ListCustomersWithClient(ctx context.Context, client *bigquery.Client) ([]model.Customer, error) {
	query := fmt.Sprintf(`
		SELECT
			customer_id,
			first_name,
			last_name,
			gender,
			street,
			city,
			state,
			zip,
			job,
			dob,
			age
		FROM `+"`%s.%s.%s`"+`
		ORDER BY customer_id
	`, projectID, datasetID, customersTable)

	it, err := client.Query(query).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCustomersWithClient: reading query: %w", err)
	}

	var out []model.Customer
	for {
		var row CustomerDimRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCustomersWithClient: iter next: %w", err)
		}
		c := model.Customer{
			ID:        row.CustomerID,
			FirstName: row.FirstName.StringVal,
			LastName:  row.LastName.StringVal,
			Gender:    row.Gender.StringVal,
			Street:    row.Street.StringVal,
			City:      row.City.StringVal,
			State:     row.State.StringVal,
			Zip:       row.Zip.StringVal,
			Job:       row.Job.StringVal,
		}
		if row.DOB.Valid {
			c.DOB = row.DOB.Date
		}
		if row.Age.Valid {
			c.Age = int(row.Age.Int64)
		}
		out = append(out, c)
	}
	return out, nil
}

// ListMerchantsWithClient retrieves the whole merchant dimension.
func ListMerchantsWithClient(ctx context.Context, client *bigquery.Client) ([]model.Merchant, error) {
	query := fmt.Sprintf(`
		SELECT
			merchant_id,
			merchant_name,
			category_id,
			latitude,
			longitude
		FROM `+"`%s.%s.%s`"+`
		ORDER BY merchant_id
	`, projectID, datasetID, merchantsTable)

	it, err := client.Query(query).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListMerchantsWithClient: reading query: %w", err)
	}

	var out []model.Merchant
	for {
		var row MerchantDimRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListMerchantsWithClient: iter next: %w", err)
		}
		out = append(out, model.Merchant{
			ID:         row.MerchantID,
			Name:       row.MerchantName.StringVal,
			CategoryID: row.CategoryID.StringVal,
			Latitude:   row.Latitude.Float64,
			Longitude:  row.Longitude.Float64,
		})
	}
	return out, nil
}

// ListCategoriesWithClient retrieves the whole category dimension.
func ListCategoriesWithClient(ctx context.Context, client *bigquery.Client) ([]model.Category, error) {
	query := fmt.Sprintf(`
		SELECT
			category_id,
			category_name
		FROM `+"`%s.%s.%s`"+`
		ORDER BY category_id
	`, projectID, datasetID, categoriesTable)

	it, err := client.Query(query).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategoriesWithClient: reading query: %w", err)
	}

	var out []model.Category
	for {
		var row CategoryDimRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategoriesWithClient: iter next: %w", err)
		}
		out = append(out, model.Category{
			ID:   row.CategoryID,
			Name: row.CategoryName.StringVal,
		})
	}
	return out, nil
}
