package csvload

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/card-analytics/internal/model"
)

// header maps column names to indices for positional-independent parsing.
type header map[string]int

func readAll(data []byte) (header, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("file has no header row")
	}

	h := make(header, len(records[0]))
	for i, name := range records[0] {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h, records[1:], nil
}

func (h header) field(row []string, name string) (string, error) {
	idx, ok := h[name]
	if !ok {
		return "", fmt.Errorf("missing required column %q", name)
	}
	if idx >= len(row) {
		return "", fmt.Errorf("row too short for column %q", name)
	}
	return strings.TrimSpace(row[idx]), nil
}

func (h header) optional(row []string, name string) string {
	idx, ok := h[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ReadTransactions parses the fact table. Required columns: transaction_id,
// customer_id, merchant_id, category_id, txn_date, amount, is_fraud.
// txn_time is optional; missing times sort as midnight.
func ReadTransactions(data []byte) ([]model.Transaction, error) {
	h, rows, err := readAll(data)
	if err != nil {
		return nil, fmt.Errorf("ReadTransactions: %w", err)
	}

	out := make([]model.Transaction, 0, len(rows))
	for i, row := range rows {
		t, err := parseTransaction(h, row)
		if err != nil {
			return nil, fmt.Errorf("ReadTransactions: row %d: %w", i+2, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func parseTransaction(h header, row []string) (model.Transaction, error) {
	var t model.Transaction

	for _, col := range []struct {
		name string
		dst  *string
	}{
		{"transaction_id", &t.ID},
		{"customer_id", &t.CustomerID},
		{"merchant_id", &t.MerchantID},
		{"category_id", &t.CategoryID},
	} {
		v, err := h.field(row, col.name)
		if err != nil {
			return t, err
		}
		if v == "" {
			return t, fmt.Errorf("required column %q is empty", col.name)
		}
		*col.dst = v
	}

	dateStr, err := h.field(row, "txn_date")
	if err != nil {
		return t, err
	}
	if t.Date, err = civil.ParseDate(dateStr); err != nil {
		return t, fmt.Errorf("invalid txn_date %q: %w", dateStr, err)
	}

	if timeStr := h.optional(row, "txn_time"); timeStr != "" {
		if t.Time, err = civil.ParseTime(normalizeTime(timeStr)); err != nil {
			return t, fmt.Errorf("invalid txn_time %q: %w", timeStr, err)
		}
	}

	amountStr, err := h.field(row, "amount")
	if err != nil {
		return t, err
	}
	if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return t, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	fraudStr, err := h.field(row, "is_fraud")
	if err != nil {
		return t, err
	}
	if t.IsFraud, err = parseBool(fraudStr); err != nil {
		return t, fmt.Errorf("invalid is_fraud %q: %w", fraudStr, err)
	}

	return t, nil
}

// ReadCustomers parses the customer dimension.
func ReadCustomers(data []byte) ([]model.Customer, error) {
	h, rows, err := readAll(data)
	if err != nil {
		return nil, fmt.Errorf("ReadCustomers: %w", err)
	}

	out := make([]model.Customer, 0, len(rows))
	for i, row := range rows {
		id, err := h.field(row, "customer_id")
		if err != nil {
			return nil, fmt.Errorf("ReadCustomers: row %d: %w", i+2, err)
		}
		c := model.Customer{
			ID:        id,
			FirstName: h.optional(row, "first_name"),
			LastName:  h.optional(row, "last_name"),
			Gender:    h.optional(row, "gender"),
			Street:    h.optional(row, "street"),
			City:      h.optional(row, "city"),
			State:     h.optional(row, "state"),
			Zip:       h.optional(row, "zip"),
			Job:       h.optional(row, "job"),
		}
		if dob := h.optional(row, "dob"); dob != "" {
			if c.DOB, err = civil.ParseDate(dob); err != nil {
				return nil, fmt.Errorf("ReadCustomers: row %d: invalid dob %q: %w", i+2, dob, err)
			}
		}
		if age := h.optional(row, "age"); age != "" {
			if c.Age, err = strconv.Atoi(age); err != nil {
				return nil, fmt.Errorf("ReadCustomers: row %d: invalid age %q: %w", i+2, age, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// ReadMerchants parses the merchant dimension.
func ReadMerchants(data []byte) ([]model.Merchant, error) {
	h, rows, err := readAll(data)
	if err != nil {
		return nil, fmt.Errorf("ReadMerchants: %w", err)
	}

	out := make([]model.Merchant, 0, len(rows))
	for i, row := range rows {
		id, err := h.field(row, "merchant_id")
		if err != nil {
			return nil, fmt.Errorf("ReadMerchants: row %d: %w", i+2, err)
		}
		m := model.Merchant{
			ID:         id,
			Name:       h.optional(row, "merchant_name"),
			CategoryID: h.optional(row, "category_id"),
		}
		if lat := h.optional(row, "latitude"); lat != "" {
			if m.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
				return nil, fmt.Errorf("ReadMerchants: row %d: invalid latitude %q: %w", i+2, lat, err)
			}
		}
		if lng := h.optional(row, "longitude"); lng != "" {
			if m.Longitude, err = strconv.ParseFloat(lng, 64); err != nil {
				return nil, fmt.Errorf("ReadMerchants: row %d: invalid longitude %q: %w", i+2, lng, err)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// ReadCategories parses the category dimension.
func ReadCategories(data []byte) ([]model.Category, error) {
	h, rows, err := readAll(data)
	if err != nil {
		return nil, fmt.Errorf("ReadCategories: %w", err)
	}

	out := make([]model.Category, 0, len(rows))
	for i, row := range rows {
		id, err := h.field(row, "category_id")
		if err != nil {
			return nil, fmt.Errorf("ReadCategories: row %d: %w", i+2, err)
		}
		out = append(out, model.Category{
			ID:   id,
			Name: h.optional(row, "category_name"),
		})
	}
	return out, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y":
		return true, nil
	case "0", "false", "f", "no", "n", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}

// normalizeTime pads "H:MM:SS" to the "HH:MM:SS" form civil.ParseTime wants.
func normalizeTime(s string) string {
	if i := strings.Index(s, ":"); i == 1 {
		return "0" + s
	}
	return s
}
