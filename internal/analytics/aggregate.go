package analytics

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/card-analytics/internal/model"
)

// Dimension names a grouping key on the transaction record.
type Dimension string

const (
	DimCustomer Dimension = "customer_id"
	DimMerchant Dimension = "merchant_id"
	DimCategory Dimension = "category_id"
	DimDay      Dimension = "day"
	DimWeek     Dimension = "week"
	DimMonth    Dimension = "month"
	DimHour     Dimension = "hour"
)

// GroupRow holds the measures for one distinct combination of group-key
// values: row count, amount sum and average, first/last transaction date,
// and a count of rows matching the optional predicate. Groups only exist
// for combinations present in the input, so Count is always >= 1 and Avg,
// FirstDate and LastDate are always defined.
type GroupRow struct {
	Key        []string
	Count      int64
	Sum        decimal.Decimal
	Avg        decimal.Decimal
	FirstDate  civil.Date
	LastDate   civil.Date
	WhereCount int64
}

// keySeparator joins key tuples into map keys. Unit separator cannot occur
// in any dimension value.
const keySeparator = "\x1f"

// keyFunc returns the extractor for a single dimension, or an
// InvalidGroupKeyError for an unknown one.
func keyFunc(dim Dimension) (func(model.Transaction) string, error) {
	switch dim {
	case DimCustomer:
		return func(t model.Transaction) string { return t.CustomerID }, nil
	case DimMerchant:
		return func(t model.Transaction) string { return t.MerchantID }, nil
	case DimCategory:
		return func(t model.Transaction) string { return t.CategoryID }, nil
	case DimDay:
		return func(t model.Transaction) string { return t.Date.String() }, nil
	case DimWeek:
		return func(t model.Transaction) string { return model.TruncateToWeek(t.Date).String() }, nil
	case DimMonth:
		return func(t model.Transaction) string { return model.TruncateToMonth(t.Date).String() }, nil
	case DimHour:
		return func(t model.Transaction) string { return fmt.Sprintf("%02d", t.Time.Hour) }, nil
	default:
		return nil, &InvalidGroupKeyError{Key: string(dim)}
	}
}

// Aggregate groups transactions by the given dimensions and computes the
// count, amount sum and amount average for each group, plus a count of rows
// matching the optional where predicate. Empty input yields an empty result,
// never an error; an unknown dimension fails with InvalidGroupKeyError.
// Result rows are sorted by key tuple so repeated runs produce identical
// output.
func Aggregate(txns []model.Transaction, dims []Dimension, where func(model.Transaction) bool) ([]GroupRow, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("Aggregate: at least one grouping dimension required")
	}

	extractors := make([]func(model.Transaction) string, len(dims))
	for i, dim := range dims {
		fn, err := keyFunc(dim)
		if err != nil {
			return nil, err
		}
		extractors[i] = fn
	}

	groups := make(map[string]*GroupRow)
	for _, t := range txns {
		parts := make([]string, len(extractors))
		for i, fn := range extractors {
			parts[i] = fn(t)
		}
		mapKey := strings.Join(parts, keySeparator)

		row, ok := groups[mapKey]
		if !ok {
			row = &GroupRow{Key: parts, FirstDate: t.Date, LastDate: t.Date}
			groups[mapKey] = row
		}
		row.Count++
		row.Sum = row.Sum.Add(t.Amount)
		if t.Date.Before(row.FirstDate) {
			row.FirstDate = t.Date
		}
		if t.Date.After(row.LastDate) {
			row.LastDate = t.Date
		}
		if where != nil && where(t) {
			row.WhereCount++
		}
	}

	out := make([]GroupRow, 0, len(groups))
	for _, row := range groups {
		row.Avg = row.Sum.Div(decimal.NewFromInt(row.Count))
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i].Key, keySeparator) < strings.Join(out[j].Key, keySeparator)
	})
	return out, nil
}

// Percent returns 100*num/den rounded to 2 decimal places (half away from
// zero), or an invalid NullDecimal when den is zero. Ratios over empty
// slices are null, never a division panic and never NaN.
func Percent(num, den decimal.Decimal) decimal.NullDecimal {
	if den.IsZero() {
		return decimal.NullDecimal{}
	}
	pct := num.Mul(decimal.NewFromInt(100)).Div(den).Round(2)
	return decimal.NullDecimal{Decimal: pct, Valid: true}
}

// PercentOfCounts is Percent over integer counts, the common case for
// fraud-rate and retention ratios.
func PercentOfCounts(num, den int64) decimal.NullDecimal {
	return Percent(decimal.NewFromInt(num), decimal.NewFromInt(den))
}
