package analytics

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/card-analytics/internal/model"
)

// DefaultAmountBuckets is the number of equal-width amount buckets used by
// fraud slicing when the caller does not choose one.
const DefaultAmountBuckets = 10

// FraudSlice is the fraud count and rate for one slice of the fact table.
// FraudRatePct is null when the slice is empty (never a division error).
type FraudSlice struct {
	Key          string              `json:"dimension_key"`
	FraudCount   int64               `json:"fraud_count"`
	TotalCount   int64               `json:"total_count"`
	FraudRatePct decimal.NullDecimal `json:"fraud_rate_pct"`
}

// RollingFraudPoint is the trailing-window fraud rate anchored at one
// calendar day.
type RollingFraudPoint struct {
	Day          civil.Date          `json:"day"`
	FraudCount   int64               `json:"fraud_count"`
	TotalCount   int64               `json:"total_count"`
	FraudRatePct decimal.NullDecimal `json:"fraud_rate_pct"`
}

// FraudRateBy slices the transaction set by a single dimension and computes
// fraud_count, total_count and the fraud rate (rounded to 2 decimals) per
// slice. Slices are sorted by key. Summing fraud counts across any complete
// partition reproduces the overall fraud count.
func FraudRateBy(txns []model.Transaction, dim Dimension) ([]FraudSlice, error) {
	rows, err := Aggregate(txns, []Dimension{dim}, func(t model.Transaction) bool { return t.IsFraud })
	if err != nil {
		return nil, err
	}

	out := make([]FraudSlice, len(rows))
	for i, row := range rows {
		out[i] = FraudSlice{
			Key:          row.Key[0],
			FraudCount:   row.WhereCount,
			TotalCount:   row.Count,
			FraudRatePct: PercentOfCounts(row.WhereCount, row.Count),
		}
	}
	return out, nil
}

// FraudRateByAmountBucket partitions the amount range [0, max(amount)] into
// bucketCount equal-width buckets and computes the fraud rate per bucket.
// Assignment is floor(amount/width) clamped to the last bucket, so
// amount == max lands in bucket bucketCount-1. When every amount is zero the
// whole set falls into bucket 0. Only buckets with transactions appear.
func FraudRateByAmountBucket(txns []model.Transaction, bucketCount int) ([]FraudSlice, error) {
	if bucketCount <= 0 {
		return nil, fmt.Errorf("FraudRateByAmountBucket: bucket count must be positive, got %d", bucketCount)
	}
	if len(txns) == 0 {
		return nil, nil
	}

	maxAmount := txns[0].Amount
	for _, t := range txns {
		if t.Amount.GreaterThan(maxAmount) {
			maxAmount = t.Amount
		}
	}

	width := maxAmount.Div(decimal.NewFromInt(int64(bucketCount)))

	type slice struct {
		fraud int64
		total int64
	}
	buckets := make(map[int]*slice)
	for _, t := range txns {
		idx := 0
		if !width.IsZero() {
			idx = int(t.Amount.Div(width).IntPart())
			if idx >= bucketCount {
				idx = bucketCount - 1
			}
		}
		s, ok := buckets[idx]
		if !ok {
			s = &slice{}
			buckets[idx] = s
		}
		s.total++
		if t.IsFraud {
			s.fraud++
		}
	}

	indexes := make([]int, 0, len(buckets))
	for idx := range buckets {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]FraudSlice, 0, len(indexes))
	for _, idx := range indexes {
		s := buckets[idx]
		out = append(out, FraudSlice{
			Key:          fmt.Sprintf("bucket_%02d", idx),
			FraudCount:   s.fraud,
			TotalCount:   s.total,
			FraudRatePct: PercentOfCounts(s.fraud, s.total),
		})
	}
	return out, nil
}

// RollingFraudRate computes, for each calendar day present in the input, the
// fraud rate over the trailing windowDays days including that day. Days with
// no transactions contribute zero counts to windows that span them; they do
// not anchor points of their own. Fails with InvalidWindowSizeError when
// windowDays is not positive.
func RollingFraudRate(txns []model.Transaction, windowDays int) ([]RollingFraudPoint, error) {
	if windowDays <= 0 {
		return nil, &InvalidWindowSizeError{Size: windowDays}
	}
	if len(txns) == 0 {
		return nil, nil
	}

	type day struct {
		fraud int64
		total int64
	}
	byDay := make(map[civil.Date]*day)
	for _, t := range txns {
		d, ok := byDay[t.Date]
		if !ok {
			d = &day{}
			byDay[t.Date] = d
		}
		d.total++
		if t.IsFraud {
			d.fraud++
		}
	}

	days := make([]civil.Date, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]RollingFraudPoint, 0, len(days))
	for _, anchor := range days {
		var fraud, total int64
		for offset := 0; offset < windowDays; offset++ {
			if d, ok := byDay[anchor.AddDays(-offset)]; ok {
				fraud += d.fraud
				total += d.total
			}
		}
		out = append(out, RollingFraudPoint{
			Day:          anchor,
			FraudCount:   fraud,
			TotalCount:   total,
			FraudRatePct: PercentOfCounts(fraud, total),
		})
	}
	return out, nil
}
