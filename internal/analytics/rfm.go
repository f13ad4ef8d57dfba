package analytics

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/card-analytics/internal/model"
)

// CustomerRFM is the recency/frequency/monetary score for one customer.
// Quintiles are 1..5 with 1 best: most recent, most frequent, highest spend.
type CustomerRFM struct {
	CustomerID  string          `json:"customer_id"`
	RecencyDays int             `json:"recency_days"`
	Frequency   int64           `json:"frequency"`
	Monetary    decimal.Decimal `json:"monetary"`
	RQuintile   int             `json:"r_quintile"`
	FQuintile   int             `json:"f_quintile"`
	MQuintile   int             `json:"m_quintile"`
}

// ComputeRFM derives per-customer RFM values and quintile ranks from the
// transaction set as of the given reference date. A zero asOf defaults to
// the day after the latest transaction. Only customers present in the
// transaction set are scored; zero-activity customers are the caller's
// concern (the report assembler surfaces them as a distinct no-activity
// group). Empty input fails with ErrEmptyDataset since quintiles are
// undefined on zero rows.
//
// Tie-break everywhere is customer ID ascending, so bucket assignment is
// reproducible across runs regardless of input order.
func ComputeRFM(txns []model.Transaction, asOf civil.Date) ([]CustomerRFM, error) {
	if len(txns) == 0 {
		return nil, ErrEmptyDataset
	}

	type stats struct {
		last      civil.Date
		frequency int64
		monetary  decimal.Decimal
	}
	byCustomer := make(map[string]*stats)
	maxDate := txns[0].Date

	for _, t := range txns {
		if t.Date.After(maxDate) {
			maxDate = t.Date
		}
		s, ok := byCustomer[t.CustomerID]
		if !ok {
			s = &stats{last: t.Date}
			byCustomer[t.CustomerID] = s
		}
		if t.Date.After(s.last) {
			s.last = t.Date
		}
		s.frequency++
		s.monetary = s.monetary.Add(t.Amount)
	}

	if (asOf == civil.Date{}) {
		asOf = maxDate.AddDays(1)
	}

	out := make([]CustomerRFM, 0, len(byCustomer))
	for id, s := range byCustomer {
		out = append(out, CustomerRFM{
			CustomerID:  id,
			RecencyDays: asOf.DaysSince(s.last),
			Frequency:   s.frequency,
			Monetary:    s.monetary,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })

	// Recency ascending: bucket 1 = most recent.
	assignQuintiles(out, func(a, b *CustomerRFM) bool {
		if a.RecencyDays != b.RecencyDays {
			return a.RecencyDays < b.RecencyDays
		}
		return a.CustomerID < b.CustomerID
	}, func(r *CustomerRFM, q int) { r.RQuintile = q })

	// Frequency descending: bucket 1 = most frequent.
	assignQuintiles(out, func(a, b *CustomerRFM) bool {
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.CustomerID < b.CustomerID
	}, func(r *CustomerRFM, q int) { r.FQuintile = q })

	// Monetary descending: bucket 1 = highest spend.
	assignQuintiles(out, func(a, b *CustomerRFM) bool {
		if !a.Monetary.Equal(b.Monetary) {
			return a.Monetary.GreaterThan(b.Monetary)
		}
		return a.CustomerID < b.CustomerID
	}, func(r *CustomerRFM, q int) { r.MQuintile = q })

	return out, nil
}

// assignQuintiles ranks the records with the given order and assigns NTILE(5)
// buckets: equal sizes with the first (n mod 5) buckets one element larger,
// exactly as SQL NTILE distributes remainders.
func assignQuintiles(records []CustomerRFM, less func(a, b *CustomerRFM) bool, set func(r *CustomerRFM, q int)) {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return less(&records[order[i]], &records[order[j]])
	})

	n := len(records)
	buckets := 5
	if n < buckets {
		buckets = n
	}
	base := n / buckets
	extra := n % buckets

	pos := 0
	for b := 1; b <= buckets; b++ {
		size := base
		if b <= extra {
			size++
		}
		for i := 0; i < size; i++ {
			set(&records[order[pos]], b)
			pos++
		}
	}
}
