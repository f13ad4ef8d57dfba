package analytics

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/card-analytics/internal/model"
)

// Granularity is the period truncation applied to transaction dates.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// SeriesMeasure selects the metric a period series carries.
type SeriesMeasure string

const (
	MeasureTotalAmount SeriesMeasure = "total_amount"
	MeasureTxnCount    SeriesMeasure = "txn_count"
	MeasureFraudCount  SeriesMeasure = "fraud_count"
)

// TimeSeriesPoint is one period of a metric series. Prior and PctChange are
// null for the first period and whenever the prior value is zero; a gap
// period inside the observed range appears with a zero Value, which makes
// the following period's PctChange null rather than infinite.
type TimeSeriesPoint struct {
	Period    civil.Date          `json:"period"`
	Value     decimal.Decimal     `json:"metric_value"`
	Prior     decimal.NullDecimal `json:"prior_period_value"`
	PctChange decimal.NullDecimal `json:"pct_change"`
}

// CohortCell is one cell of the cohort retention grid: how many distinct
// customers whose first transaction fell in CohortMonth were active in
// ActivityMonth. Months before the cohort month carry zero, never null and
// never a negative count.
type CohortCell struct {
	CohortMonth     civil.Date `json:"cohort_month"`
	ActivityMonth   civil.Date `json:"activity_month"`
	ActiveCustomers int64      `json:"active_customers"`
}

// truncate maps a date to the start of its period.
func truncate(d civil.Date, g Granularity) (civil.Date, error) {
	switch g {
	case GranularityDay:
		return d, nil
	case GranularityWeek:
		return model.TruncateToWeek(d), nil
	case GranularityMonth:
		return model.TruncateToMonth(d), nil
	default:
		return civil.Date{}, fmt.Errorf("truncate: unknown granularity %q", g)
	}
}

// nextPeriod advances a truncated date by one period.
func nextPeriod(d civil.Date, g Granularity) civil.Date {
	switch g {
	case GranularityWeek:
		return d.AddDays(7)
	case GranularityMonth:
		if d.Month == time.December {
			return civil.Date{Year: d.Year + 1, Month: time.January, Day: 1}
		}
		return civil.Date{Year: d.Year, Month: d.Month + 1, Day: 1}
	default:
		return d.AddDays(1)
	}
}

// PeriodSeries buckets transactions into periods of the given granularity
// and returns the ordered, gap-filled metric series with period-over-period
// change. Every period between the first and last observed transaction
// appears, zero-valued when no transactions fall in it. PctChange is
// 100*(current-previous)/previous rounded to 2 decimals, null when the
// previous value is zero or absent. Empty input yields an empty series.
func PeriodSeries(txns []model.Transaction, g Granularity, m SeriesMeasure) ([]TimeSeriesPoint, error) {
	switch m {
	case MeasureTotalAmount, MeasureTxnCount, MeasureFraudCount:
	default:
		return nil, fmt.Errorf("PeriodSeries: unknown measure %q", m)
	}
	if len(txns) == 0 {
		return nil, nil
	}

	values := make(map[civil.Date]decimal.Decimal)
	first, err := truncate(txns[0].Date, g)
	if err != nil {
		return nil, err
	}
	last := first

	one := decimal.NewFromInt(1)
	for _, t := range txns {
		p, err := truncate(t.Date, g)
		if err != nil {
			return nil, err
		}
		if p.Before(first) {
			first = p
		}
		if p.After(last) {
			last = p
		}
		switch m {
		case MeasureTotalAmount:
			values[p] = values[p].Add(t.Amount)
		case MeasureTxnCount:
			values[p] = values[p].Add(one)
		case MeasureFraudCount:
			if t.IsFraud {
				values[p] = values[p].Add(one)
			}
		}
	}

	var out []TimeSeriesPoint
	var prior decimal.NullDecimal
	for p := first; !p.After(last); p = nextPeriod(p, g) {
		point := TimeSeriesPoint{Period: p, Value: values[p], Prior: prior}
		if prior.Valid && !prior.Decimal.IsZero() {
			change := point.Value.Sub(prior.Decimal).Mul(decimal.NewFromInt(100)).Div(prior.Decimal).Round(2)
			point.PctChange = decimal.NullDecimal{Decimal: change, Valid: true}
		}
		out = append(out, point)
		prior = decimal.NullDecimal{Decimal: point.Value, Valid: true}
	}
	return out, nil
}

// MovingAverage returns a copy of the series whose Value is the trailing
// n-period simple mean including the current period. The first n-1 points
// average over however many periods are available rather than zero-padding.
// Prior/PctChange are recomputed over the smoothed values. n == 1 returns
// the series unchanged; n <= 0 fails with InvalidWindowSizeError.
func MovingAverage(series []TimeSeriesPoint, n int) ([]TimeSeriesPoint, error) {
	if n <= 0 {
		return nil, &InvalidWindowSizeError{Size: n}
	}

	out := make([]TimeSeriesPoint, len(series))
	var running decimal.Decimal
	var prior decimal.NullDecimal
	for i, p := range series {
		running = running.Add(p.Value)
		if i >= n {
			running = running.Sub(series[i-n].Value)
		}
		window := n
		if i+1 < n {
			window = i + 1
		}
		avg := running.Div(decimal.NewFromInt(int64(window)))

		out[i] = TimeSeriesPoint{Period: p.Period, Value: avg, Prior: prior}
		if prior.Valid && !prior.Decimal.IsZero() {
			change := avg.Sub(prior.Decimal).Mul(decimal.NewFromInt(100)).Div(prior.Decimal).Round(2)
			out[i].PctChange = decimal.NullDecimal{Decimal: change, Valid: true}
		}
		prior = decimal.NullDecimal{Decimal: avg, Valid: true}
	}
	return out, nil
}

// CohortRetention groups customers by the calendar month of their first
// transaction and counts, for every observed month, the distinct customers
// from each cohort active in that month. The grid is complete: every cohort
// appears for every month in the observed range, zero-filled where the
// cohort had no activity (including months before the cohort existed).
// Cells are ordered by cohort month, then activity month.
func CohortRetention(txns []model.Transaction) []CohortCell {
	if len(txns) == 0 {
		return nil
	}

	firstMonth := make(map[string]civil.Date)
	minMonth := model.TruncateToMonth(txns[0].Date)
	maxMonth := minMonth

	activeByMonth := make(map[civil.Date]map[string]bool)
	for _, t := range txns {
		m := model.TruncateToMonth(t.Date)
		if m.Before(minMonth) {
			minMonth = m
		}
		if m.After(maxMonth) {
			maxMonth = m
		}
		if f, ok := firstMonth[t.CustomerID]; !ok || m.Before(f) {
			firstMonth[t.CustomerID] = m
		}
		set, ok := activeByMonth[m]
		if !ok {
			set = make(map[string]bool)
			activeByMonth[m] = set
		}
		set[t.CustomerID] = true
	}

	// Distinct cohort months, sorted.
	cohortSet := make(map[civil.Date]bool)
	for _, m := range firstMonth {
		cohortSet[m] = true
	}
	cohorts := make([]civil.Date, 0, len(cohortSet))
	for m := range cohortSet {
		cohorts = append(cohorts, m)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].Before(cohorts[j]) })

	var out []CohortCell
	for _, cohort := range cohorts {
		for m := minMonth; !m.After(maxMonth); m = nextPeriod(m, GranularityMonth) {
			var count int64
			for id := range activeByMonth[m] {
				if firstMonth[id] == cohort {
					count++
				}
			}
			out = append(out, CohortCell{CohortMonth: cohort, ActivityMonth: m, ActiveCustomers: count})
		}
	}
	return out
}
