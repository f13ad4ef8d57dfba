package model

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// BuildCalendar generates the precomputed date dimension for every day in
// [start, end] inclusive. Weeks are ISO weeks (Monday start), matching the
// DATE_TRUNC('week') convention used by the reporting queries.
func BuildCalendar(start, end civil.Date) ([]DateDimension, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("BuildCalendar: end %s before start %s", end, start)
	}

	var out []DateDimension
	for d := start; !d.After(end); d = d.AddDays(1) {
		t := d.In(time.UTC)
		_, week := t.ISOWeek()
		wd := t.Weekday()
		out = append(out, DateDimension{
			Date:      d,
			Year:      d.Year,
			Quarter:   (int(d.Month)-1)/3 + 1,
			Month:     int(d.Month),
			Week:      week,
			DayOfWeek: wd,
			IsWeekend: wd == time.Saturday || wd == time.Sunday,
		})
	}
	return out, nil
}

// TruncateToWeek returns the Monday of the ISO week containing d.
func TruncateToWeek(d civil.Date) civil.Date {
	t := d.In(time.UTC)
	offset := (int(t.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// TruncateToMonth returns the first day of the month containing d.
func TruncateToMonth(d civil.Date) civil.Date {
	return civil.Date{Year: d.Year, Month: d.Month, Day: 1}
}
