package notion

import (
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/card-analytics/internal/report"
)

func titleProp(content string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: content},
			},
		},
	}
}

func richTextProp(content string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: content},
			},
		},
	}
}

func numberProp(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: v}
}

// decimalNumber maps a NullDecimal to a number property; null metrics are
// simply absent from the page rather than rendered as zero.
func setDecimal(props notionapi.Properties, name string, d decimal.NullDecimal) {
	if !d.Valid {
		return
	}
	f, _ := d.Decimal.Float64()
	props[name] = numberProp(f)
}

// CategorySummaryToProperties converts a category summary row to Notion
// properties for the Categories dashboard database.
func CategorySummaryToProperties(c report.CategorySummary) notionapi.Properties {
	props := notionapi.Properties{
		"Category":   titleProp(c.Name),
		"Txn Count":  numberProp(float64(c.TxnCount)),
		"Fraud Count": numberProp(float64(c.FraudCount)),
	}
	if c.CategoryID != "" {
		props["Category ID"] = richTextProp(c.CategoryID)
	}
	setDecimal(props, "Total Spend", c.TotalSpend)
	setDecimal(props, "Avg Txn", c.AvgTxn)
	setDecimal(props, "Fraud Rate %", c.FraudRatePct)
	return props
}

// FraudSliceToProperties converts one fraud slice to Notion properties for
// the Fraud dashboard database. The title combines slicing and key so pages
// stay unique across groupings.
func FraudSliceToProperties(slicing, key string, fraudCount, totalCount int64, rate decimal.NullDecimal) notionapi.Properties {
	props := notionapi.Properties{
		"Slice":       titleProp(slicing + " / " + key),
		"Slicing":     notionapi.SelectProperty{Select: notionapi.Option{Name: slicing}},
		"Fraud Count": numberProp(float64(fraudCount)),
		"Total Count": numberProp(float64(totalCount)),
	}
	setDecimal(props, "Fraud Rate %", rate)
	return props
}

// KPIsToProperties converts the headline KPIs to Notion properties for the
// KPI dashboard database; one page per run.
func KPIsToProperties(r *report.Report) notionapi.Properties {
	k := r.KPIs
	props := notionapi.Properties{
		"Run":                titleProp(r.RunID),
		"As Of":              richTextProp(r.AsOf.String()),
		"Total Transactions": numberProp(float64(k.TotalTransactions)),
		"Active Customers":   numberProp(float64(k.ActiveCustomers)),
		"Inactive Customers": numberProp(float64(k.InactiveCustomers)),
		"Fraud Count":        numberProp(float64(k.FraudCount)),
	}
	total, _ := k.TotalSpend.Float64()
	props["Total Spend"] = numberProp(total)
	setDecimal(props, "Avg Transaction", k.AvgTransaction)
	setDecimal(props, "Fraud Rate %", k.FraudRatePct)
	return props
}
