package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/card-analytics/internal/analytics"
	"github.com/dvloznov/card-analytics/internal/report"
)

// Databases names the three dashboard databases the exporter writes to.
// Empty IDs disable the corresponding export.
type Databases struct {
	Categories string
	Fraud      string
	KPIs       string
}

// Exporter implements report.Exporter: it upserts summary pages into the
// dashboard databases, keyed by page title. Existing pages are updated in
// place so dashboard links survive re-runs.
type Exporter struct {
	Service NotionService
	DBs     Databases
	Log     zerolog.Logger
	DryRun  bool
}

var _ report.Exporter = (*Exporter)(nil)

// Export pushes category, fraud and KPI summaries to Notion.
func (e *Exporter) Export(ctx context.Context, r *report.Report) error {
	if e.DBs.Categories != "" {
		if err := e.exportCategories(ctx, r); err != nil {
			return fmt.Errorf("Export: categories: %w", err)
		}
	}
	if e.DBs.Fraud != "" {
		if err := e.exportFraud(ctx, r); err != nil {
			return fmt.Errorf("Export: fraud: %w", err)
		}
	}
	if e.DBs.KPIs != "" {
		if err := e.exportKPIs(ctx, r); err != nil {
			return fmt.Errorf("Export: kpis: %w", err)
		}
	}
	return nil
}

func (e *Exporter) exportCategories(ctx context.Context, r *report.Report) error {
	existing, err := e.pagesByTitle(ctx, e.DBs.Categories)
	if err != nil {
		return err
	}

	for _, c := range r.Categories {
		props := CategorySummaryToProperties(c)
		if err := e.upsert(ctx, e.DBs.Categories, c.Name, props, existing); err != nil {
			return err
		}
	}
	e.Log.Info().Int("categories", len(r.Categories)).Msg("Category summaries exported to Notion")
	return nil
}

func (e *Exporter) exportFraud(ctx context.Context, r *report.Report) error {
	existing, err := e.pagesByTitle(ctx, e.DBs.Fraud)
	if err != nil {
		return err
	}

	var count int
	for _, group := range []struct {
		slicing string
		slices  []analytics.FraudSlice
	}{
		{"category", r.Fraud.ByCategory},
		{"merchant", r.Fraud.ByMerchant},
		{"hour", r.Fraud.ByHour},
		{"amount_bucket", r.Fraud.ByAmountBucket},
	} {
		for _, s := range group.slices {
			props := FraudSliceToProperties(group.slicing, s.Key, s.FraudCount, s.TotalCount, s.FraudRatePct)
			title := group.slicing + " / " + s.Key
			if err := e.upsert(ctx, e.DBs.Fraud, title, props, existing); err != nil {
				return err
			}
			count++
		}
	}
	e.Log.Info().Int("slices", count).Msg("Fraud slices exported to Notion")
	return nil
}

func (e *Exporter) exportKPIs(ctx context.Context, r *report.Report) error {
	// KPI pages are per-run, so no upsert: every run gets its own page.
	props := KPIsToProperties(r)
	if e.DryRun {
		e.Log.Info().Str("run_id", r.RunID).Msg("[DRY RUN] Would create KPI page")
		return nil
	}
	if _, err := e.Service.CreatePage(ctx, e.DBs.KPIs, props); err != nil {
		return err
	}
	e.Log.Info().Str("run_id", r.RunID).Msg("KPI page exported to Notion")
	return nil
}

// upsert creates the page or updates the page whose title matches.
func (e *Exporter) upsert(ctx context.Context, databaseID, title string, props notionapi.Properties, existing map[string]string) error {
	if e.DryRun {
		e.Log.Info().Str("title", title).Msg("[DRY RUN] Would upsert Notion page")
		return nil
	}

	if pageID, ok := existing[title]; ok {
		if _, err := e.Service.UpdatePage(ctx, pageID, props); err != nil {
			return fmt.Errorf("updating page %q: %w", title, err)
		}
		return nil
	}

	if _, err := e.Service.CreatePage(ctx, databaseID, props); err != nil {
		return fmt.Errorf("creating page %q: %w", title, err)
	}
	return nil
}

// pagesByTitle walks the whole database and maps page title -> page ID.
func (e *Exporter) pagesByTitle(ctx context.Context, databaseID string) (map[string]string, error) {
	out := make(map[string]string)

	req := &notionapi.DatabaseQueryRequest{PageSize: 100}
	for {
		resp, err := e.Service.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("querying database %s: %w", databaseID, err)
		}

		for _, page := range resp.Results {
			if title := extractTitle(page); title != "" {
				out[title] = string(page.ID)
			}
		}

		if !resp.HasMore {
			return out, nil
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

// extractTitle pulls the title text out of whichever property is the title.
func extractTitle(page notionapi.Page) string {
	for _, prop := range page.Properties {
		title, ok := prop.(*notionapi.TitleProperty)
		if !ok || len(title.Title) == 0 {
			continue
		}
		var out string
		for _, rt := range title.Title {
			out += rt.PlainText
		}
		return out
	}
	return ""
}
