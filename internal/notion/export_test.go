package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/card-analytics/internal/report"
)

type mockNotion struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePageFunc    func(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

func (m *mockNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return m.CreatePageFunc(ctx, databaseID, properties)
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return m.UpdatePageFunc(ctx, pageID, properties)
}

func (m *mockNotion) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return m.QueryDatabaseFunc(ctx, databaseID, filter)
}

var _ NotionService = (*mockNotion)(nil)

func emptyQuery(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{}, nil
}

func TestCategorySummaryToProperties(t *testing.T) {
	c := report.CategorySummary{
		CategoryID: "g1",
		Name:       "grocery_pos",
		TxnCount:   12,
		TotalSpend: decimal.NullDecimal{Decimal: decimal.RequireFromString("340.5"), Valid: true},
	}

	props := CategorySummaryToProperties(c)

	title, ok := props["Category"].(notionapi.TitleProperty)
	if !ok || title.Title[0].Text.Content != "grocery_pos" {
		t.Errorf("title property = %+v", props["Category"])
	}
	if n, ok := props["Total Spend"].(notionapi.NumberProperty); !ok || n.Number != 340.5 {
		t.Errorf("total spend = %+v", props["Total Spend"])
	}
	// Null metrics are absent, not zero.
	if _, ok := props["Avg Txn"]; ok {
		t.Error("null avg must not be mapped")
	}
}

func TestExporter_UpsertCreatesAndUpdates(t *testing.T) {
	existingPage := notionapi.Page{
		ID: "page-1",
		Properties: notionapi.Properties{
			"Category": &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: "grocery_pos"}},
			},
		},
	}

	var created, updated []string
	svc := &mockNotion{
		QueryDatabaseFunc: func(_ context.Context, _ string, _ *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{existingPage}}, nil
		},
		CreatePageFunc: func(_ context.Context, _ string, props notionapi.Properties) (*notionapi.Page, error) {
			created = append(created, props["Category"].(notionapi.TitleProperty).Title[0].Text.Content)
			return &notionapi.Page{}, nil
		},
		UpdatePageFunc: func(_ context.Context, pageID string, _ notionapi.Properties) (*notionapi.Page, error) {
			updated = append(updated, pageID)
			return &notionapi.Page{}, nil
		},
	}

	e := &Exporter{
		Service: svc,
		DBs:     Databases{Categories: "db-cat"},
		Log:     zerolog.Nop(),
	}

	rep := &report.Report{
		Categories: []report.CategorySummary{
			{CategoryID: "g1", Name: "grocery_pos"},
			{CategoryID: "g2", Name: "gas_transport"},
		},
	}

	if err := e.Export(context.Background(), rep); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if len(updated) != 1 || updated[0] != "page-1" {
		t.Errorf("updated = %v, want [page-1]", updated)
	}
	if len(created) != 1 || created[0] != "gas_transport" {
		t.Errorf("created = %v, want [gas_transport]", created)
	}
}

func TestExporter_DryRunTouchesNothing(t *testing.T) {
	svc := &mockNotion{
		QueryDatabaseFunc: emptyQuery,
		CreatePageFunc: func(context.Context, string, notionapi.Properties) (*notionapi.Page, error) {
			t.Fatal("dry run must not create pages")
			return nil, nil
		},
		UpdatePageFunc: func(context.Context, string, notionapi.Properties) (*notionapi.Page, error) {
			t.Fatal("dry run must not update pages")
			return nil, nil
		},
	}

	e := &Exporter{
		Service: svc,
		DBs:     Databases{Categories: "db-cat", KPIs: "db-kpi"},
		Log:     zerolog.Nop(),
		DryRun:  true,
	}

	rep := &report.Report{
		RunID:      "run-1",
		Categories: []report.CategorySummary{{Name: "grocery_pos"}},
	}

	if err := e.Export(context.Background(), rep); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
}

func TestExporter_SkipsUnconfiguredDatabases(t *testing.T) {
	e := &Exporter{Service: &mockNotion{}, Log: zerolog.Nop()}
	if err := e.Export(context.Background(), &report.Report{}); err != nil {
		t.Fatalf("Export with no databases failed: %v", err)
	}
}
