// Package csvload reads the four star-schema relations from CSV files and
// assembles them into a model.Dataset. Files are resolved through a Fetcher
// so the same loader serves local paths and gs:// URIs.
package csvload

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/card-analytics/internal/model"
)

// Files names the four input CSVs. Each entry is a path or URI understood by
// the configured Fetcher.
type Files struct {
	Transactions string
	Customers    string
	Merchants    string
	Categories   string
}

// Fetcher resolves a file reference to its raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// LocalFetcher reads files from the local filesystem.
type LocalFetcher struct{}

func (LocalFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading %q: %w", ref, err)
	}
	return data, nil
}

// Source implements report.DatasetSource over CSV files.
type Source struct {
	Files   Files
	Fetcher Fetcher
	Log     zerolog.Logger
}

// NewSource builds a Source; a nil fetcher defaults to local files.
func NewSource(files Files, fetcher Fetcher, log zerolog.Logger) *Source {
	if fetcher == nil {
		fetcher = LocalFetcher{}
	}
	return &Source{Files: files, Fetcher: fetcher, Log: log}
}

// LoadDataset fetches and parses all four relations.
func (s *Source) LoadDataset(ctx context.Context) (*model.Dataset, error) {
	ds := &model.Dataset{}

	for _, rel := range []struct {
		name string
		ref  string
		load func([]byte) error
	}{
		{"customers", s.Files.Customers, func(b []byte) error {
			var err error
			ds.Customers, err = ReadCustomers(b)
			return err
		}},
		{"merchants", s.Files.Merchants, func(b []byte) error {
			var err error
			ds.Merchants, err = ReadMerchants(b)
			return err
		}},
		{"categories", s.Files.Categories, func(b []byte) error {
			var err error
			ds.Categories, err = ReadCategories(b)
			return err
		}},
		{"transactions", s.Files.Transactions, func(b []byte) error {
			var err error
			ds.Transactions, err = ReadTransactions(b)
			return err
		}},
	} {
		if rel.ref == "" {
			return nil, fmt.Errorf("LoadDataset: no %s file configured", rel.name)
		}
		data, err := s.Fetcher.Fetch(ctx, rel.ref)
		if err != nil {
			return nil, fmt.Errorf("LoadDataset: fetching %s: %w", rel.name, err)
		}
		if err := rel.load(data); err != nil {
			return nil, fmt.Errorf("LoadDataset: parsing %s: %w", rel.name, err)
		}
		s.Log.Debug().Str("relation", rel.name).Str("ref", rel.ref).Msg("Relation loaded")
	}

	s.Log.Info().
		Int("transactions", len(ds.Transactions)).
		Int("customers", len(ds.Customers)).
		Int("merchants", len(ds.Merchants)).
		Int("categories", len(ds.Categories)).
		Msg("Dataset loaded from CSV")

	return ds, nil
}
