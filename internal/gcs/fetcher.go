package gcs

import (
	"context"
	"fmt"
	"os"
)

// Fetcher resolves both gs:// URIs and local paths, so one dataset can mix
// cloud and on-disk files. It satisfies csvload.Fetcher.
type Fetcher struct {
	Storage StorageService
}

// NewFetcher wraps a StorageService; a nil service defaults to the real
// client.
func NewFetcher(svc StorageService) *Fetcher {
	if svc == nil {
		svc = NewClient()
	}
	return &Fetcher{Storage: svc}
}

// Fetch returns the bytes behind ref, from GCS or the local filesystem.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if IsURI(ref) {
		return f.Storage.Fetch(ctx, ref)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading %q: %w", ref, err)
	}
	return data, nil
}
