package report

import (
	"context"
	"fmt"
	"sync"
)

// Cache keeps the most recent report in memory so the API can serve summary
// reads without re-running the analysis. It satisfies SummarySink and can be
// chained in front of a durable sink.
type Cache struct {
	mu     sync.RWMutex
	latest *Report
	next   SummarySink
}

// NewCache builds a Cache; next may be nil when no durable sink is wanted.
func NewCache(next SummarySink) *Cache {
	return &Cache{next: next}
}

// StoreReport retains the report and forwards it to the wrapped sink.
func (c *Cache) StoreReport(ctx context.Context, r *Report) error {
	if c.next != nil {
		if err := c.next.StoreReport(ctx, r); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.latest = r
	c.mu.Unlock()
	return nil
}

// Latest returns the most recently stored report.
func (c *Cache) Latest() (*Report, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil, fmt.Errorf("Latest: no report computed yet")
	}
	return c.latest, nil
}

var _ SummarySink = (*Cache)(nil)
