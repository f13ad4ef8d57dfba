// Package analytics implements the batch KPI computations over the
// transaction fact table: grouped aggregation, RFM segmentation, fraud-rate
// slicing and time-series analysis. Everything here is a pure function over
// immutable inputs; callers own the outputs.
package analytics

import (
	"errors"
	"fmt"
)

// ErrEmptyDataset is returned by operations that are meaningless on zero
// rows (quintile assignment in particular).
var ErrEmptyDataset = errors.New("analytics: empty dataset")

// InvalidGroupKeyError reports a grouping dimension that does not exist on
// the transaction record.
type InvalidGroupKeyError struct {
	Key string
}

func (e *InvalidGroupKeyError) Error() string {
	return fmt.Sprintf("analytics: invalid group key %q", e.Key)
}

// InvalidWindowSizeError reports a non-positive rolling or moving-average
// window.
type InvalidWindowSizeError struct {
	Size int
}

func (e *InvalidWindowSizeError) Error() string {
	return fmt.Sprintf("analytics: invalid window size %d", e.Size)
}
