package aggregate

import (
	"fmt"
)

// ConfigurationError reports an invalid aggregator construction. No
// aggregator state exists when it is returned.
type ConfigurationError struct {
	BatchSize int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("batch size must be positive, got %d", e.BatchSize)
}

// RecordError reports a single malformed record. Batch is the zero-based
// index of the offending batch in the stream and Offset the record's
// position within it. Totals folded before the offending record are intact;
// the remainder of that batch was not processed.
type RecordError struct {
	Batch  int
	Offset int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("batch %d, record %d: %v", e.Batch, e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
