package aggregate

import (
	"io"
)

// Record is the atomic unit being aggregated: a discrete key and the
// numeric quantity summed for that key.
type Record[K comparable] struct {
	Key   K
	Value float64
}

// Batch is a bounded slice of the record stream. Batch boundaries carry no
// meaning for the final totals, they only cap how much input is held in
// memory at once.
type Batch[K comparable] []Record[K]

// Source produces the record stream in bounded batches. NextBatch returns
// io.EOF once the stream is exhausted; an empty batch is not end-of-stream.
// When a batch is cut short by a malformed record, NextBatch returns the
// records parsed before it together with a *RecordError, and the next call
// resumes after the offending record.
type Source[K comparable] interface {
	io.Closer
	NextBatch() (Batch[K], error)
	BatchSize() int
}
