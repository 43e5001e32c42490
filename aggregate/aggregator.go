package aggregate

import (
	"math"

	"github.com/pkg/errors"
)

// Aggregator folds batches of records into per-key running totals. Peak
// memory is one batch plus one accumulator per distinct key, independent of
// how many records the stream carries. Not safe for concurrent use.
type Aggregator[K comparable] struct {
	batchSize int
	newSum    NewSumFunc
	metrics   *Metrics

	totals  map[K]Sum
	batches int
}

type Option[K comparable] func(*Aggregator[K])

// WithSum selects the accumulator allocated for each distinct key.
func WithSum[K comparable](newSum NewSumFunc) Option[K] {
	return func(a *Aggregator[K]) {
		a.newSum = newSum
	}
}

// WithMetrics instruments the aggregator.
func WithMetrics[K comparable](m *Metrics) Option[K] {
	return func(a *Aggregator[K]) {
		a.metrics = m
	}
}

// New creates an aggregator for batches of at most batchSize records.
func New[K comparable](batchSize int, opts ...Option[K]) (*Aggregator[K], error) {
	if batchSize <= 0 {
		return nil, &ConfigurationError{BatchSize: batchSize}
	}
	a := &Aggregator[K]{
		batchSize: batchSize,
		newSum:    NewKahanSum,
		totals:    make(map[K]Sum),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Accumulate folds one batch into the running totals. Records are folded in
// order; a record with a NaN or infinite value stops the fold and the rest
// of the batch is dropped, while totals from earlier records in the same
// batch are kept. An empty batch is a no-op.
func (a *Aggregator[K]) Accumulate(batch Batch[K]) error {
	index := a.batches
	a.batches++
	if len(batch) > a.batchSize {
		return errors.Errorf("batch %d holds %d records, capacity is %d", index, len(batch), a.batchSize)
	}
	if a.metrics != nil {
		a.metrics.batches.Inc()
	}
	for offset, record := range batch {
		if math.IsNaN(record.Value) || math.IsInf(record.Value, 0) {
			if a.metrics != nil {
				a.metrics.recordErrors.Inc()
			}
			return &RecordError{
				Batch:  index,
				Offset: offset,
				Err:    errors.Errorf("value is not a finite number: %v", record.Value),
			}
		}
		sum, ok := a.totals[record.Key]
		if !ok {
			sum = a.newSum()
			a.totals[record.Key] = sum
			if a.metrics != nil {
				a.metrics.distinctKeys.Inc()
			}
		}
		sum.Add(record.Value)
		if a.metrics != nil {
			a.metrics.records.Inc()
		}
	}
	return nil
}

// Merge folds another aggregator's totals into this one. Both must use the
// same key domain; merging two aggregators produces the same totals as
// feeding both input streams to a single one.
func (a *Aggregator[K]) Merge(other *Aggregator[K]) {
	for key, otherSum := range other.totals {
		sum, ok := a.totals[key]
		if !ok {
			sum = a.newSum()
			a.totals[key] = sum
			if a.metrics != nil {
				a.metrics.distinctKeys.Inc()
			}
		}
		if mergeable, ok := sum.(mergeableSum); ok && mergeable.mergeFrom(otherSum) {
			continue
		}
		sum.Add(otherSum.Total())
	}
}

// Finalize returns a snapshot of the running totals. The snapshot is a
// copy; the aggregator can keep accumulating afterwards.
func (a *Aggregator[K]) Finalize() map[K]float64 {
	out := make(map[K]float64, len(a.totals))
	for key, sum := range a.totals {
		out[key] = sum.Total()
	}
	return out
}

// NumKeys reports how many distinct keys have been seen so far.
func (a *Aggregator[K]) NumKeys() int {
	return len(a.totals)
}

// BatchSize returns the configured batch capacity.
func (a *Aggregator[K]) BatchSize() int {
	return a.batchSize
}
