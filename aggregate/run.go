package aggregate

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/pkg/errors"
)

// Run folds a source to exhaustion. Malformed records do not stop the run:
// the prefix of a cut-short batch is still folded, the RecordError is
// collected and the next batch is read. A source read failure or context
// cancellation ends the run, and whatever totals were accumulated up to
// that point remain available through Finalize.
func Run[K comparable](ctx context.Context, source Source[K], agg *Aggregator[K]) ([]*RecordError, error) {
	var recordErrs []*RecordError
	for {
		select {
		case <-ctx.Done():
			return recordErrs, ctx.Err()
		default:
		}

		batch, err := source.NextBatch()
		if len(batch) > 0 {
			if foldErr := agg.Accumulate(batch); foldErr != nil {
				var recErr *RecordError
				if !stderrors.As(foldErr, &recErr) {
					return recordErrs, foldErr
				}
				recordErrs = append(recordErrs, recErr)
			}
		}
		if err == io.EOF {
			return recordErrs, nil
		}
		if err != nil {
			var recErr *RecordError
			if stderrors.As(err, &recErr) {
				recordErrs = append(recordErrs, recErr)
				continue
			}
			return recordErrs, errors.Wrap(err, "read batch")
		}
	}
}
