package source

import (
	"database/sql"
	"io"

	"github.com/pkg/errors"

	"fpetkovski/stream-aggregate/aggregate"
)

// SQL batches the rows of a query result. The query must select exactly two
// columns, the key first and the numeric value second; the driver is
// whatever the caller opened the database with.
type SQL struct {
	rows      *sql.Rows
	batchSize int
	batches   int
}

func NewSQL(rows *sql.Rows, batchSize int) (*SQL, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read result columns")
	}
	if len(columns) != 2 {
		return nil, errors.Errorf("query must select key and value columns, got %d columns", len(columns))
	}
	return &SQL{rows: rows, batchSize: batchSize}, nil
}

func (s *SQL) NextBatch() (aggregate.Batch[string], error) {
	index := s.batches
	s.batches++

	batch := make(aggregate.Batch[string], 0, s.batchSize)
	for len(batch) < s.batchSize {
		if !s.rows.Next() {
			if err := s.rows.Err(); err != nil {
				return batch, err
			}
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}

		var (
			key   string
			value float64
		)
		if err := s.rows.Scan(&key, &value); err != nil {
			return batch, &aggregate.RecordError{Batch: index, Offset: len(batch), Err: err}
		}
		if key == "" {
			return batch, &aggregate.RecordError{Batch: index, Offset: len(batch), Err: errors.New("missing key")}
		}
		batch = append(batch, aggregate.Record[string]{Key: key, Value: value})
	}
	return batch, nil
}

func (s *SQL) BatchSize() int {
	return s.batchSize
}

func (s *SQL) Close() error {
	return s.rows.Close()
}
