package source

import (
	"io"

	"github.com/pkg/errors"
	"github.com/segmentio/parquet-go"

	"fpetkovski/stream-aggregate/aggregate"
)

// Parquet reads key/value records from the row groups of a parquet file,
// one batch-size step at a time.
type Parquet struct {
	file      *parquet.File
	batchSize int

	keyColumn   int
	valueColumn int

	rowGroup int
	rows     parquet.Rows
	buffer   []parquet.Row
	pending  []parquet.Row
	batches  int
}

func NewParquet(file *parquet.File, keyColumn, valueColumn string, batchSize int) (*Parquet, error) {
	key, ok := file.Schema().Lookup(keyColumn)
	if !ok {
		return nil, errors.Errorf("key column %q not found in schema", keyColumn)
	}
	value, ok := file.Schema().Lookup(valueColumn)
	if !ok {
		return nil, errors.Errorf("value column %q not found in schema", valueColumn)
	}

	return &Parquet{
		file:        file,
		batchSize:   batchSize,
		keyColumn:   key.ColumnIndex,
		valueColumn: value.ColumnIndex,
		buffer:      make([]parquet.Row, batchSize),
	}, nil
}

func (s *Parquet) NextBatch() (aggregate.Batch[string], error) {
	index := s.batches
	s.batches++

	batch := make(aggregate.Batch[string], 0, s.batchSize)
	for len(batch) < s.batchSize {
		// Rows stashed when a previous batch was cut short by a
		// malformed record come first.
		if len(s.pending) > 0 {
			row := s.pending[0]
			s.pending = s.pending[1:]
			record, err := s.convertRow(row)
			if err != nil {
				return batch, &aggregate.RecordError{Batch: index, Offset: len(batch), Err: err}
			}
			batch = append(batch, record)
			continue
		}
		if s.rows == nil {
			if s.rowGroup == len(s.file.RowGroups()) {
				if len(batch) == 0 {
					return nil, io.EOF
				}
				return batch, nil
			}
			s.rows = s.file.RowGroups()[s.rowGroup].Rows()
			s.rowGroup++
		}

		n, err := s.rows.ReadRows(s.buffer[:s.batchSize-len(batch)])
		for i, row := range s.buffer[:n] {
			record, convErr := s.convertRow(row)
			if convErr != nil {
				s.stash(s.buffer[i+1 : n])
				return batch, &aggregate.RecordError{Batch: index, Offset: len(batch), Err: convErr}
			}
			batch = append(batch, record)
		}
		if err == io.EOF {
			if closeErr := s.rows.Close(); closeErr != nil {
				return batch, closeErr
			}
			s.rows = nil
			continue
		}
		if err != nil {
			return batch, err
		}
	}
	return batch, nil
}

// stash keeps the rows read after a malformed one so the next call resumes
// with them. The read buffer is reused by ReadRows, so the rows are cloned.
func (s *Parquet) stash(rows []parquet.Row) {
	s.pending = s.pending[:0]
	for _, row := range rows {
		s.pending = append(s.pending, row.Clone())
	}
}

func (s *Parquet) convertRow(row parquet.Row) (aggregate.Record[string], error) {
	var (
		record   aggregate.Record[string]
		foundKey bool
		foundVal bool
	)
	for _, value := range row {
		switch value.Column() {
		case s.keyColumn:
			record.Key = value.String()
			foundKey = true
		case s.valueColumn:
			converted, err := toFloat64(value)
			if err != nil {
				return record, err
			}
			record.Value = converted
			foundVal = true
		}
	}
	if !foundKey || record.Key == "" {
		return record, errors.New("missing key")
	}
	if !foundVal {
		return record, errors.New("missing value")
	}
	return record, nil
}

func toFloat64(value parquet.Value) (float64, error) {
	switch value.Kind() {
	case parquet.Double:
		return value.Double(), nil
	case parquet.Float:
		return float64(value.Float()), nil
	case parquet.Int64:
		return float64(value.Int64()), nil
	case parquet.Int32:
		return float64(value.Int32()), nil
	default:
		return 0, errors.Errorf("value has non-numeric kind %s", value.Kind())
	}
}

func (s *Parquet) BatchSize() int {
	return s.batchSize
}

func (s *Parquet) Close() error {
	if s.rows != nil {
		return s.rows.Close()
	}
	return nil
}
