package source

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"fpetkovski/stream-aggregate/aggregate"
)

// CSV reads key/value records from comma-separated input. The first row
// must be a header naming the key and value columns.
type CSV struct {
	reader    *csv.Reader
	closer    io.Closer
	batchSize int

	keyColumn   int
	valueColumn int
	batches     int
}

func NewCSV(r io.Reader, keyColumn, valueColumn string, batchSize int) (*CSV, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("input has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	keyIndex, valueIndex := -1, -1
	for i, name := range header {
		switch name {
		case keyColumn:
			keyIndex = i
		case valueColumn:
			valueIndex = i
		}
	}
	if keyIndex < 0 {
		return nil, errors.Errorf("key column %q not found in header", keyColumn)
	}
	if valueIndex < 0 {
		return nil, errors.Errorf("value column %q not found in header", valueColumn)
	}

	closer, _ := r.(io.Closer)
	return &CSV{
		reader:      reader,
		closer:      closer,
		batchSize:   batchSize,
		keyColumn:   keyIndex,
		valueColumn: valueIndex,
	}, nil
}

func (s *CSV) NextBatch() (aggregate.Batch[string], error) {
	index := s.batches
	s.batches++

	batch := make(aggregate.Batch[string], 0, s.batchSize)
	for len(batch) < s.batchSize {
		row, err := s.reader.Read()
		if err == io.EOF {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
		if err != nil {
			return batch, &aggregate.RecordError{Batch: index, Offset: len(batch), Err: err}
		}

		record, err := parseRow(row[s.keyColumn], row[s.valueColumn])
		if err != nil {
			return batch, &aggregate.RecordError{Batch: index, Offset: len(batch), Err: err}
		}
		batch = append(batch, record)
	}
	return batch, nil
}

func (s *CSV) BatchSize() int {
	return s.batchSize
}

func (s *CSV) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func parseRow(key, value string) (aggregate.Record[string], error) {
	if key == "" {
		return aggregate.Record[string]{}, errors.New("missing key")
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return aggregate.Record[string]{}, errors.Wrapf(err, "parse value %q", value)
	}
	return aggregate.Record[string]{Key: key, Value: parsed}, nil
}
