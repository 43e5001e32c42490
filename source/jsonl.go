package source

import (
	"bufio"
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"fpetkovski/stream-aggregate/aggregate"
)

// JSONL reads one JSON object per line and extracts the key and value
// fields from each. Lines with other fields are fine, the rest of the
// object is ignored.
type JSONL struct {
	scanner   *bufio.Scanner
	closer    io.Closer
	batchSize int

	keyField   string
	valueField string
	batches    int
}

// maxLineSize caps how long a single input line may be. Longer lines fail
// the whole source, not just the record.
const maxLineSize = 16 * 1024 * 1024

func NewJSONL(r io.Reader, keyField, valueField string, batchSize int) *JSONL {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	closer, _ := r.(io.Closer)
	return &JSONL{
		scanner:    scanner,
		closer:     closer,
		batchSize:  batchSize,
		keyField:   keyField,
		valueField: valueField,
	}
}

func (s *JSONL) NextBatch() (aggregate.Batch[string], error) {
	index := s.batches
	s.batches++

	batch := make(aggregate.Batch[string], 0, s.batchSize)
	for len(batch) < s.batchSize {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return batch, err
			}
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}

		record, err := s.parseLine(s.scanner.Bytes())
		if err != nil {
			return batch, &aggregate.RecordError{Batch: index, Offset: len(batch), Err: err}
		}
		batch = append(batch, record)
	}
	return batch, nil
}

func (s *JSONL) parseLine(line []byte) (aggregate.Record[string], error) {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(line, &row); err != nil {
		return aggregate.Record[string]{}, errors.Wrap(err, "decode line")
	}

	rawKey, ok := row[s.keyField]
	if !ok {
		return aggregate.Record[string]{}, errors.Errorf("missing key field %q", s.keyField)
	}
	var key string
	if err := json.Unmarshal(rawKey, &key); err != nil {
		return aggregate.Record[string]{}, errors.Wrapf(err, "decode key field %q", s.keyField)
	}

	rawValue, ok := row[s.valueField]
	if !ok {
		return aggregate.Record[string]{}, errors.Errorf("missing value field %q", s.valueField)
	}
	var value float64
	if err := json.Unmarshal(rawValue, &value); err != nil {
		return aggregate.Record[string]{}, errors.Wrapf(err, "decode value field %q", s.valueField)
	}

	return aggregate.Record[string]{Key: key, Value: value}, nil
}

func (s *JSONL) BatchSize() int {
	return s.batchSize
}

func (s *JSONL) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
