package srctest

import (
	"bytes"
	"strings"

	"github.com/segmentio/parquet-go"
)

type Row struct {
	Key   string  `parquet:"key,dict"`
	Value float64 `parquet:"value"`
}

// CreateParquet writes the given row groups into an in-memory parquet file.
func CreateParquet(parts [][]Row) (*parquet.File, error) {
	var buffer bytes.Buffer
	writer := parquet.NewGenericWriter[Row](&buffer,
		parquet.PageBufferSize(4),
	)

	for _, part := range parts {
		if _, err := writer.Write(part); err != nil {
			return nil, err
		}
		if err := writer.Flush(); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	readBuf := bytes.NewReader(buffer.Bytes())
	return parquet.OpenFile(readBuf, int64(len(buffer.Bytes())))
}

// CSV renders a header plus data rows as comma-separated text.
func CSV(header string, rows ...string) *strings.Reader {
	return strings.NewReader(header + "\n" + strings.Join(rows, "\n") + "\n")
}
