package source

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"fpetkovski/stream-aggregate/aggregate"
	"fpetkovski/stream-aggregate/srctest"
)

func TestCSVBatches(t *testing.T) {
	input := srctest.CSV("vendor,amount",
		"1,100.0",
		"2,50.0",
		"1,25.0",
	)
	src, err := NewCSV(input, "vendor", "amount", 2)
	require.NoError(t, err)

	batch, err := src.NextBatch()
	require.NoError(t, err)
	require.Equal(t, aggregate.Batch[string]{
		{Key: "1", Value: 100.0},
		{Key: "2", Value: 50.0},
	}, batch)

	batch, err = src.NextBatch()
	require.NoError(t, err)
	require.Equal(t, aggregate.Batch[string]{
		{Key: "1", Value: 25.0},
	}, batch)

	_, err = src.NextBatch()
	require.Equal(t, io.EOF, err)
	require.NoError(t, src.Close())
}

func TestCSVColumnLookup(t *testing.T) {
	// Column order in the file does not matter, only the header names do.
	input := srctest.CSV("amount,vendor", "2.5,a")
	src, err := NewCSV(input, "vendor", "amount", 10)
	require.NoError(t, err)

	batch, err := src.NextBatch()
	require.NoError(t, err)
	require.Equal(t, aggregate.Batch[string]{{Key: "a", Value: 2.5}}, batch)
}

func TestCSVUnknownColumn(t *testing.T) {
	input := srctest.CSV("vendor,amount", "a,1")
	_, err := NewCSV(input, "vendor", "revenue", 10)
	require.Error(t, err)
}

func TestCSVEmptyInput(t *testing.T) {
	_, err := NewCSV(srctest.CSV(""), "vendor", "amount", 10)
	require.Error(t, err)
}

func TestCSVMalformedValue(t *testing.T) {
	input := srctest.CSV("vendor,amount",
		"a,1",
		"b,not-a-number",
		"c,3",
	)
	src, err := NewCSV(input, "vendor", "amount", 10)
	require.NoError(t, err)

	batch, err := src.NextBatch()
	recErr, ok := err.(*aggregate.RecordError)
	require.True(t, ok)
	require.Equal(t, 0, recErr.Batch)
	require.Equal(t, 1, recErr.Offset)
	require.Equal(t, aggregate.Batch[string]{{Key: "a", Value: 1}}, batch)

	// Reading resumes after the malformed row.
	batch, err = src.NextBatch()
	require.NoError(t, err)
	require.Equal(t, aggregate.Batch[string]{{Key: "c", Value: 3}}, batch)
}

func TestCSVMissingKey(t *testing.T) {
	input := srctest.CSV("vendor,amount", ",5")
	src, err := NewCSV(input, "vendor", "amount", 10)
	require.NoError(t, err)

	_, err = src.NextBatch()
	require.IsType(t, &aggregate.RecordError{}, err)
}

func TestCSVAggregation(t *testing.T) {
	input := srctest.CSV("vendor,amount",
		"1,100.0",
		"2,50.0",
		"1,25.0",
		"2,75.0",
		"1,10.0",
	)
	src, err := NewCSV(input, "vendor", "amount", 3)
	require.NoError(t, err)

	agg, err := aggregate.New[string](3)
	require.NoError(t, err)
	recordErrs, err := aggregate.Run(context.Background(), src, agg)
	require.NoError(t, err)
	require.Empty(t, recordErrs)
	require.Equal(t, map[string]float64{"1": 135.0, "2": 125.0}, agg.Finalize())
}
