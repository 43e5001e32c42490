package source

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"fpetkovski/stream-aggregate/aggregate"
	"fpetkovski/stream-aggregate/srctest"
)

func TestParquetBatches(t *testing.T) {
	file, err := srctest.CreateParquet([][]srctest.Row{
		{
			{Key: "a", Value: 1},
			{Key: "b", Value: 2},
			{Key: "a", Value: 3},
		},
		{
			{Key: "c", Value: 4},
		},
	})
	require.NoError(t, err)

	src, err := NewParquet(file, "key", "value", 2)
	require.NoError(t, err)

	batch, err := src.NextBatch()
	require.NoError(t, err)
	require.Equal(t, aggregate.Batch[string]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
	}, batch)

	// Batches are filled across row group boundaries.
	batch, err = src.NextBatch()
	require.NoError(t, err)
	require.Equal(t, aggregate.Batch[string]{
		{Key: "a", Value: 3},
		{Key: "c", Value: 4},
	}, batch)

	_, err = src.NextBatch()
	require.Equal(t, io.EOF, err)
	require.NoError(t, src.Close())
}

func TestParquetResumesAfterMalformedRow(t *testing.T) {
	file, err := srctest.CreateParquet([][]srctest.Row{
		{
			{Key: "a", Value: 1},
			{Key: "", Value: 5},
			{Key: "b", Value: 2},
		},
	})
	require.NoError(t, err)

	src, err := NewParquet(file, "key", "value", 3)
	require.NoError(t, err)

	batch, err := src.NextBatch()
	recErr, ok := err.(*aggregate.RecordError)
	require.True(t, ok)
	require.Equal(t, 0, recErr.Batch)
	require.Equal(t, 1, recErr.Offset)
	require.Equal(t, aggregate.Batch[string]{{Key: "a", Value: 1}}, batch)

	// The row after the malformed one is delivered, not dropped.
	batch, err = src.NextBatch()
	require.NoError(t, err)
	require.Equal(t, aggregate.Batch[string]{{Key: "b", Value: 2}}, batch)

	_, err = src.NextBatch()
	require.Equal(t, io.EOF, err)
}

func TestParquetUnknownColumn(t *testing.T) {
	file, err := srctest.CreateParquet([][]srctest.Row{
		{{Key: "a", Value: 1}},
	})
	require.NoError(t, err)

	_, err = NewParquet(file, "key", "revenue", 2)
	require.Error(t, err)
}

func TestParquetAggregation(t *testing.T) {
	file, err := srctest.CreateParquet([][]srctest.Row{
		{
			{Key: "1", Value: 100.0},
			{Key: "2", Value: 50.0},
		},
		{
			{Key: "1", Value: 25.0},
			{Key: "2", Value: 75.0},
			{Key: "1", Value: 10.0},
		},
	})
	require.NoError(t, err)

	src, err := NewParquet(file, "key", "value", 3)
	require.NoError(t, err)

	agg, err := aggregate.New[string](3)
	require.NoError(t, err)
	recordErrs, err := aggregate.Run(context.Background(), src, agg)
	require.NoError(t, err)
	require.Empty(t, recordErrs)
	require.Equal(t, map[string]float64{"1": 135.0, "2": 125.0}, agg.Finalize())
}
