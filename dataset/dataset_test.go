package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	records := []Record{
		{Label: "A", Features: []float64{1, 2, 3}},
		{Label: "B", Features: []float64{4, 5, 6}},
	}

	ds, err := New(records)
	require.NoError(t, err)

	rows, cols := ds.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []string{"A", "B"}, ds.Labels)
	assert.Equal(t, 5.0, ds.Features.At(1, 1))
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, MatrixRows(ds.Features))
}

func TestNewDoesNotAliasRecords(t *testing.T) {
	records := []Record{{Label: "A", Features: []float64{1, 2}}}

	ds, err := New(records)
	require.NoError(t, err)

	records[0].Features[0] = 100
	assert.Equal(t, 1.0, ds.Features.At(0, 0))
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    error
	}{
		{"empty", nil, ErrEmpty},
		{"no features", []Record{{Label: "A"}, {Label: "B"}}, ErrNoFeatures},
		{"ragged", []Record{
			{Label: "A", Features: []float64{1, 2}},
			{Label: "B", Features: []float64{1, 2, 3}},
		}, ErrShapeMismatch},
		{"blank line", []Record{
			{Label: "A", Features: []float64{1, 2}},
			{Label: ""},
		}, ErrShapeMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.records)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestShapeMismatchNamesRow(t *testing.T) {
	_, err := New([]Record{
		{Label: "A", Features: []float64{1}},
		{Label: "B", Features: []float64{1}},
		{Label: "C", Features: []float64{1, 2}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3 has 2 features, expected 1")
}
