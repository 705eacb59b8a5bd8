package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"
)

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embedding.png")
	coordinates := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 5, 5, 6, 5})

	err := Save(path, []string{"a", "b", "c", "d"}, coordinates, Options{
		Title:       "UMAP",
		ColumnNames: []string{"UMAP1", "UMAP2"},
		Clusters:    []int{0, 0, 1, -1},
		Size:        2 * vg.Inch,
	})
	require.NoError(t, err)

	header := make([]byte, 8)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Read(header)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), header)
}

func TestSaveSVG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embedding.svg")
	err := Save(path, []string{"a", "b"}, mat.NewDense(2, 3, []float64{0, 1, 2, 3, 4, 5}), Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestSaveUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embedding.xyz")
	err := Save(path, []string{"a", "b"}, mat.NewDense(2, 2, []float64{0, 1, 2, 3}), Options{})
	assert.Error(t, err)
}

func TestNewTooFewDims(t *testing.T) {
	_, err := New([]string{"a", "b"}, mat.NewDense(2, 1, []float64{0, 1}), Options{})
	assert.ErrorIs(t, err, ErrTooFewDims)
}

func TestNewRowMismatch(t *testing.T) {
	coordinates := mat.NewDense(2, 2, []float64{0, 1, 2, 3})

	_, err := New([]string{"a"}, coordinates, Options{})
	assert.ErrorIs(t, err, ErrRowMismatch)

	_, err = New([]string{"a", "b"}, coordinates, Options{Clusters: []int{0}})
	assert.ErrorIs(t, err, ErrRowMismatch)
}

func TestGroupByCluster(t *testing.T) {
	coordinates := mat.NewDense(5, 2, []float64{
		0, 0,
		1, 1,
		2, 2,
		3, 3,
		4, 4,
	})

	groups := groupByCluster(coordinates, []int{2, -1, 0, 2, -1})
	require.Len(t, groups, 3, "cluster 1 is empty and dropped")

	assert.Equal(t, -1, groups[0].cluster)
	assert.Equal(t, "noise", groups[0].name())
	assert.Len(t, groups[0].points, 2)
	assert.Equal(t, 0, groups[1].cluster)
	assert.Equal(t, 2, groups[2].cluster)
	assert.Equal(t, "cluster 2", groups[2].name())
	assert.Equal(t, 3.0, groups[2].points[1].X)

	single := groupByCluster(coordinates, nil)
	require.Len(t, single, 1)
	assert.Len(t, single[0].points, 5)
}
