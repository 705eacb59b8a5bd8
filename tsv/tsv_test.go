package tsv

import (
	"bytes"
	"compress/gzip"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alDuncanson/dimreduce/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const sampleInput = "A\t1.0\t2.0\t3.0\nB\t4.0\t5.0\t6.0\n"

func writeGzip(t *testing.T, path string, content string) {
	t.Helper()
	var buffer bytes.Buffer
	gzipWriter := gzip.NewWriter(&buffer)
	_, err := gzipWriter.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gzipWriter.Close())
	require.NoError(t, os.WriteFile(path, buffer.Bytes(), 0o644))
}

func TestRead(t *testing.T) {
	records, err := Read(strings.NewReader(sampleInput))
	require.NoError(t, err)

	assert.Equal(t, []dataset.Record{
		{Label: "A", Features: []float64{1, 2, 3}},
		{Label: "B", Features: []float64{4, 5, 6}},
	}, records)
}

func TestReadStripsTrailingWhitespace(t *testing.T) {
	records, err := Read(strings.NewReader("A\t1\t2 \r\nB\t3\t4\t\n"))
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, []float64{1, 2}, records[0].Features)
	assert.Equal(t, []float64{3, 4}, records[1].Features)
}

func TestReadAcceptsSpecialValues(t *testing.T) {
	records, err := Read(strings.NewReader("x\t1e-3\tnan\t-inf\t 7 \n"))
	require.NoError(t, err)

	features := records[0].Features
	assert.Equal(t, 1e-3, features[0])
	assert.True(t, math.IsNaN(features[1]))
	assert.True(t, math.IsInf(features[2], -1))
	assert.Equal(t, 7.0, features[3])
}

func TestReadBlankLineHasNoFeatures(t *testing.T) {
	records, err := Read(strings.NewReader("A\t1\n\nB\t2\n"))
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "", records[1].Label)
	assert.Empty(t, records[1].Features)
}

func TestReadParseError(t *testing.T) {
	_, err := Read(strings.NewReader("A\t1\t2\nB\t3\tfoo\n"))
	require.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "line 2, column 3")
	assert.Contains(t, err.Error(), `"foo"`)
}

func TestReadEmptyField(t *testing.T) {
	_, err := Read(strings.NewReader("A\t\t2\n"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.tsv"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestReadFileGzipMatchesPlain(t *testing.T) {
	directory := t.TempDir()
	plainPath := filepath.Join(directory, "data.tsv")
	gzipPath := filepath.Join(directory, "data.tsv.gz")
	mislabeledPath := filepath.Join(directory, "data.txt")

	require.NoError(t, os.WriteFile(plainPath, []byte(sampleInput), 0o644))
	writeGzip(t, gzipPath, sampleInput)
	writeGzip(t, mislabeledPath, sampleInput)

	plain, err := ReadFile(plainPath)
	require.NoError(t, err)

	compressed, err := ReadFile(gzipPath)
	require.NoError(t, err)
	assert.Equal(t, plain, compressed)

	sniffed, err := ReadFile(mislabeledPath)
	require.NoError(t, err)
	assert.Equal(t, plain, sniffed)
}

func TestReadFileCorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gz")
	require.NoError(t, os.WriteFile(path, []byte(sampleInput), 0o644))

	_, err := ReadFile(path)
	assert.Error(t, err)
}

func TestCompressionFromSuffix(t *testing.T) {
	tests := []struct {
		path string
		want compression
	}{
		{"data.tsv", compressionNone},
		{"data.tsv.gz", compressionGzip},
		{"DATA.TSV.GZ", compressionGzip},
		{"data.bz2", compressionBzip2},
		{"gz", compressionNone},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, compressionFromSuffix(tc.path), tc.path)
	}
}

func TestFormat(t *testing.T) {
	coordinates := mat.NewDense(2, 2, []float64{1, -0.5, 1.0 / 3.0, 1234.5678909})

	output, err := Format([]string{"A", "B"}, coordinates)
	require.NoError(t, err)
	assert.Equal(t, "A\t1.000000\t-0.500000\nB\t0.333333\t1234.567891\n", string(output))
}

func TestFormatNonFinite(t *testing.T) {
	coordinates := mat.NewDense(1, 3, []float64{math.NaN(), math.Inf(1), math.Inf(-1)})

	output, err := Format([]string{"x"}, coordinates)
	require.NoError(t, err)
	assert.Equal(t, "x\tnan\tinf\t-inf\n", string(output))
}

func TestFormatRowMismatch(t *testing.T) {
	_, err := Format([]string{"A"}, mat.NewDense(2, 1, nil))
	assert.ErrorIs(t, err, ErrRowMismatch)
}

func TestWriteFile(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "out.tsv")

	require.NoError(t, WriteFile(path, []byte("A\t1.000000\n")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A\t1.000000\n", string(content))

	entries, err := os.ReadDir(directory)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteFileThroughSymlink(t *testing.T) {
	directory := t.TempDir()
	target := filepath.Join(directory, "real.tsv")
	link := filepath.Join(directory, "link.tsv")
	require.NoError(t, os.WriteFile(target, []byte("old\n"), 0o644))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	require.NoError(t, WriteFile(link, []byte("A\t1.000000\n")))

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.True(t, info.Mode()&fs.ModeSymlink != 0, "link was replaced")

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "A\t1.000000\n", string(content))
}

func TestWriteFileDanglingSymlink(t *testing.T) {
	directory := t.TempDir()
	target := filepath.Join(directory, "created.tsv")
	link := filepath.Join(directory, "link.tsv")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	require.NoError(t, WriteFile(link, []byte("A\t1.000000\n")))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "A\t1.000000\n", string(content))
}

func TestWriteFileMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "out.tsv")

	err := WriteFile(path, []byte("x"))
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}

func TestWrite(t *testing.T) {
	var buffer bytes.Buffer
	require.NoError(t, Write(&buffer, []byte("A\t1.000000\n")))
	assert.Equal(t, "A\t1.000000\n", buffer.String())
}
