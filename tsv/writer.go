package tsv

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

var ErrRowMismatch = errors.New("label count does not match coordinate rows")

// Precision is the number of decimal places written for every coordinate.
const Precision = 6

// Format renders one line per row: the label followed by its coordinates,
// tab-separated, each with Precision decimal places.
func Format(labels []string, coordinates mat.Matrix) ([]byte, error) {
	numberOfRows, numberOfColumns := coordinates.Dims()
	if numberOfRows != len(labels) {
		return nil, fmt.Errorf("%w: %d labels, %d rows", ErrRowMismatch, len(labels), numberOfRows)
	}

	var output []byte
	for rowIndex, label := range labels {
		output = append(output, label...)
		for columnIndex := 0; columnIndex < numberOfColumns; columnIndex++ {
			output = append(output, '\t')
			output = appendCoordinate(output, coordinates.At(rowIndex, columnIndex))
		}
		output = append(output, '\n')
	}
	return output, nil
}

// appendCoordinate formats non-finite values as nan, inf and -inf.
func appendCoordinate(dst []byte, value float64) []byte {
	switch {
	case math.IsNaN(value):
		return append(dst, "nan"...)
	case math.IsInf(value, 1):
		return append(dst, "inf"...)
	case math.IsInf(value, -1):
		return append(dst, "-inf"...)
	}
	return strconv.AppendFloat(dst, value, 'f', Precision, 64)
}

// Write copies the formatted output to w in a single call.
func Write(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// WriteFile writes data to path. A regular file (or a missing one) is replaced
// atomically through a temporary file in the same directory, following
// symlinks to their target. Anything else, such as a named pipe, a device or
// /dev/stdout, is opened and written directly.
func WriteFile(path string, data []byte) error {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("resolving output: %w", err)
		}
		// A dangling link or a /proc fd link: let the kernel resolve it.
		if _, lstatErr := os.Lstat(path); lstatErr == nil {
			return writeDirect(path, data)
		}
		return writeAtomic(path, data)
	}

	info, err := os.Stat(target)
	if err == nil && !info.Mode().IsRegular() {
		return writeDirect(target, data)
	}
	return writeAtomic(target, data)
}

func writeDirect(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// writeAtomic writes data next to path and renames it into place, so an
// interrupted write never leaves a partial file behind.
func writeAtomic(path string, data []byte) (err error) {
	temporaryFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	temporaryPath := temporaryFile.Name()
	defer func() {
		if err != nil {
			os.Remove(temporaryPath)
		}
	}()

	if _, err = temporaryFile.Write(data); err != nil {
		temporaryFile.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if err = temporaryFile.Chmod(0o644); err != nil {
		temporaryFile.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if err = temporaryFile.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err = os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("moving output into place: %w", err)
	}
	return nil
}
