// Package dataimport loads labeled vectors from CSV and JSON files, the formats
// embedding tools usually export, so they can be reduced without converting
// them to TSV first.
package dataimport

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alDuncanson/dimreduce/dataset"
	"github.com/alDuncanson/dimreduce/tsv"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidRecord     = errors.New("invalid record")
)

type format int

const (
	formatUnknown format = iota
	formatCSV
	formatJSON
)

// jsonRecord is one element of a JSON input array. Text is accepted as the
// label when Label is empty.
type jsonRecord struct {
	Label  string    `json:"label"`
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

// formatOf looks at the extension under any compression suffix, so
// "vectors.json.gz" is JSON.
func formatOf(path string) format {
	lowerPath := strings.ToLower(path)
	lowerPath = strings.TrimSuffix(lowerPath, ".gz")
	lowerPath = strings.TrimSuffix(lowerPath, ".bz2")

	switch filepath.Ext(lowerPath) {
	case ".csv":
		return formatCSV
	case ".json":
		return formatJSON
	default:
		return formatUnknown
	}
}

// Supports reports whether LoadRecords understands the file named by path.
func Supports(path string) bool {
	return formatOf(path) != formatUnknown
}

// LoadRecords reads every record from a CSV or JSON file. Compressed files are
// opened the same way as TSV input.
func LoadRecords(path string) ([]dataset.Record, error) {
	kind := formatOf(path)
	if kind == formatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	reader, err := tsv.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if kind == formatJSON {
		return ReadJSON(reader)
	}
	return ReadCSV(reader)
}

// ReadJSON parses an array of {"label": ..., "vector": [...]} objects.
func ReadJSON(r io.Reader) ([]dataset.Record, error) {
	var objects []jsonRecord
	if err := json.NewDecoder(r).Decode(&objects); err != nil {
		return nil, fmt.Errorf("parsing JSON: expected an array of objects with a vector field: %w", err)
	}

	records := make([]dataset.Record, 0, len(objects))
	for i, obj := range objects {
		label := obj.Label
		if label == "" {
			label = obj.Text
		}
		if label == "" {
			return nil, fmt.Errorf("%w: entry %d has neither label nor text", ErrInvalidRecord, i)
		}
		if len(obj.Vector) == 0 {
			return nil, fmt.Errorf("%w: entry %d missing vector field", ErrInvalidRecord, i)
		}
		records = append(records, dataset.Record{Label: label, Features: obj.Vector})
	}

	return records, nil
}

// ReadCSV parses a CSV file with a header row. The column headed "label" (or
// "text") holds the labels, the first column if neither exists. Every other
// column is a feature.
func ReadCSV(r io.Reader) ([]dataset.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, dataset.ErrEmpty
	}

	labelColumn := findLabelColumn(rows[0])

	records := make([]dataset.Record, 0, len(rows)-1)
	for rowIndex, row := range rows[1:] {
		record := dataset.Record{
			Label:    row[labelColumn],
			Features: make([]float64, 0, len(row)-1),
		}
		for columnIndex, field := range row {
			if columnIndex == labelColumn {
				continue
			}
			value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d, column %q: %q is not a number",
					ErrInvalidRecord, rowIndex+2, rows[0][columnIndex], field)
			}
			record.Features = append(record.Features, value)
		}
		records = append(records, record)
	}

	return records, nil
}

func findLabelColumn(header []string) int {
	for _, name := range []string{"label", "text"} {
		for i, column := range header {
			if strings.EqualFold(strings.TrimSpace(column), name) {
				return i
			}
		}
	}
	return 0
}
