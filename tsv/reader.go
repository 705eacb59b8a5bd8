// Package tsv reads labeled feature vectors from tab-delimited text, optionally
// compressed, and writes labeled coordinates back out.
package tsv

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/alDuncanson/dimreduce/dataset"

	"github.com/h2non/filetype"
)

var ErrParse = errors.New("parse error")

const (
	// sniffLength is how many leading bytes are inspected to detect compressed content.
	sniffLength = 262

	initialLineBufferSize = 64 * 1024
	maxLineLength         = 64 * 1024 * 1024
)

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionBzip2
)

func (c compression) String() string {
	switch c {
	case compressionGzip:
		return "gzip"
	case compressionBzip2:
		return "bzip2"
	default:
		return "none"
	}
}

// compressionFromSuffix picks the decompressor named by the file extension.
func compressionFromSuffix(path string) compression {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lowerPath, ".gz"):
		return compressionGzip
	case strings.HasSuffix(lowerPath, ".bz2"):
		return compressionBzip2
	default:
		return compressionNone
	}
}

// sniffCompression recognizes compressed content whose file name does not say so.
func sniffCompression(header []byte) compression {
	switch {
	case filetype.Is(header, "gz"):
		return compressionGzip
	case filetype.Is(header, "bz2"):
		return compressionBzip2
	default:
		return compressionNone
	}
}

// multiCloser closes a decompressor and the file under it.
type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var errs []error
	for _, closer := range m.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open opens path for reading as text. A .gz or .bz2 suffix selects the
// matching decompressor; without one, gzip and bzip2 content is still
// recognized from its magic bytes.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}

	bufferedReader := bufio.NewReader(file)
	kind := compressionFromSuffix(path)
	if kind == compressionNone {
		// A short file yields fewer bytes and io.EOF, which is fine for sniffing.
		header, _ := bufferedReader.Peek(sniffLength)
		kind = sniffCompression(header)
	}

	switch kind {
	case compressionGzip:
		gzipReader, err := gzip.NewReader(bufferedReader)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return &multiCloser{Reader: gzipReader, closers: []io.Closer{gzipReader, file}}, nil

	case compressionBzip2:
		return &multiCloser{Reader: bzip2.NewReader(bufferedReader), closers: []io.Closer{file}}, nil

	default:
		return &multiCloser{Reader: bufferedReader, closers: []io.Closer{file}}, nil
	}
}

// ReadFile opens path with Open and parses every record in it.
func ReadFile(path string) ([]dataset.Record, error) {
	reader, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return Read(reader)
}

// Read parses one record per line: trailing whitespace is dropped, the line
// is split on tabs, the first field is the label and the remaining fields
// are parsed as floating-point features.
func Read(r io.Reader) ([]dataset.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialLineBufferSize), maxLineLength)

	var records []dataset.Record
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		record, err := parseLine(scanner.Text(), lineNumber)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input at line %d: %w", lineNumber+1, err)
	}

	return records, nil
}

func parseLine(line string, lineNumber int) (dataset.Record, error) {
	fields := strings.Split(strings.TrimRightFunc(line, unicode.IsSpace), "\t")

	features := make([]float64, 0, len(fields)-1)
	for fieldIndex, field := range fields[1:] {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return dataset.Record{}, fmt.Errorf("%w: line %d, column %d: %q is not a number",
				ErrParse, lineNumber, fieldIndex+2, field)
		}
		features = append(features, value)
	}

	return dataset.Record{Label: fields[0], Features: features}, nil
}
