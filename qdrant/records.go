package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/alDuncanson/dimreduce/dataset"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Scheme prefixes an --input value that names a collection instead of a file.
const Scheme = "qdrant://"

// DefaultPort is Qdrant's gRPC port.
const DefaultPort = "6334"

const upsertBatchSize = 256

var (
	ErrInvalidAddress  = errors.New("invalid qdrant address")
	ErrEmptyCollection = errors.New("collection has no dense vectors")
	ErrRowMismatch     = errors.New("label count does not match coordinate rows")
)

// Address locates one collection.
type Address struct {
	Host       string // host:port
	Collection string
}

func (a Address) String() string {
	return Scheme + a.Host + "/" + a.Collection
}

// IsURI reports whether input names a Qdrant collection.
func IsURI(input string) bool {
	return strings.HasPrefix(strings.ToLower(input), Scheme)
}

// ParseAddress accepts qdrant://host[:port]/collection or host[:port]/collection.
// The port defaults to DefaultPort.
func ParseAddress(raw string) (Address, error) {
	rest := raw
	if IsURI(rest) {
		rest = rest[len(Scheme):]
	}

	host, collection, found := strings.Cut(rest, "/")
	collection = strings.Trim(collection, "/")
	if !found || host == "" || collection == "" || strings.Contains(collection, "/") {
		return Address{}, fmt.Errorf("%w: %q (expected host:port/collection)", ErrInvalidAddress, raw)
	}

	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, DefaultPort)
	}

	return Address{Host: host, Collection: collection}, nil
}

// Load reads every point of the collection at address as a record. Vectors are
// widened to float64; the order is the collection's scroll order.
func Load(ctx context.Context, address Address) ([]dataset.Record, error) {
	client, err := NewClient(address.Host, address.Collection)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	points, err := client.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", address, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCollection, address)
	}

	return pointsToRecords(points), nil
}

func pointsToRecords(points []Point) []dataset.Record {
	records := make([]dataset.Record, len(points))
	for i, point := range points {
		features := make([]float64, len(point.Vector))
		for j, value := range point.Vector {
			features[j] = float64(value)
		}
		records[i] = dataset.Record{Label: point.Label, Features: features}
	}
	return records
}

// Export stores one point per row of coordinates in the collection at address,
// creating the collection if needed. Every point gets a fresh UUID.
func Export(ctx context.Context, address Address, labels []string, coordinates mat.Matrix) error {
	points, err := coordinatesToPoints(labels, coordinates)
	if err != nil {
		return err
	}

	client, err := NewClient(address.Host, address.Collection)
	if err != nil {
		return err
	}
	defer client.Close()

	_, dims := coordinates.Dims()
	if err := client.EnsureCollection(ctx, uint64(dims)); err != nil {
		return err
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		if err := client.Upsert(ctx, points[start:end]); err != nil {
			return fmt.Errorf("exporting to %s: %w", address, err)
		}
	}
	return nil
}

func coordinatesToPoints(labels []string, coordinates mat.Matrix) ([]Point, error) {
	rows, dims := coordinates.Dims()
	if rows != len(labels) {
		return nil, fmt.Errorf("%w: %d labels, %d rows", ErrRowMismatch, len(labels), rows)
	}

	points := make([]Point, rows)
	for i := range points {
		vector := make([]float32, dims)
		for j := range vector {
			vector[j] = float32(coordinates.At(i, j))
		}
		points[i] = Point{ID: uuid.New().String(), Label: labels[i], Vector: vector}
	}
	return points, nil
}
