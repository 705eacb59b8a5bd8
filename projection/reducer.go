package projection

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownMethod     = errors.New("unknown reduction method")
	ErrInvalidComponents = errors.New("invalid number of components")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNoSamples         = errors.New("no samples to reduce")
	ErrDecomposition     = errors.New("matrix decomposition failed")
)

// Method names a dimensionality reduction algorithm.
type Method string

const (
	MethodPCA  Method = "pca"
	MethodUMAP Method = "umap"
)

// Methods lists every supported method in the order shown to users.
var Methods = []Method{MethodPCA, MethodUMAP}

// ParseMethod converts a user-supplied method name into a Method. Names must
// match exactly.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case MethodPCA:
		return MethodPCA, nil
	case MethodUMAP:
		return MethodUMAP, nil
	default:
		return "", fmt.Errorf("%w: %q (choose from pca, umap)", ErrUnknownMethod, name)
	}
}

// Reducer projects every row of a feature matrix into a lower-dimensional space.
// The returned coordinates have one row per input row.
type Reducer interface {
	Name() string
	Reduce(ctx context.Context, data *mat.Dense) (Result, error)
}

// Result holds the reduced coordinates and whatever diagnostics the method produces.
type Result struct {
	Coordinates *mat.Dense

	// ColumnPrefix names output columns, e.g. PC1, PC2 or UMAP1, UMAP2.
	ColumnPrefix string

	// ExplainedVariance and ExplainedVarianceRatio are only set by PCA.
	ExplainedVariance      []float64
	ExplainedVarianceRatio []float64
}

// ColumnNames returns the conventional name of every output column.
func (r Result) ColumnNames() []string {
	if r.Coordinates == nil {
		return nil
	}
	_, numberOfColumns := r.Coordinates.Dims()
	names := make([]string, numberOfColumns)
	for columnIndex := range names {
		names[columnIndex] = r.ColumnPrefix + strconv.Itoa(columnIndex+1)
	}
	return names
}

// Options carries the configuration of both methods; NewReducer uses the one it needs.
type Options struct {
	PCA  PCAConfig
	UMAP UMAPConfig
}

// NewReducer builds the reducer for method.
func NewReducer(method Method, options Options) (Reducer, error) {
	switch method {
	case MethodPCA:
		return NewPCA(options.PCA)
	case MethodUMAP:
		return NewUMAP(options.UMAP)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}
