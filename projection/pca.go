// Package projection provides dimensionality reduction for labeled feature vectors.
//
// # Principal Component Analysis (PCA) Overview
//
// PCA reduces high-dimensional data down to fewer dimensions while preserving as much
// variance as possible. It finds the orthogonal directions (principal components) along
// which the data varies the most and projects every row onto the leading ones.
//
// # Why We Use Singular Value Decomposition (SVD)
//
// For a centered data matrix X, the right singular vectors (V) give us the principal
// components directly, without forming X^T * X:
//   - X = U * Σ * V^T  (SVD decomposition)
//   - The columns of V are the principal components, sorted by decreasing singular value
//   - Σ_i² / (n-1) is the variance captured by component i
//   - Projecting data: X_projected = X * V[:, 0:k]
package projection

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCAConfig holds the PCA options exposed on the command line.
type PCAConfig struct {
	NComponents int  // Number of output dimensions (default: 2)
	Whiten      bool // Scale every output column to unit variance
}

// DefaultPCAConfig returns the defaults used when no flags are given.
func DefaultPCAConfig() PCAConfig {
	return PCAConfig{NComponents: 2}
}

// PCA is the linear Reducer. It is deterministic: the same input always
// produces bit-identical output.
type PCA struct {
	config PCAConfig
}

// NewPCA validates config and returns a PCA reducer.
func NewPCA(config PCAConfig) (*PCA, error) {
	if config.NComponents < 1 {
		return nil, fmt.Errorf("%w: n_components must be at least 1, got %d", ErrInvalidComponents, config.NComponents)
	}
	return &PCA{config: config}, nil
}

// Name implements Reducer.
func (p *PCA) Name() string {
	return string(MethodPCA)
}

// Reduce centers data, factorizes it and projects it onto the leading
// NComponents principal components.
func (p *PCA) Reduce(ctx context.Context, data *mat.Dense) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	numberOfSamples, featureDimension := data.Dims()
	if numberOfSamples == 0 {
		return Result{}, ErrNoSamples
	}

	numberOfComponents := p.config.NComponents
	if limit := min(numberOfSamples, featureDimension); numberOfComponents > limit {
		return Result{}, fmt.Errorf("%w: n_components=%d must be between 1 and min(n_samples, n_features)=%d",
			ErrInvalidComponents, numberOfComponents, limit)
	}

	// Step 1: Center the data so the first component passes through the centroid
	centeredDataMatrix := centerDataMatrixBySubtractingColumnMeans(data)

	// Step 2: Thin SVD; singular values come back in decreasing order
	var svdDecomposition mat.SVD
	if ok := svdDecomposition.Factorize(centeredDataMatrix, mat.SVDThin); !ok {
		return Result{}, fmt.Errorf("%w: SVD did not converge", ErrDecomposition)
	}
	singularValues := svdDecomposition.Values(nil)

	var rightSingularVectors mat.Dense
	svdDecomposition.VTo(&rightSingularVectors)

	// Step 3: Keep the leading components with a reproducible sign
	principalComponentMatrix := extractLeadingPrincipalComponents(&rightSingularVectors, numberOfComponents)
	flipComponentSigns(principalComponentMatrix)

	// Step 4: Project the centered data onto the principal subspace
	var projectedCoordinates mat.Dense
	projectedCoordinates.Mul(centeredDataMatrix, principalComponentMatrix)

	explainedVariance, explainedVarianceRatio := computeExplainedVariance(singularValues, numberOfSamples, numberOfComponents)

	if p.config.Whiten {
		whitenColumns(&projectedCoordinates, explainedVariance)
	}

	return Result{
		Coordinates:            &projectedCoordinates,
		ColumnPrefix:           "PC",
		ExplainedVariance:      explainedVariance,
		ExplainedVarianceRatio: explainedVarianceRatio,
	}, nil
}

// centerDataMatrixBySubtractingColumnMeans returns a copy of dataMatrix with zero mean in
// every column. The input is left untouched.
func centerDataMatrixBySubtractingColumnMeans(dataMatrix *mat.Dense) *mat.Dense {
	numberOfRows, numberOfColumns := dataMatrix.Dims()
	centeredDataMatrix := mat.DenseCopyOf(dataMatrix)

	columnValues := make([]float64, numberOfRows)
	for columnIndex := 0; columnIndex < numberOfColumns; columnIndex++ {
		mat.Col(columnValues, columnIndex, dataMatrix)
		columnMean := stat.Mean(columnValues, nil)
		for rowIndex := 0; rowIndex < numberOfRows; rowIndex++ {
			centeredDataMatrix.Set(rowIndex, columnIndex, columnValues[rowIndex]-columnMean)
		}
	}

	return centeredDataMatrix
}

// extractLeadingPrincipalComponents copies the first numberOfComponents columns of V
// into a (featureDimension x numberOfComponents) matrix.
func extractLeadingPrincipalComponents(rightSingularVectors *mat.Dense, numberOfComponents int) *mat.Dense {
	featureDimension, _ := rightSingularVectors.Dims()
	return mat.DenseCopyOf(rightSingularVectors.Slice(0, featureDimension, 0, numberOfComponents))
}

// flipComponentSigns makes the loading with the largest magnitude positive in every
// component. SVD only determines components up to sign.
func flipComponentSigns(principalComponentMatrix *mat.Dense) {
	featureDimension, numberOfComponents := principalComponentMatrix.Dims()

	for componentIndex := 0; componentIndex < numberOfComponents; componentIndex++ {
		largestMagnitude := 0.0
		largestLoading := 0.0
		for dimensionIndex := 0; dimensionIndex < featureDimension; dimensionIndex++ {
			loading := principalComponentMatrix.At(dimensionIndex, componentIndex)
			if math.Abs(loading) > largestMagnitude {
				largestMagnitude = math.Abs(loading)
				largestLoading = loading
			}
		}

		if largestLoading >= 0 {
			continue
		}
		for dimensionIndex := 0; dimensionIndex < featureDimension; dimensionIndex++ {
			principalComponentMatrix.Set(dimensionIndex, componentIndex, -principalComponentMatrix.At(dimensionIndex, componentIndex))
		}
	}
}

// computeExplainedVariance returns the variance captured by each kept component and its
// share of the total variance.
func computeExplainedVariance(singularValues []float64, numberOfSamples, numberOfComponents int) (variance, ratio []float64) {
	variance = make([]float64, numberOfComponents)
	ratio = make([]float64, numberOfComponents)

	totalSquaredSingularValues := 0.0
	for _, singularValue := range singularValues {
		totalSquaredSingularValues += singularValue * singularValue
	}

	degreesOfFreedom := float64(numberOfSamples - 1)
	for componentIndex := 0; componentIndex < numberOfComponents; componentIndex++ {
		squaredSingularValue := singularValues[componentIndex] * singularValues[componentIndex]
		if degreesOfFreedom > 0 {
			variance[componentIndex] = squaredSingularValue / degreesOfFreedom
		}
		if totalSquaredSingularValues > 0 {
			ratio[componentIndex] = squaredSingularValue / totalSquaredSingularValues
		}
	}

	return variance, ratio
}

// whitenColumns divides every column by its standard deviation. Columns with no
// variance are left at zero.
func whitenColumns(projectedCoordinates *mat.Dense, explainedVariance []float64) {
	numberOfRows, numberOfColumns := projectedCoordinates.Dims()

	for columnIndex := 0; columnIndex < numberOfColumns; columnIndex++ {
		standardDeviation := math.Sqrt(explainedVariance[columnIndex])
		for rowIndex := 0; rowIndex < numberOfRows; rowIndex++ {
			if standardDeviation == 0 {
				projectedCoordinates.Set(rowIndex, columnIndex, 0)
				continue
			}
			projectedCoordinates.Set(rowIndex, columnIndex, projectedCoordinates.At(rowIndex, columnIndex)/standardDeviation)
		}
	}
}
