// Package dataset holds labeled feature vectors and builds the dense feature
// matrix consumed by the reducers.
package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmpty         = errors.New("no records")
	ErrNoFeatures    = errors.New("records have no features")
	ErrShapeMismatch = errors.New("inconsistent feature vector length")
)

// Record is one labeled input row.
type Record struct {
	Label    string
	Features []float64
}

// Dataset is the feature matrix together with the labels of its rows, in input order.
type Dataset struct {
	Labels   []string
	Features *mat.Dense
}

// New builds a Dataset from records. Every record must have the same number
// of features as the first one.
func New(records []Record) (*Dataset, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	numberOfRows := len(records)
	featureDimension := len(records[0].Features)

	for rowIndex, record := range records {
		if len(record.Features) != featureDimension {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d",
				ErrShapeMismatch, rowIndex+1, len(record.Features), featureDimension)
		}
	}

	if featureDimension == 0 {
		return nil, ErrNoFeatures
	}

	flattenedMatrixData := make([]float64, numberOfRows*featureDimension)
	labels := make([]string, numberOfRows)
	for rowIndex, record := range records {
		copy(flattenedMatrixData[rowIndex*featureDimension:], record.Features)
		labels[rowIndex] = record.Label
	}

	return &Dataset{
		Labels:   labels,
		Features: mat.NewDense(numberOfRows, featureDimension, flattenedMatrixData),
	}, nil
}

// Dims returns the number of rows and feature columns.
func (d *Dataset) Dims() (rows, cols int) {
	return d.Features.Dims()
}

// MatrixRows copies any matrix into a slice of row slices.
func MatrixRows(m mat.Matrix) [][]float64 {
	numberOfRows, numberOfColumns := m.Dims()
	rows := make([][]float64, numberOfRows)
	for rowIndex := range rows {
		rows[rowIndex] = make([]float64, numberOfColumns)
		for columnIndex := range rows[rowIndex] {
			rows[rowIndex][columnIndex] = m.At(rowIndex, columnIndex)
		}
	}
	return rows
}
