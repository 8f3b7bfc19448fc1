// Package dataset turns raw training datasets into numeric sample matrices
// for poisoning analysis.
package dataset

import (
	"errors"
	"fmt"
)

// Epsilon guards divisions against zero denominators.
const Epsilon = 1e-8

var (
	// ErrEmptyMatrix indicates a dataset with no samples.
	ErrEmptyMatrix = errors.New("empty sample matrix")
	// ErrRaggedMatrix indicates rows of unequal width.
	ErrRaggedMatrix = errors.New("ragged sample matrix")
	// ErrLabelMismatch indicates a label vector whose length differs from the
	// sample count.
	ErrLabelMismatch = errors.New("label count does not match sample count")
)

// Matrix is an n×d sample matrix, one row per dataset sample. Row order
// matches the originating dataset, so a row's position identifies the sample.
// A Matrix is built once by a provider and never mutated afterwards.
type Matrix [][]float64

// Labels holds one integer class label per sample, aligned by position with a
// Matrix. A nil Labels means the dataset is unlabeled.
type Labels []int

// Rows returns the number of samples.
func (m Matrix) Rows() int { return len(m) }

// Dims returns the sample count and feature dimension.
func (m Matrix) Dims() (n, d int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// Validate checks the matrix shape and label alignment. It is the fail-fast
// input check run before any detection starts.
func Validate(m Matrix, labels Labels) error {
	n, d := m.Dims()
	if n == 0 || d == 0 {
		return ErrEmptyMatrix
	}
	for i, row := range m {
		if len(row) != d {
			return fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), d, ErrRaggedMatrix)
		}
	}
	if labels != nil && len(labels) != n {
		return fmt.Errorf("%d labels for %d samples: %w", len(labels), n, ErrLabelMismatch)
	}
	return nil
}

// Classes returns the distinct labels present, or nil for unlabeled data.
func (l Labels) Classes() []int {
	if l == nil {
		return nil
	}
	seen := make(map[int]struct{}, 8)
	var classes []int
	for _, v := range l {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	return classes
}
