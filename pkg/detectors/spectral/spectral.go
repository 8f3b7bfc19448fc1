// Package spectral implements spectral-signature poisoning detection.
//
// Samples are projected onto the dominant covariance directions of the
// centered dataset; samples with unusually large projection norms sit far
// from the clean data's principal structure and are flagged.
package spectral

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
)

// Detector flags samples far from the dominant covariance directions.
type Detector struct {
	components          int
	thresholdPercentile float64
	impactMultiplier    float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithComponents sets how many top singular vectors to keep.
func WithComponents(k int) Option {
	return func(d *Detector) { d.components = k }
}

// WithThresholdPercentile sets the score percentile above which samples are
// flagged.
func WithThresholdPercentile(p float64) Option {
	return func(d *Detector) { d.thresholdPercentile = p }
}

// WithImpactMultiplier sets the confidence-to-accuracy-impact multiplier.
func WithImpactMultiplier(m float64) Option {
	return func(d *Detector) { d.impactMultiplier = m }
}

// New creates a spectral detector with the given options.
func New(opts ...Option) *Detector {
	d := &Detector{
		components:          50,
		thresholdPercentile: 95,
		impactMultiplier:    0.5,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Method implements detectors.Detector.
func (d *Detector) Method() detectors.Method { return detectors.MethodSpectral }

// Detect scores all samples by the norm of their projection onto the top-k
// right singular vectors of the centered matrix. Labels are unused.
func (d *Detector) Detect(_ context.Context, samples dataset.Matrix, _ dataset.Labels) (detectors.Result, error) {
	result := detectors.Result{Method: d.Method()}

	n, dim := samples.Dims()
	if n == 0 || dim == 0 {
		return result, dataset.ErrEmptyMatrix
	}

	result.Scores = make([]float64, n)
	if n < 2 {
		// A single sample has no covariance structure to deviate from.
		return result, nil
	}

	centered, err := centerMatrix(samples)
	if err != nil {
		return result, err
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThinV) {
		return result, errors.New("svd factorization failed")
	}

	var v mat.Dense
	svd.VTo(&v)

	_, nVectors := v.Dims()
	k := d.components
	if k > nVectors {
		k = nVectors
	}
	top := v.Slice(0, dim, 0, k)

	var projections mat.Dense
	projections.Mul(centered, top)

	minScore, maxScore := 0.0, 0.0
	for i := 0; i < n; i++ {
		score := mat.Norm(projections.RowView(i), 2)
		result.Scores[i] = score
		if i == 0 || score < minScore {
			minScore = score
		}
		if i == 0 || score > maxScore {
			maxScore = score
		}
	}

	// Identical scores mean a degenerate distribution; flag nothing rather
	// than thresholding noise.
	if maxScore-minScore < dataset.Epsilon {
		return result, nil
	}

	result.Threshold = detectors.Percentile(result.Scores, d.thresholdPercentile)
	result.SuspiciousIndices = detectors.AboveThreshold(result.Scores, result.Threshold)
	result.Confidence = detectors.Confidence(len(result.SuspiciousIndices), n)
	result.AccuracyImpact = detectors.Clamp(result.Confidence*d.impactMultiplier, 0, 100)
	return result, nil
}

// centerMatrix returns samples minus their column mean as a dense matrix.
func centerMatrix(samples dataset.Matrix) (*mat.Dense, error) {
	n, d := samples.Dims()

	means := make([]float64, d)
	for _, row := range samples {
		if len(row) != d {
			return nil, dataset.ErrRaggedMatrix
		}
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}

	out := mat.NewDense(n, d, nil)
	for i, row := range samples {
		for j, v := range row {
			out.Set(i, j, v-means[j])
		}
	}
	return out, nil
}
