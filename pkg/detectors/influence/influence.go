// Package influence approximates each sample's harmful effect on model loss
// via a Hessian-free second-order approximation.
//
// Without model predictions the detector synthesizes pseudo-predictions from
// cosine similarity to per-class centroids, so it always requires labels.
package influence

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
)

// Detector scores samples by approximated influence on model loss.
type Detector struct {
	damping             float64
	sampleCap           int
	thresholdPercentile float64
	impactMultiplier    float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithDamping sets the Hessian damping constant for numerical stability.
func WithDamping(d float64) Option {
	return func(det *Detector) { det.damping = d }
}

// WithSampleCap bounds how many samples feed the Hessian approximation.
func WithSampleCap(n int) Option {
	return func(det *Detector) { det.sampleCap = n }
}

// WithThresholdPercentile sets the absolute-score percentile above which
// samples are flagged.
func WithThresholdPercentile(p float64) Option {
	return func(det *Detector) { det.thresholdPercentile = p }
}

// WithImpactMultiplier sets the confidence-to-accuracy-impact multiplier.
func WithImpactMultiplier(m float64) Option {
	return func(det *Detector) { det.impactMultiplier = m }
}

// New creates an influence detector with the given options.
func New(opts ...Option) *Detector {
	d := &Detector{
		damping:             0.01,
		sampleCap:           100,
		thresholdPercentile: 75,
		impactMultiplier:    0.6,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Method implements detectors.Detector.
func (d *Detector) Method() detectors.Method { return detectors.MethodInfluence }

// Detect synthesizes pseudo-predictions and scores influence. It returns
// ErrLabelsRequired for unlabeled data; the orchestrator is expected to skip
// this detector instead of calling it without labels.
func (d *Detector) Detect(ctx context.Context, samples dataset.Matrix, labels dataset.Labels) (detectors.Result, error) {
	return d.DetectWithPredictions(ctx, samples, labels, nil)
}

// DetectWithPredictions scores influence using supplied model predictions
// (one probability row per sample) instead of synthesized ones.
func (d *Detector) DetectWithPredictions(_ context.Context, samples dataset.Matrix, labels dataset.Labels, predictions dataset.Matrix) (detectors.Result, error) {
	result := detectors.Result{Method: d.Method()}

	n, dim := samples.Dims()
	if n == 0 || dim == 0 {
		return result, dataset.ErrEmptyMatrix
	}
	if labels == nil {
		return result, detectors.ErrLabelsRequired
	}

	classes := labels.Classes()
	classIndex := make(map[int]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}

	if predictions == nil {
		predictions = pseudoPredictions(samples, labels, classes, classIndex)
	}

	// Per-sample gradient proxy: predicted probability of the true class
	// minus one. Zero when the model is certain and correct, large when the
	// sample pulls the model away from its label.
	gradients := make([]float64, n)
	for i := range samples {
		p := 0.0
		if c, ok := classIndex[labels[i]]; ok && c < len(predictions[i]) {
			p = predictions[i][c]
		}
		gradients[i] = p - 1
	}

	hessianDiag := d.hessianDiagonal(samples, gradients)

	var invHessianSum float64
	for _, h := range hessianDiag {
		invHessianSum += 1 / h
	}

	raw := make([]float64, n)
	for i, g := range gradients {
		raw[i] = g * g * invHessianSum
	}

	mean, std := stat.MeanStdDev(raw, nil)
	if math.IsNaN(std) {
		std = 0
	}
	result.Scores = make([]float64, n)
	absScores := make([]float64, n)
	for i, v := range raw {
		result.Scores[i] = (v - mean) / (std + dataset.Epsilon)
		absScores[i] = math.Abs(result.Scores[i])
	}

	result.Threshold = detectors.Percentile(absScores, d.thresholdPercentile)
	result.SuspiciousIndices = detectors.AboveThreshold(absScores, result.Threshold)
	result.Confidence = detectors.Confidence(len(result.SuspiciousIndices), n)
	result.AccuracyImpact = detectors.Clamp(result.Confidence*d.impactMultiplier, 0, 100)
	return result, nil
}

// hessianDiagonal accumulates gradient² ⊙ feature² over a bounded subsample
// and adds the damping constant.
func (d *Detector) hessianDiagonal(samples dataset.Matrix, gradients []float64) []float64 {
	n, dim := samples.Dims()
	limit := d.sampleCap
	if limit > n {
		limit = n
	}
	if limit < 1 {
		limit = n
	}

	diag := make([]float64, dim)
	for i := 0; i < limit; i++ {
		g2 := gradients[i] * gradients[i]
		for j, x := range samples[i] {
			diag[j] += g2 * x * x
		}
	}
	for j := range diag {
		diag[j] = diag[j]/float64(limit) + d.damping
	}
	return diag
}

// pseudoPredictions builds per-sample class probabilities from normalized
// cosine similarity to class centroids.
func pseudoPredictions(samples dataset.Matrix, labels dataset.Labels, classes []int, classIndex map[int]int) dataset.Matrix {
	n, dim := samples.Dims()

	centroids := make(dataset.Matrix, len(classes))
	counts := make([]int, len(classes))
	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}
	for i, row := range samples {
		c := classIndex[labels[i]]
		floats.Add(centroids[c], row)
		counts[c]++
	}
	for c := range centroids {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), centroids[c])
		}
	}

	predictions := make(dataset.Matrix, n)
	for i, row := range samples {
		p := make([]float64, len(classes))
		rowNorm := floats.Norm(row, 2)
		var sum float64
		for c, centroid := range centroids {
			sim := floats.Dot(row, centroid) / (rowNorm*floats.Norm(centroid, 2) + dataset.Epsilon)
			if sim < 0 {
				sim = 0
			}
			p[c] = sim
			sum += sim
		}
		for c := range p {
			p[c] /= sum + dataset.Epsilon
		}
		predictions[i] = p
	}
	return predictions
}
