// Package detectors provides statistical detectors that score training
// samples for poisoning likelihood.
package detectors

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
)

// Method identifies a detection algorithm.
type Method string

const (
	// MethodSpectral is covariance spectral-signature detection.
	MethodSpectral Method = "spectral_signatures"
	// MethodCluster is activation-clustering detection.
	MethodCluster Method = "activation_clustering"
	// MethodInfluence is second-order influence approximation.
	MethodInfluence Method = "influence_functions"
)

// ErrLabelsRequired is returned by detectors that cannot run without labels.
var ErrLabelsRequired = errors.New("labels required")

// Detector scores every sample of a dataset for poisoning likelihood.
// Detectors are pure: they never mutate the matrix and may run concurrently
// against the same data.
type Detector interface {
	// Detect scores all samples. labels may be nil for unlabeled datasets;
	// detectors that require labels return ErrLabelsRequired.
	Detect(ctx context.Context, samples dataset.Matrix, labels dataset.Labels) (Result, error)

	// Method returns the algorithm identifier.
	Method() Method
}

// Result is the outcome of one detector run over one dataset. It is owned by
// the producing detector and read-only afterwards.
type Result struct {
	Method Method `json:"method"`

	// SuspiciousIndices is sorted ascending, duplicate-free, and every entry
	// is a valid row of the scored matrix.
	SuspiciousIndices []int `json:"suspicious_indices"`

	// Scores holds one anomaly score per sample, aligned with the matrix.
	Scores []float64 `json:"anomaly_scores"`

	// Confidence is the poisoning confidence percentage in [0,100].
	Confidence float64 `json:"poison_confidence"`

	// AccuracyImpact estimates the accuracy damage percentage in [0,100].
	// It is a fixed multiplier of Confidence, a placeholder heuristic rather
	// than a measured quantity.
	AccuracyImpact float64 `json:"estimated_accuracy_impact"`

	// Threshold is the score cut above which samples were flagged.
	Threshold float64 `json:"threshold"`

	// OutlierCount reports density outliers for diagnostics (cluster method).
	OutlierCount int `json:"n_outliers,omitempty"`
}

// Detected reports whether any sample was flagged.
func (r Result) Detected() bool { return len(r.SuspiciousIndices) > 0 }

// Confidence converts a suspicious count into a percentage of the dataset,
// capped at 100.
func Confidence(suspicious, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Min(100, 100*float64(suspicious)/float64(total))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between order statistics.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := Clamp(p, 0, 100) / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// AboveThreshold returns the sorted indices of scores strictly above the
// threshold.
func AboveThreshold(scores []float64, threshold float64) []int {
	var indices []int
	for i, s := range scores {
		if s > threshold {
			indices = append(indices, i)
		}
	}
	return indices
}
