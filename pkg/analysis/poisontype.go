// Package analysis merges detector outputs into a verdict and names the
// attack pattern.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
)

// PoisonType names the attack family behind a set of suspicious samples.
type PoisonType string

const (
	// PoisonNone means nothing was flagged.
	PoisonNone PoisonType = "none"
	// PoisonOutlierInjection means suspicious samples sit far outside the
	// clean distribution.
	PoisonOutlierInjection PoisonType = "outlier_injection"
	// PoisonLabelFlipping means suspicious samples mix classes far more than
	// the clean remainder.
	PoisonLabelFlipping PoisonType = "label_flipping"
	// PoisonFeatureNoise means suspicious samples carry inflated per-dimension
	// variance.
	PoisonFeatureNoise PoisonType = "feature_noise_poisoning"
	// PoisonTriggerPattern is the fallback when no other signature matches.
	PoisonTriggerPattern PoisonType = "trigger_pattern_poisoning"
)

// ClassifierConfig holds the cascade thresholds. The factors are tuning
// constants inherited from field use, not derived decision boundaries.
type ClassifierConfig struct {
	// OutlierDistanceFactor scales the clean standard deviation when testing
	// for outlier injection.
	OutlierDistanceFactor float64
	// LabelDiversityFactor scales the clean label diversity when testing for
	// label flipping.
	LabelDiversityFactor float64
	// NoiseVarianceRatio is the suspicious/clean variance ratio bound for
	// feature-noise poisoning.
	NoiseVarianceRatio float64
}

// DefaultClassifierConfig returns the standard cascade thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		OutlierDistanceFactor: 2.5,
		LabelDiversityFactor:  1.5,
		NoiseVarianceRatio:    2.0,
	}
}

// ClassifyPoisonType names the attack family for the flagged samples.
//
// The checks run as a first-match-wins cascade: outlier injection, label
// flipping, feature noise, then trigger pattern as the fallback. The order
// and thresholds are deliberate heuristics; the categories are neither
// exhaustive nor mutually exclusive.
func ClassifyPoisonType(samples dataset.Matrix, suspicious []int, labels dataset.Labels, cfg ClassifierConfig) PoisonType {
	if len(suspicious) == 0 {
		return PoisonNone
	}

	n, dim := samples.Dims()
	if n == 0 || dim == 0 {
		return PoisonNone
	}

	suspiciousSet := make(map[int]struct{}, len(suspicious))
	for _, i := range suspicious {
		if i >= 0 && i < n {
			suspiciousSet[i] = struct{}{}
		}
	}

	var suspiciousRows, cleanRows dataset.Matrix
	for i, row := range samples {
		if _, ok := suspiciousSet[i]; ok {
			suspiciousRows = append(suspiciousRows, row)
		} else {
			cleanRows = append(cleanRows, row)
		}
	}

	if len(cleanRows) > 0 && isOutlierInjection(suspiciousRows, cleanRows, cfg.OutlierDistanceFactor) {
		return PoisonOutlierInjection
	}
	if labels != nil && isLabelFlipping(labels, suspiciousSet, cfg.LabelDiversityFactor) {
		return PoisonLabelFlipping
	}
	if len(cleanRows) > 1 && len(suspiciousRows) > 1 &&
		isFeatureNoise(suspiciousRows, cleanRows, cfg.NoiseVarianceRatio) {
		return PoisonFeatureNoise
	}
	return PoisonTriggerPattern
}

// isOutlierInjection tests whether suspicious samples sit further from the
// clean centroid than factor× the clean scalar standard deviation.
func isOutlierInjection(suspicious, clean dataset.Matrix, factor float64) bool {
	_, dim := clean.Dims()

	centroid := make([]float64, dim)
	for _, row := range clean {
		floats.Add(centroid, row)
	}
	floats.Scale(1/float64(len(clean)), centroid)

	var meanDist float64
	diff := make([]float64, dim)
	for _, row := range suspicious {
		floats.SubTo(diff, row, centroid)
		meanDist += floats.Norm(diff, 2)
	}
	meanDist /= float64(len(suspicious))

	return meanDist > scalarStd(clean)*factor
}

// scalarStd is the standard deviation over every entry of the matrix.
func scalarStd(m dataset.Matrix) float64 {
	var sum, count float64
	for _, row := range m {
		for _, v := range row {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / count

	var variance float64
	for _, row := range m {
		for _, v := range row {
			diff := v - mean
			variance += diff * diff
		}
	}
	return math.Sqrt(variance / count)
}

// isLabelFlipping tests whether the flagged samples mix classes more than
// factor× the diversity of the remaining samples.
func isLabelFlipping(labels dataset.Labels, suspiciousSet map[int]struct{}, factor float64) bool {
	suspiciousClasses := make(map[int]struct{})
	cleanClasses := make(map[int]struct{})
	for i, label := range labels {
		if _, ok := suspiciousSet[i]; ok {
			suspiciousClasses[label] = struct{}{}
		} else {
			cleanClasses[label] = struct{}{}
		}
	}
	return float64(len(suspiciousClasses)) > float64(len(cleanClasses))*factor
}

// isFeatureNoise tests whether the mean per-dimension variance ratio between
// suspicious and clean samples exceeds the bound.
func isFeatureNoise(suspicious, clean dataset.Matrix, bound float64) bool {
	_, dim := clean.Dims()
	suspiciousVar := columnVariances(suspicious, dim)
	cleanVar := columnVariances(clean, dim)

	var ratioSum float64
	for j := 0; j < dim; j++ {
		ratioSum += suspiciousVar[j] / (cleanVar[j] + dataset.Epsilon)
	}
	return ratioSum/float64(dim) > bound
}

func columnVariances(m dataset.Matrix, dim int) []float64 {
	n := float64(len(m))
	means := make([]float64, dim)
	for _, row := range m {
		floats.Add(means, row)
	}
	floats.Scale(1/n, means)

	variances := make([]float64, dim)
	for _, row := range m {
		for j, v := range row {
			diff := v - means[j]
			variances[j] += diff * diff
		}
	}
	floats.Scale(1/n, variances)
	return variances
}
