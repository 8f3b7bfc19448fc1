package analysis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
)

func TestClassifyPoisonTypeNoneWhenEmpty(t *testing.T) {
	samples := gaussianMatrix(50, 4, 1, 0)

	assert.Equal(t, PoisonNone,
		ClassifyPoisonType(samples, nil, nil, DefaultClassifierConfig()))
	assert.Equal(t, PoisonNone,
		ClassifyPoisonType(nil, []int{1, 2}, nil, DefaultClassifierConfig()))
}

func TestClassifyOutlierInjection(t *testing.T) {
	samples := gaussianMatrix(100, 4, 1, 0)
	suspicious := make([]int, 0, 20)
	for i := 80; i < 100; i++ {
		for j := range samples[i] {
			samples[i][j] += 10
		}
		suspicious = append(suspicious, i)
	}

	got := ClassifyPoisonType(samples, suspicious, nil, DefaultClassifierConfig())
	assert.Equal(t, PoisonOutlierInjection, got)
}

func TestClassifyLabelFlipping(t *testing.T) {
	// Suspicious samples share the clean feature distribution but carry four
	// distinct classes versus two in the remainder.
	samples := gaussianMatrix(500, 4, 1, 23)
	labels := make(dataset.Labels, 500)
	for i := range labels {
		labels[i] = i % 2
	}
	suspicious := make([]int, 0, 50)
	for i := 0; i < 50; i++ {
		labels[i] = i % 4
		suspicious = append(suspicious, i)
	}

	got := ClassifyPoisonType(samples, suspicious, labels, DefaultClassifierConfig())
	assert.Equal(t, PoisonLabelFlipping, got)
}

func TestClassifyFeatureNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(31))

	samples := make(dataset.Matrix, 250)
	suspicious := make([]int, 0, 50)
	for i := range samples {
		sigma := 1.0
		if i >= 200 {
			sigma = 1.7
			suspicious = append(suspicious, i)
		}
		samples[i] = []float64{rng.NormFloat64() * sigma}
	}

	got := ClassifyPoisonType(samples, suspicious, nil, DefaultClassifierConfig())
	assert.Equal(t, PoisonFeatureNoise, got)
}

func TestClassifyTriggerPatternFallback(t *testing.T) {
	samples := gaussianMatrix(200, 1, 1, 41)
	suspicious := []int{3, 17, 42, 99, 150}

	got := ClassifyPoisonType(samples, suspicious, nil, DefaultClassifierConfig())
	assert.Equal(t, PoisonTriggerPattern, got)
}

func TestClassifyCascadeOrder(t *testing.T) {
	// Shifted and noisier suspicious samples match both the outlier and the
	// noise signatures; the cascade must report the outlier match first.
	rng := rand.New(rand.NewSource(53))

	samples := make(dataset.Matrix, 120)
	suspicious := make([]int, 0, 20)
	for i := range samples {
		row := make([]float64, 4)
		for j := range row {
			row[j] = rng.NormFloat64()
			if i >= 100 {
				row[j] = row[j]*3 + 10
			}
		}
		samples[i] = row
		if i >= 100 {
			suspicious = append(suspicious, i)
		}
	}

	got := ClassifyPoisonType(samples, suspicious, nil, DefaultClassifierConfig())
	assert.Equal(t, PoisonOutlierInjection, got)
}

func TestClassifyConfigurableThresholds(t *testing.T) {
	samples := gaussianMatrix(100, 4, 1, 61)
	suspicious := make([]int, 0, 20)
	for i := 80; i < 100; i++ {
		for j := range samples[i] {
			samples[i][j] += 10
		}
		suspicious = append(suspicious, i)
	}

	cfg := DefaultClassifierConfig()
	cfg.OutlierDistanceFactor = 1000

	// With the distance factor out of reach the cascade falls through.
	got := ClassifyPoisonType(samples, suspicious, nil, cfg)
	assert.NotEqual(t, PoisonOutlierInjection, got)
}

func TestClassifyAllSuspicious(t *testing.T) {
	samples := gaussianMatrix(30, 3, 1, 71)
	suspicious := make([]int, 30)
	for i := range suspicious {
		suspicious[i] = i
	}

	// No clean remainder to compare against.
	got := ClassifyPoisonType(samples, suspicious, nil, DefaultClassifierConfig())
	assert.Equal(t, PoisonTriggerPattern, got)
}

func gaussianMatrix(n, dim int, sigma float64, seed int64) dataset.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := make(dataset.Matrix, n)
	for i := range m {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.NormFloat64() * sigma
		}
		m[i] = row
	}
	return m
}
