package spectral

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
)

func TestDetectEmptyMatrix(t *testing.T) {
	d := New()

	_, err := d.Detect(context.Background(), nil, nil)
	assert.ErrorIs(t, err, dataset.ErrEmptyMatrix)

	_, err = d.Detect(context.Background(), dataset.Matrix{{}}, nil)
	assert.ErrorIs(t, err, dataset.ErrEmptyMatrix)
}

func TestDetectSingleSample(t *testing.T) {
	d := New()

	result, err := d.Detect(context.Background(), dataset.Matrix{{1, 2, 3}}, nil)
	require.NoError(t, err)

	assert.Empty(t, result.SuspiciousIndices)
	assert.Len(t, result.Scores, 1)
	assert.Zero(t, result.Confidence)
}

func TestDetectConstantData(t *testing.T) {
	samples := make(dataset.Matrix, 20)
	for i := range samples {
		samples[i] = []float64{1, 1, 1}
	}

	result, err := New().Detect(context.Background(), samples, nil)
	require.NoError(t, err)

	// All projections identical, nothing stands out.
	assert.Empty(t, result.SuspiciousIndices)
}

func TestDetectShiftedOutliers(t *testing.T) {
	const (
		n         = 1000
		dim       = 8
		nPoisoned = 100
	)
	samples := shiftedDataset(n, dim, nPoisoned, 10)

	d := New(WithThresholdPercentile(90))
	result, err := d.Detect(context.Background(), samples, nil)
	require.NoError(t, err)

	assert.Equal(t, detectors.MethodSpectral, result.Method)
	assert.Len(t, result.Scores, n)

	flaggedPoisoned, flaggedClean := 0, 0
	for _, idx := range result.SuspiciousIndices {
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, n)
		if idx >= n-nPoisoned {
			flaggedPoisoned++
		} else {
			flaggedClean++
		}
	}

	assert.GreaterOrEqual(t, flaggedPoisoned, 90,
		"most shifted samples should be flagged")
	assert.LessOrEqual(t, flaggedClean, 10,
		"clean samples should mostly stay unflagged")
	assert.InDelta(t, float64(len(result.SuspiciousIndices))/float64(n)*100,
		result.Confidence, 1e-9)
	assert.InDelta(t, result.Confidence*0.5, result.AccuracyImpact, 1e-9)
}

func TestDetectIndicesSortedAndUnique(t *testing.T) {
	samples := shiftedDataset(200, 4, 20, 8)

	result, err := New().Detect(context.Background(), samples, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.SuspiciousIndices)

	for i := 1; i < len(result.SuspiciousIndices); i++ {
		assert.Greater(t, result.SuspiciousIndices[i], result.SuspiciousIndices[i-1])
	}
}

func TestWithComponentsCapsAtDimension(t *testing.T) {
	samples := shiftedDataset(50, 3, 5, 8)

	// More components than dimensions must not panic or error.
	result, err := New(WithComponents(64)).Detect(context.Background(), samples, nil)
	require.NoError(t, err)
	assert.Len(t, result.Scores, 50)
}

// shiftedDataset builds n gaussian samples and moves the last nShifted of
// them offset standard deviations away in every dimension.
func shiftedDataset(n, dim, nShifted int, offset float64) dataset.Matrix {
	rng := rand.New(rand.NewSource(11))

	samples := make(dataset.Matrix, n)
	for i := range samples {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.NormFloat64()
			if i >= n-nShifted {
				row[j] += offset
			}
		}
		samples[i] = row
	}
	return samples
}
