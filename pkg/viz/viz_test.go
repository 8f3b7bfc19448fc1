package viz

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
)

func TestProjectEmpty(t *testing.T) {
	_, err := Project(nil, nil, nil)
	assert.ErrorIs(t, err, dataset.ErrEmptyMatrix)
}

func TestProject(t *testing.T) {
	rng := rand.New(rand.NewSource(19))

	samples := make(dataset.Matrix, 40)
	clusters := make([]int, 40)
	for i := range samples {
		samples[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		clusters[i] = i % 3
	}

	proj, err := Project(samples, clusters, []int{2, 7})
	require.NoError(t, err)

	assert.Equal(t, "pca", proj.Method)
	require.Len(t, proj.Points, 40)

	for i, p := range proj.Points {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, i%3, p.Cluster)
		assert.Equal(t, i == 2 || i == 7, p.Suspicious)
		assert.GreaterOrEqual(t, p.X, proj.Bounds.XMin)
		assert.LessOrEqual(t, p.X, proj.Bounds.XMax)
		assert.GreaterOrEqual(t, p.Y, proj.Bounds.YMin)
		assert.LessOrEqual(t, p.Y, proj.Bounds.YMax)
	}
}

func TestProjectOneDimensional(t *testing.T) {
	samples := dataset.Matrix{{1}, {2}, {3}}

	proj, err := Project(samples, nil, nil)
	require.NoError(t, err)

	require.Len(t, proj.Points, 3)
	for i, p := range proj.Points {
		assert.Equal(t, samples[i][0], p.X)
		assert.Zero(t, p.Y)
		assert.Zero(t, p.Cluster)
	}
}

func TestProjectSingleSample(t *testing.T) {
	proj, err := Project(dataset.Matrix{{5, 6, 7}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, proj.Points, 1)
}

func TestBuildHeatmap(t *testing.T) {
	scores := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

	h := BuildHeatmap(scores, []int{9, 10}, 5)

	assert.Equal(t, 11, h.TotalSamples)
	assert.Equal(t, 2, h.SuspiciousCount)
	require.Len(t, h.Bins, 5)

	total := 0
	for _, bin := range h.Bins {
		total += bin.Count
	}
	assert.Equal(t, 11, total, "every score lands in exactly one bin")

	// The top of the distribution is marked as the suspicious range, the
	// bottom never is.
	assert.False(t, h.Bins[0].IsSuspiciousRange)
	assert.True(t, h.Bins[4].IsSuspiciousRange)
}

func TestBuildHeatmapDegenerate(t *testing.T) {
	assert.Empty(t, BuildHeatmap(nil, nil, 10).Bins)
	assert.Empty(t, BuildHeatmap([]float64{1, 2}, nil, 0).Bins)

	// Identical scores collapse into a single occupied bin without dividing
	// by zero.
	h := BuildHeatmap([]float64{3, 3, 3, 3}, nil, 4)
	require.Len(t, h.Bins, 4)
	assert.Equal(t, 4, h.Bins[0].Count)
}

func TestBuildThreatDistribution(t *testing.T) {
	dist := BuildThreatDistribution(
		[]float64{10, 20, 30, 40},
		[]float64{5, 5, 5},
	)

	assert.Equal(t, 10.0, dist.Confidence.Min)
	assert.Equal(t, 40.0, dist.Confidence.Max)
	assert.InDelta(t, 25, dist.Confidence.Mean, 1e-9)
	assert.InDelta(t, 25, dist.Confidence.Median, 1e-9)

	assert.Equal(t, 5.0, dist.Threat.Min)
	assert.Equal(t, 5.0, dist.Threat.Max)

	empty := BuildThreatDistribution(nil, nil)
	assert.Zero(t, empty.Confidence.Max)
}
