package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
)

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{score: 0, want: "A"},
		{score: 16.9, want: "A"},
		{score: 17, want: "B"},
		{score: 33.9, want: "B"},
		{score: 34, want: "C"},
		{score: 50.9, want: "C"},
		{score: 51, want: "D"},
		{score: 67.9, want: "D"},
		{score: 68, want: "E"},
		{score: 84.9, want: "E"},
		{score: 85, want: "F"},
		{score: 100, want: "F"},
		{score: 250, want: "F"},
		{score: -10, want: "A"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFor(tt.score), "score %.1f", tt.score)
	}
}

func TestAggregateEmpty(t *testing.T) {
	v := Aggregate(nil, nil)

	assert.False(t, v.Detected())
	assert.Equal(t, "A", v.Grade)
	assert.Equal(t, PoisonNone, v.PoisonType)
	assert.Zero(t, v.ThreatScore)
}

func TestAggregateMergesIndices(t *testing.T) {
	results := []detectors.Result{
		{
			Method:            detectors.MethodSpectral,
			SuspiciousIndices: []int{5, 1, 9},
			Confidence:        30,
			AccuracyImpact:    15,
		},
		{
			Method:            detectors.MethodCluster,
			SuspiciousIndices: []int{9, 2, 1},
			Confidence:        10,
			AccuracyImpact:    4,
		},
	}

	v := Aggregate(results, nil)

	assert.Equal(t, []int{1, 2, 5, 9}, v.SuspiciousIndices)
	assert.True(t, v.Detected())
	assert.InDelta(t, 20, v.Confidence, 1e-9)
	assert.InDelta(t, 9.5, v.AccuracyImpact, 1e-9)
	assert.Equal(t, v.Confidence, v.ThreatScore)
	assert.Equal(t, "B", v.Grade)
	assert.Equal(t, []detectors.Method{detectors.MethodSpectral, detectors.MethodCluster}, v.Methods)
}

func TestAggregateWeighted(t *testing.T) {
	results := []detectors.Result{
		{Method: detectors.MethodSpectral, Confidence: 90},
		{Method: detectors.MethodCluster, Confidence: 10},
	}
	weights := map[detectors.Method]float64{
		detectors.MethodSpectral: 3,
		detectors.MethodCluster:  1,
	}

	v := Aggregate(results, weights)

	// (90*3 + 10*1) / 4 = 70
	assert.InDelta(t, 70, v.Confidence, 1e-9)
	assert.Equal(t, "E", v.Grade)
}

func TestAggregateIgnoresNonPositiveWeights(t *testing.T) {
	results := []detectors.Result{
		{Method: detectors.MethodSpectral, Confidence: 60},
		{Method: detectors.MethodCluster, Confidence: 20},
	}
	weights := map[detectors.Method]float64{
		detectors.MethodSpectral: 0, // falls back to weight 1
	}

	v := Aggregate(results, weights)
	assert.InDelta(t, 40, v.Confidence, 1e-9)
}
