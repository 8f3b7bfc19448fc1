package analysis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
	"github.com/Praveen-2107/blackforge-ai/pkg/purify"
)

// stubDetector returns a fixed result, or a fixed error.
type stubDetector struct {
	method detectors.Method
	result detectors.Result
	err    error
}

func (s *stubDetector) Method() detectors.Method { return s.method }

func (s *stubDetector) Detect(context.Context, dataset.Matrix, dataset.Labels) (detectors.Result, error) {
	return s.result, s.err
}

func TestRunValidation(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	tests := []struct {
		name    string
		samples dataset.Matrix
		labels  dataset.Labels
		wantErr error
	}{
		{
			name:    "empty matrix",
			samples: nil,
			wantErr: dataset.ErrEmptyMatrix,
		},
		{
			name:    "ragged matrix",
			samples: dataset.Matrix{{1, 2}, {3}},
			wantErr: dataset.ErrRaggedMatrix,
		},
		{
			name:    "label mismatch",
			samples: dataset.Matrix{{1, 2}, {3, 4}},
			labels:  dataset.Labels{0},
			wantErr: dataset.ErrLabelMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := engine.Run(ctx, tt.samples, tt.labels, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunUnknownMethod(t *testing.T) {
	engine := NewEngine()

	_, _, err := engine.Run(context.Background(),
		dataset.Matrix{{1, 2}, {3, 4}}, nil,
		[]detectors.Method{"quantum_oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum_oracle")
}

func TestRunSkipsInfluenceWithoutLabels(t *testing.T) {
	engine := NewEngine()
	samples := poisonedDataset(300, 4, 30)

	verdict, results, err := engine.Run(context.Background(), samples, nil, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, detectors.MethodInfluence, r.Method)
	}
	assert.NotContains(t, verdict.Methods, detectors.MethodInfluence)
}

func TestRunAllDetectorsWithLabels(t *testing.T) {
	engine := NewEngine()
	samples := poisonedDataset(300, 4, 30)
	labels := make(dataset.Labels, 300)
	for i := range labels {
		labels[i] = i % 2
	}

	verdict, results, err := engine.Run(context.Background(), samples, labels, nil)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.True(t, verdict.Detected())
	assert.Equal(t, GradeFor(verdict.ThreatScore), verdict.Grade)
	assert.NotEqual(t, PoisonNone, verdict.PoisonType)

	seen := make(map[int]bool)
	for i, idx := range verdict.SuspiciousIndices {
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 300)
		require.False(t, seen[idx], "duplicate index %d", idx)
		seen[idx] = true
		if i > 0 {
			require.Greater(t, idx, verdict.SuspiciousIndices[i-1])
		}
	}
}

func TestRunClassifiesInjectedOutliers(t *testing.T) {
	engine := NewEngine()
	samples := poisonedDataset(500, 6, 50)

	verdict, _, err := engine.Run(context.Background(), samples, nil,
		[]detectors.Method{detectors.MethodSpectral})
	require.NoError(t, err)

	assert.True(t, verdict.Detected())
	assert.Equal(t, PoisonOutlierInjection, verdict.PoisonType)
}

func TestRunPropagatesDetectorFailure(t *testing.T) {
	boom := errors.New("boom")
	engine := NewEngine(WithDetector(&stubDetector{
		method: detectors.MethodSpectral,
		err:    boom,
	}))

	_, _, err := engine.Run(context.Background(),
		dataset.Matrix{{1, 2}, {3, 4}}, nil,
		[]detectors.Method{detectors.MethodSpectral})
	assert.ErrorIs(t, err, boom)
}

func TestRunAppliesWeights(t *testing.T) {
	engine := NewEngine(
		WithDetector(&stubDetector{
			method: detectors.MethodSpectral,
			result: detectors.Result{Method: detectors.MethodSpectral, Confidence: 80},
		}),
		WithDetector(&stubDetector{
			method: detectors.MethodCluster,
			result: detectors.Result{Method: detectors.MethodCluster, Confidence: 20},
		}),
		WithWeights(map[detectors.Method]float64{
			detectors.MethodSpectral: 1,
			detectors.MethodCluster:  3,
		}),
	)

	verdict, _, err := engine.Run(context.Background(),
		dataset.Matrix{{1, 2}, {3, 4}}, nil,
		[]detectors.Method{detectors.MethodSpectral, detectors.MethodCluster})
	require.NoError(t, err)

	// (80*1 + 20*3) / 4 = 35
	assert.InDelta(t, 35, verdict.Confidence, 1e-9)
}

func TestPurifyThenRedetect(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "poisoned.csv")
	writePoisonedCSV(t, srcPath, 1000, 6, 100)

	engine := NewEngine()
	ctx := context.Background()
	methods := []detectors.Method{detectors.MethodSpectral}

	tab, err := dataset.LoadCSV(srcPath)
	require.NoError(t, err)
	before, _, err := engine.Run(ctx, tab.Samples, tab.Labels, methods)
	require.NoError(t, err)
	require.True(t, before.Detected())

	cleanPath := filepath.Join(dir, "clean.csv")
	outcome, err := purify.New().Purify(srcPath, cleanPath, before.SuspiciousIndices, purify.KindTabular)
	require.NoError(t, err)
	require.Equal(t, purify.ModePurified, outcome.Mode)
	require.Equal(t, len(before.SuspiciousIndices), outcome.Removed)

	cleanTab, err := dataset.LoadCSV(cleanPath)
	require.NoError(t, err)
	after, _, err := engine.Run(ctx, cleanTab.Samples, cleanTab.Labels, methods)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(after.SuspiciousIndices), len(before.SuspiciousIndices),
		"purified data must not look more poisoned than the original")
}

// poisonedDataset builds gaussian samples with the last nPoisoned shifted far
// out of distribution.
func poisonedDataset(n, dim, nPoisoned int) dataset.Matrix {
	rng := rand.New(rand.NewSource(29))
	m := make(dataset.Matrix, n)
	for i := range m {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.NormFloat64()
			if i >= n-nPoisoned {
				row[j] += 10
			}
		}
		m[i] = row
	}
	return m
}

func writePoisonedCSV(t *testing.T, path string, n, dim, nPoisoned int) {
	t.Helper()

	var b strings.Builder
	for j := 0; j < dim; j++ {
		fmt.Fprintf(&b, "feature_%d,", j)
	}
	b.WriteString("label\n")

	samples := poisonedDataset(n, dim, nPoisoned)
	for i, row := range samples {
		for _, v := range row {
			fmt.Fprintf(&b, "%.6f,", v)
		}
		fmt.Fprintf(&b, "%d\n", i%2)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}
