// Package viz shapes detection data for display. It is a thin projection
// layer at the boundary; nothing here feeds back into detection.
package viz

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
)

// Point is one projected sample.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Cluster    int     `json:"cluster"`
	Suspicious bool    `json:"suspicious"`
	Index      int     `json:"index"`
}

// Bounds are the axis limits of a projection.
type Bounds struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Projection is a 2D display projection of a sample matrix, ordered by
// original sample index.
type Projection struct {
	Method string  `json:"method"`
	Points []Point `json:"points"`
	Bounds Bounds  `json:"bounds"`
}

// Project reduces the matrix to 2D via principal components. clusters may be
// nil (all points get cluster 0); suspicious marks flagged sample indices.
func Project(samples dataset.Matrix, clusters []int, suspicious []int) (Projection, error) {
	n, d := samples.Dims()
	if n == 0 || d == 0 {
		return Projection{}, dataset.ErrEmptyMatrix
	}

	x := mat.NewDense(n, d, nil)
	for i, row := range samples {
		x.SetRow(i, row)
	}

	coords, err := principalCoords(x, n, d)
	if err != nil {
		return Projection{}, err
	}

	suspiciousSet := make(map[int]struct{}, len(suspicious))
	for _, i := range suspicious {
		suspiciousSet[i] = struct{}{}
	}

	proj := Projection{
		Method: "pca",
		Points: make([]Point, n),
		Bounds: Bounds{
			XMin: math.Inf(1), XMax: math.Inf(-1),
			YMin: math.Inf(1), YMax: math.Inf(-1),
		},
	}
	for i := 0; i < n; i++ {
		px, py := coords.At(i, 0), coords.At(i, 1)
		p := Point{X: px, Y: py, Index: i}
		if clusters != nil && i < len(clusters) {
			p.Cluster = clusters[i]
		}
		_, p.Suspicious = suspiciousSet[i]
		proj.Points[i] = p

		proj.Bounds.XMin = math.Min(proj.Bounds.XMin, px)
		proj.Bounds.XMax = math.Max(proj.Bounds.XMax, px)
		proj.Bounds.YMin = math.Min(proj.Bounds.YMin, py)
		proj.Bounds.YMax = math.Max(proj.Bounds.YMax, py)
	}
	return proj, nil
}

// principalCoords projects centered samples onto the top two principal
// components, padding with a zero axis for one-dimensional data.
func principalCoords(x *mat.Dense, n, d int) (*mat.Dense, error) {
	coords := mat.NewDense(n, 2, nil)
	if d == 1 || n == 1 {
		for i := 0; i < n; i++ {
			coords.Set(i, 0, x.At(i, 0))
		}
		return coords, nil
	}

	var pc stat.PC
	if !pc.PrincipalComponents(x, nil) {
		return nil, errors.New("principal component factorization failed")
	}
	var vectors mat.Dense
	pc.VectorsTo(&vectors)

	centered := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, x)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, col[i]-mean)
		}
	}

	coords.Mul(centered, vectors.Slice(0, d, 0, 2))
	return coords, nil
}

// HeatmapBin is one histogram bucket of the anomaly-score distribution.
type HeatmapBin struct {
	Bin               int    `json:"bin"`
	Count             int    `json:"count"`
	Range             string `json:"range"`
	IsSuspiciousRange bool   `json:"is_suspicious_range"`
}

// Heatmap summarizes the score distribution; buckets whose lower edge sits
// at or above the 75th percentile are marked suspicious.
type Heatmap struct {
	Bins            []HeatmapBin `json:"heatmap"`
	TotalSamples    int          `json:"total_samples"`
	SuspiciousCount int          `json:"suspicious_count"`
}

// BuildHeatmap bins anomaly scores for display.
func BuildHeatmap(scores []float64, suspicious []int, bins int) Heatmap {
	h := Heatmap{TotalSamples: len(scores), SuspiciousCount: len(suspicious)}
	if len(scores) == 0 || bins < 1 {
		return h
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores {
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}
	width := (maxScore - minScore) / float64(bins)
	if width == 0 {
		width = 1
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	cut := stat.Quantile(0.75, stat.LinInterp, sorted, nil)

	counts := make([]int, bins)
	for _, s := range scores {
		idx := int((s - minScore) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	h.Bins = make([]HeatmapBin, bins)
	for i := 0; i < bins; i++ {
		lo := minScore + float64(i)*width
		hi := lo + width
		h.Bins[i] = HeatmapBin{
			Bin:               i,
			Count:             counts[i],
			Range:             fmt.Sprintf("%.3f-%.3f", lo, hi),
			IsSuspiciousRange: lo >= cut,
		}
	}
	return h
}

// DistributionSummary holds order statistics of a score series.
type DistributionSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// ThreatDistribution summarizes confidence and threat-score series across
// analysis runs.
type ThreatDistribution struct {
	Confidence DistributionSummary `json:"confidence_distribution"`
	Threat     DistributionSummary `json:"threat_distribution"`
}

// BuildThreatDistribution computes summary statistics for dashboards.
func BuildThreatDistribution(confidences, threatScores []float64) ThreatDistribution {
	return ThreatDistribution{
		Confidence: summarize(confidences),
		Threat:     summarize(threatScores),
	}
}

func summarize(values []float64) DistributionSummary {
	if len(values) == 0 {
		return DistributionSummary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return DistributionSummary{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
	}
}
