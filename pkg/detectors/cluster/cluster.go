// Package cluster implements activation-clustering poisoning detection.
//
// Samples are partitioned with k-means while a DBSCAN pass over z-scored
// features marks density outliers. A sample is suspicious when it is a
// density outlier or falls in the single anomalous cluster. Which cluster is
// "anomalous" is a heuristic, not a statistical guarantee: the most
// label-mixed cluster when labels exist, the smallest cluster otherwise.
package cluster

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
)

// Detector flags density outliers and members of the anomalous cluster.
type Detector struct {
	clusters         int
	eps              float64
	minSamples       int
	seed             int64
	maxIterations    int
	impactMultiplier float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithClusters sets the k-means partition count.
func WithClusters(k int) Option {
	return func(d *Detector) { d.clusters = k }
}

// WithEps sets the DBSCAN neighborhood radius over z-scored features.
func WithEps(eps float64) Option {
	return func(d *Detector) { d.eps = eps }
}

// WithMinSamples sets the DBSCAN core-point neighbor minimum.
func WithMinSamples(n int) Option {
	return func(d *Detector) { d.minSamples = n }
}

// WithSeed sets the k-means seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(d *Detector) { d.seed = seed }
}

// WithImpactMultiplier sets the confidence-to-accuracy-impact multiplier.
func WithImpactMultiplier(m float64) Option {
	return func(d *Detector) { d.impactMultiplier = m }
}

// New creates a cluster detector with the given options.
func New(opts ...Option) *Detector {
	d := &Detector{
		clusters:         10,
		eps:              0.5,
		minSamples:       5,
		seed:             42,
		maxIterations:    100,
		impactMultiplier: 0.4,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Method implements detectors.Detector.
func (d *Detector) Method() detectors.Method { return detectors.MethodCluster }

// Detect runs k-means and DBSCAN and merges their anomaly signals.
func (d *Detector) Detect(_ context.Context, samples dataset.Matrix, labels dataset.Labels) (detectors.Result, error) {
	result := detectors.Result{Method: d.Method()}

	n, dim := samples.Dims()
	if n == 0 || dim == 0 {
		return result, dataset.ErrEmptyMatrix
	}

	k := d.clusters
	if k > n {
		k = n
	}

	assignments, centroids := kmeans(samples, k, d.seed, d.maxIterations)
	noise := dbscanNoise(zscore(samples), d.eps, d.minSamples)
	anomalous := anomalousCluster(assignments, labels, k)

	for i := 0; i < n; i++ {
		if noise[i] || assignments[i] == anomalous {
			result.SuspiciousIndices = append(result.SuspiciousIndices, i)
		}
		if noise[i] {
			result.OutlierCount++
		}
	}

	result.Scores = centroidDistanceScores(samples, assignments, centroids)
	result.Confidence = detectors.Confidence(len(result.SuspiciousIndices), n)
	result.AccuracyImpact = detectors.Clamp(result.Confidence*d.impactMultiplier, 0, 100)
	return result, nil
}

// kmeans partitions samples into k clusters with a deterministic seed.
func kmeans(samples dataset.Matrix, k int, seed int64, maxIterations int) ([]int, dataset.Matrix) {
	n, dim := samples.Dims()
	rng := rand.New(rand.NewSource(seed))

	centroids := make(dataset.Matrix, k)
	for i, idx := range rng.Perm(n)[:k] {
		c := make([]float64, dim)
		copy(c, samples[idx])
		centroids[i] = c
	}

	assignments := make([]int, n)
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, row := range samples {
			best := nearestCentroid(row, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make(dataset.Matrix, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, row := range samples {
			floats.Add(sums[assignments[i]], row)
			counts[assignments[i]]++
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Empty cluster keeps its previous centroid.
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}
	return assignments, centroids
}

func nearestCentroid(row []float64, centroids dataset.Matrix) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if dist := floats.Distance(row, centroid, 2); dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}

// dbscanNoise returns a per-sample flag marking DBSCAN noise points, i.e.
// samples that belong to no dense region.
func dbscanNoise(samples dataset.Matrix, eps float64, minSamples int) []bool {
	n := samples.Rows()

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if floats.Distance(samples[i], samples[j], 2) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	const (
		unvisited = 0
		clustered = 1
		noisy     = 2
	)
	state := make([]int, n)

	for i := 0; i < n; i++ {
		if state[i] != unvisited {
			continue
		}
		seed := neighbors(i)
		if len(seed) < minSamples {
			state[i] = noisy
			continue
		}

		state[i] = clustered
		queue := seed
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if state[j] == noisy {
				state[j] = clustered // border point reached from a core
			}
			if state[j] != unvisited {
				continue
			}
			state[j] = clustered
			if nb := neighbors(j); len(nb) >= minSamples {
				queue = append(queue, nb...)
			}
		}
	}

	noise := make([]bool, n)
	for i, s := range state {
		noise[i] = s == noisy
	}
	return noise
}

// zscore returns a per-column standardized copy of the matrix.
func zscore(samples dataset.Matrix) dataset.Matrix {
	n, dim := samples.Dims()
	out := make(dataset.Matrix, n)
	for i := range out {
		out[i] = make([]float64, dim)
	}
	for j := 0; j < dim; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += samples[i][j]
		}
		mean /= float64(n)

		var variance float64
		for i := 0; i < n; i++ {
			diff := samples[i][j] - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(n))

		for i := 0; i < n; i++ {
			out[i][j] = (samples[i][j] - mean) / (std + dataset.Epsilon)
		}
	}
	return out
}

// anomalousCluster picks the single cluster treated as poisoned: the most
// label-mixed cluster when labels are available, otherwise the smallest.
// Ties resolve to the lowest cluster id.
func anomalousCluster(assignments []int, labels dataset.Labels, k int) int {
	if labels == nil {
		counts := make([]int, k)
		for _, c := range assignments {
			counts[c]++
		}
		smallest := 0
		for c := 1; c < k; c++ {
			if counts[c] < counts[smallest] {
				smallest = c
			}
		}
		return smallest
	}

	distinct := make([]map[int]struct{}, k)
	for i := range distinct {
		distinct[i] = make(map[int]struct{})
	}
	for i, c := range assignments {
		distinct[c][labels[i]] = struct{}{}
	}

	anomalous, maxDiversity := 0, 0
	for c := 0; c < k; c++ {
		if len(distinct[c]) > maxDiversity {
			maxDiversity = len(distinct[c])
			anomalous = c
		}
	}
	return anomalous
}

// centroidDistanceScores min-max normalizes each sample's distance to its
// nearest centroid.
func centroidDistanceScores(samples dataset.Matrix, assignments []int, centroids dataset.Matrix) []float64 {
	n := samples.Rows()
	scores := make([]float64, n)

	minDist, maxDist := math.Inf(1), math.Inf(-1)
	for i, row := range samples {
		dist := floats.Distance(row, centroids[assignments[i]], 2)
		for _, centroid := range centroids {
			if d := floats.Distance(row, centroid, 2); d < dist {
				dist = d
			}
		}
		scores[i] = dist
		minDist = math.Min(minDist, dist)
		maxDist = math.Max(maxDist, dist)
	}

	span := maxDist - minDist + dataset.Epsilon
	for i := range scores {
		scores[i] = (scores[i] - minDist) / span
	}
	return scores
}
