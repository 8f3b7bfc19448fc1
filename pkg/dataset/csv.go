package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// Tabular is a CSV dataset converted to an embedding matrix. The last column
// is treated as the class label; the remaining columns are z-score normalized
// and used as the embedding directly.
type Tabular struct {
	Samples Matrix
	Labels  Labels
	Header  []string
	Path    string
}

// CSVOption configures CSV loading.
type CSVOption func(*csvLoader)

type csvLoader struct {
	hasHeader bool
	hasLabels bool
}

// WithoutHeader treats the first row as data.
func WithoutHeader() CSVOption {
	return func(l *csvLoader) { l.hasHeader = false }
}

// WithoutLabels treats every column as a feature.
func WithoutLabels() CSVOption {
	return func(l *csvLoader) { l.hasLabels = false }
}

// LoadCSV reads a tabular dataset from a CSV file. Malformed rows are
// skipped rather than failing the whole load, matching how uploaded datasets
// tend to carry stray non-numeric rows.
func LoadCSV(path string, opts ...CSVOption) (*Tabular, error) {
	l := &csvLoader{hasHeader: true, hasLabels: true}
	for _, opt := range opts {
		opt(l)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var header []string
	if l.hasHeader {
		header, err = r.Read()
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}

	var (
		samples Matrix
		labels  Labels
	)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row, label, ok := parseRecord(record, l.hasLabels)
		if !ok {
			continue
		}
		samples = append(samples, row)
		if l.hasLabels {
			labels = append(labels, label)
		}
	}

	if len(samples) == 0 {
		return nil, ErrEmptyMatrix
	}

	normalize(samples)

	t := &Tabular{Samples: samples, Header: header, Path: path}
	if l.hasLabels {
		t.Labels = labels
	}
	return t, nil
}

// parseRecord converts a CSV record into a feature row and optional label.
func parseRecord(record []string, hasLabel bool) ([]float64, int, bool) {
	want := len(record)
	if hasLabel {
		want--
	}
	if want < 1 {
		return nil, 0, false
	}

	row := make([]float64, want)
	for i := 0; i < want; i++ {
		f, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return nil, 0, false
		}
		row[i] = f
	}

	var label int
	if hasLabel {
		raw := record[len(record)-1]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, 0, false
		}
		label = int(v)
	}
	return row, label, true
}

// normalize applies per-column z-score normalization in place.
func normalize(m Matrix) {
	n, d := m.Dims()
	if n == 0 {
		return
	}
	for j := 0; j < d; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += m[i][j]
		}
		mean /= float64(n)

		var variance float64
		for i := 0; i < n; i++ {
			diff := m[i][j] - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(n))

		for i := 0; i < n; i++ {
			m[i][j] = (m[i][j] - mean) / (std + Epsilon)
		}
	}
}
