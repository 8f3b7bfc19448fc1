package analysis

import (
	"sort"

	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
)

// Verdict is the aggregate outcome of one analysis run. It is built once and
// never mutated.
type Verdict struct {
	// SuspiciousIndices is the deduplicated, ascending union of every
	// detector's flagged indices.
	SuspiciousIndices []int `json:"suspicious_indices"`

	// Confidence is the detector-weighted average confidence in [0,100].
	Confidence float64 `json:"poison_confidence"`

	// ThreatScore equals Confidence; kept separate so the threat scale can
	// diverge later without an API change.
	ThreatScore float64 `json:"threat_score"`

	// Grade is the letter grade A (clean) through F (severe).
	Grade string `json:"threat_grade"`

	// AccuracyImpact is the weighted average of per-detector impact
	// estimates in [0,100].
	AccuracyImpact float64 `json:"estimated_accuracy_impact"`

	// PoisonType names the attack family for the merged suspicious set.
	PoisonType PoisonType `json:"poison_type"`

	// Methods lists the detectors that contributed.
	Methods []detectors.Method `json:"methods"`
}

// Detected reports whether any detector flagged a sample.
func (v Verdict) Detected() bool { return len(v.SuspiciousIndices) > 0 }

// gradeBands maps threat-score bands of width 17 to letter grades; 100 lands
// in the final band.
var gradeBands = [...]string{"A", "B", "C", "D", "E", "F"}

// GradeFor maps a threat score in [0,100] to its letter grade.
func GradeFor(score float64) string {
	idx := int(detectors.Clamp(score, 0, 100) / 17)
	if idx >= len(gradeBands) {
		idx = len(gradeBands) - 1
	}
	return gradeBands[idx]
}

// Aggregate merges completed detector results into a Verdict. weights maps a
// method to its confidence weight; missing or nil weights default to equal
// weighting. The poison type is left for the caller to fill via
// ClassifyPoisonType, which needs the sample matrix.
func Aggregate(results []detectors.Result, weights map[detectors.Method]float64) Verdict {
	v := Verdict{}
	if len(results) == 0 {
		v.Grade = GradeFor(0)
		v.PoisonType = PoisonNone
		return v
	}

	merged := make(map[int]struct{})
	var weightSum, confidenceSum, impactSum float64
	for _, r := range results {
		w := 1.0
		if weights != nil {
			if ww, ok := weights[r.Method]; ok && ww > 0 {
				w = ww
			}
		}
		weightSum += w
		confidenceSum += r.Confidence * w
		impactSum += r.AccuracyImpact * w
		for _, idx := range r.SuspiciousIndices {
			merged[idx] = struct{}{}
		}
		v.Methods = append(v.Methods, r.Method)
	}

	v.SuspiciousIndices = make([]int, 0, len(merged))
	for idx := range merged {
		v.SuspiciousIndices = append(v.SuspiciousIndices, idx)
	}
	sort.Ints(v.SuspiciousIndices)

	v.Confidence = detectors.Clamp(confidenceSum/weightSum, 0, 100)
	v.AccuracyImpact = detectors.Clamp(impactSum/weightSum, 0, 100)
	v.ThreatScore = v.Confidence
	v.Grade = GradeFor(v.ThreatScore)
	return v
}
