package ml

import (
	"errors"
	"sort"
)

// DefaultThreshold is the fallback when no cutoff reaches the recall floor.
const DefaultThreshold = 0.5

// ThresholdChoice is the outcome of threshold selection on a held-out set.
type ThresholdChoice struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MetFloor  bool    `json:"met_floor"`
}

// SelectThreshold picks the probability cutoff with maximal precision among
// cutoffs whose recall reaches the floor, under the serving decision rule
// p > threshold. Candidates are midpoints between consecutive distinct
// probabilities (plus one below the minimum), so the selector's arithmetic
// matches the serving predicate exactly. Falls back to DefaultThreshold when
// nothing reaches the floor.
func SelectThreshold(labels []int, probs []float64, recallFloor float64) (ThresholdChoice, error) {
	if len(labels) == 0 || len(labels) != len(probs) {
		return ThresholdChoice{}, errors.New("labels and probs size mismatch")
	}
	if recallFloor <= 0 || recallFloor > 1 {
		recallFloor = 0.8
	}

	unique := append([]float64(nil), probs...)
	sort.Float64s(unique)
	distinct := unique[:0]
	for i, v := range unique {
		if i == 0 || v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}

	candidates := make([]float64, 0, len(distinct))
	candidates = append(candidates, distinct[0]-1e-9)
	for i := 1; i < len(distinct); i++ {
		candidates = append(candidates, (distinct[i-1]+distinct[i])/2)
	}

	best := ThresholdChoice{Threshold: DefaultThreshold}
	for _, t := range candidates {
		precision, recall := PrecisionRecall(labels, probs, t)
		if recall < recallFloor {
			continue
		}
		// Ties prefer the higher cutoff: same precision, fewer flagged
		// customers.
		if !best.MetFloor || precision > best.Precision ||
			(precision == best.Precision && t > best.Threshold) {
			best = ThresholdChoice{Threshold: t, Precision: precision, Recall: recall, MetFloor: true}
		}
	}
	if !best.MetFloor {
		precision, recall := PrecisionRecall(labels, probs, DefaultThreshold)
		best.Precision = precision
		best.Recall = recall
	}
	return best, nil
}
