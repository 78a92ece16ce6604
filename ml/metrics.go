package ml

import (
	"errors"
	"sort"
)

// RocAUC computes the area under the ROC curve by the Mann-Whitney rank
// statistic with average ranks for ties. Pure integer/float arithmetic over
// a deterministic sort, so repeated runs on the same inputs are
// bit-identical.
func RocAUC(labels []int, probs []float64) (float64, error) {
	if len(labels) == 0 || len(labels) != len(probs) {
		return 0, errors.New("labels and probs size mismatch")
	}
	n := len(labels)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] < probs[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[order[j]] == probs[order[i]] {
			j++
		}
		// Tied scores share the average rank of their block.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	var posRankSum float64
	var nPos, nNeg float64
	for i, label := range labels {
		if label == 1 {
			posRankSum += ranks[i]
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, errors.New("need both classes for AUC")
	}
	return (posRankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// PrecisionRecall evaluates the decision rule p > threshold.
func PrecisionRecall(labels []int, probs []float64, threshold float64) (precision, recall float64) {
	var tp, fp, fn float64
	for i, label := range labels {
		predicted := probs[i] > threshold
		switch {
		case predicted && label == 1:
			tp++
		case predicted && label == 0:
			fp++
		case !predicted && label == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	return precision, recall
}

// Accuracy evaluates the decision rule p > threshold.
func Accuracy(labels []int, probs []float64, threshold float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	var correct float64
	for i, label := range labels {
		predicted := 0
		if probs[i] > threshold {
			predicted = 1
		}
		if predicted == label {
			correct++
		}
	}
	return correct / float64(len(labels))
}
