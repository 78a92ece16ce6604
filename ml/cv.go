package ml

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// StratifiedKFold assigns sample indices to k folds so every fold keeps the
// class ratio. Each class is shuffled with the seed and dealt round-robin;
// the assignment is fully determined by (labels, k, seed).
func StratifiedKFold(labels []int, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, errors.New("k must be at least 2")
	}
	if len(labels) < k {
		return nil, errors.New("not enough samples for the fold count")
	}

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	rnd := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)
	for _, class := range []int{0, 1} {
		indices := byClass[class]
		rnd.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for i, idx := range indices {
			folds[i%k] = append(folds[i%k], idx)
		}
	}
	for i, fold := range folds {
		if len(fold) == 0 {
			return nil, fmt.Errorf("fold %d is empty", i)
		}
	}
	return folds, nil
}

// CrossValAUC trains a fresh classifier per fold and scores held-out
// probabilities by ROC-AUC. Returns per-fold scores and their mean.
func CrossValAUC(family string, params Params, features [][]float64, labels []int, folds [][]int) ([]float64, float64, error) {
	scores := make([]float64, 0, len(folds))
	for f, holdout := range folds {
		inFold := make(map[int]bool, len(holdout))
		for _, idx := range holdout {
			inFold[idx] = true
		}
		var trainX [][]float64
		var trainY []int
		for i := range features {
			if !inFold[i] {
				trainX = append(trainX, features[i])
				trainY = append(trainY, labels[i])
			}
		}

		model, err := NewClassifier(family, params)
		if err != nil {
			return nil, 0, err
		}
		if err := model.Fit(trainX, trainY); err != nil {
			return nil, 0, fmt.Errorf("fold %d: %w", f, err)
		}

		probs := make([]float64, len(holdout))
		holdoutY := make([]int, len(holdout))
		for i, idx := range holdout {
			p, err := model.PredictProba(features[idx])
			if err != nil {
				return nil, 0, fmt.Errorf("fold %d: %w", f, err)
			}
			probs[i] = p
			holdoutY[i] = labels[idx]
		}
		auc, err := RocAUC(holdoutY, probs)
		if err != nil {
			return nil, 0, fmt.Errorf("fold %d: %w", f, err)
		}
		scores = append(scores, auc)
	}
	return scores, stat.Mean(scores, nil), nil
}
