package ml

import (
	"errors"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// CandidateResult is the cross-validation outcome for one model family.
type CandidateResult struct {
	Family   string    `json:"family"`
	FoldAUCs []float64 `json:"fold_aucs"`
	MeanAUC  float64   `json:"mean_auc"`
	StdAUC   float64   `json:"std_auc"`
}

// SelectorConfig drives candidate comparison. SelectedFamily is the
// human-supplied choice; picking a family is partly a judgment call (a model
// with more tuning headroom can beat the nominally best validator), so the
// config value always wins when set.
type SelectorConfig struct {
	Families       []string
	Folds          int
	Seed           int64
	SelectedFamily string
}

// SelectModel cross-validates every candidate family and returns the scores
// plus the family to tune.
func SelectModel(features [][]float64, labels []int, cfg SelectorConfig) ([]CandidateResult, string, error) {
	families := cfg.Families
	if len(families) == 0 {
		families = DefaultFamilies()
	}
	folds := cfg.Folds
	if folds <= 0 {
		folds = 5
	}
	foldIdx, err := StratifiedKFold(labels, folds, cfg.Seed)
	if err != nil {
		return nil, "", err
	}

	results := make([]CandidateResult, 0, len(families))
	bestFamily := ""
	bestMean := -1.0
	for _, family := range families {
		foldAUCs, mean, err := CrossValAUC(family, nil, features, labels, foldIdx)
		if err != nil {
			return nil, "", err
		}
		result := CandidateResult{
			Family:   family,
			FoldAUCs: foldAUCs,
			MeanAUC:  mean,
			StdAUC:   stat.StdDev(foldAUCs, nil),
		}
		results = append(results, result)
		logger.Info("candidate evaluated",
			zap.String("family", family),
			zap.Float64("mean_auc", mean),
			zap.Float64s("fold_aucs", foldAUCs))
		if mean > bestMean {
			bestMean = mean
			bestFamily = family
		}
	}

	if cfg.SelectedFamily != "" {
		found := false
		for _, family := range families {
			if family == cfg.SelectedFamily {
				found = true
				break
			}
		}
		if !found {
			return results, "", errors.New("selected_family is not among the candidates")
		}
		logger.Info("model family chosen by operator",
			zap.String("family", cfg.SelectedFamily),
			zap.String("best_by_auc", bestFamily))
		return results, cfg.SelectedFamily, nil
	}

	logger.Info("model family defaulted to best mean AUC",
		zap.String("family", bestFamily),
		zap.Float64("mean_auc", bestMean))
	return results, bestFamily, nil
}
