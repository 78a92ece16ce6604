package ml

import (
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// paramRange bounds one hyperparameter dimension. Log-scaled dimensions are
// sampled and perturbed in log space.
type paramRange struct {
	Name    string
	Min     float64
	Max     float64
	Log     bool
	Integer bool
}

func searchSpace(family string) []paramRange {
	switch family {
	case FamilyBoosting:
		return []paramRange{
			{Name: "n_trees", Min: 40, Max: 300, Integer: true},
			{Name: "max_depth", Min: 2, Max: 5, Integer: true},
			{Name: "learning_rate", Min: 0.02, Max: 0.3, Log: true},
			{Name: "pos_weight", Min: 1, Max: 4},
		}
	case FamilyTree:
		return []paramRange{
			{Name: "max_depth", Min: 2, Max: 8, Integer: true},
			{Name: "min_samples", Min: 5, Max: 60, Integer: true},
			{Name: "pos_weight", Min: 1, Max: 4},
		}
	case FamilyLogistic:
		return []paramRange{
			{Name: "epochs", Min: 100, Max: 500, Integer: true},
			{Name: "learning_rate", Min: 0.01, Max: 0.5, Log: true},
			{Name: "l2", Min: 1e-4, Max: 0.1, Log: true},
			{Name: "pos_weight", Min: 1, Max: 4},
		}
	default:
		return nil
	}
}

// Trial is one evaluated hyperparameter configuration.
type Trial struct {
	ID       int       `json:"id"`
	Params   Params    `json:"params"`
	FoldAUCs []float64 `json:"fold_aucs"`
	MeanAUC  float64   `json:"mean_auc"`
}

// ProgressFunc receives each trial as soon as it is scored.
type ProgressFunc func(Trial)

// TunerConfig bounds the sequential search.
type TunerConfig struct {
	Family string
	Budget int
	Warmup int
	Folds  int
	Seed   int64
}

// eliteCount is how many of the best trials seed new proposals.
const eliteCount = 3

// Tune runs a fixed-budget sequential search over the family's
// hyperparameter space. The warm-up phase samples uniformly; after that each
// proposal is a Normal perturbation of one of the best trials so far, with
// the spread shrinking as the budget is spent. The objective is mean
// cross-validated ROC-AUC on folds fixed once per run; everything is
// deterministic for a fixed seed.
func Tune(features [][]float64, labels []int, cfg TunerConfig, onProgress ProgressFunc) (*Trial, []Trial, error) {
	space := searchSpace(cfg.Family)
	if space == nil {
		return nil, nil, errors.New("no search space for family: " + cfg.Family)
	}
	budget := cfg.Budget
	if budget <= 0 {
		budget = 30
	}
	warmup := cfg.Warmup
	if warmup <= 0 || warmup > budget {
		warmup = budget / 3
		if warmup < 1 {
			warmup = 1
		}
	}
	folds := cfg.Folds
	if folds <= 0 {
		folds = 5
	}
	foldIdx, err := StratifiedKFold(labels, folds, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(uint64(cfg.Seed)))
	trials := make([]Trial, 0, budget)

	for t := 0; t < budget; t++ {
		var params Params
		if t < warmup {
			params = sampleUniform(space, rng)
		} else {
			base := pickElite(trials, rng)
			decay := 0.25*(1-float64(t)/float64(budget)) + 0.05
			params = perturb(space, base.Params, decay, rng)
		}

		foldAUCs, mean, err := CrossValAUC(cfg.Family, params, features, labels, foldIdx)
		if err != nil {
			return nil, nil, err
		}
		trial := Trial{ID: t, Params: params, FoldAUCs: foldAUCs, MeanAUC: mean}
		trials = append(trials, trial)
		logger.Info("tuner trial",
			zap.Int("trial", t),
			zap.Float64("mean_auc", mean),
			zap.Any("params", params))
		if onProgress != nil {
			onProgress(trial)
		}
	}

	best := trials[0]
	for _, trial := range trials[1:] {
		if trial.MeanAUC > best.MeanAUC {
			best = trial
		}
	}
	return &best, trials, nil
}

func sampleUniform(space []paramRange, rng *rand.Rand) Params {
	params := make(Params, len(space))
	for _, dim := range space {
		var v float64
		if dim.Log {
			v = math.Exp(math.Log(dim.Min) + rng.Float64()*(math.Log(dim.Max)-math.Log(dim.Min)))
		} else {
			v = dim.Min + rng.Float64()*(dim.Max-dim.Min)
		}
		params[dim.Name] = clampDim(dim, v)
	}
	return params
}

func pickElite(trials []Trial, rng *rand.Rand) Trial {
	ranked := append([]Trial(nil), trials...)
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].MeanAUC != ranked[b].MeanAUC {
			return ranked[a].MeanAUC > ranked[b].MeanAUC
		}
		return ranked[a].ID < ranked[b].ID
	})
	n := eliteCount
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[rng.Intn(n)]
}

func perturb(space []paramRange, base Params, decay float64, rng *rand.Rand) Params {
	params := make(Params, len(space))
	for _, dim := range space {
		center := base.get(dim.Name, (dim.Min+dim.Max)/2)
		var v float64
		if dim.Log {
			normal := distuv.Normal{
				Mu:    math.Log(center),
				Sigma: (math.Log(dim.Max) - math.Log(dim.Min)) * decay,
				Src:   rng,
			}
			v = math.Exp(normal.Rand())
		} else {
			normal := distuv.Normal{
				Mu:    center,
				Sigma: (dim.Max - dim.Min) * decay,
				Src:   rng,
			}
			v = normal.Rand()
		}
		params[dim.Name] = clampDim(dim, v)
	}
	return params
}

func clampDim(dim paramRange, v float64) float64 {
	if v < dim.Min {
		v = dim.Min
	}
	if v > dim.Max {
		v = dim.Max
	}
	if dim.Integer {
		v = math.Round(v)
	}
	return v
}
