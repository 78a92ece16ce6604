// Package pipeline runs the offline training flow: load, split, fit,
// select, tune, pick a threshold, persist artifacts.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"creditrisk/artifact"
	"creditrisk/dataset"
	"creditrisk/db"
	"creditrisk/ml"
	"creditrisk/monitoring"
)

// Config is the training section of config.yaml plus dataset/artifact paths.
type Config struct {
	DatasetPath    string  `yaml:"dataset_path"`
	Latin1         bool    `yaml:"latin1"`
	ArtifactDir    string  `yaml:"artifact_dir"`
	TestRatio      float64 `yaml:"test_ratio"`
	Folds          int     `yaml:"folds"`
	Seed           int64   `yaml:"seed"`
	SelectedFamily string  `yaml:"selected_family"`
	Budget         int     `yaml:"budget"`
	Warmup         int     `yaml:"warmup"`
	RecallFloor    float64 `yaml:"recall_floor"`
}

// Result summarizes a finished run.
type Result struct {
	RunID      string               `json:"run_id"`
	Stats      *dataset.LoadStats   `json:"stats"`
	Candidates []ml.CandidateResult `json:"candidates"`
	Family     string               `json:"family"`
	BestTrial  ml.Trial             `json:"best_trial"`
	Threshold  ml.ThresholdChoice   `json:"threshold"`
	TestAUC    float64              `json:"test_auc"`
}

// Run executes the whole pipeline. Each stage completes before the next
// begins; progress events go to the hub when one is attached. The finished
// run is registered in the database when it is initialized.
func Run(cfg Config, logger *zap.Logger, hub *monitoring.ProgressHub) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	publish := func(eventType monitoring.EventType, data interface{}) {
		if hub != nil {
			hub.Publish(eventType, data)
		}
	}

	runID := db.NewID()
	startedAt := time.Now().UTC()
	logger.Info("training run started",
		zap.String("run_id", runID),
		zap.String("dataset", cfg.DatasetPath))
	publish(monitoring.RunStarted, map[string]string{"run_id": runID})

	records, labels, stats, err := dataset.Load(cfg.DatasetPath, dataset.LoadOptions{
		Latin1: cfg.Latin1,
		Logger: logger,
	})
	if err != nil {
		publish(monitoring.RunFailed, map[string]string{"run_id": runID, "error": err.Error()})
		return nil, err
	}
	logger.Info("dataset loaded",
		zap.Int("rows", stats.TotalRows),
		zap.Int("loaded", stats.Loaded),
		zap.Int("dropped", stats.Dropped))

	trainRecs, trainY, testRecs, testY, err := dataset.StratifiedSplit(records, labels, cfg.TestRatio, cfg.Seed)
	if err != nil {
		return nil, err
	}

	state, err := ml.FitPreprocessor(trainRecs, trainY)
	if err != nil {
		return nil, err
	}
	trainX, err := state.Transform(trainRecs)
	if err != nil {
		return nil, err
	}
	testX, err := state.Transform(testRecs)
	if err != nil {
		return nil, err
	}

	candidates, family, err := ml.SelectModel(trainX, trainY, ml.SelectorConfig{
		Folds:          cfg.Folds,
		Seed:           cfg.Seed,
		SelectedFamily: cfg.SelectedFamily,
	})
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		publish(monitoring.Candidate, candidate)
	}

	best, _, err := ml.Tune(trainX, trainY, ml.TunerConfig{
		Family: family,
		Budget: cfg.Budget,
		Warmup: cfg.Warmup,
		Folds:  cfg.Folds,
		Seed:   cfg.Seed,
	}, func(trial ml.Trial) {
		publish(monitoring.TunerTrial, trial)
	})
	if err != nil {
		publish(monitoring.RunFailed, map[string]string{"run_id": runID, "error": err.Error()})
		return nil, err
	}
	logger.Info("tuning finished",
		zap.String("family", family),
		zap.Float64("mean_auc", best.MeanAUC),
		zap.Any("params", best.Params))

	model, err := ml.NewClassifier(family, best.Params)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(trainX, trainY); err != nil {
		return nil, err
	}

	testProbs := make([]float64, len(testX))
	for i, x := range testX {
		p, err := model.PredictProba(x)
		if err != nil {
			return nil, err
		}
		testProbs[i] = p
	}
	testAUC, err := ml.RocAUC(testY, testProbs)
	if err != nil {
		return nil, err
	}
	choice, err := ml.SelectThreshold(testY, testProbs, cfg.RecallFloor)
	if err != nil {
		return nil, err
	}
	if !choice.MetFloor {
		logger.Warn("no threshold reaches the recall floor, using default",
			zap.Float64("floor", cfg.RecallFloor),
			zap.Float64("threshold", choice.Threshold))
	}

	bundle := &artifact.Bundle{
		State: state,
		Model: model,
		Meta: artifact.Meta{
			Threshold: choice.Threshold,
			RunID:     runID,
			TrainedAt: time.Now().UTC(),
			MeanAUC:   best.MeanAUC,
			TestAUC:   testAUC,
		},
	}
	if err := artifact.Save(cfg.ArtifactDir, bundle); err != nil {
		return nil, err
	}
	logger.Info("artifacts saved",
		zap.String("dir", cfg.ArtifactDir),
		zap.Float64("threshold", choice.Threshold),
		zap.Float64("test_auc", testAUC))

	paramsJSON, _ := json.Marshal(best.Params)
	if err := db.SaveTrainingRun(db.TrainingRun{
		ID:          runID,
		StartedAt:   startedAt,
		FinishedAt:  time.Now().UTC(),
		Family:      family,
		BestParams:  string(paramsJSON),
		MeanAUC:     best.MeanAUC,
		TestAUC:     testAUC,
		Threshold:   choice.Threshold,
		DatasetRows: stats.Loaded,
	}); err != nil {
		logger.Warn("cannot register training run", zap.Error(err))
	}

	result := &Result{
		RunID:      runID,
		Stats:      stats,
		Candidates: candidates,
		Family:     family,
		BestTrial:  *best,
		Threshold:  choice,
		TestAUC:    testAUC,
	}
	publish(monitoring.RunFinished, result)
	return result, nil
}

// FormatCandidates renders the CV table for operator review.
func FormatCandidates(candidates []ml.CandidateResult) string {
	out := "family                mean_auc  std_auc  folds\n"
	for _, c := range candidates {
		out += fmt.Sprintf("%-20s  %.4f    %.4f   %v\n", c.Family, c.MeanAUC, c.StdAUC, c.FoldAUCs)
	}
	return out
}
