package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"creditrisk/db"
	"creditrisk/logging"
	"creditrisk/ml"
	"creditrisk/pipeline"
)

type config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log      logging.Config  `yaml:"log"`
	Training pipeline.Config `yaml:"training"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	datasetPath := flag.String("dataset", "", "override dataset path")
	family := flag.String("family", "", "override selected model family")
	budget := flag.Int("budget", 0, "override tuner budget")
	seed := flag.Int64("seed", 0, "override random seed")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *datasetPath != "" {
		cfg.Training.DatasetPath = *datasetPath
	}
	if *family != "" {
		cfg.Training.SelectedFamily = *family
	}
	if *budget > 0 {
		cfg.Training.Budget = *budget
	}
	if *seed != 0 {
		cfg.Training.Seed = *seed
	}

	logger := logging.New(cfg.Log)
	defer logger.Sync()
	ml.SetLogger(logger)

	if cfg.Database.Path != "" {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			logger.Warn("database unavailable, run will not be registered", zap.Error(err))
		} else {
			defer db.Close()
		}
	}

	result, err := pipeline.Run(cfg.Training, logger, nil)
	if err != nil {
		logger.Error("training pipeline failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Println("Candidate cross-validation scores:")
	fmt.Print(pipeline.FormatCandidates(result.Candidates))
	fmt.Printf("\nSelected family: %s\n", result.Family)
	fmt.Printf("Best params: %v (cv mean auc %.4f)\n", result.BestTrial.Params, result.BestTrial.MeanAUC)
	fmt.Printf("Test ROC-AUC: %.4f\n", result.TestAUC)
	fmt.Printf("Threshold: %.4f (precision %.3f, recall %.3f, met floor: %v)\n",
		result.Threshold.Threshold, result.Threshold.Precision,
		result.Threshold.Recall, result.Threshold.MetFloor)
	fmt.Printf("Artifacts saved to %s (run %s)\n", cfg.Training.ArtifactDir, result.RunID)
}

func loadConfig(path string) (*config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
