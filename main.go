package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"creditrisk/artifact"
	"creditrisk/db"
	qhttp "creditrisk/http"
	"creditrisk/logging"
	"creditrisk/ml"
	"creditrisk/monitoring"
	"creditrisk/pipeline"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http             qhttp.ServerConfig `yaml:"http"`
	Log              logging.Config     `yaml:"log"`
	Training         pipeline.Config    `yaml:"training"`
	AuditPredictions bool               `yaml:"audit_predictions"`
}

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	config, err := loadConfig(configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := logging.New(config.Log)
	defer logger.Sync()
	ml.SetLogger(logger)
	qhttp.SetLogger(logger)

	if err := db.InitDB(config.Database.Path); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("database initialized", zap.String("path", config.Database.Path))

	// The service cannot run without artifacts; a broken bundle is fatal.
	bundle, err := artifact.Load(config.Training.ArtifactDir)
	if err != nil {
		logger.Fatal("failed to load artifacts", zap.Error(err))
	}
	service, err := ml.NewInferenceService(bundle.State, bundle.Model, bundle.Meta.Threshold)
	if err != nil {
		logger.Fatal("failed to build inference service", zap.Error(err))
	}
	qhttp.SetService(service, bundle.Meta)
	logger.Info("artifacts loaded",
		zap.String("family", bundle.Meta.Family),
		zap.Float64("threshold", bundle.Meta.Threshold),
		zap.String("run_id", bundle.Meta.RunID))

	hub := monitoring.NewProgressHub(logger)
	qhttp.SetProgressHub(hub)
	qhttp.SetTrainingConfig(config.Training)
	qhttp.SetAuditLog(config.AuditPredictions)

	watcher, err := artifact.NewWatcher(config.Training.ArtifactDir, logger, func(b *artifact.Bundle) {
		svc, err := ml.NewInferenceService(b.State, b.Model, b.Meta.Threshold)
		if err != nil {
			logger.Warn("reloaded artifacts rejected", zap.Error(err))
			return
		}
		qhttp.SetService(svc, b.Meta)
	})
	if err != nil {
		logger.Fatal("failed to watch artifact dir", zap.Error(err))
	}
	defer watcher.Close()

	server := qhttp.NewServer(config.Http)
	go func() {
		logger.Info("http server starting", zap.Int("port", config.Http.Port))
		if err := server.Start(); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
