package http

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"creditrisk/pipeline"
)

var (
	trainingCfg    atomic.Pointer[pipeline.Config]
	trainingActive atomic.Bool
)

// SetTrainingConfig enables the POST /api/train trigger. The artifact
// watcher picks up the freshly saved bundle, so a successful run swaps the
// serving model without a restart.
func SetTrainingConfig(cfg pipeline.Config) {
	trainingCfg.Store(&cfg)
}

func handleTrain(w http.ResponseWriter, r *http.Request) {
	cfg := trainingCfg.Load()
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "training not configured")
		return
	}
	if !trainingActive.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a training run is already in progress")
		return
	}

	go func() {
		defer trainingActive.Store(false)
		result, err := pipeline.Run(*cfg, httpLogger(), hub)
		if err != nil {
			httpLogger().Error("training run failed", zap.Error(err))
			return
		}
		httpLogger().Info("training run finished",
			zap.String("run_id", result.RunID),
			zap.String("family", result.Family),
			zap.Float64("test_auc", result.TestAUC))
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}
