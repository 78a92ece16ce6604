package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"creditrisk/artifact"
	"creditrisk/dataset"
	"creditrisk/db"
	"creditrisk/ml"
	"creditrisk/monitoring"
)

type serviceState struct {
	svc  *ml.InferenceService
	meta artifact.Meta
}

var (
	current     atomic.Pointer[serviceState]
	hub         *monitoring.ProgressHub
	cache       *lru.Cache[string, *ml.Prediction]
	pkgLogger   atomic.Pointer[zap.Logger]
	auditEnable atomic.Bool
)

const cacheSize = 256

func init() {
	cache, _ = lru.New[string, *ml.Prediction](cacheSize)
}

// SetService swaps the inference service; used at startup and by the
// artifact watcher after a retrain. The cache is cleared so stale
// probabilities never outlive the artifacts they came from.
func SetService(svc *ml.InferenceService, meta artifact.Meta) {
	current.Store(&serviceState{svc: svc, meta: meta})
	cache.Purge()
}

// SetProgressHub wires the websocket hub used by /api/ws/training.
func SetProgressHub(h *monitoring.ProgressHub) { hub = h }

// SetLogger installs the package logger.
func SetLogger(l *zap.Logger) {
	if l != nil {
		pkgLogger.Store(l)
	}
}

// SetAuditLog toggles persistence of predictions to the database.
func SetAuditLog(enabled bool) { auditEnable.Store(enabled) }

func httpLogger() *zap.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// RegisterHandlers mounts the JSON API.
func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/predict", handlePredict)
	mux.HandleFunc("GET /api/model", handleModelInfo)
	mux.HandleFunc("GET /api/runs", handleRuns)
	mux.HandleFunc("POST /api/train", handleTrain)
	mux.HandleFunc("GET /api/ws/training", handleTrainingWS)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// predictRequest uses pointer fields so an absent attribute is
// distinguishable from a zero value.
type predictRequest struct {
	Age             *int    `json:"age"`
	Sex             *string `json:"sex"`
	Job             *int    `json:"job"`
	Housing         *string `json:"housing"`
	SavingAccounts  *string `json:"saving_accounts"`
	CheckingAccount *string `json:"checking_account"`
	CreditAmount    *int    `json:"credit_amount"`
	Duration        *int    `json:"duration"`
	Purpose         *string `json:"purpose"`
}

func (req *predictRequest) record() (*dataset.Record, error) {
	var missing []string
	need := func(ok bool, name string) {
		if !ok {
			missing = append(missing, name)
		}
	}
	need(req.Age != nil, "age")
	need(req.Sex != nil, "sex")
	need(req.Job != nil, "job")
	need(req.Housing != nil, "housing")
	need(req.SavingAccounts != nil, "saving_accounts")
	need(req.CheckingAccount != nil, "checking_account")
	need(req.CreditAmount != nil, "credit_amount")
	need(req.Duration != nil, "duration")
	need(req.Purpose != nil, "purpose")
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing attributes: %v", missing)
	}
	rec := &dataset.Record{
		Age:             *req.Age,
		Sex:             *req.Sex,
		Job:             *req.Job,
		Housing:         *req.Housing,
		SavingAccounts:  *req.SavingAccounts,
		CheckingAccount: *req.CheckingAccount,
		CreditAmount:    *req.CreditAmount,
		Duration:        *req.Duration,
		Purpose:         *req.Purpose,
	}
	rec.NormalizeMissing()
	return rec, nil
}

func cacheKey(rec *dataset.Record) string {
	return fmt.Sprintf("%d|%s|%d|%s|%s|%s|%d|%d|%s",
		rec.Age, rec.Sex, rec.Job, rec.Housing, rec.SavingAccounts,
		rec.CheckingAccount, rec.CreditAmount, rec.Duration, rec.Purpose)
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	state := current.Load()
	if state == nil {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	rec, err := req.record()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := cacheKey(rec)
	if prediction, ok := cache.Get(key); ok {
		writePrediction(w, prediction)
		return
	}

	prediction, err := state.svc.Predict(*rec)
	if err != nil {
		var inputErr *ml.InputError
		if errors.As(err, &inputErr) {
			writeError(w, http.StatusBadRequest, inputErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cache.Add(key, prediction)

	if auditEnable.Load() {
		recordJSON, _ := json.Marshal(rec)
		if err := db.SavePrediction(string(recordJSON), prediction.Probability, prediction.Label); err != nil {
			httpLogger().Warn("cannot record prediction", zap.Error(err))
		}
	}
	writePrediction(w, prediction)
}

func writePrediction(w http.ResponseWriter, p *ml.Prediction) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func handleModelInfo(w http.ResponseWriter, r *http.Request) {
	state := current.Load()
	if state == nil {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"family":     state.meta.Family,
		"threshold":  state.meta.Threshold,
		"run_id":     state.meta.RunID,
		"trained_at": state.meta.TrainedAt,
		"mean_auc":   state.meta.MeanAUC,
		"test_auc":   state.meta.TestAUC,
	})
}

func handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := db.QueryTrainingRuns(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func handleTrainingWS(w http.ResponseWriter, r *http.Request) {
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "progress hub not initialized")
		return
	}
	hub.ServeWS(w, r)
}
