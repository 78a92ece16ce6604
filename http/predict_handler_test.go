package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"creditrisk/artifact"
	"creditrisk/dataset"
	"creditrisk/ml"
)

func testService(t *testing.T) (*ml.InferenceService, artifact.Meta) {
	t.Helper()
	records := []dataset.Record{
		{Age: 30, Sex: "male", Job: 2, Housing: "own", SavingAccounts: "little", CheckingAccount: "little", CreditAmount: 1200, Duration: 12, Purpose: "car"},
		{Age: 45, Sex: "female", Job: 1, Housing: "rent", SavingAccounts: "moderate", CheckingAccount: dataset.Missing, CreditAmount: 5200, Duration: 36, Purpose: "education"},
		{Age: 25, Sex: "male", Job: 3, Housing: "own", SavingAccounts: "little", CheckingAccount: "moderate", CreditAmount: 800, Duration: 6, Purpose: "car"},
		{Age: 52, Sex: "female", Job: 0, Housing: "free", SavingAccounts: "rich", CheckingAccount: "little", CreditAmount: 9100, Duration: 48, Purpose: "business"},
	}
	labels := []int{dataset.LabelGood, dataset.LabelBad, dataset.LabelGood, dataset.LabelBad}

	state, err := ml.FitPreprocessor(records, labels)
	if err != nil {
		t.Fatalf("fit preprocessor: %v", err)
	}
	features, err := state.Transform(records)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	model := ml.NewLogisticRegression(ml.Params{"epochs": 50})
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("fit model: %v", err)
	}
	svc, err := ml.NewInferenceService(state, model, 0.5)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, artifact.Meta{Version: artifact.FormatVersion, Family: ml.FamilyLogistic, Threshold: 0.5, RunID: "run-test"}
}

const validBody = `{
	"age": 35,
	"sex": "male",
	"job": 2,
	"housing": "own",
	"saving_accounts": "little",
	"checking_account": "NA",
	"credit_amount": 2400,
	"duration": 24,
	"purpose": "car"
}`

func TestHandlePredictWithoutModel(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(validBody))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a loaded model, got %d", w.Code)
	}
}

func TestHandlePredict(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	svc, meta := testService(t)
	SetService(svc, meta)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(validBody))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload struct {
		Probability float64 `json:"probability"`
		Label       int     `json:"label"`
		Risk        string  `json:"risk"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Probability < 0 || payload.Probability > 1 {
		t.Fatalf("probability out of range: %v", payload.Probability)
	}
	wantLabel := dataset.LabelGood
	if payload.Probability > 0.5 {
		wantLabel = dataset.LabelBad
	}
	if payload.Label != wantLabel {
		t.Fatalf("label %d inconsistent with probability %v", payload.Label, payload.Probability)
	}
	if payload.Risk != dataset.LabelName(payload.Label) {
		t.Fatalf("risk %q inconsistent with label %d", payload.Risk, payload.Label)
	}
}

func TestHandlePredictCachedResponseMatches(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	svc, meta := testService(t)
	SetService(svc, meta)

	first := httptest.NewRecorder()
	mux.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(validBody)))
	second := httptest.NewRecorder()
	mux.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(validBody)))

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200 twice, got %d and %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("cached response differs:\n%s\nvs\n%s", first.Body.String(), second.Body.String())
	}
}

func TestHandlePredictMissingAttribute(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	svc, meta := testService(t)
	SetService(svc, meta)

	body := `{"age": 35, "sex": "male"}`
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing attributes, got %d", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !strings.Contains(payload["error"], "missing attributes") {
		t.Fatalf("error should name missing attributes: %q", payload["error"])
	}
}

func TestHandlePredictInvalidValue(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	svc, meta := testService(t)
	SetService(svc, meta)

	body := strings.Replace(validBody, `"age": 35`, `"age": -4`, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid value, got %d", w.Code)
	}
}

func TestHandlePredictInvalidJSON(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	svc, meta := testService(t)
	SetService(svc, meta)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("{broken"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", w.Code)
	}
}
