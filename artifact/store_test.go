package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"creditrisk/dataset"
	"creditrisk/ml"
)

func trainedBundle(t *testing.T) *Bundle {
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
	return &Bundle{
		State: state,
		Model: model,
		Meta: Meta{
			Threshold: 0.42,
			RunID:     "run-test",
			TrainedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			MeanAUC:   0.81,
			TestAUC:   0.79,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bundle := trainedBundle(t)

	if err := Save(dir, bundle); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Meta.Version != FormatVersion {
		t.Fatalf("expected artifact version %d, got %d", FormatVersion, loaded.Meta.Version)
	}
	if loaded.Meta.Family != ml.FamilyLogistic {
		t.Fatalf("expected family %q, got %q", ml.FamilyLogistic, loaded.Meta.Family)
	}
	if loaded.Meta.Threshold != 0.42 || loaded.Meta.RunID != "run-test" {
		t.Fatalf("metadata lost in round trip: %+v", loaded.Meta)
	}

	// The restored model must score identically.
	probe := []float64{0.5, -0.3, 0.1, 0.2, 1.1, 1, 0.4, -0.8, 0.6}
	want, err := bundle.Model.PredictProba(probe)
	if err != nil {
		t.Fatalf("predict original: %v", err)
	}
	got, err := loaded.Model.PredictProba(probe)
	if err != nil {
		t.Fatalf("predict restored: %v", err)
	}
	if want != got {
		t.Fatalf("restored model disagrees: %v vs %v", got, want)
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Fatal("expected error for missing artifacts")
	}
	var artErr *ArtifactError
	if !errors.As(err, &artErr) {
		t.Fatalf("expected ArtifactError, got %T", err)
	}
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, trainedBundle(t)); err != nil {
		t.Fatalf("save: %v", err)
	}

	modelPath := filepath.Join(dir, "model.json")
	data, err := os.ReadFile(modelPath)
	if err != nil {
		t.Fatalf("read model: %v", err)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode model: %v", err)
	}
	payload["version"] = json.RawMessage("99")
	data, err = json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode model: %v", err)
	}
	if err := os.WriteFile(modelPath, data, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	_, err = Load(dir)
	if err == nil {
		t.Fatal("expected error for version mismatch")
	}
	var artErr *ArtifactError
	if !errors.As(err, &artErr) {
		t.Fatalf("expected ArtifactError, got %T", err)
	}
}

func TestLoadRejectsCorruptModel(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, trainedBundle(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for corrupt model file")
	}
}

func TestLoadRejectsThresholdOutOfRange(t *testing.T) {
	dir := t.TempDir()
	bundle := trainedBundle(t)
	bundle.Meta.Threshold = 1.7
	if err := Save(dir, bundle); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}
}

func TestSaveRejectsIncompleteBundle(t *testing.T) {
	if err := Save(t.TempDir(), nil); err == nil {
		t.Fatal("expected error for nil bundle")
	}
	if err := Save(t.TempDir(), &Bundle{}); err == nil {
		t.Fatal("expected error for empty bundle")
	}
}
