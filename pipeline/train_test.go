package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"creditrisk/artifact"
	"creditrisk/dataset"
	"creditrisk/ml"
)

// syntheticCSV writes a small labeled dataset where bad risks tend to have
// long, large credits.
func syntheticCSV(t *testing.T) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(",Age,Sex,Job,Housing,Saving accounts,Checking account,Credit amount,Duration,Purpose,Risk\n")
	purposes := []string{"car", "education", "radio/TV", "business"}
	for i := 0; i < 60; i++ {
		sex := "male"
		if i%3 == 0 {
			sex = "female"
		}
		risk := "good"
		amount := 800 + i*40
		duration := 6 + i%18
		if i%2 == 1 {
			risk = "bad"
			amount = 5000 + i*90
			duration = 30 + i%24
		}
		fmt.Fprintf(&sb, "%d,%d,%s,%d,own,little,NA,%d,%d,%s,%s\n",
			i, 22+i%40, sex, i%4, amount, duration, purposes[i%len(purposes)], risk)
	}
	path := filepath.Join(t.TempDir(), "credit.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestRunEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full training run")
	}
	artifactDir := filepath.Join(t.TempDir(), "artifacts")
	cfg := Config{
		DatasetPath:    syntheticCSV(t),
		ArtifactDir:    artifactDir,
		TestRatio:      0.25,
		Folds:          3,
		Seed:           42,
		SelectedFamily: ml.FamilyLogistic,
		Budget:         4,
		Warmup:         2,
		RecallFloor:    0.8,
	}

	result, err := Run(cfg, nil, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("run must have an id")
	}
	if result.Family != ml.FamilyLogistic {
		t.Fatalf("operator family choice must win, got %q", result.Family)
	}
	if result.Stats.Loaded != 60 {
		t.Fatalf("expected 60 loaded rows, got %d", result.Stats.Loaded)
	}
	if len(result.Candidates) != len(ml.DefaultFamilies()) {
		t.Fatalf("expected every family evaluated, got %d", len(result.Candidates))
	}
	if result.TestAUC < 0.8 {
		t.Fatalf("expected strong separation on synthetic data, got AUC %v", result.TestAUC)
	}
	if result.Threshold.Threshold < 0 || result.Threshold.Threshold > 1 {
		t.Fatalf("threshold out of range: %v", result.Threshold.Threshold)
	}

	// The saved artifacts must load into a working service.
	bundle, err := artifact.Load(artifactDir)
	if err != nil {
		t.Fatalf("load artifacts: %v", err)
	}
	if bundle.Meta.RunID != result.RunID {
		t.Fatalf("artifact run id %q does not match result %q", bundle.Meta.RunID, result.RunID)
	}
	svc, err := ml.NewInferenceService(bundle.State, bundle.Model, bundle.Meta.Threshold)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	pred, err := svc.Predict(dataset.Record{
		Age: 30, Sex: "male", Job: 2, Housing: "own",
		SavingAccounts: "little", CheckingAccount: dataset.Missing,
		CreditAmount: 1500, Duration: 12, Purpose: "car",
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Probability < 0 || pred.Probability > 1 {
		t.Fatalf("probability out of range: %v", pred.Probability)
	}
}

func TestRunFailsOnMissingDataset(t *testing.T) {
	cfg := Config{
		DatasetPath: filepath.Join(t.TempDir(), "absent.csv"),
		ArtifactDir: t.TempDir(),
	}
	if _, err := Run(cfg, nil, nil); err == nil {
		t.Fatal("expected error for a missing dataset")
	}
}

func TestFormatCandidates(t *testing.T) {
	out := FormatCandidates([]ml.CandidateResult{
		{Family: ml.FamilyLogistic, MeanAUC: 0.78, StdAUC: 0.02, FoldAUCs: []float64{0.76, 0.8}},
	})
	if !strings.Contains(out, ml.FamilyLogistic) || !strings.Contains(out, "0.7800") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}
