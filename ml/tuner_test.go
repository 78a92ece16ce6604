package ml

import "testing"

func TestTuneRespectsBudget(t *testing.T) {
	features, labels := separableData(25, 3)

	var progressed int
	best, trials, err := Tune(features, labels, TunerConfig{
		Family: FamilyTree,
		Budget: 8,
		Warmup: 3,
		Folds:  4,
		Seed:   42,
	}, func(Trial) { progressed++ })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trials) != 8 {
		t.Fatalf("expected exactly 8 trials, got %d", len(trials))
	}
	if progressed != 8 {
		t.Fatalf("expected progress callback per trial, got %d", progressed)
	}
	for i, trial := range trials {
		if trial.ID != i {
			t.Fatalf("trial %d has ID %d", i, trial.ID)
		}
		if len(trial.FoldAUCs) != 4 {
			t.Fatalf("trial %d: expected 4 fold scores, got %d", i, len(trial.FoldAUCs))
		}
	}
	for _, trial := range trials {
		if trial.MeanAUC > best.MeanAUC {
			t.Fatalf("best trial %v beaten by trial %d (%v)", best.MeanAUC, trial.ID, trial.MeanAUC)
		}
	}
}

func TestTuneKeepsParamsInBounds(t *testing.T) {
	features, labels := separableData(25, 5)

	_, trials, err := Tune(features, labels, TunerConfig{
		Family: FamilyBoosting,
		Budget: 6,
		Warmup: 2,
		Folds:  4,
		Seed:   1,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, trial := range trials {
		for _, dim := range searchSpace(FamilyBoosting) {
			v, ok := trial.Params[dim.Name]
			if !ok {
				t.Fatalf("trial %d missing parameter %q", trial.ID, dim.Name)
			}
			if v < dim.Min || v > dim.Max {
				t.Fatalf("trial %d: %s=%v outside [%v, %v]", trial.ID, dim.Name, v, dim.Min, dim.Max)
			}
			if dim.Integer && v != float64(int(v)) {
				t.Fatalf("trial %d: %s=%v is not integral", trial.ID, dim.Name, v)
			}
		}
	}
}

func TestTuneDeterministicForSeed(t *testing.T) {
	features, labels := separableData(25, 7)
	cfg := TunerConfig{Family: FamilyLogistic, Budget: 6, Warmup: 2, Folds: 4, Seed: 99}

	bestA, trialsA, err := Tune(features, labels, cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bestB, trialsB, err := Tune(features, labels, cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bestA.ID != bestB.ID || bestA.MeanAUC != bestB.MeanAUC {
		t.Fatalf("best trial drifted: %+v vs %+v", bestA, bestB)
	}
	for i := range trialsA {
		if trialsA[i].MeanAUC != trialsB[i].MeanAUC {
			t.Fatalf("trial %d drifted between identical seeds", i)
		}
		for name, v := range trialsA[i].Params {
			if trialsB[i].Params[name] != v {
				t.Fatalf("trial %d: parameter %q drifted", i, name)
			}
		}
	}
}

func TestTuneRejectsUnknownFamily(t *testing.T) {
	features, labels := separableData(10, 1)
	if _, _, err := Tune(features, labels, TunerConfig{Family: "svm", Budget: 2}, nil); err == nil {
		t.Fatal("expected error for unknown family")
	}
}
