package ml

import "testing"

func TestSelectModelEvaluatesAllFamilies(t *testing.T) {
	features, labels := separableData(30, 31)

	results, family, err := SelectModel(features, labels, SelectorConfig{Folds: 5, Seed: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(DefaultFamilies()) {
		t.Fatalf("expected %d candidates, got %d", len(DefaultFamilies()), len(results))
	}
	found := false
	for _, r := range results {
		if len(r.FoldAUCs) != 5 {
			t.Fatalf("%s: expected 5 fold scores, got %d", r.Family, len(r.FoldAUCs))
		}
		if r.Family == family {
			found = true
		}
	}
	if !found {
		t.Fatalf("selected family %q is not among the candidates", family)
	}
}

func TestSelectModelOperatorChoiceWins(t *testing.T) {
	features, labels := separableData(30, 31)

	_, family, err := SelectModel(features, labels, SelectorConfig{
		Folds:          5,
		Seed:           42,
		SelectedFamily: FamilyTree,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if family != FamilyTree {
		t.Fatalf("operator choice must win, got %q", family)
	}
}

func TestSelectModelRejectsUnknownChoice(t *testing.T) {
	features, labels := separableData(20, 2)

	_, _, err := SelectModel(features, labels, SelectorConfig{
		Folds:          4,
		SelectedFamily: "svm",
	})
	if err == nil {
		t.Fatal("expected error for a choice outside the candidate list")
	}
}

func TestSelectModelReproducible(t *testing.T) {
	features, labels := separableData(30, 47)
	cfg := SelectorConfig{Folds: 5, Seed: 7}

	first, familyA, err := SelectModel(features, labels, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, familyB, err := SelectModel(features, labels, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if familyA != familyB {
		t.Fatalf("selected family drifted: %q vs %q", familyA, familyB)
	}
	for i := range first {
		if first[i].MeanAUC != second[i].MeanAUC {
			t.Fatalf("%s: mean AUC drifted between identical runs", first[i].Family)
		}
	}
}
