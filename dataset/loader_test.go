package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleHeader = ",Age,Sex,Job,Housing,Saving accounts,Checking account,Credit amount,Duration,Purpose,Risk"

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credit.csv")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadValidDataset(t *testing.T) {
	path := writeCSV(t,
		sampleHeader,
		`0,67,male,2,own,NA,little,1169,6,radio/TV,good`,
		`1,22,female,2,own,little,moderate,5951,48,radio/TV,bad`,
		`2,49,male,1,own,little,NA,2096,12,education,good`,
	)

	records, labels, stats, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 || len(labels) != 3 {
		t.Fatalf("expected 3 records, got %d records %d labels", len(records), len(labels))
	}
	if stats.Loaded != 3 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if labels[0] != LabelGood || labels[1] != LabelBad {
		t.Fatalf("unexpected labels: %v", labels)
	}
	if records[0].SavingAccounts != Missing {
		t.Fatalf("expected NA saving accounts, got %q", records[0].SavingAccounts)
	}
	if records[1].CreditAmount != 5951 {
		t.Fatalf("unexpected credit amount: %d", records[1].CreditAmount)
	}
}

func TestLoadMissingColumnIsDataError(t *testing.T) {
	path := writeCSV(t,
		",Age,Sex,Job,Housing,Saving accounts,Credit amount,Duration,Purpose,Risk",
		`0,67,male,2,own,NA,1169,6,radio/TV,good`,
	)

	_, _, _, err := Load(path, LoadOptions{})
	if err == nil {
		t.Fatal("expected error for missing column")
	}
	de, ok := err.(*DataError)
	if !ok {
		t.Fatalf("expected DataError, got %T", err)
	}
	if !strings.Contains(de.Error(), "Checking account") {
		t.Fatalf("error should name the missing column: %v", de)
	}
}

func TestLoadDropsMalformedRows(t *testing.T) {
	path := writeCSV(t,
		sampleHeader,
		`0,67,male,2,own,NA,little,1169,6,radio/TV,good`,
		`1,not-a-number,female,2,own,little,moderate,5951,48,radio/TV,bad`,
		`2,49,male,9,own,little,NA,2096,12,education,good`,
		`3,35,female,1,rent,little,little,3059,24,car,bad`,
	)

	records, _, stats, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 surviving records, got %d", len(records))
	}
	if stats.Dropped != 2 {
		t.Fatalf("expected 2 dropped rows, got %d", stats.Dropped)
	}
	if stats.Issues["field_parse"] != 1 {
		t.Fatalf("expected one parse issue, got %v", stats.Issues)
	}
	if stats.Issues["job_range"] != 1 {
		t.Fatalf("expected one job_range issue, got %v", stats.Issues)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, _, err := Load(filepath.Join(t.TempDir(), "absent.csv"), LoadOptions{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, ok := err.(*DataError); !ok {
		t.Fatalf("expected DataError, got %T", err)
	}
}

func TestLoadInvalidLabel(t *testing.T) {
	path := writeCSV(t,
		sampleHeader,
		`0,67,male,2,own,NA,little,1169,6,radio/TV,maybe`,
		`1,22,female,2,own,little,moderate,5951,48,radio/TV,bad`,
	)

	records, labels, stats, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || labels[0] != LabelBad {
		t.Fatalf("expected only the bad row to survive, got %d records", len(records))
	}
	if stats.Issues["field_parse"] != 1 {
		t.Fatalf("expected label issue counted as field_parse, got %v", stats.Issues)
	}
}
