package dataset

import (
	"fmt"
	"strings"
)

// Missing is the canonical value for an absent account status.
const Missing = "NA"

// Record is one customer row from the credit dataset. Immutable once loaded.
type Record struct {
	Age             int    `json:"age"`
	Sex             string `json:"sex"`
	Job             int    `json:"job"`
	Housing         string `json:"housing"`
	SavingAccounts  string `json:"saving_accounts"`
	CheckingAccount string `json:"checking_account"`
	CreditAmount    int    `json:"credit_amount"`
	Duration        int    `json:"duration"`
	Purpose         string `json:"purpose"`
}

const (
	LabelGood = 0
	LabelBad  = 1
)

var (
	sexValues      = []string{"male", "female"}
	housingValues  = []string{"own", "rent", "free"}
	savingValues   = []string{"little", "moderate", "quite rich", "rich", Missing}
	checkingValues = []string{"little", "moderate", "rich", Missing}
	purposeValues  = []string{
		"car",
		"furniture/equipment",
		"radio/TV",
		"domestic appliances",
		"repairs",
		"education",
		"business",
		"vacation/others",
	}
)

// Vocabulary accessors for the demo form.
func HousingValues() []string  { return append([]string(nil), housingValues...) }
func SavingValues() []string   { return append([]string(nil), savingValues...) }
func CheckingValues() []string { return append([]string(nil), checkingValues...) }
func PurposeValues() []string  { return append([]string(nil), purposeValues...) }
func SexValues() []string      { return append([]string(nil), sexValues...) }

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// Validate checks presence and type of every attribute. Category values
// outside the training vocabulary are NOT rejected here; the preprocessor
// maps those to a fallback encoding. Sex is the exception since it is
// binarized rather than encoded.
func (r *Record) Validate() error {
	if r.Age <= 0 || r.Age > 120 {
		return fmt.Errorf("age out of range: %d", r.Age)
	}
	if !contains(sexValues, r.Sex) {
		return fmt.Errorf("invalid sex: %q", r.Sex)
	}
	if r.Job < 0 || r.Job > 3 {
		return fmt.Errorf("job out of range: %d", r.Job)
	}
	if r.Housing == "" {
		return fmt.Errorf("housing is required")
	}
	if r.SavingAccounts == "" {
		return fmt.Errorf("saving_accounts is required (use %q when unknown)", Missing)
	}
	if r.CheckingAccount == "" {
		return fmt.Errorf("checking_account is required (use %q when unknown)", Missing)
	}
	if r.CreditAmount <= 0 {
		return fmt.Errorf("credit_amount must be positive: %d", r.CreditAmount)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("duration must be positive: %d", r.Duration)
	}
	if r.Purpose == "" {
		return fmt.Errorf("purpose is required")
	}
	return nil
}

// NormalizeMissing folds empty and NA-ish account values onto Missing.
func (r *Record) NormalizeMissing() {
	r.SavingAccounts = normalizeMissing(r.SavingAccounts)
	r.CheckingAccount = normalizeMissing(r.CheckingAccount)
}

func normalizeMissing(v string) string {
	switch strings.TrimSpace(v) {
	case "", "NA", "na", "NaN", "nan":
		return Missing
	default:
		return strings.TrimSpace(v)
	}
}

// ParseLabel maps the raw risk column onto the binary label.
func ParseLabel(v string) (int, error) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "bad":
		return LabelBad, nil
	case "good":
		return LabelGood, nil
	default:
		return 0, fmt.Errorf("invalid risk label: %q", v)
	}
}

// LabelName is the inverse of ParseLabel.
func LabelName(label int) string {
	if label == LabelBad {
		return "bad"
	}
	return "good"
}
