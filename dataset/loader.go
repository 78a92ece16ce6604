package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DataError reports a structural problem with the input dataset: missing
// required columns or an unreadable file. Row-level problems are not
// DataErrors; malformed rows are dropped and counted instead.
type DataError struct {
	Path string
	Msg  string
}

func (e *DataError) Error() string {
	if e.Path == "" {
		return "dataset: " + e.Msg
	}
	return fmt.Sprintf("dataset: %s: %s", e.Path, e.Msg)
}

var requiredColumns = []string{
	"Age",
	"Sex",
	"Job",
	"Housing",
	"Saving accounts",
	"Checking account",
	"Credit amount",
	"Duration",
	"Purpose",
}

const labelColumn = "Risk"

// RowRule validates one parsed record, in the spirit of a cleaning rule:
// a non-nil error drops the row and bumps the per-rule counter.
type RowRule interface {
	Apply(r *Record) error
	Name() string
}

type rangeRule struct {
	name  string
	check func(*Record) error
}

func (r *rangeRule) Apply(rec *Record) error { return r.check(rec) }
func (r *rangeRule) Name() string            { return r.name }

func defaultRules() []RowRule {
	return []RowRule{
		&rangeRule{name: "age_range", check: func(r *Record) error {
			if r.Age <= 0 || r.Age > 120 {
				return fmt.Errorf("age %d out of range", r.Age)
			}
			return nil
		}},
		&rangeRule{name: "job_range", check: func(r *Record) error {
			if r.Job < 0 || r.Job > 3 {
				return fmt.Errorf("job %d out of range", r.Job)
			}
			return nil
		}},
		&rangeRule{name: "amount_positive", check: func(r *Record) error {
			if r.CreditAmount <= 0 {
				return fmt.Errorf("credit amount %d not positive", r.CreditAmount)
			}
			return nil
		}},
		&rangeRule{name: "duration_positive", check: func(r *Record) error {
			if r.Duration <= 0 {
				return fmt.Errorf("duration %d not positive", r.Duration)
			}
			return nil
		}},
	}
}

// LoadStats summarizes a load: how many raw rows were seen, kept, dropped,
// and which rule or parse step rejected the dropped ones.
type LoadStats struct {
	TotalRows int            `json:"total_rows"`
	Loaded    int            `json:"loaded"`
	Dropped   int            `json:"dropped"`
	Issues    map[string]int `json:"issues"`
}

// LoadOptions controls dataset ingestion.
type LoadOptions struct {
	// Latin1 decodes the file as ISO 8859-1 before parsing; legacy exports
	// of the credit data are not UTF-8.
	Latin1 bool
	Rules  []RowRule
	Logger *zap.Logger
}

// Load reads the labeled credit CSV. The first column may be an unnamed
// row index, which is ignored. Returns records, aligned labels and stats.
func Load(path string, opts LoadOptions) ([]Record, []int, *LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, &DataError{Path: path, Msg: err.Error()}
	}
	defer f.Close()

	var reader io.Reader = f
	if opts.Latin1 {
		reader = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}
	records, labels, stats, err := parse(reader, opts)
	if err != nil {
		if de, ok := err.(*DataError); ok {
			de.Path = path
		}
		return nil, nil, nil, err
	}
	return records, labels, stats, nil
}

func parse(r io.Reader, opts LoadOptions) ([]Record, []int, *LoadStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := opts.Rules
	if rules == nil {
		rules = defaultRules()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, nil, &DataError{Msg: "cannot read header: " + err.Error()}
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if _, ok := cols[labelColumn]; !ok {
		missing = append(missing, labelColumn)
	}
	if len(missing) > 0 {
		return nil, nil, nil, &DataError{Msg: "missing required columns: " + strings.Join(missing, ", ")}
	}

	stats := &LoadStats{Issues: make(map[string]int)}
	var records []Record
	var labels []int

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.TotalRows++
			stats.Dropped++
			stats.Issues["csv_parse"]++
			continue
		}
		stats.TotalRows++

		rec, label, err := parseRow(row, cols)
		if err != nil {
			stats.Dropped++
			stats.Issues["field_parse"]++
			logger.Warn("dropping malformed row",
				zap.Int("row", stats.TotalRows),
				zap.Error(err))
			continue
		}

		rejected := false
		for _, rule := range rules {
			if err := rule.Apply(rec); err != nil {
				stats.Dropped++
				stats.Issues[rule.Name()]++
				logger.Warn("dropping row rejected by rule",
					zap.String("rule", rule.Name()),
					zap.Int("row", stats.TotalRows),
					zap.Error(err))
				rejected = true
				break
			}
		}
		if rejected {
			continue
		}

		records = append(records, *rec)
		labels = append(labels, label)
		stats.Loaded++
	}

	if len(records) == 0 {
		return nil, nil, nil, &DataError{Msg: "no usable rows in dataset"}
	}
	return records, labels, stats, nil
}

func parseRow(row []string, cols map[string]int) (*Record, int, error) {
	field := func(name string) (string, error) {
		idx := cols[name]
		if idx >= len(row) {
			return "", fmt.Errorf("row too short for column %q", name)
		}
		return strings.TrimSpace(row[idx]), nil
	}
	intField := func(name string) (int, error) {
		raw, err := field(name)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("column %q: %v", name, err)
		}
		return v, nil
	}

	rec := &Record{}
	var err error
	if rec.Age, err = intField("Age"); err != nil {
		return nil, 0, err
	}
	if rec.Sex, err = field("Sex"); err != nil {
		return nil, 0, err
	}
	if rec.Job, err = intField("Job"); err != nil {
		return nil, 0, err
	}
	if rec.Housing, err = field("Housing"); err != nil {
		return nil, 0, err
	}
	if rec.SavingAccounts, err = field("Saving accounts"); err != nil {
		return nil, 0, err
	}
	if rec.CheckingAccount, err = field("Checking account"); err != nil {
		return nil, 0, err
	}
	if rec.CreditAmount, err = intField("Credit amount"); err != nil {
		return nil, 0, err
	}
	if rec.Duration, err = intField("Duration"); err != nil {
		return nil, 0, err
	}
	if rec.Purpose, err = field("Purpose"); err != nil {
		return nil, 0, err
	}
	rec.NormalizeMissing()

	rawLabel, err := field(labelColumn)
	if err != nil {
		return nil, 0, err
	}
	label, err := ParseLabel(rawLabel)
	if err != nil {
		return nil, 0, err
	}
	if !contains(sexValues, rec.Sex) {
		return nil, 0, fmt.Errorf("invalid sex: %q", rec.Sex)
	}
	return rec, label, nil
}
