package ml

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"creditrisk/dataset"
)

// StateVersion is bumped whenever the serialized layout changes.
const StateVersion = 1

// FallbackOrdinal encodes categories never seen during fit. It sits outside
// the learned 0..n-1 range and is scaled like any other value.
const FallbackOrdinal = -1

// targetSmoothing is the pseudo-count pulling sparse category means toward
// the global prior.
const targetSmoothing = 10.0

var logger = zap.NewNop()

// SetLogger installs the package logger. Safe to leave unset; warnings are
// then discarded.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// PreprocessorState holds every fitted parameter of the feature transform.
// It is produced once by FitPreprocessor on training data and must be reused
// unchanged for test and inference records.
type PreprocessorState struct {
	Version       int                           `json:"version"`
	Columns       []string                      `json:"columns"`
	OrdinalMaps   map[string]map[string]float64 `json:"ordinal_maps"`
	OrdinalImpute map[string]string             `json:"ordinal_impute"`
	TargetMaps    map[string]map[string]float64 `json:"target_maps"`
	TargetPrior   float64                       `json:"target_prior"`
	Means         []float64                     `json:"means"`
	Stds          []float64                     `json:"stds"`
}

// Output column order is fixed: ordinal block, target block, numeric block.
func featureColumns() []string {
	return []string{
		"purpose",
		"housing",
		"saving_accounts",
		"checking_account",
		"age",
		"sex",
		"job",
		"credit_amount",
		"duration",
	}
}

// NumFeatures is the width of every transformed row.
func (s *PreprocessorState) NumFeatures() int { return len(s.Columns) }

// FitPreprocessor learns the encoding and scaling parameters from training
// records only. Labels are required for the target-encoded columns.
func FitPreprocessor(records []dataset.Record, labels []int) (*PreprocessorState, error) {
	if len(records) == 0 {
		return nil, errors.New("records is empty")
	}
	if len(records) != len(labels) {
		return nil, errors.New("records and labels size mismatch")
	}

	state := &PreprocessorState{
		Version:       StateVersion,
		Columns:       featureColumns(),
		OrdinalMaps:   make(map[string]map[string]float64),
		OrdinalImpute: make(map[string]string),
		TargetMaps:    make(map[string]map[string]float64),
	}

	fitOrdinal(state, "purpose", records, func(r dataset.Record) string { return r.Purpose })
	fitOrdinal(state, "housing", records, func(r dataset.Record) string { return r.Housing })

	var positives float64
	for _, label := range labels {
		if label == dataset.LabelBad {
			positives++
		}
	}
	state.TargetPrior = positives / float64(len(labels))

	fitTarget(state, "saving_accounts", records, labels, func(r dataset.Record) string { return r.SavingAccounts })
	fitTarget(state, "checking_account", records, labels, func(r dataset.Record) string { return r.CheckingAccount })

	// Raw (unscaled) matrix over the training partition drives the scaler.
	raw := make([][]float64, len(records))
	for i, rec := range records {
		vector, err := state.rawVector(rec)
		if err != nil {
			return nil, err
		}
		raw[i] = vector
	}

	width := len(state.Columns)
	state.Means = make([]float64, width)
	state.Stds = make([]float64, width)
	column := make([]float64, len(raw))
	for j := 0; j < width; j++ {
		for i := range raw {
			column[i] = raw[i][j]
		}
		state.Means[j] = stat.Mean(column, nil)
		std := stat.StdDev(column, nil)
		if std == 0 || len(raw) < 2 {
			std = 1
		}
		state.Stds[j] = std
	}
	return state, nil
}

func fitOrdinal(state *PreprocessorState, name string, records []dataset.Record, get func(dataset.Record) string) {
	counts := make(map[string]int)
	for _, rec := range records {
		if v := get(rec); v != "" {
			counts[v]++
		}
	}
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	mapping := make(map[string]float64, len(categories))
	for i, c := range categories {
		mapping[c] = float64(i)
	}
	state.OrdinalMaps[name] = mapping

	impute := ""
	best := -1
	for _, c := range categories {
		if counts[c] > best {
			best = counts[c]
			impute = c
		}
	}
	state.OrdinalImpute[name] = impute
}

func fitTarget(state *PreprocessorState, name string, records []dataset.Record, labels []int, get func(dataset.Record) string) {
	sums := make(map[string]float64)
	counts := make(map[string]float64)
	for i, rec := range records {
		v := get(rec)
		counts[v]++
		if labels[i] == dataset.LabelBad {
			sums[v]++
		}
	}
	mapping := make(map[string]float64, len(counts))
	for c, n := range counts {
		mapping[c] = (sums[c] + targetSmoothing*state.TargetPrior) / (n + targetSmoothing)
	}
	state.TargetMaps[name] = mapping
}

// Transform maps records onto the fixed-width numeric matrix using only the
// fitted state. Unseen categories fall back to a reserved encoding and are
// logged at warn level; they never fail the transform.
func (s *PreprocessorState) Transform(records []dataset.Record) ([][]float64, error) {
	if s == nil || len(s.Columns) == 0 {
		return nil, errors.New("preprocessor state not fitted")
	}
	matrix := make([][]float64, len(records))
	for i, rec := range records {
		vector, err := s.TransformOne(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		matrix[i] = vector
	}
	return matrix, nil
}

// TransformOne transforms and scales a single record.
func (s *PreprocessorState) TransformOne(rec dataset.Record) ([]float64, error) {
	if s == nil || len(s.Columns) == 0 {
		return nil, errors.New("preprocessor state not fitted")
	}
	if len(s.Means) != len(s.Columns) || len(s.Stds) != len(s.Columns) {
		return nil, errors.New("preprocessor state incomplete")
	}
	vector, err := s.rawVector(rec)
	if err != nil {
		return nil, err
	}
	for j := range vector {
		vector[j] = (vector[j] - s.Means[j]) / s.Stds[j]
	}
	return vector, nil
}

func (s *PreprocessorState) rawVector(rec dataset.Record) ([]float64, error) {
	rec.NormalizeMissing()
	sex, err := sexBinary(rec.Sex)
	if err != nil {
		return nil, err
	}
	return []float64{
		s.ordinalCode("purpose", rec.Purpose),
		s.ordinalCode("housing", rec.Housing),
		s.targetCode("saving_accounts", rec.SavingAccounts),
		s.targetCode("checking_account", rec.CheckingAccount),
		float64(rec.Age),
		sex,
		float64(rec.Job),
		float64(rec.CreditAmount),
		float64(rec.Duration),
	}, nil
}

func (s *PreprocessorState) ordinalCode(name, value string) float64 {
	mapping := s.OrdinalMaps[name]
	if value == "" {
		value = s.OrdinalImpute[name]
	}
	if code, ok := mapping[value]; ok {
		return code
	}
	logger.Warn("unseen category, using fallback encoding",
		zap.String("feature", name),
		zap.String("value", value))
	return FallbackOrdinal
}

func (s *PreprocessorState) targetCode(name, value string) float64 {
	mapping := s.TargetMaps[name]
	if code, ok := mapping[value]; ok {
		return code
	}
	logger.Warn("unseen category, using prior encoding",
		zap.String("feature", name),
		zap.String("value", value))
	return s.TargetPrior
}

func sexBinary(v string) (float64, error) {
	switch v {
	case "male":
		return 1, nil
	case "female":
		return 0, nil
	default:
		return 0, fmt.Errorf("invalid sex: %q", v)
	}
}
