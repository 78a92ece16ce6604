package ml

import (
	"errors"
	"fmt"

	"creditrisk/dataset"
)

// InputError rejects an inference request whose record is missing required
// attributes or carries values of the wrong type. No prediction is made.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return "input: " + e.Msg }

// Prediction is the inference response contract.
type Prediction struct {
	Probability float64 `json:"probability"`
	Label       int     `json:"label"`
	Risk        string  `json:"risk"`
}

// InferenceService answers single-record predictions against an immutable
// preprocessor state, model and threshold. It holds no per-request state, so
// concurrent use needs no locking.
type InferenceService struct {
	state     *PreprocessorState
	model     Classifier
	threshold float64
}

// NewInferenceService wires loaded artifacts into a service.
func NewInferenceService(state *PreprocessorState, model Classifier, threshold float64) (*InferenceService, error) {
	if state == nil || len(state.Columns) == 0 {
		return nil, errors.New("preprocessor state is required")
	}
	if model == nil {
		return nil, errors.New("model is required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold out of range: %f", threshold)
	}
	return &InferenceService{state: state, model: model, threshold: threshold}, nil
}

// Predict applies transform, model and threshold to one record.
func (s *InferenceService) Predict(rec dataset.Record) (*Prediction, error) {
	if err := rec.Validate(); err != nil {
		return nil, &InputError{Msg: err.Error()}
	}
	features, err := s.state.TransformOne(rec)
	if err != nil {
		return nil, &InputError{Msg: err.Error()}
	}
	proba, err := s.model.PredictProba(features)
	if err != nil {
		return nil, err
	}
	label := dataset.LabelGood
	if proba > s.threshold {
		label = dataset.LabelBad
	}
	return &Prediction{
		Probability: proba,
		Label:       label,
		Risk:        dataset.LabelName(label),
	}, nil
}

// Threshold exposes the persisted decision cutoff.
func (s *InferenceService) Threshold() float64 { return s.threshold }

// Family exposes the model family name.
func (s *InferenceService) Family() string { return s.model.Family() }
