package ml

import "fmt"

// Model family names.
const (
	FamilyLogistic = "logistic"
	FamilyTree     = "decision_tree"
	FamilyBoosting = "gradient_boosting"
)

// Params is a flat hyperparameter set. Integer-valued parameters are stored
// as float64 and rounded by the consumer.
type Params map[string]float64

func (p Params) get(name string, def float64) float64 {
	if p == nil {
		return def
	}
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

func (p Params) getInt(name string, def int) int {
	return int(p.get(name, float64(def)) + 0.5)
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Classifier is a binary classifier over preprocessed feature vectors.
// PredictProba returns the probability of the positive (bad risk) class.
type Classifier interface {
	Fit(features [][]float64, labels []int) error
	PredictProba(features []float64) (float64, error)
	Family() string
	HyperParams() Params
	MarshalParams() ([]byte, error)
	UnmarshalParams(data []byte) error
}

// NewClassifier builds an untrained classifier of the given family.
func NewClassifier(family string, params Params) (Classifier, error) {
	switch family {
	case FamilyLogistic:
		return NewLogisticRegression(params), nil
	case FamilyTree:
		return NewDecisionTree(params), nil
	case FamilyBoosting:
		return NewGradientBoosting(params), nil
	default:
		return nil, fmt.Errorf("unsupported model family: %q", family)
	}
}

// DefaultFamilies lists the candidate families in evaluation order.
func DefaultFamilies() []string {
	return []string{FamilyLogistic, FamilyTree, FamilyBoosting}
}

func checkTrainingData(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return fmt.Errorf("features or labels empty")
	}
	if len(features) != len(labels) {
		return fmt.Errorf("features and labels size mismatch")
	}
	return nil
}

// classWeights maps labels to sample weights: the positive class carries
// posWeight, the negative class 1.
func classWeights(labels []int, posWeight float64) []float64 {
	if posWeight <= 0 {
		posWeight = 1
	}
	weights := make([]float64, len(labels))
	for i, label := range labels {
		if label == 1 {
			weights[i] = posWeight
		} else {
			weights[i] = 1
		}
	}
	return weights
}
