package ml

import (
	"encoding/json"
	"errors"
	"math"
)

// LogisticRegression is a class-weighted logistic model trained by
// full-batch gradient descent with L2 regularization. Training is
// deterministic: weights start at zero and the data order is fixed.
type LogisticRegression struct {
	params  Params
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// NewLogisticRegression builds an untrained model. Recognized params:
// epochs, learning_rate, l2, pos_weight.
func NewLogisticRegression(params Params) *LogisticRegression {
	return &LogisticRegression{params: params.Clone()}
}

func (lr *LogisticRegression) Family() string      { return FamilyLogistic }
func (lr *LogisticRegression) HyperParams() Params { return lr.params.Clone() }

func (lr *LogisticRegression) Fit(features [][]float64, labels []int) error {
	if err := checkTrainingData(features, labels); err != nil {
		return err
	}
	epochs := lr.params.getInt("epochs", 300)
	rate := lr.params.get("learning_rate", 0.1)
	l2 := lr.params.get("l2", 1e-3)
	weights := classWeights(labels, lr.params.get("pos_weight", 1))

	dim := len(features[0])
	lr.Weights = make([]float64, dim)
	lr.Bias = 0

	n := float64(len(features))
	gradW := make([]float64, dim)
	for epoch := 0; epoch < epochs; epoch++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0
		for i, x := range features {
			p := sigmoid(dot(lr.Weights, x) + lr.Bias)
			diff := weights[i] * (p - float64(labels[i]))
			for j, v := range x {
				gradW[j] += diff * v
			}
			gradB += diff
		}
		for j := range lr.Weights {
			lr.Weights[j] -= rate * (gradW[j]/n + l2*lr.Weights[j])
		}
		lr.Bias -= rate * gradB / n
	}
	return nil
}

func (lr *LogisticRegression) PredictProba(features []float64) (float64, error) {
	if lr.Weights == nil {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(lr.Weights) {
		return 0, errors.New("feature width mismatch")
	}
	return sigmoid(dot(lr.Weights, features) + lr.Bias), nil
}

func (lr *LogisticRegression) MarshalParams() ([]byte, error) {
	if lr.Weights == nil {
		return nil, errors.New("model not trained")
	}
	return json.Marshal(struct {
		Hyper   Params    `json:"hyper"`
		Weights []float64 `json:"weights"`
		Bias    float64   `json:"bias"`
	}{lr.params, lr.Weights, lr.Bias})
}

func (lr *LogisticRegression) UnmarshalParams(data []byte) error {
	var payload struct {
		Hyper   Params    `json:"hyper"`
		Weights []float64 `json:"weights"`
		Bias    float64   `json:"bias"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if len(payload.Weights) == 0 {
		return errors.New("empty logistic payload")
	}
	lr.params = payload.Hyper
	lr.Weights = payload.Weights
	lr.Bias = payload.Bias
	return nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sigmoid(z float64) float64 {
	if z < -30 {
		return 0
	}
	if z > 30 {
		return 1
	}
	return 1 / (1 + math.Exp(-z))
}
