package ml

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
)

// GradientBoosting is a boosted ensemble of shallow regression trees on the
// logistic loss. Each round fits a tree to the weighted gradient and takes a
// Newton step per leaf. Class weighting enters through the gradient and
// hessian, penalizing missed bad-risk customers harder.
type GradientBoosting struct {
	params Params
	Base   float64     `json:"base"`
	Rate   float64     `json:"rate"`
	Trees  [][]regNode `json:"trees"`
}

type regNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// NewGradientBoosting builds an untrained ensemble. Recognized params:
// n_trees, max_depth, learning_rate, min_samples, pos_weight.
func NewGradientBoosting(params Params) *GradientBoosting {
	return &GradientBoosting{params: params.Clone()}
}

func (gb *GradientBoosting) Family() string      { return FamilyBoosting }
func (gb *GradientBoosting) HyperParams() Params { return gb.params.Clone() }

func (gb *GradientBoosting) Fit(features [][]float64, labels []int) error {
	if err := checkTrainingData(features, labels); err != nil {
		return err
	}
	nTrees := gb.params.getInt("n_trees", 100)
	if nTrees <= 0 {
		nTrees = 100
	}
	maxDepth := gb.params.getInt("max_depth", 3)
	if maxDepth <= 0 {
		maxDepth = 3
	}
	minSamples := gb.params.getInt("min_samples", 10)
	if minSamples < 2 {
		minSamples = 2
	}
	gb.Rate = gb.params.get("learning_rate", 0.1)
	if gb.Rate <= 0 {
		gb.Rate = 0.1
	}
	weights := classWeights(labels, gb.params.get("pos_weight", 1))

	// Weighted base rate sets the initial log-odds.
	var pos, total float64
	for i, label := range labels {
		total += weights[i]
		if label == 1 {
			pos += weights[i]
		}
	}
	p0 := clampProba(pos / total)
	gb.Base = math.Log(p0 / (1 - p0))

	n := len(features)
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = gb.Base
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	gb.Trees = make([][]regNode, 0, nTrees)
	for t := 0; t < nTrees; t++ {
		for i := range features {
			p := sigmoid(scores[i])
			grad[i] = weights[i] * (float64(labels[i]) - p)
			hess[i] = weights[i] * p * (1 - p)
		}
		builder := &regTreeBuilder{
			features:   features,
			grad:       grad,
			hess:       hess,
			maxDepth:   maxDepth,
			minSamples: minSamples,
		}
		tree := builder.build(indices, 0)
		gb.Trees = append(gb.Trees, tree)
		for i, x := range features {
			scores[i] += gb.Rate * evalRegTree(tree, x)
		}
	}
	return nil
}

func (gb *GradientBoosting) PredictProba(features []float64) (float64, error) {
	if len(gb.Trees) == 0 {
		return 0, errors.New("model not trained")
	}
	score := gb.Base
	for _, tree := range gb.Trees {
		score += gb.Rate * evalRegTree(tree, features)
	}
	return sigmoid(score), nil
}

func (gb *GradientBoosting) MarshalParams() ([]byte, error) {
	if len(gb.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	return json.Marshal(struct {
		Hyper Params      `json:"hyper"`
		Base  float64     `json:"base"`
		Rate  float64     `json:"rate"`
		Trees [][]regNode `json:"trees"`
	}{gb.params, gb.Base, gb.Rate, gb.Trees})
}

func (gb *GradientBoosting) UnmarshalParams(data []byte) error {
	var payload struct {
		Hyper Params      `json:"hyper"`
		Base  float64     `json:"base"`
		Rate  float64     `json:"rate"`
		Trees [][]regNode `json:"trees"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if len(payload.Trees) == 0 {
		return errors.New("empty boosting payload")
	}
	gb.params = payload.Hyper
	gb.Base = payload.Base
	gb.Rate = payload.Rate
	gb.Trees = payload.Trees
	return nil
}

func evalRegTree(nodes []regNode, features []float64) float64 {
	idx := 0
	for {
		node := nodes[idx]
		if node.IsLeaf {
			return node.Value
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(nodes) {
			return 0
		}
	}
}

type regTreeBuilder struct {
	features   [][]float64
	grad       []float64
	hess       []float64
	maxDepth   int
	minSamples int
}

// newtonLambda regularizes the per-leaf Newton step.
const newtonLambda = 1.0

func (b *regTreeBuilder) build(indices []int, depth int) []regNode {
	value := b.leafValue(indices)
	if depth >= b.maxDepth || len(indices) < b.minSamples {
		return []regNode{regLeaf(value)}
	}
	featureIdx, threshold, ok := b.bestSplit(indices)
	if !ok {
		return []regNode{regLeaf(value)}
	}
	left, right := partition(b.features, indices, featureIdx, threshold)
	if len(left) == 0 || len(right) == 0 {
		return []regNode{regLeaf(value)}
	}

	leftNodes := b.build(left, depth+1)
	rightNodes := b.build(right, depth+1)

	nodes := make([]regNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, regNode{
		FeatureIdx: featureIdx,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
	})
	nodes = append(nodes, offsetRegChildren(leftNodes, 1)...)
	nodes = append(nodes, offsetRegChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func regLeaf(value float64) regNode {
	return regNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: value, IsLeaf: true}
}

func offsetRegChildren(nodes []regNode, offset int) []regNode {
	for i := range nodes {
		if !nodes[i].IsLeaf {
			nodes[i].LeftChild += offset
			nodes[i].RightChild += offset
		}
	}
	return nodes
}

func (b *regTreeBuilder) leafValue(indices []int) float64 {
	var g, h float64
	for _, i := range indices {
		g += b.grad[i]
		h += b.hess[i]
	}
	return g / (h + newtonLambda)
}

// bestSplit maximizes the gain of the regularized Newton objective,
// evaluated at quantile thresholds per feature.
func (b *regTreeBuilder) bestSplit(indices []int) (int, float64, bool) {
	featureCount := len(b.features[indices[0]])
	var gTotal, hTotal float64
	for _, i := range indices {
		gTotal += b.grad[i]
		hTotal += b.hess[i]
	}
	parentScore := gTotal * gTotal / (hTotal + newtonLambda)

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 1e-12

	values := make([]float64, len(indices))
	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		for k, i := range indices {
			values[k] = b.features[i][featureIdx]
		}
		for _, threshold := range regQuantiles(values) {
			var gl, hl float64
			count := 0
			for _, i := range indices {
				if b.features[i][featureIdx] <= threshold {
					gl += b.grad[i]
					hl += b.hess[i]
					count++
				}
			}
			if count == 0 || count == len(indices) {
				continue
			}
			gr := gTotal - gl
			hr := hTotal - hl
			gain := gl*gl/(hl+newtonLambda) + gr*gr/(hr+newtonLambda) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func regQuantiles(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := make([]float64, 0, 7)
	seen := math.Inf(-1)
	for _, q := range []float64{0.1, 0.25, 0.4, 0.5, 0.6, 0.75, 0.9} {
		idx := int(q * float64(len(sorted)-1))
		v := sorted[idx]
		if v != seen {
			out = append(out, v)
			seen = v
		}
	}
	return out
}

func clampProba(p float64) float64 {
	const eps = 1e-6
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
