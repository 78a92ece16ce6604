package ml

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
)

// DecisionTree is a CART-style binary classification tree stored as a flat
// node array. Leaves hold the weighted positive-class fraction, so the tree
// produces probabilities rather than hard labels.
type DecisionTree struct {
	params Params
	nodes  []treeNode
}

type treeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Proba      float64 `json:"proba"`
	IsLeaf     bool    `json:"is_leaf"`
}

// NewDecisionTree builds an untrained tree. Recognized params: max_depth,
// min_samples, pos_weight.
func NewDecisionTree(params Params) *DecisionTree {
	return &DecisionTree{params: params.Clone()}
}

func (dt *DecisionTree) Family() string      { return FamilyTree }
func (dt *DecisionTree) HyperParams() Params { return dt.params.Clone() }

func (dt *DecisionTree) Fit(features [][]float64, labels []int) error {
	if err := checkTrainingData(features, labels); err != nil {
		return err
	}
	maxDepth := dt.params.getInt("max_depth", 5)
	if maxDepth <= 0 {
		maxDepth = 5
	}
	minSamples := dt.params.getInt("min_samples", 10)
	if minSamples < 2 {
		minSamples = 2
	}
	weights := classWeights(labels, dt.params.get("pos_weight", 1))

	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}
	builder := &treeBuilder{
		features:   features,
		labels:     labels,
		weights:    weights,
		maxDepth:   maxDepth,
		minSamples: minSamples,
	}
	dt.nodes = builder.build(indices, 0)
	return nil
}

func (dt *DecisionTree) PredictProba(features []float64) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Proba, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) MarshalParams() ([]byte, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	return json.Marshal(struct {
		Hyper Params     `json:"hyper"`
		Nodes []treeNode `json:"nodes"`
	}{dt.params, dt.nodes})
}

func (dt *DecisionTree) UnmarshalParams(data []byte) error {
	var payload struct {
		Hyper Params     `json:"hyper"`
		Nodes []treeNode `json:"nodes"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if len(payload.Nodes) == 0 {
		return errors.New("empty tree payload")
	}
	dt.params = payload.Hyper
	dt.nodes = payload.Nodes
	return nil
}

type treeBuilder struct {
	features   [][]float64
	labels     []int
	weights    []float64
	maxDepth   int
	minSamples int
}

// build returns the subtree for the given sample indices. Child indices are
// local to the returned slice; the parent offsets them when stitching
// subtrees together.
func (b *treeBuilder) build(indices []int, depth int) []treeNode {
	proba := b.weightedProba(indices)
	if depth >= b.maxDepth || len(indices) < b.minSamples || isPure(b.labels, indices) {
		return []treeNode{leaf(proba)}
	}

	featureIdx, threshold, ok := b.bestSplit(indices)
	if !ok {
		return []treeNode{leaf(proba)}
	}
	left, right := partition(b.features, indices, featureIdx, threshold)
	if len(left) == 0 || len(right) == 0 {
		return []treeNode{leaf(proba)}
	}

	leftNodes := b.build(left, depth+1)
	rightNodes := b.build(right, depth+1)

	nodes := make([]treeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, treeNode{
		FeatureIdx: featureIdx,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Proba:      proba,
	})
	nodes = append(nodes, offsetChildren(leftNodes, 1)...)
	nodes = append(nodes, offsetChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func leaf(proba float64) treeNode {
	return treeNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Proba: proba, IsLeaf: true}
}

func offsetChildren(nodes []treeNode, offset int) []treeNode {
	for i := range nodes {
		if !nodes[i].IsLeaf {
			nodes[i].LeftChild += offset
			nodes[i].RightChild += offset
		}
	}
	return nodes
}

func (b *treeBuilder) weightedProba(indices []int) float64 {
	var pos, total float64
	for _, i := range indices {
		total += b.weights[i]
		if b.labels[i] == 1 {
			pos += b.weights[i]
		}
	}
	if total == 0 {
		return 0
	}
	return pos / total
}

func (b *treeBuilder) bestSplit(indices []int) (int, float64, bool) {
	featureCount := len(b.features[indices[0]])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	values := make([]float64, len(indices))
	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		for k, i := range indices {
			values[k] = b.features[i][featureIdx]
		}
		for _, threshold := range quantileThresholds(values) {
			impurity, ok := b.splitImpurity(indices, featureIdx, threshold)
			if ok && impurity < bestImpurity {
				bestImpurity = impurity
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

// quantileThresholds proposes the 25th, 50th and 75th percentile of the
// observed values as split candidates.
func quantileThresholds(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := make([]float64, 0, 3)
	seen := math.Inf(-1)
	for _, q := range []float64{0.25, 0.5, 0.75} {
		idx := int(q * float64(len(sorted)-1))
		v := sorted[idx]
		if v != seen {
			out = append(out, v)
			seen = v
		}
	}
	return out
}

func (b *treeBuilder) splitImpurity(indices []int, featureIdx int, threshold float64) (float64, bool) {
	var leftPos, leftTotal, rightPos, rightTotal float64
	for _, i := range indices {
		w := b.weights[i]
		if b.features[i][featureIdx] <= threshold {
			leftTotal += w
			if b.labels[i] == 1 {
				leftPos += w
			}
		} else {
			rightTotal += w
			if b.labels[i] == 1 {
				rightPos += w
			}
		}
	}
	if leftTotal == 0 || rightTotal == 0 {
		return 0, false
	}
	total := leftTotal + rightTotal
	return (leftTotal/total)*giniBinary(leftPos/leftTotal) + (rightTotal/total)*giniBinary(rightPos/rightTotal), true
}

func giniBinary(p float64) float64 {
	return 1 - p*p - (1-p)*(1-p)
}

func partition(features [][]float64, indices []int, featureIdx int, threshold float64) (left, right []int) {
	for _, i := range indices {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func isPure(labels []int, indices []int) bool {
	if len(indices) == 0 {
		return true
	}
	first := labels[indices[0]]
	for _, i := range indices[1:] {
		if labels[i] != first {
			return false
		}
	}
	return true
}
