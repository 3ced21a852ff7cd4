package model

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

const leafFeature = -1

// TreeNode is one node of a fitted tree. Leaves have Feature == -1.
type TreeNode struct {
	Feature   int
	Threshold float64 // x <= Threshold goes left
	// MissingLeft routes NaN values to the left child
	MissingLeft bool
	Left        int
	Right       int

	// Value is the weighted class distribution of the training samples reaching the node
	Value   []float64
	Samples int
}

func (n *TreeNode) IsLeaf() bool {
	return n.Feature == leafFeature
}

// DecisionTree is a CART classifier using weighted gini impurity.
type DecisionTree struct {
	MaxDepth        int // 0 => no limit
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => all features

	NumClasses  int
	NumFeatures int
	Nodes       []TreeNode

	// Importances holds the total weighted impurity decrease per feature
	Importances []float64
}

func NewDecisionTree(maxDepth, minSamplesSplit, minSamplesLeaf, maxFeatures int) *DecisionTree {
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
		MaxFeatures:     maxFeatures,
	}
}

// treeBuilder holds the fit-time state of a single tree.
type treeBuilder struct {
	tree    *DecisionTree
	X       [][]float64
	y       []int
	weights []float64
	rnd     *rand.Rand
	total   float64
}

// Fit grows the tree on the rows of X selected by idx. idx may contain
// repeated indices, as produced by bootstrap sampling. weights holds one
// weight per class.
func (t *DecisionTree) Fit(X [][]float64, y []int, numClasses int, weights []float64, idx []int, rnd *rand.Rand) error {
	if len(X) == 0 || len(idx) == 0 {
		return errors.New("dtree: empty X")
	}
	if len(y) != len(X) {
		return errors.New("dtree: X and y length mismatch")
	}
	if len(weights) != numClasses {
		return errors.New("dtree: one weight per class required")
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return errors.New("dtree: inconsistent number of features in X rows")
		}
	}
	for _, label := range y {
		if label < 0 || label >= numClasses {
			return errors.New("dtree: label out of range")
		}
	}

	t.NumClasses = numClasses
	t.NumFeatures = p
	t.Nodes = t.Nodes[:0]
	t.Importances = make([]float64, p)

	b := &treeBuilder{tree: t, X: X, y: y, weights: weights, rnd: rnd}
	rootCounts := b.counts(idx)
	b.total = sum(rootCounts)
	b.build(append([]int(nil), idx...), rootCounts, 0)
	return nil
}

func (b *treeBuilder) counts(idx []int) []float64 {
	counts := make([]float64, b.tree.NumClasses)
	for _, i := range idx {
		counts[b.y[i]] += b.weights[b.y[i]]
	}
	return counts
}

type split struct {
	feature     int
	threshold   float64
	missingLeft bool
	gain        float64
}

func (b *treeBuilder) build(idx []int, counts []float64, depth int) int {
	t := b.tree
	nodeIndex := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{
		Feature: leafFeature,
		Value:   normalize(counts),
		Samples: len(idx),
	})

	if isPure(counts) ||
		len(idx) < t.MinSamplesSplit ||
		len(idx) < 2*t.MinSamplesLeaf ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return nodeIndex
	}

	parentImpurity := gini(counts)
	best := split{feature: leafFeature}
	for _, f := range b.candidateFeatures() {
		s := b.bestSplit(idx, f, parentImpurity)
		if s.feature != leafFeature && s.gain > best.gain {
			best = s
		}
	}
	if best.feature == leafFeature || best.gain <= 0 {
		return nodeIndex
	}

	var left, right []int
	for _, i := range idx {
		v := b.X[i][best.feature]
		if goesLeft(v, best.threshold, best.missingLeft) {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	t.Importances[best.feature] += best.gain * sum(counts) / b.total

	leftIndex := b.build(left, b.counts(left), depth+1)
	rightIndex := b.build(right, b.counts(right), depth+1)
	n := &t.Nodes[nodeIndex]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.MissingLeft = best.missingLeft
	n.Left = leftIndex
	n.Right = rightIndex
	return nodeIndex
}

func (b *treeBuilder) candidateFeatures() []int {
	p := b.tree.NumFeatures
	perm := b.rnd.Perm(p)
	if b.tree.MaxFeatures > 0 && b.tree.MaxFeatures < p {
		perm = perm[:b.tree.MaxFeatures]
	}
	return perm
}

type valuedSample struct {
	v float64
	i int
}

// bestSplit scans the sorted values of feature f once, trying both
// directions for missing values.
func (b *treeBuilder) bestSplit(idx []int, f int, parentImpurity float64) split {
	t := b.tree
	result := split{feature: leafFeature}

	nanCounts := make([]float64, t.NumClasses)
	nanSamples := 0
	valid := make([]valuedSample, 0, len(idx))
	for _, i := range idx {
		v := b.X[i][f]
		if math.IsNaN(v) {
			nanCounts[b.y[i]] += b.weights[b.y[i]]
			nanSamples++
			continue
		}
		valid = append(valid, valuedSample{v, i})
	}
	if len(valid) < 2 {
		return result
	}
	sort.Slice(valid, func(a, c int) bool {
		if valid[a].v == valid[c].v {
			return valid[a].i < valid[c].i
		}
		return valid[a].v < valid[c].v
	})

	validCounts := make([]float64, t.NumClasses)
	for _, s := range valid {
		validCounts[b.y[s.i]] += b.weights[b.y[s.i]]
	}
	totalWeight := sum(validCounts) + sum(nanCounts)
	if totalWeight == 0 {
		return result
	}

	left := make([]float64, t.NumClasses)
	right := make([]float64, t.NumClasses)
	withNaN := make([]float64, t.NumClasses)
	directions := []bool{false}
	if nanSamples > 0 {
		directions = []bool{true, false}
	}

	for s := 1; s < len(valid); s++ {
		prev := valid[s-1]
		left[b.y[prev.i]] += b.weights[b.y[prev.i]]
		if valid[s].v == prev.v {
			continue
		}
		for k := range right {
			right[k] = validCounts[k] - left[k]
		}
		for _, missingLeft := range directions {
			nLeft, nRight := s, len(valid)-s
			l, r := left, right
			if missingLeft {
				nLeft += nanSamples
				for k := range withNaN {
					withNaN[k] = left[k] + nanCounts[k]
				}
				l = withNaN
			} else if nanSamples > 0 {
				nRight += nanSamples
				for k := range withNaN {
					withNaN[k] = right[k] + nanCounts[k]
				}
				r = withNaN
			}
			if nLeft < t.MinSamplesLeaf || nRight < t.MinSamplesLeaf {
				continue
			}
			wl, wr := sum(l), sum(r)
			weighted := (wl*gini(l) + wr*gini(r)) / totalWeight
			gain := parentImpurity - weighted
			if gain > result.gain {
				threshold := prev.v + (valid[s].v-prev.v)/2
				if threshold >= valid[s].v {
					threshold = prev.v
				}
				result = split{feature: f, threshold: threshold, missingLeft: missingLeft, gain: gain}
			}
		}
	}
	return result
}

func goesLeft(v, threshold float64, missingLeft bool) bool {
	if math.IsNaN(v) {
		return missingLeft
	}
	return v <= threshold
}

// PredictProba returns the class distribution of the leaf reached by x.
func (t *DecisionTree) PredictProba(x []float64) []float64 {
	if len(t.Nodes) == 0 {
		p := make([]float64, t.NumClasses)
		for i := range p {
			p[i] = 1.0 / float64(len(p))
		}
		return p
	}
	n := &t.Nodes[0]
	for !n.IsLeaf() {
		if goesLeft(x[n.Feature], n.Threshold, n.MissingLeft) {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Value
}

func (t *DecisionTree) Predict(x []float64) int {
	return argmax(t.PredictProba(x))
}

func (t *DecisionTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var depth func(i int) int
	depth = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(0)
}

func gini(counts []float64) float64 {
	n := sum(counts)
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := c / n
		res -= p * p
	}
	return res
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(counts []float64) []float64 {
	n := sum(counts)
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i := range counts {
		p[i] = counts[i] / n
	}
	return p
}

func sum(values []float64) float64 {
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
