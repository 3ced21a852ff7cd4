package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const (
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
	MaxFeaturesAll  = "all"

	ClassWeightBalanced = "balanced"
	ClassWeightNone     = "none"
)

type ForestConfig struct {
	NumTrees        int    `yaml:"num_trees"`
	MaxDepth        int    `yaml:"max_depth"`
	MinSamplesSplit int    `yaml:"min_samples_split"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf"`
	MaxFeatures     string `yaml:"max_features"`
	Bootstrap       bool   `yaml:"bootstrap"`
	ClassWeight     string `yaml:"class_weight"`
	Seed            int64  `yaml:"-"`
	// Workers bounds the number of trees fitted concurrently; 0 => GOMAXPROCS
	Workers int `yaml:"workers"`
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:        200,
		MaxDepth:        20,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		MaxFeatures:     MaxFeaturesSqrt,
		Bootstrap:       true,
		ClassWeight:     ClassWeightBalanced,
	}
}

func (c ForestConfig) Validate() error {
	if c.NumTrees < 1 {
		return fmt.Errorf("num_trees must be positive, got %d", c.NumTrees)
	}
	if c.MaxDepth < 0 || c.MinSamplesSplit < 2 || c.MinSamplesLeaf < 1 {
		return fmt.Errorf("invalid tree limits: max_depth=%d min_samples_split=%d min_samples_leaf=%d",
			c.MaxDepth, c.MinSamplesSplit, c.MinSamplesLeaf)
	}
	switch c.MaxFeatures {
	case MaxFeaturesSqrt, MaxFeaturesLog2, MaxFeaturesAll:
	default:
		return fmt.Errorf("unknown max_features %q", c.MaxFeatures)
	}
	switch c.ClassWeight {
	case ClassWeightBalanced, ClassWeightNone:
	default:
		return fmt.Errorf("unknown class_weight %q", c.ClassWeight)
	}
	return nil
}

func (c ForestConfig) featuresPerSplit(p int) int {
	var k int
	switch c.MaxFeatures {
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(p)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(p)))
	default:
		return p
	}
	return min(max(k, 1), p)
}

// RandomForest is an ensemble of decision trees combined by majority vote.
type RandomForest struct {
	Config      ForestConfig
	NumClasses  int
	NumFeatures int
	Trees       []*DecisionTree
}

func NewRandomForest(config ForestConfig) *RandomForest {
	return &RandomForest{Config: config}
}

// ClassWeights returns n / (k * count) per class, or 1 for every class when
// balancing is disabled. Classes absent from y get weight 0.
func ClassWeights(y []int, numClasses int, mode string) []float64 {
	weights := make([]float64, numClasses)
	if mode != ClassWeightBalanced {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}
	counts := make([]int, numClasses)
	for _, label := range y {
		counts[label]++
	}
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	for i, c := range counts {
		if c > 0 {
			weights[i] = float64(len(y)) / float64(present*c)
		}
	}
	return weights
}

// Fit trains the forest. Trees are fitted concurrently; tree i draws its
// bootstrap sample and feature subsets from a source seeded with Seed+i, so
// the result does not depend on scheduling.
func (f *RandomForest) Fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("randomforest: X and y length mismatch")
	}
	if err := f.Config.Validate(); err != nil {
		return fmt.Errorf("randomforest: %w", err)
	}

	f.NumClasses = numClasses
	f.NumFeatures = len(X[0])
	weights := ClassWeights(y, numClasses, f.Config.ClassWeight)
	maxFeatures := f.Config.featuresPerSplit(f.NumFeatures)

	workers := f.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*DecisionTree, f.Config.NumTrees)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			treeRand := rand.New(rand.NewSource(f.Config.Seed + int64(i)))

			sampleIndices := make([]int, n)
			for j := range sampleIndices {
				if f.Config.Bootstrap {
					sampleIndices[j] = treeRand.Intn(n)
				} else {
					sampleIndices[j] = j
				}
			}

			tree := NewDecisionTree(f.Config.MaxDepth, f.Config.MinSamplesSplit, f.Config.MinSamplesLeaf, maxFeatures)
			if err := tree.Fit(X, y, numClasses, weights, sampleIndices, treeRand); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.Trees = trees
	return nil
}

// Votes returns the number of trees voting for each class.
func (f *RandomForest) Votes(x []float64) []int {
	votes := make([]int, f.NumClasses)
	for _, t := range f.Trees {
		votes[t.Predict(x)]++
	}
	return votes
}

// PredictOne returns the majority class; ties go to the lowest class code.
func (f *RandomForest) PredictOne(x []float64) int {
	votes := f.Votes(x)
	best := 0
	for c := 1; c < len(votes); c++ {
		if votes[c] > votes[best] {
			best = c
		}
	}
	return best
}

func (f *RandomForest) Predict(X [][]float64) []int {
	result := make([]int, len(X))
	for i := range X {
		result[i] = f.PredictOne(X[i])
	}
	return result
}

// FeatureImportances returns the impurity decrease per feature averaged over
// the trees, normalized to sum to 1.
func (f *RandomForest) FeatureImportances() []float64 {
	result := make([]float64, f.NumFeatures)
	for _, t := range f.Trees {
		total := sum(t.Importances)
		if total == 0 {
			continue
		}
		for j, v := range t.Importances {
			result[j] += v / total
		}
	}
	total := sum(result)
	if total > 0 {
		for j := range result {
			result[j] /= total
		}
	}
	return result
}
