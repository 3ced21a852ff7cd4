package io

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"obesity/pkg/model"
)

func classCounts(y []int, indices []int) map[int]int {
	counts := map[int]int{}
	for _, i := range indices {
		counts[y[i]]++
	}
	return counts
}

func imbalancedLabels() []int {
	var y []int
	for c, n := range []int{50, 30, 20, 7} {
		for i := 0; i < n; i++ {
			y = append(y, c)
		}
	}
	rand.New(rand.NewSource(5)).Shuffle(len(y), func(i, j int) { y[i], y[j] = y[j], y[i] })
	return y
}

func TestStratifiedSplit(t *testing.T) {
	y := imbalancedLabels()
	train, test := StratifiedSplit(y, 0.2, rand.New(rand.NewSource(42)))
	require.Equal(t, len(y), len(train)+len(test))
	require.Equal(t, map[int]int{0: 10, 1: 6, 2: 4, 3: 1}, classCounts(y, test))
	require.Equal(t, map[int]int{0: 40, 1: 24, 2: 16, 3: 6}, classCounts(y, train))

	seen := map[int]bool{}
	for _, i := range append(append([]int(nil), train...), test...) {
		require.False(t, seen[i])
		seen[i] = true
	}
	require.IsIncreasing(t, train)
	require.IsIncreasing(t, test)

	train2, test2 := StratifiedSplit(y, 0.2, rand.New(rand.NewSource(42)))
	require.Equal(t, train, train2)
	require.Equal(t, test, test2)
	_, test3 := StratifiedSplit(y, 0.2, rand.New(rand.NewSource(43)))
	require.NotEqual(t, test, test3)
}

func TestStratifiedSplit_SmallClasses(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 2}
	train, test := StratifiedSplit(y, 0.2, rand.New(rand.NewSource(1)))
	require.Equal(t, map[int]int{0: 2, 2: 1}, classCounts(y, test))
	require.Equal(t, map[int]int{0: 8, 1: 1, 2: 1}, classCounts(y, train))
}

func TestStratifiedKFold(t *testing.T) {
	y := imbalancedLabels()
	folds := StratifiedKFold(y, 5, rand.New(rand.NewSource(42)))
	require.Len(t, folds, 5)

	seen := map[int]int{}
	total := map[int]int{}
	for _, i := range y {
		total[i]++
	}
	for _, fold := range folds {
		require.IsIncreasing(t, fold)
		require.InDelta(t, len(y)/5, len(fold), 1)
		for c, n := range classCounts(y, fold) {
			require.InDelta(t, float64(total[c])/5, float64(n), 1)
		}
		for _, i := range fold {
			seen[i]++
		}
	}
	require.Len(t, seen, len(y))
	for _, n := range seen {
		require.Equal(t, 1, n)
	}

	train := Complement(len(y), folds[0])
	require.Equal(t, len(y)-len(folds[0]), len(train))
}

func TestComplement(t *testing.T) {
	require.Equal(t, []int{0, 2, 4}, Complement(5, []int{1, 3}))
	require.Equal(t, []int{0, 1, 2}, Complement(3, nil))
	require.Empty(t, Complement(2, []int{0, 1}))
}

func TestDataset_Subset(t *testing.T) {
	ds := &Dataset{Labels: []string{"a", "b", "c"}}
	for i := 0; i < 3; i++ {
		ds.Records = append(ds.Records, &model.Record{Age: float64(20 + i)})
	}
	subset := ds.Subset([]int{2, 0})
	require.Equal(t, []string{"c", "a"}, subset.Labels)
	require.Equal(t, 22.0, subset.Records[0].Age)
	require.Same(t, ds.Records[0], subset.Records[1])

	unlabelled := &Dataset{Records: ds.Records}
	require.Nil(t, unlabelled.Subset([]int{1}).Labels)
}
