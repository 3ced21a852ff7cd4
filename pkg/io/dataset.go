package io

import (
	"math"
	"math/rand"
	"sort"

	"obesity/pkg/model"
)

// Dataset holds the deduplicated records of a data file and, when labelled,
// one target label per record.
type Dataset struct {
	Columns []string
	Records []*model.Record
	Labels  []string
}

func (d *Dataset) Size() int {
	return len(d.Records)
}

// DeriveBMI computes the BMI of every record.
func (d *Dataset) DeriveBMI() {
	for _, r := range d.Records {
		r.DeriveBMI()
	}
}

func (d *Dataset) Subset(indices []int) *Dataset {
	subset := &Dataset{Columns: d.Columns, Records: make([]*model.Record, len(indices))}
	if d.Labels != nil {
		subset.Labels = make([]string, len(indices))
	}
	for i, idx := range indices {
		subset.Records[i] = d.Records[idx]
		if d.Labels != nil {
			subset.Labels[i] = d.Labels[idx]
		}
	}
	return subset
}

func groupByClass(y []int) [][]int {
	numClasses := 0
	for _, c := range y {
		numClasses = max(numClasses, c+1)
	}
	groups := make([][]int, numClasses)
	for i, c := range y {
		groups[c] = append(groups[c], i)
	}
	return groups
}

// StratifiedSplit partitions the indices of y into train and test sets so
// that each class keeps its proportion. Classes with a single example go to
// the train set. Both results are sorted.
func StratifiedSplit(y []int, testFraction float64, rnd *rand.Rand) (train, test []int) {
	for _, group := range groupByClass(y) {
		indices := append([]int(nil), group...)
		rnd.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		nTest := int(math.Round(testFraction * float64(len(indices))))
		if len(indices) >= 2 {
			nTest = min(max(nTest, 1), len(indices)-1)
		} else {
			nTest = 0
		}
		test = append(test, indices[:nTest]...)
		train = append(train, indices[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// StratifiedKFold deals the shuffled indices of each class round-robin into k
// folds and returns the test indices of every fold, sorted.
func StratifiedKFold(y []int, k int, rnd *rand.Rand) [][]int {
	folds := make([][]int, k)
	offset := 0
	for _, group := range groupByClass(y) {
		indices := append([]int(nil), group...)
		rnd.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for i, idx := range indices {
			fold := (offset + i) % k
			folds[fold] = append(folds[fold], idx)
		}
		offset += len(indices)
	}
	for i := range folds {
		sort.Ints(folds[i])
	}
	return folds
}

// Complement returns the indices in [0, n) not present in the sorted slice excluded.
func Complement(n int, excluded []int) []int {
	result := make([]int, 0, n-len(excluded))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(excluded) && excluded[j] == i {
			j++
			continue
		}
		result = append(result, i)
	}
	return result
}
