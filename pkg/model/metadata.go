package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownLabel is returned when encoding a label or decoding a code outside the fitted vocabulary.
var ErrUnknownLabel = errors.New("unknown label")

// NameMap implements a bidirectional mapping between a name and an index
type NameMap struct {
	NameToIndex map[string]int
	IndexToName map[int]string
}

func NewNameMap() NameMap {
	return NameMap{
		NameToIndex: map[string]int{},
		IndexToName: map[int]string{},
	}
}

func (f NameMap) Set(name string, index int) {
	f.NameToIndex[name] = index
	f.IndexToName[index] = name
}

func (f NameMap) Size() int {
	return len(f.IndexToName)
}

func (f NameMap) ContainsName(name string) (int, bool) {
	index, ok := f.NameToIndex[name]
	return index, ok
}

func (f NameMap) ContainsIndex(index int) (string, bool) {
	name, ok := f.IndexToName[index]
	return name, ok
}

// LabelEncoder maps target labels to contiguous integer codes assigned in sorted label order.
type LabelEncoder struct {
	Names NameMap
}

func FitLabelEncoder(labels []string) *LabelEncoder {
	unique := map[string]struct{}{}
	for _, l := range labels {
		unique[l] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for l := range unique {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)

	names := NewNameMap()
	for i, l := range sorted {
		names.Set(l, i)
	}
	return &LabelEncoder{Names: names}
}

func (e *LabelEncoder) Encode(label string) (int, error) {
	code, ok := e.Names.ContainsName(label)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return code, nil
}

func (e *LabelEncoder) EncodeAll(labels []string) ([]int, error) {
	result := make([]int, len(labels))
	for i, l := range labels {
		code, err := e.Encode(l)
		if err != nil {
			return nil, err
		}
		result[i] = code
	}
	return result, nil
}

func (e *LabelEncoder) Decode(code int) (string, error) {
	label, ok := e.Names.ContainsIndex(code)
	if !ok {
		return "", fmt.Errorf("%w: code %d", ErrUnknownLabel, code)
	}
	return label, nil
}

// Classes returns the labels ordered by code.
func (e *LabelEncoder) Classes() []string {
	result := make([]string, e.Names.Size())
	for i := range result {
		result[i] = e.Names.IndexToName[i]
	}
	return result
}

func (e *LabelEncoder) Size() int {
	return e.Names.Size()
}
