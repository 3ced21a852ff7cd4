package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelEncoder(t *testing.T) {
	e := FitLabelEncoder([]string{ObesityTypeI, NormalWeight, InsufficientWeight, NormalWeight, ObesityTypeI})
	require.Equal(t, 3, e.Size())
	require.Equal(t, []string{InsufficientWeight, NormalWeight, ObesityTypeI}, e.Classes())

	for code, label := range e.Classes() {
		c, err := e.Encode(label)
		require.NoError(t, err)
		require.Equal(t, code, c)
		decoded, err := e.Decode(c)
		require.NoError(t, err)
		require.Equal(t, label, decoded)
	}

	_, err := e.Encode(ObesityTypeIII)
	require.True(t, errors.Is(err, ErrUnknownLabel))
	_, err = e.Decode(3)
	require.True(t, errors.Is(err, ErrUnknownLabel))
	_, err = e.Decode(-1)
	require.True(t, errors.Is(err, ErrUnknownLabel))

	codes, err := e.EncodeAll([]string{NormalWeight, ObesityTypeI})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, codes)
	_, err = e.EncodeAll([]string{NormalWeight, "Skinny"})
	require.True(t, errors.Is(err, ErrUnknownLabel))
}

func TestCategories(t *testing.T) {
	labels := Labels()
	require.Len(t, labels, 7)
	require.Equal(t, InsufficientWeight, labels[0])
	require.Equal(t, ObesityTypeIII, labels[6])

	for i, c := range Categories() {
		require.Equal(t, i, c.Severity)
		found, ok := CategoryFor(c.Label)
		require.True(t, ok)
		require.Equal(t, c, found)
		require.NotEmpty(t, c.Description)
		require.NotEmpty(t, c.Recommendation)
	}

	_, ok := CategoryFor("Obesity_Type_IV")
	require.False(t, ok)
	require.NoError(t, CheckCategories(labels))
	require.True(t, errors.Is(CheckCategories([]string{NormalWeight, "Obesity_Type_IV"}), ErrUnknownLabel))

	// the returned slice is a copy
	Categories()[0].DisplayName = "changed"
	c, _ := CategoryFor(InsufficientWeight)
	require.Equal(t, "Insufficient Weight", c.DisplayName)
}
