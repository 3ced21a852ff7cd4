package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func transformRecords() []*Record {
	a := exampleRecord()
	b := exampleRecord()
	b.Gender, b.Age, b.Height, b.Weight = "Male", 41, 1.80, 90
	b.CAEC, b.CALC, b.MTRANS = "Always", "Frequently", "Automobile"
	b.FamilyHistory = "no"
	c := exampleRecord()
	c.Age, c.MTRANS = 30, "Walking"
	records := []*Record{&a, &b, &c}
	for _, r := range records {
		r.DeriveBMI()
	}
	return records
}

func TestColumnTransformer(t *testing.T) {
	records := transformRecords()
	builder := NewColumnTransformer(DefaultSchema())
	fitted, err := builder.Fit(records)
	require.NoError(t, err)

	// 9 numeric + 2 ordinal + Gender 1 + family_history 1 + FAVC 0 + SMOKE 0 + SCC 0 + MTRANS 2
	require.Equal(t, 15, fitted.Width())
	names := fitted.FeatureNames()
	require.Len(t, names, fitted.Width())
	require.Equal(t, ColAge, names[0])
	require.Equal(t, ColBMI, names[8])
	require.Equal(t, []string{ColCAEC, ColCALC}, names[9:11])
	require.Equal(t, []string{"Gender_Male", "family_history_yes", "MTRANS_Public_Transportation", "MTRANS_Walking"}, names[11:])

	row := fitted.Apply(records[1])
	require.Len(t, row, 15)
	mean, std := (21.0+41+30)/3, math.Sqrt((math.Pow(21-92.0/3, 2)+math.Pow(41-92.0/3, 2)+math.Pow(30-92.0/3, 2))/3)
	require.InDelta(t, (41-mean)/std, row[0], 1e-9)
	require.Equal(t, 3.0, row[9])
	require.Equal(t, 2.0, row[10])
	require.Equal(t, []float64{1, 0, 0, 0}, row[11:])

	// FAVC is constant in the fitted data and therefore has no column
	require.Empty(t, fitted.Fallbacks(records[0]))

	// the builder holds no state
	again, err := builder.Fit(records[:1])
	require.NoError(t, err)
	require.NotEqual(t, fitted.Width(), again.Width())
	require.Equal(t, 15, fitted.Width())
}

func TestFittedTransform_Tolerance(t *testing.T) {
	fitted, err := NewColumnTransformer(DefaultSchema()).Fit(transformRecords())
	require.NoError(t, err)

	r := exampleRecord()
	r.CAEC = "Rarely"
	r.MTRANS = "Helicopter"
	r.DeriveBMI()
	row := fitted.Apply(&r)
	require.Equal(t, UnknownOrdinal, row[9])
	require.Equal(t, []float64{0, 0}, row[13:])
	require.Equal(t, []string{ColCAEC, ColMTRANS}, fitted.Fallbacks(&r))

	// the reference category encodes as all zeros and is not a fallback
	r = exampleRecord()
	r.MTRANS = "Automobile"
	r.DeriveBMI()
	require.Equal(t, []float64{0, 0}, fitted.Apply(&r)[13:])
	require.Empty(t, fitted.Fallbacks(&r))
}

func TestStandardScaler(t *testing.T) {
	records := transformRecords()
	records[2].Height = 0
	records[2].DeriveBMI()

	s, err := FitStandardScaler([]string{ColHeight, ColBMI, ColFCVC}, records)
	require.NoError(t, err)
	require.InDelta(t, (1.62+1.80+0)/3, s.Mean[0], 1e-9)
	require.InDelta(t, (DeriveBMI(1.62, 64)+DeriveBMI(1.80, 90))/2, s.Mean[1], 1e-9)

	// constant column scales by 1
	require.Equal(t, 2.0, s.Mean[2])
	require.Equal(t, 1.0, s.Scale[2])

	row := s.AppendTo(nil, records[2])
	require.True(t, math.IsNaN(row[1]))
	require.Equal(t, 0.0, row[2])

	_, err = FitStandardScaler([]string{ColGender}, records)
	require.Error(t, err)
}

func TestColumnTransformer_Empty(t *testing.T) {
	_, err := NewColumnTransformer(DefaultSchema()).Fit(nil)
	require.Error(t, err)
}
