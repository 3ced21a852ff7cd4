package pkg

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"obesity/pkg/io"
	"obesity/pkg/model"
	"obesity/pkg/synth"
)

func TestSummarize(t *testing.T) {
	ds := synth.Generate(140, rand.New(rand.NewSource(8)))
	ds.Labels[0] = "Unlabelled"
	s := Summarize(ds, model.DefaultSchema())

	require.Equal(t, 140, s.Records)
	require.Len(t, s.Categories, 8)
	require.Equal(t, model.InsufficientWeight, s.Categories[0].Label)
	require.Equal(t, 19, s.Categories[0].Count)
	require.Equal(t, 20, s.Categories[1].Count)
	require.Equal(t, "Unlabelled", s.Categories[7].Label)
	share := 0.0
	for _, c := range s.Categories {
		share += c.Share
	}
	require.InDelta(t, 1.0, share, 1e-9)

	require.Len(t, s.Numeric, len(SummaryColumns))
	for _, d := range s.Numeric {
		require.Equal(t, 140, d.Count)
		require.LessOrEqual(t, d.Min, d.Q1)
		require.LessOrEqual(t, d.Q1, d.Median)
		require.LessOrEqual(t, d.Median, d.Q3)
		require.LessOrEqual(t, d.Q3, d.Max)
		require.IsNonDecreasing(t, d.Values)
	}
	bmi := s.Numeric[3]
	require.Equal(t, model.ColBMI, bmi.Column)
	require.Less(t, bmi.ByCategory[model.NormalWeight], bmi.ByCategory[model.ObesityTypeI])
	require.Less(t, bmi.Max, 48.01)

	require.Len(t, s.Categorical, 8)
	gender := s.Categorical[0]
	require.Equal(t, model.ColGender, gender.Column)
	total := 0
	for _, byLabel := range gender.Counts {
		for _, n := range byLabel {
			total += n
		}
	}
	require.Equal(t, 140, total)

	require.Len(t, s.Correlation, len(SummaryColumns))
	for i, row := range s.Correlation {
		require.Equal(t, 1.0, row[i])
		for j, v := range row {
			require.Equal(t, v, s.Correlation[j][i])
			require.GreaterOrEqual(t, v, -1.0-1e-9)
			require.LessOrEqual(t, v, 1.0+1e-9)
		}
	}
	// BMI and Weight are strongly related by construction
	require.Greater(t, s.Correlation[2][3], 0.7)
}

func TestSummarize_Missing(t *testing.T) {
	ds := &io.Dataset{
		Records: []*model.Record{
			{Height: 1.7, Weight: 70, Age: 20},
			{Height: 0, Weight: 80, Age: 30},
			{Height: 1.6, Weight: 60, Age: 40},
		},
		Labels: []string{model.NormalWeight, model.NormalWeight, model.ObesityTypeI},
	}
	s := Summarize(ds, model.DefaultSchema())
	bmi := s.Numeric[3]
	require.Equal(t, 2, bmi.Count)
	require.InDelta(t, model.DeriveBMI(1.7, 70), bmi.ByCategory[model.NormalWeight], 1e-9)

	age := s.Numeric[0]
	// quartiles interpolate the empirical distribution function
	require.Equal(t, 25.0, age.Median)
	require.InDelta(t, 10.0, age.Std, 1e-9)

	// TUE is constant, so its correlations are reported as 0
	tue := len(SummaryColumns) - 1
	require.Equal(t, 0.0, s.Correlation[0][tue])
}

func TestRenderCharts(t *testing.T) {
	s := Summarize(synth.Generate(70, rand.New(rand.NewSource(9))), model.DefaultSchema())
	dir := filepath.Join(t.TempDir(), "plots")
	files, err := RenderCharts(s, dir)
	require.NoError(t, err)
	require.Len(t, files, len(SummaryColumns)+2)
	require.Equal(t, filepath.Join(dir, "categories.png"), files[0])
	require.Equal(t, filepath.Join(dir, "correlation.png"), files[len(files)-1])
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}
}
