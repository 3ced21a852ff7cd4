package pkg

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"obesity/pkg/io"
	"obesity/pkg/model"
	"obesity/pkg/synth"
)

func testParameters(t *testing.T) TrainingParameters {
	t.Helper()
	dir := t.TempDir()
	params := DefaultTrainingParameters()
	params.ModelFile = filepath.Join(dir, "modelo.gob")
	params.EncoderFile = filepath.Join(dir, "label_encoder.gob")
	params.Forest.NumTrees = 20
	return params
}

func writeSynthetic(t *testing.T, n int, seed int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obesity.csv")
	ds := synth.Generate(n, rand.New(rand.NewSource(seed)))
	require.NoError(t, io.WriteData(path, ds, model.DefaultSchema()))
	return path
}

func TestTrainModel(t *testing.T) {
	ds := synth.Generate(350, rand.New(rand.NewSource(1)))
	result, err := TrainModel(ds, testParameters(t))
	require.NoError(t, err)

	require.Equal(t, 280, result.TrainSize)
	require.Equal(t, 70, result.TestSize)
	require.Equal(t, 7, result.Encoder.Size())
	require.NoError(t, result.Pipeline.Check())
	require.Len(t, result.Pipeline.Forest.Trees, 20)

	report := result.Report
	require.Equal(t, 70, report.Total)
	require.Len(t, report.ConfusionMatrix, 7)
	total := 0
	for _, row := range report.ConfusionMatrix {
		require.Len(t, row, 7)
		for _, v := range row {
			total += v
		}
	}
	require.Equal(t, report.Total, total)
	require.Equal(t, float64(report.Correct())/float64(report.Total), report.Accuracy)
	require.Greater(t, report.Accuracy, 0.7)
	for _, c := range report.PerClass {
		require.Equal(t, 10, c.Support)
	}

	cv := result.CrossValidation
	require.Len(t, cv.FoldScores, 5)
	for _, s := range cv.FoldScores {
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0)
	}
	require.Greater(t, cv.Mean, 0.7)

	require.GreaterOrEqual(t, result.ForestDepth, 1)
	require.LessOrEqual(t, result.ForestDepth, testParameters(t).Forest.MaxDepth)

	require.Len(t, result.Importances, result.Pipeline.Transform.Width())
	var top []string
	for _, f := range result.Importances[:3] {
		top = append(top, f.Feature)
	}
	require.Contains(t, top, model.ColBMI)
}

func TestTrainModel_Deterministic(t *testing.T) {
	params := testParameters(t)
	first, err := TrainModel(synth.Generate(210, rand.New(rand.NewSource(2))), params)
	require.NoError(t, err)
	second, err := TrainModel(synth.Generate(210, rand.New(rand.NewSource(2))), params)
	require.NoError(t, err)

	require.Equal(t, first.CrossValidation, second.CrossValidation)
	require.Equal(t, first.Report, second.Report)
	require.Equal(t, first.Pipeline.Forest.Trees, second.Pipeline.Forest.Trees)
}

func TestTrainModel_InsufficientData(t *testing.T) {
	params := testParameters(t)

	_, err := TrainModel(&io.Dataset{}, params)
	require.True(t, errors.Is(err, ErrInsufficientData))

	// 4 examples of the last class leave 3 for training, fewer than 5 folds
	ds := synth.Generate(140, rand.New(rand.NewSource(3)))
	var keep []int
	rare := 0
	for i, l := range ds.Labels {
		if l == model.ObesityTypeIII {
			rare++
			if rare > 4 {
				continue
			}
		}
		keep = append(keep, i)
	}
	_, err = TrainModel(ds.Subset(keep), params)
	require.True(t, errors.Is(err, ErrInsufficientData))

	params.NumFolds = 3
	_, err = TrainModel(ds.Subset(keep), params)
	require.NoError(t, err)
}

func TestTrainModel_InvalidParameters(t *testing.T) {
	ds := synth.Generate(70, rand.New(rand.NewSource(4)))
	params := testParameters(t)
	params.TestSize = 1
	_, err := TrainModel(ds, params)
	require.Error(t, err)

	params = testParameters(t)
	params.Forest.ClassWeight = "inverse"
	_, err = TrainModel(ds, params)
	require.Error(t, err)
}

func TestTrain(t *testing.T) {
	params := testParameters(t)
	params.DataFile = writeSynthetic(t, 280, 5)

	result, err := Train(params)
	require.NoError(t, err)
	require.FileExists(t, params.ModelFile)
	require.FileExists(t, params.EncoderFile)

	artifacts, err := io.LoadArtifacts(params.ArtifactPaths(), model.DefaultSchema())
	require.NoError(t, err)
	require.Equal(t, result.RunID, artifacts.Header.RunID)
	require.Equal(t, result.Encoder.Classes(), artifacts.Encoder.Classes())
}

func TestTrain_NothingWrittenOnFailure(t *testing.T) {
	params := testParameters(t)
	params.DataFile = filepath.Join(t.TempDir(), "missing.csv")
	_, err := Train(params)
	require.True(t, errors.Is(err, io.ErrNotFound))

	params.DataFile = writeSynthetic(t, 21, 6)
	_, err = Train(params)
	require.True(t, errors.Is(err, ErrInsufficientData))

	_, err = os.Stat(params.ModelFile)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(params.EncoderFile)
	require.True(t, os.IsNotExist(err))
}

func TestTrain_UnknownLabel(t *testing.T) {
	params := testParameters(t)
	ds := synth.Generate(280, rand.New(rand.NewSource(7)))
	for i, l := range ds.Labels {
		if l == model.ObesityTypeIII {
			ds.Labels[i] = "Obesity_Type_3"
		}
	}
	params.DataFile = filepath.Join(t.TempDir(), "obesity.csv")
	require.NoError(t, io.WriteData(params.DataFile, ds, model.DefaultSchema()))

	_, err := Train(params)
	require.True(t, errors.Is(err, model.ErrUnknownLabel))
	require.Contains(t, err.Error(), "Obesity_Type_3")

	_, err = os.Stat(params.ModelFile)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(params.EncoderFile)
	require.True(t, os.IsNotExist(err))
}

func TestLoadTrainingParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_file: obesity.csv\nnum_folds: 3\nforest:\n  num_trees: 50\n  max_features: log2\n"), 0o644))

	params, err := LoadTrainingParameters(path, DefaultTrainingParameters())
	require.NoError(t, err)
	require.Equal(t, "obesity.csv", params.DataFile)
	require.Equal(t, 3, params.NumFolds)
	require.Equal(t, 50, params.Forest.NumTrees)
	require.Equal(t, model.MaxFeaturesLog2, params.Forest.MaxFeatures)

	// keys missing from the file keep their defaults
	require.Equal(t, int64(42), params.RndSeed)
	require.Equal(t, 0.2, params.TestSize)
	require.Equal(t, 20, params.Forest.MaxDepth)
	require.True(t, params.Forest.Bootstrap)
	require.NoError(t, params.Validate())

	require.NoError(t, os.WriteFile(path, []byte("num_folds: [\n"), 0o644))
	_, err = LoadTrainingParameters(path, DefaultTrainingParameters())
	require.Error(t, err)
	_, err = LoadTrainingParameters(filepath.Join(t.TempDir(), "none.yaml"), DefaultTrainingParameters())
	require.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	report := Evaluate([]int{0, 0, 1, 1, 2}, []int{0, 1, 1, 1, 0}, []string{"a", "b", "c"})
	require.Equal(t, [][]int{{1, 1, 0}, {0, 2, 0}, {1, 0, 0}}, report.ConfusionMatrix)
	require.Equal(t, 3, report.Correct())
	require.Equal(t, 0.6, report.Accuracy)

	require.InDelta(t, 0.5, report.PerClass[0].Precision, 1e-9)
	require.InDelta(t, 0.5, report.PerClass[0].Recall, 1e-9)
	require.InDelta(t, 2.0/3, report.PerClass[1].Precision, 1e-9)
	require.InDelta(t, 1.0, report.PerClass[1].Recall, 1e-9)
	require.InDelta(t, 0.8, report.PerClass[1].F1, 1e-9)
	require.Equal(t, ClassReport{Label: "c", Support: 1}, report.PerClass[2])

	require.InDelta(t, (0.5+0.8)/3, report.MacroF1, 1e-9)
	require.InDelta(t, (2*0.5+2*0.8)/5, report.WeightedF1, 1e-9)
}
