package pkg

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"obesity/pkg/io"
	"obesity/pkg/model"
)

// ErrInsufficientData is returned when a class has too few examples to stratify.
var ErrInsufficientData = errors.New("insufficient data")

// CrossValidation holds the accuracy of each fold. Std is the population
// standard deviation of the fold scores.
type CrossValidation struct {
	FoldScores []float64 `json:"fold_scores"`
	Mean       float64   `json:"mean"`
	Std        float64   `json:"std"`
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type TrainResult struct {
	Pipeline        *model.Pipeline
	Encoder         *model.LabelEncoder
	CrossValidation CrossValidation
	Report          *EvaluationReport
	Importances     []FeatureImportance
	ForestDepth     int
	TrainSize       int
	TestSize        int
	RunID           uuid.UUID
}

type Trainer struct {
	params TrainingParameters
	schema *model.Schema
}

func NewTrainer(schema *model.Schema, params TrainingParameters) *Trainer {
	return &Trainer{params: params, schema: schema}
}

// Train loads the data file, trains and evaluates the model and persists both
// artifacts. Nothing is written if any step fails.
func Train(params TrainingParameters) (*TrainResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	schema := model.DefaultSchema()

	log.Info().Str("File", params.DataFile).Msg("Loading data")
	ds, dataErrors, err := io.LoadData(params.DataFile, schema)
	if err != nil {
		return nil, fmt.Errorf("error reading training data: %w", err)
	}
	printDataErrors(dataErrors)
	log.Info().Int("Records", ds.Size()).Msg("Data loaded")

	result, err := NewTrainer(schema, params).Train(ds)
	if err != nil {
		return nil, err
	}

	runID, err := io.SaveArtifacts(params.ArtifactPaths(), result.Pipeline, result.Encoder, schema)
	if err != nil {
		return nil, err
	}
	result.RunID = runID
	log.Info().Str("Model", params.ModelFile).Str("Encoder", params.EncoderFile).Str("RunID", runID.String()).Msg("Artifacts saved")
	return result, nil
}

// TrainModel trains and evaluates a model on ds with the default schema.
func TrainModel(ds *io.Dataset, params TrainingParameters) (*TrainResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return NewTrainer(model.DefaultSchema(), params).Train(ds)
}

func (t *Trainer) Train(ds *io.Dataset) (*TrainResult, error) {
	if ds.Size() == 0 {
		return nil, fmt.Errorf("%w: no data to train", ErrInsufficientData)
	}
	if len(ds.Labels) != ds.Size() {
		return nil, fmt.Errorf("dataset has %d records but %d labels", ds.Size(), len(ds.Labels))
	}
	ds.DeriveBMI()

	encoder := model.FitLabelEncoder(ds.Labels)
	if err := model.CheckCategories(encoder.Classes()); err != nil {
		return nil, fmt.Errorf("invalid target column: %w", err)
	}
	y, err := encoder.EncodeAll(ds.Labels)
	if err != nil {
		return nil, err
	}
	log.Info().Strs("Classes", encoder.Classes()).Msg("Target encoded")

	rnd := rand.New(rand.NewSource(t.params.RndSeed))
	trainIdx, testIdx := io.StratifiedSplit(y, t.params.TestSize, rnd)
	if err := checkClassCounts(subsetLabels(y, trainIdx), encoder.Classes(), t.params.NumFolds); err != nil {
		return nil, err
	}
	train, test := ds.Subset(trainIdx), ds.Subset(testIdx)
	yTrain, yTest := subsetLabels(y, trainIdx), subsetLabels(y, testIdx)
	log.Info().Int("Train", train.Size()).Int("Test", test.Size()).Msg("Stratified split")

	transform, err := model.NewColumnTransformer(t.schema).Fit(train.Records)
	if err != nil {
		return nil, fmt.Errorf("error fitting preprocessor: %w", err)
	}
	XTrain := transform.ApplyAll(train.Records)
	XTest := transform.ApplyAll(test.Records)
	log.Info().Int("Features", transform.Width()).Msg("Preprocessor fitted")

	forestConfig := t.params.Forest
	forestConfig.Seed = t.params.RndSeed

	cv, err := crossValidate(XTrain, yTrain, encoder.Size(), t.params.NumFolds, forestConfig, rand.New(rand.NewSource(t.params.RndSeed)))
	if err != nil {
		return nil, err
	}
	log.Info().Floats64("Folds", cv.FoldScores).Float64("Mean", cv.Mean).Float64("PlusMinus", 2*cv.Std).Msg("Cross validation accuracy")

	log.Info().Int("Trees", forestConfig.NumTrees).Msg("Training random forest")
	forest := model.NewRandomForest(forestConfig)
	if err := forest.Fit(XTrain, yTrain, encoder.Size()); err != nil {
		return nil, fmt.Errorf("error training classifier: %w", err)
	}

	depth := 0
	for _, tree := range forest.Trees {
		depth = max(depth, tree.Depth())
	}
	log.Info().Int("MaxDepth", depth).Msg("Random forest trained")

	report := Evaluate(yTest, forest.Predict(XTest), encoder.Classes())
	report.LogMetrics()
	if report.Accuracy < t.params.TargetAccuracy {
		log.Warn().Float64("Accuracy", report.Accuracy).Float64("Target", t.params.TargetAccuracy).Msg("Test accuracy below target, consider tuning the forest parameters")
	} else {
		log.Info().Float64("Accuracy", report.Accuracy).Float64("Target", t.params.TargetAccuracy).Msg("Test accuracy target reached")
	}

	return &TrainResult{
		Pipeline:        &model.Pipeline{Transform: transform, Forest: forest},
		Encoder:         encoder,
		CrossValidation: cv,
		Report:          report,
		Importances:     importances(transform.FeatureNames(), forest.FeatureImportances()),
		ForestDepth:     depth,
		TrainSize:       train.Size(),
		TestSize:        test.Size(),
	}, nil
}

// crossValidate estimates accuracy with stratified k-fold on already
// transformed training data. It does not affect the final model.
func crossValidate(X [][]float64, y []int, numClasses, k int, config model.ForestConfig, rnd *rand.Rand) (CrossValidation, error) {
	folds := io.StratifiedKFold(y, k, rnd)
	cv := CrossValidation{FoldScores: make([]float64, k)}
	for i, testIdx := range folds {
		trainIdx := io.Complement(len(y), testIdx)
		forest := model.NewRandomForest(config)
		if err := forest.Fit(subsetRows(X, trainIdx), subsetLabels(y, trainIdx), numClasses); err != nil {
			return cv, fmt.Errorf("error training fold %d: %w", i, err)
		}
		predicted := forest.Predict(subsetRows(X, testIdx))
		report := Evaluate(subsetLabels(y, testIdx), predicted, make([]string, numClasses))
		cv.FoldScores[i] = report.Accuracy
		log.Debug().Int("Fold", i).Float64("Accuracy", report.Accuracy).Msg("")
	}
	cv.Mean, cv.Std = stat.PopMeanStdDev(cv.FoldScores, nil)
	return cv, nil
}

func checkClassCounts(y []int, classes []string, k int) error {
	counts := make([]int, len(classes))
	for _, c := range y {
		counts[c]++
	}
	for c, n := range counts {
		if n < k {
			return fmt.Errorf("%w: class %s has %d training examples, %d-fold cross validation needs at least %d",
				ErrInsufficientData, classes[c], n, k, k)
		}
	}
	return nil
}

func importances(names []string, values []float64) []FeatureImportance {
	result := make([]FeatureImportance, len(values))
	for i, v := range values {
		result[i] = FeatureImportance{Feature: names[i], Importance: v}
	}
	sort.SliceStable(result, func(a, b int) bool {
		return result[a].Importance > result[b].Importance
	})
	return result
}

func subsetRows(X [][]float64, indices []int) [][]float64 {
	result := make([][]float64, len(indices))
	for i, idx := range indices {
		result[i] = X[idx]
	}
	return result
}

func subsetLabels(y []int, indices []int) []int {
	result := make([]int, len(indices))
	for i, idx := range indices {
		result[i] = y[idx]
	}
	return result
}
