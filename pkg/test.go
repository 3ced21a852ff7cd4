package pkg

import (
	"encoding/csv"
	"fmt"
	gio "io"
	"os"
	"strconv"
	"strings"

	"github.com/nlpodyssey/spago/pkg/ml/stats"
	"github.com/rs/zerolog/log"

	"obesity/pkg/io"
)

func printDataErrors(errors []io.DataError) {
	for _, err := range errors {
		log.Error().Msgf("Error parsing data at line %d: %s", err.Line, err.Error)
	}
}

type ClassReport struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// EvaluationReport holds the test-set metrics of a classifier.
type EvaluationReport struct {
	Classes  []string `json:"classes"`
	Total    int      `json:"total"`
	Accuracy float64  `json:"accuracy"`

	// ConfusionMatrix[i][j] counts examples of true class i predicted as class j
	ConfusionMatrix [][]int `json:"confusion_matrix"`

	PerClass          []ClassReport `json:"per_class"`
	MacroPrecision    float64       `json:"macro_precision"`
	MacroRecall       float64       `json:"macro_recall"`
	MacroF1           float64       `json:"macro_f1"`
	WeightedPrecision float64       `json:"weighted_precision"`
	WeightedRecall    float64       `json:"weighted_recall"`
	WeightedF1        float64       `json:"weighted_f1"`
}

// Evaluate compares predicted codes with true codes. classes is indexed by code.
func Evaluate(yTrue, yPred []int, classes []string) *EvaluationReport {
	k := len(classes)
	r := &EvaluationReport{
		Classes:         classes,
		Total:           len(yTrue),
		ConfusionMatrix: make([][]int, k),
	}
	for i := range r.ConfusionMatrix {
		r.ConfusionMatrix[i] = make([]int, k)
	}

	metrics := make([]*stats.ClassMetrics, k)
	for i := range metrics {
		metrics[i] = stats.NewMetricCounter()
	}
	for i := range yTrue {
		label, predicted := yTrue[i], yPred[i]
		r.ConfusionMatrix[label][predicted]++
		if label == predicted {
			metrics[label].IncTruePos()
		} else {
			metrics[label].IncFalseNeg()
			metrics[predicted].IncFalsePos()
		}
	}

	if r.Total > 0 {
		r.Accuracy = float64(r.Correct()) / float64(r.Total)
	}

	averaged := 0
	for c, m := range metrics {
		cr := classReport(classes[c], m)
		r.PerClass = append(r.PerClass, cr)
		if cr.Support == 0 && m.FalsePos == 0 {
			continue
		}
		averaged++
		r.MacroPrecision += cr.Precision
		r.MacroRecall += cr.Recall
		r.MacroF1 += cr.F1
		if r.Total > 0 {
			w := float64(cr.Support) / float64(r.Total)
			r.WeightedPrecision += w * cr.Precision
			r.WeightedRecall += w * cr.Recall
			r.WeightedF1 += w * cr.F1
		}
	}
	if averaged > 0 {
		r.MacroPrecision /= float64(averaged)
		r.MacroRecall /= float64(averaged)
		r.MacroF1 /= float64(averaged)
	}
	return r
}

// classReport reports 0 where a ratio is undefined.
func classReport(label string, m *stats.ClassMetrics) ClassReport {
	cr := ClassReport{Label: label, Support: m.TruePos + m.FalseNeg}
	if m.TruePos == 0 {
		return cr
	}
	cr.Precision = float64(m.Precision())
	cr.Recall = float64(m.Recall())
	cr.F1 = float64(m.F1Score())
	return cr
}

// Correct returns the trace of the confusion matrix.
func (r *EvaluationReport) Correct() int {
	correct := 0
	for i := range r.ConfusionMatrix {
		correct += r.ConfusionMatrix[i][i]
	}
	return correct
}

func (r *EvaluationReport) LogMetrics() {
	for _, c := range r.PerClass {
		log.Info().Str("Class", c.Label).
			Float64("Precision", c.Precision).
			Float64("Recall", c.Recall).
			Float64("F1", c.F1).
			Int("Support", c.Support).
			Msg("")
	}
	log.Info().
		Float64("MacroPrecision", r.MacroPrecision).
		Float64("MacroRecall", r.MacroRecall).
		Float64("MacroF1", r.MacroF1).
		Float64("WeightedF1", r.WeightedF1).
		Msg("")
	for i, row := range r.ConfusionMatrix {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.Itoa(v)
		}
		log.Info().Str("TrueClass", r.Classes[i]).Str("Predicted", strings.Join(cells, " ")).Msg("Confusion matrix")
	}
	log.Info().Float64("Accuracy", r.Accuracy).Int("Correct", r.Correct()).Int("Total", r.Total).Msg("Test set")
}

// Test evaluates persisted artifacts on a labelled data file and optionally
// writes one "label,predicted" row per record to outputFileName.
func Test(paths io.ArtifactPaths, inputFileName, outputFileName string) (*EvaluationReport, error) {
	predictor, err := LoadPredictor(paths)
	if err != nil {
		return nil, err
	}
	ds, dataErrors, err := io.LoadData(inputFileName, predictor.schema)
	if err != nil {
		return nil, fmt.Errorf("error loading data from %s: %w", inputFileName, err)
	}
	printDataErrors(dataErrors)
	if ds.Size() == 0 {
		return nil, fmt.Errorf("%w: no data to test in %s", ErrInsufficientData, inputFileName)
	}

	var outputWriter gio.Writer = gio.Discard
	if outputFileName != "" {
		outputFile, err := os.Create(outputFileName)
		if err != nil {
			return nil, fmt.Errorf("error opening output file %s: %w", outputFileName, err)
		}
		defer outputFile.Close()
		outputWriter = outputFile
	}
	w := csv.NewWriter(outputWriter)

	ds.DeriveBMI()
	yTrue := make([]int, 0, ds.Size())
	yPred := make([]int, 0, ds.Size())
	skipped := 0
	for i, r := range ds.Records {
		code, err := predictor.encoder.Encode(ds.Labels[i])
		if err != nil {
			skipped++
			log.Error().Err(err).Int("Row", i).Msg("Skipping record")
			continue
		}
		predicted := predictor.pipeline.PredictCode(r)
		if err := w.Write([]string{ds.Labels[i], predictor.classes[predicted]}); err != nil {
			return nil, fmt.Errorf("error writing predictions: %w", err)
		}
		yTrue = append(yTrue, code)
		yPred = append(yPred, predicted)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("error writing predictions: %w", err)
	}
	if skipped > 0 {
		log.Warn().Int("Skipped", skipped).Msg("Records with labels unknown to the encoder were skipped")
	}

	report := Evaluate(yTrue, yPred, predictor.classes)
	report.LogMetrics()
	return report, nil
}
