package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"obesity/pkg"
	"obesity/pkg/io"
	"obesity/pkg/model"
	"obesity/pkg/synth"

	"github.com/spf13/cobra"
)

func TrainCommand() *cobra.Command {

	var configFile string
	params := pkg.DefaultTrainingParameters()
	flagParams := pkg.DefaultTrainingParameters()

	var cmd = &cobra.Command{
		Use:   "train -i dataFile [-o modelFile] [-e encoderFile] [--config train.yaml]",
		Short: "Trains a new classifier on the provided data and saves the model and label encoder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				var err error
				if params, err = pkg.LoadTrainingParameters(configFile, params); err != nil {
					return err
				}
			}
			overlayFlags(cmd, &params, flagParams)
			if params.DataFile == "" {
				return fmt.Errorf("no data file given, use --input or data_file in the config")
			}

			result, err := pkg.Train(params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cross validation accuracy: %.3f (+/- %.3f)\n", result.CrossValidation.Mean, 2*result.CrossValidation.Std)
			fmt.Fprintf(out, "Test accuracy: %.3f (%d/%d)\n", result.Report.Accuracy, result.Report.Correct(), result.Report.Total)
			fmt.Fprintf(out, "Macro F1: %.3f\n", result.Report.MacroF1)
			for i, f := range result.Importances {
				if i == 5 {
					break
				}
				fmt.Fprintf(out, "Feature %s: %.3f\n", f.Feature, f.Importance)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML file with training parameters (optional)")
	cmd.Flags().StringVarP(&flagParams.DataFile, "input", "i", "", "name of data file")
	cmd.Flags().StringVarP(&flagParams.ModelFile, "output-file", "o", params.ModelFile, "name of the file to save model to")
	cmd.Flags().StringVarP(&flagParams.EncoderFile, "encoder-file", "e", params.EncoderFile, "name of the file to save label encoder to")
	cmd.Flags().Int64VarP(&flagParams.RndSeed, "random-seed", "x", params.RndSeed, "random seed")
	cmd.Flags().Float64VarP(&flagParams.TestSize, "test-size", "", params.TestSize, "fraction of data held out for testing")
	cmd.Flags().IntVarP(&flagParams.NumFolds, "folds", "k", params.NumFolds, "number of cross validation folds")
	cmd.Flags().Float64VarP(&flagParams.TargetAccuracy, "target-accuracy", "", params.TargetAccuracy, "test accuracy reported as target")
	cmd.Flags().IntVarP(&flagParams.Forest.NumTrees, "num-trees", "n", params.Forest.NumTrees, "number of trees")
	cmd.Flags().IntVarP(&flagParams.Forest.MaxDepth, "max-depth", "d", params.Forest.MaxDepth, "maximum tree depth, 0 for unlimited")
	cmd.Flags().IntVarP(&flagParams.Forest.MinSamplesSplit, "min-samples-split", "", params.Forest.MinSamplesSplit, "minimum samples to split a node")
	cmd.Flags().IntVarP(&flagParams.Forest.MinSamplesLeaf, "min-samples-leaf", "", params.Forest.MinSamplesLeaf, "minimum samples in a leaf")
	cmd.Flags().StringVarP(&flagParams.Forest.MaxFeatures, "max-features", "", params.Forest.MaxFeatures, "features tried per split: sqrt, log2 or all")
	cmd.Flags().StringVarP(&flagParams.Forest.ClassWeight, "class-weight", "", params.Forest.ClassWeight, "class weighting: balanced or none")
	cmd.Flags().IntVarP(&flagParams.Forest.Workers, "workers", "w", params.Forest.Workers, "trees fitted in parallel, 0 for GOMAXPROCS")

	return cmd
}

// overlayFlags copies the explicitly set flags onto params, so that a config
// file value is only replaced when the flag was given.
func overlayFlags(cmd *cobra.Command, params *pkg.TrainingParameters, flags pkg.TrainingParameters) {
	changed := cmd.Flags().Changed
	if changed("input") {
		params.DataFile = flags.DataFile
	}
	if changed("output-file") {
		params.ModelFile = flags.ModelFile
	}
	if changed("encoder-file") {
		params.EncoderFile = flags.EncoderFile
	}
	if changed("random-seed") {
		params.RndSeed = flags.RndSeed
	}
	if changed("test-size") {
		params.TestSize = flags.TestSize
	}
	if changed("folds") {
		params.NumFolds = flags.NumFolds
	}
	if changed("target-accuracy") {
		params.TargetAccuracy = flags.TargetAccuracy
	}
	if changed("num-trees") {
		params.Forest.NumTrees = flags.Forest.NumTrees
	}
	if changed("max-depth") {
		params.Forest.MaxDepth = flags.Forest.MaxDepth
	}
	if changed("min-samples-split") {
		params.Forest.MinSamplesSplit = flags.Forest.MinSamplesSplit
	}
	if changed("min-samples-leaf") {
		params.Forest.MinSamplesLeaf = flags.Forest.MinSamplesLeaf
	}
	if changed("max-features") {
		params.Forest.MaxFeatures = flags.Forest.MaxFeatures
	}
	if changed("class-weight") {
		params.Forest.ClassWeight = flags.Forest.ClassWeight
	}
	if changed("workers") {
		params.Forest.Workers = flags.Forest.Workers
	}
}

func TestCommand() *cobra.Command {
	var paths io.ArtifactPaths
	var inputFile string
	var outputFile string

	var cmd = &cobra.Command{
		Use:   "test -m modelFile -e encoderFile -i dataFile [-o outputFile]",
		Short: "Evaluates the provided model on labelled data and optionally writes the predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := pkg.Test(paths, inputFile, outputFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Accuracy: %.3f (%d/%d)\nMacro F1: %.3f\nWeighted F1: %.3f\n",
				report.Accuracy, report.Correct(), report.Total, report.MacroF1, report.WeightedF1)
			return nil
		},
	}

	defaults := pkg.DefaultTrainingParameters()
	cmd.Flags().StringVarP(&paths.Pipeline, "model", "m", defaults.ModelFile, "name of model to test")
	cmd.Flags().StringVarP(&paths.Encoder, "encoder", "e", defaults.EncoderFile, "name of label encoder")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "name of labelled data file")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "name of output file (optional)")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func PredictCommand() *cobra.Command {
	var paths io.ArtifactPaths
	var inputFile string
	var asJSON bool
	r := model.Record{}

	var cmd = &cobra.Command{
		Use:   "predict -m modelFile -e encoderFile [--age 25 --height 1.70 ...] [-i dataFile]",
		Short: "Predicts the obesity category of one patient, or of every row of a data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			predictor, err := pkg.LoadPredictor(paths)
			if err != nil {
				return err
			}
			if inputFile != "" {
				return predictFile(cmd, predictor, inputFile)
			}

			prediction, err := predictor.Predict(r)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(prediction)
			}
			fmt.Fprintf(out, "Category: %s (%s)\n", prediction.Category.DisplayName, prediction.Label)
			fmt.Fprintf(out, "BMI: %.2f\n", prediction.BMI)
			fmt.Fprintf(out, "%s\n%s\n", prediction.Category.Description, prediction.Category.Recommendation)
			if len(prediction.Fallbacks) > 0 {
				fmt.Fprintf(out, "Unrecognized values: %s\n", strings.Join(prediction.Fallbacks, ", "))
			}
			fmt.Fprintf(out, "Model run: %s\n", predictor.Header().RunID)
			return nil
		},
	}

	defaults := pkg.DefaultTrainingParameters()
	cmd.Flags().StringVarP(&paths.Pipeline, "model", "m", defaults.ModelFile, "name of model file")
	cmd.Flags().StringVarP(&paths.Encoder, "encoder", "e", defaults.EncoderFile, "name of label encoder file")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "data file to classify row by row (optional)")
	cmd.Flags().BoolVarP(&asJSON, "json", "", false, "print the prediction as JSON")

	cmd.Flags().StringVarP(&r.Gender, "gender", "", "Female", "Female or Male")
	cmd.Flags().Float64VarP(&r.Age, "age", "", 25, "age in years")
	cmd.Flags().Float64VarP(&r.Height, "height", "", 1.70, "height in meters")
	cmd.Flags().Float64VarP(&r.Weight, "weight", "", 70, "weight in kilograms")
	cmd.Flags().StringVarP(&r.FamilyHistory, "family-history", "", "no", "family history of overweight: yes or no")
	cmd.Flags().StringVarP(&r.FAVC, "favc", "", "no", "frequent consumption of high caloric food: yes or no")
	cmd.Flags().Float64VarP(&r.FCVC, "fcvc", "", 2, "frequency of vegetable consumption (1-3)")
	cmd.Flags().Float64VarP(&r.NCP, "ncp", "", 3, "number of main meals (1-4)")
	cmd.Flags().StringVarP(&r.CAEC, "caec", "", "Sometimes", "eating between meals: no, Sometimes, Frequently or Always")
	cmd.Flags().StringVarP(&r.SMOKE, "smoke", "", "no", "smoker: yes or no")
	cmd.Flags().Float64VarP(&r.CH2O, "ch2o", "", 2, "daily water intake (1-3)")
	cmd.Flags().StringVarP(&r.SCC, "scc", "", "no", "monitors calorie intake: yes or no")
	cmd.Flags().Float64VarP(&r.FAF, "faf", "", 1, "physical activity frequency (0-3)")
	cmd.Flags().Float64VarP(&r.TUE, "tue", "", 1, "time using technology devices (0-2)")
	cmd.Flags().StringVarP(&r.CALC, "calc", "", "no", "alcohol consumption: no, Sometimes, Frequently or Always")
	cmd.Flags().StringVarP(&r.MTRANS, "mtrans", "", "Public_Transportation", "transportation: Public_Transportation, Automobile, Walking, Bike or Motorbike")

	return cmd
}

func predictFile(cmd *cobra.Command, predictor *pkg.Predictor, inputFile string) error {
	ds, dataErrors, err := io.LoadRecords(inputFile, model.DefaultSchema())
	if err != nil {
		return err
	}
	for _, e := range dataErrors {
		log.Error().Msgf("Error parsing data at line %d: %s", e.Line, e.Error)
	}
	predictions, err := predictor.PredictAll(ds.Records)
	if err != nil {
		return err
	}
	w := csv.NewWriter(cmd.OutOrStdout())
	_ = w.Write([]string{"row", "predicted", "bmi"})
	for i, p := range predictions {
		_ = w.Write([]string{strconv.Itoa(i), p.Label, strconv.FormatFloat(p.BMI, 'f', 2, 64)})
	}
	w.Flush()
	return w.Error()
}

func StatsCommand() *cobra.Command {
	var inputFile string
	var plotDir string
	var asJSON bool

	var cmd = &cobra.Command{
		Use:   "stats -i dataFile [--plot-dir dir] [--json]",
		Short: "Prints exploratory statistics of a labelled data file and optionally renders charts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := model.DefaultSchema()
			ds, dataErrors, err := io.LoadData(inputFile, schema)
			if err != nil {
				return err
			}
			for _, e := range dataErrors {
				log.Error().Msgf("Error parsing data at line %d: %s", e.Line, e.Error)
			}
			summary := pkg.Summarize(ds, schema)
			if plotDir != "" {
				files, err := pkg.RenderCharts(summary, plotDir)
				if err != nil {
					return err
				}
				log.Info().Int("Charts", len(files)).Str("Dir", plotDir).Msg("Charts rendered")
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return printSummary(cmd, summary)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "name of labelled data file")
	cmd.Flags().StringVarP(&plotDir, "plot-dir", "p", "", "directory to write PNG charts to (optional)")
	cmd.Flags().BoolVarP(&asJSON, "json", "", false, "print the summary as JSON")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func printSummary(cmd *cobra.Command, s *pkg.DatasetSummary) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Records\t%d\n\n", s.Records)
	fmt.Fprintln(w, "Category\tCount\tShare")
	for _, c := range s.Categories {
		fmt.Fprintf(w, "%s\t%d\t%.3f\n", c.DisplayName, c.Count, c.Share)
	}
	fmt.Fprintln(w, "\nColumn\tMean\tStd\tMin\tQ1\tMedian\tQ3\tMax")
	for _, d := range s.Numeric {
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n", d.Column, d.Mean, d.Std, d.Min, d.Q1, d.Median, d.Q3, d.Max)
	}
	fmt.Fprintf(w, "\n\t%s\n", strings.Join(s.CorrelationColumns, "\t"))
	for i, row := range s.Correlation {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.FormatFloat(v, 'f', 2, 64)
		}
		fmt.Fprintf(w, "%s\t%s\n", s.CorrelationColumns[i], strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func SynthCommand() *cobra.Command {
	var outputFile string
	var numRecords int
	var seed int64

	var cmd = &cobra.Command{
		Use:   "synth -o dataFile [-n 2100]",
		Short: "Writes a synthetic labelled data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds := synth.Generate(numRecords, rand.New(rand.NewSource(seed)))
			if err := io.WriteData(outputFile, ds, model.DefaultSchema()); err != nil {
				return err
			}
			log.Info().Int("Records", ds.Size()).Str("File", outputFile).Msg("Synthetic data written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "name of output file")
	cmd.Flags().IntVarP(&numRecords, "num-records", "n", 2100, "number of records")
	cmd.Flags().Int64VarP(&seed, "random-seed", "x", 42, "random seed")

	_ = cmd.MarkFlagRequired("output")

	return cmd
}

var logLevel string
var logFormat string

func RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "obesity",
		Short:             "Obesity category classifier",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
	}

	root.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Logging level: info error or debug")
	root.PersistentFlags().StringVarP(&logFormat, "log-format", "", "pretty", "Logging format: pretty or json")

	root.AddCommand(TrainCommand())
	root.AddCommand(TestCommand())
	root.AddCommand(PredictCommand())
	root.AddCommand(StatsCommand())
	root.AddCommand(SynthCommand())
	return root
}

func main() {
	if err := RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {

	switch logLevel {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		return fmt.Errorf("invalid logging level %q", logLevel)
	}

	switch logFormat {
	case "pretty":
		setupPrettyLogging()
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		return fmt.Errorf("invalid log format %q", logFormat)
	}
	return nil
}

func setupPrettyLogging() {
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	writer.FormatFieldValue = func(i interface{}) string {
		switch v := i.(type) {
		case json.Number:
			val, _ := v.Float64()
			return fmt.Sprintf("%.3f", val)
		default:
			return fmt.Sprintf("%s", i)
		}

	}
	log.Logger = log.Output(writer)

}
