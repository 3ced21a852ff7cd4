package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"obesity/pkg"
	"obesity/pkg/model"
)

func run(t *testing.T, args string) string {
	t.Helper()
	cmd := RootCommand()
	out := bytes.NewBufferString("")
	cmd.SetOut(out)
	cmd.SetArgs(strings.Fields(args))
	require.NoError(t, cmd.Execute(), args)
	return out.String()
}

func TestTrainTestPredict(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "obesity.csv")
	modelFile := filepath.Join(dir, "modelo.gob")
	encoderFile := filepath.Join(dir, "label_encoder.gob")

	run(t, "synth --log-level error -n 280 -o "+data)
	require.FileExists(t, data)

	out := run(t, "train --log-level error -n 20 -i "+data+" -o "+modelFile+" -e "+encoderFile)
	require.Contains(t, out, "Cross validation accuracy")
	require.Contains(t, out, "Test accuracy")
	require.FileExists(t, modelFile)
	require.FileExists(t, encoderFile)

	out = run(t, "test --log-level error -m "+modelFile+" -e "+encoderFile+" -i "+data)
	require.Contains(t, out, "Accuracy:")

	out = run(t, "predict --log-level error --json -m "+modelFile+" -e "+encoderFile+
		" --gender Female --age 21 --height 1.62 --weight 64 --family-history yes --favc yes"+
		" --fcvc 2 --ncp 3 --caec Sometimes --smoke no --ch2o 2 --scc no --faf 0 --tue 1 --calc no --mtrans Public_Transportation")
	var prediction pkg.Prediction
	require.NoError(t, json.Unmarshal([]byte(out), &prediction))
	require.Contains(t, model.Labels(), prediction.Label)
	require.InDelta(t, 24.39, prediction.BMI, 0.005)

	out = run(t, "predict --log-level error -m "+modelFile+" -e "+encoderFile+" --age 30 --weight 90")
	require.Contains(t, out, "Category: ")
	require.Regexp(t, `Model run: [0-9a-f-]{36}`, out)

	out = run(t, "predict --log-level error -m "+modelFile+" -e "+encoderFile+" -i "+data)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 281)
}

func TestTrain_Config(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "obesity.csv")
	config := filepath.Join(dir, "train.yaml")
	modelFile := filepath.Join(dir, "model.gob")

	run(t, "synth --log-level error -n 140 -o "+data)
	yaml := "data_file: " + data + "\nmodel_file: " + modelFile + "\nencoder_file: " + filepath.Join(dir, "encoder.gob") + "\nforest:\n  num_trees: 5\n"
	require.NoError(t, os.WriteFile(config, []byte(yaml), 0o644))

	// flags override the config file
	other := filepath.Join(dir, "other.gob")
	run(t, "train --log-level error -c "+config+" -o "+other)
	require.FileExists(t, other)
	_, err := os.Stat(modelFile)
	require.True(t, os.IsNotExist(err))
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "obesity.csv")
	run(t, "synth --log-level error -n 140 -o "+data)

	out := run(t, "stats --log-level error --json -i "+data+" -p "+filepath.Join(dir, "plots"))
	var summary pkg.DatasetSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Equal(t, 140, summary.Records)
	require.FileExists(t, filepath.Join(dir, "plots", "correlation.png"))

	out = run(t, "stats --log-level error -i "+data)
	require.Contains(t, out, "Obesity Type III")
}

func TestInvalidArguments(t *testing.T) {
	cmd := RootCommand()
	cmd.SetOut(bytes.NewBufferString(""))
	cmd.SetErr(bytes.NewBufferString(""))
	cmd.SetArgs([]string{"stats", "--log-level", "verbose", "-i", "x.csv"})
	require.Error(t, cmd.Execute())

	cmd = RootCommand()
	cmd.SetOut(bytes.NewBufferString(""))
	cmd.SetErr(bytes.NewBufferString(""))
	cmd.SetArgs([]string{"predict", "--log-level", "error", "-m", "missing.gob", "-e", "missing.gob"})
	require.Error(t, cmd.Execute())
}
