package pkg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"obesity/pkg/io"
	"obesity/pkg/model"
)

type TrainingParameters struct {
	DataFile    string `yaml:"data_file"`
	ModelFile   string `yaml:"model_file"`
	EncoderFile string `yaml:"encoder_file"`

	RndSeed  int64   `yaml:"random_seed"`
	TestSize float64 `yaml:"test_size"`
	NumFolds int     `yaml:"num_folds"`

	// TargetAccuracy is the test accuracy below which the run is reported as under target
	TargetAccuracy float64 `yaml:"target_accuracy"`

	Forest model.ForestConfig `yaml:"forest"`
}

func DefaultTrainingParameters() TrainingParameters {
	return TrainingParameters{
		ModelFile:      "modelo.gob",
		EncoderFile:    "label_encoder.gob",
		RndSeed:        42,
		TestSize:       0.2,
		NumFolds:       5,
		TargetAccuracy: 0.75,
		Forest:         model.DefaultForestConfig(),
	}
}

// LoadTrainingParameters overlays the YAML file at path onto base. Keys
// missing from the file keep their base value.
func LoadTrainingParameters(path string, base TrainingParameters) (TrainingParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("error reading config %s: %w", path, err)
	}
	params := base
	if err := yaml.Unmarshal(data, &params); err != nil {
		return base, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	return params, nil
}

func (p TrainingParameters) Validate() error {
	if p.TestSize <= 0 || p.TestSize >= 1 {
		return fmt.Errorf("test_size must be in (0, 1), got %g", p.TestSize)
	}
	if p.NumFolds < 2 {
		return fmt.Errorf("num_folds must be at least 2, got %d", p.NumFolds)
	}
	return p.Forest.Validate()
}

func (p TrainingParameters) ArtifactPaths() io.ArtifactPaths {
	return io.ArtifactPaths{Pipeline: p.ModelFile, Encoder: p.EncoderFile}
}
