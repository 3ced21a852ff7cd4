package pkg

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"obesity/pkg/io"
	"obesity/pkg/model"
)

// Prediction is the result of classifying one record.
type Prediction struct {
	Label    string         `json:"label"`
	Code     int            `json:"code"`
	BMI      float64        `json:"bmi"`
	Category model.Category `json:"category"`

	// Fallbacks lists categorical fields whose value was unknown to the model
	// and that were encoded with the tolerant fallback
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Predictor is an immutable handle over a loaded pipeline and encoder. It is
// safe for concurrent use.
type Predictor struct {
	schema   *model.Schema
	pipeline *model.Pipeline
	encoder  *model.LabelEncoder
	classes  []string
	header   io.ArtifactHeader
}

func NewPredictor(schema *model.Schema, pipeline *model.Pipeline, encoder *model.LabelEncoder) (*Predictor, error) {
	if err := pipeline.Check(); err != nil {
		return nil, err
	}
	if encoder.Size() != pipeline.Forest.NumClasses {
		return nil, fmt.Errorf("encoder has %d classes, model has %d", encoder.Size(), pipeline.Forest.NumClasses)
	}
	classes := encoder.Classes()
	if err := model.CheckCategories(classes); err != nil {
		return nil, err
	}
	return &Predictor{
		schema:   schema,
		pipeline: pipeline,
		encoder:  encoder,
		classes:  classes,
	}, nil
}

// LoadPredictor loads both artifacts; it is meant to be called once at startup.
func LoadPredictor(paths io.ArtifactPaths) (*Predictor, error) {
	schema := model.DefaultSchema()
	artifacts, err := io.LoadArtifacts(paths, schema)
	if err != nil {
		return nil, fmt.Errorf("error loading model: %w", err)
	}
	p, err := NewPredictor(schema, artifacts.Pipeline, artifacts.Encoder)
	if err != nil {
		return nil, fmt.Errorf("error loading model: %w", err)
	}
	p.header = artifacts.Header
	log.Debug().Str("RunID", p.header.RunID.String()).Time("Created", p.header.CreatedAt).Msg("Model loaded")
	return p, nil
}

func (p *Predictor) Classes() []string {
	return append([]string(nil), p.classes...)
}

func (p *Predictor) Header() io.ArtifactHeader {
	return p.header
}

// Predict classifies r. r is taken by value, the caller's record is not modified.
func (p *Predictor) Predict(r model.Record) (Prediction, error) {
	if err := p.schema.Validate(&r); err != nil {
		return Prediction{}, err
	}
	return p.predict(&r)
}

func (p *Predictor) predict(r *model.Record) (Prediction, error) {
	r.DeriveBMI()
	code := p.pipeline.PredictCode(r)
	label, err := p.encoder.Decode(code)
	if err != nil {
		return Prediction{}, err
	}
	category, _ := model.CategoryFor(label)
	prediction := Prediction{
		Label:     label,
		Code:      code,
		BMI:       r.BMI,
		Category:  category,
		Fallbacks: p.pipeline.Transform.Fallbacks(r),
	}
	if len(prediction.Fallbacks) > 0 {
		log.Warn().Strs("Fields", prediction.Fallbacks).Msg("Unknown categorical values encoded with fallback")
	}
	return prediction, nil
}

// PredictAll classifies records read from a data file. Range validation is
// skipped since training data may legitimately exceed the form ranges.
func (p *Predictor) PredictAll(records []*model.Record) ([]Prediction, error) {
	result := make([]Prediction, len(records))
	for i, r := range records {
		record := *r
		prediction, err := p.predict(&record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		result[i] = prediction
	}
	return result, nil
}
