package model

import "fmt"

// Pipeline bundles the fitted feature transform with the classifier trained on its output.
type Pipeline struct {
	Transform *FittedTransform
	Forest    *RandomForest
}

func (p *Pipeline) Check() error {
	if p.Transform == nil || p.Forest == nil {
		return fmt.Errorf("pipeline is incomplete")
	}
	if w := p.Transform.Width(); w != p.Forest.NumFeatures {
		return fmt.Errorf("transform produces %d features, classifier expects %d", w, p.Forest.NumFeatures)
	}
	return nil
}

// PredictCode returns the class code for r. r must already carry its derived BMI.
func (p *Pipeline) PredictCode(r *Record) int {
	return p.Forest.PredictOne(p.Transform.Apply(r))
}

func (p *Pipeline) PredictCodes(records []*Record) []int {
	return p.Forest.Predict(p.Transform.ApplyAll(records))
}
