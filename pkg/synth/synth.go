// Package synth generates labelled patient records for demos and tests. The
// label of every record is determined by its BMI band, the remaining
// attributes are drawn with a mild dependence on the category.
package synth

import (
	"math/rand"

	"obesity/pkg/io"
	"obesity/pkg/model"
)

type band struct {
	label    string
	min, max float64
}

// bands are the BMI intervals of each category, shrunk away from the
// boundaries so that every generated record is unambiguous.
var bands = []band{
	{model.InsufficientWeight, 15.0, 18.2},
	{model.NormalWeight, 18.8, 24.6},
	{model.OverweightLevelI, 25.3, 27.2},
	{model.OverweightLevelII, 27.8, 29.7},
	{model.ObesityTypeI, 30.3, 34.7},
	{model.ObesityTypeII, 35.3, 39.7},
	{model.ObesityTypeIII, 40.3, 48.0},
}

var transports = []string{"Public_Transportation", "Automobile", "Walking", "Bike", "Motorbike"}

// Generate returns n records, dealt round-robin over the seven categories.
func Generate(n int, rnd *rand.Rand) *io.Dataset {
	ds := &io.Dataset{}
	for i := 0; i < n; i++ {
		b := bands[i%len(bands)]
		severity := float64(i % len(bands))
		ds.Records = append(ds.Records, record(b, severity, rnd))
		ds.Labels = append(ds.Labels, b.label)
	}
	return ds
}

func record(b band, severity float64, rnd *rand.Rand) *model.Record {
	r := &model.Record{
		Gender: pick(rnd, "Female", "Male"),
		Age:    uniform(rnd, 16, 55),
		FCVC:   uniform(rnd, 1, 3),
		NCP:    uniform(rnd, 1, 4),
		CH2O:   uniform(rnd, 1, 3),
		TUE:    uniform(rnd, 0, 2),
		SMOKE:  weighted(rnd, 0.05, "yes", "no"),
		SCC:    weighted(rnd, 0.1, "yes", "no"),
		MTRANS: transports[rnd.Intn(len(transports))],
		CALC:   model.FrequencyOrder[rnd.Intn(3)],
	}

	// heavier categories exercise less and report more family history
	r.FAF = uniform(rnd, 0, 3-severity/3)
	r.FamilyHistory = weighted(rnd, 0.2+severity/10, "yes", "no")
	r.FAVC = weighted(rnd, 0.5+severity/15, "yes", "no")
	r.CAEC = model.FrequencyOrder[min(rnd.Intn(2)+int(severity)/3, 3)]

	if r.Gender == "Male" {
		r.Height = uniform(rnd, 1.60, 1.95)
	} else {
		r.Height = uniform(rnd, 1.50, 1.80)
	}
	r.Weight = uniform(rnd, b.min, b.max) * r.Height * r.Height
	return r
}

func uniform(rnd *rand.Rand, lo, hi float64) float64 {
	return lo + rnd.Float64()*(hi-lo)
}

func pick(rnd *rand.Rand, values ...string) string {
	return values[rnd.Intn(len(values))]
}

// weighted returns yes with probability p.
func weighted(rnd *rand.Rand, p float64, yes, no string) string {
	if rnd.Float64() < p {
		return yes
	}
	return no
}
