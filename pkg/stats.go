package pkg

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"obesity/pkg/io"
	"obesity/pkg/model"
)

// SummaryColumns are the numeric columns described by Summarize, BMI included.
var SummaryColumns = []string{
	model.ColAge, model.ColHeight, model.ColWeight, model.ColBMI,
	model.ColFCVC, model.ColNCP, model.ColCH2O, model.ColFAF, model.ColTUE,
}

type CategoryCount struct {
	Label       string  `json:"label"`
	DisplayName string  `json:"display_name"`
	Count       int     `json:"count"`
	Share       float64 `json:"share"`
}

// Distribution describes one numeric column. NaN values are not counted.
// Quartiles use gonum's LinInterp estimator.
type Distribution struct {
	Column     string             `json:"column"`
	Count      int                `json:"count"`
	Mean       float64            `json:"mean"`
	Std        float64            `json:"std"`
	Min        float64            `json:"min"`
	Q1         float64            `json:"q1"`
	Median     float64            `json:"median"`
	Q3         float64            `json:"q3"`
	Max        float64            `json:"max"`
	ByCategory map[string]float64 `json:"mean_by_category"`

	// Values holds the sorted observations for chart rendering
	Values []float64 `json:"-"`
}

type Crosstab struct {
	Column string                    `json:"column"`
	Counts map[string]map[string]int `json:"counts"`
}

type DatasetSummary struct {
	Records     int             `json:"records"`
	Categories  []CategoryCount `json:"categories"`
	Numeric     []Distribution  `json:"numeric"`
	Categorical []Crosstab      `json:"categorical"`

	// Correlation[i][j] is the Pearson correlation of CorrelationColumns i and j
	CorrelationColumns []string    `json:"correlation_columns"`
	Correlation        [][]float64 `json:"correlation"`
}

// Summarize computes the exploratory statistics of a labelled dataset. BMI is
// derived first if the records do not carry it yet.
func Summarize(ds *io.Dataset, schema *model.Schema) *DatasetSummary {
	ds.DeriveBMI()
	s := &DatasetSummary{Records: ds.Size(), CorrelationColumns: SummaryColumns}
	s.Categories = countCategories(ds.Labels)

	columns := make([][]float64, len(SummaryColumns))
	for j, column := range SummaryColumns {
		columns[j] = make([]float64, ds.Size())
		for i, r := range ds.Records {
			columns[j][i], _ = r.Numeric(column)
		}
		s.Numeric = append(s.Numeric, describe(column, columns[j], ds.Labels))
	}

	for _, column := range schema.Columns(model.Nominal, model.Ordinal) {
		crosstab := Crosstab{Column: column, Counts: map[string]map[string]int{}}
		for i, r := range ds.Records {
			value, _ := r.Category(column)
			if crosstab.Counts[value] == nil {
				crosstab.Counts[value] = map[string]int{}
			}
			crosstab.Counts[value][labelAt(ds.Labels, i)]++
		}
		s.Categorical = append(s.Categorical, crosstab)
	}

	s.Correlation = make([][]float64, len(columns))
	for i := range columns {
		s.Correlation[i] = make([]float64, len(columns))
		for j := range columns {
			if i == j {
				s.Correlation[i][j] = 1
				continue
			}
			if j < i {
				s.Correlation[i][j] = s.Correlation[j][i]
				continue
			}
			s.Correlation[i][j] = pearson(columns[i], columns[j])
		}
	}
	return s
}

// countCategories lists every known category in severity order, followed by any other label found.
func countCategories(labels []string) []CategoryCount {
	counts := map[string]int{}
	for _, l := range labels {
		counts[l]++
	}
	var result []CategoryCount
	for _, c := range model.Categories() {
		result = append(result, CategoryCount{Label: c.Label, DisplayName: c.DisplayName, Count: counts[c.Label]})
		delete(counts, c.Label)
	}
	var others []string
	for l := range counts {
		others = append(others, l)
	}
	sort.Strings(others)
	for _, l := range others {
		result = append(result, CategoryCount{Label: l, DisplayName: l, Count: counts[l]})
	}
	for i := range result {
		if len(labels) > 0 {
			result[i].Share = float64(result[i].Count) / float64(len(labels))
		}
	}
	return result
}

func describe(column string, values []float64, labels []string) Distribution {
	d := Distribution{Column: column, ByCategory: map[string]float64{}}
	sums := map[string]float64{}
	counts := map[string]int{}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		d.Values = append(d.Values, v)
		label := labelAt(labels, i)
		sums[label] += v
		counts[label]++
	}
	for label, total := range sums {
		d.ByCategory[label] = total / float64(counts[label])
	}
	d.Count = len(d.Values)
	if d.Count == 0 {
		return d
	}
	sort.Float64s(d.Values)
	d.Mean, d.Std = stat.MeanStdDev(d.Values, nil)
	if d.Count == 1 {
		d.Std = 0
	}
	d.Min = d.Values[0]
	d.Max = d.Values[d.Count-1]
	d.Q1 = stat.Quantile(0.25, stat.LinInterp, d.Values, nil)
	d.Median = stat.Quantile(0.5, stat.LinInterp, d.Values, nil)
	d.Q3 = stat.Quantile(0.75, stat.LinInterp, d.Values, nil)
	return d
}

// pearson correlates x and y over the positions where both are defined. It
// returns 0 when fewer than two pairs remain or either side is constant.
func pearson(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return 0
	}
	if r := stat.Correlation(xs, ys, nil); !math.IsNaN(r) {
		return r
	}
	return 0
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return ""
}
