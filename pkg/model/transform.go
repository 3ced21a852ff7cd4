package model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// UnknownOrdinal is the rank given to values outside an ordinal scale.
const UnknownOrdinal = -1.0

// StandardScaler standardizes numeric columns with statistics computed at fit time.
// NaN values are ignored by Fit and propagated by Transform.
type StandardScaler struct {
	Columns []string
	Mean    []float64
	Scale   []float64
}

func FitStandardScaler(columns []string, records []*Record) (*StandardScaler, error) {
	s := &StandardScaler{
		Columns: append([]string(nil), columns...),
		Mean:    make([]float64, len(columns)),
		Scale:   make([]float64, len(columns)),
	}
	values := make([]float64, 0, len(records))
	for j, col := range columns {
		values = values[:0]
		for _, r := range records {
			v, ok := r.Numeric(col)
			if !ok {
				return nil, fmt.Errorf("column %s is not numeric", col)
			}
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		s.Mean[j], s.Scale[j] = 0, 1
		if len(values) == 0 {
			continue
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		s.Mean[j] = mean
		if std > 0 {
			s.Scale[j] = std
		}
	}
	return s, nil
}

func (s *StandardScaler) Width() int {
	return len(s.Columns)
}

// AppendTo appends the scaled values of r to dst.
func (s *StandardScaler) AppendTo(dst []float64, r *Record) []float64 {
	for j, col := range s.Columns {
		v, _ := r.Numeric(col)
		dst = append(dst, (v-s.Mean[j])/s.Scale[j])
	}
	return dst
}

// OrdinalEncoder maps each column to its rank in a fixed category order.
type OrdinalEncoder struct {
	Columns    []string
	Categories [][]string
}

func NewOrdinalEncoder(columns []string, categories [][]string) *OrdinalEncoder {
	return &OrdinalEncoder{Columns: columns, Categories: categories}
}

func (o *OrdinalEncoder) Width() int {
	return len(o.Columns)
}

func (o *OrdinalEncoder) rank(j int, value string) float64 {
	for i, c := range o.Categories[j] {
		if c == value {
			return float64(i)
		}
	}
	return UnknownOrdinal
}

func (o *OrdinalEncoder) AppendTo(dst []float64, r *Record) []float64 {
	for j, col := range o.Columns {
		v, _ := r.Category(col)
		dst = append(dst, o.rank(j, v))
	}
	return dst
}

// OneHotEncoder expands nominal columns over their sorted fitted vocabulary.
// The first category of each column is dropped as reference; values not seen
// during fit encode as all zeros.
type OneHotEncoder struct {
	Columns    []string
	Categories [][]string
}

func FitOneHotEncoder(columns []string, records []*Record) (*OneHotEncoder, error) {
	o := &OneHotEncoder{
		Columns:    append([]string(nil), columns...),
		Categories: make([][]string, len(columns)),
	}
	for j, col := range columns {
		seen := map[string]struct{}{}
		for _, r := range records {
			v, ok := r.Category(col)
			if !ok {
				return nil, fmt.Errorf("column %s is not categorical", col)
			}
			seen[v] = struct{}{}
		}
		vocabulary := make([]string, 0, len(seen))
		for v := range seen {
			vocabulary = append(vocabulary, v)
		}
		sort.Strings(vocabulary)
		o.Categories[j] = vocabulary
	}
	return o, nil
}

func (o *OneHotEncoder) Width() int {
	width := 0
	for _, c := range o.Categories {
		if len(c) > 0 {
			width += len(c) - 1
		}
	}
	return width
}

func (o *OneHotEncoder) AppendTo(dst []float64, r *Record) []float64 {
	for j, col := range o.Columns {
		v, _ := r.Category(col)
		for _, c := range o.kept(j) {
			if c == v {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		}
	}
	return dst
}

func (o *OneHotEncoder) kept(j int) []string {
	if len(o.Categories[j]) == 0 {
		return nil
	}
	return o.Categories[j][1:]
}

func (o *OneHotEncoder) known(j int, value string) bool {
	i := sort.SearchStrings(o.Categories[j], value)
	return i < len(o.Categories[j]) && o.Categories[j][i] == value
}

// ColumnTransformer builds the composite feature transform. It holds no fitted state.
type ColumnTransformer struct {
	NumericColumns []string
	OrdinalColumns []string
	OrdinalOrders  [][]string
	NominalColumns []string
}

func NewColumnTransformer(schema *Schema) *ColumnTransformer {
	t := &ColumnTransformer{
		NumericColumns: schema.Columns(Numeric, Derived),
		NominalColumns: schema.Columns(Nominal),
	}
	for _, f := range schema.Fields {
		if f.Kind == Ordinal {
			t.OrdinalColumns = append(t.OrdinalColumns, f.Name)
			t.OrdinalOrders = append(t.OrdinalOrders, append([]string(nil), f.Values...))
		}
	}
	return t
}

// Fit computes the transform parameters from records. Every call returns a new FittedTransform.
func (t *ColumnTransformer) Fit(records []*Record) (*FittedTransform, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot fit transform on empty data")
	}
	scaler, err := FitStandardScaler(t.NumericColumns, records)
	if err != nil {
		return nil, fmt.Errorf("error fitting numeric block: %w", err)
	}
	oneHot, err := FitOneHotEncoder(t.NominalColumns, records)
	if err != nil {
		return nil, fmt.Errorf("error fitting nominal block: %w", err)
	}
	for _, col := range t.OrdinalColumns {
		if _, ok := records[0].Category(col); !ok {
			return nil, fmt.Errorf("error fitting ordinal block: column %s is not categorical", col)
		}
	}
	return &FittedTransform{
		Scaler:  scaler,
		Ordinal: NewOrdinalEncoder(append([]string(nil), t.OrdinalColumns...), t.OrdinalOrders),
		OneHot:  oneHot,
	}, nil
}

// FittedTransform applies the numeric, ordinal and nominal blocks in that order.
// It is never modified after Fit and can be shared between goroutines.
type FittedTransform struct {
	Scaler  *StandardScaler
	Ordinal *OrdinalEncoder
	OneHot  *OneHotEncoder
}

func (f *FittedTransform) Width() int {
	return f.Scaler.Width() + f.Ordinal.Width() + f.OneHot.Width()
}

func (f *FittedTransform) Apply(r *Record) []float64 {
	row := make([]float64, 0, f.Width())
	row = f.Scaler.AppendTo(row, r)
	row = f.Ordinal.AppendTo(row, r)
	row = f.OneHot.AppendTo(row, r)
	return row
}

func (f *FittedTransform) ApplyAll(records []*Record) [][]float64 {
	result := make([][]float64, len(records))
	for i, r := range records {
		result[i] = f.Apply(r)
	}
	return result
}

// FeatureNames returns the output column names, aligned with Apply.
func (f *FittedTransform) FeatureNames() []string {
	names := make([]string, 0, f.Width())
	names = append(names, f.Scaler.Columns...)
	names = append(names, f.Ordinal.Columns...)
	for j, col := range f.OneHot.Columns {
		for _, c := range f.OneHot.kept(j) {
			names = append(names, col+"_"+c)
		}
	}
	return names
}

// Fallbacks lists the categorical columns of r whose value was not known to
// the transform and therefore got the sentinel or all-zero encoding.
func (f *FittedTransform) Fallbacks(r *Record) []string {
	var result []string
	for j, col := range f.Ordinal.Columns {
		v, _ := r.Category(col)
		if f.Ordinal.rank(j, v) == UnknownOrdinal {
			result = append(result, col)
		}
	}
	for j, col := range f.OneHot.Columns {
		v, _ := r.Category(col)
		if !f.OneHot.known(j, v) {
			result = append(result, col)
		}
	}
	return result
}
