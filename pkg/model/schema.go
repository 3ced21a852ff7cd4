package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidRecord is returned when an inference record is outside the documented field ranges.
var ErrInvalidRecord = errors.New("invalid record")

const (
	ColGender        = "Gender"
	ColAge           = "Age"
	ColHeight        = "Height"
	ColWeight        = "Weight"
	ColFamilyHistory = "family_history"
	ColFAVC          = "FAVC"
	ColFCVC          = "FCVC"
	ColNCP           = "NCP"
	ColCAEC          = "CAEC"
	ColSMOKE         = "SMOKE"
	ColCH2O          = "CH2O"
	ColSCC           = "SCC"
	ColFAF           = "FAF"
	ColTUE           = "TUE"
	ColCALC          = "CALC"
	ColMTRANS        = "MTRANS"
	ColBMI           = "BMI"
	ColTarget        = "Obesity"
)

// FrequencyOrder is the ordered scale shared by the snacking and alcohol columns.
var FrequencyOrder = []string{"no", "Sometimes", "Frequently", "Always"}

type FieldKind int

const (
	Numeric FieldKind = iota
	Ordinal
	Nominal
	Derived
	Target
)

func (k FieldKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Ordinal:
		return "ordinal"
	case Nominal:
		return "nominal"
	case Derived:
		return "derived"
	case Target:
		return "target"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Field describes one column of the dataset.
type Field struct {
	Name string
	Kind FieldKind

	// Min and Max bound numeric values accepted at inference time
	Min, Max float64

	// Values lists the known tokens of a categorical field; for ordinal fields the order is significant
	Values []string
}

func (f Field) IsInput() bool {
	return f.Kind == Numeric || f.Kind == Ordinal || f.Kind == Nominal
}

// Schema is the ordered field list used by both the training pipeline and the inference boundary.
type Schema struct {
	Fields []Field
}

func DefaultSchema() *Schema {
	yesNo := []string{"yes", "no"}
	return &Schema{Fields: []Field{
		{Name: ColGender, Kind: Nominal, Values: []string{"Female", "Male"}},
		{Name: ColAge, Kind: Numeric, Min: 14, Max: 80},
		{Name: ColHeight, Kind: Numeric, Min: 1.40, Max: 2.20},
		{Name: ColWeight, Kind: Numeric, Min: 30, Max: 200},
		{Name: ColFamilyHistory, Kind: Nominal, Values: yesNo},
		{Name: ColFAVC, Kind: Nominal, Values: yesNo},
		{Name: ColFCVC, Kind: Numeric, Min: 1, Max: 3},
		{Name: ColNCP, Kind: Numeric, Min: 1, Max: 4},
		{Name: ColCAEC, Kind: Ordinal, Values: FrequencyOrder},
		{Name: ColSMOKE, Kind: Nominal, Values: yesNo},
		{Name: ColCH2O, Kind: Numeric, Min: 1, Max: 3},
		{Name: ColSCC, Kind: Nominal, Values: yesNo},
		{Name: ColFAF, Kind: Numeric, Min: 0, Max: 3},
		{Name: ColTUE, Kind: Numeric, Min: 0, Max: 2},
		{Name: ColCALC, Kind: Ordinal, Values: FrequencyOrder},
		{Name: ColMTRANS, Kind: Nominal, Values: []string{"Public_Transportation", "Automobile", "Walking", "Bike", "Motorbike"}},
		{Name: ColBMI, Kind: Derived},
		{Name: ColTarget, Kind: Target, Values: Labels()},
	}}
}

func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the names of the fields of the given kinds, in schema order.
func (s *Schema) Columns(kinds ...FieldKind) []string {
	var result []string
	for _, f := range s.Fields {
		for _, k := range kinds {
			if f.Kind == k {
				result = append(result, f.Name)
				break
			}
		}
	}
	return result
}

// InputFields returns the fields read from a data file, excluding derived and target columns.
func (s *Schema) InputFields() []Field {
	var result []Field
	for _, f := range s.Fields {
		if f.IsInput() {
			result = append(result, f)
		}
	}
	return result
}

// Fingerprint identifies the feature layout an artifact was trained against.
// Ranges are not part of it: they only constrain inference input.
func (s *Schema) Fingerprint() string {
	h := sha256.New()
	for _, f := range s.Fields {
		fmt.Fprintf(h, "%s|%s", f.Name, f.Kind)
		if f.Kind == Ordinal {
			fmt.Fprintf(h, "|%s", strings.Join(f.Values, ","))
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks a record against the inference ranges of the numeric fields.
// Categorical values are not checked here, unknown tokens are handled by the transform.
func (s *Schema) Validate(r *Record) error {
	for _, f := range s.Fields {
		if f.Kind != Numeric {
			continue
		}
		v, ok := r.Numeric(f.Name)
		if !ok {
			return fmt.Errorf("%w: unknown field %s", ErrInvalidRecord, f.Name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidRecord, f.Name)
		}
		if v < f.Min || v > f.Max {
			return fmt.Errorf("%w: %s=%g outside [%g, %g]", ErrInvalidRecord, f.Name, v, f.Min, f.Max)
		}
	}
	return nil
}

// Record is one patient observation.
type Record struct {
	Gender        string
	Age           float64
	Height        float64
	Weight        float64
	FamilyHistory string
	FAVC          string
	FCVC          float64
	NCP           float64
	CAEC          string
	SMOKE         string
	CH2O          float64
	SCC           string
	FAF           float64
	TUE           float64
	CALC          string
	MTRANS        string

	// BMI is derived from Height and Weight, see DeriveBMI
	BMI float64
}

// DeriveBMI returns weight / height². A zero height is treated as missing and yields NaN.
func DeriveBMI(height, weight float64) float64 {
	if height == 0 {
		return math.NaN()
	}
	return weight / (height * height)
}

func (r *Record) DeriveBMI() {
	r.BMI = DeriveBMI(r.Height, r.Weight)
}

func (r *Record) Numeric(column string) (float64, bool) {
	switch column {
	case ColAge:
		return r.Age, true
	case ColHeight:
		return r.Height, true
	case ColWeight:
		return r.Weight, true
	case ColFCVC:
		return r.FCVC, true
	case ColNCP:
		return r.NCP, true
	case ColCH2O:
		return r.CH2O, true
	case ColFAF:
		return r.FAF, true
	case ColTUE:
		return r.TUE, true
	case ColBMI:
		return r.BMI, true
	}
	return 0, false
}

func (r *Record) SetNumeric(column string, value float64) bool {
	switch column {
	case ColAge:
		r.Age = value
	case ColHeight:
		r.Height = value
	case ColWeight:
		r.Weight = value
	case ColFCVC:
		r.FCVC = value
	case ColNCP:
		r.NCP = value
	case ColCH2O:
		r.CH2O = value
	case ColFAF:
		r.FAF = value
	case ColTUE:
		r.TUE = value
	case ColBMI:
		r.BMI = value
	default:
		return false
	}
	return true
}

func (r *Record) Category(column string) (string, bool) {
	switch column {
	case ColGender:
		return r.Gender, true
	case ColFamilyHistory:
		return r.FamilyHistory, true
	case ColFAVC:
		return r.FAVC, true
	case ColCAEC:
		return r.CAEC, true
	case ColSMOKE:
		return r.SMOKE, true
	case ColSCC:
		return r.SCC, true
	case ColCALC:
		return r.CALC, true
	case ColMTRANS:
		return r.MTRANS, true
	}
	return "", false
}

func (r *Record) SetCategory(column, value string) bool {
	switch column {
	case ColGender:
		r.Gender = value
	case ColFamilyHistory:
		r.FamilyHistory = value
	case ColFAVC:
		r.FAVC = value
	case ColCAEC:
		r.CAEC = value
	case ColSMOKE:
		r.SMOKE = value
	case ColSCC:
		r.SCC = value
	case ColCALC:
		r.CALC = value
	case ColMTRANS:
		r.MTRANS = value
	default:
		return false
	}
	return true
}
