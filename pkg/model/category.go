package model

import "fmt"

const (
	InsufficientWeight = "Insufficient_Weight"
	NormalWeight       = "Normal_Weight"
	OverweightLevelI   = "Overweight_Level_I"
	OverweightLevelII  = "Overweight_Level_II"
	ObesityTypeI       = "Obesity_Type_I"
	ObesityTypeII      = "Obesity_Type_II"
	ObesityTypeIII     = "Obesity_Type_III"
)

// Category is the presentation metadata of one target label.
type Category struct {
	Label          string `json:"label"`
	Severity       int    `json:"severity"`
	DisplayName    string `json:"display_name"`
	Color          string `json:"color"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// categories is ordered by severity.
var categories = [...]Category{
	{
		Label:          InsufficientWeight,
		DisplayName:    "Insufficient Weight",
		Color:          "#3498db",
		Description:    "The patient's weight is below the healthy range for their height.",
		Recommendation: "A nutritional assessment is recommended to identify possible deficiencies and plan an adequate diet.",
	},
	{
		Label:          NormalWeight,
		DisplayName:    "Normal Weight",
		Color:          "#27ae60",
		Description:    "The patient is within the healthy weight range.",
		Recommendation: "Keep healthy eating habits and regular physical activity.",
	},
	{
		Label:          OverweightLevelI,
		DisplayName:    "Overweight Level I",
		Color:          "#f39c12",
		Description:    "The patient is mildly overweight, with a moderate risk of complications.",
		Recommendation: "Dietary re-education and more physical activity are recommended.",
	},
	{
		Label:          OverweightLevelII,
		DisplayName:    "Overweight Level II",
		Color:          "#e67e22",
		Description:    "The patient is significantly overweight, with an elevated risk.",
		Recommendation: "Nutritional and medical follow-up is recommended. Consider a structured weight-loss program.",
	},
	{
		Label:          ObesityTypeI,
		DisplayName:    "Obesity Type I",
		Color:          "#e74c3c",
		Description:    "Grade I obesity. Increased risk of cardiovascular and metabolic disease.",
		Recommendation: "Medical and nutritional intervention is recommended, including an assessment of comorbidities.",
	},
	{
		Label:          ObesityTypeII,
		DisplayName:    "Obesity Type II",
		Color:          "#c0392b",
		Description:    "Grade II (severe) obesity. High risk of health complications.",
		Recommendation: "Urgent multidisciplinary treatment. Consider an evaluation for surgical intervention.",
	},
	{
		Label:          ObesityTypeIII,
		DisplayName:    "Obesity Type III",
		Color:          "#8e44ad",
		Description:    "Grade III (morbid) obesity. Very high health risk.",
		Recommendation: "Urgent referral to a multidisciplinary team. Priority evaluation for bariatric surgery.",
	},
}

var categoryIndex = map[string]int{}

func init() {
	if err := indexCategories(); err != nil {
		panic(err)
	}
}

func indexCategories() error {
	for i := range categories {
		c := &categories[i]
		c.Severity = i
		if c.Label == "" || c.DisplayName == "" || c.Color == "" || c.Description == "" || c.Recommendation == "" {
			return fmt.Errorf("category %d (%q) is incomplete", i, c.Label)
		}
		if _, ok := categoryIndex[c.Label]; ok {
			return fmt.Errorf("category %s is defined twice", c.Label)
		}
		categoryIndex[c.Label] = i
	}
	return nil
}

// Labels returns the target labels in severity order.
func Labels() []string {
	result := make([]string, len(categories))
	for i, c := range categories {
		result[i] = c.Label
	}
	return result
}

func Categories() []Category {
	result := make([]Category, len(categories))
	copy(result, categories[:])
	return result
}

func CategoryFor(label string) (Category, bool) {
	i, ok := categoryIndex[label]
	if !ok {
		return Category{}, false
	}
	return categories[i], true
}

// CheckCategories verifies that every label has presentation metadata.
func CheckCategories(labels []string) error {
	for _, label := range labels {
		if _, ok := categoryIndex[label]; !ok {
			return fmt.Errorf("%w: no category metadata for %q", ErrUnknownLabel, label)
		}
	}
	return nil
}
