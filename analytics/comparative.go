package analytics

import (
	"hermannm.dev/mabexplorer/dataset"
)

// ComparativeBuilder collects per-category arm figures from a backend into a comparative result
// with parallel risk estimates. The zero value is ready to use.
type ComparativeBuilder struct {
	categories            []string
	treatmentProportions  []float64
	comparatorProportions []float64
	risks                 []dataset.RiskEstimate
}

// AddCounts adds a category from per-arm event counts and arm sizes, with a Katz relative risk.
func (builder *ComparativeBuilder) AddCounts(
	category string,
	treatmentEvents float64,
	treatmentN float64,
	comparatorEvents float64,
	comparatorN float64,
) {
	builder.add(
		category,
		Proportion(treatmentEvents, treatmentN),
		Proportion(comparatorEvents, comparatorN),
		RelativeRisk(treatmentEvents, treatmentN, comparatorEvents, comparatorN),
	)
}

// AddProportions adds a category from reported per-arm percentages.
func (builder *ComparativeBuilder) AddProportions(
	category string,
	treatmentPercent float64,
	comparatorPercent float64,
) {
	builder.add(
		category,
		Round2(treatmentPercent),
		Round2(comparatorPercent),
		ProportionRatio(treatmentPercent, comparatorPercent),
	)
}

func (builder *ComparativeBuilder) add(
	category string,
	treatmentProportion float64,
	comparatorProportion float64,
	risk dataset.RiskEstimate,
) {
	builder.categories = append(builder.categories, category)
	builder.treatmentProportions = append(builder.treatmentProportions, treatmentProportion)
	builder.comparatorProportions = append(builder.comparatorProportions, comparatorProportion)
	builder.risks = append(builder.risks, risk)
}

func (builder *ComparativeBuilder) Result() dataset.ComparativeResult {
	categories := builder.categories
	if categories == nil {
		categories = []string{}
	}
	treatment := builder.treatmentProportions
	if treatment == nil {
		treatment = []float64{}
	}
	comparator := builder.comparatorProportions
	if comparator == nil {
		comparator = []float64{}
	}

	return dataset.ComparativeResult{
		Categories:    categories,
		Treatment:     dataset.ArmSeries{Categories: categories, Proportions: treatment},
		Comparator:    dataset.ArmSeries{Categories: categories, Proportions: comparator},
		RelativeRisks: builder.risks,
	}
}
