package analytics

import (
	"cmp"
	"slices"

	"hermannm.dev/mabexplorer/dataset"
)

// TargetValue is one antibody's value in one category, as computed by a backend.
type TargetValue struct {
	Category string
	EntityID string
	Value    float64
}

// AggregateTargetValues groups values by category and summarizes each group. The topN
// categories with the highest mean are returned, highest first; ties keep first-seen order.
// Entities keep their input order. topN <= 0 returns all categories.
func AggregateTargetValues(values []TargetValue, topN int) []dataset.TargetAggregate {
	var aggregates []dataset.TargetAggregate
	indexByCategory := make(map[string]int)

	for _, value := range values {
		index, ok := indexByCategory[value.Category]
		if !ok {
			index = len(aggregates)
			indexByCategory[value.Category] = index
			aggregates = append(aggregates, dataset.TargetAggregate{Category: value.Category})
		}
		aggregates[index].Entities = append(
			aggregates[index].Entities,
			dataset.EntityValue{EntityID: value.EntityID, Value: Round2(value.Value)},
		)
	}

	for i := range aggregates {
		entityValues := make([]float64, len(aggregates[i].Entities))
		for j, entity := range aggregates[i].Entities {
			entityValues[j] = entity.Value
		}
		aggregates[i].Summary = Summarize(entityValues)
	}

	slices.SortStableFunc(aggregates, func(a dataset.TargetAggregate, b dataset.TargetAggregate) int {
		return cmp.Compare(b.Summary.Mean, a.Summary.Mean)
	})

	if topN > 0 && len(aggregates) > topN {
		aggregates = aggregates[:topN]
	}
	if aggregates == nil {
		aggregates = []dataset.TargetAggregate{}
	}
	return aggregates
}

// CategoryValue is a proportion (percent) for one category.
type CategoryValue struct {
	Category string
	Value    float64
}

// CategoryValues pairs each category of the summary with its proportion.
func CategoryValues(summary dataset.AdverseEventSummary) []CategoryValue {
	values := make([]CategoryValue, 0, len(summary.Categories))
	for i, category := range summary.Categories {
		if i < len(summary.Proportions) {
			values = append(values, CategoryValue{Category: category, Value: summary.Proportions[i]})
		}
	}
	return values
}

// MergeCrossDataset aligns clinical-trial and label proportions on category. Categories are
// ranked by the larger of their two values, and the topN are kept. A category missing from one
// source has no value for it. topN <= 0 keeps all categories.
func MergeCrossDataset(
	clinicalTrials []CategoryValue,
	label []CategoryValue,
	topN int,
) dataset.CrossDatasetResult {
	type merged struct {
		category       string
		clinicalTrials *float64
		label          *float64
	}

	var rows []*merged
	byCategory := make(map[string]*merged)
	row := func(category string) *merged {
		if existing, ok := byCategory[category]; ok {
			return existing
		}
		created := &merged{category: category}
		byCategory[category] = created
		rows = append(rows, created)
		return created
	}

	for _, value := range clinicalTrials {
		rounded := Round2(value.Value)
		row(value.Category).clinicalTrials = &rounded
	}
	for _, value := range label {
		rounded := Round2(value.Value)
		row(value.Category).label = &rounded
	}

	rank := func(row *merged) float64 {
		var highest float64
		if row.clinicalTrials != nil {
			highest = *row.clinicalTrials
		}
		if row.label != nil && *row.label > highest {
			highest = *row.label
		}
		return highest
	}
	slices.SortStableFunc(rows, func(a *merged, b *merged) int {
		return cmp.Compare(rank(b), rank(a))
	})

	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}

	result := dataset.CrossDatasetResult{
		Categories:     make([]string, len(rows)),
		ClinicalTrials: make([]*float64, len(rows)),
		Label:          make([]*float64, len(rows)),
	}
	for i, row := range rows {
		result.Categories[i] = row.category
		result.ClinicalTrials[i] = row.clinicalTrials
		result.Label[i] = row.label
	}
	return result
}
