package analytics

import (
	"slices"

	"hermannm.dev/mabexplorer/dataset"
)

// SummaryCardCap is the number of top entities shown on a summary card.
const SummaryCardCap = 8

// Points are parallel (category, value) pairs for box-plot rendering.
type Points struct {
	Categories []string  `json:"categories"`
	Values     []float64 `json:"values"`
}

func (points Points) Len() int {
	return len(points.Values)
}

// PointSeries flattens target aggregates to one point per entity value, keeping categories and
// entities in the given order.
func PointSeries(aggregates []dataset.TargetAggregate) Points {
	var total int
	for _, aggregate := range aggregates {
		total += len(aggregate.Entities)
	}

	points := Points{Categories: make([]string, 0, total), Values: make([]float64, 0, total)}
	for _, aggregate := range aggregates {
		for _, entity := range aggregate.Entities {
			points.Categories = append(points.Categories, aggregate.Category)
			points.Values = append(points.Values, entity.Value)
		}
	}
	return points
}

type SummaryCard struct {
	Category    string                `json:"category"`
	Summary     dataset.Summary       `json:"summary"`
	TopEntities []dataset.EntityValue `json:"topEntities"`
	// Number of entities left off TopEntities.
	Overflow int `json:"overflow"`
}

// SummaryCards returns one card per aggregate, in the given order, each listing its
// SummaryCardCap highest-valued entities.
func SummaryCards(aggregates []dataset.TargetAggregate) []SummaryCard {
	cards := make([]SummaryCard, 0, len(aggregates))
	for _, aggregate := range aggregates {
		entities := slices.Clone(aggregate.Entities)
		slices.SortStableFunc(entities, func(entity1 dataset.EntityValue, entity2 dataset.EntityValue) int {
			switch {
			case entity1.Value > entity2.Value:
				return -1
			case entity1.Value < entity2.Value:
				return 1
			default:
				return 0
			}
		})

		card := SummaryCard{Category: aggregate.Category, Summary: aggregate.Summary}
		if len(entities) > SummaryCardCap {
			card.Overflow = len(entities) - SummaryCardCap
			entities = entities[:SummaryCardCap]
		}
		if entities == nil {
			entities = []dataset.EntityValue{}
		}
		card.TopEntities = entities

		cards = append(cards, card)
	}
	return cards
}

// TargetView is a target aggregation in both display forms.
type TargetView struct {
	Target string        `json:"target"`
	Points Points        `json:"points"`
	Cards  []SummaryCard `json:"cards"`
}

func NewTargetView(aggregation dataset.TargetAggregation) TargetView {
	return TargetView{
		Target: aggregation.Target,
		Points: PointSeries(aggregation.Aggregates),
		Cards:  SummaryCards(aggregation.Aggregates),
	}
}

// Summarize computes the summary statistics of a category's entity values. Mean is rounded to 2
// decimals. An empty input gives a zero summary.
func Summarize(values []float64) dataset.Summary {
	if len(values) == 0 {
		return dataset.Summary{}
	}

	summary := dataset.Summary{Min: values[0], Max: values[0], Count: len(values)}
	var sum float64
	for _, value := range values {
		summary.Min = min(summary.Min, value)
		summary.Max = max(summary.Max, value)
		sum += value
	}
	summary.Mean = Round2(sum / float64(len(values)))
	return summary
}
