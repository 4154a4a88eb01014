package analytics_test

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/mabexplorer/analytics"
	"hermannm.dev/mabexplorer/dataset"
)

func distributionOfSize(size int) dataset.Distribution {
	distribution := dataset.Distribution{}
	for i := 0; i < size; i++ {
		distribution.Labels = append(distribution.Labels, fmt.Sprintf("category-%d", i+1))
		distribution.Values = append(distribution.Values, int64(100-i))
	}
	return distribution
}

func TestConsolidateKeepsSmallDistributions(t *testing.T) {
	for _, size := range []int{0, 1, 9, 10} {
		distribution := distributionOfSize(size)
		consolidated := analytics.Consolidate(distribution, analytics.DefaultMaxSlices)
		assert.Equal(t, distribution.Len(), consolidated.Len(), "size %d", size)
		for i := 0; i < size; i++ {
			assert.Equal(t, distribution.Labels[i], consolidated.Labels[i])
			assert.Equal(t, distribution.Values[i], consolidated.Values[i])
		}
	}
}

func TestConsolidateSumsTailIntoOther(t *testing.T) {
	for _, size := range []int{11, 12, 40} {
		distribution := distributionOfSize(size)
		consolidated := analytics.Consolidate(distribution, analytics.DefaultMaxSlices)

		require.Equal(t, 10, consolidated.Len())
		assert.Equal(t, distribution.Labels[:9], consolidated.Labels[:9])
		assert.Equal(t, distribution.Values[:9], consolidated.Values[:9])
		assert.Equal(t, analytics.OtherLabel, consolidated.Labels[9])

		var tail int64
		for _, value := range distribution.Values[9:] {
			tail += value
		}
		assert.Equal(t, tail, consolidated.Values[9])
	}
}

func TestConsolidateDoesNotModifyInput(t *testing.T) {
	distribution := distributionOfSize(15)
	labels := append([]string(nil), distribution.Labels...)

	consolidated := analytics.Consolidate(distribution, 5)
	consolidated.Labels[0] = "changed"

	assert.Equal(t, labels, distribution.Labels)
	assert.Equal(t, 5, consolidated.Len())
}

func TestConsolidateDefaultsAndTruncation(t *testing.T) {
	consolidated := analytics.Consolidate(distributionOfSize(20), 0)
	assert.Equal(t, analytics.DefaultMaxSlices, consolidated.Len())

	uneven := dataset.Distribution{Labels: []string{"a", "b", "c"}, Values: []int64{3, 2}}
	consolidated = analytics.Consolidate(uneven, 10)
	assert.Equal(t, []string{"a", "b"}, consolidated.Labels)
	assert.Equal(t, []int64{3, 2}, consolidated.Values)
}

func float(value float64) *float64 {
	return &value
}

func TestClassifyRisk(t *testing.T) {
	testCases := []struct {
		value    float64
		lower    *float64
		upper    *float64
		expected analytics.Significance
	}{
		{2.1, float(1.3), float(3.0), analytics.SignificanceElevated},
		{0.4, float(0.1), float(0.9), analytics.SignificanceReduced},
		{1.05, float(0.9), float(1.2), analytics.SignificanceNone},
		{2.1, nil, nil, analytics.SignificanceNone},
		{0.5, float(0.2), float(1.4), analytics.SignificanceNone},
		{1, float(1), float(1), analytics.SignificanceNone},
	}

	for _, testCase := range testCases {
		t.Run(fmt.Sprintf("%v [%v]", testCase.value, testCase.expected), func(t *testing.T) {
			actual := analytics.ClassifyRisk(testCase.value, testCase.lower, testCase.upper)
			assert.Equal(t, testCase.expected, actual)
		})
	}
}

func TestRankRisks(t *testing.T) {
	comparative := dataset.ComparativeResult{
		Categories: []string{"Skin", "Blood", "Liver", "Nerves", "Heart", "Eyes"},
		RelativeRisks: []dataset.RiskEstimate{
			{Value: float(1.2), CILower: float(0.8), CIUpper: float(1.7)},
			{},
			{Value: float(2.1), CILower: float(1.3), CIUpper: float(3.0)},
			{Value: float(0.4), CILower: float(0.1), CIUpper: float(0.9)},
			{Value: float(1.2)},
			{Value: float(math.NaN())},
		},
	}

	ranked := analytics.RankRisks(comparative)

	require.Len(t, ranked, 4)
	assert.Equal(t, "Liver", ranked[0].Category)
	assert.Equal(t, analytics.SignificanceElevated, ranked[0].Significance)
	// Ties keep input order.
	assert.Equal(t, "Skin", ranked[1].Category)
	assert.Equal(t, "Heart", ranked[2].Category)
	assert.Nil(t, ranked[2].CILower)
	assert.Equal(t, "Nerves", ranked[3].Category)
	assert.Equal(t, analytics.SignificanceReduced, ranked[3].Significance)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].RiskValue, ranked[i].RiskValue)
	}
}

func TestRankRisksWithoutRisks(t *testing.T) {
	ranked := analytics.RankRisks(dataset.ComparativeResult{Categories: []string{"Skin", "Blood"}})
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestRiskEntryJSON(t *testing.T) {
	entry := analytics.RiskEntry{
		Category:     "Skin",
		RiskValue:    2,
		Significance: analytics.SignificanceElevated,
	}
	bytes, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"category":"Skin","riskValue":2,"ciLower":null,"ciUpper":null,"significance":"elevated"}`,
		string(bytes),
	)
}

func TestRelativeRisk(t *testing.T) {
	estimate := analytics.RelativeRisk(20, 100, 10, 100)
	require.NotNil(t, estimate.Value)
	assert.InDelta(t, 2.0, *estimate.Value, 1e-9)
	// SE = sqrt(1/20 - 1/100 + 1/10 - 1/100) = sqrt(0.13)
	se := math.Sqrt(0.13)
	assert.InDelta(t, math.Exp(math.Log(2)-1.959964*se), *estimate.CILower, 1e-6)
	assert.InDelta(t, math.Exp(math.Log(2)+1.959964*se), *estimate.CIUpper, 1e-6)
	// CI is roughly [0.99, 4.05], which includes 1
	assert.Equal(
		t,
		analytics.SignificanceNone,
		analytics.ClassifyRisk(*estimate.Value, estimate.CILower, estimate.CIUpper),
	)

	estimate = analytics.RelativeRisk(40, 100, 10, 100)
	require.NotNil(t, estimate.Value)
	assert.InDelta(t, 4.0, *estimate.Value, 1e-9)
	// SE = sqrt(1/40 - 1/100 + 1/10 - 1/100) = sqrt(0.105)
	se = math.Sqrt(0.105)
	assert.InDelta(t, math.Exp(math.Log(4)-1.959964*se), *estimate.CILower, 1e-6)
	assert.Greater(t, *estimate.CILower, 1.0)
	assert.Equal(
		t,
		analytics.SignificanceElevated,
		analytics.ClassifyRisk(*estimate.Value, estimate.CILower, estimate.CIUpper),
	)

	for _, counts := range [][4]float64{{0, 100, 10, 100}, {20, 100, 0, 100}, {20, 0, 10, 100}} {
		estimate := analytics.RelativeRisk(counts[0], counts[1], counts[2], counts[3])
		assert.Nil(t, estimate.Value)
		assert.Nil(t, estimate.CILower)
		assert.Nil(t, estimate.CIUpper)
	}
}

func TestProportion(t *testing.T) {
	assert.Equal(t, 33.33, analytics.Proportion(1, 3))
	assert.Equal(t, 0.0, analytics.Proportion(5, 0))
}

var aggregates = []dataset.TargetAggregate{
	{
		Category: "Skin",
		Entities: []dataset.EntityValue{
			{EntityID: "a", Value: 1}, {EntityID: "b", Value: 5}, {EntityID: "c", Value: 3},
		},
		Summary: dataset.Summary{Min: 1, Max: 5, Mean: 3, Count: 3},
	},
	{Category: "Empty"},
	{
		Category: "Blood",
		Entities: []dataset.EntityValue{
			{EntityID: "a", Value: 1}, {EntityID: "b", Value: 2}, {EntityID: "c", Value: 3},
			{EntityID: "d", Value: 4}, {EntityID: "e", Value: 5}, {EntityID: "f", Value: 6},
			{EntityID: "g", Value: 7}, {EntityID: "h", Value: 8}, {EntityID: "i", Value: 9},
			{EntityID: "j", Value: 9},
		},
	},
}

func TestPointSeries(t *testing.T) {
	points := analytics.PointSeries(aggregates)

	require.Equal(t, 13, points.Len())
	assert.Equal(t, []string{"Skin", "Skin", "Skin"}, points.Categories[:3])
	assert.Equal(t, []float64{1, 5, 3}, points.Values[:3])
	assert.Equal(t, "Blood", points.Categories[3])
	assert.Equal(t, float64(1), points.Values[3])

	assert.Zero(t, analytics.PointSeries(nil).Len())
}

func TestSummaryCards(t *testing.T) {
	cards := analytics.SummaryCards(aggregates)

	require.Len(t, cards, 3)
	assert.Equal(t, "Skin", cards[0].Category)
	assert.Equal(t, aggregates[0].Summary, cards[0].Summary)
	assert.Equal(t, []string{"b", "c", "a"}, entityIDs(cards[0].TopEntities))
	assert.Zero(t, cards[0].Overflow)

	assert.Equal(t, "Empty", cards[1].Category)
	assert.Empty(t, cards[1].TopEntities)

	assert.Len(t, cards[2].TopEntities, analytics.SummaryCardCap)
	assert.Equal(t, 2, cards[2].Overflow)
	assert.Equal(t, "i", cards[2].TopEntities[0].EntityID)
	assert.Equal(t, "j", cards[2].TopEntities[1].EntityID)

	// Input order is untouched.
	assert.Equal(t, "a", aggregates[0].Entities[0].EntityID)
}

func entityIDs(entities []dataset.EntityValue) []string {
	ids := make([]string, 0, len(entities))
	for _, entity := range entities {
		ids = append(ids, entity.EntityID)
	}
	return ids
}

func TestSummarize(t *testing.T) {
	summary := analytics.Summarize([]float64{3, 1, 2.5})
	assert.Equal(t, dataset.Summary{Min: 1, Max: 3, Mean: 2.17, Count: 3}, summary)
	assert.Equal(t, dataset.Summary{}, analytics.Summarize(nil))
}

func TestAggregateTargetValues(t *testing.T) {
	aggregates := analytics.AggregateTargetValues([]analytics.TargetValue{
		{Category: "Skin", EntityID: "Nivolumab", Value: 10},
		{Category: "Blood", EntityID: "Nivolumab", Value: 30},
		{Category: "Skin", EntityID: "Pembrolizumab", Value: 20},
		{Category: "Liver", EntityID: "Pembrolizumab", Value: 1},
	}, 2)

	require.Len(t, aggregates, 2)
	assert.Equal(t, "Blood", aggregates[0].Category)
	assert.Equal(t, "Skin", aggregates[1].Category)
	assert.Equal(t, dataset.Summary{Min: 10, Max: 20, Mean: 15, Count: 2}, aggregates[1].Summary)
	assert.Equal(t, "Nivolumab", aggregates[1].Entities[0].EntityID)

	assert.NotNil(t, analytics.AggregateTargetValues(nil, 15))
}

func TestMergeCrossDataset(t *testing.T) {
	result := analytics.MergeCrossDataset(
		[]analytics.CategoryValue{{Category: "Skin", Value: 12.345}, {Category: "Blood", Value: 2}},
		[]analytics.CategoryValue{{Category: "Blood", Value: 40}, {Category: "Eyes", Value: 1}},
		2,
	)

	assert.Equal(t, []string{"Blood", "Skin"}, result.Categories)
	require.Len(t, result.ClinicalTrials, 2)
	assert.Equal(t, 2.0, *result.ClinicalTrials[0])
	assert.Equal(t, 40.0, *result.Label[0])
	assert.Equal(t, 12.35, *result.ClinicalTrials[1])
	assert.Nil(t, result.Label[1])
}

func TestProportionRatio(t *testing.T) {
	estimate := analytics.ProportionRatio(30, 10)
	require.NotNil(t, estimate.Value)
	assert.Equal(t, 3.0, *estimate.Value)
	assert.Nil(t, estimate.CILower)
	assert.Nil(t, estimate.CIUpper)

	assert.Nil(t, analytics.ProportionRatio(30, 0).Value)
}

func TestComparativeBuilder(t *testing.T) {
	var builder analytics.ComparativeBuilder
	builder.AddCounts("Skin", 20, 100, 10, 100)
	builder.AddProportions("Blood", 12.345, 0)

	result := builder.Result()
	assert.Equal(t, []string{"Skin", "Blood"}, result.Categories)
	assert.Equal(t, []float64{20, 12.35}, result.Treatment.Proportions)
	assert.Equal(t, []float64{10, 0}, result.Comparator.Proportions)
	require.Len(t, result.RelativeRisks, 2)
	assert.InDelta(t, 2.0, *result.RelativeRisks[0].Value, 1e-9)
	assert.Nil(t, result.RelativeRisks[1].Value)

	risks := analytics.RankRisks(result)
	require.Len(t, risks, 1)
	assert.Equal(t, "Skin", risks[0].Category)
}

func TestEmptyComparativeBuilder(t *testing.T) {
	var builder analytics.ComparativeBuilder
	result := builder.Result()
	assert.NotNil(t, result.Categories)
	assert.NotNil(t, result.Treatment.Proportions)
}

func TestCategoryValues(t *testing.T) {
	values := analytics.CategoryValues(dataset.AdverseEventSummary{
		Categories:  []string{"Skin", "Blood"},
		Proportions: []float64{12.5},
	})
	assert.Equal(t, []analytics.CategoryValue{{Category: "Skin", Value: 12.5}}, values)
}
