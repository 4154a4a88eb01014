package analytics

import (
	"math"
	"slices"

	"hermannm.dev/mabexplorer/dataset"
)

type RiskEntry struct {
	Category     string       `json:"category"`
	RiskValue    float64      `json:"riskValue"`
	CILower      *float64     `json:"ciLower"`
	CIUpper      *float64     `json:"ciUpper"`
	Significance Significance `json:"significance"`
}

// RankRisks lists the categories of a comparative result that have a relative risk, highest
// risk first. Categories without a risk value are dropped; ties keep their original order. An
// empty list is not an error, only the cue for an empty-state display.
func RankRisks(comparative dataset.ComparativeResult) []RiskEntry {
	length := min(len(comparative.Categories), len(comparative.RelativeRisks))

	entries := make([]RiskEntry, 0, length)
	for i := 0; i < length; i++ {
		estimate := comparative.RelativeRisks[i]

		value, ok := finite(estimate.Value)
		if !ok {
			continue
		}

		entry := RiskEntry{
			Category:  comparative.Categories[i],
			RiskValue: value,
			CILower:   finitePointer(estimate.CILower),
			CIUpper:   finitePointer(estimate.CIUpper),
		}
		entry.Significance = ClassifyRisk(entry.RiskValue, entry.CILower, entry.CIUpper)
		entries = append(entries, entry)
	}

	slices.SortStableFunc(entries, func(entry1 RiskEntry, entry2 RiskEntry) int {
		switch {
		case entry1.RiskValue > entry2.RiskValue:
			return -1
		case entry1.RiskValue < entry2.RiskValue:
			return 1
		default:
			return 0
		}
	})

	return entries
}

// ClassifyRisk flags a risk as elevated when it is above 1 with the whole confidence interval
// above 1, and as reduced when it is below 1 with the whole interval below 1.
func ClassifyRisk(riskValue float64, ciLower *float64, ciUpper *float64) Significance {
	if riskValue > 1 && ciLower != nil && *ciLower > 1 {
		return SignificanceElevated
	}
	if riskValue < 1 && ciUpper != nil && *ciUpper < 1 {
		return SignificanceReduced
	}
	return SignificanceNone
}

// z-score of a two-sided 95% confidence interval.
const confidenceZ = 1.959964

// RelativeRisk computes the risk ratio of events in a treatment arm against a comparator arm,
// with a 95% confidence interval on the log scale (Katz method). The estimate is absent when
// either arm has no events or no participants, where the ratio or its interval is undefined.
func RelativeRisk(
	treatmentEvents float64,
	treatmentN float64,
	comparatorEvents float64,
	comparatorN float64,
) dataset.RiskEstimate {
	if treatmentN <= 0 || comparatorN <= 0 || treatmentEvents <= 0 || comparatorEvents <= 0 {
		return dataset.RiskEstimate{}
	}

	risk := (treatmentEvents / treatmentN) / (comparatorEvents / comparatorN)
	standardError := math.Sqrt(
		1/treatmentEvents - 1/treatmentN + 1/comparatorEvents - 1/comparatorN,
	)
	logRisk := math.Log(risk)
	lower := math.Exp(logRisk - confidenceZ*standardError)
	upper := math.Exp(logRisk + confidenceZ*standardError)

	return dataset.RiskEstimate{Value: &risk, CILower: &lower, CIUpper: &upper}
}

// ProportionRatio is the risk ratio of two reported proportions, without a confidence interval
// since the underlying counts are unknown. Absent when the comparator proportion is not positive.
func ProportionRatio(treatmentPercent float64, comparatorPercent float64) dataset.RiskEstimate {
	if comparatorPercent <= 0 || treatmentPercent < 0 {
		return dataset.RiskEstimate{}
	}
	risk := treatmentPercent / comparatorPercent
	return dataset.RiskEstimate{Value: &risk}
}

// Proportion returns events per n as a percentage rounded to 2 decimals, or 0 when n is not
// positive.
func Proportion(events float64, n float64) float64 {
	if n <= 0 {
		return 0
	}
	return Round2(events / n * 100)
}

func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func finite(value *float64) (float64, bool) {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return 0, false
	}
	return *value, true
}

func finitePointer(value *float64) *float64 {
	if v, ok := finite(value); ok {
		return &v
	}
	return nil
}
