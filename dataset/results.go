package dataset

// Record is one result row. The schema differs between datasets, so columns are not fixed.
type Record map[string]any

type ResultPage struct {
	Rows     []Record `json:"data"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// TotalPages is the number of pages needed to show Total rows, and at least 1 so that page 1 is
// always valid.
func (page ResultPage) TotalPages() int {
	if page.PageSize <= 0 || page.Total <= 0 {
		return 1
	}
	return int((page.Total + int64(page.PageSize) - 1) / int64(page.PageSize))
}

// Distribution is a labeled count series, sorted by the producing service in descending value
// order.
type Distribution struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

func (distribution Distribution) Len() int {
	return min(len(distribution.Labels), len(distribution.Values))
}

func (distribution Distribution) IsEmpty() bool {
	return distribution.Len() == 0
}

func EmptyDistribution() Distribution {
	return Distribution{Labels: []string{}, Values: []int64{}}
}

// Dimension is a column that the explorer shows a distribution chart for.
type Dimension struct {
	Column string `json:"column" yaml:"column" validate:"required"`
	Title  string `json:"title"  yaml:"title"`
}

type NamedDistribution struct {
	Dimension
	Distribution Distribution `json:"distribution"`
	// Set when the fetch for this dimension failed and an empty distribution was substituted.
	Degraded bool `json:"degraded,omitempty"`
}

// AdverseEventSummary holds parallel series, one entry per category of the active grouping.
type AdverseEventSummary struct {
	GroupBy    GroupBy  `json:"groupBy"`
	Categories []string `json:"categories"`
	// Percent, 0-100.
	Proportions []float64 `json:"proportions"`
	Counts      []float64 `json:"counts"`
}

func EmptyAdverseEventSummary(groupBy GroupBy) AdverseEventSummary {
	return AdverseEventSummary{
		GroupBy:     groupBy.OrDefault(),
		Categories:  []string{},
		Proportions: []float64{},
		Counts:      []float64{},
	}
}

// ArmSeries is the adverse-event proportion (percent) per category for one study arm.
type ArmSeries struct {
	Categories  []string  `json:"categories"`
	Proportions []float64 `json:"proportions"`
}

// RiskEstimate is a relative risk with its confidence interval. Any field may be absent.
type RiskEstimate struct {
	Value   *float64 `json:"value"`
	CILower *float64 `json:"ci_lower"`
	CIUpper *float64 `json:"ci_upper"`
}

type ComparativeResult struct {
	Categories []string  `json:"categories"`
	Treatment  ArmSeries `json:"ab_arm"`
	Comparator ArmSeries `json:"comp_arm"`
	// Parallel to Categories; may be shorter or empty when the backend does not compute risks.
	RelativeRisks []RiskEstimate `json:"relative_risk,omitempty"`
}

type EntityValue struct {
	EntityID string  `json:"antibody"`
	Value    float64 `json:"value"`
}

type Summary struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// TargetAggregate holds one category's per-antibody values for all antibodies against a
// molecular target.
type TargetAggregate struct {
	Category string        `json:"category"`
	Entities []EntityValue `json:"values"`
	Summary  Summary       `json:"summary"`
}

type TargetAggregation struct {
	Target     string            `json:"target"`
	Aggregates []TargetAggregate `json:"data"`
}

// CrossDatasetResult compares one antibody's adverse-event proportions between clinical trials
// and its FDA label. Values are absent where a category only appears in one source.
type CrossDatasetResult struct {
	Categories     []string   `json:"categories"`
	ClinicalTrials []*float64 `json:"ctgov"`
	Label          []*float64 `json:"label"`
}

type TableInfo struct {
	Name Selector `json:"name"`
	Rows int64    `json:"rows"`
}

// Vocabulary maps each filterable column to its allowed values, in backend order.
type Vocabulary map[string][]string

func (vocabulary Vocabulary) Values(column string) []string {
	return vocabulary[column]
}
