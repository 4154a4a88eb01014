package httpapi

import (
	"context"
	"net/url"

	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

func (client *Client) FilterOptions(
	ctx context.Context,
	selector dataset.Selector,
) (dataset.Vocabulary, error) {
	var response map[string][]any
	query := url.Values{"table": {selector.String()}}
	if err := client.get(ctx, "/filter-options", query, &response); err != nil {
		return nil, wrap.Errorf(err, "failed to get filter options for %s", selector)
	}

	vocabulary := make(dataset.Vocabulary, len(response))
	for column, values := range response {
		vocabulary[column] = labels(values)
	}
	return vocabulary, nil
}

type rowQueryRequest struct {
	Table    dataset.Selector  `json:"table"`
	Filters  dataset.FilterSet `json:"filters"`
	Search   *string           `json:"search"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	SortBy   *string           `json:"sort_by"`
	SortDir  string            `json:"sort_dir"`
}

func (client *Client) QueryRows(
	ctx context.Context,
	query dataset.RowQuery,
) (dataset.ResultPage, error) {
	query = query.WithDefaults()

	request := rowQueryRequest{
		Table:    query.Dataset,
		Filters:  query.Filters,
		Search:   nullableString(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
		SortBy:   nullableString(query.Sort.Column),
		SortDir:  query.Sort.DirectionOrDefault().String(),
	}

	var page dataset.ResultPage
	if err := client.post(ctx, "/query", request, &page); err != nil {
		return dataset.ResultPage{}, wrap.Errorf(err, "failed to query %s", query.Dataset)
	}
	if page.Rows == nil {
		page.Rows = []dataset.Record{}
	}
	return page, nil
}

type distributionResponse struct {
	Labels []any   `json:"labels"`
	Values []int64 `json:"values"`
}

func (client *Client) Distribution(
	ctx context.Context,
	selector dataset.Selector,
	column string,
	filters dataset.FilterSet,
	search string,
) (dataset.Distribution, error) {
	query := url.Values{"table": {selector.String()}, "column": {column}}
	if err := filterQuery(query, filters, search); err != nil {
		return dataset.Distribution{}, err
	}

	var response distributionResponse
	if err := client.get(ctx, "/chart/distribution", query, &response); err != nil {
		return dataset.Distribution{}, wrap.Errorf(
			err, "failed to get distribution of '%s' in %s", column, selector,
		)
	}

	distribution := dataset.Distribution{Labels: labels(response.Labels), Values: response.Values}
	if distribution.Values == nil {
		distribution.Values = []int64{}
	}
	return distribution, nil
}

type adverseEventRequest struct {
	Table       dataset.Selector  `json:"table"`
	GroupBy     dataset.GroupBy   `json:"group_by"`
	Filters     dataset.FilterSet `json:"filters"`
	Search      *string           `json:"search"`
	TopN        int               `json:"top_n"`
	GradeColumn string            `json:"grade_col"`
}

type adverseEventResponse struct {
	Categories  []any     `json:"categories"`
	Proportions []float64 `json:"proportions"`
	Counts      []float64 `json:"counts"`
}

func (client *Client) AdverseEventSummary(
	ctx context.Context,
	query dataset.AdverseEventQuery,
) (dataset.AdverseEventSummary, error) {
	query = query.WithDefaults()

	request := adverseEventRequest{
		Table:       query.Dataset,
		GroupBy:     query.GroupBy,
		Filters:     query.Filters,
		Search:      nullableString(query.Search),
		TopN:        query.TopN,
		GradeColumn: query.GradeColumn,
	}

	var response adverseEventResponse
	if err := client.post(ctx, "/chart/adverse-events", request, &response); err != nil {
		return dataset.AdverseEventSummary{}, wrap.Errorf(
			err, "failed to get adverse-event summary for %s", query.Dataset,
		)
	}

	return dataset.AdverseEventSummary{
		GroupBy:     query.GroupBy,
		Categories:  labels(response.Categories),
		Proportions: response.Proportions,
		Counts:      response.Counts,
	}, nil
}

type comparativeRequest struct {
	Table    dataset.Selector  `json:"table"`
	Antibody string            `json:"antibody"`
	NCTID    *string           `json:"nct_id"`
	GroupBy  dataset.GroupBy   `json:"group_by"`
	Filters  dataset.FilterSet `json:"filters"`
	TopN     int               `json:"top_n"`
}

type armResponse struct {
	Categories  []any     `json:"categories"`
	Proportions []float64 `json:"proportions"`
}

type comparativeResponse struct {
	Treatment     armResponse            `json:"ab_arm"`
	Comparator    armResponse            `json:"comp_arm"`
	RelativeRisks []dataset.RiskEstimate `json:"relative_risk"`
}

func (client *Client) Comparative(
	ctx context.Context,
	query dataset.ComparativeQuery,
) (dataset.ComparativeResult, error) {
	query = query.WithDefaults()

	request := comparativeRequest{
		Table:    query.Dataset,
		Antibody: query.Antibody,
		NCTID:    nullableString(query.NCTID),
		GroupBy:  query.GroupBy,
		Filters:  query.Filters,
		TopN:     query.TopN,
	}

	var response comparativeResponse
	if err := client.post(ctx, "/chart/comparative", request, &response); err != nil {
		return dataset.ComparativeResult{}, wrap.Errorf(
			err, "failed to get comparative data for '%s'", query.Antibody,
		)
	}

	categories := labels(response.Treatment.Categories)
	return dataset.ComparativeResult{
		Categories: categories,
		Treatment: dataset.ArmSeries{
			Categories:  categories,
			Proportions: response.Treatment.Proportions,
		},
		Comparator: dataset.ArmSeries{
			Categories:  labels(response.Comparator.Categories),
			Proportions: response.Comparator.Proportions,
		},
		RelativeRisks: response.RelativeRisks,
	}, nil
}

type targetRequest struct {
	Table   dataset.Selector  `json:"table"`
	Target  string            `json:"target"`
	GroupBy dataset.GroupBy   `json:"group_by"`
	Filters dataset.FilterSet `json:"filters"`
	TopN    int               `json:"top_n"`
}

// The API flattens the summary into each category entry, and may omit the per-antibody values.
type targetAggregateResponse struct {
	Category any                   `json:"category"`
	Mean     float64               `json:"mean"`
	Min      float64               `json:"min"`
	Max      float64               `json:"max"`
	Count    int                   `json:"count"`
	Values   []dataset.EntityValue `json:"values"`
}

type targetResponse struct {
	Target string                    `json:"target"`
	Data   []targetAggregateResponse `json:"data"`
}

func (client *Client) TargetAggregate(
	ctx context.Context,
	query dataset.TargetQuery,
) (dataset.TargetAggregation, error) {
	query = query.WithDefaults()

	request := targetRequest{
		Table:   query.Dataset,
		Target:  query.Target,
		GroupBy: query.GroupBy,
		Filters: query.Filters,
		TopN:    query.TopN,
	}

	var response targetResponse
	if err := client.post(ctx, "/chart/target-aggregation", request, &response); err != nil {
		return dataset.TargetAggregation{}, wrap.Errorf(
			err, "failed to get aggregation for target '%s'", query.Target,
		)
	}

	aggregation := dataset.TargetAggregation{
		Target:     response.Target,
		Aggregates: make([]dataset.TargetAggregate, 0, len(response.Data)),
	}
	for _, entry := range response.Data {
		aggregation.Aggregates = append(aggregation.Aggregates, dataset.TargetAggregate{
			Category: labels([]any{entry.Category})[0],
			Entities: entry.Values,
			Summary: dataset.Summary{
				Min:   entry.Min,
				Max:   entry.Max,
				Mean:  entry.Mean,
				Count: entry.Count,
			},
		})
	}
	return aggregation, nil
}

type crossDatasetRequest struct {
	Antibody string            `json:"antibody"`
	GroupBy  dataset.GroupBy   `json:"group_by"`
	Filters  dataset.FilterSet `json:"filters"`
	TopN     int               `json:"top_n"`
}

type seriesResponse struct {
	Values []*float64 `json:"values"`
}

type crossDatasetResponse struct {
	Categories     []any          `json:"categories"`
	ClinicalTrials seriesResponse `json:"ctgov"`
	Label          seriesResponse `json:"label"`
}

func (client *Client) CrossDataset(
	ctx context.Context,
	query dataset.CrossDatasetQuery,
) (dataset.CrossDatasetResult, error) {
	query = query.WithDefaults()

	request := crossDatasetRequest{
		Antibody: query.Antibody,
		GroupBy:  query.GroupBy,
		Filters:  query.Filters,
		TopN:     query.TopN,
	}

	var response crossDatasetResponse
	if err := client.post(ctx, "/chart/cross-dataset", request, &response); err != nil {
		return dataset.CrossDatasetResult{}, wrap.Errorf(
			err, "failed to get cross-dataset comparison for '%s'", query.Antibody,
		)
	}

	return dataset.CrossDatasetResult{
		Categories:     labels(response.Categories),
		ClinicalTrials: response.ClinicalTrials.Values,
		Label:          response.Label.Values,
	}, nil
}
