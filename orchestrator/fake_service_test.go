package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"hermannm.dev/mabexplorer/dataset"
)

// fakeService implements dataset.Service with overridable functions and records the queries it
// receives.
type fakeService struct {
	filterOptionsFunc func(ctx context.Context, selector dataset.Selector) (dataset.Vocabulary, error)
	queryRowsFunc     func(ctx context.Context, query dataset.RowQuery) (dataset.ResultPage, error)
	distributionFunc  func(ctx context.Context, column string) (dataset.Distribution, error)
	adverseEventsFunc func(
		ctx context.Context,
		query dataset.AdverseEventQuery,
	) (dataset.AdverseEventSummary, error)
	comparativeFunc func(
		ctx context.Context,
		query dataset.ComparativeQuery,
	) (dataset.ComparativeResult, error)

	lock                sync.Mutex
	rowQueries          []dataset.RowQuery
	adverseEventQueries []dataset.AdverseEventQuery
}

func (service *fakeService) FilterOptions(
	ctx context.Context,
	selector dataset.Selector,
) (dataset.Vocabulary, error) {
	if service.filterOptionsFunc != nil {
		return service.filterOptionsFunc(ctx, selector)
	}
	return dataset.Vocabulary{dataset.ColumnAntibody: {"Nivolumab", "Pembrolizumab"}}, nil
}

func (service *fakeService) QueryRows(
	ctx context.Context,
	query dataset.RowQuery,
) (dataset.ResultPage, error) {
	service.lock.Lock()
	service.rowQueries = append(service.rowQueries, query)
	service.lock.Unlock()

	if service.queryRowsFunc != nil {
		return service.queryRowsFunc(ctx, query)
	}
	return testPage(query, "default"), nil
}

func (service *fakeService) Distribution(
	ctx context.Context,
	selector dataset.Selector,
	column string,
	filters dataset.FilterSet,
	search string,
) (dataset.Distribution, error) {
	if service.distributionFunc != nil {
		return service.distributionFunc(ctx, column)
	}
	return dataset.Distribution{Labels: []string{column + "-a"}, Values: []int64{1}}, nil
}

func (service *fakeService) AdverseEventSummary(
	ctx context.Context,
	query dataset.AdverseEventQuery,
) (dataset.AdverseEventSummary, error) {
	service.lock.Lock()
	service.adverseEventQueries = append(service.adverseEventQueries, query)
	service.lock.Unlock()

	if service.adverseEventsFunc != nil {
		return service.adverseEventsFunc(ctx, query)
	}
	return dataset.AdverseEventSummary{
		Categories:  []string{"Skin"},
		Proportions: []float64{12.5},
		Counts:      []float64{4},
	}, nil
}

func (service *fakeService) Comparative(
	ctx context.Context,
	query dataset.ComparativeQuery,
) (dataset.ComparativeResult, error) {
	if service.comparativeFunc != nil {
		return service.comparativeFunc(ctx, query)
	}
	return dataset.ComparativeResult{}, nil
}

func (service *fakeService) TargetAggregate(
	ctx context.Context,
	query dataset.TargetQuery,
) (dataset.TargetAggregation, error) {
	return dataset.TargetAggregation{
		Aggregates: []dataset.TargetAggregate{
			{
				Category: "Skin",
				Entities: []dataset.EntityValue{{EntityID: "Nivolumab", Value: 12}},
				Summary:  dataset.Summary{Min: 12, Max: 12, Mean: 12, Count: 1},
			},
		},
	}, nil
}

func (service *fakeService) CrossDataset(
	ctx context.Context,
	query dataset.CrossDatasetQuery,
) (dataset.CrossDatasetResult, error) {
	return dataset.CrossDatasetResult{}, fmt.Errorf("API error: 500")
}

func (service *fakeService) recordedRowQueries() []dataset.RowQuery {
	service.lock.Lock()
	defer service.lock.Unlock()
	return append([]dataset.RowQuery(nil), service.rowQueries...)
}

func (service *fakeService) recordedAdverseEventQueries() []dataset.AdverseEventQuery {
	service.lock.Lock()
	defer service.lock.Unlock()
	return append([]dataset.AdverseEventQuery(nil), service.adverseEventQueries...)
}

// exportingService adds dataset.Exporter to fakeService.
type exportingService struct {
	*fakeService
}

func (exportingService) ExportURL(
	selector dataset.Selector,
	filters dataset.FilterSet,
	search string,
) (string, error) {
	return fmt.Sprintf("/api/export?table=%s&filters=%d&search=%s", selector, filters.Len(), search), nil
}

// testPage returns a 120-row result, tagging its single row so tests can tell pages apart.
func testPage(query dataset.RowQuery, tag string) dataset.ResultPage {
	return dataset.ResultPage{
		Rows:     []dataset.Record{{"tag": tag}},
		Total:    120,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
}
