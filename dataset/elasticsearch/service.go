package elasticsearch

import (
	"context"

	"golang.org/x/sync/errgroup"
	"hermannm.dev/mabexplorer/analytics"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

func (service Service) FilterOptions(
	ctx context.Context,
	selector dataset.Selector,
) (dataset.Vocabulary, error) {
	index, err := indexName(selector)
	if err != nil {
		return nil, err
	}

	columns := selector.FilterableColumns()
	response, err := service.search(ctx, index, filterOptionsRequest(columns))
	if err != nil {
		return nil, wrapElasticErrorf(err, "failed to get filter options for '%s'", selector)
	}

	vocabulary := make(dataset.Vocabulary, len(columns))
	for _, column := range columns {
		buckets, err := response.buckets(column)
		if err != nil {
			return nil, wrap.Errorf(err, "failed to parse filter options for column '%s'", column)
		}
		vocabulary[column] = bucketLabels(buckets)
	}
	return vocabulary, nil
}

func (service Service) QueryRows(
	ctx context.Context,
	query dataset.RowQuery,
) (dataset.ResultPage, error) {
	query = query.WithDefaults()
	index, err := indexName(query.Dataset)
	if err != nil {
		return dataset.ResultPage{}, err
	}

	response, err := service.search(ctx, index, rowsRequest(query))
	if err != nil {
		return dataset.ResultPage{}, wrapElasticError(err, "failed to query rows")
	}

	return dataset.ResultPage{
		Rows:     response.records(),
		Total:    response.Hits.Total.Value,
		Page:     query.Page,
		PageSize: query.PageSize,
	}, nil
}

func (service Service) Distribution(
	ctx context.Context,
	selector dataset.Selector,
	column string,
	filters dataset.FilterSet,
	search string,
) (dataset.Distribution, error) {
	index, err := indexName(selector)
	if err != nil {
		return dataset.Distribution{}, err
	}

	response, err := service.search(ctx, index, distributionRequest(column, filters, search))
	if err != nil {
		return dataset.Distribution{}, wrapElasticErrorf(
			err,
			"failed to get distribution of '%s'",
			column,
		)
	}

	buckets, err := response.buckets(aggregationValues)
	if err != nil {
		return dataset.Distribution{}, err
	}

	distribution := dataset.EmptyDistribution()
	for _, bucket := range buckets {
		distribution.Labels = append(distribution.Labels, bucket.label())
		distribution.Values = append(distribution.Values, bucket.docCount)
	}
	return distribution, nil
}

func (service Service) AdverseEventSummary(
	ctx context.Context,
	query dataset.AdverseEventQuery,
) (dataset.AdverseEventSummary, error) {
	query = query.WithDefaults()
	index, err := indexName(query.Dataset)
	if err != nil {
		return dataset.AdverseEventSummary{}, err
	}
	kind := query.Dataset.Kind()

	response, err := service.search(ctx, index, adverseEventRequest(kind, query))
	if err != nil {
		return dataset.AdverseEventSummary{}, wrapElasticError(
			err,
			"failed to get adverse event summary",
		)
	}

	buckets, err := response.buckets(aggregationValues)
	if err != nil {
		return dataset.AdverseEventSummary{}, err
	}

	summary := dataset.EmptyAdverseEventSummary(query.GroupBy)
	for _, bucket := range buckets {
		summary.Categories = append(summary.Categories, bucket.label())

		if kind == dataset.KindClinicalTrials {
			events := bucket.metric(metricPrimary)
			summary.Proportions = append(
				summary.Proportions,
				analytics.Proportion(events, bucket.metric(metricSecondary)),
			)
			summary.Counts = append(summary.Counts, events)
		} else {
			summary.Proportions = append(
				summary.Proportions,
				analytics.Round2(bucket.metric(metricPrimary)),
			)
			summary.Counts = append(summary.Counts, float64(bucket.docCount))
		}
	}
	return summary, nil
}

func (service Service) Comparative(
	ctx context.Context,
	query dataset.ComparativeQuery,
) (dataset.ComparativeResult, error) {
	query = query.WithDefaults()
	index, err := indexName(query.Dataset)
	if err != nil {
		return dataset.ComparativeResult{}, err
	}
	kind := query.Dataset.Kind()

	response, err := service.search(ctx, index, comparativeRequest(kind, query))
	if err != nil {
		return dataset.ComparativeResult{}, wrapElasticErrorf(
			err,
			"failed to get comparative summary for '%s'",
			query.Antibody,
		)
	}

	buckets, err := response.buckets(aggregationValues)
	if err != nil {
		return dataset.ComparativeResult{}, err
	}

	var builder analytics.ComparativeBuilder
	for _, bucket := range buckets {
		if kind == dataset.KindClinicalTrials {
			builder.AddCounts(
				bucket.label(),
				bucket.metric(metricPrimary),
				bucket.metric(metricSecondary),
				bucket.metric(metricTertiary),
				bucket.metric(metricQuaternary),
			)
		} else {
			builder.AddProportions(
				bucket.label(),
				bucket.metric(metricPrimary),
				bucket.metric(metricSecondary),
			)
		}
	}
	return builder.Result(), nil
}

func (service Service) TargetAggregate(
	ctx context.Context,
	query dataset.TargetQuery,
) (dataset.TargetAggregation, error) {
	query = query.WithDefaults()
	index, err := indexName(query.Dataset)
	if err != nil {
		return dataset.TargetAggregation{}, err
	}
	kind := query.Dataset.Kind()

	response, err := service.search(ctx, index, targetRequest(kind, query))
	if err != nil {
		return dataset.TargetAggregation{}, wrapElasticErrorf(
			err,
			"failed to get aggregates for target '%s'",
			query.Target,
		)
	}

	categories, err := response.buckets(aggregationValues)
	if err != nil {
		return dataset.TargetAggregation{}, err
	}

	var values []analytics.TargetValue
	for _, category := range categories {
		entities, err := category.buckets(aggregationEntities)
		if err != nil {
			return dataset.TargetAggregation{}, err
		}

		for _, entity := range entities {
			value := analytics.TargetValue{Category: category.label(), EntityID: entity.label()}
			if kind == dataset.KindClinicalTrials {
				value.Value = analytics.Proportion(
					entity.metric(metricPrimary),
					entity.metric(metricSecondary),
				)
			} else {
				value.Value = entity.metric(metricPrimary)
			}
			values = append(values, value)
		}
	}

	return dataset.TargetAggregation{
		Target:     query.Target,
		Aggregates: analytics.AggregateTargetValues(values, query.TopN),
	}, nil
}

// CrossDataset compares the antibody's adverse-event summary in the clinical-trial index against
// its final label.
func (service Service) CrossDataset(
	ctx context.Context,
	query dataset.CrossDatasetQuery,
) (dataset.CrossDatasetResult, error) {
	query = query.WithDefaults()
	filters := query.Filters.With(dataset.ColumnAntibody, query.Antibody)

	var clinicalTrials, label []analytics.CategoryValue
	group, groupCtx := errgroup.WithContext(ctx)
	for _, source := range []struct {
		selector dataset.Selector
		values   *[]analytics.CategoryValue
	}{
		{dataset.SelectorClinicalTrialsAll, &clinicalTrials},
		{dataset.SelectorLabelFinal, &label},
	} {
		group.Go(func() error {
			summary, err := service.AdverseEventSummary(groupCtx, dataset.AdverseEventQuery{
				Dataset: source.selector,
				GroupBy: query.GroupBy,
				Filters: filters,
				TopN:    dataset.CrossDatasetSourceTopN,
			})
			if err != nil {
				return wrap.Errorf(err, "failed to get summary from '%s'", source.selector)
			}
			*source.values = analytics.CategoryValues(summary)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return dataset.CrossDatasetResult{}, err
	}
	return analytics.MergeCrossDataset(clinicalTrials, label, query.TopN), nil
}
