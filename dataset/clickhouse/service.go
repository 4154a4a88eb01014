package clickhouse

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"golang.org/x/sync/errgroup"
	"hermannm.dev/mabexplorer/analytics"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/log"
	"hermannm.dev/wrap"
)

// Number of filter vocabularies queried concurrently.
const filterOptionsConcurrency = 4

func (service Service) FilterOptions(
	ctx context.Context,
	selector dataset.Selector,
) (dataset.Vocabulary, error) {
	table, err := tableName(selector)
	if err != nil {
		return nil, err
	}

	vocabulary := make(dataset.Vocabulary)
	var lock sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(filterOptionsConcurrency)
	for _, column := range selector.FilterableColumns() {
		group.Go(func() error {
			query, err := buildDistinctValuesQuery(table, column, dataset.DefaultVocabularyMaxSize, nil)
			if err != nil {
				return err
			}

			values, err := service.queryStrings(groupCtx, query)
			if err != nil {
				// Not every table has every filterable column
				if hasErrorCode(err, clickhouseUnknownIdentifierErrorCode) {
					values = []string{}
				} else {
					return wrap.Errorf(err, "failed to get filter options for column '%s'", column)
				}
			}

			lock.Lock()
			vocabulary[column] = values
			lock.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return vocabulary, nil
}

func (service Service) QueryRows(
	ctx context.Context,
	query dataset.RowQuery,
) (dataset.ResultPage, error) {
	query = query.WithDefaults()
	table, err := tableName(query.Dataset)
	if err != nil {
		return dataset.ResultPage{}, err
	}

	countQuery, err := buildCountQuery(table, query.Filters, query.Search)
	if err != nil {
		return dataset.ResultPage{}, wrap.Error(err, "failed to build count query")
	}
	rowsQuery, err := buildRowsQuery(
		table,
		query.Filters,
		query.Search,
		query.Sort,
		query.Page,
		query.PageSize,
	)
	if err != nil {
		return dataset.ResultPage{}, wrap.Error(err, "failed to build rows query")
	}

	log.Debug("generated clickhouse query", slog.String("query", countQuery.String))
	var total uint64
	if err := service.conn.QueryRow(ctx, countQuery.String, countQuery.Args...).Scan(&total); err != nil {
		return dataset.ResultPage{}, wrap.Error(err, "failed to count matching rows")
	}

	log.Debug("generated clickhouse query", slog.String("query", rowsQuery.String))
	rows, err := service.conn.Query(ctx, rowsQuery.String, rowsQuery.Args...)
	if err != nil {
		return dataset.ResultPage{}, wrap.Error(err, "failed to execute query against ClickHouse")
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return dataset.ResultPage{}, wrap.Error(err, "failed to parse query result")
	}

	return dataset.ResultPage{
		Rows:     records,
		Total:    int64(total),
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
	table, err := tableName(selector)
	if err != nil {
		return dataset.Distribution{}, err
	}

	query, err := buildDistributionQuery(table, column, filters, search)
	if err != nil {
		return dataset.Distribution{}, wrap.Error(err, "failed to build distribution query")
	}

	rows, err := service.query(ctx, query)
	if err != nil {
		return dataset.Distribution{}, wrap.Errorf(err, "failed to get distribution of '%s'", column)
	}
	defer rows.Close()

	distribution := dataset.EmptyDistribution()
	for rows.Next() {
		var label string
		var value uint64
		if err := rows.Scan(&label, &value); err != nil {
			return dataset.Distribution{}, wrap.Error(err, "failed to scan distribution row")
		}
		distribution.Labels = append(distribution.Labels, label)
		distribution.Values = append(distribution.Values, int64(value))
	}
	if err := rows.Err(); err != nil {
		return dataset.Distribution{}, wrap.Error(err, "failed to read distribution rows")
	}

	return distribution, nil
}

func (service Service) AdverseEventSummary(
	ctx context.Context,
	query dataset.AdverseEventQuery,
) (dataset.AdverseEventSummary, error) {
	query = query.WithDefaults()
	table, err := tableName(query.Dataset)
	if err != nil {
		return dataset.AdverseEventSummary{}, err
	}
	kind := query.Dataset.Kind()

	sqlQuery, err := buildAdverseEventQuery(table, kind, query)
	if err != nil {
		return dataset.AdverseEventSummary{}, wrap.Error(err, "failed to build adverse event query")
	}

	rows, err := service.query(ctx, sqlQuery)
	if err != nil {
		return dataset.AdverseEventSummary{}, wrap.Error(err, "failed to get adverse event summary")
	}
	defer rows.Close()

	summary := dataset.EmptyAdverseEventSummary(query.GroupBy)
	for rows.Next() {
		var category string
		var primary, secondary float64
		if err := rows.Scan(&category, &primary, &secondary); err != nil {
			return dataset.AdverseEventSummary{}, wrap.Error(err, "failed to scan adverse event row")
		}

		summary.Categories = append(summary.Categories, category)
		if kind == dataset.KindClinicalTrials {
			summary.Proportions = append(summary.Proportions, analytics.Proportion(primary, secondary))
			summary.Counts = append(summary.Counts, primary)
		} else {
			summary.Proportions = append(summary.Proportions, analytics.Round2(primary))
			summary.Counts = append(summary.Counts, secondary)
		}
	}
	if err := rows.Err(); err != nil {
		return dataset.AdverseEventSummary{}, wrap.Error(err, "failed to read adverse event rows")
	}

	return summary, nil
}

func (service Service) Comparative(
	ctx context.Context,
	query dataset.ComparativeQuery,
) (dataset.ComparativeResult, error) {
	query = query.WithDefaults()
	table, err := tableName(query.Dataset)
	if err != nil {
		return dataset.ComparativeResult{}, err
	}
	kind := query.Dataset.Kind()

	sqlQuery, err := buildComparativeQuery(table, kind, query)
	if err != nil {
		return dataset.ComparativeResult{}, wrap.Error(err, "failed to build comparative query")
	}

	rows, err := service.query(ctx, sqlQuery)
	if err != nil {
		return dataset.ComparativeResult{}, wrap.Error(err, "failed to get comparative summary")
	}
	defer rows.Close()

	var builder analytics.ComparativeBuilder
	for rows.Next() {
		var category string
		if kind == dataset.KindClinicalTrials {
			var treatmentEvents, treatmentN, comparatorEvents, comparatorN float64
			if err := rows.Scan(
				&category,
				&treatmentEvents,
				&treatmentN,
				&comparatorEvents,
				&comparatorN,
			); err != nil {
				return dataset.ComparativeResult{}, wrap.Error(err, "failed to scan comparative row")
			}
			builder.AddCounts(category, treatmentEvents, treatmentN, comparatorEvents, comparatorN)
		} else {
			var treatmentPercent, comparatorPercent float64
			if err := rows.Scan(&category, &treatmentPercent, &comparatorPercent); err != nil {
				return dataset.ComparativeResult{}, wrap.Error(err, "failed to scan comparative row")
			}
			builder.AddProportions(category, treatmentPercent, comparatorPercent)
		}
	}
	if err := rows.Err(); err != nil {
		return dataset.ComparativeResult{}, wrap.Error(err, "failed to read comparative rows")
	}

	return builder.Result(), nil
}

func (service Service) TargetAggregate(
	ctx context.Context,
	query dataset.TargetQuery,
) (dataset.TargetAggregation, error) {
	query = query.WithDefaults()
	table, err := tableName(query.Dataset)
	if err != nil {
		return dataset.TargetAggregation{}, err
	}

	sqlQuery, err := buildTargetQuery(table, query.Dataset.Kind(), query)
	if err != nil {
		return dataset.TargetAggregation{}, wrap.Error(err, "failed to build target query")
	}

	rows, err := service.query(ctx, sqlQuery)
	if err != nil {
		return dataset.TargetAggregation{}, wrap.Errorf(
			err,
			"failed to get aggregates for target '%s'",
			query.Target,
		)
	}
	defer rows.Close()

	var values []analytics.TargetValue
	for rows.Next() {
		var value analytics.TargetValue
		if err := rows.Scan(&value.Category, &value.EntityID, &value.Value); err != nil {
			return dataset.TargetAggregation{}, wrap.Error(err, "failed to scan target row")
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return dataset.TargetAggregation{}, wrap.Error(err, "failed to read target rows")
	}

	return dataset.TargetAggregation{
		Target:     query.Target,
		Aggregates: analytics.AggregateTargetValues(values, query.TopN),
	}, nil
}

// CrossDataset compares the antibody's adverse-event summary in the clinical-trial table against
// its final label.
func (service Service) CrossDataset(
	ctx context.Context,
	query dataset.CrossDatasetQuery,
) (dataset.CrossDatasetResult, error) {
	query = query.WithDefaults()
	filters := query.Filters.With(dataset.ColumnAntibody, query.Antibody)

	var clinicalTrials, label []analytics.CategoryValue
	group, groupCtx := errgroup.WithContext(ctx)
	for _, target := range []struct {
		selector dataset.Selector
		values   *[]analytics.CategoryValue
	}{
		{dataset.SelectorClinicalTrialsAll, &clinicalTrials},
		{dataset.SelectorLabelFinal, &label},
	} {
		group.Go(func() error {
			summary, err := service.AdverseEventSummary(groupCtx, dataset.AdverseEventQuery{
				Dataset: target.selector,
				GroupBy: query.GroupBy,
				Filters: filters,
				TopN:    dataset.CrossDatasetSourceTopN,
			})
			if err != nil {
				return wrap.Errorf(err, "failed to get summary from '%s'", target.selector)
			}
			*target.values = analytics.CategoryValues(summary)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return dataset.CrossDatasetResult{}, err
	}
	return analytics.MergeCrossDataset(clinicalTrials, label, query.TopN), nil
}

func (service Service) query(ctx context.Context, query Query) (driver.Rows, error) {
	log.Debug("generated clickhouse query", slog.String("query", query.String))

	rows, err := service.conn.Query(ctx, query.String, query.Args...)
	if err != nil {
		return nil, wrap.Error(err, "failed to execute query against ClickHouse")
	}
	return rows, nil
}

func (service Service) queryStrings(ctx context.Context, query Query) ([]string, error) {
	rows, err := service.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStrings(rows)
}
