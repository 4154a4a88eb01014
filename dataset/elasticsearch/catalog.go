package elasticsearch

import (
	"context"
	"log/slog"
	"slices"

	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/log"
)

// Tables lists the datasets that have an index, with their document counts.
func (service Service) Tables(ctx context.Context) ([]dataset.TableInfo, error) {
	tables := []dataset.TableInfo{}
	for _, selector := range dataset.Selectors {
		count, err := service.count(ctx, selector.String())
		if err != nil {
			if isIndexNotFound(err) {
				log.Debug("dataset index not found", slog.String("index", selector.String()))
				continue
			}
			return nil, wrapElasticErrorf(err, "failed to count documents in index '%s'", selector)
		}

		tables = append(tables, dataset.TableInfo{Name: selector, Rows: count})
	}
	return tables, nil
}

func (service Service) Studies(
	ctx context.Context,
	selector dataset.Selector,
	antibody string,
) ([]string, error) {
	if !selector.IsClinicalTrials() {
		return []string{}, nil
	}

	query := (&boolQuery{}).search(antibody)
	studies, err := service.values(ctx, selector, dataset.ColumnNCTID, query)
	if err != nil {
		return nil, wrapElasticError(err, "failed to list studies")
	}
	return studies, nil
}

func (service Service) Targets(ctx context.Context, selector dataset.Selector) ([]string, error) {
	targets, err := service.values(ctx, selector, dataset.ColumnTarget, &boolQuery{})
	if err != nil {
		return nil, wrapElasticError(err, "failed to list targets")
	}
	return targets, nil
}

func (service Service) OverlappingAntibodies(ctx context.Context) ([]string, error) {
	clinicalTrials, err := service.values(
		ctx,
		dataset.SelectorClinicalTrialsAll,
		dataset.ColumnAntibody,
		&boolQuery{},
	)
	if err != nil {
		return nil, wrapElasticError(err, "failed to list clinical-trial antibodies")
	}

	label, err := service.values(
		ctx,
		dataset.SelectorLabelFinal,
		dataset.ColumnAntibody,
		&boolQuery{},
	)
	if err != nil {
		return nil, wrapElasticError(err, "failed to list label antibodies")
	}

	overlapping := []string{}
	for _, antibody := range clinicalTrials {
		if slices.Contains(label, antibody) {
			overlapping = append(overlapping, antibody)
		}
	}
	return overlapping, nil
}

func (service Service) AntibodiesWithComparator(
	ctx context.Context,
	selector dataset.Selector,
) ([]string, error) {
	query := &boolQuery{}
	if selector.IsClinicalTrials() {
		query.positive(dataset.ColumnNComparator)
	} else {
		query.exists(dataset.ColumnComparatorAllGradesPercent)
	}

	antibodies, err := service.values(ctx, selector, dataset.ColumnAntibody, query)
	if err != nil {
		return nil, wrapElasticError(err, "failed to list antibodies with comparator")
	}
	return antibodies, nil
}

// Returns the distinct values of the field among documents matching the query, in ascending
// order.
func (service Service) values(
	ctx context.Context,
	selector dataset.Selector,
	field string,
	query *boolQuery,
) ([]string, error) {
	index, err := indexName(selector)
	if err != nil {
		return nil, err
	}

	response, err := service.search(ctx, index, valuesRequest(field, query))
	if err != nil {
		return nil, err
	}

	buckets, err := response.buckets(aggregationValues)
	if err != nil {
		return nil, err
	}
	return bucketLabels(buckets), nil
}
