package elasticsearch

import (
	"strings"

	"hermannm.dev/mabexplorer/dataset"
)

type object = map[string]any

// Upper bound on buckets for aggregations that should return every value.
const allBuckets = 10000

// boolQuery accumulates filter clauses. The zero value matches all documents.
type boolQuery struct {
	filters []object
}

func newBoolQuery(filters dataset.FilterSet, search string) *boolQuery {
	var query boolQuery
	for _, column := range filters.Columns() {
		query.filters = append(query.filters, object{
			"terms": object{column: filters.Values(column)},
		})
	}
	query.search(search)
	return &query
}

// Case-insensitive substring match on the search column. Does nothing if search is empty.
func (query *boolQuery) search(search string) *boolQuery {
	if search == "" {
		return query
	}

	query.filters = append(query.filters, object{
		"wildcard": object{
			dataset.SearchColumn: object{
				"value":            "*" + escapeWildcard(search) + "*",
				"case_insensitive": true,
			},
		},
	})
	return query
}

func (query *boolQuery) term(field string, value string) *boolQuery {
	query.filters = append(query.filters, object{"term": object{field: value}})
	return query
}

func (query *boolQuery) exists(field string) *boolQuery {
	query.filters = append(query.filters, object{"exists": object{"field": field}})
	return query
}

func (query *boolQuery) positive(field string) *boolQuery {
	query.filters = append(query.filters, object{"range": object{field: object{"gt": 0}}})
	return query
}

func (query *boolQuery) build() object {
	if len(query.filters) == 0 {
		return object{"match_all": object{}}
	}
	return object{"bool": object{"filter": query.filters}}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(value string) string {
	return wildcardEscaper.Replace(value)
}

func termsAggregation(field string, size int, order any) object {
	terms := object{"field": field, "size": size}
	if order != nil {
		terms["order"] = order
	}
	return object{"terms": terms}
}

func metricAggregation(kind string, field string) object {
	return object{kind: object{"field": field}}
}

func withSubAggregations(aggregation object, subAggregations object) object {
	aggregation["aggs"] = subAggregations
	return aggregation
}

var (
	orderByKey   = object{"_key": "asc"}
	orderByCount = []object{{"_count": "desc"}, {"_key": "asc"}}
)

func orderByMetric(metric string) []object {
	return []object{{metric: "desc"}, {"_key": "asc"}}
}

func aggregationRequest(query *boolQuery, aggregations object) object {
	return object{"size": 0, "query": query.build(), "aggs": aggregations}
}

const (
	aggregationValues   = "values"
	aggregationEntities = "entities"
	metricPrimary       = "primary"
	metricSecondary     = "secondary"
	metricTertiary      = "tertiary"
	metricQuaternary    = "quaternary"
)

func filterOptionsRequest(columns []string) object {
	aggregations := make(object, len(columns))
	for _, column := range columns {
		aggregations[column] = termsAggregation(column, dataset.DefaultVocabularyMaxSize, orderByKey)
	}
	return aggregationRequest(&boolQuery{}, aggregations)
}

func rowsRequest(query dataset.RowQuery) object {
	request := object{
		"query":            newBoolQuery(query.Filters, query.Search).build(),
		"from":             (query.Page - 1) * query.PageSize,
		"size":             query.PageSize,
		"track_total_hits": true,
	}
	if query.Sort.IsSet() {
		request["sort"] = []object{
			{query.Sort.Column: object{"order": query.Sort.DirectionOrDefault().String()}},
		}
	}
	return request
}

func distributionRequest(column string, filters dataset.FilterSet, search string) object {
	return aggregationRequest(
		newBoolQuery(filters, search),
		object{aggregationValues: termsAggregation(column, allBuckets, orderByCount)},
	)
}

func valuesRequest(field string, query *boolQuery) object {
	return aggregationRequest(
		query.exists(field),
		object{aggregationValues: termsAggregation(field, allBuckets, orderByKey)},
	)
}

// For clinical-trial indices, the primary metric is summed treatment events and the secondary
// summed treatment arm sizes. For label indices, the primary metric is the average reported
// proportion, and bucket doc counts give the row count.
func adverseEventRequest(kind dataset.Kind, query dataset.AdverseEventQuery) object {
	groupColumn := query.GroupBy.String()
	filter := newBoolQuery(query.Filters, query.Search).exists(groupColumn)

	var metrics object
	if kind == dataset.KindClinicalTrials {
		filter.exists(dataset.ColumnEventsTreatment).positive(dataset.ColumnNTreatment)
		metrics = object{
			metricPrimary:   metricAggregation("sum", dataset.ColumnEventsTreatment),
			metricSecondary: metricAggregation("sum", dataset.ColumnNTreatment),
		}
	} else {
		filter.exists(query.GradeColumn)
		metrics = object{metricPrimary: metricAggregation("avg", query.GradeColumn)}
	}

	return aggregationRequest(filter, object{
		aggregationValues: withSubAggregations(
			termsAggregation(groupColumn, query.TopN, orderByMetric(metricPrimary)),
			metrics,
		),
	})
}

// For clinical-trial indices, metrics are treatment events, treatment n, comparator events and
// comparator n. For label indices, they are the treatment and comparator proportions.
func comparativeRequest(kind dataset.Kind, query dataset.ComparativeQuery) object {
	groupColumn := query.GroupBy.String()
	filter := newBoolQuery(query.Filters, "").
		term(dataset.ColumnAntibody, query.Antibody).
		exists(groupColumn)

	var metrics object
	if kind == dataset.KindClinicalTrials {
		if query.NCTID != "" {
			filter.term(dataset.ColumnNCTID, query.NCTID)
		}
		filter.positive(dataset.ColumnNTreatment)
		metrics = object{
			metricPrimary:    metricAggregation("sum", dataset.ColumnEventsTreatment),
			metricSecondary:  metricAggregation("max", dataset.ColumnNTreatment),
			metricTertiary:   metricAggregation("sum", dataset.ColumnEventsComparator),
			metricQuaternary: metricAggregation("max", dataset.ColumnNComparator),
		}
	} else {
		metrics = object{
			metricPrimary:   metricAggregation("avg", dataset.ColumnAllGradesPercent),
			metricSecondary: metricAggregation("avg", dataset.ColumnComparatorAllGradesPercent),
		}
	}

	return aggregationRequest(filter, object{
		aggregationValues: withSubAggregations(
			termsAggregation(groupColumn, query.TopN, orderByMetric(metricPrimary)),
			metrics,
		),
	})
}

// Buckets categories, then antibodies within each category. For clinical-trial indices, the
// metrics are summed events and summed n. For label indices, the primary metric is the average
// proportion.
func targetRequest(kind dataset.Kind, query dataset.TargetQuery) object {
	groupColumn := query.GroupBy.String()
	filter := newBoolQuery(query.Filters, "").
		term(dataset.ColumnTarget, query.Target).
		exists(groupColumn).
		exists(dataset.ColumnAntibody)

	var metrics object
	if kind == dataset.KindClinicalTrials {
		filter.positive(dataset.ColumnNTreatment)
		metrics = object{
			metricPrimary:   metricAggregation("sum", dataset.ColumnEventsTreatment),
			metricSecondary: metricAggregation("sum", dataset.ColumnNTreatment),
		}
	} else {
		filter.exists(dataset.ColumnAllGradesPercent)
		metrics = object{metricPrimary: metricAggregation("avg", dataset.ColumnAllGradesPercent)}
	}

	return aggregationRequest(filter, object{
		aggregationValues: withSubAggregations(
			termsAggregation(groupColumn, allBuckets, orderByKey),
			object{
				aggregationEntities: withSubAggregations(
					termsAggregation(dataset.ColumnAntibody, allBuckets, orderByKey),
					metrics,
				),
			},
		),
	})
}
