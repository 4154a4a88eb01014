package clickhouse

import (
	"errors"

	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

// Query is a generated query string with its positional arguments.
type Query struct {
	String string
	Args   []any
}

func (builder *QueryBuilder) Query() Query {
	return Query{String: builder.String(), Args: builder.Args()}
}

// Writes the column as a nullable Float64, so that numeric columns stored as strings aggregate
// like any other.
func (builder *QueryBuilder) WriteNumber(column string) {
	builder.WriteString("toFloat64OrNull(toString(")
	builder.WriteIdentifier(column)
	builder.WriteString("))")
}

func (builder *QueryBuilder) WriteNotNull(column string) {
	builder.WriteCondition()
	builder.WriteIdentifier(column)
	builder.WriteString(" IS NOT NULL")
}

func (builder *QueryBuilder) WriteEquals(column string, value string) {
	builder.WriteCondition()
	builder.WriteLabel(column)
	builder.WriteString(" = ")
	builder.WriteArg(value)
}

func (builder *QueryBuilder) WritePositive(column string) {
	builder.WriteCondition()
	builder.WriteNumber(column)
	builder.WriteString(" > 0")
}

// Writes "ifNull(<function>(<column as number>), 0)".
func (builder *QueryBuilder) WriteAggregate(function string, column string) {
	builder.WriteString("ifNull(")
	builder.WriteString(function)
	builder.WriteRune('(')
	builder.WriteNumber(column)
	builder.WriteString("), 0)")
}

func buildDistinctValuesQuery(
	table string,
	column string,
	limit int,
	writeConditions func(query *QueryBuilder),
) (Query, error) {
	if err := ValidateIdentifiers(table, column); err != nil {
		return Query{}, wrap.Error(err, "invalid table/column name in query")
	}

	var query QueryBuilder
	query.WriteString("SELECT toString(")
	query.WriteIdentifier(column)
	query.WriteString(") AS value FROM ")
	query.WriteIdentifier(table)
	query.WriteNotNull(column)
	if writeConditions != nil {
		writeConditions(&query)
	}
	query.WriteString(" GROUP BY ")
	query.WriteIdentifier(column)
	query.WriteString(" ORDER BY ")
	query.WriteIdentifier(column)
	query.WriteString(" ASC")
	if limit > 0 {
		query.WriteLimit(limit)
	}
	return query.Query(), nil
}

func buildCountQuery(table string, filters dataset.FilterSet, search string) (Query, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Query{}, wrap.Error(err, "invalid table name")
	}

	var query QueryBuilder
	query.WriteString("SELECT count() FROM ")
	query.WriteIdentifier(table)
	if err := query.WriteFilters(filters, search); err != nil {
		return Query{}, err
	}
	return query.Query(), nil
}

// Pass pageSize 0 to select all matching rows.
func buildRowsQuery(
	table string,
	filters dataset.FilterSet,
	search string,
	sort dataset.Sort,
	page int,
	pageSize int,
) (Query, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Query{}, wrap.Error(err, "invalid table name")
	}

	var query QueryBuilder
	query.WriteString("SELECT * FROM ")
	query.WriteIdentifier(table)
	if err := query.WriteFilters(filters, search); err != nil {
		return Query{}, err
	}

	if sort.IsSet() {
		if err := ValidateIdentifier(sort.Column); err != nil {
			return Query{}, wrap.Error(err, "invalid sort column")
		}
		query.WriteString(" ORDER BY ")
		query.WriteIdentifier(sort.Column)
		query.WriteRune(' ')
		query.WriteSortOrder(sort.DirectionOrDefault())
	}

	if pageSize > 0 {
		if page < 1 {
			return Query{}, errors.New("page must be at least 1")
		}
		query.WriteLimit(pageSize)
		query.WriteString(" OFFSET ")
		query.WriteInt((page - 1) * pageSize)
	}

	return query.Query(), nil
}

func buildDistributionQuery(
	table string,
	column string,
	filters dataset.FilterSet,
	search string,
) (Query, error) {
	if err := ValidateIdentifiers(table, column); err != nil {
		return Query{}, wrap.Error(err, "invalid table/column name in query")
	}

	var query QueryBuilder
	query.WriteString("SELECT toString(")
	query.WriteIdentifier(column)
	query.WriteString(") AS label, count() AS value FROM ")
	query.WriteIdentifier(table)
	if err := query.WriteFilters(filters, search); err != nil {
		return Query{}, err
	}
	query.WriteNotNull(column)
	query.WriteString(" GROUP BY ")
	query.WriteIdentifier(column)
	query.WriteString(" ORDER BY value DESC, label ASC")
	return query.Query(), nil
}

// Selects (category, primary_value, secondary_value). For clinical-trial tables, these are the
// summed treatment events and the summed treatment arm sizes. For label tables, they are the
// average reported proportion and the row count.
func buildAdverseEventQuery(
	table string,
	kind dataset.Kind,
	query dataset.AdverseEventQuery,
) (Query, error) {
	groupColumn := query.GroupBy.String()
	if err := ValidateIdentifiers(table, groupColumn, query.GradeColumn); err != nil {
		return Query{}, wrap.Error(err, "invalid table/column name in query")
	}

	var builder QueryBuilder
	builder.WriteString("SELECT toString(")
	builder.WriteIdentifier(groupColumn)
	builder.WriteString(") AS category, ")

	if kind == dataset.KindClinicalTrials {
		builder.WriteAggregate("sum", dataset.ColumnEventsTreatment)
		builder.WriteString(" AS primary_value, ")
		builder.WriteAggregate("sum", dataset.ColumnNTreatment)
		builder.WriteString(" AS secondary_value FROM ")
	} else {
		builder.WriteAggregate("avg", query.GradeColumn)
		builder.WriteString(" AS primary_value, toFloat64(count()) AS secondary_value FROM ")
	}

	builder.WriteIdentifier(table)
	if err := builder.WriteFilters(query.Filters, query.Search); err != nil {
		return Query{}, err
	}
	builder.WriteNotNull(groupColumn)

	if kind == dataset.KindClinicalTrials {
		builder.WriteNotNull(dataset.ColumnEventsTreatment)
		builder.WritePositive(dataset.ColumnNTreatment)
	} else {
		builder.WriteNotNull(query.GradeColumn)
	}

	builder.WriteString(" GROUP BY ")
	builder.WriteIdentifier(groupColumn)
	builder.WriteString(" ORDER BY primary_value DESC, category ASC")
	if query.TopN > 0 {
		builder.WriteLimit(query.TopN)
	}
	return builder.Query(), nil
}

// For clinical-trial tables, selects (category, treatment events, treatment n, comparator events,
// comparator n). For label tables, selects (category, treatment percent, comparator percent).
func buildComparativeQuery(
	table string,
	kind dataset.Kind,
	query dataset.ComparativeQuery,
) (Query, error) {
	groupColumn := query.GroupBy.String()
	if err := ValidateIdentifiers(table, groupColumn); err != nil {
		return Query{}, wrap.Error(err, "invalid table/column name in query")
	}

	var builder QueryBuilder
	builder.WriteString("SELECT toString(")
	builder.WriteIdentifier(groupColumn)
	builder.WriteString(") AS category, ")

	if kind == dataset.KindClinicalTrials {
		builder.WriteAggregate("sum", dataset.ColumnEventsTreatment)
		builder.WriteString(" AS treatment, ")
		builder.WriteAggregate("max", dataset.ColumnNTreatment)
		builder.WriteString(", ")
		builder.WriteAggregate("sum", dataset.ColumnEventsComparator)
		builder.WriteString(", ")
		builder.WriteAggregate("max", dataset.ColumnNComparator)
	} else {
		builder.WriteAggregate("avg", dataset.ColumnAllGradesPercent)
		builder.WriteString(" AS treatment, ")
		builder.WriteAggregate("avg", dataset.ColumnComparatorAllGradesPercent)
	}

	builder.WriteString(" FROM ")
	builder.WriteIdentifier(table)
	if err := builder.WriteFilters(query.Filters, ""); err != nil {
		return Query{}, err
	}
	builder.WriteEquals(dataset.ColumnAntibody, query.Antibody)
	builder.WriteNotNull(groupColumn)
	if kind == dataset.KindClinicalTrials {
		if query.NCTID != "" {
			builder.WriteEquals(dataset.ColumnNCTID, query.NCTID)
		}
		builder.WritePositive(dataset.ColumnNTreatment)
	}

	builder.WriteString(" GROUP BY ")
	builder.WriteIdentifier(groupColumn)
	builder.WriteString(" ORDER BY treatment DESC, category ASC")
	builder.WriteLimit(query.TopN)
	return builder.Query(), nil
}

// Selects (category, antibody, value) for every antibody against the target, where value is the
// adverse-event proportion in percent.
func buildTargetQuery(table string, kind dataset.Kind, query dataset.TargetQuery) (Query, error) {
	groupColumn := query.GroupBy.String()
	if err := ValidateIdentifiers(table, groupColumn); err != nil {
		return Query{}, wrap.Error(err, "invalid table/column name in query")
	}

	var builder QueryBuilder
	builder.WriteString("SELECT toString(")
	builder.WriteIdentifier(groupColumn)
	builder.WriteString(") AS category, toString(")
	builder.WriteIdentifier(dataset.ColumnAntibody)
	builder.WriteString(") AS entity, ")

	if kind == dataset.KindClinicalTrials {
		builder.WriteString("ifNull(100 * sum(")
		builder.WriteNumber(dataset.ColumnEventsTreatment)
		builder.WriteString(") / sum(")
		builder.WriteNumber(dataset.ColumnNTreatment)
		builder.WriteString("), 0)")
	} else {
		builder.WriteAggregate("avg", dataset.ColumnAllGradesPercent)
	}

	builder.WriteString(" AS value FROM ")
	builder.WriteIdentifier(table)
	if err := builder.WriteFilters(query.Filters, ""); err != nil {
		return Query{}, err
	}
	builder.WriteEquals(dataset.ColumnTarget, query.Target)
	builder.WriteNotNull(groupColumn)
	builder.WriteNotNull(dataset.ColumnAntibody)
	if kind == dataset.KindClinicalTrials {
		builder.WritePositive(dataset.ColumnNTreatment)
	} else {
		builder.WriteNotNull(dataset.ColumnAllGradesPercent)
	}

	builder.WriteString(" GROUP BY ")
	builder.WriteIdentifier(groupColumn)
	builder.WriteString(", ")
	builder.WriteIdentifier(dataset.ColumnAntibody)
	builder.WriteString(" ORDER BY category ASC, entity ASC")
	return builder.Query(), nil
}
