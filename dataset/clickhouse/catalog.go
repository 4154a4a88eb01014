package clickhouse

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"slices"

	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/log"
	"hermannm.dev/wrap"
)

// Tables lists the datasets that exist in the database, with their row counts.
func (service Service) Tables(ctx context.Context) ([]dataset.TableInfo, error) {
	tables := []dataset.TableInfo{}
	for _, selector := range dataset.Selectors {
		query, err := buildCountQuery(selector.String(), dataset.FilterSet{}, "")
		if err != nil {
			return nil, err
		}

		var rows uint64
		if err := service.conn.QueryRow(ctx, query.String, query.Args...).Scan(&rows); err != nil {
			if hasErrorCode(err, clickhouseUnknownTableErrorCode) {
				log.Debug("dataset table not found", slog.String("table", selector.String()))
				continue
			}
			return nil, wrap.Errorf(err, "failed to count rows in table '%s'", selector)
		}

		tables = append(tables, dataset.TableInfo{Name: selector, Rows: int64(rows)})
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

	query, err := buildDistinctValuesQuery(
		selector.String(),
		dataset.ColumnNCTID,
		0,
		func(query *QueryBuilder) {
			query.WriteSearch(antibody)
		},
	)
	if err != nil {
		return nil, wrap.Error(err, "failed to build studies query")
	}

	studies, err := service.queryStrings(ctx, query)
	if err != nil {
		return nil, wrap.Error(err, "failed to list studies")
	}
	return studies, nil
}

func (service Service) Targets(ctx context.Context, selector dataset.Selector) ([]string, error) {
	table, err := tableName(selector)
	if err != nil {
		return nil, err
	}

	query, err := buildDistinctValuesQuery(table, dataset.ColumnTarget, 0, nil)
	if err != nil {
		return nil, wrap.Error(err, "failed to build targets query")
	}

	targets, err := service.queryStrings(ctx, query)
	if err != nil {
		return nil, wrap.Error(err, "failed to list targets")
	}
	return targets, nil
}

func (service Service) OverlappingAntibodies(ctx context.Context) ([]string, error) {
	var clinicalTrials, label []string
	for _, target := range []struct {
		selector   dataset.Selector
		antibodies *[]string
	}{
		{dataset.SelectorClinicalTrialsAll, &clinicalTrials},
		{dataset.SelectorLabelFinal, &label},
	} {
		query, err := buildDistinctValuesQuery(target.selector.String(), dataset.ColumnAntibody, 0, nil)
		if err != nil {
			return nil, wrap.Error(err, "failed to build antibodies query")
		}

		antibodies, err := service.queryStrings(ctx, query)
		if err != nil {
			return nil, wrap.Errorf(err, "failed to list antibodies in '%s'", target.selector)
		}
		*target.antibodies = antibodies
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
	table, err := tableName(selector)
	if err != nil {
		return nil, err
	}

	query, err := buildDistinctValuesQuery(
		table,
		dataset.ColumnAntibody,
		0,
		func(query *QueryBuilder) {
			if selector.IsClinicalTrials() {
				query.WritePositive(dataset.ColumnNComparator)
			} else {
				query.WriteNotNull(dataset.ColumnComparatorAllGradesPercent)
			}
		},
	)
	if err != nil {
		return nil, wrap.Error(err, "failed to build antibodies query")
	}

	antibodies, err := service.queryStrings(ctx, query)
	if err != nil {
		return nil, wrap.Error(err, "failed to list antibodies with comparator")
	}
	return antibodies, nil
}

// ExportCSV writes every row matching the filters and search to the given writer as CSV, with a
// header row of column names.
func (service Service) ExportCSV(
	ctx context.Context,
	selector dataset.Selector,
	filters dataset.FilterSet,
	search string,
	output io.Writer,
) error {
	table, err := tableName(selector)
	if err != nil {
		return err
	}

	query, err := buildRowsQuery(table, filters, search, dataset.Sort{}, 0, 0)
	if err != nil {
		return wrap.Error(err, "failed to build export query")
	}

	rows, err := service.query(ctx, query)
	if err != nil {
		return wrap.Error(err, "failed to export rows")
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return wrap.Error(err, "failed to parse exported rows")
	}

	return writeCSV(output, rows.Columns(), records)
}

func writeCSV(output io.Writer, columns []string, records []dataset.Record) error {
	writer := csv.NewWriter(output)
	if err := writer.Write(columns); err != nil {
		return wrap.Error(err, "failed to write CSV header")
	}

	line := make([]string, len(columns))
	for _, record := range records {
		for i, column := range columns {
			line[i] = formatCSVValue(record[column])
		}
		if err := writer.Write(line); err != nil {
			return wrap.Error(err, "failed to write CSV row")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return wrap.Error(err, "failed to flush CSV output")
	}
	return nil
}
