package clickhouse

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

// Scans rows of any schema, using the scan types reported by the driver for each column.
func scanRecords(rows driver.Rows) ([]dataset.Record, error) {
	columns := rows.Columns()
	columnTypes := rows.ColumnTypes()

	records := []dataset.Record{}
	for rows.Next() {
		pointers := make([]any, len(columnTypes))
		for i, columnType := range columnTypes {
			pointers[i] = reflect.New(columnType.ScanType()).Interface()
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, wrap.Error(err, "failed to scan result row")
		}

		record := make(dataset.Record, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(reflect.ValueOf(pointers[i]).Elem())
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap.Error(err, "failed to read result rows")
	}
	return records, nil
}

// Dereferences nullable values, and maps non-finite floats to nil since they cannot be encoded as
// JSON.
func normalizeValue(value reflect.Value) any {
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Float32, reflect.Float64:
		float := value.Float()
		if math.IsNaN(float) || math.IsInf(float, 0) {
			return nil
		}
	case reflect.Invalid:
		return nil
	}

	return value.Interface()
}

func formatCSVValue(value any) string {
	switch value := value.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case time.Time:
		return value.Format(time.RFC3339)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

// Scans single-string rows, skipping empty values.
func scanStrings(rows driver.Rows) ([]string, error) {
	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, wrap.Error(err, "failed to scan result row")
		}
		if value != "" {
			values = append(values, value)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, wrap.Error(err, "failed to read result rows")
	}
	return values, nil
}
