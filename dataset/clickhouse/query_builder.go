package clickhouse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

// QueryBuilder writes a query string along with its positional arguments. Values are never
// written into the query string itself, only identifiers.
type QueryBuilder struct {
	strings.Builder
	args     []any
	hasWhere bool
}

func (builder *QueryBuilder) WriteInt(i int) {
	builder.WriteString(strconv.Itoa(i))
}

// Must only be called after calling ValidateIdentifier/ValidateIdentifiers on the given identifier.
func (builder *QueryBuilder) WriteIdentifier(identifier string) {
	builder.WriteRune('`')
	builder.WriteString(identifier)
	builder.WriteRune('`')
}

// WriteLabel writes the column as a non-null string, so that filter values and chart labels
// compare equal regardless of the column's type.
func (builder *QueryBuilder) WriteLabel(column string) {
	builder.WriteString("ifNull(toString(")
	builder.WriteIdentifier(column)
	builder.WriteString("), '')")
}

func (builder *QueryBuilder) WriteArg(arg any) {
	builder.WriteRune('?')
	builder.args = append(builder.args, arg)
}

func (builder *QueryBuilder) Args() []any {
	return builder.args
}

// WriteCondition starts the WHERE clause on first call, and joins later conditions with AND.
func (builder *QueryBuilder) WriteCondition() {
	if builder.hasWhere {
		builder.WriteString(" AND ")
	} else {
		builder.WriteString(" WHERE ")
		builder.hasWhere = true
	}
}

// WriteFilters writes one IN condition per filtered column, and a case-insensitive substring
// match on the search column if search is non-empty.
func (builder *QueryBuilder) WriteFilters(filters dataset.FilterSet, search string) error {
	columns := filters.Columns()
	if err := ValidateIdentifiers(columns...); err != nil {
		return wrap.Error(err, "invalid filter column")
	}

	for _, column := range columns {
		builder.WriteCondition()
		builder.WriteLabel(column)
		builder.WriteString(" IN (")
		for i, value := range filters.Values(column) {
			if i != 0 {
				builder.WriteString(", ")
			}
			builder.WriteArg(value)
		}
		builder.WriteRune(')')
	}

	builder.WriteSearch(search)
	return nil
}

// Does nothing if search is empty.
func (builder *QueryBuilder) WriteSearch(search string) {
	if search == "" {
		return
	}

	builder.WriteCondition()
	builder.WriteString("positionCaseInsensitiveUTF8(")
	builder.WriteLabel(dataset.SearchColumn)
	builder.WriteString(", ")
	builder.WriteArg(search)
	builder.WriteString(") > 0")
}

func (builder *QueryBuilder) WriteSortOrder(direction dataset.SortDirection) (ok bool) {
	switch direction {
	case dataset.SortAscending:
		builder.WriteString("ASC")
		return true
	case dataset.SortDescending:
		builder.WriteString("DESC")
		return true
	default:
		return false
	}
}

func (builder *QueryBuilder) WriteLimit(limit int) {
	builder.WriteString(" LIMIT ")
	builder.WriteInt(limit)
}

func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return errors.New("identifier is blank")
	}
	if strings.ContainsRune(identifier, '`') {
		return fmt.Errorf("'%s' contains `, which is incompatible with database", identifier)
	}

	return nil
}

func ValidateIdentifiers(identifiers ...string) error {
	for _, identifier := range identifiers {
		if err := ValidateIdentifier(identifier); err != nil {
			return err
		}
	}

	return nil
}
