package dataset

import (
	"encoding/json"
	"slices"
)

// FilterSet maps column names to the set of values a row must match one of. A column that is
// absent is unrestricted. A column is never present with an empty value set, so removing the last
// value of a column removes the column.
//
// FilterSet is immutable: every operation returns a new set and leaves the receiver untouched.
type FilterSet struct {
	columns map[string][]string
}

// NewFilterSet copies the given map, dropping blank column names and empty value sets and
// removing duplicate values.
func NewFilterSet(columns map[string][]string) FilterSet {
	filters := FilterSet{columns: make(map[string][]string, len(columns))}
	for column, values := range columns {
		if column == "" {
			continue
		}
		if deduped := dedupeValues(values); len(deduped) > 0 {
			filters.columns[column] = deduped
		}
	}
	return filters
}

// With returns a copy where the given column is restricted to exactly the given values. Passing
// no values removes the column.
func (filters FilterSet) With(column string, values ...string) FilterSet {
	if column == "" {
		return filters.Clone()
	}

	deduped := dedupeValues(values)
	if len(deduped) == 0 {
		return filters.Without(column)
	}

	next := filters.Clone()
	next.columns[column] = deduped
	return next
}

func (filters FilterSet) Without(column string) FilterSet {
	next := filters.Clone()
	delete(next.columns, column)
	return next
}

// Toggle adds the value to the column's allowed set, or removes it if already present.
func (filters FilterSet) Toggle(column string, value string) FilterSet {
	values := filters.columns[column]
	if index := slices.Index(values, value); index != -1 {
		return filters.With(column, slices.Delete(slices.Clone(values), index, index+1)...)
	}
	return filters.With(column, append(slices.Clone(values), value)...)
}

func (filters FilterSet) Values(column string) []string {
	return slices.Clone(filters.columns[column])
}

func (filters FilterSet) Has(column string) bool {
	_, ok := filters.columns[column]
	return ok
}

// Columns returns the restricted columns in sorted order.
func (filters FilterSet) Columns() []string {
	columns := make([]string, 0, len(filters.columns))
	for column := range filters.columns {
		columns = append(columns, column)
	}
	slices.Sort(columns)
	return columns
}

func (filters FilterSet) Len() int {
	return len(filters.columns)
}

func (filters FilterSet) IsEmpty() bool {
	return len(filters.columns) == 0
}

func (filters FilterSet) Clone() FilterSet {
	return FilterSet{columns: filters.Map()}
}

// Map returns a copy of the underlying column -> values mapping.
func (filters FilterSet) Map() map[string][]string {
	columns := make(map[string][]string, len(filters.columns))
	for column, values := range filters.columns {
		columns[column] = slices.Clone(values)
	}
	return columns
}

// Equal compares value sets per column, ignoring value order.
func (filters FilterSet) Equal(other FilterSet) bool {
	if len(filters.columns) != len(other.columns) {
		return false
	}

	for column, values := range filters.columns {
		otherValues, ok := other.columns[column]
		if !ok || len(values) != len(otherValues) {
			return false
		}
		for _, value := range values {
			if !slices.Contains(otherValues, value) {
				return false
			}
		}
	}

	return true
}

func (filters FilterSet) MarshalJSON() ([]byte, error) {
	if filters.columns == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(filters.columns)
}

func (filters *FilterSet) UnmarshalJSON(bytes []byte) error {
	var columns map[string][]string
	if err := json.Unmarshal(bytes, &columns); err != nil {
		return err
	}
	*filters = NewFilterSet(columns)
	return nil
}

func dedupeValues(values []string) []string {
	deduped := make([]string, 0, len(values))
	for _, value := range values {
		if !slices.Contains(deduped, value) {
			deduped = append(deduped, value)
		}
	}
	return deduped
}
