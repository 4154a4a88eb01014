package dataset

import (
	"strconv"

	"hermannm.dev/enumnames"
)

type SortDirection int8

const (
	SortAscending SortDirection = iota + 1
	SortDescending
)

var sortDirectionMap = enumnames.NewMap(map[SortDirection]string{
	SortAscending:  "asc",
	SortDescending: "desc",
})

func ParseSortDirection(name string) (SortDirection, error) {
	var direction SortDirection
	if err := direction.UnmarshalJSON([]byte(strconv.Quote(name))); err != nil {
		return 0, err
	}
	return direction, nil
}

func (direction SortDirection) IsValid() bool {
	return sortDirectionMap.ContainsEnumValue(direction)
}

func (direction SortDirection) String() string {
	return sortDirectionMap.GetNameOrFallback(direction, "INVALID_SORT_DIRECTION")
}

func (direction SortDirection) MarshalJSON() ([]byte, error) {
	return sortDirectionMap.MarshalToNameJSON(direction)
}

func (direction *SortDirection) UnmarshalJSON(bytes []byte) error {
	return sortDirectionMap.UnmarshalFromNameJSON(bytes, direction)
}

// Sort orders result rows by a column. The zero value leaves ordering to the backend.
type Sort struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

func (sort Sort) IsSet() bool {
	return sort.Column != ""
}

// DirectionOrDefault returns the direction to send to the backend, which defaults to ascending.
func (sort Sort) DirectionOrDefault() SortDirection {
	if sort.Direction.IsValid() {
		return sort.Direction
	}
	return SortAscending
}

// Toggle returns the sort that results from selecting a column header: the same column flips
// from ascending to descending, anything else sorts the new column ascending.
func (sort Sort) Toggle(column string) Sort {
	if sort.Column == column && sort.DirectionOrDefault() == SortAscending {
		return Sort{Column: column, Direction: SortDescending}
	}
	return Sort{Column: column, Direction: SortAscending}
}
