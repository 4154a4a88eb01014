package dataset

import (
	"errors"
	"strconv"

	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"
)

// GroupBy is the grouping dimension of adverse-event aggregations.
type GroupBy uint8

const (
	GroupByOrganSystem GroupBy = iota + 1
	GroupByAdverseEventTerm
)

var groupByMap = enumnames.NewMap(map[GroupBy]string{
	GroupByOrganSystem:      ColumnOrganSystem,
	GroupByAdverseEventTerm: ColumnAdverseEventTerm,
})

var ErrInvalidGroupBy = errors.New("invalid grouping")

func ParseGroupBy(name string) (GroupBy, error) {
	var groupBy GroupBy
	if err := groupBy.UnmarshalJSON([]byte(strconv.Quote(name))); err != nil {
		return 0, wrap.Errorf(ErrInvalidGroupBy, "unrecognized grouping '%s'", name)
	}
	return groupBy, nil
}

// Zero value falls back to organ system, the default grouping of every chart.
func (groupBy GroupBy) OrDefault() GroupBy {
	if groupBy.IsValid() {
		return groupBy
	}
	return GroupByOrganSystem
}

func (groupBy GroupBy) IsValid() bool {
	return groupByMap.ContainsEnumValue(groupBy)
}

// Column name to group by.
func (groupBy GroupBy) String() string {
	return groupByMap.GetNameOrFallback(groupBy, "INVALID_GROUP_BY")
}

func (groupBy GroupBy) MarshalJSON() ([]byte, error) {
	return groupByMap.MarshalToNameJSON(groupBy)
}

func (groupBy *GroupBy) UnmarshalJSON(bytes []byte) error {
	return groupByMap.UnmarshalFromNameJSON(bytes, groupBy)
}
