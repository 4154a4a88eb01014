// Package querystate holds the canonical filter, search, sort and page selection of an explorer
// session as an immutable value.
package querystate

import (
	"encoding/json"
	"errors"
	"fmt"

	"hermannm.dev/mabexplorer/dataset"
)

var ErrPageOutOfRange = errors.New("page out of range")

// State is a complete, self-consistent snapshot of what the user is looking at. Transitions
// never modify the receiver; each returns a new State.
type State struct {
	dataset dataset.Selector
	filters dataset.FilterSet
	search  string
	sort    dataset.Sort
	page    int
}

// New returns the default state for a dataset: no filters, no search, backend sort, page 1.
func New(selector dataset.Selector) State {
	return State{dataset: selector, filters: dataset.FilterSet{}, page: 1}
}

// SwitchDataset resets every other field, since filters and sort columns do not carry over
// between tables.
func (state State) SwitchDataset(selector dataset.Selector) State {
	return New(selector)
}

func (state State) WithFilters(filters dataset.FilterSet) State {
	state.filters = filters.Clone()
	return state
}

func (state State) WithSearch(search string) State {
	state.search = search
	return state
}

// WithSort sorts by the given column. An empty column removes the sort.
func (state State) WithSort(column string, direction dataset.SortDirection) State {
	if column == "" {
		state.sort = dataset.Sort{}
	} else {
		state.sort = dataset.Sort{Column: column, Direction: direction}
	}
	return state
}

func (state State) WithoutSort() State {
	state.sort = dataset.Sort{}
	return state
}

// WithPage moves to the given page. Pages below 1, and pages above totalPages when totalPages is
// known (> 0), are rejected: the returned state is the unchanged receiver along with
// ErrPageOutOfRange.
func (state State) WithPage(page int, totalPages int) (State, error) {
	if page < 1 || (totalPages > 0 && page > totalPages) {
		return state, fmt.Errorf("%w: %d (pages: %d)", ErrPageOutOfRange, page, totalPages)
	}
	state.page = page
	return state, nil
}

// ClearFilters drops all filters and the search term, keeping dataset, sort and page.
func (state State) ClearFilters() State {
	state.filters = dataset.FilterSet{}
	state.search = ""
	return state
}

func (state State) Dataset() dataset.Selector {
	return state.dataset
}

func (state State) Filters() dataset.FilterSet {
	return state.filters.Clone()
}

func (state State) Search() string {
	return state.search
}

// An empty search term means no search.
func (state State) HasSearch() bool {
	return state.search != ""
}

func (state State) Sort() dataset.Sort {
	return state.sort
}

func (state State) Page() int {
	return state.page
}

func (state State) Equal(other State) bool {
	return state.dataset == other.dataset &&
		state.filters.Equal(other.filters) &&
		state.search == other.search &&
		state.sort == other.sort &&
		state.page == other.page
}

// RowQuery builds the paged-row request for this state.
func (state State) RowQuery(pageSize int) dataset.RowQuery {
	return dataset.RowQuery{
		Dataset:  state.dataset,
		Filters:  state.Filters(),
		Search:   state.search,
		Page:     state.page,
		PageSize: pageSize,
		Sort:     state.sort,
	}
}

type stateJSON struct {
	Dataset dataset.Selector  `json:"dataset"`
	Filters dataset.FilterSet `json:"filters"`
	Search  string            `json:"search,omitempty"`
	Sort    *dataset.Sort     `json:"sort,omitempty"`
	Page    int               `json:"page"`
}

func (state State) MarshalJSON() ([]byte, error) {
	encoded := stateJSON{
		Dataset: state.dataset,
		Filters: state.filters,
		Search:  state.search,
		Page:    state.page,
	}
	if state.sort.IsSet() {
		sort := state.sort
		encoded.Sort = &sort
	}
	return json.Marshal(encoded)
}
