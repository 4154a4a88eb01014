package dataset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	for _, selector := range Selectors {
		parsed, err := ParseSelector(selector.String())
		require.NoError(t, err)
		assert.Equal(t, selector, parsed)
	}

	_, err := ParseSelector("ctgov_serious")
	assert.ErrorIs(t, err, ErrInvalidDataset)
}

func TestSelectorKind(t *testing.T) {
	assert.True(t, SelectorClinicalTrialsAll.IsClinicalTrials())
	assert.Equal(t, KindLabel, SelectorLabelBoxedWarning.Kind())
	assert.Equal(t, KindMutations, SelectorFcMutations.Kind())
	assert.Contains(t, SelectorClinicalTrialsAll.FilterableColumns(), "has_comparator")
	assert.NotContains(t, SelectorLabelFinal.FilterableColumns(), "has_comparator")
}

func TestSelectorJSON(t *testing.T) {
	bytes, err := json.Marshal(SelectorLabelFinal)
	require.NoError(t, err)
	assert.Equal(t, `"label_final"`, string(bytes))
}

func TestSortToggle(t *testing.T) {
	var sort Sort

	sort = sort.Toggle("antibody")
	assert.Equal(t, Sort{Column: "antibody", Direction: SortAscending}, sort)

	sort = sort.Toggle("antibody")
	assert.Equal(t, Sort{Column: "antibody", Direction: SortDescending}, sort)

	sort = sort.Toggle("antibody")
	assert.Equal(t, SortAscending, sort.Direction)

	sort = sort.Toggle("phase")
	assert.Equal(t, Sort{Column: "phase", Direction: SortAscending}, sort)
}

func TestResultPageTotalPages(t *testing.T) {
	assert.Equal(t, 1, ResultPage{Total: 0, PageSize: 50}.TotalPages())
	assert.Equal(t, 1, ResultPage{Total: 50, PageSize: 50}.TotalPages())
	assert.Equal(t, 2, ResultPage{Total: 51, PageSize: 50}.TotalPages())
	assert.Equal(t, 1, ResultPage{Total: 10}.TotalPages())
}
