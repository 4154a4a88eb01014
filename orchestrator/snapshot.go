package orchestrator

import (
	"encoding/json"

	"github.com/google/uuid"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/querystate"
)

// Generation tags every dataset selection and apply. Responses are only applied while their
// generation is still the current one.
type Generation uint64

// Snapshot is an immutable view of the orchestrator, published after every transition. Slices
// and maps in a snapshot are shared with later snapshots and must not be modified.
type Snapshot struct {
	Session    uuid.UUID
	Generation Generation
	Status     Status
	State      querystate.State
	Vocabulary dataset.Vocabulary
	// Set when the filter options of the current dataset could not be loaded.
	VocabularyErr error
	// The last successfully loaded page, kept through failed applies. Nil until the first
	// success for the current dataset.
	Results       *dataset.ResultPage
	Distributions []dataset.NamedDistribution
	// Nil until the summary for the current dataset first resolves.
	AdverseEvents *dataset.AdverseEventSummary
	// Set in StatusError.
	Err error
}

// TotalPages returns the page count of the published results, or 0 when unknown.
func (snapshot Snapshot) TotalPages() int {
	if snapshot.Results == nil {
		return 0
	}
	return snapshot.Results.TotalPages()
}

// DegradedDistributions lists the columns whose distribution failed to load and was replaced
// by an empty one.
func (snapshot Snapshot) DegradedDistributions() []string {
	var columns []string
	for _, distribution := range snapshot.Distributions {
		if distribution.Degraded {
			columns = append(columns, distribution.Column)
		}
	}
	return columns
}

type snapshotJSON struct {
	Session       uuid.UUID                    `json:"session"`
	Generation    Generation                   `json:"generation"`
	Status        Status                       `json:"status"`
	State         querystate.State             `json:"state"`
	Vocabulary    dataset.Vocabulary           `json:"vocabulary,omitempty"`
	VocabularyErr string                       `json:"vocabularyError,omitempty"`
	Results       *dataset.ResultPage          `json:"results,omitempty"`
	Distributions []dataset.NamedDistribution  `json:"distributions,omitempty"`
	AdverseEvents *dataset.AdverseEventSummary `json:"adverseEvents,omitempty"`
	Err           string                       `json:"error,omitempty"`
}

func (snapshot Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Session:       snapshot.Session,
		Generation:    snapshot.Generation,
		Status:        snapshot.Status,
		State:         snapshot.State,
		Vocabulary:    snapshot.Vocabulary,
		VocabularyErr: errorMessage(snapshot.VocabularyErr),
		Results:       snapshot.Results,
		Distributions: snapshot.Distributions,
		AdverseEvents: snapshot.AdverseEvents,
		Err:           errorMessage(snapshot.Err),
	})
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
