package orchestrator

import "hermannm.dev/enumnames"

type Status uint8

const (
	StatusIdle Status = iota + 1
	StatusOptionsLoading
	StatusReady
	StatusQuerying
	StatusError
)

var statusMap = enumnames.NewMap(map[Status]string{
	StatusIdle:           "IDLE",
	StatusOptionsLoading: "OPTIONS_LOADING",
	StatusReady:          "READY",
	StatusQuerying:       "QUERYING",
	StatusError:          "ERROR",
})

func (status Status) IsValid() bool {
	return statusMap.ContainsEnumValue(status)
}

func (status Status) String() string {
	return statusMap.GetNameOrFallback(status, "INVALID_STATUS")
}

func (status Status) MarshalJSON() ([]byte, error) {
	return statusMap.MarshalToNameJSON(status)
}

func (status *Status) UnmarshalJSON(bytes []byte) error {
	return statusMap.UnmarshalFromNameJSON(bytes, status)
}

// FailureKind classifies fetch failures for logs and metrics.
type FailureKind uint8

const (
	// The filter-option fetch failed. Querying still works without filter options.
	FailureVocabularyUnavailable FailureKind = iota + 1
	// The paged-result fetch failed, moving the orchestrator to StatusError.
	FailureQueryFailed
	// A distribution, adverse-event summary or chart fetch failed and was replaced by an empty
	// result.
	FailureSecondaryFetchFailed
	// A response arrived for a superseded generation and was dropped.
	FailureStaleResponseDiscarded
)

var failureKindMap = enumnames.NewMap(map[FailureKind]string{
	FailureVocabularyUnavailable:  "VOCABULARY_UNAVAILABLE",
	FailureQueryFailed:            "QUERY_FAILED",
	FailureSecondaryFetchFailed:   "SECONDARY_FETCH_FAILED",
	FailureStaleResponseDiscarded: "STALE_RESPONSE_DISCARDED",
})

func (kind FailureKind) IsValid() bool {
	return failureKindMap.ContainsEnumValue(kind)
}

func (kind FailureKind) String() string {
	return failureKindMap.GetNameOrFallback(kind, "INVALID_FAILURE_KIND")
}

func (kind FailureKind) MarshalJSON() ([]byte, error) {
	return failureKindMap.MarshalToNameJSON(kind)
}

func (kind *FailureKind) UnmarshalJSON(bytes []byte) error {
	return failureKindMap.UnmarshalFromNameJSON(bytes, kind)
}
