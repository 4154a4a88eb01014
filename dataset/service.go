package dataset

import (
	"context"
	"errors"
)

const (
	DefaultPageSize          = 50
	DefaultAdverseEventTopN  = 25
	DefaultComparativeTopN   = 15
	DefaultGradeColumn       = ColumnAllGradesPercent
	DefaultAggregateTopN     = 15
	DefaultCrossDatasetTopN  = 15
	DefaultVocabularyMaxSize = 10000

	// Backends that merge cross-dataset results themselves fetch each source with this limit,
	// since the merged ranking may pick categories that rank low in one source.
	CrossDatasetSourceTopN = 1000
)

// ErrUnsupported is returned by backends that cannot serve a request kind.
var ErrUnsupported = errors.New("not supported by this backend")

type RowQuery struct {
	Dataset  Selector
	Filters  FilterSet
	Search   string
	Page     int
	PageSize int
	Sort     Sort
}

type AdverseEventQuery struct {
	Dataset     Selector
	GroupBy     GroupBy
	Filters     FilterSet
	Search      string
	TopN        int
	GradeColumn string
}

type ComparativeQuery struct {
	Dataset  Selector
	Antibody string
	// Optional: restricts the comparison to a single study.
	NCTID   string
	GroupBy GroupBy
	Filters FilterSet
	TopN    int
}

type TargetQuery struct {
	Dataset Selector
	Target  string
	GroupBy GroupBy
	Filters FilterSet
	TopN    int
}

type CrossDatasetQuery struct {
	Antibody string
	GroupBy  GroupBy
	Filters  FilterSet
	TopN     int
}

// Service is the dataset service that owns filtering and aggregation. Callers only shape its
// replies.
type Service interface {
	FilterOptions(ctx context.Context, dataset Selector) (Vocabulary, error)
	QueryRows(ctx context.Context, query RowQuery) (ResultPage, error)
	Distribution(
		ctx context.Context,
		dataset Selector,
		column string,
		filters FilterSet,
		search string,
	) (Distribution, error)
	AdverseEventSummary(ctx context.Context, query AdverseEventQuery) (AdverseEventSummary, error)
	Comparative(ctx context.Context, query ComparativeQuery) (ComparativeResult, error)
	TargetAggregate(ctx context.Context, query TargetQuery) (TargetAggregation, error)
	CrossDataset(ctx context.Context, query CrossDatasetQuery) (CrossDatasetResult, error)
}

// Catalog lists the entities that chart pickers offer.
type Catalog interface {
	Tables(ctx context.Context) ([]TableInfo, error)
	// Returns an empty list for datasets without study-level data.
	Studies(ctx context.Context, dataset Selector, antibody string) ([]string, error)
	Targets(ctx context.Context, dataset Selector) ([]string, error)
	// Antibodies present in both the clinical-trial and the final label dataset.
	OverlappingAntibodies(ctx context.Context) ([]string, error)
	AntibodiesWithComparator(ctx context.Context, dataset Selector) ([]string, error)
}

// Exporter builds a locator for a bulk download of the filtered dataset. It does not fetch.
type Exporter interface {
	ExportURL(dataset Selector, filters FilterSet, search string) (string, error)
}

func (query RowQuery) WithDefaults() RowQuery {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = DefaultPageSize
	}
	return query
}

func (query AdverseEventQuery) WithDefaults() AdverseEventQuery {
	query.GroupBy = query.GroupBy.OrDefault()
	if query.TopN < 1 {
		query.TopN = DefaultAdverseEventTopN
	}
	if query.GradeColumn == "" {
		query.GradeColumn = DefaultGradeColumn
	}
	return query
}

func (query ComparativeQuery) WithDefaults() ComparativeQuery {
	query.GroupBy = query.GroupBy.OrDefault()
	if query.TopN < 1 {
		query.TopN = DefaultComparativeTopN
	}
	return query
}

func (query TargetQuery) WithDefaults() TargetQuery {
	query.GroupBy = query.GroupBy.OrDefault()
	if query.TopN < 1 {
		query.TopN = DefaultAggregateTopN
	}
	return query
}

func (query CrossDatasetQuery) WithDefaults() CrossDatasetQuery {
	query.GroupBy = query.GroupBy.OrDefault()
	if query.TopN < 1 {
		query.TopN = DefaultCrossDatasetTopN
	}
	return query
}
