// Package orchestrator drives an explorer session: it owns the query state, fetches results,
// distributions and the adverse-event summary from the dataset service, and publishes immutable
// snapshots. Responses from superseded generations are discarded.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"hermannm.dev/mabexplorer/analytics"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/log"
	"hermannm.dev/mabexplorer/querystate"
	"hermannm.dev/wrap"
)

var (
	ErrNoDataset      = errors.New("no dataset selected")
	ErrOptionsLoading = errors.New("filter options are still loading")
	ErrClosed         = errors.New("orchestrator is closed")
)

// DefaultDimensions are the distribution charts shown for every dataset.
var DefaultDimensions = []dataset.Dimension{
	{Column: "record_category", Title: "Record Category"},
	{Column: "general_molecular_category", Title: "General Molecular Category"},
	{Column: "moa_new", Title: "Mechanism of Action"},
	{Column: dataset.ColumnTarget, Title: "Targets"},
}

type Options struct {
	PageSize   int
	Dimensions []dataset.Dimension
	// Maximum number of slices per distribution, see analytics.Consolidate.
	MaxSlices           int
	AdverseEventTopN    int
	AdverseEventGroupBy dataset.GroupBy
	// Optional.
	Metrics *Metrics
	// Receives every published snapshot, in publication order. Must not call back into the
	// Orchestrator.
	OnPublish func(Snapshot)
}

func (options Options) withDefaults() Options {
	if options.PageSize < 1 {
		options.PageSize = dataset.DefaultPageSize
	}
	if options.Dimensions == nil {
		options.Dimensions = DefaultDimensions
	}
	if options.MaxSlices < 1 {
		options.MaxSlices = analytics.DefaultMaxSlices
	}
	if options.AdverseEventTopN < 1 {
		options.AdverseEventTopN = dataset.DefaultAdverseEventTopN
	}
	options.AdverseEventGroupBy = options.AdverseEventGroupBy.OrDefault()
	return options
}

// ApplyRequest selects the page and sort of an apply.
type ApplyRequest struct {
	// Defaults to 1.
	Page int
	// Nil keeps the current sort. A zero Sort returns to backend ordering.
	Sort *dataset.Sort
	// When set, the current sort is toggled on this column, see dataset.Sort.Toggle. Takes
	// precedence over Sort.
	ToggleColumn string
}

// Orchestrator is safe for concurrent use. Service calls run on their own goroutines; no method
// blocks on the dataset service except the auxiliary chart loads.
type Orchestrator struct {
	service  dataset.Service
	catalog  dataset.Catalog
	exporter dataset.Exporter
	options  Options
	metrics  *Metrics
	session  uuid.UUID

	lock       sync.Mutex
	status     Status
	state      querystate.State
	generation Generation
	// Incremented on every dataset selection, to discard auxiliary chart loads for a previous
	// dataset.
	datasetEpoch uint64
	// Incremented on every adverse-event dispatch, so that only the latest request of a
	// generation fills the slot.
	adverseEventRequest uint64
	adverseEventGroupBy dataset.GroupBy

	vocabulary    dataset.Vocabulary
	vocabularyErr error
	results       *dataset.ResultPage
	distributions []dataset.NamedDistribution
	adverseEvents *dataset.AdverseEventSummary
	err           error

	ctx      context.Context
	closeCtx context.CancelFunc
	// Cancelled when the generation is superseded.
	fetchCtx    context.Context
	cancelFetch context.CancelFunc
	closed      bool
	inFlight    sync.WaitGroup

	latest Snapshot

	publishLock sync.Mutex
}

// New creates an idle orchestrator. If service also implements dataset.Catalog or
// dataset.Exporter, the corresponding auxiliary methods become available.
func New(service dataset.Service, options Options) *Orchestrator {
	options = options.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	orchestrator := &Orchestrator{
		service:             service,
		options:             options,
		metrics:             options.Metrics,
		session:             uuid.New(),
		status:              StatusIdle,
		adverseEventGroupBy: options.AdverseEventGroupBy,
		ctx:                 ctx,
		closeCtx:            cancel,
	}
	orchestrator.catalog, _ = service.(dataset.Catalog)
	orchestrator.exporter, _ = service.(dataset.Exporter)

	orchestrator.snapshotLocked()
	return orchestrator
}

// SelectDataset switches to a new dataset, resetting filters, search, sort, page and all
// results, and loads the dataset's filter options. Once they have loaded, page 1 is applied.
func (orchestrator *Orchestrator) SelectDataset(selector dataset.Selector) error {
	if !selector.IsValid() {
		return wrap.Errorf(dataset.ErrInvalidDataset, "failed to select dataset %d", selector)
	}

	orchestrator.lock.Lock()
	if orchestrator.closed {
		orchestrator.lock.Unlock()
		return ErrClosed
	}

	ctx, generation := orchestrator.nextGenerationLocked()
	orchestrator.datasetEpoch++
	orchestrator.state = querystate.New(selector)
	orchestrator.status = StatusOptionsLoading
	orchestrator.vocabulary = nil
	orchestrator.vocabularyErr = nil
	orchestrator.results = nil
	orchestrator.distributions = nil
	orchestrator.adverseEvents = nil
	orchestrator.err = nil

	orchestrator.inFlight.Add(1)
	go orchestrator.loadVocabulary(ctx, generation, selector)

	log.Debug(
		"selected dataset",
		slog.String("dataset", selector.String()),
		slog.Uint64("generation", uint64(generation)),
	)
	orchestrator.unlockAndPublish(orchestrator.snapshotLocked())
	return nil
}

func (orchestrator *Orchestrator) loadVocabulary(
	ctx context.Context,
	generation Generation,
	selector dataset.Selector,
) {
	defer orchestrator.inFlight.Done()

	vocabulary, err := orchestrator.service.FilterOptions(ctx, selector)

	orchestrator.lock.Lock()
	if !orchestrator.isCurrentLocked(generation, slotVocabulary) {
		orchestrator.lock.Unlock()
		return
	}

	if err != nil {
		err = wrap.Errorf(err, "failed to load filter options for %s", selector.Label())
		orchestrator.metrics.fetchFailed(FailureVocabularyUnavailable)
		log.WarnCause(err, "filter options unavailable", failureAttr(FailureVocabularyUnavailable))

		orchestrator.vocabularyErr = err
		orchestrator.err = err
		orchestrator.status = StatusError
	} else {
		orchestrator.vocabulary = vocabulary
		orchestrator.status = StatusReady
		if _, err := orchestrator.applyLocked(ApplyRequest{Page: 1}); err != nil {
			log.ErrorCause(err, "failed to apply after loading filter options")
		}
	}

	orchestrator.unlockAndPublish(orchestrator.snapshotLocked())
}

// Apply fetches the given page of the current query state, with all distributions and the
// adverse-event summary, under a new generation. It returns once the fetches are dispatched.
//
// Fails with ErrNoDataset before the first dataset selection, with ErrOptionsLoading while
// filter options load, and with querystate.ErrPageOutOfRange when the page is outside the last
// published results. Failed calls leave the generation unchanged.
func (orchestrator *Orchestrator) Apply(request ApplyRequest) (Generation, error) {
	orchestrator.lock.Lock()
	generation, err := orchestrator.applyLocked(request)
	if err != nil {
		orchestrator.lock.Unlock()
		return 0, err
	}
	orchestrator.unlockAndPublish(orchestrator.snapshotLocked())
	return generation, nil
}

func (orchestrator *Orchestrator) applyLocked(request ApplyRequest) (Generation, error) {
	switch {
	case orchestrator.closed:
		return 0, ErrClosed
	case orchestrator.status == StatusIdle:
		return 0, ErrNoDataset
	case orchestrator.status == StatusOptionsLoading:
		return 0, ErrOptionsLoading
	}

	state := orchestrator.state
	switch {
	case request.ToggleColumn != "":
		sort := state.Sort().Toggle(request.ToggleColumn)
		state = state.WithSort(sort.Column, sort.Direction)
	case request.Sort != nil:
		state = state.WithSort(request.Sort.Column, request.Sort.DirectionOrDefault())
	}

	page := request.Page
	if page == 0 {
		page = 1
	}
	state, err := state.WithPage(page, orchestrator.totalPagesLocked())
	if err != nil {
		return 0, err
	}

	ctx, generation := orchestrator.nextGenerationLocked()
	orchestrator.state = state
	orchestrator.status = StatusQuerying
	orchestrator.err = nil

	orchestrator.inFlight.Add(1)
	go orchestrator.fetchBatch(ctx, generation, state)

	orchestrator.dispatchAdverseEventsLocked(ctx, generation)

	log.Debug(
		"applied query",
		slog.String("dataset", state.Dataset().String()),
		slog.Int("page", state.Page()),
		slog.Uint64("generation", uint64(generation)),
	)
	return generation, nil
}

// nextGenerationLocked cancels the fetches of the current generation and starts a new one.
func (orchestrator *Orchestrator) nextGenerationLocked() (context.Context, Generation) {
	if orchestrator.cancelFetch != nil {
		orchestrator.cancelFetch()
	}
	ctx, cancel := context.WithCancel(orchestrator.ctx)
	orchestrator.fetchCtx = ctx
	orchestrator.cancelFetch = cancel

	orchestrator.generation++
	orchestrator.metrics.generationStarted()
	return ctx, orchestrator.generation
}

// fetchBatch loads the paged result and all distributions. Distribution failures degrade to an
// empty distribution; only a failed paged result fails the batch.
func (orchestrator *Orchestrator) fetchBatch(
	ctx context.Context,
	generation Generation,
	state querystate.State,
) {
	defer orchestrator.inFlight.Done()
	start := time.Now()

	dimensions := orchestrator.options.Dimensions
	distributions := make([]dataset.NamedDistribution, len(dimensions))
	var page dataset.ResultPage

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		page, err = orchestrator.service.QueryRows(
			groupCtx,
			state.RowQuery(orchestrator.options.PageSize),
		)
		if err != nil {
			return wrap.Error(err, "failed to query rows")
		}
		return nil
	})

	for i, dimension := range dimensions {
		group.Go(func() error {
			distribution, err := orchestrator.service.Distribution(
				groupCtx,
				state.Dataset(),
				dimension.Column,
				state.Filters(),
				state.Search(),
			)
			if err != nil {
				if groupCtx.Err() == nil {
					orchestrator.metrics.fetchFailed(FailureSecondaryFetchFailed)
					log.WarnCause(
						err,
						"distribution fetch failed, showing empty chart",
						slog.String("column", dimension.Column),
						failureAttr(FailureSecondaryFetchFailed),
					)
				}
				distributions[i] = dataset.NamedDistribution{
					Dimension:    dimension,
					Distribution: dataset.EmptyDistribution(),
					Degraded:     true,
				}
				return nil
			}

			distributions[i] = dataset.NamedDistribution{
				Dimension:    dimension,
				Distribution: analytics.Consolidate(distribution, orchestrator.options.MaxSlices),
			}
			return nil
		})
	}

	err := group.Wait()
	orchestrator.metrics.batchResolved(time.Since(start))

	orchestrator.lock.Lock()
	if !orchestrator.isCurrentLocked(generation, slotBatch) {
		orchestrator.lock.Unlock()
		return
	}

	if err != nil {
		orchestrator.metrics.fetchFailed(FailureQueryFailed)
		log.ErrorCause(err, "query failed", failureAttr(FailureQueryFailed))
		orchestrator.err = err
		orchestrator.status = StatusError
	} else {
		orchestrator.results = &page
		orchestrator.distributions = distributions
		orchestrator.status = StatusReady
	}

	orchestrator.unlockAndPublish(orchestrator.snapshotLocked())
}

func (orchestrator *Orchestrator) dispatchAdverseEventsLocked(
	ctx context.Context,
	generation Generation,
) {
	orchestrator.adverseEventRequest++
	request := orchestrator.adverseEventRequest

	query := dataset.AdverseEventQuery{
		Dataset: orchestrator.state.Dataset(),
		GroupBy: orchestrator.adverseEventGroupBy,
		Filters: orchestrator.state.Filters(),
		Search:  orchestrator.state.Search(),
		TopN:    orchestrator.options.AdverseEventTopN,
	}.WithDefaults()

	orchestrator.inFlight.Add(1)
	go orchestrator.fetchAdverseEvents(ctx, generation, request, query)
}

// fetchAdverseEvents fills the adverse-event slot. It does not gate the batch: the slot is
// updated whenever the summary arrives, as long as its generation is still current.
func (orchestrator *Orchestrator) fetchAdverseEvents(
	ctx context.Context,
	generation Generation,
	request uint64,
	query dataset.AdverseEventQuery,
) {
	defer orchestrator.inFlight.Done()

	summary, err := orchestrator.service.AdverseEventSummary(ctx, query)

	orchestrator.lock.Lock()
	if !orchestrator.isCurrentLocked(generation, slotAdverseEvents) ||
		request != orchestrator.adverseEventRequest {
		orchestrator.lock.Unlock()
		return
	}

	if err != nil {
		orchestrator.metrics.fetchFailed(FailureSecondaryFetchFailed)
		log.WarnCause(
			err,
			"adverse-event summary fetch failed, showing empty chart",
			failureAttr(FailureSecondaryFetchFailed),
		)
		summary = dataset.EmptyAdverseEventSummary(query.GroupBy)
	} else {
		summary.GroupBy = query.GroupBy
	}
	orchestrator.adverseEvents = &summary

	orchestrator.unlockAndPublish(orchestrator.snapshotLocked())
}

// isCurrentLocked reports whether a response of the given generation may still be applied, and
// records the discard otherwise.
func (orchestrator *Orchestrator) isCurrentLocked(generation Generation, slot string) bool {
	if orchestrator.closed {
		return false
	}
	if generation != orchestrator.generation {
		orchestrator.metrics.staleResponse(slot)
		log.Debug(
			"discarded stale response",
			slog.String("slot", slot),
			slog.Uint64("generation", uint64(generation)),
			slog.Uint64("currentGeneration", uint64(orchestrator.generation)),
			failureAttr(FailureStaleResponseDiscarded),
		)
		return false
	}
	return true
}

func (orchestrator *Orchestrator) totalPagesLocked() int {
	if orchestrator.results == nil {
		return 0
	}
	return orchestrator.results.TotalPages()
}

// ToggleSort applies page 1 sorted by the given column, flipping the direction if the column is
// already sorted ascending.
func (orchestrator *Orchestrator) ToggleSort(column string) (Generation, error) {
	return orchestrator.Apply(ApplyRequest{Page: 1, ToggleColumn: column})
}

// GoToPage applies the given page with the current sort.
func (orchestrator *Orchestrator) GoToPage(page int) (Generation, error) {
	return orchestrator.Apply(ApplyRequest{Page: page})
}

// SetFilters replaces the filters of the query state. Like the other filter and search
// mutators, it does not query: call Apply for that.
func (orchestrator *Orchestrator) SetFilters(filters dataset.FilterSet) error {
	return orchestrator.updateState(func(state querystate.State) querystate.State {
		return state.WithFilters(filters)
	})
}

// ToggleFilter adds the value to the column's filter, or removes it if already present.
func (orchestrator *Orchestrator) ToggleFilter(column string, value string) error {
	return orchestrator.updateState(func(state querystate.State) querystate.State {
		return state.WithFilters(state.Filters().Toggle(column, value))
	})
}

// SetFilterValues replaces the column's filter. No values removes it.
func (orchestrator *Orchestrator) SetFilterValues(column string, values ...string) error {
	return orchestrator.updateState(func(state querystate.State) querystate.State {
		return state.WithFilters(state.Filters().With(column, values...))
	})
}

func (orchestrator *Orchestrator) SetSearch(search string) error {
	return orchestrator.updateState(func(state querystate.State) querystate.State {
		return state.WithSearch(search)
	})
}

// ClearFilters drops all filters and the search term, keeping dataset, sort and page.
func (orchestrator *Orchestrator) ClearFilters() error {
	return orchestrator.updateState(querystate.State.ClearFilters)
}

func (orchestrator *Orchestrator) updateState(
	transition func(querystate.State) querystate.State,
) error {
	orchestrator.lock.Lock()
	if orchestrator.closed {
		orchestrator.lock.Unlock()
		return ErrClosed
	}
	if orchestrator.status == StatusIdle {
		orchestrator.lock.Unlock()
		return ErrNoDataset
	}

	orchestrator.state = transition(orchestrator.state)
	orchestrator.unlockAndPublish(orchestrator.snapshotLocked())
	return nil
}

// SetAdverseEventGroupBy changes the grouping of the adverse-event summary. Once results have
// been requested for the dataset, the summary is re-fetched under the current generation.
func (orchestrator *Orchestrator) SetAdverseEventGroupBy(groupBy dataset.GroupBy) error {
	if !groupBy.IsValid() {
		return wrap.Errorf(dataset.ErrInvalidGroupBy, "failed to set adverse-event grouping")
	}

	orchestrator.lock.Lock()
	if orchestrator.closed {
		orchestrator.lock.Unlock()
		return ErrClosed
	}

	orchestrator.adverseEventGroupBy = groupBy
	switch orchestrator.status {
	case StatusIdle, StatusOptionsLoading:
		orchestrator.lock.Unlock()
		return nil
	}
	orchestrator.dispatchAdverseEventsLocked(orchestrator.fetchCtx, orchestrator.generation)
	orchestrator.lock.Unlock()
	return nil
}

func (orchestrator *Orchestrator) Snapshot() Snapshot {
	orchestrator.lock.Lock()
	defer orchestrator.lock.Unlock()
	return orchestrator.latest
}

// Wait blocks until every dispatched fetch has settled.
func (orchestrator *Orchestrator) Wait() {
	orchestrator.inFlight.Wait()
}

// Close cancels in-flight fetches and waits for them to return. Their responses are discarded.
func (orchestrator *Orchestrator) Close() {
	orchestrator.lock.Lock()
	orchestrator.closed = true
	orchestrator.lock.Unlock()

	orchestrator.closeCtx()
	orchestrator.inFlight.Wait()
}

func (orchestrator *Orchestrator) snapshotLocked() Snapshot {
	orchestrator.latest = Snapshot{
		Session:       orchestrator.session,
		Generation:    orchestrator.generation,
		Status:        orchestrator.status,
		State:         orchestrator.state,
		Vocabulary:    orchestrator.vocabulary,
		VocabularyErr: orchestrator.vocabularyErr,
		Results:       orchestrator.results,
		Distributions: orchestrator.distributions,
		AdverseEvents: orchestrator.adverseEvents,
		Err:           orchestrator.err,
	}
	return orchestrator.latest
}

// unlockAndPublish releases the state lock and hands the snapshot to OnPublish. The publish lock
// is taken before the state lock is released, so snapshots are published in transition order.
func (orchestrator *Orchestrator) unlockAndPublish(snapshot Snapshot) {
	if orchestrator.options.OnPublish == nil {
		orchestrator.lock.Unlock()
		return
	}

	orchestrator.publishLock.Lock()
	orchestrator.lock.Unlock()
	defer orchestrator.publishLock.Unlock()

	orchestrator.options.OnPublish(snapshot)
}

func failureAttr(kind FailureKind) slog.Attr {
	return slog.String("failure", kind.String())
}
