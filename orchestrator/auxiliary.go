package orchestrator

import (
	"context"
	"log/slog"

	"hermannm.dev/mabexplorer/analytics"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/log"
	"hermannm.dev/mabexplorer/querystate"
)

// Chart loads below run on the caller's goroutine, outside the generation machinery. Failures
// only log and give an empty result, and results are dropped if the dataset changed meanwhile.

type ComparativeView struct {
	Antibody string                    `json:"antibody"`
	NCTID    string                    `json:"nctId,omitempty"`
	Result   dataset.ComparativeResult `json:"result"`
	Risks    []analytics.RiskEntry     `json:"risks"`
}

// Comparative loads treatment against comparator proportions for an antibody, optionally in a
// single study, and ranks the relative risks.
func (orchestrator *Orchestrator) Comparative(
	ctx context.Context,
	antibody string,
	nctID string,
	groupBy dataset.GroupBy,
) (ComparativeView, error) {
	view := ComparativeView{Antibody: antibody, NCTID: nctID, Risks: []analytics.RiskEntry{}}

	state, epoch, err := orchestrator.chartState()
	if err != nil {
		return view, err
	}

	result, err := orchestrator.service.Comparative(ctx, dataset.ComparativeQuery{
		Dataset:  state.Dataset(),
		Antibody: antibody,
		NCTID:    nctID,
		GroupBy:  groupBy,
		Filters:  state.Filters(),
	}.WithDefaults())
	if err != nil {
		orchestrator.chartFailed(err, "comparative")
		return view, nil
	}
	if !orchestrator.isCurrentDataset(epoch) {
		return view, nil
	}

	view.Result = result
	view.Risks = analytics.RankRisks(result)
	return view, nil
}

// TargetAggregate loads per-antibody values for every antibody against a molecular target.
func (orchestrator *Orchestrator) TargetAggregate(
	ctx context.Context,
	target string,
	groupBy dataset.GroupBy,
) (analytics.TargetView, error) {
	empty := analytics.NewTargetView(dataset.TargetAggregation{Target: target})

	state, epoch, err := orchestrator.chartState()
	if err != nil {
		return empty, err
	}

	aggregation, err := orchestrator.service.TargetAggregate(ctx, dataset.TargetQuery{
		Dataset: state.Dataset(),
		Target:  target,
		GroupBy: groupBy,
		Filters: state.Filters(),
	}.WithDefaults())
	if err != nil {
		orchestrator.chartFailed(err, "target aggregation")
		return empty, nil
	}
	if !orchestrator.isCurrentDataset(epoch) {
		return empty, nil
	}

	if aggregation.Target == "" {
		aggregation.Target = target
	}
	return analytics.NewTargetView(aggregation), nil
}

// CrossDataset compares an antibody's clinical-trial and label proportions. The active
// dataset's filters apply to both sources.
func (orchestrator *Orchestrator) CrossDataset(
	ctx context.Context,
	antibody string,
	groupBy dataset.GroupBy,
) (dataset.CrossDatasetResult, error) {
	empty := dataset.CrossDatasetResult{
		Categories:     []string{},
		ClinicalTrials: []*float64{},
		Label:          []*float64{},
	}

	state, epoch, err := orchestrator.chartState()
	if err != nil {
		return empty, err
	}

	result, err := orchestrator.service.CrossDataset(ctx, dataset.CrossDatasetQuery{
		Antibody: antibody,
		GroupBy:  groupBy,
		Filters:  state.Filters(),
	}.WithDefaults())
	if err != nil {
		orchestrator.chartFailed(err, "cross-dataset")
		return empty, nil
	}
	if !orchestrator.isCurrentDataset(epoch) {
		return empty, nil
	}
	return result, nil
}

// Studies lists the trials of an antibody in the active dataset. Label datasets have none.
func (orchestrator *Orchestrator) Studies(ctx context.Context, antibody string) ([]string, error) {
	return orchestrator.catalogList(
		"studies",
		func(selector dataset.Selector) ([]string, error) {
			return orchestrator.catalog.Studies(ctx, selector, antibody)
		},
	)
}

// Targets lists the molecular targets in the active dataset.
func (orchestrator *Orchestrator) Targets(ctx context.Context) ([]string, error) {
	return orchestrator.catalogList(
		"targets",
		func(selector dataset.Selector) ([]string, error) {
			return orchestrator.catalog.Targets(ctx, selector)
		},
	)
}

// AntibodiesWithComparator lists the antibodies of the active dataset that have comparator-arm
// data, the candidates for the comparative chart.
func (orchestrator *Orchestrator) AntibodiesWithComparator(ctx context.Context) ([]string, error) {
	return orchestrator.catalogList(
		"comparator antibodies",
		func(selector dataset.Selector) ([]string, error) {
			return orchestrator.catalog.AntibodiesWithComparator(ctx, selector)
		},
	)
}

// OverlappingAntibodies lists the antibodies present in both clinical trials and labels, the
// candidates for the cross-dataset chart.
func (orchestrator *Orchestrator) OverlappingAntibodies(ctx context.Context) ([]string, error) {
	if orchestrator.catalog == nil {
		return nil, dataset.ErrUnsupported
	}

	antibodies, err := orchestrator.catalog.OverlappingAntibodies(ctx)
	if err != nil {
		orchestrator.chartFailed(err, "overlapping antibodies")
		return []string{}, nil
	}
	return antibodies, nil
}

func (orchestrator *Orchestrator) catalogList(
	name string,
	list func(selector dataset.Selector) ([]string, error),
) ([]string, error) {
	if orchestrator.catalog == nil {
		return nil, dataset.ErrUnsupported
	}

	state, epoch, err := orchestrator.chartState()
	if err != nil {
		return nil, err
	}

	values, err := list(state.Dataset())
	if err != nil {
		orchestrator.chartFailed(err, name)
		return []string{}, nil
	}
	if !orchestrator.isCurrentDataset(epoch) {
		return []string{}, nil
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// ExportURL returns the bulk-download locator for the current dataset, filters and search.
func (orchestrator *Orchestrator) ExportURL() (string, error) {
	if orchestrator.exporter == nil {
		return "", dataset.ErrUnsupported
	}

	state, _, err := orchestrator.chartState()
	if err != nil {
		return "", err
	}
	return orchestrator.exporter.ExportURL(state.Dataset(), state.Filters(), state.Search())
}

func (orchestrator *Orchestrator) chartState() (querystate.State, uint64, error) {
	orchestrator.lock.Lock()
	defer orchestrator.lock.Unlock()

	if orchestrator.closed {
		return querystate.State{}, 0, ErrClosed
	}
	if orchestrator.status == StatusIdle {
		return querystate.State{}, 0, ErrNoDataset
	}
	return orchestrator.state, orchestrator.datasetEpoch, nil
}

func (orchestrator *Orchestrator) isCurrentDataset(epoch uint64) bool {
	orchestrator.lock.Lock()
	defer orchestrator.lock.Unlock()

	if epoch != orchestrator.datasetEpoch {
		log.Debug("discarded chart for previous dataset", failureAttr(FailureStaleResponseDiscarded))
		return false
	}
	return true
}

func (orchestrator *Orchestrator) chartFailed(err error, chart string) {
	orchestrator.metrics.fetchFailed(FailureSecondaryFetchFailed)
	log.WarnCause(
		err,
		"chart fetch failed, showing empty chart",
		slog.String("chart", chart),
		failureAttr(FailureSecondaryFetchFailed),
	)
}
