package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/dataset/httpapi"
)

type recordedRequest struct {
	method string
	path   string
	query  url.Values
	body   map[string]any
	header http.Header
}

// newTestServer serves the given JSON responses by path and records every request.
func newTestServer(
	t *testing.T,
	responses map[string]string,
) (*httpapi.Client, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		request := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			header: r.Header.Clone(),
		}
		if r.Method == http.MethodPost {
			bytes, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(bytes, &request.body))
		}
		requests = append(requests, request)

		response, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client, err := httpapi.NewClient(httpapi.Config{BaseURL: server.URL + "/api/"}, server.Client())
	require.NoError(t, err)

	return client, &requests
}

func TestQueryRows(t *testing.T) {
	client, requests := newTestServer(t, map[string]string{
		"/api/query": `{"data":[{"antibody":"Nivolumab","n_ab":120}],"total":1,"page":2,"page_size":50}`,
	})

	page, err := client.QueryRows(context.Background(), dataset.RowQuery{
		Dataset: dataset.SelectorLabelFinal,
		Filters: dataset.FilterSet{}.With(dataset.ColumnTarget, "PD-1"),
		Page:    2,
		Sort:    dataset.Sort{Column: dataset.ColumnAntibody, Direction: dataset.SortDescending},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Nivolumab", page.Rows[0][dataset.ColumnAntibody])

	require.Len(t, *requests, 1)
	request := (*requests)[0]
	assert.Equal(t, http.MethodPost, request.method)
	assert.Equal(t, "label_final", request.body["table"])
	assert.Equal(t, map[string]any{dataset.ColumnTarget: []any{"PD-1"}}, request.body["filters"])
	assert.Contains(t, request.body, "search")
	assert.Nil(t, request.body["search"], "empty search is sent as null")
	assert.Equal(t, float64(dataset.DefaultPageSize), request.body["page_size"])
	assert.Equal(t, dataset.ColumnAntibody, request.body["sort_by"])
	assert.Equal(t, "desc", request.body["sort_dir"])
	assert.NotEmpty(t, request.header.Get("X-Request-ID"))
}

func TestQueryRowsWithoutSort(t *testing.T) {
	client, requests := newTestServer(t, map[string]string{
		"/api/query": `{"data":null,"total":0,"page":1,"page_size":50}`,
	})

	page, err := client.QueryRows(context.Background(), dataset.RowQuery{
		Dataset: dataset.SelectorClinicalTrialsAll,
		Search:  "nivo",
	})
	require.NoError(t, err)
	assert.NotNil(t, page.Rows)

	body := (*requests)[0].body
	assert.Equal(t, map[string]any{}, body["filters"])
	assert.Equal(t, "nivo", body["search"])
	assert.Nil(t, body["sort_by"])
	assert.Equal(t, "asc", body["sort_dir"])
	assert.Equal(t, float64(1), body["page"])
}

func TestDistributionQueryParameters(t *testing.T) {
	client, requests := newTestServer(t, map[string]string{
		"/api/chart/distribution": `{"labels":["Antagonist",2021,null],"values":[10,5,1]}`,
	})

	distribution, err := client.Distribution(
		context.Background(),
		dataset.SelectorClinicalTrialsAll,
		"moa_new",
		dataset.FilterSet{},
		"",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"Antagonist", "2021", ""}, distribution.Labels)
	assert.Equal(t, []int64{10, 5, 1}, distribution.Values)

	query := (*requests)[0].query
	assert.Equal(t, "ctgov_all", query.Get("table"))
	assert.Equal(t, "moa_new", query.Get("column"))
	assert.False(t, query.Has("filters"), "empty filters are omitted")
	assert.False(t, query.Has("search"), "empty search is omitted")

	_, err = client.Distribution(
		context.Background(),
		dataset.SelectorClinicalTrialsAll,
		"moa_new",
		dataset.FilterSet{}.With(dataset.ColumnOrganSystem, "Skin"),
		"nivo",
	)
	require.NoError(t, err)

	query = (*requests)[1].query
	assert.JSONEq(t, `{"organ_system":["Skin"]}`, query.Get("filters"))
	assert.Equal(t, "nivo", query.Get("search"))
}

func TestAdverseEventSummary(t *testing.T) {
	client, requests := newTestServer(t, map[string]string{
		"/api/chart/adverse-events": `{"categories":["Skin","Blood"],"proportions":[12.5,3],"counts":[25,6]}`,
	})

	summary, err := client.AdverseEventSummary(context.Background(), dataset.AdverseEventQuery{
		Dataset: dataset.SelectorLabelBoxedWarning,
	})
	require.NoError(t, err)
	assert.Equal(t, dataset.GroupByOrganSystem, summary.GroupBy)
	assert.Equal(t, []string{"Skin", "Blood"}, summary.Categories)
	assert.Equal(t, []float64{12.5, 3}, summary.Proportions)

	body := (*requests)[0].body
	assert.Equal(t, "organ_system", body["group_by"])
	assert.Equal(t, float64(dataset.DefaultAdverseEventTopN), body["top_n"])
	assert.Equal(t, "all_grades%", body["grade_col"])
	assert.Nil(t, body["search"])
}

func TestComparative(t *testing.T) {
	client, requests := newTestServer(t, map[string]string{
		"/api/chart/comparative": `{
			"ab_arm": {"categories": ["Skin", "Blood"], "proportions": [20, 5]},
			"comp_arm": {"categories": ["Skin", "Blood"], "proportions": [10, 5]}
		}`,
	})

	result, err := client.Comparative(context.Background(), dataset.ComparativeQuery{
		Dataset:  dataset.SelectorClinicalTrialsAll,
		Antibody: "Nivolumab",
		NCTID:    "NCT01234567",
		GroupBy:  dataset.GroupByAdverseEventTerm,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Skin", "Blood"}, result.Categories)
	assert.Equal(t, []float64{20, 5}, result.Treatment.Proportions)
	assert.Equal(t, []float64{10, 5}, result.Comparator.Proportions)
	assert.Empty(t, result.RelativeRisks)

	body := (*requests)[0].body
	assert.Equal(t, "NCT01234567", body["nct_id"])
	assert.Equal(t, "adverse_event_term", body["group_by"])
	assert.Equal(t, float64(dataset.DefaultComparativeTopN), body["top_n"])
}

func TestTargetAggregate(t *testing.T) {
	client, _ := newTestServer(t, map[string]string{
		"/api/chart/target-aggregation": `{
			"target": "PD-1",
			"data": [
				{"category": "Skin", "mean": 12.5, "min": 5, "max": 20, "count": 2,
				 "values": [{"antibody": "Nivolumab", "value": 5}, {"antibody": "Pembrolizumab", "value": 20}]},
				{"category": "Blood", "mean": 3, "min": 3, "max": 3, "count": 1}
			]
		}`,
	})

	aggregation, err := client.TargetAggregate(context.Background(), dataset.TargetQuery{
		Dataset: dataset.SelectorLabelFinal,
		Target:  "PD-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "PD-1", aggregation.Target)
	require.Len(t, aggregation.Aggregates, 2)
	assert.Equal(t, dataset.Summary{Min: 5, Max: 20, Mean: 12.5, Count: 2}, aggregation.Aggregates[0].Summary)
	assert.Len(t, aggregation.Aggregates[0].Entities, 2)
	assert.Empty(t, aggregation.Aggregates[1].Entities)
}

func TestCrossDataset(t *testing.T) {
	client, requests := newTestServer(t, map[string]string{
		"/api/chart/cross-dataset": `{
			"categories": ["Skin", "Blood"],
			"ctgov": {"values": [12.5, null]},
			"label": {"values": [null, 4]}
		}`,
	})

	result, err := client.CrossDataset(context.Background(), dataset.CrossDatasetQuery{
		Antibody: "Nivolumab",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Skin", "Blood"}, result.Categories)
	require.Len(t, result.ClinicalTrials, 2)
	assert.Equal(t, 12.5, *result.ClinicalTrials[0])
	assert.Nil(t, result.ClinicalTrials[1])
	assert.Nil(t, result.Label[0])

	body := (*requests)[0].body
	assert.NotContains(t, body, "table")
	assert.Equal(t, float64(dataset.DefaultCrossDatasetTopN), body["top_n"])
}

func TestCatalog(t *testing.T) {
	client, requests := newTestServer(t, map[string]string{
		"/api/tables":                     `{"tables":[{"name":"ctgov_all","rows":1200},{"name":"ctgov_serious","rows":7}]}`,
		"/api/studies":                    `{"studies":["NCT01","NCT02"]}`,
		"/api/targets":                    `{"targets":["PD-1",null,"HER2"]}`,
		"/api/overlapping-antibodies":     `{"antibodies":["Nivolumab"]}`,
		"/api/antibodies-with-comparator": `{"antibodies":["Trastuzumab"]}`,
	})
	ctx := context.Background()

	tables, err := client.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dataset.TableInfo{{Name: dataset.SelectorClinicalTrialsAll, Rows: 1200}}, tables)

	studies, err := client.Studies(ctx, dataset.SelectorClinicalTrialsAll, "Nivolumab & co")
	require.NoError(t, err)
	assert.Equal(t, []string{"NCT01", "NCT02"}, studies)
	assert.Equal(t, "Nivolumab & co", (*requests)[1].query.Get("antibody"))

	targets, err := client.Targets(ctx, dataset.SelectorLabelFinal)
	require.NoError(t, err)
	assert.Equal(t, []string{"PD-1", "HER2"}, targets)

	overlapping, err := client.OverlappingAntibodies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nivolumab"}, overlapping)

	withComparator, err := client.AntibodiesWithComparator(ctx, dataset.SelectorClinicalTrialsAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"Trastuzumab"}, withComparator)
}

func TestErrorStatus(t *testing.T) {
	client, _ := newTestServer(t, map[string]string{})

	_, err := client.FilterOptions(context.Background(), dataset.SelectorClinicalTrialsAll)
	require.Error(t, err)
	assert.ErrorContains(t, err, "API error: 500")

	var statusErr httpapi.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestFilterOptions(t *testing.T) {
	client, requests := newTestServer(t, map[string]string{
		"/api/filter-options": `{"antibody":["Nivolumab","Pembrolizumab"],"has_comparator":[0,1]}`,
	})

	vocabulary, err := client.FilterOptions(context.Background(), dataset.SelectorClinicalTrialsAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nivolumab", "Pembrolizumab"}, vocabulary.Values(dataset.ColumnAntibody))
	assert.Equal(t, []string{"0", "1"}, vocabulary.Values(dataset.ColumnHasComparator))
	assert.Equal(t, "ctgov_all", (*requests)[0].query.Get("table"))
}

func TestExportURL(t *testing.T) {
	client, err := httpapi.NewClient(httpapi.Config{BaseURL: "http://localhost:8000/api"}, nil)
	require.NoError(t, err)

	exportURL, err := client.ExportURL(dataset.SelectorLabelWarningsAndPrecautions, dataset.FilterSet{}, "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/export?table=label_wap", exportURL)

	exportURL, err = client.ExportURL(
		dataset.SelectorLabelWarningsAndPrecautions,
		dataset.FilterSet{}.With(dataset.ColumnTarget, "PD-1"),
		"nivo",
	)
	require.NoError(t, err)

	parsed, err := url.Parse(exportURL)
	require.NoError(t, err)
	assert.Equal(t, "/api/export", parsed.Path)
	assert.JSONEq(t, `{"target_1":["PD-1"]}`, parsed.Query().Get("filters"))
	assert.Equal(t, "nivo", parsed.Query().Get("search"))
}

func TestInvalidBaseURL(t *testing.T) {
	_, err := httpapi.NewClient(httpapi.Config{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestRateLimitRespectsContext(t *testing.T) {
	client, err := httpapi.NewClient(
		httpapi.Config{BaseURL: "http://localhost:1/api", MaxRequestsPerSecond: 0.001},
		http.DefaultClient,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Targets(ctx, dataset.SelectorClinicalTrialsAll)
	assert.ErrorIs(t, err, context.Canceled)
}
