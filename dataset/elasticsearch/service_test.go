package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/mabexplorer/config"
	"hermannm.dev/mabexplorer/dataset"
)

type recordedRequest struct {
	path string
	body map[string]any
}

type cannedResponse struct {
	status int
	body   string
}

// Serves canned responses by request path, recording each request.
type fakeCluster struct {
	lock      sync.Mutex
	responses map[string]cannedResponse
	requests  []recordedRequest
}

func newTestService(t *testing.T, responses map[string]cannedResponse) (Service, *fakeCluster) {
	t.Helper()

	cluster := &fakeCluster{responses: responses}
	server := httptest.NewServer(http.HandlerFunc(cluster.serve))
	t.Cleanup(server.Close)

	service, err := NewService(config.Elasticsearch{Address: server.URL})
	require.NoError(t, err)
	return service, cluster
}

func (cluster *fakeCluster) serve(writer http.ResponseWriter, request *http.Request) {
	var body map[string]any
	if content, err := io.ReadAll(request.Body); err == nil && len(content) > 0 {
		_ = json.Unmarshal(content, &body)
	}

	cluster.lock.Lock()
	cluster.requests = append(cluster.requests, recordedRequest{path: request.URL.Path, body: body})
	response, ok := cluster.responses[request.URL.Path]
	cluster.lock.Unlock()

	writer.Header().Set("X-Elastic-Product", "Elasticsearch")
	writer.Header().Set("Content-Type", "application/json")
	if !ok {
		writer.WriteHeader(http.StatusNotFound)
		writer.Write([]byte(indexNotFoundBody))
		return
	}

	writer.WriteHeader(response.status)
	writer.Write([]byte(response.body))
}

const indexNotFoundBody = `{
	"error": {
		"root_cause": [{"type": "index_not_found_exception", "reason": "no such index"}],
		"type": "index_not_found_exception",
		"reason": "no such index"
	},
	"status": 404
}`

func okResponse(body string) cannedResponse {
	return cannedResponse{status: http.StatusOK, body: body}
}

func TestQueryRows(t *testing.T) {
	service, cluster := newTestService(t, map[string]cannedResponse{
		"/ctgov_all/_search": okResponse(`{"hits": {
			"total": {"value": 120, "relation": "eq"},
			"hits": [{"_source": {"antibody": "Nivolumab", "n_ab": 40}}]
		}}`),
	})

	page, err := service.QueryRows(context.Background(), dataset.RowQuery{
		Dataset: dataset.SelectorClinicalTrialsAll,
		Search:  "nivo",
		Page:    2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(120), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, dataset.DefaultPageSize, page.PageSize)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Nivolumab", page.Rows[0]["antibody"])

	require.Len(t, cluster.requests, 1)
	assert.Equal(t, float64(50), cluster.requests[0].body["from"])
}

func TestFilterOptions(t *testing.T) {
	service, _ := newTestService(t, map[string]cannedResponse{
		"/fc_mutations/_search": okResponse(`{"hits": {"total": {"value": 0}, "hits": []}, "aggregations": {
			"antibody": {"buckets": [{"key": "Nivolumab", "doc_count": 3}, {"key": "", "doc_count": 1}]},
			"isotype_fc": {"buckets": []}
		}}`),
	})

	vocabulary, err := service.FilterOptions(context.Background(), dataset.SelectorFcMutations)
	require.NoError(t, err)

	assert.Equal(t, []string{"Nivolumab"}, vocabulary.Values("antibody"))
	assert.Empty(t, vocabulary.Values("isotype_fc"))
	assert.Contains(t, vocabulary, "source")
	assert.Len(t, vocabulary, len(dataset.SelectorFcMutations.FilterableColumns()))
}

func TestClinicalTrialsComparative(t *testing.T) {
	service, _ := newTestService(t, map[string]cannedResponse{
		"/ctgov_all/_search": okResponse(`{"aggregations": {"values": {"buckets": [{
			"key": "Skin",
			"doc_count": 2,
			"primary": {"value": 20},
			"secondary": {"value": 100},
			"tertiary": {"value": 10},
			"quaternary": {"value": 100}
		}]}}}`),
	})

	result, err := service.Comparative(context.Background(), dataset.ComparativeQuery{
		Dataset:  dataset.SelectorClinicalTrialsAll,
		Antibody: "Nivolumab",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Skin"}, result.Categories)
	assert.Equal(t, []float64{20}, result.Treatment.Proportions)
	assert.Equal(t, []float64{10}, result.Comparator.Proportions)
	require.Len(t, result.RelativeRisks, 1)
	assert.InDelta(t, 2.0, *result.RelativeRisks[0].Value, 1e-9)
}

func TestTargetAggregate(t *testing.T) {
	service, _ := newTestService(t, map[string]cannedResponse{
		"/label_final/_search": okResponse(`{"aggregations": {"values": {"buckets": [
			{"key": "Blood", "doc_count": 1, "entities": {"buckets": [
				{"key": "Nivolumab", "doc_count": 1, "primary": {"value": 5}}
			]}},
			{"key": "Skin", "doc_count": 2, "entities": {"buckets": [
				{"key": "Nivolumab", "doc_count": 1, "primary": {"value": 10}},
				{"key": "Pembrolizumab", "doc_count": 1, "primary": {"value": 20}}
			]}}
		]}}}`),
	})

	aggregation, err := service.TargetAggregate(context.Background(), dataset.TargetQuery{
		Dataset: dataset.SelectorLabelFinal,
		Target:  "PD-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "PD-1", aggregation.Target)
	require.Len(t, aggregation.Aggregates, 2)
	assert.Equal(t, "Skin", aggregation.Aggregates[0].Category)
	assert.Equal(t, 15.0, aggregation.Aggregates[0].Summary.Mean)
}

func TestTablesSkipsMissingIndices(t *testing.T) {
	service, _ := newTestService(t, map[string]cannedResponse{
		"/ctgov_all/_count":   okResponse(`{"count": 1200}`),
		"/label_final/_count": okResponse(`{"count": 300}`),
	})

	tables, err := service.Tables(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []dataset.TableInfo{
		{Name: dataset.SelectorClinicalTrialsAll, Rows: 1200},
		{Name: dataset.SelectorLabelFinal, Rows: 300},
	}, tables)
}

func TestSearchErrorIsFormatted(t *testing.T) {
	service, _ := newTestService(t, map[string]cannedResponse{
		"/label_final/_search": {status: http.StatusBadRequest, body: `{
			"error": {
				"root_cause": [{"type": "query_shard_exception", "reason": "field [moa_new] is not aggregatable"}],
				"type": "search_phase_execution_exception",
				"reason": "all shards failed"
			},
			"status": 400
		}`},
	})

	_, err := service.Distribution(
		context.Background(),
		dataset.SelectorLabelFinal,
		"moa_new",
		dataset.FilterSet{},
		"",
	)
	require.Error(t, err)

	message := err.Error()
	assert.Contains(t, message, "failed to get distribution of 'moa_new'")
	assert.Contains(t, message, "all shards failed (search_phase_execution_exception, status 400)")
	assert.Contains(t, message, "field [moa_new] is not aggregatable (query_shard_exception)")
}

func TestStudiesOnlyForClinicalTrials(t *testing.T) {
	service, cluster := newTestService(t, map[string]cannedResponse{})

	studies, err := service.Studies(context.Background(), dataset.SelectorLabelFinal, "nivo")
	require.NoError(t, err)
	assert.Empty(t, studies)
	assert.Empty(t, cluster.requests)
}

func TestDecodeElasticErrorWithoutBody(t *testing.T) {
	err := decodeElasticError(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	assert.True(t, strings.Contains(err.Error(), "502"))
	assert.False(t, isIndexNotFound(err))
}
