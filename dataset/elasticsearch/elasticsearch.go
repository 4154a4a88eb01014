// Package elasticsearch implements the dataset service against Elasticsearch, with one index per
// dataset. String columns are expected to be mapped as keyword fields.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"hermannm.dev/mabexplorer/config"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/log"
	"hermannm.dev/wrap"
)

type Service struct {
	client *elasticsearch.Client
}

var (
	_ dataset.Service = Service{}
	_ dataset.Catalog = Service{}
)

func NewService(config config.Elasticsearch) (Service, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:         []string{config.Address},
		EnableDebugLogger: config.Debug,
	})
	if err != nil {
		return Service{}, wrap.Error(err, "failed to connect to Elasticsearch")
	}

	return Service{client: client}, nil
}

func indexName(selector dataset.Selector) (string, error) {
	if !selector.IsValid() {
		return "", wrap.Errorf(dataset.ErrInvalidDataset, "unrecognized dataset %d", selector)
	}
	return selector.String(), nil
}

func (service Service) search(ctx context.Context, index string, body object) (searchResponse, error) {
	encodedBody, err := json.Marshal(body)
	if err != nil {
		return searchResponse{}, wrap.Error(err, "failed to encode search request")
	}

	log.Debug(
		"generated elasticsearch query",
		slog.String("index", index),
		slog.String("query", string(encodedBody)),
	)

	response, err := service.client.Search(
		service.client.Search.WithContext(ctx),
		service.client.Search.WithIndex(index),
		service.client.Search.WithBody(bytes.NewReader(encodedBody)),
	)
	if err != nil {
		return searchResponse{}, wrap.Error(err, "search request failed")
	}
	defer response.Body.Close()

	if err := checkResponse(response); err != nil {
		return searchResponse{}, err
	}

	var result searchResponse
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return searchResponse{}, wrap.Error(err, "failed to decode search response")
	}
	return result, nil
}

func (service Service) count(ctx context.Context, index string) (int64, error) {
	response, err := service.client.Count(
		service.client.Count.WithContext(ctx),
		service.client.Count.WithIndex(index),
	)
	if err != nil {
		return 0, wrap.Error(err, "count request failed")
	}
	defer response.Body.Close()

	if err := checkResponse(response); err != nil {
		return 0, err
	}

	var result struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return 0, wrap.Error(err, "failed to decode count response")
	}
	return result.Count, nil
}

// Returns an *types.ElasticsearchError if the response is an error with a decodable body.
func checkResponse(response *esapi.Response) error {
	if !response.IsError() {
		return nil
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("elasticsearch responded with status %d", response.StatusCode)
	}
	return decodeElasticError(response.StatusCode, body)
}
