package cli

import (
	"fmt"
	"net/http"

	"hermannm.dev/mabexplorer/config"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/mabexplorer/dataset/clickhouse"
	"hermannm.dev/mabexplorer/dataset/elasticsearch"
	"hermannm.dev/mabexplorer/dataset/httpapi"
)

func newBackend(cfg config.Config) (dataset.Service, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Backend {
	case config.BackendHTTP:
		client, err := httpapi.NewClient(
			httpapi.Config{
				BaseURL:              cfg.HTTPAPI.URL,
				MaxRequestsPerSecond: cfg.HTTPAPI.MaxRequestsPerSecond,
			},
			newHTTPClient(cfg.HTTPAPI),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, noClose, nil
	case config.BackendClickHouse:
		clickHouse, err := clickhouse.NewService(cfg.ClickHouse)
		if err != nil {
			return nil, nil, err
		}
		return clickHouse, clickHouse.Close, nil
	case config.BackendElasticsearch:
		elastic, err := elasticsearch.NewService(cfg.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		return elastic, noClose, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dataset backend '%s'", cfg.Backend)
	}
}

// Backend calls are bounded by orchestrator cancellation, plus the configured timeout if any.
func newHTTPClient(cfg config.HTTPAPI) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}
