package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/mabexplorer/config"
	"hermannm.dev/mabexplorer/dataset"
)

func TestReadFromEnvDefaults(t *testing.T) {
	t.Setenv("DATASET_BACKEND", "http")
	t.Setenv("DATASET_API_URL", "http://localhost:8000/api")

	cfg, err := config.ReadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, config.BackendHTTP, cfg.Backend)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 50, cfg.Explorer.PageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Explorer.SearchDebounce)
	assert.Equal(t, 10, cfg.Explorer.MaxSlices)
	assert.Equal(t, "http://localhost:8000/api", cfg.HTTPAPI.URL)
	assert.Zero(t, cfg.HTTPAPI.MaxRequestsPerSecond)
	assert.Zero(t, cfg.HTTPAPI.Timeout)
	require.Len(t, cfg.Layout.Dimensions, 4)
	assert.Equal(t, "record_category", cfg.Layout.Dimensions[0].Column)
}

func TestReadFromEnvClickHouse(t *testing.T) {
	t.Setenv("DATASET_BACKEND", "clickhouse")
	t.Setenv("CLICKHOUSE_ADDRESS", "localhost:9000")
	t.Setenv("CLICKHOUSE_DB_NAME", "safety")
	t.Setenv("CLICKHOUSE_USERNAME", "default")
	t.Setenv("CLICKHOUSE_PASSWORD", "secret")

	cfg, err := config.ReadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, config.ClickHouse{
		Address:      "localhost:9000",
		DatabaseName: "safety",
		Username:     "default",
		Password:     "secret",
	}, cfg.ClickHouse)
}

func TestReadFromEnvMissingBackendVariable(t *testing.T) {
	t.Setenv("DATASET_BACKEND", "elasticsearch")
	os.Unsetenv("ELASTICSEARCH_ADDRESS")

	_, err := config.ReadFromEnv()
	assert.ErrorContains(t, err, "ELASTICSEARCH_ADDRESS")
}

func TestReadFromEnvUnsupportedBackend(t *testing.T) {
	t.Setenv("DATASET_BACKEND", "sqlite")

	_, err := config.ReadFromEnv()
	assert.ErrorContains(t, err, "unsupported value 'sqlite' for DATASET_BACKEND")
}

func TestReadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("DATASET_BACKEND", "http")
	t.Setenv("DATASET_API_URL", "http://localhost:8000/api")

	t.Setenv("EXPLORER_PAGE_SIZE", "0")
	_, err := config.ReadFromEnv()
	assert.ErrorContains(t, err, "invalid explorer config")

	t.Setenv("EXPLORER_PAGE_SIZE", "50")
	t.Setenv("EXPLORER_MAX_SLICES", "1")
	_, err = config.ReadFromEnv()
	assert.ErrorContains(t, err, "invalid explorer config")

	t.Setenv("EXPLORER_MAX_SLICES", "10")
	t.Setenv("DATASET_API_URL", "not a url")
	_, err = config.ReadFromEnv()
	assert.ErrorContains(t, err, "invalid http config")

	t.Setenv("DATASET_API_URL", "http://localhost:8000/api")
	t.Setenv("DATASET_API_TIMEOUT", "-1s")
	_, err = config.ReadFromEnv()
	assert.ErrorContains(t, err, "invalid http config")

	t.Setenv("DATASET_API_TIMEOUT", "5s")
	cfg, err := config.ReadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.HTTPAPI.Timeout)
}

func TestDefaultLayout(t *testing.T) {
	layout, err := config.LoadLayout("")
	require.NoError(t, err)

	assert.Equal(t, []dataset.Dimension{
		{Column: "record_category", Title: "Record Category"},
		{Column: "general_molecular_category", Title: "Molecular Category"},
		{Column: "moa_new", Title: "Mechanism of Action"},
		{Column: "target_1", Title: "Targets"},
	}, layout.Dimensions)
	assert.Equal(t, "FDA Label – BBW", layout.DatasetLabel(dataset.SelectorLabelBoxedWarning))
}

func TestLayoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	content := `
dimensions:
  - column: phase
  - column: isotype_fc
    title: Isotype
dataset_labels:
  ctgov_all: Trials
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	layout, err := config.LoadLayout(path)
	require.NoError(t, err)

	assert.Equal(t, []dataset.Dimension{
		{Column: "phase", Title: "phase"},
		{Column: "isotype_fc", Title: "Isotype"},
	}, layout.Dimensions)
	assert.Equal(t, "Trials", layout.DatasetLabel(dataset.SelectorClinicalTrialsAll))
	assert.Equal(t, dataset.SelectorLabelFinal.Label(), layout.DatasetLabel(dataset.SelectorLabelFinal))
}

func TestInvalidLayouts(t *testing.T) {
	for name, content := range map[string]string{
		"no dimensions":   "dimensions: []",
		"blank column":    "dimensions:\n  - title: Nothing",
		"unknown dataset": "dimensions:\n  - column: phase\ndataset_labels:\n  unknown: Unknown",
		"malformed YAML":  "dimensions: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseLayout([]byte(content))
			assert.Error(t, err)
		})
	}

	_, err := config.LoadLayout(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read layout file")
}
