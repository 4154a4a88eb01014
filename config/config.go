package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"hermannm.dev/wrap"
)

type Config struct {
	BaseConfig
	Explorer      Explorer
	HTTPAPI       HTTPAPI
	ClickHouse    ClickHouse
	Elasticsearch Elasticsearch
	Layout        Layout
}

type BaseConfig struct {
	Debug   bool             `env:"DEBUG"           envDefault:"false"`
	Backend SupportedBackend `env:"DATASET_BACKEND" envDefault:"http"`
}

type Explorer struct {
	PageSize       int           `env:"EXPLORER_PAGE_SIZE"       envDefault:"50"    validate:"min=1,max=500"`
	SearchDebounce time.Duration `env:"EXPLORER_SEARCH_DEBOUNCE" envDefault:"300ms" validate:"gte=0"`
	MaxSlices      int           `env:"EXPLORER_MAX_SLICES"      envDefault:"10"    validate:"min=2"`
	LayoutFile     string        `env:"EXPLORER_LAYOUT_FILE"     envDefault:""`
}

type HTTPAPI struct {
	URL string `env:"DATASET_API_URL" validate:"required,url"`
	// 0 means unlimited.
	MaxRequestsPerSecond float64 `env:"DATASET_API_MAX_RPS" envDefault:"0" validate:"gte=0"`
	// 0 means no timeout; requests then end only when the orchestrator cancels them.
	Timeout time.Duration `env:"DATASET_API_TIMEOUT" envDefault:"0" validate:"gte=0"`
}

type ClickHouse struct {
	Address      string `env:"CLICKHOUSE_ADDRESS"       validate:"required,hostname_port"`
	DatabaseName string `env:"CLICKHOUSE_DB_NAME"`
	Username     string `env:"CLICKHOUSE_USERNAME"`
	Password     string `env:"CLICKHOUSE_PASSWORD"`
	Debug        bool   `env:"CLICKHOUSE_DEBUG_ENABLED" envDefault:"false"`
}

type Elasticsearch struct {
	Address string `env:"ELASTICSEARCH_ADDRESS"       validate:"required,url"`
	Debug   bool   `env:"ELASTICSEARCH_DEBUG_ENABLED" envDefault:"false"`
}

type SupportedBackend string

const (
	BackendHTTP          SupportedBackend = "http"
	BackendClickHouse    SupportedBackend = "clickhouse"
	BackendElasticsearch SupportedBackend = "elasticsearch"
)

var validate = validator.New()

func ReadFromEnv() (Config, error) {
	// The .env file is optional, since variables may be set directly in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, wrap.Error(err, "failed to load .env file")
	}

	parseOptions := env.Options{RequiredIfNoDef: true}

	var config Config

	if err := env.ParseWithOptions(&config.BaseConfig, parseOptions); err != nil {
		return Config{}, err
	}
	if err := env.ParseWithOptions(&config.Explorer, parseOptions); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(config.Explorer); err != nil {
		return Config{}, wrap.Error(err, "invalid explorer config")
	}

	var backendConfig any
	switch config.Backend {
	case BackendHTTP:
		backendConfig = &config.HTTPAPI
	case BackendClickHouse:
		backendConfig = &config.ClickHouse
	case BackendElasticsearch:
		backendConfig = &config.Elasticsearch
	default:
		err := fmt.Errorf(
			"must be one of: '%s', '%s', '%s'",
			BackendHTTP,
			BackendClickHouse,
			BackendElasticsearch,
		)
		return Config{}, wrap.Errorf(
			err,
			"unsupported value '%s' for DATASET_BACKEND in env",
			config.Backend,
		)
	}

	if err := env.ParseWithOptions(backendConfig, parseOptions); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(backendConfig); err != nil {
		return Config{}, wrap.Errorf(err, "invalid %s config", config.Backend)
	}

	layout, err := LoadLayout(config.Explorer.LayoutFile)
	if err != nil {
		return Config{}, err
	}
	config.Layout = layout

	return config, nil
}
