// Package httpapi is a dataset.Service backed by the explorer's REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

// HTTPClient allows injecting a custom client, as *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// Base URL of the API, such as "http://localhost:8000/api".
	BaseURL string
	// Client-side request limit per second. 0 means unlimited.
	MaxRequestsPerSecond float64
}

type Client struct {
	baseURL    string
	httpClient HTTPClient
	limiter    *rate.Limiter
}

var (
	_ dataset.Service  = (*Client)(nil)
	_ dataset.Catalog  = (*Client)(nil)
	_ dataset.Exporter = (*Client)(nil)
)

// NewClient uses http.DefaultClient if httpClient is nil.
func NewClient(config Config, httpClient HTTPClient) (*Client, error) {
	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, wrap.Errorf(err, "invalid dataset API URL '%s'", config.BaseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client := &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: httpClient,
	}
	if config.MaxRequestsPerSecond > 0 {
		burst := max(1, int(config.MaxRequestsPerSecond))
		client.limiter = rate.NewLimiter(rate.Limit(config.MaxRequestsPerSecond), burst)
	}
	return client, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (err StatusError) Error() string {
	return fmt.Sprintf("API error: %d", err.StatusCode)
}

func (client *Client) get(ctx context.Context, path string, query url.Values, response any) error {
	endpoint := client.baseURL + path
	if len(query) != 0 {
		endpoint += "?" + query.Encode()
	}
	return client.do(ctx, http.MethodGet, endpoint, nil, response)
}

func (client *Client) post(ctx context.Context, path string, body any, response any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return wrap.Error(err, "failed to encode request body")
	}
	return client.do(ctx, http.MethodPost, client.baseURL+path, bytes.NewReader(encoded), response)
}

func (client *Client) do(
	ctx context.Context,
	method string,
	endpoint string,
	body io.Reader,
	response any,
) error {
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return wrap.Error(err, "request rate limit wait was aborted")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return wrap.Error(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	res, err := client.httpClient.Do(req)
	if err != nil {
		return wrap.Errorf(err, "%s %s failed", method, endpoint)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return StatusError{StatusCode: res.StatusCode}
	}

	if err := json.NewDecoder(res.Body).Decode(response); err != nil {
		return wrap.Errorf(err, "failed to decode response from %s", endpoint)
	}
	return nil
}

// nullableString encodes the empty string as null.
func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// filterQuery sets the filters and search parameters of a GET request, omitting both when
// empty.
func filterQuery(query url.Values, filters dataset.FilterSet, search string) error {
	if !filters.IsEmpty() {
		encoded, err := json.Marshal(filters)
		if err != nil {
			return wrap.Error(err, "failed to encode filters")
		}
		query.Set("filters", string(encoded))
	}
	if search != "" {
		query.Set("search", search)
	}
	return nil
}

// labels converts category labels to strings, since backends return numeric and boolean
// categories as JSON scalars. Null labels become empty strings.
func labels(values []any) []string {
	converted := make([]string, len(values))
	for i, value := range values {
		switch value := value.(type) {
		case nil:
		case string:
			converted[i] = value
		case float64:
			converted[i] = strconv.FormatFloat(value, 'f', -1, 64)
		default:
			converted[i] = fmt.Sprint(value)
		}
	}
	return converted
}
