package elasticsearch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/wrap"
)

const elasticIndexNotFoundException = "index_not_found_exception"

func wrapElasticError(wrapped error, message string) error {
	return wrap.Error(formatElasticError(wrapped), message)
}

func wrapElasticErrorf(wrapped error, format string, args ...any) error {
	return wrap.Errorf(formatElasticError(wrapped), format, args...)
}

// Flattens the error's root causes into a readable error chain.
func formatElasticError(err error) error {
	var elasticErr *types.ElasticsearchError
	if !errors.As(err, &elasticErr) {
		return err
	}

	var errMessage string
	if elasticErr.ErrorCause.Reason == nil {
		errMessage = fmt.Sprintf("%s (status %d)", elasticErr.ErrorCause.Type, elasticErr.Status)
	} else {
		errMessage = fmt.Sprintf(
			"%s (%s, status %d)",
			*elasticErr.ErrorCause.Reason,
			elasticErr.ErrorCause.Type,
			elasticErr.Status,
		)
	}

	rootCause := make([]error, len(elasticErr.ErrorCause.RootCause))
	for i, cause := range elasticErr.ErrorCause.RootCause {
		if cause.Reason == nil {
			rootCause[i] = errors.New(cause.Type)
		} else {
			rootCause[i] = fmt.Errorf("%s (%s)", *cause.Reason, cause.Type)
		}
	}

	if len(rootCause) == 0 {
		return errors.New(errMessage)
	} else {
		return wrap.Errors(errMessage, rootCause...)
	}
}

func decodeElasticError(statusCode int, body []byte) error {
	elasticErr := new(types.ElasticsearchError)
	if err := json.Unmarshal(body, elasticErr); err != nil || elasticErr.ErrorCause.Type == "" {
		return fmt.Errorf("elasticsearch responded with status %d", statusCode)
	}

	if elasticErr.Status == 0 {
		elasticErr.Status = statusCode
	}
	return elasticErr
}

func isIndexNotFound(err error) bool {
	var elasticErr *types.ElasticsearchError
	return errors.As(err, &elasticErr) && elasticErr.ErrorCause.Type == elasticIndexNotFoundException
}
