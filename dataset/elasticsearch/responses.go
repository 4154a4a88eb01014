package elasticsearch

import (
	"encoding/json"
	"strconv"

	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source dataset.Record `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

func (response searchResponse) records() []dataset.Record {
	records := make([]dataset.Record, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		record := hit.Source
		if record == nil {
			record = dataset.Record{}
		}
		records = append(records, record)
	}
	return records
}

// Returns no buckets if the aggregation is missing from the response.
func (response searchResponse) buckets(aggregation string) ([]termsBucket, error) {
	return parseBuckets(response.Aggregations[aggregation])
}

// Sub-aggregations are keyed by name alongside the bucket's own fields.
type termsBucket struct {
	key             any
	keyAsString     string
	docCount        int64
	subAggregations map[string]json.RawMessage
}

func (bucket *termsBucket) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["key"]; ok {
		if err := json.Unmarshal(raw, &bucket.key); err != nil {
			return wrap.Error(err, "invalid bucket key")
		}
	}
	if raw, ok := fields["key_as_string"]; ok {
		if err := json.Unmarshal(raw, &bucket.keyAsString); err != nil {
			return wrap.Error(err, "invalid bucket key string")
		}
	}
	if raw, ok := fields["doc_count"]; ok {
		if err := json.Unmarshal(raw, &bucket.docCount); err != nil {
			return wrap.Error(err, "invalid bucket doc count")
		}
	}

	delete(fields, "key")
	delete(fields, "key_as_string")
	delete(fields, "doc_count")
	bucket.subAggregations = fields
	return nil
}

func (bucket termsBucket) label() string {
	if bucket.keyAsString != "" {
		return bucket.keyAsString
	}

	switch key := bucket.key.(type) {
	case nil:
		return ""
	case string:
		return key
	case float64:
		return strconv.FormatFloat(key, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(key)
	default:
		encoded, _ := json.Marshal(key)
		return string(encoded)
	}
}

// Returns 0 for missing metrics and for metrics without a value (such as averages of no
// documents).
func (bucket termsBucket) metric(name string) float64 {
	raw, ok := bucket.subAggregations[name]
	if !ok {
		return 0
	}

	var metric struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &metric); err != nil || metric.Value == nil {
		return 0
	}
	return *metric.Value
}

func (bucket termsBucket) buckets(aggregation string) ([]termsBucket, error) {
	return parseBuckets(bucket.subAggregations[aggregation])
}

func parseBuckets(raw json.RawMessage) ([]termsBucket, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var aggregation struct {
		Buckets []termsBucket `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &aggregation); err != nil {
		return nil, wrap.Error(err, "failed to parse aggregation buckets")
	}
	return aggregation.Buckets, nil
}

func bucketLabels(buckets []termsBucket) []string {
	labels := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		if label := bucket.label(); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
