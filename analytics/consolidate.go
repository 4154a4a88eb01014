// Package analytics shapes raw dataset-service replies for charts: long-tail consolidation,
// relative-risk ranking and reshaping of per-target aggregates. Every function here is pure.
package analytics

import "hermannm.dev/mabexplorer/dataset"

const (
	DefaultMaxSlices = 10
	OtherLabel       = "Other"
)

// Consolidate bounds a distribution to maxSlices buckets. Distributions that already fit are
// returned unchanged. Otherwise the first maxSlices-1 entries are kept in order and the rest are
// summed into a trailing "Other" bucket.
//
// The input is expected in descending value order, as produced by the dataset service. If it is
// not, "Other" still sums everything past the cut-off, just not necessarily the smallest values.
func Consolidate(distribution dataset.Distribution, maxSlices int) dataset.Distribution {
	if maxSlices <= 0 {
		maxSlices = DefaultMaxSlices
	}

	length := distribution.Len()
	if length <= maxSlices {
		return dataset.Distribution{
			Labels: distribution.Labels[:length:length],
			Values: distribution.Values[:length:length],
		}
	}

	kept := maxSlices - 1

	consolidated := dataset.Distribution{
		Labels: make([]string, 0, maxSlices),
		Values: make([]int64, 0, maxSlices),
	}
	consolidated.Labels = append(consolidated.Labels, distribution.Labels[:kept]...)
	consolidated.Values = append(consolidated.Values, distribution.Values[:kept]...)

	var otherSum int64
	for _, value := range distribution.Values[kept:length] {
		otherSum += value
	}

	consolidated.Labels = append(consolidated.Labels, OtherLabel)
	consolidated.Values = append(consolidated.Values, otherSum)
	return consolidated
}
