package analytics

import "hermannm.dev/enumnames"

// Significance tells whether a relative risk's confidence interval excludes 1.
type Significance uint8

const (
	SignificanceNone Significance = iota + 1
	SignificanceElevated
	SignificanceReduced
)

var significanceMap = enumnames.NewMap(map[Significance]string{
	SignificanceNone:     "none",
	SignificanceElevated: "elevated",
	SignificanceReduced:  "reduced",
})

func (significance Significance) IsValid() bool {
	return significanceMap.ContainsEnumValue(significance)
}

func (significance Significance) String() string {
	return significanceMap.GetNameOrFallback(significance, "INVALID_SIGNIFICANCE")
}

func (significance Significance) MarshalJSON() ([]byte, error) {
	return significanceMap.MarshalToNameJSON(significance)
}

func (significance *Significance) UnmarshalJSON(bytes []byte) error {
	return significanceMap.UnmarshalFromNameJSON(bytes, significance)
}
