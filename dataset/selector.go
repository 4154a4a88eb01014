package dataset

import (
	"errors"
	"strconv"

	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"
)

// Selector identifies which logical table of the safety dataset is being explored.
type Selector uint8

const (
	SelectorClinicalTrialsAll Selector = iota + 1
	SelectorLabelFinal
	SelectorLabelBoxedWarning
	SelectorLabelWarningsAndPrecautions
	SelectorFcMutations
)

// Selectors lists every dataset in display order.
var Selectors = []Selector{
	SelectorClinicalTrialsAll,
	SelectorLabelFinal,
	SelectorLabelBoxedWarning,
	SelectorLabelWarningsAndPrecautions,
	SelectorFcMutations,
}

var selectorMap = enumnames.NewMap(map[Selector]string{
	SelectorClinicalTrialsAll:           "ctgov_all",
	SelectorLabelFinal:                  "label_final",
	SelectorLabelBoxedWarning:           "label_bbw",
	SelectorLabelWarningsAndPrecautions: "label_wap",
	SelectorFcMutations:                 "fc_mutations",
})

var selectorLabels = map[Selector]string{
	SelectorClinicalTrialsAll:           "CTGOV – All Events",
	SelectorLabelFinal:                  "FDA Label – Final",
	SelectorLabelBoxedWarning:           "FDA Label – BBW",
	SelectorLabelWarningsAndPrecautions: "FDA Label – WAP",
	SelectorFcMutations:                 "Fc Antibody Mutations",
}

var ErrInvalidDataset = errors.New("invalid dataset")

func ParseSelector(name string) (Selector, error) {
	var selector Selector
	if err := selectorMap.UnmarshalFromNameJSON([]byte(strconv.Quote(name)), &selector); err != nil {
		return 0, wrap.Errorf(ErrInvalidDataset, "unrecognized dataset '%s'", name)
	}
	return selector, nil
}

func (selector Selector) IsValid() bool {
	return selectorMap.ContainsEnumValue(selector)
}

// Table name of the dataset in the backend service.
func (selector Selector) String() string {
	return selectorMap.GetNameOrFallback(selector, "INVALID_DATASET")
}

// Human-readable name, used when a layout file does not override it.
func (selector Selector) Label() string {
	if label, ok := selectorLabels[selector]; ok {
		return label
	}
	return selector.String()
}

func (selector Selector) MarshalJSON() ([]byte, error) {
	return selectorMap.MarshalToNameJSON(selector)
}

func (selector *Selector) UnmarshalJSON(bytes []byte) error {
	return selectorMap.UnmarshalFromNameJSON(bytes, selector)
}

type Kind uint8

const (
	KindClinicalTrials Kind = iota + 1
	KindLabel
	KindMutations
)

func (selector Selector) Kind() Kind {
	switch selector {
	case SelectorClinicalTrialsAll:
		return KindClinicalTrials
	case SelectorLabelFinal, SelectorLabelBoxedWarning, SelectorLabelWarningsAndPrecautions:
		return KindLabel
	case SelectorFcMutations:
		return KindMutations
	default:
		return 0
	}
}

// Study-level data (NCT IDs, per-arm event counts) only exists in clinical-trial tables.
func (selector Selector) IsClinicalTrials() bool {
	return selector.Kind() == KindClinicalTrials
}
