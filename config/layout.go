package config

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

// Layout configures what the explorer shows beyond the results table.
type Layout struct {
	Dimensions    []dataset.Dimension `yaml:"dimensions"     validate:"required,min=1,dive"`
	DatasetLabels map[string]string   `yaml:"dataset_labels"`
}

//go:embed default_layout.yaml
var defaultLayout []byte

// LoadLayout parses the layout file at the given path, or the built-in default layout if the path
// is empty.
func LoadLayout(path string) (Layout, error) {
	content := defaultLayout
	if path != "" {
		var err error
		content, err = os.ReadFile(path)
		if err != nil {
			return Layout{}, wrap.Errorf(err, "failed to read layout file '%s'", path)
		}
	}

	layout, err := ParseLayout(content)
	if err != nil {
		if path == "" {
			return Layout{}, wrap.Error(err, "invalid default layout")
		}
		return Layout{}, wrap.Errorf(err, "invalid layout file '%s'", path)
	}
	return layout, nil
}

func ParseLayout(content []byte) (Layout, error) {
	var layout Layout
	if err := yaml.Unmarshal(content, &layout); err != nil {
		return Layout{}, wrap.Error(err, "failed to parse layout YAML")
	}

	if err := validate.Struct(layout); err != nil {
		return Layout{}, wrap.Error(err, "failed to validate layout")
	}

	for name := range layout.DatasetLabels {
		if _, err := dataset.ParseSelector(name); err != nil {
			return Layout{}, wrap.Error(err, "invalid dataset in layout labels")
		}
	}

	for i, dimension := range layout.Dimensions {
		if dimension.Title == "" {
			layout.Dimensions[i].Title = dimension.Column
		}
	}

	return layout, nil
}

// DatasetLabel returns the display name of the dataset, falling back to its built-in name.
func (layout Layout) DatasetLabel(selector dataset.Selector) string {
	if label, ok := layout.DatasetLabels[selector.String()]; ok && label != "" {
		return label
	}
	return selector.Label()
}
