package format

import (
	"gopkg.in/yaml.v3"
)

type yamlFormat struct{}

// YAML returns the YAML 1.2 format. Content-Type: application/yaml
func YAML() Format { return yamlFormat{} }

func (yamlFormat) Name() string        { return "yaml" }
func (yamlFormat) ContentType() string { return "application/yaml" }

func (yamlFormat) Marshal(m map[string]any) ([]byte, error) {
	return yaml.Marshal(m)
}

func (yamlFormat) Unmarshal(data []byte) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return normalizeDocument(v)
}
