package yaml

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// YAMLToJSON converts YAML bytes to JSON bytes.
func YAMLToJSON(yamlBytes []byte) ([]byte, error) {
	var yamlObj any
	if err := yaml.Unmarshal(yamlBytes, &yamlObj); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	jsonBytes, err := json.Marshal(yamlObj)
	if err != nil {
		return nil, fmt.Errorf("error converting to JSON: %w", err)
	}
	return jsonBytes, nil
}

// UnmarshalYAML parses YAML bytes into the provided object.
func UnmarshalYAML(yamlBytes []byte, obj any) error {
	if err := yaml.Unmarshal(yamlBytes, obj); err != nil {
		return fmt.Errorf("error parsing YAML: %w", err)
	}
	return nil
}

// MarshalYAML renders obj as YAML.
func MarshalYAML(obj any) ([]byte, error) {
	out, err := yaml.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("error converting to YAML: %w", err)
	}
	return out, nil
}

// ToMap parses a YAML document whose top level is a mapping, as printed by
// `docker compose config`. An empty document yields an empty map.
func ToMap(yamlBytes []byte) (map[string]any, error) {
	doc := map[string]any{}
	if err := yaml.Unmarshal(yamlBytes, &doc); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
