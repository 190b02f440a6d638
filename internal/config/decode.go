package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Format is the on-disk syntax of a config file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the syntax from the file extension. Anything other than
// .yaml or .yml is read as JSON.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode parses data in the format implied by name. Both formats go through
// the same strict JSON decoder: unknown fields and trailing data are errors.
func Decode(name string, data []byte) (*Config, error) {
	raw := data
	if FormatOf(name) == FormatYAML {
		j, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		raw = j
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", FormatOf(name), err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode %s config: trailing data", FormatOf(name))
	}
	return &cfg, nil
}

// yamlToJSON re-encodes the first YAML document as JSON. An empty document
// becomes an empty object.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return []byte("{}"), nil
	}
	var v any
	if err := doc.Content[0].Decode(&v); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	v, err := jsonable(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// jsonable rewrites YAML maps with non-string keys into string-keyed maps.
func jsonable(in any) (any, error) {
	switch x := in.(type) {
	case map[string]any:
		for k, v := range x {
			c, err := jsonable(v)
			if err != nil {
				return nil, err
			}
			x[k] = c
		}
		return x, nil
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			switch k.(type) {
			case map[string]any, map[any]any, []any:
				return nil, fmt.Errorf("yaml: unsupported map key %v", k)
			}
			c, err := jsonable(v)
			if err != nil {
				return nil, err
			}
			m[fmt.Sprint(k)] = c
		}
		return m, nil
	case []any:
		for i, v := range x {
			c, err := jsonable(v)
			if err != nil {
				return nil, err
			}
			x[i] = c
		}
		return x, nil
	default:
		return in, nil
	}
}
