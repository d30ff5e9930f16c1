package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const errorFormat = "  - %s"

// SchemaValidationError represents a validation error from JSON schema validation
type SchemaValidationError struct {
	Field       string
	Description string
	Value       any
}

// Error implements the error interface
func (e SchemaValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidateDocument checks a YAML or TOML document against the embedded schema.
func ValidateDocument(data []byte, format Format) error {
	var doc any
	switch format {
	case FormatTOML:
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
		if m == nil {
			m = map[string]any{}
		}
		doc = m
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errorMessages []string
	for _, e := range result.Errors() {
		ve := SchemaValidationError{Field: e.Field(), Description: e.Description(), Value: e.Value()}
		errorMessages = append(errorMessages, fmt.Sprintf(errorFormat, ve.Error()))
	}
	return fmt.Errorf("configuration does not match schema:\n%s", strings.Join(errorMessages, "\n"))
}
