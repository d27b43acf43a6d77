package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/flowgraph/types"
)

// MarshalJSON serializes a WorkflowDefinition to JSON.
func (d *WorkflowDefinition) MarshalJSON() ([]byte, error) {
	type Alias WorkflowDefinition
	return json.Marshal((*Alias)(d))
}

// UnmarshalJSON deserializes a WorkflowDefinition from JSON.
func (d *WorkflowDefinition) UnmarshalJSON(data []byte) error {
	type Alias WorkflowDefinition
	aux := (*Alias)(d)
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("failed to unmarshal WorkflowDefinition: %w", err)
	}
	return nil
}

// ToJSON serializes the definition to indented JSON.
func (d *WorkflowDefinition) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ToYAML serializes the definition to YAML.
func (d *WorkflowDefinition) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// DefinitionFromJSON parses and validates a definition from JSON bytes.
func DefinitionFromJSON(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, types.NewError(types.ErrDefinition, "invalid JSON workflow definition").WithCause(err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// DefinitionFromYAML parses and validates a definition from YAML bytes.
func DefinitionFromYAML(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, types.NewError(types.ErrDefinition, "invalid YAML workflow definition").WithCause(err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinitionFile reads a workflow definition from a .json, .yaml, or
// .yml file. The definition is validated before being returned.
func LoadDefinitionFile(path string) (*WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DefinitionFromJSON(data)
	case ".yaml", ".yml":
		return DefinitionFromYAML(data)
	default:
		return nil, types.NewErrorf(types.ErrDefinition, "unsupported definition format %q", filepath.Ext(path))
	}
}

// SaveDefinitionFile writes a workflow definition to a .json, .yaml, or
// .yml file, chosen by extension.
func SaveDefinitionFile(def *WorkflowDefinition, path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = def.ToJSON()
	case ".yaml", ".yml":
		data, err = def.ToYAML()
	default:
		return types.NewErrorf(types.ErrDefinition, "unsupported definition format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to serialize definition: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write definition file: %w", err)
	}
	return nil
}
