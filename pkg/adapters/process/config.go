package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/scoserv/pkg/attribute"
	"gopkg.in/yaml.v3"
)

// ModelConfig describes an external command that implements a model.
type ModelConfig struct {
	Name        string            `yaml:"name" json:"name" mapstructure:"name"`
	Command     string            `yaml:"command" json:"command" mapstructure:"command"`
	Args        []string          `yaml:"args" json:"args" mapstructure:"args"`
	Environment map[string]string `yaml:"env" json:"env" mapstructure:"env"`
	// Output is the primary output file name, relative to the work dir.
	Output string `yaml:"output" json:"output" mapstructure:"output"`
	// Timeout bounds a single computation; zero means no limit.
	Timeout     time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	Description string        `yaml:"description" json:"description" mapstructure:"description"`
	// Parameters declares the run arguments the model accepts. When empty
	// the model takes attribute.ModelParameters.
	Parameters []ParameterConfig `yaml:"parameters" json:"parameters" mapstructure:"parameters"`
}

// ParameterConfig declares one model parameter. Type uses the attribute type
// names: "float", "int", "[float]".
type ParameterConfig struct {
	Name    string `yaml:"name" json:"name" mapstructure:"name"`
	Type    string `yaml:"type" json:"type" mapstructure:"type"`
	Default any    `yaml:"default" json:"default" mapstructure:"default"`
}

// Schema builds the parameter schema of the model.
func (c ModelConfig) Schema() (attribute.Schema, error) {
	if len(c.Parameters) == 0 {
		return attribute.ModelParameters(), nil
	}
	schema := make(attribute.Schema, len(c.Parameters))
	for _, p := range c.Parameters {
		typ, err := attribute.ParseType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("model %s: parameter %s: %w", c.Name, p.Name, err)
		}
		var opts []attribute.DefinitionOption
		if p.Default != nil {
			opts = append(opts, attribute.WithDefault(p.Default))
		}
		def, err := attribute.NewDefinition(p.Name, typ, opts...)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", c.Name, err)
		}
		schema[p.Name] = def
	}
	return schema, nil
}

// ConfigFile represents the structure of models.yaml.
type ConfigFile struct {
	Models []ModelConfig `yaml:"models" json:"models"`
}

// LoadModels reads a configuration file (YAML or JSON) and returns the
// models keyed by name. A missing file yields an empty map.
func LoadModels(path string) (map[string]ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ModelConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read models config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	models := make(map[string]ModelConfig)
	for _, m := range cfg.Models {
		if m.Name == "" || m.Command == "" {
			continue
		}
		models[m.Name] = m
	}
	return models, nil
}
