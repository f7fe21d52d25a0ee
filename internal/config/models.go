package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is the instruction sent with every generation call.
const DefaultSystemPrompt = "You are a thoughtful guide helping users explore their goals for 2025. Focus on constructive dialogue and practical steps."

// Models describes the fixed model pair used for dual generation and the
// shared generation parameters.
type Models struct {
	Dual         [2]string `yaml:"dual"`
	SystemPrompt string    `yaml:"system_prompt"`
	Temperature  float64   `yaml:"temperature"`
}

type modelsFile struct {
	Dual         []string `yaml:"dual"`
	SystemPrompt string   `yaml:"system_prompt"`
	Temperature  *float64 `yaml:"temperature"`
}

// DefaultModels returns the built-in model roster.
func DefaultModels() Models {
	return Models{
		Dual: [2]string{
			"ft:gpt-4o-mini-2024-07-18:personal:sj-v4:ALMRhmup",
			"ft:gpt-4o-mini-2024-07-18:personal:ft-sj-v5-1:ALdL8xoC",
		},
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  0.7,
	}
}

// LoadModels reads the model roster from a YAML file. An empty path returns
// the defaults. Fields missing from the file keep their default values.
func LoadModels(path string) (Models, error) {
	models := DefaultModels()
	if path == "" {
		return models, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Models{}, fmt.Errorf("read models file: %w", err)
	}

	var raw modelsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Models{}, fmt.Errorf("parse models file: %w", err)
	}

	if raw.Dual != nil {
		if len(raw.Dual) != 2 {
			return Models{}, fmt.Errorf("models file: dual must list exactly 2 models, got %d", len(raw.Dual))
		}
		if raw.Dual[0] == "" || raw.Dual[1] == "" || raw.Dual[0] == raw.Dual[1] {
			return Models{}, fmt.Errorf("models file: dual models must be distinct and non-empty")
		}
		models.Dual = [2]string{raw.Dual[0], raw.Dual[1]}
	}
	if raw.SystemPrompt != "" {
		models.SystemPrompt = raw.SystemPrompt
	}
	if raw.Temperature != nil {
		models.Temperature = *raw.Temperature
	}

	return models, nil
}
