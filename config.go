package sqlmapper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sqlmapper/token"
)

// Config carries the session-level settings that influence document
// resolution.
type Config struct {
	// Vendor selects which vendor-tagged statement and fragment variants
	// apply. Empty accepts only untagged declarations.
	Vendor string `yaml:"vendor"`

	// UseGeneratedKeys is the global default for insert statements that do
	// not set their own useGeneratedKeys attribute.
	UseGeneratedKeys bool `yaml:"useGeneratedKeys"`

	// Variables is the placeholder table consulted by ${name} expansion in
	// attribute values and statement text.
	Variables map[string]string `yaml:"variables"`
}

// LoadConfigFile loads and parses a YAML session config from the given path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML data into a Config.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config

	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyConfigDefaults(&cfg)

	return &cfg, nil
}

// applyConfigDefaults fills in default values for optional fields.
func applyConfigDefaults(cfg *Config) {
	if cfg.Variables == nil {
		cfg.Variables = make(map[string]string)
	}

	// Placeholder defaults stay off unless the config switches them on.
	if _, ok := cfg.Variables[token.KeyEnableDefaultValue]; !ok {
		cfg.Variables[token.KeyEnableDefaultValue] = "false"
	}
}
