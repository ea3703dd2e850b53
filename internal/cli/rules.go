package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"kpi/internal/domain/kpi"
)

// LoadConfiguration reads a rules file. Sections the file leaves out fall
// back to the built-in defaults; an empty path yields the defaults.
func LoadConfiguration(path string) (kpi.Configuration, error) {
	if path == "" {
		return kpi.DefaultConfiguration(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return kpi.Configuration{}, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseConfiguration(raw)
}

func ParseConfiguration(raw []byte) (kpi.Configuration, error) {
	var cfg kpi.Configuration
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return kpi.Configuration{}, fmt.Errorf("parsing rules file: %w", err)
	}
	defaults := kpi.DefaultConfiguration()
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = defaults.Metrics
	}
	if len(cfg.Triggers) == 0 {
		cfg.Triggers = defaults.Triggers
	}
	if len(cfg.Ratings) == 0 {
		cfg.Ratings = defaults.Ratings
	}
	if cfg.Version == "" {
		sum := sha256.Sum256(raw)
		cfg.Version = "file-" + hex.EncodeToString(sum[:4])
	}
	return cfg, nil
}

// MarshalConfiguration renders cfg in the rules file format.
func MarshalConfiguration(cfg kpi.Configuration) ([]byte, error) {
	return yaml.Marshal(cfg)
}
