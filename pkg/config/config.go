// Package config loads the sentinel.yaml application configuration: provider
// endpoints, the fraud model catalogue, and queue trigger settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/providers"
)

// Config is the structure of the sentinel.yaml file.
type Config struct {
	Providers       map[string]providers.Endpoint `yaml:"providers"`
	AnomalyProvider string                        `yaml:"anomaly_provider"`
	FraudModels     []FraudModelConfig            `yaml:"fraud_models"`
	Queue           QueueConfig                   `yaml:"queue"`
}

// FraudModelConfig is one model catalogue entry in the YAML file.
type FraudModelConfig struct {
	ID                  string  `yaml:"id"`
	ModelType           string  `yaml:"model_type"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	Severity            string  `yaml:"severity"`
	AutoBlock           bool    `yaml:"auto_block"`
	Active              bool    `yaml:"active"`
}

// QueueConfig configures the Redis queue trigger.
type QueueConfig struct {
	Enabled       bool           `yaml:"enabled"`
	Queue         string         `yaml:"queue"`
	Configuration map[string]any `yaml:"configuration"`
}

// Load reads and parses the configuration file.
func Load(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault attempts to load the config file, falling back to an empty
// configuration when the file does not exist.
func LoadOrDefault(filepath string) *Config {
	cfg, err := Load(filepath)
	if err != nil {
		return &Config{
			Providers:   map[string]providers.Endpoint{},
			FraudModels: []FraudModelConfig{},
		}
	}

	return cfg
}

// Validate checks the configuration for inconsistencies.
func Validate(cfg *Config) error {
	if cfg.AnomalyProvider != "" {
		if _, ok := cfg.Providers[cfg.AnomalyProvider]; !ok {
			return fmt.Errorf("anomaly_provider %q is not declared under providers", cfg.AnomalyProvider)
		}
	}

	for i, model := range cfg.FraudModels {
		if model.ID == "" {
			return fmt.Errorf("fraud_models[%d]: id is required", i)
		}

		if model.ModelType == "" {
			return fmt.Errorf("fraud_models[%d]: model_type is required", i)
		}

		if model.ConfidenceThreshold < 0 || model.ConfidenceThreshold > 1 {
			return fmt.Errorf("fraud_models[%d]: confidence_threshold must be between 0 and 1", i)
		}
	}

	if cfg.Queue.Enabled && cfg.Queue.Queue == "" {
		return fmt.Errorf("queue.queue is required when the queue trigger is enabled")
	}

	return nil
}

// Models converts the catalogue entries into persistable fraud models.
func (c *Config) Models(now time.Time) []*models.FraudModel {
	result := make([]*models.FraudModel, 0, len(c.FraudModels))

	for _, entry := range c.FraudModels {
		severity := models.Severity(entry.Severity)
		if severity == "" {
			severity = models.SeverityMedium
		}

		result = append(result, &models.FraudModel{
			ID:                  entry.ID,
			ModelType:           models.FraudModelType(entry.ModelType),
			ConfidenceThreshold: entry.ConfidenceThreshold,
			Severity:            severity,
			AutoBlock:           entry.AutoBlock,
			IsActive:            entry.Active,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	return result
}
