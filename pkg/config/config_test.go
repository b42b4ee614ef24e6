package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/sentinel/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
providers:
  sanctions_screening:
    url: https://sanctions.example.com/check
    headers:
      X-API-Key: test-key
  anomaly_detector:
    url: https://anomaly.example.com/score
anomaly_provider: anomaly_detector
fraud_models:
  - id: model-structuring
    model_type: pattern_fraud
    confidence_threshold: 0.6
    severity: high
    auto_block: false
    active: true
queue:
  enabled: true
  queue: sentinel:executions
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Providers, 2)
	assert.Equal(t, "https://sanctions.example.com/check", cfg.Providers["sanctions_screening"].URL)
	assert.Equal(t, "test-key", cfg.Providers["sanctions_screening"].Headers["X-API-Key"])
	assert.Equal(t, "anomaly_detector", cfg.AnomalyProvider)
	assert.True(t, cfg.Queue.Enabled)
	assert.Equal(t, "sentinel:executions", cfg.Queue.Queue)
}

func TestLoadRejectsUnknownAnomalyProvider(t *testing.T) {
	path := writeConfig(t, `
providers:
  sanctions_screening:
    url: https://sanctions.example.com/check
anomaly_provider: missing_provider
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anomaly_provider")
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	path := writeConfig(t, `
fraud_models:
  - id: model-1
    model_type: velocity_check
    confidence_threshold: 1.5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence_threshold")
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Empty(t, cfg.Providers)
	assert.Empty(t, cfg.FraudModels)
}

func TestModels(t *testing.T) {
	cfg := &Config{
		FraudModels: []FraudModelConfig{
			{ID: "model-1", ModelType: "velocity", ConfidenceThreshold: 0.7, Severity: "critical", AutoBlock: true, Active: true},
			{ID: "model-2", ModelType: "pattern_fraud", ConfidenceThreshold: 0.6},
		},
	}

	now := time.Now().UTC()
	converted := cfg.Models(now)
	require.Len(t, converted, 2)

	assert.Equal(t, models.ModelTypeVelocity, converted[0].ModelType)
	assert.Equal(t, models.SeverityCritical, converted[0].Severity)
	assert.True(t, converted[0].AutoBlock)
	assert.Equal(t, now, converted[0].CreatedAt)

	// Severity defaults to medium when omitted.
	assert.Equal(t, models.SeverityMedium, converted[1].Severity)
}
