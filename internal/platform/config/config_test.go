package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 50, cfg.Risk.ReviewAbove)
	assert.Equal(t, 75, cfg.Risk.RejectAtOrAbove)
	assert.Equal(t, 150000.0, cfg.Financial.PremiumIncomeAbove)
	assert.Equal(t, 90*24*time.Hour, cfg.Financial.InsightWindow)
	assert.Equal(t, 12, cfg.Statements.MaxPolls)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 16, cfg.Providers.MaxConcurrent)
	assert.Equal(t, 1024, cfg.Workflow.MaxInFlight)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("RISK_REVIEW_ABOVE", "40")
	t.Setenv("STATEMENT_POLL_INTERVAL", "250ms")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("PROVIDER_ENDPOINTS", "identity=https://id.example, aml=https://aml.example")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Risk.ReviewAbove)
	assert.Equal(t, 250*time.Millisecond, cfg.Statements.PollInterval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://aml.example", cfg.Providers.Endpoints["aml"])
}

func TestValidate(t *testing.T) {
	t.Run("stubs refused in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("USE_STUB_PROVIDERS", "true")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "USE_STUB_PROVIDERS")
	})

	t.Run("stub fallback refused in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("PROVIDER_STUB_FALLBACK", "true")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "PROVIDER_STUB_FALLBACK")
	})

	t.Run("stubs allowed in staging", func(t *testing.T) {
		t.Setenv("APP_ENV", "staging")
		t.Setenv("USE_STUB_PROVIDERS", "true")
		_, err := FromEnv()
		assert.NoError(t, err)
	})

	t.Run("request timeout must fit in the write timeout", func(t *testing.T) {
		t.Setenv("ONBOARD_REQUEST_TIMEOUT", "3m")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "ONBOARD_REQUEST_TIMEOUT")
	})

	t.Run("provider concurrency must be positive", func(t *testing.T) {
		t.Setenv("PROVIDER_MAX_CONCURRENT", "0")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "PROVIDER_MAX_CONCURRENT")
	})

	t.Run("thresholds must be ordered", func(t *testing.T) {
		t.Setenv("RISK_REVIEW_ABOVE", "80")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
