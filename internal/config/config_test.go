// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.FixLoop.MaxAttempts)
	assert.Equal(t, 300*time.Second, cfg.FixLoop.MaxDuration)
	assert.InDelta(t, 0.5, cfg.FixLoop.MinConfidenceThreshold, 1e-9)
	assert.InDelta(t, 0.8, cfg.FixLoop.MinMutationScore, 1e-9)
	assert.InDelta(t, 0.2, cfg.Analyzer.InvalidSyntaxPenalty, 1e-9)
	assert.Equal(t, 5, cfg.Mutation.MaxMutants)
	assert.Equal(t, "sqlite", cfg.Audit.Backend)
	assert.False(t, cfg.Sandbox.NetworkEnabled)
	assert.Contains(t, cfg.Sandbox.ExcludeDirs, ".git")
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max attempts", func(c *Config) { c.FixLoop.MaxAttempts = 0 }},
		{"negative duration", func(c *Config) { c.FixLoop.MaxDuration = -time.Second }},
		{"confidence above one", func(c *Config) { c.FixLoop.MinConfidenceThreshold = 1.5 }},
		{"mutation score below zero", func(c *Config) { c.FixLoop.MinMutationScore = -0.1 }},
		{"zero step timeout", func(c *Config) { c.Sandbox.StepTimeout = 0 }},
		{"penalty of one", func(c *Config) { c.Analyzer.InvalidSyntaxPenalty = 1.0 }},
		{"zero max hints", func(c *Config) { c.Analyzer.MaxHints = 0 }},
		{"llm enabled without model", func(c *Config) { c.Analyzer.LLM.Enabled = true; c.Analyzer.LLM.Model = "" }},
		{"zero mutants", func(c *Config) { c.Mutation.MaxMutants = 0 }},
		{"zero concurrency", func(c *Config) { c.Mutation.Concurrency = 0 }},
		{"unknown audit backend", func(c *Config) { c.Audit.Backend = "etcd" }},
		{"sqlite without path", func(c *Config) { c.Audit.Backend = "sqlite"; c.Audit.Path = "" }},
		{"postgres without url", func(c *Config) { c.Audit.Backend = "postgres"; c.Audit.PostgresURL = "" }},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	t.Parallel()
	v := viper.New()
	SetDefaults(v)
	v.Set("fixloop.max_attempts", 7)
	v.Set("audit.backend", "memory")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.FixLoop.MaxAttempts)
	assert.Equal(t, "memory", cfg.Audit.Backend)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	t.Parallel()
	v := viper.New()
	SetDefaults(v)
	v.Set("fixloop.max_attempts", 0)

	_, err := NewConfigFromViper(v)
	assert.Error(t, err)
}
