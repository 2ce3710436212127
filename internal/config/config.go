// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	FixLoop  FixLoopConfig  `mapstructure:"fixloop" yaml:"fixloop"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox" yaml:"sandbox"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
	Mutation MutationConfig `mapstructure:"mutation" yaml:"mutation"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	Policy   PolicyConfig   `mapstructure:"policy" yaml:"policy"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// FixLoopConfig bounds one self-correction run.
type FixLoopConfig struct {
	MaxAttempts            int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	MaxDuration            time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	MinConfidenceThreshold float64       `mapstructure:"min_confidence_threshold" yaml:"min_confidence_threshold"`
	MinMutationScore       float64       `mapstructure:"min_mutation_score" yaml:"min_mutation_score"`
	// Cooldown paces retries. Zero disables pacing entirely.
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// SandboxConfig constrains sandbox executions.
type SandboxConfig struct {
	StepTimeout    time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	MaxMemoryMB    int           `mapstructure:"max_memory_mb" yaml:"max_memory_mb"`
	MaxCPUSeconds  int           `mapstructure:"max_cpu_seconds" yaml:"max_cpu_seconds"`
	NetworkEnabled bool          `mapstructure:"network_enabled" yaml:"network_enabled"`
	// KeepOnFailure preserves a failed sandbox copy for debugging instead of
	// deleting it. Never set in production.
	KeepOnFailure bool     `mapstructure:"keep_on_failure" yaml:"keep_on_failure"`
	ExcludeDirs   []string `mapstructure:"exclude_dirs" yaml:"exclude_dirs"`
}

// AnalyzerConfig tunes hint generation and validation.
type AnalyzerConfig struct {
	// InvalidSyntaxPenalty is the dampening factor applied to a hint's
	// confidence when its diff fails syntax validation.
	InvalidSyntaxPenalty float64            `mapstructure:"invalid_syntax_penalty" yaml:"invalid_syntax_penalty"`
	MaxHints             int                `mapstructure:"max_hints" yaml:"max_hints"`
	LLM                  LLMSuggesterConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMSuggesterConfig configures the optional language-model hint backend.
type LLMSuggesterConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// MutationConfig bounds the supplementary mutation phase of the gate.
type MutationConfig struct {
	MaxMutants  int `mapstructure:"max_mutants" yaml:"max_mutants"`
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// AuditConfig selects the audit trail backing store.
type AuditConfig struct {
	// Backend is one of "memory", "sqlite", or "postgres".
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Path        string `mapstructure:"path" yaml:"path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"-"`
}

// PolicyConfig lists path prefixes a fix may never touch.
type PolicyConfig struct {
	DeniedPaths []string `mapstructure:"denied_paths" yaml:"denied_paths"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "crucible")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Fix loop --
	v.SetDefault("fixloop.max_attempts", 5)
	v.SetDefault("fixloop.max_duration", "300s")
	v.SetDefault("fixloop.min_confidence_threshold", 0.5)
	v.SetDefault("fixloop.min_mutation_score", 0.8)
	v.SetDefault("fixloop.cooldown", "0s")

	// -- Sandbox --
	v.SetDefault("sandbox.step_timeout", "120s")
	v.SetDefault("sandbox.max_memory_mb", 2048)
	v.SetDefault("sandbox.max_cpu_seconds", 120)
	v.SetDefault("sandbox.network_enabled", false)
	v.SetDefault("sandbox.keep_on_failure", false)
	v.SetDefault("sandbox.exclude_dirs", []string{".git", ".hg", "node_modules", "vendor", "__pycache__", ".venv", "target", "dist"})

	// -- Analyzer --
	v.SetDefault("analyzer.invalid_syntax_penalty", 0.2)
	v.SetDefault("analyzer.max_hints", 5)
	v.SetDefault("analyzer.llm.enabled", false)
	v.SetDefault("analyzer.llm.model", "gemini-2.5-pro")
	v.SetDefault("analyzer.llm.api_timeout", "2m")

	// -- Mutation --
	v.SetDefault("mutation.max_mutants", 5)
	v.SetDefault("mutation.concurrency", 2)

	// -- Audit --
	v.SetDefault("audit.backend", "sqlite")
	v.SetDefault("audit.path", defaultAuditPath())

	// -- Policy --
	v.SetDefault("policy.denied_paths", []string{".git/", ".hg/"})
}

// defaultAuditPath places the audit database under the user's home
// directory, falling back to the working directory when home resolution
// fails.
func defaultAuditPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "crucible-audit.db"
	}
	return filepath.Join(home, ".crucible", "audit.db")
}

// NewDefaultConfig creates a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper
// instance that has already read files, flags, and environment.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("analyzer.llm.api_key", "CRUCIBLE_LLM_API_KEY")
	v.BindEnv("audit.postgres_url", "CRUCIBLE_AUDIT_POSTGRES_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Analyzer.LLM.Enabled && cfg.Analyzer.LLM.APIKey == "" {
		cfg.Analyzer.LLM.APIKey = os.Getenv("CRUCIBLE_LLM_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.FixLoop.Validate(); err != nil {
		return fmt.Errorf("fixloop configuration invalid: %w", err)
	}
	if err := c.Sandbox.Validate(); err != nil {
		return fmt.Errorf("sandbox configuration invalid: %w", err)
	}
	if err := c.Analyzer.Validate(); err != nil {
		return fmt.Errorf("analyzer configuration invalid: %w", err)
	}
	if err := c.Mutation.Validate(); err != nil {
		return fmt.Errorf("mutation configuration invalid: %w", err)
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit configuration invalid: %w", err)
	}
	return nil
}

// Validate checks loop bounds.
func (f *FixLoopConfig) Validate() error {
	if f.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if f.MaxDuration <= 0 {
		return fmt.Errorf("max_duration must be a positive duration")
	}
	if f.MinConfidenceThreshold < 0.0 || f.MinConfidenceThreshold > 1.0 {
		return fmt.Errorf("min_confidence_threshold must be between 0.0 and 1.0")
	}
	if f.MinMutationScore < 0.0 || f.MinMutationScore > 1.0 {
		return fmt.Errorf("min_mutation_score must be between 0.0 and 1.0")
	}
	return nil
}

// Validate checks sandbox ceilings.
func (s *SandboxConfig) Validate() error {
	if s.StepTimeout <= 0 {
		return fmt.Errorf("step_timeout must be a positive duration")
	}
	if s.MaxMemoryMB <= 0 {
		return fmt.Errorf("max_memory_mb must be a positive integer")
	}
	if s.MaxCPUSeconds <= 0 {
		return fmt.Errorf("max_cpu_seconds must be a positive integer")
	}
	return nil
}

// Validate checks analyzer tuning.
func (a *AnalyzerConfig) Validate() error {
	if a.InvalidSyntaxPenalty <= 0.0 || a.InvalidSyntaxPenalty >= 1.0 {
		return fmt.Errorf("invalid_syntax_penalty must be in (0.0, 1.0)")
	}
	if a.MaxHints <= 0 {
		return fmt.Errorf("max_hints must be greater than 0")
	}
	if a.LLM.Enabled && a.LLM.Model == "" {
		return fmt.Errorf("llm.model is required when the LLM suggester is enabled")
	}
	return nil
}

// Validate checks mutation bounds.
func (m *MutationConfig) Validate() error {
	if m.MaxMutants <= 0 {
		return fmt.Errorf("max_mutants must be greater than 0")
	}
	if m.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than 0")
	}
	return nil
}

// Validate checks the audit backend selection.
func (a *AuditConfig) Validate() error {
	switch a.Backend {
	case "memory":
		return nil
	case "sqlite":
		if a.Path == "" {
			return fmt.Errorf("audit.path is required for the sqlite backend")
		}
		return nil
	case "postgres":
		if a.PostgresURL == "" {
			return fmt.Errorf("postgres_url is required for the postgres backend. Ensure CRUCIBLE_AUDIT_POSTGRES_URL is set")
		}
		return nil
	default:
		return fmt.Errorf("unknown audit backend '%s'. Supported: [memory, sqlite, postgres]", a.Backend)
	}
}
