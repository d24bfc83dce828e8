// Package config loads the pipeline configuration from the environment and
// an optional YAML file. Environment variables use the WCA_ prefix with a
// double underscore for nesting, e.g. WCA_IDP__URL -> idp.url and
// WCA_RETRY_COUNT -> retry_count. The configuration is read once at
// construction and never mutated.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Variant names accepted in configuration.
const (
	VariantSaaS   = "wca"
	VariantOnPrem = "wca-onprem"
	VariantHTTP   = "http"
	VariantDummy  = "dummy"
)

// Config is the full pipeline configuration.
type Config struct {
	// Variant selects the pipeline implementation: wca, wca-onprem, http,
	// or dummy.
	Variant string `koanf:"variant"`

	// InferenceURL is the base URL of the model service.
	InferenceURL string `koanf:"inference_url"`

	IDP IDPConfig `koanf:"idp"`

	// APIKeyOverride forces a fleet-wide API key. For the on-prem variant
	// this is the only key source.
	APIKeyOverride string `koanf:"api_key_override"`

	// ModelIDOverride is the org-independent default model id.
	ModelIDOverride string `koanf:"model_id_override"`

	Trial TrialConfig `koanf:"trial"`

	// RetryCount is the number of additional HTTP attempts after the
	// first; zero disables retry entirely.
	RetryCount int `koanf:"retry_count"`

	// TimeoutPerTask bounds a single HTTP attempt; multi-task prompts
	// multiply it by the task count.
	TimeoutPerTask time.Duration `koanf:"timeout_per_task"`

	// VerifyTLS controls upstream certificate verification.
	VerifyTLS bool `koanf:"verify_tls"`

	// Username is the ZenApiKey login for the on-prem variant.
	Username string `koanf:"username"`

	Health  HealthConfig  `koanf:"health"`
	Dummy   DummyConfig   `koanf:"dummy"`
	Secrets SecretsConfig `koanf:"secrets"`
}

// IDPConfig locates the identity provider for the SaaS variant.
type IDPConfig struct {
	URL      string `koanf:"url"`
	Login    string `koanf:"login"`
	Password string `koanf:"password"`
}

// TrialConfig holds the fleet-provided defaults for trial users.
type TrialConfig struct {
	Enabled  bool   `koanf:"enabled"`
	PlanName string `koanf:"plan_name"`
	APIKey   string `koanf:"api_key"`
	ModelID  string `koanf:"model_id"`
}

// HealthConfig holds the reserved credentials for the health probe.
type HealthConfig struct {
	APIKey  string `koanf:"api_key"`
	ModelID string `koanf:"model_id"`
}

// DummyConfig tunes the canned-response variant.
type DummyConfig struct {
	Latency time.Duration `koanf:"latency"`

	// Response replaces the built-in canned completion prediction.
	Response string `koanf:"response"`
}

// SecretsConfig selects a local secret-store adapter. The production
// deployment injects its own store instead.
type SecretsConfig struct {
	// Type is one of memory, sqlite, redis, or empty for none.
	Type string `koanf:"type"`

	SQLitePath    string `koanf:"sqlite_path"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// Load reads configuration from an optional YAML file layered under WCA_
// environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults first, then file, then environment; later loads win.
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("WCA_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "WCA_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"variant":          VariantSaaS,
		"retry_count":      4,
		"timeout_per_task": "20s",
		"verify_tls":       true,
		"trial.plan_name":  "trial of 90 days",
		"health.api_key":   "health-check",
		"health.model_id":  "health-check",
	}
}

// Validate checks the variant-specific required fields.
func (c *Config) Validate() error {
	switch c.Variant {
	case VariantSaaS:
		if c.InferenceURL == "" {
			return fmt.Errorf("inference_url is required for the %s variant", c.Variant)
		}
		if c.IDP.URL == "" {
			return fmt.Errorf("idp.url is required for the %s variant", c.Variant)
		}
	case VariantOnPrem:
		if c.InferenceURL == "" {
			return fmt.Errorf("inference_url is required for the %s variant", c.Variant)
		}
		if c.Username == "" {
			return fmt.Errorf("username is required for the %s variant", c.Variant)
		}
		if c.APIKeyOverride == "" {
			return fmt.Errorf("api_key_override is required for the %s variant", c.Variant)
		}
	case VariantHTTP:
		if c.InferenceURL == "" {
			return fmt.Errorf("inference_url is required for the %s variant", c.Variant)
		}
	case VariantDummy:
		// Nothing required.
	default:
		return fmt.Errorf("unknown pipeline variant %q", c.Variant)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry_count must not be negative")
	}
	return nil
}
