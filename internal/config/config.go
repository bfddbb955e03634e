// Package config loads and holds all pipeline configuration.
// Settings are layered: defaults → YAML config file → environment variables
// (env vars win), adapting the teacher proxy's defaults-then-file-then-env
// loader to the pipeline's §6 configuration sections.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MethodConfig configures one anonymization method (hash / mask / replace)
// for a set of fields, per spec.md §4.2's method table.
type MethodConfig struct {
	Fields  []string `yaml:"fields"`
	Salt    string   `yaml:"salt"`
	Pattern string   `yaml:"pattern"`
}

// DrainConfig tunes one template miner instance, per spec.md §4.6 / §6.
type DrainConfig struct {
	Depth               int     `yaml:"depth"`
	MaxChildren         int     `yaml:"max_children"`
	MaxClusters         int     `yaml:"max_clusters"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// Config holds the full pipeline configuration.
type Config struct {
	Regex struct {
		PatternsFile string `yaml:"patterns_file"`
	} `yaml:"regex"`

	Anonymization struct {
		AlwaysAnonymize []string                `yaml:"always_anonymize"`
		Methods         map[string]MethodConfig `yaml:"methods"`
		MaskToken       string                  `yaml:"mask_token"`
	} `yaml:"anonymization"`

	Drain3 struct {
		Original   DrainConfig `yaml:"original"`
		Anonymized DrainConfig `yaml:"anonymized"`
	} `yaml:"drain3"`

	TimestampNormalization struct {
		AllowContentScan bool `yaml:"allow_content_scan"`
	} `yaml:"timestamp_normalization"`

	BatchProcessing struct {
		OptimalBatchSize int `yaml:"optimal_batch_size"`
	} `yaml:"batch_processing"`

	LogLevel string `yaml:"log_level"`
}

// unboundedClusterValue disables miner eviction per spec.md §4.6.
const unboundedClusterValue = 999999

// defaults returns a Config seeded with the values implied by spec.md.
func defaults() *Config {
	c := &Config{}
	c.Regex.PatternsFile = "patterns.yaml"
	c.Anonymization.AlwaysAnonymize = []string{
		"devname", "devid", "vd", "tz", "hostname", "user", "username",
		"password", "session", "sessionid", "api_key", "token",
	}
	c.Anonymization.MaskToken = "***"
	c.Drain3.Original = DrainConfig{Depth: 4, MaxChildren: unboundedClusterValue, MaxClusters: unboundedClusterValue, SimilarityThreshold: 0.4}
	c.Drain3.Anonymized = DrainConfig{Depth: 4, MaxChildren: unboundedClusterValue, MaxClusters: unboundedClusterValue, SimilarityThreshold: 0.4}
	c.TimestampNormalization.AllowContentScan = false
	c.BatchProcessing.OptimalBatchSize = 0 // 0 = dynamic sizing per spec.md §4.7
	c.LogLevel = "info"
	return c
}

// Load returns config with defaults overridden by the YAML file at path and
// then by environment variables. path may be empty, in which case only
// defaults and env vars apply.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	loadEnv(cfg)
	clampBatchSize(cfg)
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil // file is optional
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// LOGPIPE_-prefixed env vars, mirroring the teacher's flat env-var override list.
func loadEnv(cfg *Config) {
	if v := os.Getenv("LOGPIPE_PATTERNS_FILE"); v != "" {
		cfg.Regex.PatternsFile = v
	}
	if v := os.Getenv("LOGPIPE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOGPIPE_ALLOW_CONTENT_SCAN"); v != "" {
		cfg.TimestampNormalization.AllowContentScan = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOGPIPE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchProcessing.OptimalBatchSize = n
		}
	}
	if v := os.Getenv("LOGPIPE_MASK_TOKEN"); v != "" {
		cfg.Anonymization.MaskToken = v
	}
}

// clampBatchSize enforces the [1000, 20000] override clamp from spec.md §4.7
// and §6. 0 (the "unset" sentinel) is left untouched so the dynamic sizing
// table in internal/pipeline applies instead.
func clampBatchSize(cfg *Config) {
	n := cfg.BatchProcessing.OptimalBatchSize
	if n == 0 {
		return
	}
	if n < 1000 {
		cfg.BatchProcessing.OptimalBatchSize = 1000
	} else if n > 20000 {
		cfg.BatchProcessing.OptimalBatchSize = 20000
	}
}

// AlwaysAnonymizeSet returns the configured always-anonymize field names as a
// lower-cased lookup set, per spec.md §4.2 (case-insensitive on the key).
func (c *Config) AlwaysAnonymizeSet() map[string]bool {
	set := make(map[string]bool, len(c.Anonymization.AlwaysAnonymize))
	for _, f := range c.Anonymization.AlwaysAnonymize {
		set[strings.ToLower(f)] = true
	}
	return set
}

// MethodForField returns the configured anonymization method name
// ("hash" / "mask" / "replace") for the given field, defaulting to "mask"
// when no method entry names the field explicitly.
func (c *Config) MethodForField(field string) (methodName string, method MethodConfig) {
	field = strings.ToLower(field)
	for name, m := range c.Anonymization.Methods {
		for _, f := range m.Fields {
			if strings.ToLower(f) == field {
				return name, m
			}
		}
	}
	return "mask", MethodConfig{}
}
