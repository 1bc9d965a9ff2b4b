// Package config provides configuration management for spendlens.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset"`
	Index   IndexConfig   `yaml:"index"`
	Ask     AskConfig     `yaml:"ask"`
	Server  ServerConfig  `yaml:"server"`
	Detect  DetectConfig  `yaml:"detect"`
	GCS     GCSConfig     `yaml:"gcs"`
	Notion  NotionConfig  `yaml:"notion"`
}

// DatasetConfig locates the spend table.
type DatasetConfig struct {
	// Path is the default source used when a request does not name one.
	// Plain file path, gs://bucket/object, or bq://project.dataset.table.
	Path string `yaml:"path"`
}

// IndexConfig configures the embedding index.
type IndexConfig struct {
	Dir        string `yaml:"dir"`
	EmbedModel string `yaml:"embed_model"`
	BatchSize  int    `yaml:"batch_size"`
}

// AskConfig configures the question answering endpoint.
type AskConfig struct {
	AnswerModel    string `yaml:"answer_model"`
	MaxQuestionLen int    `yaml:"max_question_len"`
}

// Duration is a time.Duration that unmarshals from YAML scalars such as
// "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     string   `yaml:"port"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// DetectConfig holds default thresholds for the detectors.
type DetectConfig struct {
	ThresholdPct     float64 `yaml:"threshold_pct"`
	IdleMonths       int     `yaml:"idle_months"`
	MinMonthlySaving float64 `yaml:"min_monthly_saving"`
}

// GCSConfig configures the optional artifact mirror bucket.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
}

// NotionConfig configures the findings export.
type NotionConfig struct {
	DatabaseID string `yaml:"database_id"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{Path: "data/cloud_spend.csv"},
		Index: IndexConfig{
			Dir:        "data/index",
			EmbedModel: "text-embedding-004",
			BatchSize:  64,
		},
		Ask: AskConfig{
			AnswerModel:    "gemini-2.5-flash",
			MaxQuestionLen: 400,
		},
		Server: ServerConfig{
			Port:     "8080",
			CacheTTL: Duration(5 * time.Minute),
		},
		Detect: DetectConfig{
			ThresholdPct:     20,
			IdleMonths:       2,
			MinMonthlySaving: 1.0,
		},
	}
}

// Load loads configuration from a YAML file, layered over the defaults and
// under any SPENDLENS_* environment overrides. A missing file is not an
// error: callers get defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		// Expand environment variables referenced inside the file
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()

	if cfg.Index.BatchSize <= 0 {
		cfg.Index.BatchSize = 64
	}
	if cfg.Server.CacheTTL <= 0 {
		cfg.Server.CacheTTL = Duration(5 * time.Minute)
	}
	if cfg.Ask.MaxQuestionLen <= 0 {
		cfg.Ask.MaxQuestionLen = 400
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SPENDLENS_DATASET"); v != "" {
		c.Dataset.Path = v
	}
	if v := os.Getenv("SPENDLENS_INDEX_DIR"); v != "" {
		c.Index.Dir = v
	}
	if v := os.Getenv("SPENDLENS_EMBED_MODEL"); v != "" {
		c.Index.EmbedModel = v
	}
	if v := os.Getenv("SPENDLENS_ANSWER_MODEL"); v != "" {
		c.Ask.AnswerModel = v
	}
	if v := os.Getenv("SPENDLENS_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("SPENDLENS_GCS_BUCKET"); v != "" {
		c.GCS.Bucket = v
	}
	if v := os.Getenv("SPENDLENS_NOTION_DB"); v != "" {
		c.Notion.DatabaseID = v
	}
}
