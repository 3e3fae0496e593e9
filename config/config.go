package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSourceURL is the upstream petroleum sales dataset.
const DefaultSourceURL = "https://raw.githubusercontent.com/younginnovations/" +
	"internship-challenges/master/programming/petroleum-report/data.json"

// Config holds report configuration.
type Config struct {
	SourceURL          string        `yaml:"source_url"`
	Timeout            time.Duration `yaml:"timeout"`
	UserAgent          string        `yaml:"user_agent"`
	Database           string        `yaml:"database"`
	SkipStore          bool          `yaml:"skip_store"`
	Workers            int           `yaml:"workers"`
	BatchSize          int           `yaml:"batch_size"`
	PipelineBufferSize int           `yaml:"pipeline_buffer_size"`
	CacheSize          int           `yaml:"cache_size"`
	OutputFormat       string        `yaml:"output_format"` // table, csv, json, yaml, or xlsx
	OutputFile         string        `yaml:"output_file"`
	IncludeNormalized  bool          `yaml:"include_normalized"`
	MetricsFile        string        `yaml:"metrics_file"`
	Verbose            bool          `yaml:"verbose"`
}

// DefaultConfig returns the defaults used when the report runs without flags.
func DefaultConfig() *Config {
	return &Config{
		SourceURL:          DefaultSourceURL,
		Timeout:            1 * time.Second,
		UserAgent:          "petroleum-report/1.0 (+https://github.com/aluiziolira/petroleum-report)",
		Database:           "report.db",
		SkipStore:          false,
		Workers:            1,
		BatchSize:          64,
		PipelineBufferSize: 512,
		CacheSize:          16,
		OutputFormat:       "table",
		OutputFile:         "",
		IncludeNormalized:  false,
		MetricsFile:        "",
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("source URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.SourceURL)
	if err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("source URL must include a host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if !c.SkipStore && c.Database == "" {
		return fmt.Errorf("database cannot be empty unless the store is skipped")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.PipelineBufferSize < 0 {
		return fmt.Errorf("pipeline buffer size cannot be negative")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}

	switch c.OutputFormat {
	case "table":
	case "csv", "json", "yaml", "yml", "xlsx":
		if c.OutputFile == "" {
			return fmt.Errorf("output file is required for %s output", c.OutputFormat)
		}
	default:
		return fmt.Errorf("output format must be table, csv, json, yaml, or xlsx")
	}

	return nil
}

// LoadFile merges a YAML config file over cfg. A missing file is not an error.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return nil
}

// EnvString returns the value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvDuration parses key as a time.Duration when it is set.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}
