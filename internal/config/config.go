// Package config loads and validates citearchive configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CITEARCHIVE_PATHS_OUTPUT.
const EnvPrefix = "CITEARCHIVE"

// Config captures every knob of the pipeline.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Wayback   WaybackConfig   `mapstructure:"wayback"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	KeepAwake KeepAwakeConfig `mapstructure:"keepawake"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// PathsConfig names every table the pipeline reads or writes.
type PathsConfig struct {
	Citations  string `mapstructure:"citations"`
	Clean      string `mapstructure:"clean"`
	NonArchive string `mapstructure:"non_archive"`
	Output     string `mapstructure:"output"`
	Final      string `mapstructure:"final"`
	ErrorLog   string `mapstructure:"error_log"`
}

// WaybackConfig configures the availability client.
type WaybackConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	EncodeQuery    bool   `mapstructure:"encode_query"`
	Retries        int    `mapstructure:"retries"`
	BackoffSeconds int    `mapstructure:"backoff_seconds"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// Backoff returns the base retry delay.
func (w WaybackConfig) Backoff() time.Duration {
	return time.Duration(w.BackoffSeconds) * time.Second
}

// Timeout returns the per-attempt timeout.
func (w WaybackConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// RunnerConfig controls batch pacing and durability.
type RunnerConfig struct {
	DelayMS    int    `mapstructure:"delay_ms"`
	FlushEvery int    `mapstructure:"flush_every"`
	ResumeKey  string `mapstructure:"resume_key"`
}

// Delay returns the polite pause between items.
func (r RunnerConfig) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

// HarvestConfig configures the Wikipedia harvester.
type HarvestConfig struct {
	APIURL            string   `mapstructure:"api_url"`
	UserAgent         string   `mapstructure:"user_agent"`
	Categories        []string `mapstructure:"categories"`
	TitlesPerCategory int      `mapstructure:"titles_per_category"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
}

// KeepAwakeConfig toggles the sleep inhibitor.
type KeepAwakeConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// StorageConfig sets where finished output stores are exported.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from defaults, an optional .env file, the environment
// and an optional config file. A missing .env file is not an error.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Every key gets a default, even an empty one, so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.citations", "wikipedia_citations.csv")
	v.SetDefault("paths.clean", "wikipedia_citations_clean.csv")
	v.SetDefault("paths.non_archive", "wikipedia_citations_clean_non_archive.csv")
	v.SetDefault("paths.output", "wikipedia_citations_with_archive_status.csv")
	v.SetDefault("paths.final", "wikipedia_citations_final.csv")
	v.SetDefault("paths.error_log", "errors.log")
	v.SetDefault("wayback.endpoint", "http://archive.org/wayback/available")
	v.SetDefault("wayback.encode_query", false)
	v.SetDefault("wayback.retries", 3)
	v.SetDefault("wayback.backoff_seconds", 5)
	v.SetDefault("wayback.timeout_seconds", 10)
	v.SetDefault("wayback.user_agent", "citearchive/1.0")
	v.SetDefault("runner.delay_ms", 500)
	v.SetDefault("runner.flush_every", 100)
	v.SetDefault("runner.resume_key", "link")
	v.SetDefault("harvest.api_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("harvest.user_agent", "WikiProjectBot/1.0")
	v.SetDefault("harvest.categories", []string{
		"Culture", "Geography", "Health", "History", "Human activities",
		"Mathematics", "Natural sciences", "People", "Philosophy", "Religion",
		"Society", "Technology", "General reference",
	})
	v.SetDefault("harvest.titles_per_category", 5)
	v.SetDefault("harvest.requests_per_second", 1.0)
	v.SetDefault("keepawake.enabled", true)
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.prefix", "citations")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.NonArchive) == "" {
		return fmt.Errorf("paths.non_archive must be set")
	}
	if strings.TrimSpace(c.Paths.Output) == "" {
		return fmt.Errorf("paths.output must be set")
	}
	if strings.TrimSpace(c.Paths.ErrorLog) == "" {
		return fmt.Errorf("paths.error_log must be set")
	}
	if c.Wayback.Endpoint == "" {
		return fmt.Errorf("wayback.endpoint must be set")
	}
	if c.Wayback.Retries <= 0 {
		return fmt.Errorf("wayback.retries must be > 0")
	}
	if c.Wayback.BackoffSeconds < 0 {
		return fmt.Errorf("wayback.backoff_seconds must be >= 0")
	}
	if c.Wayback.TimeoutSeconds <= 0 {
		return fmt.Errorf("wayback.timeout_seconds must be > 0")
	}
	if c.Runner.DelayMS < 0 {
		return fmt.Errorf("runner.delay_ms must be >= 0")
	}
	if c.Runner.FlushEvery <= 0 {
		return fmt.Errorf("runner.flush_every must be > 0")
	}
	switch strings.ToLower(c.Runner.ResumeKey) {
	case "link", "tuple":
	default:
		return fmt.Errorf("runner.resume_key must be \"link\" or \"tuple\", got %q", c.Runner.ResumeKey)
	}
	if c.Harvest.TitlesPerCategory <= 0 {
		return fmt.Errorf("harvest.titles_per_category must be > 0")
	}
	if c.Harvest.RequestsPerSecond < 0 {
		return fmt.Errorf("harvest.requests_per_second must be >= 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
