// Package config loads application configuration from .newsdesk.yaml, a
// .env file and environment variables, in that order of increasing
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        App        `mapstructure:"app"`
	Gemini     Gemini     `mapstructure:"gemini"`
	Feeds      []Feed     `mapstructure:"feeds"`
	Preprocess Preprocess `mapstructure:"preprocess"`
	Planner    Planner    `mapstructure:"planner"`
}

// App holds general application configuration.
type App struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
}

// Gemini holds summarization oracle configuration.
type Gemini struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
}

// Feed describes one RSS/Atom source: its coarse topic label, the publisher
// name attached to its articles, and zero or more section hints inherited by
// every article it yields.
type Feed struct {
	URL          string   `mapstructure:"url"`
	Topic        string   `mapstructure:"topic"`
	Publisher    string   `mapstructure:"publisher"`
	SectionHints []string `mapstructure:"section_hints"`
}

// Preprocess holds deduplication/clustering pipeline tuning.
type Preprocess struct {
	Threshold           float64  `mapstructure:"threshold"`
	MergeThreshold      float64  `mapstructure:"merge_threshold"`
	MaxClusterSize      int      `mapstructure:"max_cluster_size"`
	TopicPartition      bool     `mapstructure:"topic_partition"`
	PreferredPublishers []string `mapstructure:"preferred_publishers"`
	CacheTTL            string   `mapstructure:"cache_ttl"`
	MaxArticleAge       string   `mapstructure:"max_article_age"`
}

// Planner holds topic-planning configuration.
type Planner struct {
	OracleTimeout string `mapstructure:"oracle_timeout"`
	Extra         int    `mapstructure:"extra"`
}

// Load reads configuration. An explicit configFile wins; otherwise
// .newsdesk.yaml is searched in the working directory and $HOME.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsdesk")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return config, nil
}

func setDefaults() {
	viper.SetDefault("app.data_dir", ".newsdesk")
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("gemini.timeout", "45s")

	viper.SetDefault("preprocess.threshold", 0.15)
	viper.SetDefault("preprocess.merge_threshold", 0.45)
	viper.SetDefault("preprocess.max_cluster_size", 20)
	viper.SetDefault("preprocess.topic_partition", true)
	viper.SetDefault("preprocess.cache_ttl", "30m")
	viper.SetDefault("preprocess.max_article_age", "24h")

	viper.SetDefault("planner.oracle_timeout", "45s")
	viper.SetDefault("planner.extra", 2)
}

// Duration parses a duration config value, falling back when empty or
// malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
