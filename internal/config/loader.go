package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on top of the result.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	// SHELFCRAWL_SINK_BUCKET -> sink.bucket
	v.SetEnvPrefix("SHELFCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("shelfcrawl")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".shelfcrawl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine unless one was asked for explicitly.
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper. Every key must be
// registered for AutomaticEnv to reach it during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("engine.seed_url", cfg.Engine.SeedURL)
	v.SetDefault("engine.max_pages", cfg.Engine.MaxPages)
	v.SetDefault("engine.request_timeout", cfg.Engine.RequestTimeout)
	v.SetDefault("engine.politeness_delay", cfg.Engine.PolitenessDelay)
	v.SetDefault("engine.user_agent", cfg.Engine.UserAgent)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)

	v.SetDefault("extractor.type", cfg.Extractor.Type)
	v.SetDefault("extractor.entry", cfg.Extractor.Entry)
	v.SetDefault("extractor.title", cfg.Extractor.Title)
	v.SetDefault("extractor.price", cfg.Extractor.Price)
	v.SetDefault("extractor.next", cfg.Extractor.Next)
	v.SetDefault("extractor.title_attr", cfg.Extractor.TitleAttr)
	v.SetDefault("extractor.price_attr", cfg.Extractor.PriceAttr)
	v.SetDefault("extractor.next_attr", cfg.Extractor.NextAttr)

	v.SetDefault("sink.type", cfg.Sink.Type)
	v.SetDefault("sink.path", cfg.Sink.Path)
	v.SetDefault("sink.bucket", cfg.Sink.Bucket)
	v.SetDefault("sink.key", cfg.Sink.Key)
	v.SetDefault("sink.region", cfg.Sink.Region)
	v.SetDefault("sink.endpoint", cfg.Sink.Endpoint)
	v.SetDefault("sink.use_path_style", cfg.Sink.UsePathStyle)
	v.SetDefault("sink.mongo_uri", cfg.Sink.MongoURI)
	v.SetDefault("sink.mongo_database", cfg.Sink.MongoDatabase)
	v.SetDefault("sink.mongo_collection", cfg.Sink.MongoCollection)
	v.SetDefault("sink.write_timeout", cfg.Sink.WriteTimeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
