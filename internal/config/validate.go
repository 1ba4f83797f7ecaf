package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Engine.SeedURL); err != nil {
		return fmt.Errorf("engine.seed_url: %w", err)
	}
	if cfg.Engine.MaxPages < 0 {
		return fmt.Errorf("engine.max_pages must be >= 0, got %d", cfg.Engine.MaxPages)
	}
	if cfg.Engine.RequestTimeout < 0 {
		return fmt.Errorf("engine.request_timeout must be >= 0")
	}
	if cfg.Engine.PolitenessDelay < 0 {
		return fmt.Errorf("engine.politeness_delay must be >= 0")
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.FollowRedirects && cfg.Fetcher.MaxRedirects == 0 {
		return fmt.Errorf("fetcher.max_redirects must be > 0 when fetcher.follow_redirects is set")
	}
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}

	if cfg.Extractor.Type != "css" && cfg.Extractor.Type != "xpath" {
		return fmt.Errorf("extractor.type must be 'css' or 'xpath', got %q", cfg.Extractor.Type)
	}
	if cfg.Extractor.Entry == "" {
		return fmt.Errorf("extractor.entry must be set")
	}

	switch cfg.Sink.Type {
	case "file":
		if cfg.Sink.Path == "" {
			return fmt.Errorf("sink.path must be set for the file sink")
		}
	case "s3":
		if cfg.Sink.Bucket == "" || cfg.Sink.Key == "" {
			return fmt.Errorf("sink.bucket and sink.key must be set for the s3 sink")
		}
	case "mongodb":
		if cfg.Sink.MongoURI == "" {
			return fmt.Errorf("sink.mongo_uri must be set for the mongodb sink")
		}
	default:
		return fmt.Errorf("sink.type %q is not supported (valid: file, s3, mongodb)", cfg.Sink.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
