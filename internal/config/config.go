package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultSeedURL is the catalog crawled when no URL is supplied.
const DefaultSeedURL = "https://books.toscrape.com/"

// Config is the root configuration for shelfcrawl.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"    yaml:"engine"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Extractor ExtractorConfig `mapstructure:"extractor" yaml:"extractor"`
	Sink      SinkConfig      `mapstructure:"sink"      yaml:"sink"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// EngineConfig controls the crawl driver.
type EngineConfig struct {
	SeedURL string `mapstructure:"seed_url" yaml:"seed_url"`
	// MaxPages stops pagination after this many pages. 0 means unlimited.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
	// RequestTimeout of 0 leaves the HTTP client without a timeout.
	RequestTimeout  time.Duration `mapstructure:"request_timeout"  yaml:"request_timeout"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	UserAgent       string        `mapstructure:"user_agent"       yaml:"user_agent"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	Stealth         bool          `mapstructure:"stealth"           yaml:"stealth"`
}

// ExtractorConfig holds the selectors that locate catalog entries.
// Selector syntax depends on Type: CSS for "css", XPath for "xpath".
type ExtractorConfig struct {
	Type  string `mapstructure:"type"  yaml:"type"`
	Entry string `mapstructure:"entry" yaml:"entry"`
	Title string `mapstructure:"title" yaml:"title"`
	Price string `mapstructure:"price" yaml:"price"`
	Next  string `mapstructure:"next"  yaml:"next"`

	// Attributes read instead of text. Empty means element text.
	TitleAttr string `mapstructure:"title_attr" yaml:"title_attr"`
	PriceAttr string `mapstructure:"price_attr" yaml:"price_attr"`
	NextAttr  string `mapstructure:"next_attr"  yaml:"next_attr"`
}

// SinkConfig selects where records are written.
type SinkConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // file, s3, mongodb
	Path string `mapstructure:"path" yaml:"path"`

	Bucket       string `mapstructure:"bucket"         yaml:"bucket"`
	Key          string `mapstructure:"key"            yaml:"key"`
	Region       string `mapstructure:"region"         yaml:"region"`
	Endpoint     string `mapstructure:"endpoint"       yaml:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`

	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`

	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			SeedURL:   DefaultSeedURL,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
		},
		Extractor: ExtractorConfig{
			Type:      "css",
			Entry:     "article.product_pod",
			Title:     "h3 a",
			TitleAttr: "title",
			Price:     "p.price_color",
			Next:      "li.next a",
			NextAttr:  "href",
		},
		Sink: SinkConfig{
			Type:            "file",
			Path:            "/tmp/books.json",
			Key:             "books.json",
			MongoDatabase:   "shelfcrawl",
			MongoCollection: "records",
			WriteTimeout:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// XPathDefaults returns the default selectors expressed as XPath.
func XPathDefaults() ExtractorConfig {
	return ExtractorConfig{
		Type:      "xpath",
		Entry:     `//article[contains(concat(" ", normalize-space(@class), " "), " product_pod ")]`,
		Title:     `.//h3/a`,
		TitleAttr: "title",
		Price:     `.//p[contains(concat(" ", normalize-space(@class), " "), " price_color ")]`,
		Next:      `//li[contains(concat(" ", normalize-space(@class), " "), " next ")]/a`,
		NextAttr:  "href",
	}
}
