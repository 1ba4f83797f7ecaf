// Package shelfcrawl provides a public API for embedding the crawler as a
// library.
//
// Example usage:
//
//	result, err := shelfcrawl.Crawl(ctx, "https://books.toscrape.com/",
//	    shelfcrawl.WithMaxPages(5),
//	    shelfcrawl.WithFileOutput("./output/books.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(result.Records), "records at", result.Location)
package shelfcrawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/engine"
	"github.com/IshaanNene/shelfcrawl/internal/fetcher"
	"github.com/IshaanNene/shelfcrawl/internal/parser"
	"github.com/IshaanNene/shelfcrawl/internal/storage"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// Record is one extracted catalog entry.
type Record = types.Record

// Result is the outcome of a successful crawl.
type Result struct {
	RunID    string
	Records  []Record
	Pages    int
	Location string
	Duration time.Duration
}

// Option configures a crawl.
type Option func(*settings)

type settings struct {
	cfg    *config.Config
	logger *slog.Logger
}

// WithMaxPages stops pagination after n pages. 0 means unlimited.
func WithMaxPages(n int) Option {
	return func(s *settings) { s.cfg.Engine.MaxPages = n }
}

// WithDelay sets the minimum spacing between page fetches.
func WithDelay(d time.Duration) Option {
	return func(s *settings) { s.cfg.Engine.PolitenessDelay = d }
}

// WithTimeout sets a per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.cfg.Engine.RequestTimeout = d }
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.cfg.Engine.UserAgent = ua }
}

// WithFileOutput writes the records to a local JSON file.
func WithFileOutput(path string) Option {
	return func(s *settings) {
		s.cfg.Sink.Type = "file"
		s.cfg.Sink.Path = path
	}
}

// WithS3Output uploads the records to s3://bucket/key.
func WithS3Output(bucket, key, region string) Option {
	return func(s *settings) {
		s.cfg.Sink.Type = "s3"
		s.cfg.Sink.Bucket = bucket
		s.cfg.Sink.Key = key
		s.cfg.Sink.Region = region
	}
}

// WithCSSSelectors overrides the entry, title, price and next-link selectors.
// Title and next values are read from the text and href respectively.
func WithCSSSelectors(entry, title, price, next string) Option {
	return func(s *settings) {
		s.cfg.Extractor = config.ExtractorConfig{
			Type:     "css",
			Entry:    entry,
			Title:    title,
			Price:    price,
			Next:     next,
			NextAttr: "href",
		}
	}
}

// WithXPath switches to the XPath flavour of the default selectors.
func WithXPath() Option {
	return func(s *settings) { s.cfg.Extractor = config.XPathDefaults() }
}

// WithLogger sets the logger. By default the crawl is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// Crawl runs one crawl from seed and returns its records. A failed run
// returns the underlying *types.FetchError or *types.StorageError.
func Crawl(ctx context.Context, seed string, opts ...Option) (*Result, error) {
	s := &settings{
		cfg:    config.DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.cfg.Engine.SeedURL = seed
	for _, opt := range opts {
		opt(s)
	}

	if err := config.Validate(s.cfg); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	f, err := fetcher.New(s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ex, err := parser.New(s.cfg.Extractor, s.logger)
	if err != nil {
		return nil, err
	}

	sink, err := storage.New(ctx, s.cfg.Sink, s.logger)
	if err != nil {
		return nil, err
	}
	if c, ok := sink.(storage.Closer); ok {
		defer c.Close(context.Background())
	}

	run := engine.NewDriver(s.cfg.Engine, f, ex, sink, s.logger).Run(ctx, seed)
	if run.Status != types.StatusSucceeded {
		return nil, run.Err
	}

	return &Result{
		RunID:    run.RunID,
		Records:  run.Records,
		Pages:    run.Pages,
		Location: string(run.Location),
		Duration: run.Duration(),
	}, nil
}
