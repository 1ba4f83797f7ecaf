package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/engine"
	"github.com/IshaanNene/shelfcrawl/internal/handler"
	"github.com/IshaanNene/shelfcrawl/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	sinkType  string
	output    string
	bucket    string
	key       string
	maxPages  int
	timeout   string
	extractor string
	browser   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shelfcrawl",
		Short: "shelfcrawl — paginated catalog crawler",
		Long: `shelfcrawl follows a catalog's "next page" links from a seed URL, extracts
a title and price for every entry, and writes the records as one JSON array
to a local file, an S3 object, or a MongoDB collection.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl a paginated catalog",
		Long:  "Crawl from the given seed URL (or engine.seed_url) until no next page remains, then write all records to the sink.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCrawl,
	}

	cmd.Flags().StringVarP(&sinkType, "sink", "s", "", "sink type: file, s3, mongodb")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path for the file sink")
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket for the s3 sink")
	cmd.Flags().StringVar(&key, "key", "", "S3 object key for the s3 sink")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "m", -1, "stop after this many pages (0 = unlimited, -1 = config)")
	cmd.Flags().StringVar(&timeout, "timeout", "", "per-request timeout, e.g. 30s (default: none)")
	cmd.Flags().StringVar(&extractor, "extractor", "", "selector flavour: css or xpath")
	cmd.Flags().BoolVar(&browser, "browser", false, "render pages in headless Chromium")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := applyCLIOverrides(cfg, args); err != nil {
		return err
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := config.NewLogger(cfg.Logging, os.Stderr, verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []engine.Option
	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(logger)
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer srv.Close()
		opts = append(opts, engine.WithMetrics(metrics))
	}

	h, closeFn, err := handler.Build(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer closeFn()

	payload, err := h.Invoke(ctx, nil)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return err
	}

	if payload.StatusCode != 200 {
		return fmt.Errorf("crawl failed with status %d", payload.StatusCode)
	}
	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelfcrawl %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Engine:\n")
			fmt.Fprintf(w, "  Seed URL:          %s\n", cfg.Engine.SeedURL)
			fmt.Fprintf(w, "  Max Pages:         %d\n", cfg.Engine.MaxPages)
			fmt.Fprintf(w, "  Request Timeout:   %s\n", cfg.Engine.RequestTimeout)
			fmt.Fprintf(w, "  Politeness Delay:  %s\n", cfg.Engine.PolitenessDelay)
			fmt.Fprintf(w, "\nFetcher:\n")
			fmt.Fprintf(w, "  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Fprintf(w, "  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Fprintf(w, "\nExtractor:\n")
			fmt.Fprintf(w, "  Type:              %s\n", cfg.Extractor.Type)
			fmt.Fprintf(w, "  Entry:             %s\n", cfg.Extractor.Entry)
			fmt.Fprintf(w, "  Title:             %s\n", cfg.Extractor.Title)
			fmt.Fprintf(w, "  Price:             %s\n", cfg.Extractor.Price)
			fmt.Fprintf(w, "  Next:              %s\n", cfg.Extractor.Next)
			fmt.Fprintf(w, "\nSink:\n")
			fmt.Fprintf(w, "  Type:              %s\n", cfg.Sink.Type)
			switch cfg.Sink.Type {
			case "file":
				fmt.Fprintf(w, "  Path:              %s\n", cfg.Sink.Path)
			case "s3":
				fmt.Fprintf(w, "  Object:            s3://%s/%s\n", cfg.Sink.Bucket, cfg.Sink.Key)
			case "mongodb":
				fmt.Fprintf(w, "  Collection:        %s.%s\n", cfg.Sink.MongoDatabase, cfg.Sink.MongoCollection)
			}
			fmt.Fprintf(w, "\nMetrics:\n")
			fmt.Fprintf(w, "  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Fprintf(w, "  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		cfg.Engine.SeedURL = args[0]
	}
	if sinkType != "" {
		cfg.Sink.Type = sinkType
	}
	if output != "" {
		cfg.Sink.Path = output
	}
	if bucket != "" {
		cfg.Sink.Bucket = bucket
	}
	if key != "" {
		cfg.Sink.Key = key
	}
	if maxPages >= 0 {
		cfg.Engine.MaxPages = maxPages
	}
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", timeout, err)
		}
		cfg.Engine.RequestTimeout = d
	}
	if extractor == "xpath" && cfg.Extractor.Type != "xpath" {
		cfg.Extractor = config.XPathDefaults()
	} else if extractor != "" {
		cfg.Extractor.Type = extractor
	}
	if browser {
		cfg.Fetcher.Type = "browser"
	}
	return nil
}
