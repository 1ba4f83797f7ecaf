package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/engine"
	"github.com/IshaanNene/shelfcrawl/internal/fetcher"
	"github.com/IshaanNene/shelfcrawl/internal/parser"
	"github.com/IshaanNene/shelfcrawl/internal/storage"
)

// Build wires the fetcher, extractor, sink and driver described by cfg.
// The returned close func releases the fetcher and any sink connection.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...engine.Option) (*Handler, func(), error) {
	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create fetcher: %w", err)
	}

	ex, err := parser.New(cfg.Extractor, logger)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("create extractor: %w", err)
	}

	sink, err := storage.New(ctx, cfg.Sink, logger)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("create sink: %w", err)
	}

	closeFn := func() {
		if err := f.Close(); err != nil {
			logger.Error("fetcher close error", "error", err)
		}
		if c, ok := sink.(storage.Closer); ok {
			if err := c.Close(context.Background()); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}

	driver := engine.NewDriver(cfg.Engine, f, ex, sink, logger, opts...)
	return NewHandler(driver, cfg.Engine.SeedURL, logger), closeFn, nil
}
