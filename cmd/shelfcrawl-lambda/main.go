// Command shelfcrawl-lambda runs one crawl per Lambda invocation. All
// settings come from SHELFCRAWL_* environment variables, e.g.
// SHELFCRAWL_SINK_TYPE=s3, SHELFCRAWL_SINK_BUCKET, SHELFCRAWL_SINK_KEY.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/handler"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(os.Getenv("SHELFCRAWL_CONFIG"))
	if err != nil {
		bootLogger.Error("load config", "error", err)
		os.Exit(1)
	}
	// Logs go to CloudWatch as JSON.
	cfg.Logging.Format = "json"

	if err := config.Validate(cfg); err != nil {
		bootLogger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging, os.Stderr, false)

	h, closeFn, err := handler.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("build handler", "error", err)
		os.Exit(1)
	}
	// lambda.Start never returns; release the sink on SIGTERM instead.
	lambda.StartWithOptions(h.Invoke, lambda.WithEnableSIGTERM(closeFn))
}
