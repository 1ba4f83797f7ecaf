package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// Sink is where a finished run's records are durably written.
type Sink interface {
	// Write persists records in one go and reports where they went.
	// Errors are *types.StorageError.
	Write(ctx context.Context, records []types.Record) (types.Location, error)

	// Name returns the sink backend identifier.
	Name() string
}

// Closer is implemented by sinks that hold connections.
type Closer interface {
	Close(ctx context.Context) error
}

// New creates the sink selected by cfg.Type.
func New(ctx context.Context, cfg config.SinkConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Type {
	case "file":
		return NewFileSink(cfg.Path, logger), nil
	case "s3":
		return NewS3Sink(ctx, cfg, logger)
	case "mongodb":
		return NewMongoSink(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownSink, cfg.Type)
	}
}

// EncodeRecords renders records as an indented JSON array of
// {"title", "price"} objects. A nil slice encodes as [].
func EncodeRecords(records []types.Record) ([]byte, error) {
	if records == nil {
		records = []types.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecords parses the output of EncodeRecords.
func DecodeRecords(data []byte) ([]types.Record, error) {
	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return records, nil
}
