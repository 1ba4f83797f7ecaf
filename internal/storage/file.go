package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// FileSink writes records as a JSON array to a local file.
type FileSink struct {
	path   string
	logger *slog.Logger
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	return &FileSink{
		path:   path,
		logger: logger.With("component", "file_sink"),
	}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(ctx context.Context, records []types.Record) (types.Location, error) {
	if err := ctx.Err(); err != nil {
		return "", s.fail(err)
	}

	data, err := EncodeRecords(records)
	if err != nil {
		return "", s.fail(err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return "", s.fail(fmt.Errorf("create output dir: %w", err))
	}

	// Write to a sibling temp file first so a failed write never leaves a
	// truncated result behind.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".shelfcrawl-*.json")
	if err != nil {
		return "", s.fail(fmt.Errorf("create output file: %w", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", s.fail(fmt.Errorf("write output file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return "", s.fail(fmt.Errorf("close output file: %w", err))
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return "", s.fail(fmt.Errorf("rename output file: %w", err))
	}

	abs, err := filepath.Abs(s.path)
	if err != nil {
		abs = s.path
	}

	s.logger.Info("JSON written", "path", abs, "records", len(records))
	return types.Location("file://" + filepath.ToSlash(abs)), nil
}

func (s *FileSink) fail(err error) error {
	return &types.StorageError{Backend: s.Name(), Err: err}
}
