package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrEmptyResponse = errors.New("empty response body")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrUnknownSink   = errors.New("unknown sink type")
	ErrNoFetcher     = errors.New("no fetcher available for request")
)

// Stage names reported in failed status payloads.
const (
	StageFetch   = "fetch"
	StageExtract = "extract"
	StagePersist = "persist"
)

// FetchError wraps errors that occur during fetching. A FetchError always
// aborts the run.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur when a document cannot be read at all.
// A missing field is not a ParseError.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while writing records to a sink.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Stage classifies err by the run stage that produced it.
func Stage(err error) string {
	var fetchErr *FetchError
	var parseErr *ParseError
	var storageErr *StorageError
	switch {
	case errors.As(err, &fetchErr):
		return StageFetch
	case errors.As(err, &parseErr):
		return StageExtract
	case errors.As(err, &storageErr):
		return StagePersist
	default:
		return "run"
	}
}
