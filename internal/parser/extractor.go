package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// Extractor turns one page of HTML into records and an optional next link.
// Implementations hold no per-page state and may be reused across runs.
type Extractor interface {
	// Extract parses body and resolves the next link against baseURL.
	// A field that cannot be located is nil in its record, never an error.
	Extract(body []byte, baseURL string) (*types.PageResult, error)
}

// New creates the extractor selected by cfg.Type.
func New(cfg config.ExtractorConfig, logger *slog.Logger) (Extractor, error) {
	switch cfg.Type {
	case "", "css":
		return NewCSSExtractor(cfg, logger)
	case "xpath":
		return NewXPathExtractor(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported extractor type: %s", cfg.Type)
	}
}

// resolveNext turns a raw href into an absolute http(s) URL. It returns ""
// for anything that cannot be followed.
func resolveNext(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if baseURL != "" {
		base, err := url.Parse(baseURL)
		if err != nil {
			return ""
		}
		ref = base.ResolveReference(ref)
	}

	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}

// collapse trims and folds internal runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
