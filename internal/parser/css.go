package parser

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// CSSExtractor extracts records using CSS selectors via goquery.
type CSSExtractor struct {
	cfg    config.ExtractorConfig
	logger *slog.Logger
}

// NewCSSExtractor compiles every selector up front so a typo fails at
// startup instead of silently producing empty pages.
func NewCSSExtractor(cfg config.ExtractorConfig, logger *slog.Logger) (*CSSExtractor, error) {
	for name, sel := range map[string]string{
		"entry": cfg.Entry, "title": cfg.Title, "price": cfg.Price, "next": cfg.Next,
	} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return nil, fmt.Errorf("invalid %s selector %q: %w", name, sel, err)
		}
	}

	return &CSSExtractor{
		cfg:    cfg,
		logger: logger.With("component", "css_extractor"),
	}, nil
}

// Extract implements Extractor.
func (p *CSSExtractor) Extract(body []byte, baseURL string) (*types.PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &types.ParseError{URL: baseURL, Err: err}
	}

	result := &types.PageResult{
		URL:     baseURL,
		Records: make([]types.Record, 0),
	}

	doc.Find(p.cfg.Entry).Each(func(i int, entry *goquery.Selection) {
		title := p.first(entry, p.cfg.Title, p.cfg.TitleAttr)
		price := p.first(entry, p.cfg.Price, p.cfg.PriceAttr)

		rec := types.NewRecord(title, price)
		if rec.Title == nil {
			result.Anomalies++
			p.logger.Debug("title not found", "url", baseURL, "entry", i)
		}
		if rec.Price == nil {
			result.Anomalies++
			p.logger.Debug("price not found", "url", baseURL, "entry", i)
		}
		result.Records = append(result.Records, rec)
	})

	if p.cfg.Next != "" {
		if href := p.first(doc.Selection, p.cfg.Next, nextAttr(p.cfg.NextAttr)); href != "" {
			result.NextPageURL = resolveNext(baseURL, href)
		}
	}

	return result, nil
}

// first returns the value of the first element under sel matching selector.
// An attribute that is absent on that element yields "".
func (p *CSSExtractor) first(sel *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	match := sel.Find(selector).First()
	if match.Length() == 0 {
		return ""
	}

	if attr == "" || attr == "text" {
		return collapse(match.Text())
	}
	val, _ := match.Attr(attr)
	return collapse(val)
}

func nextAttr(attr string) string {
	if attr == "" {
		return "href"
	}
	return attr
}
