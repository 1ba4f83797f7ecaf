package parser

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// XPathExtractor extracts records using XPath expressions. Title and price
// expressions are evaluated relative to each entry node.
type XPathExtractor struct {
	cfg    config.ExtractorConfig
	entry  *xpath.Expr
	title  *xpath.Expr
	price  *xpath.Expr
	next   *xpath.Expr
	logger *slog.Logger
}

// NewXPathExtractor compiles the configured expressions.
func NewXPathExtractor(cfg config.ExtractorConfig, logger *slog.Logger) (*XPathExtractor, error) {
	p := &XPathExtractor{
		cfg:    cfg,
		logger: logger.With("component", "xpath_extractor"),
	}

	var err error
	if p.entry, err = compile("entry", cfg.Entry); err != nil {
		return nil, err
	}
	if p.title, err = compile("title", cfg.Title); err != nil {
		return nil, err
	}
	if p.price, err = compile("price", cfg.Price); err != nil {
		return nil, err
	}
	if p.next, err = compile("next", cfg.Next); err != nil {
		return nil, err
	}
	return p, nil
}

func compile(name, expr string) (*xpath.Expr, error) {
	if expr == "" {
		return nil, nil
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s xpath %q: %w", name, expr, err)
	}
	return compiled, nil
}

// Extract implements Extractor.
func (p *XPathExtractor) Extract(body []byte, baseURL string) (*types.PageResult, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &types.ParseError{URL: baseURL, Err: err}
	}

	result := &types.PageResult{
		URL:     baseURL,
		Records: make([]types.Record, 0),
	}

	if p.entry != nil {
		for i, entry := range htmlquery.QuerySelectorAll(doc, p.entry) {
			rec := types.NewRecord(
				p.first(entry, p.title, p.cfg.TitleAttr),
				p.first(entry, p.price, p.cfg.PriceAttr),
			)
			if rec.Title == nil {
				result.Anomalies++
				p.logger.Debug("title not found", "url", baseURL, "entry", i)
			}
			if rec.Price == nil {
				result.Anomalies++
				p.logger.Debug("price not found", "url", baseURL, "entry", i)
			}
			result.Records = append(result.Records, rec)
		}
	}

	if href := p.first(doc, p.next, nextAttr(p.cfg.NextAttr)); href != "" {
		result.NextPageURL = resolveNext(baseURL, href)
	}

	return result, nil
}

func (p *XPathExtractor) first(node *html.Node, expr *xpath.Expr, attr string) string {
	if expr == nil {
		return ""
	}
	match := htmlquery.QuerySelector(node, expr)
	if match == nil {
		return ""
	}

	if attr == "" || attr == "text" {
		return collapse(htmlquery.InnerText(match))
	}
	return collapse(htmlquery.SelectAttr(match, attr))
}
