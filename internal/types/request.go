package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request represents a single page fetch issued by the driver.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Page is the 1-based position of this page in the pagination chain.
	Page int

	// Timeout overrides the global request timeout for this request.
	Timeout time.Duration

	// ParentURL is the page whose next link produced this request.
	ParentURL string

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a GET request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w %q: must be absolute", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:       u,
		Method:    http.MethodGet,
		Headers:   make(http.Header),
		Page:      1,
		CreatedAt: time.Now(),
	}, nil
}

// Next creates the request for the following page.
func (r *Request) Next(rawURL string) (*Request, error) {
	next, err := NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	next.Page = r.Page + 1
	next.ParentURL = r.URLString()
	next.Headers = r.Headers.Clone()
	next.Timeout = r.Timeout
	return next, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}
