package types

import (
	"time"
)

// Record is a single catalog entry. A nil field means the page did not carry
// the expected element.
type Record struct {
	Title *string `json:"title" bson:"title"`
	Price *string `json:"price" bson:"price"`
}

// NewRecord builds a Record, mapping empty strings to nil.
func NewRecord(title, price string) Record {
	return Record{Title: optional(title), Price: optional(price)}
}

// TitleOr returns the title or def when it is missing.
func (r Record) TitleOr(def string) string {
	if r.Title == nil {
		return def
	}
	return *r.Title
}

// PriceOr returns the price or def when it is missing.
func (r Record) PriceOr(def string) string {
	if r.Price == nil {
		return def
	}
	return *r.Price
}

// Complete reports whether both fields were found.
func (r Record) Complete() bool {
	return r.Title != nil && r.Price != nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PageResult is what one fetched page yields.
type PageResult struct {
	// URL is the address the page was fetched from.
	URL string

	// Records are in document order.
	Records []Record

	// NextPageURL is absolute; empty when pagination has ended.
	NextPageURL string

	// Anomalies counts fields that could not be located.
	Anomalies int
}

// HasNext reports whether the page links to a following page.
func (p *PageResult) HasNext() bool {
	return p.NextPageURL != ""
}

// Status is the terminal state of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Location identifies where a sink wrote the records, e.g. "s3://bucket/key".
type Location string

// RunResult is the full output of one crawl.
type RunResult struct {
	RunID      string
	Seed       string
	Records    []Record
	Pages      int
	Status     Status
	Location   Location
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunResult creates an empty result for a run starting now.
func NewRunResult(runID, seed string) *RunResult {
	return &RunResult{
		RunID:     runID,
		Seed:      seed,
		Records:   make([]Record, 0),
		StartedAt: time.Now(),
	}
}

// Append folds a page into the run.
func (r *RunResult) Append(page *PageResult) {
	r.Records = append(r.Records, page.Records...)
	r.Pages++
}

// Succeed finalizes the run as succeeded at loc.
func (r *RunResult) Succeed(loc Location) {
	r.Status = StatusSucceeded
	r.Location = loc
	r.FinishedAt = time.Now()
}

// Fail finalizes the run as failed with err. Records gathered so far are
// dropped: a failed run reports no partial output.
func (r *RunResult) Fail(err error) {
	r.Status = StatusFailed
	r.Records = make([]Record, 0)
	r.Err = err
	r.FinishedAt = time.Now()
}

// Duration is the wall time of a finished run.
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StatusPayload is the value returned by every entry point.
type StatusPayload struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}
