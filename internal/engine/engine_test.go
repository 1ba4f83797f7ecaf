package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/fetcher"
	"github.com/IshaanNene/shelfcrawl/internal/observability"
	"github.com/IshaanNene/shelfcrawl/internal/parser"
	"github.com/IshaanNene/shelfcrawl/internal/storage"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func str(s string) *string { return &s }

func entry(title, price string) string {
	return fmt.Sprintf(`<article class="product_pod"><h3><a title=%q>x</a></h3><p class="price_color">%s</p></article>`, title, price)
}

func pageHTML(next string, entries ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, e := range entries {
		b.WriteString(e)
	}
	if next != "" {
		fmt.Fprintf(&b, `<ul class="pager"><li class="next"><a href=%q>next</a></li></ul>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// fixtureSite serves path -> HTML and counts hits.
type fixtureSite struct {
	*httptest.Server
	hits atomic.Int64
}

func newFixtureSite(t *testing.T, pages map[string]string) *fixtureSite {
	t.Helper()
	site := &fixtureSite{}
	site.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.hits.Add(1)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(site.Close)
	return site
}

type recordingSink struct {
	calls   int
	records []types.Record
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(ctx context.Context, records []types.Record) (types.Location, error) {
	s.calls++
	s.records = append([]types.Record(nil), records...)
	if s.err != nil {
		return "", s.err
	}
	return "memory://records", nil
}

func newTestDriver(t *testing.T, cfg *config.Config, sink Sink, opts ...Option) *Driver {
	t.Helper()
	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	ex, err := parser.New(cfg.Extractor, testLogger)
	if err != nil {
		t.Fatalf("create extractor: %v", err)
	}
	return NewDriver(cfg.Engine, f, ex, sink, testLogger, opts...)
}

var twoPageSite = map[string]string{
	"/catalogue/page-1.html": pageHTML("page-2.html",
		entry("Alpha", "£1.00"),
		entry("Beta", "£2.00"),
		entry("Gamma", "£3.00"),
	),
	"/catalogue/page-2.html": pageHTML("", entry("Delta", "£4.00")),
}

func TestRunTwoPagesSucceeds(t *testing.T) {
	site := newFixtureSite(t, twoPageSite)
	sink := &recordingSink{}
	metrics := observability.NewMetrics(testLogger)
	d := newTestDriver(t, config.DefaultConfig(), sink, WithMetrics(metrics))

	run := d.Run(context.Background(), site.URL+"/catalogue/page-1.html")

	if run.Status != types.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (err=%v)", run.Status, run.Err)
	}
	want := []types.Record{
		{Title: str("Alpha"), Price: str("£1.00")},
		{Title: str("Beta"), Price: str("£2.00")},
		{Title: str("Gamma"), Price: str("£3.00")},
		{Title: str("Delta"), Price: str("£4.00")},
	}
	if diff := cmp.Diff(want, run.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, sink.records); diff != "" {
		t.Errorf("sink records mismatch (-want +got):\n%s", diff)
	}
	if run.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", run.Pages)
	}
	if run.Location != "memory://records" {
		t.Errorf("unexpected location %q", run.Location)
	}
	if run.RunID == "" {
		t.Error("expected a run ID")
	}
	if d.State() != StateSucceeded {
		t.Errorf("expected succeeded state, got %s", d.State())
	}
	if got := d.Stats().PagesFetched.Load(); got != 2 {
		t.Errorf("expected 2 pages in stats, got %d", got)
	}
	if metrics.SinkWrites.Load() != 1 || metrics.RunsSucceeded.Load() != 1 {
		t.Errorf("unexpected metrics %v", metrics.Snapshot())
	}
}

func TestRunFetchFailureSkipsSink(t *testing.T) {
	site := newFixtureSite(t, map[string]string{})
	sink := &recordingSink{}
	d := newTestDriver(t, config.DefaultConfig(), sink)

	run := d.Run(context.Background(), site.URL+"/catalogue/page-1.html")

	if run.Status != types.StatusFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if len(run.Records) != 0 {
		t.Errorf("expected no records, got %d", len(run.Records))
	}
	if sink.calls != 0 {
		t.Errorf("sink should not be written, got %d calls", sink.calls)
	}
	var fetchErr *types.FetchError
	if !errors.As(run.Err, &fetchErr) {
		t.Fatalf("expected *types.FetchError, got %T (%v)", run.Err, run.Err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", fetchErr.StatusCode)
	}
	if d.State() != StateFailed {
		t.Errorf("expected failed state, got %s", d.State())
	}
}

func TestRunFailureOnLaterPageDropsRecords(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/p1": pageHTML("/missing", entry("Alpha", "£1.00")),
	})
	sink := &recordingSink{}
	d := newTestDriver(t, config.DefaultConfig(), sink)

	run := d.Run(context.Background(), site.URL+"/p1")

	if run.Status != types.StatusFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if len(run.Records) != 0 || sink.calls != 0 {
		t.Errorf("failed run should report nothing and write nothing, got %d records / %d writes", len(run.Records), sink.calls)
	}
}

func TestRunPersistenceFailureIsIdentified(t *testing.T) {
	site := newFixtureSite(t, twoPageSite)

	dir := t.TempDir()
	blocker := filepath.Join(dir, "readonly")
	if err := os.WriteFile(blocker, nil, 0o444); err != nil {
		t.Fatalf("setup: %v", err)
	}
	sink := storage.NewFileSink(filepath.Join(blocker, "books.json"), testLogger)
	d := newTestDriver(t, config.DefaultConfig(), sink)

	run := d.Run(context.Background(), site.URL+"/catalogue/page-1.html")

	if run.Status != types.StatusFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if run.Pages != 2 {
		t.Errorf("all pages should have been crawled, got %d", run.Pages)
	}
	var storageErr *types.StorageError
	if !errors.As(run.Err, &storageErr) {
		t.Fatalf("expected *types.StorageError, got %T (%v)", run.Err, run.Err)
	}
	var fetchErr *types.FetchError
	if errors.As(run.Err, &fetchErr) {
		t.Error("persistence failure must not look like a transport failure")
	}
	if types.Stage(run.Err) != types.StagePersist {
		t.Errorf("expected persist stage, got %q", types.Stage(run.Err))
	}
}

func TestRunWrapsPlainSinkErrors(t *testing.T) {
	site := newFixtureSite(t, twoPageSite)
	sink := &recordingSink{err: errors.New("permission denied")}
	d := newTestDriver(t, config.DefaultConfig(), sink)

	run := d.Run(context.Background(), site.URL+"/catalogue/page-1.html")

	var storageErr *types.StorageError
	if !errors.As(run.Err, &storageErr) {
		t.Fatalf("expected *types.StorageError, got %T (%v)", run.Err, run.Err)
	}
	if storageErr.Backend != "recording" {
		t.Errorf("expected backend name, got %q", storageErr.Backend)
	}
}

// No cycle detection: a page whose next link points at itself keeps the
// driver fetching until the caller gives up.
func TestRunSelfLinkDoesNotTerminate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const limit = 25
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) >= limit {
			cancel()
		}
		fmt.Fprint(w, pageHTML("/loop", entry("Loop", "£0.00")))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	d := newTestDriver(t, config.DefaultConfig(), sink)

	done := make(chan *types.RunResult, 1)
	go func() { done <- d.Run(ctx, srv.URL+"/loop") }()

	var run *types.RunResult
	select {
	case run = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("driver did not stop after cancellation")
	}

	if hits.Load() < limit {
		t.Errorf("expected at least %d fetches of the self-linking page, got %d", limit, hits.Load())
	}
	if run.Status != types.StatusFailed {
		t.Errorf("expected failed after cancellation, got %s", run.Status)
	}
	if !errors.Is(run.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", run.Err)
	}
	if sink.calls != 0 {
		t.Error("nothing should be persisted when the run is cut short")
	}
}

func TestRunOversizedPageFails(t *testing.T) {
	padding := "<!--" + strings.Repeat("x", 2048) + "-->"
	site := newFixtureSite(t, map[string]string{
		"/p1": pageHTML("/p2", entry("First", "£1.00"), padding),
		"/p2": pageHTML("", entry("Second", "£2.00")),
	})
	cfg := config.DefaultConfig()
	cfg.Fetcher.MaxBodySize = 1024
	sink := &recordingSink{}
	d := newTestDriver(t, cfg, sink)

	run := d.Run(context.Background(), site.URL+"/p1")

	if run.Status != types.StatusFailed {
		t.Fatalf("expected failed, got %s (pages=%d)", run.Status, run.Pages)
	}
	if types.Stage(run.Err) != types.StageFetch {
		t.Errorf("expected fetch stage, got %q (%v)", types.Stage(run.Err), run.Err)
	}
	if len(run.Records) != 0 {
		t.Errorf("expected no records, got %d", len(run.Records))
	}
	if sink.calls != 0 {
		t.Error("sink should not be written")
	}
	if site.hits.Load() != 1 {
		t.Errorf("expected one fetch, got %d", site.hits.Load())
	}
}

func TestRunMaxPagesCeiling(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/loop": pageHTML("/loop", entry("Loop", "£0.00")),
	})
	cfg := config.DefaultConfig()
	cfg.Engine.MaxPages = 3
	sink := &recordingSink{}
	d := newTestDriver(t, cfg, sink)

	run := d.Run(context.Background(), site.URL+"/loop")

	if run.Status != types.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%v)", run.Status, run.Err)
	}
	if run.Pages != 3 || len(run.Records) != 3 {
		t.Errorf("expected 3 pages / 3 records, got %d / %d", run.Pages, len(run.Records))
	}
	if site.hits.Load() != 3 {
		t.Errorf("expected exactly 3 fetches, got %d", site.hits.Load())
	}
}

func TestRunPolitenessDelay(t *testing.T) {
	site := newFixtureSite(t, map[string]string{
		"/p1": pageHTML("/p2"),
		"/p2": pageHTML("/p3"),
		"/p3": pageHTML(""),
	})
	cfg := config.DefaultConfig()
	cfg.Engine.PolitenessDelay = 50 * time.Millisecond
	d := newTestDriver(t, cfg, &recordingSink{})

	start := time.Now()
	run := d.Run(context.Background(), site.URL+"/p1")
	if run.Status != types.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%v)", run.Status, run.Err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three paced fetches finished too quickly: %s", elapsed)
	}
}

func TestRunInvalidSeed(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDriver(t, config.DefaultConfig(), sink)

	run := d.Run(context.Background(), "not a url")
	if run.Status != types.StatusFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if !errors.Is(run.Err, types.ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", run.Err)
	}
	if sink.calls != 0 {
		t.Error("sink should not be written")
	}
}

func TestRunEmptyCatalogWritesEmptyArray(t *testing.T) {
	site := newFixtureSite(t, map[string]string{"/empty": pageHTML("")})
	path := filepath.Join(t.TempDir(), "books.json")
	d := newTestDriver(t, config.DefaultConfig(), storage.NewFileSink(path, testLogger))

	run := d.Run(context.Background(), site.URL+"/empty")
	if run.Status != types.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%v)", run.Status, run.Err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected empty JSON array, got %s", data)
	}
}

func TestStatsResetBetweenRuns(t *testing.T) {
	site := newFixtureSite(t, twoPageSite)
	d := newTestDriver(t, config.DefaultConfig(), &recordingSink{})
	stats := d.Stats()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = d.Stats().Snapshot()
		}
	}()

	for i := 0; i < 2; i++ {
		run := d.Run(context.Background(), site.URL+"/catalogue/page-1.html")
		if run.Status != types.StatusSucceeded {
			t.Fatalf("run %d: expected succeeded, got %s (%v)", i, run.Status, run.Err)
		}
	}
	<-done

	if d.Stats() != stats {
		t.Error("stats should be reset in place, not replaced")
	}
	if got := stats.PagesFetched.Load(); got != 2 {
		t.Errorf("expected counters from the last run only, got %d pages", got)
	}
	if got := stats.RecordsExtracted.Load(); got != 4 {
		t.Errorf("expected 4 records in stats, got %d", got)
	}
}

func TestStateString(t *testing.T) {
	if StatePersisting.String() != "persisting" {
		t.Errorf("unexpected %q", StatePersisting.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("unexpected %q", State(99).String())
	}
}
