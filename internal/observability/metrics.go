package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across crawl runs.
type Metrics struct {
	RunsTotal     atomic.Int64
	RunsSucceeded atomic.Int64
	RunsFailed    atomic.Int64

	PagesFetched    atomic.Int64
	FetchFailures   atomic.Int64
	BytesDownloaded atomic.Int64

	RecordsExtracted atomic.Int64
	FieldAnomalies   atomic.Int64

	SinkWrites   atomic.Int64
	SinkFailures atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"shelfcrawl_runs_total", "Total crawl runs started", m.RunsTotal.Load()},
		{"shelfcrawl_runs_succeeded_total", "Total crawl runs that succeeded", m.RunsSucceeded.Load()},
		{"shelfcrawl_runs_failed_total", "Total crawl runs that failed", m.RunsFailed.Load()},
		{"shelfcrawl_pages_fetched_total", "Total pages fetched", m.PagesFetched.Load()},
		{"shelfcrawl_fetch_failures_total", "Total page fetch failures", m.FetchFailures.Load()},
		{"shelfcrawl_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"shelfcrawl_records_extracted_total", "Total records extracted", m.RecordsExtracted.Load()},
		{"shelfcrawl_field_anomalies_total", "Total record fields that could not be located", m.FieldAnomalies.Load()},
		{"shelfcrawl_sink_writes_total", "Total successful sink writes", m.SinkWrites.Load()},
		{"shelfcrawl_sink_failures_total", "Total failed sink writes", m.SinkFailures.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Handler returns a mux serving metrics on path and a /health probe.
func (m *Metrics) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return mux
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(path),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs_total":        m.RunsTotal.Load(),
		"runs_succeeded":    m.RunsSucceeded.Load(),
		"runs_failed":       m.RunsFailed.Load(),
		"pages_fetched":     m.PagesFetched.Load(),
		"fetch_failures":    m.FetchFailures.Load(),
		"bytes_downloaded":  m.BytesDownloaded.Load(),
		"records_extracted": m.RecordsExtracted.Load(),
		"field_anomalies":   m.FieldAnomalies.Load(),
		"sink_writes":       m.SinkWrites.Load(),
		"sink_failures":     m.SinkFailures.Load(),
	}
}
