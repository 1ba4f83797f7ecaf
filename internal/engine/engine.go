package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/observability"
	"github.com/IshaanNene/shelfcrawl/internal/storage"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// State is the driver's position in a run.
type State int32

const (
	StateStart      State = 0
	StateFetching   State = 1
	StateExtracting State = 2
	StateDone       State = 3
	StatePersisting State = 4
	StateSucceeded  State = 5
	StateFailed     State = 6
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateDone:
		return "done"
	case StatePersisting:
		return "persisting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats tracks counters for the current run.
type Stats struct {
	PagesFetched     atomic.Int64
	RecordsExtracted atomic.Int64
	FieldAnomalies   atomic.Int64
	BytesDownloaded  atomic.Int64
	startedAt        atomic.Int64 // unix nanos
}

// reset zeroes the counters in place.
func (s *Stats) reset(start time.Time) {
	s.PagesFetched.Store(0)
	s.RecordsExtracted.Store(0)
	s.FieldAnomalies.Store(0)
	s.BytesDownloaded.Store(0)
	s.startedAt.Store(start.UnixNano())
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"pages_fetched":     s.PagesFetched.Load(),
		"records_extracted": s.RecordsExtracted.Load(),
		"field_anomalies":   s.FieldAnomalies.Load(),
		"bytes_downloaded":  s.BytesDownloaded.Load(),
		"elapsed":           time.Since(time.Unix(0, s.startedAt.Load())).String(),
	}
}

// Fetcher is the interface for all fetcher implementations.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
}

// Extractor is the interface for all extractor implementations.
type Extractor interface {
	Extract(body []byte, baseURL string) (*types.PageResult, error)
}

// Sink is the interface for all persistence backends.
type Sink interface {
	Write(ctx context.Context, records []types.Record) (types.Location, error)
	Name() string
}

// Option configures a Driver.
type Option func(*Driver)

// WithMetrics feeds process-wide counters from every run.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// Driver runs one paginated crawl at a time: fetch a page, extract it,
// follow the next link, and write everything to the sink at the end.
// Pages are processed strictly one after another.
type Driver struct {
	cfg       config.EngineConfig
	fetcher   Fetcher
	extractor Extractor
	sink      Sink
	limiter   *rate.Limiter
	metrics   *observability.Metrics
	logger    *slog.Logger

	state atomic.Int32
	stats Stats
}

// NewDriver wires a driver from its collaborators.
func NewDriver(cfg config.EngineConfig, f Fetcher, ex Extractor, sink Sink, logger *slog.Logger, opts ...Option) *Driver {
	d := &Driver{
		cfg:       cfg,
		fetcher:   f,
		extractor: ex,
		sink:      sink,
		logger:    logger.With("component", "driver"),
	}
	if cfg.PolitenessDelay > 0 {
		d.limiter = rate.NewLimiter(rate.Every(cfg.PolitenessDelay), 1)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns the counters of the current or last run.
func (d *Driver) Stats() *Stats {
	return &d.stats
}

// State returns the driver's current state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Run crawls from seed until no next link remains, then persists all records.
// There is no cycle detection: a page linking to itself is fetched until ctx
// is cancelled or engine.max_pages is reached. Nothing is persisted unless
// every page was fetched.
func (d *Driver) Run(ctx context.Context, seed string) *types.RunResult {
	run := types.NewRunResult(uuid.NewString(), seed)
	logger := d.logger.With("run_id", run.RunID)

	d.stats.reset(run.StartedAt)
	if d.metrics != nil {
		d.metrics.RunsTotal.Add(1)
	}
	d.transition(logger, StateStart)

	logger.Info("run starting", "seed", seed, "max_pages", d.cfg.MaxPages, "sink", d.sink.Name())

	req, err := types.NewRequest(seed)
	if err != nil {
		return d.fail(logger, run, &types.FetchError{URL: seed, Err: err})
	}

	for {
		if d.cfg.MaxPages > 0 && run.Pages >= d.cfg.MaxPages {
			logger.Warn("page ceiling reached, stopping pagination",
				"max_pages", d.cfg.MaxPages,
				"next", req.URLString(),
			)
			break
		}

		page, err := d.crawlPage(ctx, logger, req)
		if err != nil {
			return d.fail(logger, run, err)
		}
		run.Append(page)

		if !page.HasNext() {
			break
		}
		req, err = req.Next(page.NextPageURL)
		if err != nil {
			return d.fail(logger, run, &types.FetchError{URL: page.NextPageURL, Err: err})
		}
	}
	d.transition(logger, StateDone)

	d.transition(logger, StatePersisting)
	loc, err := d.sink.Write(storage.WithRunID(ctx, run.RunID), run.Records)
	if err != nil {
		if d.metrics != nil {
			d.metrics.SinkFailures.Add(1)
		}
		var storageErr *types.StorageError
		if !errors.As(err, &storageErr) {
			err = &types.StorageError{Backend: d.sink.Name(), Err: err}
		}
		return d.fail(logger, run, err)
	}
	if d.metrics != nil {
		d.metrics.SinkWrites.Add(1)
		d.metrics.RunsSucceeded.Add(1)
	}

	run.Succeed(loc)
	d.transition(logger, StateSucceeded)

	logger.Info("run succeeded",
		"pages", run.Pages,
		"records", len(run.Records),
		"location", loc,
		"stats", d.stats.Snapshot(),
	)
	return run
}

// crawlPage performs the FETCHING and EXTRACTING steps for one page.
func (d *Driver) crawlPage(ctx context.Context, logger *slog.Logger, req *types.Request) (*types.PageResult, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, &types.FetchError{URL: req.URLString(), Err: err}
		}
	}

	d.transition(logger, StateFetching)
	resp, err := d.fetcher.Fetch(ctx, req)
	if err != nil {
		if d.metrics != nil {
			d.metrics.FetchFailures.Add(1)
		}
		var fetchErr *types.FetchError
		if !errors.As(err, &fetchErr) {
			err = &types.FetchError{URL: req.URLString(), Err: err}
		}
		return nil, err
	}
	d.stats.PagesFetched.Add(1)
	d.stats.BytesDownloaded.Add(int64(len(resp.Body)))
	if d.metrics != nil {
		d.metrics.PagesFetched.Add(1)
		d.metrics.BytesDownloaded.Add(int64(len(resp.Body)))
	}

	d.transition(logger, StateExtracting)
	page, err := d.extractor.Extract(resp.Body, resp.BaseURL())
	if err != nil {
		return nil, err
	}
	d.stats.RecordsExtracted.Add(int64(len(page.Records)))
	d.stats.FieldAnomalies.Add(int64(page.Anomalies))
	if d.metrics != nil {
		d.metrics.RecordsExtracted.Add(int64(len(page.Records)))
		d.metrics.FieldAnomalies.Add(int64(page.Anomalies))
	}

	logger.Info("page crawled",
		"page", req.Page,
		"url", req.URLString(),
		"records", len(page.Records),
		"anomalies", page.Anomalies,
		"next", page.NextPageURL,
	)
	return page, nil
}

func (d *Driver) fail(logger *slog.Logger, run *types.RunResult, err error) *types.RunResult {
	if d.metrics != nil {
		d.metrics.RunsFailed.Add(1)
	}
	run.Fail(err)
	d.transition(logger, StateFailed)

	logger.Error("run failed",
		"stage", types.Stage(err),
		"pages", run.Pages,
		"error", err,
		"stats", d.stats.Snapshot(),
	)
	return run
}

func (d *Driver) transition(logger *slog.Logger, to State) {
	from := State(d.state.Swap(int32(to)))
	logger.Debug("state transition", "from", from, "to", to)
}
